package services

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
)

// OccupancyService owns the flat occupancy state machine: who holds which
// role in a flat, how roles change, and which gate passes exist as a result.
// Every method takes a Queryer so the approval flow and the scheduler can run
// it inside their own transactions.
type OccupancyService struct {
	logger *logrus.Logger
}

// NewOccupancyService creates a new occupancy service
func NewOccupancyService(logger *logrus.Logger) *OccupancyService {
	return &OccupancyService{logger: logger}
}

// AssignOccupant places a resident into a flat with the given role and issues
// their gate pass. Owner and tenant roles are exclusive per flat; family roles
// require the matching primary to already live there.
func (s *OccupancyService) AssignOccupant(q database.Queryer, apartmentID, flatID, clientID uuid.UUID, occType models.OccupantType, residing bool) (*models.FlatCurrentClient, error) {
	if !occType.Valid() {
		return nil, apperror.BadRequestf("unknown occupant type %q", occType)
	}

	occupancyRepo := database.NewOccupancyRepository(q)
	gatePassRepo := database.NewGatePassRepository(q)

	existing, err := occupancyRepo.GetByFlatAndClient(flatID, clientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflictf("resident already occupies this flat as %s", existing.Type)
	}

	owner, err := occupancyRepo.GetByFlatAndType(flatID, models.OccupantOwner)
	if err != nil {
		return nil, err
	}

	if occType.IsExclusive() {
		holder, err := occupancyRepo.GetByFlatAndType(flatID, occType)
		if err != nil {
			return nil, err
		}
		if holder != nil {
			return nil, apperror.Conflictf("flat already has a %s", occType)
		}
	} else {
		// Family roles follow a primary resident
		var primary models.OccupantType
		if occType == models.OccupantOwnerFamily {
			primary = models.OccupantOwner
		} else {
			primary = models.OccupantTenant
		}

		holder, err := occupancyRepo.GetByFlatAndType(flatID, primary)
		if err != nil {
			return nil, err
		}
		if holder == nil {
			return nil, apperror.BadRequestf("flat has no %s for a %s to join", primary, occType)
		}
	}

	hasOwner := owner != nil || occType == models.OccupantOwner

	row := database.NewOccupancyRow(apartmentID, flatID, clientID, occType, hasOwner, residing)
	if err := occupancyRepo.Insert(row); err != nil {
		return nil, err
	}

	// A new owner flips the flag for everyone already in the flat
	if occType == models.OccupantOwner {
		if err := occupancyRepo.SetHasOwnerFlatWide(flatID, true); err != nil {
			return nil, err
		}
	}

	pass, err := newGatePass(apartmentID, flatID, clientID)
	if err != nil {
		return nil, err
	}
	if err := gatePassRepo.Create(pass); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"flat_id":   flatID,
		"client_id": clientID,
		"type":      occType,
	}).Info("Occupant assigned")

	return row, nil
}

// PromoteToOwner turns the flat's tenant into its owner. The tenant's family
// members become owner family, and every row in the flat gains has_owner.
func (s *OccupancyService) PromoteToOwner(q database.Queryer, flatID, clientID uuid.UUID) error {
	occupancyRepo := database.NewOccupancyRepository(q)

	row, err := occupancyRepo.GetByFlatAndClient(flatID, clientID)
	if err != nil {
		return err
	}
	if row == nil {
		return apperror.NotFoundf("resident does not occupy this flat")
	}
	if row.Type != models.OccupantTenant {
		return apperror.BadRequestf("only a tenant can become the owner, current role is %s", row.Type)
	}

	owner, err := occupancyRepo.GetByFlatAndType(flatID, models.OccupantOwner)
	if err != nil {
		return err
	}
	if owner != nil {
		return apperror.Conflictf("flat already has an owner")
	}

	if err := occupancyRepo.Retype(row.ID, models.OccupantOwner); err != nil {
		return err
	}

	if err := occupancyRepo.RetypeFamilies(flatID, models.OccupantTenantFamily, models.OccupantOwnerFamily); err != nil {
		return err
	}

	if err := occupancyRepo.SetHasOwnerFlatWide(flatID, true); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"flat_id":   flatID,
		"client_id": clientID,
	}).Info("Tenant promoted to owner")

	return nil
}

// Vacate removes a resident from a flat. Vacating a primary resident (owner
// or tenant) removes their family members with them; all removed residents
// lose their gate passes. Returns the removed occupancy rows so the caller
// can write history records and notify the affected residents.
func (s *OccupancyService) Vacate(q database.Queryer, flatID, clientID uuid.UUID) ([]*models.FlatCurrentClient, error) {
	occupancyRepo := database.NewOccupancyRepository(q)
	gatePassRepo := database.NewGatePassRepository(q)

	row, err := occupancyRepo.GetByFlatAndClient(flatID, clientID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperror.NotFoundf("resident does not occupy this flat")
	}

	removed := []*models.FlatCurrentClient{row}

	if row.Type.IsExclusive() {
		family, err := occupancyRepo.ListFamilyByFlat(flatID, row.Type.FamilyType())
		if err != nil {
			return nil, err
		}
		removed = append(removed, family...)
	}

	removedIDs := make([]uuid.UUID, 0, len(removed))
	for _, r := range removed {
		if err := occupancyRepo.Delete(r.ID); err != nil {
			return nil, err
		}
		removedIDs = append(removedIDs, r.ClientID)
	}

	// An owner leaving clears the flag for whoever stays behind
	if row.Type == models.OccupantOwner {
		if err := occupancyRepo.SetHasOwnerFlatWide(flatID, false); err != nil {
			return nil, err
		}
	}

	if err := gatePassRepo.DeleteByClients(flatID, removedIDs); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"flat_id":   flatID,
		"client_id": clientID,
		"removed":   len(removed),
	}).Info("Occupants vacated")

	return removed, nil
}

// ListFlatOccupants returns the current occupancy rows of a flat
func (s *OccupancyService) ListFlatOccupants(q database.Queryer, flatID uuid.UUID) ([]*models.FlatCurrentClient, error) {
	return database.NewOccupancyRepository(q).ListByFlat(flatID)
}

// ListClientFlats returns everywhere a resident currently lives
func (s *OccupancyService) ListClientFlats(q database.Queryer, clientID uuid.UUID) ([]*models.FlatCurrentClient, error) {
	return database.NewOccupancyRepository(q).ListByClient(clientID)
}

// newGatePass builds a gate pass with a random 8-character code
func newGatePass(apartmentID, flatID, clientID uuid.UUID) (*models.GatePass, error) {
	code, err := generatePassCode(8)
	if err != nil {
		return nil, fmt.Errorf("failed to generate gate pass code: %w", err)
	}

	return &models.GatePass{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		FlatID:      flatID,
		ClientID:    clientID,
		Code:        code,
		CreatedAt:   time.Now(),
	}, nil
}

// passAlphabet omits easily confused characters (0/O, 1/I/L)
const passAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// generatePassCode returns a random code over the unambiguous alphabet
func generatePassCode(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = passAlphabet[int(b[i])%len(passAlphabet)]
	}

	return string(b), nil
}
