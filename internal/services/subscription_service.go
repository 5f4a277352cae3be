package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
)

// SubscriptionService manages apartment billing periods and their installment
// ledgers. Amounts are decimals; paid + remaining = price holds on every
// subscription at all times, and the apartment's subscription_status mirrors
// whether the active period is settled.
type SubscriptionService struct {
	db     database.DB
	logger *logrus.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(db database.DB, logger *logrus.Logger) *SubscriptionService {
	return &SubscriptionService{db: db, logger: logger}
}

// CreateSubscription opens a new billing period for an apartment, optionally
// booking an opening payment as the first installment in the same
// transaction. When the apartment has no active period and the new one has
// already started it activates immediately; otherwise it is scheduled. At
// most one scheduled period may queue behind the active one.
func (s *SubscriptionService) CreateSubscription(apartmentID uuid.UUID, subType models.SubscriptionType, pattern models.PaymentPattern, price, firstPayment decimal.Decimal, startAt, endAt time.Time) (*models.Subscription, error) {
	if !endAt.After(startAt) {
		return nil, apperror.BadRequestf("subscription end must be after its start")
	}
	if price.IsNegative() {
		return nil, apperror.BadRequestf("subscription price cannot be negative")
	}
	if subType == models.SubTypeFree && !price.IsZero() {
		return nil, apperror.BadRequestf("free subscriptions cannot carry a price")
	}
	if firstPayment.IsNegative() {
		return nil, apperror.BadRequestf("first payment cannot be negative")
	}
	if firstPayment.GreaterThan(price) {
		return nil, apperror.BadRequestf("first payment exceeds the subscription price")
	}
	if pattern == models.PatternFull && !firstPayment.IsZero() && !firstPayment.Equal(price) {
		return nil, apperror.BadRequestf("full-pattern subscriptions are settled in one payment")
	}

	apartment, err := database.NewApartmentRepository(s.db).GetApartmentByID(apartmentID)
	if err != nil {
		return nil, err
	}
	if apartment == nil {
		return nil, apperror.NotFoundf("apartment not found")
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	subRepo := database.NewSubscriptionRepository(tx)
	now := time.Now()

	active, err := subRepo.GetActive(apartmentID)
	if err != nil {
		return nil, err
	}

	if active != nil {
		scheduled, err := subRepo.GetScheduled(apartmentID, now)
		if err != nil {
			return nil, err
		}
		if scheduled != nil {
			return nil, apperror.Conflictf("apartment already has a renewal scheduled")
		}
		if startAt.Before(active.EndAt) {
			return nil, apperror.Conflictf("new period overlaps the active subscription")
		}
	}

	activateNow := active == nil && !startAt.After(now) && endAt.After(now)

	sub := &models.Subscription{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		Type:        subType,
		Pattern:     pattern,
		Price:       price,
		Paid:        firstPayment,
		Remaining:   price.Sub(firstPayment),
		StartAt:     startAt,
		EndAt:       endAt,
		Active:      activateNow,
		CreatedAt:   now,
	}

	if err := subRepo.Create(sub); err != nil {
		return nil, err
	}

	if firstPayment.IsPositive() {
		history := &models.SubscriptionHistory{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			Paid:           firstPayment,
			CreatedAt:      now,
		}
		if err := subRepo.InsertHistory(history); err != nil {
			return nil, err
		}
	}

	if activateNow {
		if err := s.syncApartmentStatus(tx, sub); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"apartment_id":    apartmentID,
		"subscription_id": sub.ID,
		"active":          activateNow,
	}).Info("Subscription created")

	return sub, nil
}

// RecordInstallment books a payment against a subscription and rebalances
// paid/remaining from the installment ledger.
func (s *SubscriptionService) RecordInstallment(subscriptionID uuid.UUID, amount decimal.Decimal, note *string) (*models.SubscriptionHistory, error) {
	if !amount.IsPositive() {
		return nil, apperror.BadRequestf("installment amount must be positive")
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	subRepo := database.NewSubscriptionRepository(tx)

	sub, err := subRepo.GetByID(subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperror.NotFoundf("subscription not found")
	}
	if sub.Type == models.SubTypeFree {
		return nil, apperror.BadRequestf("free subscriptions take no payments")
	}
	if sub.Pattern == models.PatternFull && sub.Paid.IsPositive() {
		return nil, apperror.BadRequestf("subscription is already paid in full")
	}
	if sub.Paid.Add(amount).GreaterThan(sub.Price) {
		return nil, apperror.BadRequestf("payment exceeds the remaining balance of %s", sub.Remaining)
	}

	history := &models.SubscriptionHistory{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Paid:           amount,
		Note:           note,
		CreatedAt:      time.Now(),
	}

	if err := subRepo.InsertHistory(history); err != nil {
		return nil, err
	}

	if err := s.rebalance(tx, sub); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return history, nil
}

// CorrectLatestInstallment rewrites the most recent installment of a
// subscription. Older installments are immutable; corrections walk back from
// the end of the ledger.
func (s *SubscriptionService) CorrectLatestInstallment(subscriptionID, historyID uuid.UUID, amount decimal.Decimal, note *string) error {
	if !amount.IsPositive() {
		return apperror.BadRequestf("installment amount must be positive")
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	subRepo := database.NewSubscriptionRepository(tx)

	sub, latest, err := s.latestInstallment(subRepo, subscriptionID, historyID)
	if err != nil {
		return err
	}

	newTotal := sub.Paid.Sub(latest.Paid).Add(amount)
	if newTotal.GreaterThan(sub.Price) {
		return apperror.BadRequestf("corrected amount exceeds the subscription price")
	}

	if err := subRepo.UpdateHistory(historyID, amount, note); err != nil {
		return err
	}

	if err := s.rebalance(tx, sub); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RemoveLatestInstallment deletes the most recent installment of a
// subscription and rebalances.
func (s *SubscriptionService) RemoveLatestInstallment(subscriptionID, historyID uuid.UUID) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	subRepo := database.NewSubscriptionRepository(tx)

	sub, _, err := s.latestInstallment(subRepo, subscriptionID, historyID)
	if err != nil {
		return err
	}

	if err := subRepo.DeleteHistory(historyID); err != nil {
		return err
	}

	if err := s.rebalance(tx, sub); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// latestInstallment loads the subscription and verifies historyID is its most
// recent installment.
func (s *SubscriptionService) latestInstallment(subRepo *database.SubscriptionRepository, subscriptionID, historyID uuid.UUID) (*models.Subscription, *models.SubscriptionHistory, error) {
	sub, err := subRepo.GetByID(subscriptionID)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, apperror.NotFoundf("subscription not found")
	}

	latest, err := subRepo.LatestHistory(subscriptionID)
	if err != nil {
		return nil, nil, err
	}
	if latest == nil {
		return nil, nil, apperror.NotFoundf("subscription has no installments")
	}
	if latest.ID != historyID {
		return nil, nil, apperror.Forbiddenf("only the latest installment can be changed")
	}

	return sub, latest, nil
}

// rebalance recomputes a subscription's paid/remaining from its ledger and
// mirrors the result onto the apartment when the subscription is active.
func (s *SubscriptionService) rebalance(q database.Queryer, sub *models.Subscription) error {
	subRepo := database.NewSubscriptionRepository(q)

	total, err := subRepo.SumHistory(sub.ID)
	if err != nil {
		return err
	}

	remaining := sub.Price.Sub(total)
	if err := subRepo.UpdateAmounts(sub.ID, total, remaining); err != nil {
		return err
	}

	sub.Paid = total
	sub.Remaining = remaining

	if sub.Active {
		return s.syncApartmentStatus(q, sub)
	}

	return nil
}

// syncApartmentStatus flips the apartment's subscription_status to match the
// active subscription's balance. Free subscriptions count as settled.
func (s *SubscriptionService) syncApartmentStatus(q database.Queryer, sub *models.Subscription) error {
	status := models.SubscriptionDue
	if sub.Type == models.SubTypeFree || sub.Remaining.IsZero() {
		status = models.SubscriptionPaid
	}

	return database.NewApartmentRepository(q).UpdateSubscriptionStatus(sub.ApartmentID, status)
}

// RollPeriods is the scheduler entrypoint: it deactivates expired periods and
// activates scheduled periods whose start has arrived. Reruns are harmless.
func (s *SubscriptionService) RollPeriods(asOf time.Time) (expired, activated int, err error) {
	subRepo := database.NewSubscriptionRepository(s.db)
	apartmentRepo := database.NewApartmentRepository(s.db)

	expiredSubs, err := subRepo.ListExpiredActive(asOf)
	if err != nil {
		return 0, 0, err
	}

	for _, sub := range expiredSubs {
		if err := subRepo.SetActive(sub.ID, false); err != nil {
			s.logger.WithError(err).WithField("subscription_id", sub.ID).Warn("Failed to expire subscription")
			continue
		}
		// No active period means nothing is paid for
		if err := apartmentRepo.UpdateSubscriptionStatus(sub.ApartmentID, models.SubscriptionDue); err != nil {
			s.logger.WithError(err).WithField("apartment_id", sub.ApartmentID).Warn("Failed to flag apartment after expiry")
			continue
		}
		expired++
	}

	dueSubs, err := subRepo.ListDueToStart(asOf)
	if err != nil {
		return expired, 0, err
	}

	for _, sub := range dueSubs {
		// Never activate over a still-active period of the same apartment
		active, err := subRepo.GetActive(sub.ApartmentID)
		if err != nil || active != nil {
			continue
		}

		if err := subRepo.SetActive(sub.ID, true); err != nil {
			s.logger.WithError(err).WithField("subscription_id", sub.ID).Warn("Failed to activate subscription")
			continue
		}
		if err := s.syncApartmentStatus(s.db, sub); err != nil {
			s.logger.WithError(err).WithField("apartment_id", sub.ApartmentID).Warn("Failed to sync apartment status")
			continue
		}
		activated++
	}

	return expired, activated, nil
}

// GetSubscription returns one subscription with its installment ledger
func (s *SubscriptionService) GetSubscription(id uuid.UUID) (*models.Subscription, []*models.SubscriptionHistory, error) {
	subRepo := database.NewSubscriptionRepository(s.db)

	sub, err := subRepo.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, apperror.NotFoundf("subscription not found")
	}

	histories, err := subRepo.ListHistory(id)
	if err != nil {
		return nil, nil, err
	}

	return sub, histories, nil
}

// ListSubscriptions returns an apartment's periods plus the total count
func (s *SubscriptionService) ListSubscriptions(apartmentID uuid.UUID, limit, offset int) ([]*models.Subscription, int, error) {
	subRepo := database.NewSubscriptionRepository(s.db)

	subs, err := subRepo.ListByApartment(apartmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := subRepo.CountByApartment(apartmentID)
	if err != nil {
		return nil, 0, err
	}

	return subs, total, nil
}
