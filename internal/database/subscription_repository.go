package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartresidence/resident-backend/internal/models"
)

// SubscriptionRepository handles subscription and installment data access
type SubscriptionRepository struct {
	db Queryer
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db Queryer) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, apartment_id, type, pattern, price, paid, remaining, start_at, end_at, active, created_at`

// Create inserts a subscription
func (r *SubscriptionRepository) Create(sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, apartment_id, type, pattern, price, paid, remaining,
			start_at, end_at, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		query,
		sub.ID,
		sub.ApartmentID,
		sub.Type,
		sub.Pattern,
		sub.Price,
		sub.Paid,
		sub.Remaining,
		sub.StartAt,
		sub.EndAt,
		sub.Active,
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// GetByID retrieves a subscription by ID
func (r *SubscriptionRepository) GetByID(id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	err := r.db.Get(&sub, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Subscription not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get subscription by ID: %w", err)
	}

	return &sub, nil
}

// GetActive retrieves the active subscription of an apartment, if any
func (r *SubscriptionRepository) GetActive(apartmentID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE apartment_id = $1 AND active = true`

	err := r.db.Get(&sub, query, apartmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}

	return &sub, nil
}

// GetScheduled retrieves a not-yet-started subscription of an apartment, if
// any. At most one future period may be queued behind the active one.
func (r *SubscriptionRepository) GetScheduled(apartmentID uuid.UUID, after time.Time) (*models.Subscription, error) {
	var sub models.Subscription

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE apartment_id = $1 AND active = false AND start_at > $2
		ORDER BY start_at
		LIMIT 1
	`

	err := r.db.Get(&sub, query, apartmentID, after)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scheduled subscription: %w", err)
	}

	return &sub, nil
}

// ListByApartment retrieves an apartment's subscriptions, newest period first
func (r *SubscriptionRepository) ListByApartment(apartmentID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	var subs []*models.Subscription

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE apartment_id = $1
		ORDER BY start_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&subs, query, apartmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return subs, nil
}

// CountByApartment returns the number of subscriptions of an apartment
func (r *SubscriptionRepository) CountByApartment(apartmentID uuid.UUID) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM subscriptions WHERE apartment_id = $1`

	err := r.db.QueryRow(query, apartmentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	return count, nil
}

// UpdateAmounts rewrites a subscription's paid and remaining figures.
// Callers recompute both from the installment history so the
// paid + remaining = price invariant holds.
func (r *SubscriptionRepository) UpdateAmounts(id uuid.UUID, paid, remaining decimal.Decimal) error {
	query := `UPDATE subscriptions SET paid = $1, remaining = $2 WHERE id = $3`

	_, err := r.db.Exec(query, paid, remaining, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription amounts: %w", err)
	}

	return nil
}

// SetActive flips a subscription's active flag
func (r *SubscriptionRepository) SetActive(id uuid.UUID, active bool) error {
	query := `UPDATE subscriptions SET active = $1 WHERE id = $2`

	_, err := r.db.Exec(query, active, id)
	if err != nil {
		return fmt.Errorf("failed to set subscription active: %w", err)
	}

	return nil
}

// ListExpiredActive returns active subscriptions whose period has ended
func (r *SubscriptionRepository) ListExpiredActive(asOf time.Time) ([]*models.Subscription, error) {
	var subs []*models.Subscription

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE active = true AND end_at <= $1
		ORDER BY end_at
	`

	err := r.db.Select(&subs, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired subscriptions: %w", err)
	}

	return subs, nil
}

// ListDueToStart returns inactive subscriptions whose period has begun and
// not yet ended, ready to be activated by the scheduler.
func (r *SubscriptionRepository) ListDueToStart(asOf time.Time) ([]*models.Subscription, error) {
	var subs []*models.Subscription

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE active = false AND start_at <= $1 AND end_at > $1
		ORDER BY start_at
	`

	err := r.db.Select(&subs, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	return subs, nil
}

// InsertHistory records an installment payment
func (r *SubscriptionRepository) InsertHistory(h *models.SubscriptionHistory) error {
	query := `
		INSERT INTO subscription_histories (id, subscription_id, paid, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(query, h.ID, h.SubscriptionID, h.Paid, h.Note, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert subscription history: %w", err)
	}

	return nil
}

// GetHistoryByID retrieves one installment record
func (r *SubscriptionRepository) GetHistoryByID(id uuid.UUID) (*models.SubscriptionHistory, error) {
	var h models.SubscriptionHistory

	query := `SELECT id, subscription_id, paid, note, created_at FROM subscription_histories WHERE id = $1`

	err := r.db.Get(&h, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription history by ID: %w", err)
	}

	return &h, nil
}

// LatestHistory retrieves the most recent installment of a subscription.
// Only the latest installment may be corrected or removed.
func (r *SubscriptionRepository) LatestHistory(subscriptionID uuid.UUID) (*models.SubscriptionHistory, error) {
	var h models.SubscriptionHistory

	query := `
		SELECT id, subscription_id, paid, note, created_at
		FROM subscription_histories
		WHERE subscription_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.Get(&h, query, subscriptionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest subscription history: %w", err)
	}

	return &h, nil
}

// ListHistory retrieves the installments of a subscription, newest first
func (r *SubscriptionRepository) ListHistory(subscriptionID uuid.UUID) ([]*models.SubscriptionHistory, error) {
	var histories []*models.SubscriptionHistory

	query := `
		SELECT id, subscription_id, paid, note, created_at
		FROM subscription_histories
		WHERE subscription_id = $1
		ORDER BY created_at DESC
	`

	err := r.db.Select(&histories, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription histories: %w", err)
	}

	return histories, nil
}

// SumHistory totals the installments recorded against a subscription
func (r *SubscriptionRepository) SumHistory(subscriptionID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal

	query := `SELECT COALESCE(SUM(paid), 0) FROM subscription_histories WHERE subscription_id = $1`

	err := r.db.QueryRow(query, subscriptionID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum subscription histories: %w", err)
	}

	return total, nil
}

// UpdateHistory corrects an installment's amount and note
func (r *SubscriptionRepository) UpdateHistory(id uuid.UUID, paid decimal.Decimal, note *string) error {
	query := `UPDATE subscription_histories SET paid = $1, note = $2 WHERE id = $3`

	_, err := r.db.Exec(query, paid, note, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription history: %w", err)
	}

	return nil
}

// DeleteHistory removes an installment record
func (r *SubscriptionRepository) DeleteHistory(id uuid.UUID) error {
	query := `DELETE FROM subscription_histories WHERE id = $1`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription history: %w", err)
	}

	return nil
}
