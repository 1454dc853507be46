package payments

import (
	"errors"
	"time"

	"github.com/tillpoint/tillpoint/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrPaymentNotFound marks a confirmation attempt for a reference with no
// ledger entry. Confirmation never proceeds without the original payment
// intent: the organization/plan/amount needed to build a subscription live
// only on that record.
var ErrPaymentNotFound = errors.New("payment record not found")

// Repository provides DB operations used by the payments service.
type Repository interface {
	CreatePayment(p *models.Payment) error
	GetPaymentByReference(reference string) (*models.Payment, error)
	// TransitionPaymentTerminal applies the pending -> terminal transition as a
	// single conditional update. When the row is already terminal it is a
	// no-op that returns the stored row with applied=false.
	TransitionPaymentTerminal(reference, newStatus, transactionID string, verifiedAt *time.Time) (*models.Payment, bool, error)
	// UpsertSubscription writes the projected subscription row for a completed
	// payment as one guarded operation: no write happens when the row already
	// carries the payment's reference, or when its reference belongs to a
	// payment verified after the incoming one. On a skip, sub is overwritten
	// with the stored row. Returns whether the row was written.
	UpsertSubscription(payment *models.Payment, sub *models.Subscription) (bool, error)
	UpdateOrganizationProjection(orgID uint, status, plan string, endDate *time.Time) error
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) GetPaymentByReference(reference string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("reference = ?", reference).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) TransitionPaymentTerminal(reference, newStatus, transactionID string, verifiedAt *time.Time) (*models.Payment, bool, error) {
	if verifiedAt == nil {
		now := time.Now()
		verifiedAt = &now
	}
	updates := map[string]interface{}{
		"status":      newStatus,
		"verified_at": verifiedAt,
	}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}

	// Guarding on the stored status makes the update a compare-and-swap: only
	// one of two racing confirmations can move the row out of pending.
	tx := r.db.Model(&models.Payment{}).
		Where("reference = ? AND status = ?", reference, models.PaymentStatusPending).
		Updates(updates)
	if tx.Error != nil {
		return nil, false, tx.Error
	}
	applied := tx.RowsAffected > 0

	var stored models.Payment
	if err := r.db.Where("reference = ?", reference).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrPaymentNotFound
		}
		return nil, false, err
	}
	return &stored, applied, nil
}

func (r *gormRepository) UpsertSubscription(payment *models.Payment, sub *models.Subscription) (bool, error) {
	wrote := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("organization_id = ?", sub.OrganizationID).
			First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err == nil {
			if existing.PaymentReference == sub.PaymentReference {
				*sub = existing
				return nil
			}
			// A stale duplicate of an old reference must not roll back the row
			// a newer confirmation wrote.
			newer, nerr := storedReferenceIsNewer(tx, existing.PaymentReference, payment)
			if nerr != nil {
				return nerr
			}
			if newer {
				*sub = existing
				return nil
			}

			sub.ID = existing.ID
			sub.CreatedAt = existing.CreatedAt
			if uerr := tx.Model(&models.Subscription{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"plan_id":           sub.PlanID,
					"billing_cycle":     sub.BillingCycle,
					"status":            sub.Status,
					"start_date":        sub.StartDate,
					"end_date":          sub.EndDate,
					"amount":            sub.Amount,
					"payment_reference": sub.PaymentReference,
					"provider":          sub.Provider,
				}).Error; uerr != nil {
				return uerr
			}
			wrote = true
			return nil
		}

		// First subscription for the organization. OnConflict absorbs the race
		// where two first confirmations insert simultaneously.
		if cerr := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "organization_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan_id",
				"billing_cycle",
				"status",
				"start_date",
				"end_date",
				"amount",
				"payment_reference",
				"provider",
				"updated_at",
			}),
		}).Create(sub).Error; cerr != nil {
			return cerr
		}
		wrote = true

		// Ensure ID is populated after upsert.
		return tx.Where("organization_id = ?", sub.OrganizationID).
			First(sub).Error
	})
	return wrote, err
}

// storedReferenceIsNewer reports whether the payment behind the stored
// subscription reference was verified strictly after the incoming payment.
func storedReferenceIsNewer(tx *gorm.DB, storedRef string, incoming *models.Payment) (bool, error) {
	if incoming == nil || incoming.VerifiedAt == nil {
		return false, nil
	}
	var current models.Payment
	if err := tx.Where("reference = ?", storedRef).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return current.VerifiedAt != nil && current.VerifiedAt.After(*incoming.VerifiedAt), nil
}

func (r *gormRepository) UpdateOrganizationProjection(orgID uint, status, plan string, endDate *time.Time) error {
	updates := map[string]interface{}{
		"subscription_status":   status,
		"subscription_plan":     plan,
		"subscription_end_date": endDate,
	}
	return r.db.Model(&models.Organization{}).Where("id = ?", orgID).Updates(updates).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
