package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
)

// Subscription holds the single active subscription per organization. The
// payment reference records which confirmation produced the current period and
// doubles as the idempotency guard against duplicate delivery.
type Subscription struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrganizationID   uint      `gorm:"not null;uniqueIndex:ux_subscriptions_organization" json:"organization_id"`
	PlanID           string    `gorm:"type:varchar(50);not null" json:"plan_id"`
	BillingCycle     string    `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Status           string    `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	StartDate        time.Time `gorm:"type:timestamp;not null" json:"start_date"`
	EndDate          time.Time `gorm:"type:timestamp;not null" json:"end_date"`
	Amount           int64     `gorm:"not null" json:"amount"`
	PaymentReference string    `gorm:"type:varchar(191);not null;index" json:"payment_reference"`
	Provider         string    `gorm:"type:varchar(20);not null;default:'paystack'" json:"provider"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
