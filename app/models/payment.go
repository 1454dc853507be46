package models

import "time"

// Payment provider constants used across billing-related models.
const (
	PaymentProviderPaystack = "paystack"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// Payment is the ledger entry for a single checkout attempt. The reference is
// the idempotency key shared with the provider across both confirmation
// channels. Rows are never deleted; a terminal status is immutable.
type Payment struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Reference      string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_reference" json:"reference"`
	Provider       string     `gorm:"type:varchar(20);not null;default:'paystack';index" json:"provider"`
	OrganizationID uint       `gorm:"not null;index" json:"organization_id"`
	PlanID         string     `gorm:"type:varchar(50);not null" json:"plan_id"`
	BillingCycle   string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Amount         int64      `gorm:"not null" json:"amount"`
	Currency       string     `gorm:"type:varchar(8);not null;default:'NGN'" json:"currency"`
	Email          string     `gorm:"type:varchar(200);not null;default:''" json:"email"`
	Status         string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	TransactionID  string     `gorm:"type:varchar(191);default:''" json:"transaction_id"`
	VerifiedAt     *time.Time `gorm:"type:timestamp;default:null" json:"verified_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the payment has reached a final status.
func (p *Payment) IsTerminal() bool {
	return p != nil && (p.Status == PaymentStatusCompleted || p.Status == PaymentStatusFailed)
}
