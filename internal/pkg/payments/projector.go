package payments

import (
	"log"
	"time"

	"github.com/tillpoint/tillpoint/app/models"
)

// cycleOffset advances a period start by exactly one calendar month or year.
func cycleOffset(start time.Time, billingCycle string) time.Time {
	switch billingCycle {
	case models.BillingCycleYearly:
		return start.AddDate(1, 0, 0)
	case models.BillingCycleMonthly:
		return start.AddDate(0, 1, 0)
	default:
		// Data-quality fault: surface it but never block activation over a bad
		// enum. Monthly is the safe default.
		log.Printf("payments: unknown billing cycle %q, defaulting to monthly", billingCycle)
		return start.AddDate(0, 1, 0)
	}
}

// projectSubscription computes the billing period for a completed payment and
// writes the organization's single subscription row through the repository's
// guarded upsert. The reference-match check and the write happen in the store
// as one conditional operation, so a second confirmation for the same
// reference never recomputes dates and two racing channels cannot
// double-extend the period.
func (s *Service) projectSubscription(payment *models.Payment) (*models.Subscription, bool, error) {
	startDate := s.now()
	endDate := cycleOffset(startDate, payment.BillingCycle)

	sub := &models.Subscription{
		OrganizationID:   payment.OrganizationID,
		PlanID:           payment.PlanID,
		BillingCycle:     payment.BillingCycle,
		Status:           models.SubscriptionStatusActive,
		StartDate:        startDate,
		EndDate:          endDate,
		Amount:           payment.Amount,
		PaymentReference: payment.Reference,
		Provider:         payment.Provider,
	}
	wrote, err := s.repo.UpsertSubscription(payment, sub)
	if err != nil {
		return nil, false, err
	}
	return sub, wrote, nil
}
