package payments

import (
	"fmt"
	"log"
	"time"

	"github.com/tillpoint/tillpoint/app/models"
	"github.com/tillpoint/tillpoint/internal/pkg/cache"
	"github.com/tillpoint/tillpoint/internal/pkg/env"
	"github.com/tillpoint/tillpoint/internal/pkg/mail"
	"github.com/tillpoint/tillpoint/internal/pkg/metrics/counter"
)

const planCacheTTL = 12 * time.Hour

// syncOrganization refreshes the denormalized subscription fields on the
// organization, the plan cache and the confirmation counters, and sends a
// receipt mail. Every step is best-effort: the subscription row is the source
// of truth and a stale projection is acceptable, so failures are logged and
// swallowed, never propagated back to the confirmation.
func (s *Service) syncOrganization(payment *models.Payment, sub *models.Subscription) {
	endDate := sub.EndDate
	if err := s.repo.UpdateOrganizationProjection(sub.OrganizationID, sub.Status, sub.PlanID, &endDate); err != nil {
		log.Printf("payments: organization projection sync failed for org %d: %v", sub.OrganizationID, err)
	}

	if err := cache.Set(planCacheKey(sub.OrganizationID), sub.PlanID, planCacheTTL); err != nil {
		log.Printf("payments: plan cache refresh failed for org %d: %v", sub.OrganizationID, err)
	}

	if err := counter.AddConfirmedPayment(sub.OrganizationID); err != nil {
		log.Printf("payments: confirmation counter failed for org %d: %v", sub.OrganizationID, err)
	}

	if env.GetEnv("SMTP_HOST", "") != "" && payment.Email != "" {
		subject := "Your TillPoint subscription is active"
		body := fmt.Sprintf(
			"<p>Payment <strong>%s</strong> was confirmed.</p><p>Plan: %s (%s)<br>Active until: %s</p>",
			payment.Reference, sub.PlanID, sub.BillingCycle, sub.EndDate.Format("2 January 2006"),
		)
		if err := mail.SendMail(payment.Email, subject, body); err != nil {
			log.Printf("payments: receipt mail failed for %s: %v", payment.Reference, err)
		}
	}
}

func planCacheKey(orgID uint) string {
	return fmt.Sprintf("org_plan:%d", orgID)
}

// CachedPlan returns the cached plan id for an organization, or empty when the
// cache has no entry.
func CachedPlan(orgID uint) string {
	val, err := cache.Get(planCacheKey(orgID))
	if err != nil {
		return ""
	}
	return val
}
