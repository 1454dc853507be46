package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint/app/models"
	"github.com/tillpoint/tillpoint/internal/pkg/database"
	"github.com/tillpoint/tillpoint/internal/pkg/orgcontext"
	"github.com/tillpoint/tillpoint/internal/pkg/payments"
	"github.com/tillpoint/tillpoint/internal/pkg/plans"
)

// HandleGetCurrentSubscription returns the active subscription and plan
// limits for the authenticated organization.
func HandleGetCurrentSubscription(c *fiber.Ctx) error {
	orgCtx := orgcontext.GetOrgContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing organization credential"})
	}

	var sub models.Subscription
	err := database.GetDB().Where("organization_id = ?", orgCtx.OrganizationID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			plan := plans.Normalize(planFromCacheOrContext(c))
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"subscription": nil,
				"plan":         string(plan),
				"plan_limits":  plans.LimitsFor(plan),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Subscription lookup failed"})
	}

	plan := plans.Normalize(sub.PlanID)
	active := sub.Status == models.SubscriptionStatusActive && sub.EndDate.After(time.Now())
	if !active {
		plan = plans.PlanFree
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"subscription": sub,
		"plan":         string(plan),
		"plan_limits":  plans.LimitsFor(plan),
		"active":       active,
	})
}

// planFromCacheOrContext prefers the redis plan cache refreshed by the
// organization sync, falling back to the projection on the org context.
func planFromCacheOrContext(c *fiber.Ctx) string {
	orgCtx := orgcontext.GetOrgContext(c)
	if cached := payments.CachedPlan(orgCtx.OrganizationID); cached != "" {
		return cached
	}
	return orgCtx.Plan
}
