package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint/app/models"
	"github.com/tillpoint/tillpoint/app/repository"
	"github.com/tillpoint/tillpoint/internal/pkg/database"
	"github.com/tillpoint/tillpoint/internal/pkg/orgcontext"
)

// APIKeyAuthMiddleware authenticates requests carrying an organization API key header.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		db := database.GetDB()
		if db == nil {
			log.Print("api key middleware: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetOrganizationRepository()
		org, err := repo.GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if org.Status != models.OrgStatusActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Organization inactive"})
		}

		// Refresh last-used timestamp best-effort.
		org.TouchAPIKeyUsage()
		if err := db.Model(&models.Organization{}).
			Where("id = ?", org.ID).
			Updates(map[string]any{"api_key_last_used_at": org.APIKeyLastUsedAt}).Error; err != nil {
			log.Printf("failed to update api key usage timestamp for organization %d: %v", org.ID, err)
		}

		orgCtx := orgcontext.OrgContext{
			OrganizationID:  org.ID,
			Name:            org.Name,
			IsAuthenticated: true,
			Plan:            org.SubscriptionPlan,
		}
		c.Locals(orgcontext.ContextKey, orgCtx)

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
