package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/tillpoint/tillpoint/app/repository"
	"github.com/tillpoint/tillpoint/internal/pkg/orgcontext"
)

var orgRepository = func() repository.OrganizationRepository {
	return repository.GetGlobalFactory().GetOrganizationRepository()
}

// HandleRotateAPIKey issues a fresh API key for the authenticated organization
// and invalidates the previous one. The raw key is returned exactly once; only
// its hash and prefix are stored.
func HandleRotateAPIKey(c *fiber.Ctx) error {
	orgCtx := orgcontext.GetOrgContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing organization credential"})
	}

	repo := orgRepository()
	org, err := repo.GetByID(orgCtx.OrganizationID)
	if err != nil {
		log.Printf("organization lookup failed for %d: %v", orgCtx.OrganizationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Organization lookup failed"})
	}

	rawKey, err := org.IssueAPIKey()
	if err != nil {
		log.Printf("api key generation failed for organization %d: %v", org.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key generation failed"})
	}
	if err := repo.Update(org); err != nil {
		log.Printf("api key rotation failed for organization %d: %v", org.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key rotation failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"api_key":        rawKey,
		"api_key_prefix": org.APIKeyPrefix,
		"created_at":     org.APIKeyCreatedAt,
	})
}

// HandleRevokeAPIKey revokes the authenticated organization's API key. The
// credential used for this request stops working immediately.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	orgCtx := orgcontext.GetOrgContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing organization credential"})
	}

	repo := orgRepository()
	org, err := repo.GetByID(orgCtx.OrganizationID)
	if err != nil {
		log.Printf("organization lookup failed for %d: %v", orgCtx.OrganizationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Organization lookup failed"})
	}

	org.RevokeAPIKey()
	if err := repo.Update(org); err != nil {
		log.Printf("api key revocation failed for organization %d: %v", org.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key revocation failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
