package orgcontext

import "github.com/gofiber/fiber/v2"

// Locals key shared between the auth middleware and handlers.
const ContextKey = "ORG_CONTEXT"

// OrgContext represents the authenticated organization for a request
type OrgContext struct {
	OrganizationID  uint   `json:"organization_id"`
	Name            string `json:"name"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Plan            string `json:"plan"`
}

// GetOrgContext retrieves the organization context from fiber context
// Returns a default anonymous context if none is set
func GetOrgContext(c *fiber.Ctx) OrgContext {
	if ctx := c.Locals(ContextKey); ctx != nil {
		return ctx.(OrgContext)
	}
	return OrgContext{IsAuthenticated: false}
}

// IsAuthenticated checks if the current request carries a valid organization credential
func IsAuthenticated(c *fiber.Ctx) bool {
	return GetOrgContext(c).IsAuthenticated
}

// GetOrganizationID returns the current organization's ID, or 0 if unauthenticated
func GetOrganizationID(c *fiber.Ctx) uint {
	return GetOrgContext(c).OrganizationID
}
