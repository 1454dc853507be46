package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint/app/models"
	"github.com/tillpoint/tillpoint/app/repository"
	"github.com/tillpoint/tillpoint/internal/pkg/orgcontext"
)

type fakeOrgRepository struct {
	org       *models.Organization
	updateErr error
}

func (f *fakeOrgRepository) Create(org *models.Organization) error {
	f.org = org
	return nil
}

func (f *fakeOrgRepository) GetByID(id uint) (*models.Organization, error) {
	if f.org == nil || f.org.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.org
	return &copied, nil
}

func (f *fakeOrgRepository) GetByEmail(email string) (*models.Organization, error) {
	if f.org == nil || f.org.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.org
	return &copied, nil
}

func (f *fakeOrgRepository) GetByAPIKeyHash(hash string) (*models.Organization, error) {
	if f.org == nil || f.org.APIKeyHash != hash || f.org.APIKeyRevokedAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.org
	return &copied, nil
}

func (f *fakeOrgRepository) Update(org *models.Organization) error {
	if f.updateErr != nil {
		err := f.updateErr
		f.updateErr = nil
		return err
	}
	copied := *org
	f.org = &copied
	return nil
}

func (f *fakeOrgRepository) List(offset, limit int) ([]models.Organization, error) {
	if f.org == nil {
		return nil, nil
	}
	return []models.Organization{*f.org}, nil
}

func (f *fakeOrgRepository) Count() (int64, error) {
	if f.org == nil {
		return 0, nil
	}
	return 1, nil
}

func newKeyTestApp(t *testing.T, repo repository.OrganizationRepository, orgID uint) *fiber.App {
	t.Helper()

	original := orgRepository
	orgRepository = func() repository.OrganizationRepository { return repo }
	t.Cleanup(func() { orgRepository = original })

	app := fiber.New()
	authed := func(c *fiber.Ctx) error {
		c.Locals(orgcontext.ContextKey, orgcontext.OrgContext{
			OrganizationID:  orgID,
			Name:            "Acme",
			IsAuthenticated: true,
			Plan:            "starter",
		})
		return c.Next()
	}
	app.Post("/api/v1/organizations/api-key/rotate", authed, HandleRotateAPIKey)
	app.Delete("/api/v1/organizations/api-key", authed, HandleRevokeAPIKey)
	app.Post("/api/v1/organizations/api-key/rotate-anon", HandleRotateAPIKey)
	return app
}

func decodeJSONBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &parsed))
	return parsed
}

func TestHandleRotateAPIKeyIssuesFreshKey(t *testing.T) {
	repo := &fakeOrgRepository{org: &models.Organization{ID: 42, Name: "Acme", Email: "billing@acme.test", Status: models.OrgStatusActive}}
	app := newKeyTestApp(t, repo, 42)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/organizations/api-key/rotate", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	parsed := decodeJSONBody(t, resp)
	rawKey, _ := parsed["api_key"].(string)
	require.NotEmpty(t, rawKey)
	assert.Contains(t, rawKey, "tlp_")
	assert.Equal(t, models.HashAPIKey(rawKey), repo.org.APIKeyHash)
	assert.True(t, repo.org.HasActiveAPIKey())
	assert.NotNil(t, repo.org.APIKeyCreatedAt)
}

func TestHandleRotateAPIKeyInvalidatesPreviousKey(t *testing.T) {
	repo := &fakeOrgRepository{org: &models.Organization{ID: 42, Email: "billing@acme.test", Status: models.OrgStatusActive}}
	app := newKeyTestApp(t, repo, 42)

	first, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/organizations/api-key/rotate", nil))
	require.NoError(t, err)
	firstKey, _ := decodeJSONBody(t, first)["api_key"].(string)

	second, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/organizations/api-key/rotate", nil))
	require.NoError(t, err)
	secondKey, _ := decodeJSONBody(t, second)["api_key"].(string)

	require.NotEmpty(t, firstKey)
	require.NotEmpty(t, secondKey)
	assert.NotEqual(t, firstKey, secondKey)

	// Only the newest key resolves to the organization.
	_, err = repo.GetByAPIKeyHash(models.HashAPIKey(firstKey))
	assert.Error(t, err)
	found, err := repo.GetByAPIKeyHash(models.HashAPIKey(secondKey))
	require.NoError(t, err)
	assert.Equal(t, uint(42), found.ID)
}

func TestHandleRevokeAPIKeyClearsCredential(t *testing.T) {
	org := &models.Organization{ID: 42, Email: "billing@acme.test", Status: models.OrgStatusActive}
	_, err := org.IssueAPIKey()
	require.NoError(t, err)
	repo := &fakeOrgRepository{org: org}
	app := newKeyTestApp(t, repo, 42)

	resp, aerr := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/organizations/api-key", nil))
	require.NoError(t, aerr)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.False(t, repo.org.HasActiveAPIKey())
	assert.Empty(t, repo.org.APIKeyHash)
	assert.NotNil(t, repo.org.APIKeyRevokedAt)
}

func TestHandleRotateAPIKeyRequiresAuthentication(t *testing.T) {
	repo := &fakeOrgRepository{org: &models.Organization{ID: 42, Status: models.OrgStatusActive}}
	app := newKeyTestApp(t, repo, 42)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/organizations/api-key/rotate-anon", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
