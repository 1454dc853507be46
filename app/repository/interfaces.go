package repository

import (
	"github.com/tillpoint/tillpoint/app/models"
)

// OrganizationRepository defines the interface for organization-related database operations
type OrganizationRepository interface {
	Create(org *models.Organization) error
	GetByID(id uint) (*models.Organization, error)
	GetByEmail(email string) (*models.Organization, error)
	GetByAPIKeyHash(hash string) (*models.Organization, error)
	Update(org *models.Organization) error
	List(offset, limit int) ([]models.Organization, error)
	Count() (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Organization OrganizationRepository
}
