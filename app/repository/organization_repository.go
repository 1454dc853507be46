package repository

import (
	"github.com/tillpoint/tillpoint/app/models"
	"gorm.io/gorm"
)

type organizationRepository struct {
	db *gorm.DB
}

// NewRepositories creates all repository instances backed by the given DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Organization: &organizationRepository{db: db},
	}
}

func (r *organizationRepository) Create(org *models.Organization) error {
	return r.db.Create(org).Error
}

func (r *organizationRepository) GetByID(id uint) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.First(&org, id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) GetByEmail(email string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.Where("email = ?", email).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) GetByAPIKeyHash(hash string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.Where("api_key_hash = ? AND api_key_hash != ''", hash).First(&org).Error; err != nil {
		return nil, err
	}
	if org.APIKeyRevokedAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &org, nil
}

func (r *organizationRepository) Update(org *models.Organization) error {
	return r.db.Save(org).Error
}

func (r *organizationRepository) List(offset, limit int) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&orgs).Error
	return orgs, err
}

func (r *organizationRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Organization{}).Count(&count).Error
	return count, err
}
