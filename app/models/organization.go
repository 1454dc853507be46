package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	OrgStatusActive   = "active"
	OrgStatusInactive = "inactive"
)

// Organization is the tenant entity. The subscription_* columns are a
// denormalized projection of the Subscription row for read convenience; they
// are refreshed best-effort after a subscription commit and may lag behind.
type Organization struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Name                string         `gorm:"type:varchar(200);not null" json:"name"`
	Email               string         `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	Status              string         `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	SubscriptionStatus  string         `gorm:"type:varchar(16);not null;default:'inactive'" json:"subscription_status"`
	SubscriptionPlan    string         `gorm:"type:varchar(50);not null;default:'free'" json:"subscription_plan"`
	SubscriptionEndDate *time.Time     `gorm:"type:timestamp;default:null" json:"subscription_end_date,omitempty"`
	TrialStartDate      *time.Time     `gorm:"type:timestamp;default:null" json:"trial_start_date,omitempty"`
	LifetimePayments    int64          `gorm:"not null;default:0" json:"lifetime_payments"`
	APIKeyHash          string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix        string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt     *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt    *time.Time     `json:"api_key_last_used_at"`
	APIKeyRevokedAt     *time.Time     `json:"api_key_revoked_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "tlp_"

// HasActiveAPIKey reports whether the organization has an active API key configured
func (o *Organization) HasActiveAPIKey() bool {
	return o != nil && o.APIKeyHash != "" && o.APIKeyRevokedAt == nil
}

// IssueAPIKey generates a new API key, persists metadata on the struct, and returns the raw secret.
// Callers must persist the struct via the database after invoking this method.
func (o *Organization) IssueAPIKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	o.APIKeyHash = hash
	o.APIKeyPrefix = prefix
	o.APIKeyCreatedAt = &now
	o.APIKeyRevokedAt = nil
	o.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// RevokeAPIKey clears the stored API key metadata without deleting the record.
func (o *Organization) RevokeAPIKey() {
	o.APIKeyHash = ""
	o.APIKeyPrefix = ""
	now := time.Now()
	o.APIKeyRevokedAt = &now
	o.APIKeyLastUsedAt = nil
}

// TouchAPIKeyUsage updates the last-used timestamp metadata.
func (o *Organization) TouchAPIKeyUsage() {
	now := time.Now()
	o.APIKeyLastUsedAt = &now
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	prefix := rawKey[:min(len(rawKey), 16)]
	hash := HashAPIKey(rawKey)
	return rawKey, prefix, hash, nil
}
