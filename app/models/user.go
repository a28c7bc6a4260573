package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_CUSTOMER      = "customer"
	ROLE_AUTHENTICATOR = "authenticator"
	ROLE_FINANCE       = "finance"
	ROLE_ADMIN         = "admin"
	STATUS_ACTIVE      = "active"
	STATUS_DISABLED    = "disabled"
)

// User is a profile of anyone who can call the API. Profiles are never hard-deleted.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=2,max=150"`
	Email            string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	Phone            string         `gorm:"type:varchar(40);default:null" json:"phone,omitempty" validate:"max=40"`
	Role             string         `gorm:"type:varchar(30);default:'customer';index" json:"role" validate:"oneof=customer authenticator finance admin"`
	Status           string         `gorm:"type:varchar(30);default:'active'" json:"status" validate:"oneof=active disabled"`
	APIKeyHash       string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix,omitempty"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at,omitempty"`
	APIKeyLastUsedAt *time.Time     `json:"api_key_last_used_at,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "profiles"
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsValidRole reports whether role is one of the known profile roles.
func IsValidRole(role string) bool {
	switch role {
	case ROLE_CUSTOMER, ROLE_AUTHENTICATOR, ROLE_FINANCE, ROLE_ADMIN:
		return true
	}
	return false
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "tfk_"

// HasActiveAPIKey reports whether the user has an API key configured
func (u *User) HasActiveAPIKey() bool {
	return u != nil && u.APIKeyHash != ""
}

// IssueAPIKey generates a new API key, stores its hash on the struct and returns the raw secret.
// Callers must persist the struct after invoking this method.
func (u *User) IssueAPIKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	u.APIKeyHash = hash
	u.APIKeyPrefix = prefix
	u.APIKeyCreatedAt = &now
	u.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// RevokeAPIKey clears the stored API key metadata.
func (u *User) RevokeAPIKey() {
	u.APIKeyHash = ""
	u.APIKeyPrefix = ""
	u.APIKeyLastUsedAt = nil
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
	return rawKey, prefix, HashAPIKey(rawKey), nil
}
