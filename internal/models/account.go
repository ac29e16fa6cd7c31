package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// SocialAccount is one per-platform identity a workspace posts as.
// Multiple accounts per platform are distinguished by AccountIndex.
type SocialAccount struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID  string    `gorm:"size:64;index;not null" json:"workspace_id"`
	Platform     string    `gorm:"size:20;index;not null" json:"platform"`
	AccountIndex int       `gorm:"default:0" json:"account_index"`
	Username     string    `gorm:"size:255" json:"username"`
	Active       bool      `gorm:"default:true" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CookieRecord preserves a browser cookie with its original attributes.
// Some platforms need cross-domain cookies, so domain/path matter.
type CookieRecord struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// CookieRecords stores structured cookies as a JSON column
type CookieRecords []CookieRecord

func (c CookieRecords) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *CookieRecords) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	return json.Unmarshal(asBytes(value), c)
}

// Credential is the stored credential bundle for one
// (workspace, platform, account-index). Written only on verify.
type Credential struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	WorkspaceID  string `gorm:"size:64;uniqueIndex:idx_ws_platform_account" json:"workspace_id"`
	Platform     string `gorm:"size:20;uniqueIndex:idx_ws_platform_account;not null" json:"platform"`
	AccountIndex int    `gorm:"uniqueIndex:idx_ws_platform_account;default:0" json:"account_index"`

	// LegacyUserID is the superseded identity scope still honored by the
	// fallback lookup during migration
	LegacyUserID string `gorm:"size:64;index" json:"legacy_user_id"`

	Secrets SecretMap     `gorm:"type:json" json:"secrets"`
	Cookies CookieRecords `gorm:"type:json" json:"cookies"`

	// Identity extracted by adapter verify
	Username    string `gorm:"size:255" json:"username"`
	DisplayName string `gorm:"size:255" json:"display_name"`
	AccountRef  string `gorm:"size:255" json:"account_ref"`

	VerifiedAt *time.Time `json:"verified_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Age returns how old the bundle is, preferring the explicit verification
// timestamp and falling back to the row's last modification time.
func (c *Credential) Age(now time.Time) time.Duration {
	if c.VerifiedAt != nil {
		return now.Sub(*c.VerifiedAt)
	}
	return now.Sub(c.UpdatedAt)
}
