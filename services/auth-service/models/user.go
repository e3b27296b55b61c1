package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID       string  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email    *string `gorm:"uniqueIndex" json:"email,omitempty"`
	Password string  `json:"-"`
	Name     string  `json:"name,omitempty"`
	// ExternalID is the resolved reporting identity for Darpan and Gmail
	// logins (possibly NGO_ or GMAIL_ prefixed). It is the id the hazard
	// service keys points and votes on.
	ExternalID *string        `gorm:"uniqueIndex" json:"external_id,omitempty"`
	Role       string         `gorm:"default:'citizen'" json:"role"`
	Phone      string         `json:"phone,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// ReportingID returns the identity used by the hazard service: the resolved
// external id when present, the account id otherwise.
func (u *User) ReportingID() string {
	if u.ExternalID != nil && *u.ExternalID != "" {
		return *u.ExternalID
	}
	return u.ID
}
