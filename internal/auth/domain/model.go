// Package domain contains the admin records and the auth gate contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Admin is the single administrator of one organization. The unique index on
// OrgID enforces the one-admin-per-organization invariant at the storage
// boundary; the unique index on Email keeps an address from administering two
// organizations.
type Admin struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalID   string       `gorm:"type:text;not null" json:"external_id"`
	Email        string       `gorm:"type:text;not null;uniqueIndex:ux_admins_email" json:"email"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	OrgID        snowflake.ID `gorm:"not null;uniqueIndex:ux_admins_org" json:"org_id"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Admin) TableName() string { return "admins" }

// Principal is the authenticated identity resolved from a credential, bound to
// exactly one organization.
type Principal struct {
	AdminID snowflake.ID
	OrgID   snowflake.ID
	Email   string
}
