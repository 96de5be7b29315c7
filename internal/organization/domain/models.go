// Package domain contains persistence models and contracts for the
// organization lifecycle service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Organization is one tenant. PartitionID is derived from Name at creation and
// re-derived on rename; the two always change together. Name lookups are
// case-sensitive.
type Organization struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_name" json:"name"`
	PartitionID string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_partition;column:partition_id" json:"partition_id"`
	AdminID     snowflake.ID `gorm:"not null" json:"admin_id"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
