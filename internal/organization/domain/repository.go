package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the metadata adapter for organization control records. Every
// method is a single-record operation; atomicity across org, admin and
// partition is the lifecycle service's job.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, org Organization) error
	GetByName(ctx context.Context, name string) (*Organization, error)
	GetByPartitionID(ctx context.Context, partitionID string) (*Organization, error)
	Rename(ctx context.Context, name, newName, newPartitionID string) error
	Delete(ctx context.Context, name string) error
	ListPartitionIDs(ctx context.Context) ([]string, error)
}
