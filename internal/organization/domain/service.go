package domain

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/orgstore/internal/auth/domain"
	"github.com/smallbiznis/orgstore/internal/partition"
	"gorm.io/datatypes"
)

// Service is the tenant lifecycle manager. Each operation runs to completion
// synchronously; there is no pending organization state visible to readers.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*OrganizationResponse, error)
	Get(ctx context.Context, name string) (*OrganizationResponse, error)
	Rename(ctx context.Context, principal *authdomain.Principal, req RenameRequest) (*OrganizationResponse, error)
	Delete(ctx context.Context, principal *authdomain.Principal, name string) error

	InsertRecord(ctx context.Context, principal *authdomain.Principal, name string, doc datatypes.JSON) (*partition.Record, error)
	ListRecords(ctx context.Context, principal *authdomain.Principal, name string) ([]partition.Record, error)

	Orphans(ctx context.Context) ([]partition.ID, error)
}

type CreateRequest struct {
	Name     string
	Email    string
	Password string
}

type RenameRequest struct {
	Name    string
	NewName string
}

type OrganizationResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PartitionID string    `json:"partition_id"`
	AdminEmail  string    `json:"admin_email"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidPassword  = errors.New("invalid_password")
	ErrOrgNotFound      = errors.New("organization_not_found")
	ErrOrgExists        = errors.New("organization_exists")
	ErrInvariant        = errors.New("invariant_violation")
	ErrStoreUnavailable = errors.New("store_unavailable")
)
