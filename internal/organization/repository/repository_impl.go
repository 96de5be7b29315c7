package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/orgstore/internal/organization/domain"
	"github.com/smallbiznis/orgstore/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, org domain.Organization) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, partition_id, admin_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.PartitionID,
		org.AdminID,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrOrgExists
	}
	return err
}

func (r *repository) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) GetByPartitionID(ctx context.Context, partitionID string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "partition_id = ?", partitionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrgNotFound
		}
		return nil, err
	}
	return &org, nil
}

// Rename swaps name and partition_id in one statement. This is the single
// linearization point of the rename saga.
func (r *repository) Rename(ctx context.Context, name, newName, newPartitionID string) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET name = ?, partition_id = ?, updated_at = ? WHERE name = ?`,
		newName,
		newPartitionID,
		time.Now().UTC(),
		name,
	)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return domain.ErrOrgExists
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrgNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, name string) error {
	result := r.db.WithContext(ctx).Exec(`DELETE FROM organizations WHERE name = ?`, name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrgNotFound
	}
	return nil
}

func (r *repository) ListPartitionIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Raw(`SELECT partition_id FROM organizations`).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
