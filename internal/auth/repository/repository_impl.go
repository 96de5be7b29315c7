package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgstore/internal/auth/domain"
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

func (r *repository) Create(ctx context.Context, admin *domain.Admin) error {
	err := r.db.WithContext(ctx).Create(admin).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrAdminExists
	}
	return err
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	var admin domain.Admin
	err := r.db.WithContext(ctx).First(&admin, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Admin, error) {
	var admin domain.Admin
	err := r.db.WithContext(ctx).First(&admin, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}

func (r *repository) DeleteByOrg(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(`DELETE FROM admins WHERE org_id = ?`, orgID).Error
}
