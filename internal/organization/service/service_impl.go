package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	authdomain "github.com/smallbiznis/orgstore/internal/auth/domain"
	"github.com/smallbiznis/orgstore/internal/auth/password"
	authservice "github.com/smallbiznis/orgstore/internal/auth/service"
	"github.com/smallbiznis/orgstore/internal/locking"
	"github.com/smallbiznis/orgstore/internal/observability/metrics"
	"github.com/smallbiznis/orgstore/internal/organization/domain"
	"github.com/smallbiznis/orgstore/internal/partition"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// service orchestrates the lifecycle sagas across the metadata repositories
// and the partition store. Every operation locks the organization name and
// the partition id the name derives; distinct names can collide on one
// partition id, so keying by name alone would let two operations touch the
// same partition table concurrently. Operations on unrelated names run
// concurrently.
type service struct {
	log        *zap.Logger
	db         *gorm.DB
	repo       domain.Repository
	admins     authdomain.Repository
	gate       authdomain.Service
	partitions *partition.Store
	locks      locking.Keyed
	genID      *snowflake.Node
	metrics    *metrics.Lifecycle
}

func NewService(
	log *zap.Logger,
	conn *gorm.DB,
	repo domain.Repository,
	admins authdomain.Repository,
	gate authdomain.Service,
	partitions *partition.Store,
	locks locking.Keyed,
	genID *snowflake.Node,
	lifecycleMetrics *metrics.Lifecycle,
) domain.Service {
	return &service{
		log:        log.Named("organization.service"),
		db:         conn,
		repo:       repo,
		admins:     admins,
		gate:       gate,
		partitions: partitions,
		locks:      locks,
		genID:      genID,
		metrics:    lifecycleMetrics,
	}
}

// Create allocates the partition first, then inserts the org and admin control
// records in one transaction. A crash between the two leaves an orphaned
// partition that Orphans reports; re-running the create converges because the
// partition create is idempotent.
func (s *service) Create(ctx context.Context, req domain.CreateRequest) (_ *domain.OrganizationResponse, err error) {
	defer func() { s.metrics.Observe("create", err) }()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	email, emailErr := authservice.NormalizeEmail(req.Email)
	if emailErr != nil {
		return nil, authdomain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	partitionID, err := partition.DeriveID(name)
	if err != nil {
		return nil, domain.ErrInvalidName
	}

	release, err := s.acquireAll(ctx, name, partitionID.String())
	if err != nil {
		return nil, s.storeErr(err)
	}
	defer release()

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, domain.ErrOrgExists
	} else if !errors.Is(err, domain.ErrOrgNotFound) {
		return nil, s.storeErr(err)
	}

	// Distinct names can normalize to the same partition id; the id must stay
	// unique across live organizations.
	if _, err := s.repo.GetByPartitionID(ctx, partitionID.String()); err == nil {
		return nil, domain.ErrOrgExists
	} else if !errors.Is(err, domain.ErrOrgNotFound) {
		return nil, s.storeErr(err)
	}

	if _, err := s.admins.FindByEmail(ctx, email); err == nil {
		return nil, authdomain.ErrAdminExists
	} else if !errors.Is(err, authdomain.ErrAdminNotFound) {
		return nil, s.storeErr(err)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	if err := s.partitions.Create(ctx, partitionID); err != nil {
		return nil, s.storeErr(err)
	}

	now := time.Now().UTC()
	org := domain.Organization{
		ID:          s.genID.Generate(),
		Name:        name,
		PartitionID: partitionID.String(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	admin := &authdomain.Admin{
		ID:           s.genID.Generate(),
		ExternalID:   uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		OrgID:        org.ID,
		CreatedAt:    now,
	}
	org.AdminID = admin.ID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Insert(ctx, org); err != nil {
			return err
		}
		return s.admins.WithTx(tx).Create(ctx, admin)
	})
	if err != nil {
		// The partition allocated above is now an orphan; the sweep reclaims
		// it. Nothing else became visible.
		s.log.Warn("create aborted after partition allocation",
			zap.String("name", name),
			zap.String("partition_id", partitionID.String()),
			zap.Error(err))
		return nil, s.storeErr(err)
	}

	s.log.Info("organization created",
		zap.String("name", name),
		zap.String("partition_id", partitionID.String()))

	return response(&org, email), nil
}

// Get is a pure read with no auth requirement and no side effects.
func (s *service) Get(ctx context.Context, name string) (_ *domain.OrganizationResponse, err error) {
	defer func() { s.metrics.Observe("get", err) }()

	org, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, s.storeErr(err)
	}

	email := ""
	admin, err := s.admins.FindByID(ctx, org.AdminID)
	if err == nil {
		email = admin.Email
	} else if !errors.Is(err, authdomain.ErrAdminNotFound) {
		return nil, s.storeErr(err)
	} else {
		s.log.Warn("organization has no admin record", zap.String("name", org.Name))
	}

	return response(org, email), nil
}

// Rename migrates the tenant partition to the id derived from the new name.
// The metadata swap is the commit point; the old partition is retained until
// the swap succeeds so a crash mid-rename never loses data, and dropped
// best-effort afterwards.
func (s *service) Rename(ctx context.Context, principal *authdomain.Principal, req domain.RenameRequest) (_ *domain.OrganizationResponse, err error) {
	defer func() { s.metrics.Observe("rename", err) }()

	name := strings.TrimSpace(req.Name)
	newName := strings.TrimSpace(req.NewName)
	if name == "" {
		return nil, domain.ErrOrgNotFound
	}
	newPartitionID, err := partition.DeriveID(newName)
	if err != nil {
		return nil, domain.ErrInvalidName
	}
	currentPartitionID, err := partition.DeriveID(name)
	if err != nil {
		return nil, domain.ErrOrgNotFound
	}

	// Both partition ids stay locked through the best-effort drop below so a
	// concurrent create of a colliding name cannot adopt a partition that is
	// about to be dropped.
	release, err := s.acquireAll(ctx, name, newName, currentPartitionID.String(), newPartitionID.String())
	if err != nil {
		return nil, s.storeErr(err)
	}
	defer release()

	org, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, s.storeErr(err)
	}
	if err := s.gate.Authorize(principal, org.ID); err != nil {
		return nil, err
	}

	email := s.adminEmail(ctx, org)

	// Renaming to the current name is a no-op success.
	if newName == name {
		return response(org, email), nil
	}

	if _, err := s.repo.GetByName(ctx, newName); err == nil {
		return nil, domain.ErrOrgExists
	} else if !errors.Is(err, domain.ErrOrgNotFound) {
		return nil, s.storeErr(err)
	}

	oldPartitionID := partition.ID(org.PartitionID)

	if newPartitionID != oldPartitionID {
		if other, err := s.repo.GetByPartitionID(ctx, newPartitionID.String()); err == nil && other.ID != org.ID {
			return nil, domain.ErrOrgExists
		} else if err != nil && !errors.Is(err, domain.ErrOrgNotFound) {
			return nil, s.storeErr(err)
		}

		if err := s.partitions.Copy(ctx, oldPartitionID, newPartitionID); err != nil {
			if errors.Is(err, partition.ErrPartitionNotFound) {
				s.log.Error("organization partition missing",
					zap.String("name", name),
					zap.String("partition_id", org.PartitionID))
				return nil, domain.ErrInvariant
			}
			return nil, s.storeErr(err)
		}
	}

	// Commit point.
	if err := s.repo.Rename(ctx, name, newName, newPartitionID.String()); err != nil {
		return nil, s.storeErr(err)
	}

	if newPartitionID != oldPartitionID {
		if err := s.partitions.Drop(ctx, oldPartitionID); err != nil {
			// The rename is committed; the stale source partition is a
			// harmless orphan reclaimed by the sweep.
			s.log.Warn("failed to drop old partition",
				zap.String("partition_id", oldPartitionID.String()),
				zap.Error(err))
		}
	}

	s.log.Info("organization renamed",
		zap.String("name", name),
		zap.String("new_name", newName),
		zap.String("partition_id", newPartitionID.String()))

	org.Name = newName
	org.PartitionID = newPartitionID.String()
	return response(org, email), nil
}

// Delete removes the admin and org control records in one transaction, then
// drops the partition best-effort. Once the transaction commits the
// organization no longer exists from any reader's perspective.
func (s *service) Delete(ctx context.Context, principal *authdomain.Principal, name string) (err error) {
	defer func() { s.metrics.Observe("delete", err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrOrgNotFound
	}
	partitionID, err := partition.DeriveID(name)
	if err != nil {
		return domain.ErrOrgNotFound
	}

	// The partition id stays locked through the best-effort drop below so a
	// concurrent create of a colliding name cannot adopt the partition before
	// it is dropped.
	release, err := s.acquireAll(ctx, name, partitionID.String())
	if err != nil {
		return s.storeErr(err)
	}
	defer release()

	org, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return s.storeErr(err)
	}
	if err := s.gate.Authorize(principal, org.ID); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.admins.WithTx(tx).DeleteByOrg(ctx, org.ID); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Delete(ctx, name)
	})
	if err != nil {
		return s.storeErr(err)
	}

	if err := s.partitions.Drop(ctx, partition.ID(org.PartitionID)); err != nil {
		s.log.Warn("failed to drop partition",
			zap.String("partition_id", org.PartitionID),
			zap.Error(err))
	}

	s.log.Info("organization deleted", zap.String("name", name))
	return nil
}

func (s *service) InsertRecord(ctx context.Context, principal *authdomain.Principal, name string, doc datatypes.JSON) (_ *partition.Record, err error) {
	defer func() { s.metrics.Observe("insert_record", err) }()

	org, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, s.storeErr(err)
	}
	if err := s.gate.Authorize(principal, org.ID); err != nil {
		return nil, err
	}

	record, err := s.partitions.Insert(ctx, partition.ID(org.PartitionID), doc)
	if err != nil {
		if errors.Is(err, partition.ErrPartitionNotFound) {
			return nil, domain.ErrInvariant
		}
		return nil, s.storeErr(err)
	}
	return record, nil
}

func (s *service) ListRecords(ctx context.Context, principal *authdomain.Principal, name string) (_ []partition.Record, err error) {
	defer func() { s.metrics.Observe("list_records", err) }()

	org, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, s.storeErr(err)
	}
	if err := s.gate.Authorize(principal, org.ID); err != nil {
		return nil, err
	}

	records, err := s.partitions.List(ctx, partition.ID(org.PartitionID))
	if err != nil {
		if errors.Is(err, partition.ErrPartitionNotFound) {
			return nil, domain.ErrInvariant
		}
		return nil, s.storeErr(err)
	}
	return records, nil
}

// Orphans lists partitions no live organization references. Scheduling the
// reclaim is left to the operator; the sweep itself is idempotent.
func (s *service) Orphans(ctx context.Context) (_ []partition.ID, err error) {
	defer func() { s.metrics.Observe("orphans", err) }()

	ids, err := s.repo.ListPartitionIDs(ctx)
	if err != nil {
		return nil, s.storeErr(err)
	}

	owned := make([]partition.ID, 0, len(ids))
	for _, id := range ids {
		owned = append(owned, partition.ID(id))
	}

	orphans, err := s.partitions.Orphans(ctx, owned)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return orphans, nil
}

func (s *service) adminEmail(ctx context.Context, org *domain.Organization) string {
	admin, err := s.admins.FindByID(ctx, org.AdminID)
	if err != nil {
		return ""
	}
	return admin.Email
}

// acquireAll locks every distinct key in lexical order so two operations
// crossing each other on any subset of keys cannot deadlock.
func (s *service) acquireAll(ctx context.Context, keys ...string) (func(), error) {
	distinct := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		distinct = append(distinct, key)
	}
	sort.Strings(distinct)

	releases := make([]func(), 0, len(distinct))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range distinct {
		release, err := s.locks.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// storeErr folds unexpected store failures into the taxonomy so a raw driver
// error never reaches the caller. Domain sentinels pass through untouched.
func (s *service) storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOrgNotFound),
		errors.Is(err, domain.ErrOrgExists),
		errors.Is(err, domain.ErrInvariant),
		errors.Is(err, authdomain.ErrAdminNotFound),
		errors.Is(err, authdomain.ErrAdminExists),
		errors.Is(err, partition.ErrInvalidID),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
}

func response(org *domain.Organization, adminEmail string) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:          org.ID.String(),
		Name:        org.Name,
		PartitionID: org.PartitionID,
		AdminEmail:  adminEmail,
		CreatedAt:   org.CreatedAt,
	}
}
