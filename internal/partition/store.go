package partition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrPartitionNotFound = errors.New("partition_not_found")
	ErrInvalidID         = errors.New("invalid_partition_id")
)

// Record is one tenant-domain document inside a partition. The payload is
// opaque to the service; it is only ever moved or copied, never inspected.
type Record struct {
	ID        snowflake.ID   `json:"id"`
	Doc       datatypes.JSON `json:"doc"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store manages partition tables in the shared database. Each partition is an
// independently addressable table named by its ID.
type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewStore(db *gorm.DB, genID *snowflake.Node) *Store {
	return &Store{db: db, genID: genID}
}

// Create allocates an empty partition. Creating a partition that already
// exists is a no-op so a retried create converges.
func (s *Store) Create(ctx context.Context, id ID) error {
	if !id.Valid() {
		return ErrInvalidID
	}
	return s.db.WithContext(ctx).Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			doc TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, id,
	)).Error
}

// Exists reports whether the partition table is present.
func (s *Store) Exists(ctx context.Context, id ID) (bool, error) {
	if !id.Valid() {
		return false, ErrInvalidID
	}
	return s.db.WithContext(ctx).Migrator().HasTable(id.String()), nil
}

// Drop removes the partition. Dropping an absent partition is a no-op.
func (s *Store) Drop(ctx context.Context, id ID) error {
	if !id.Valid() {
		return ErrInvalidID
	}
	return s.db.WithContext(ctx).Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, id)).Error
}

// Copy copies every record from src into a fresh dst, leaving src intact. The
// destination is recreated first so a rename retried after a crash converges
// instead of duplicating rows. An empty source yields an empty destination.
// Copying a partition onto itself leaves it untouched; the recreate step would
// otherwise destroy it.
func (s *Store) Copy(ctx context.Context, src, dst ID) error {
	if !src.Valid() || !dst.Valid() {
		return ErrInvalidID
	}
	if src == dst {
		return nil
	}

	exists, err := s.Exists(ctx, src)
	if err != nil {
		return err
	}
	if !exists {
		return ErrPartitionNotFound
	}

	if err := s.Drop(ctx, dst); err != nil {
		return err
	}
	if err := s.Create(ctx, dst); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Exec(fmt.Sprintf(
		`INSERT INTO %s (id, doc, created_at) SELECT id, doc, created_at FROM %s`, dst, src,
	)).Error
}

// Insert stores one opaque document in the partition.
func (s *Store) Insert(ctx context.Context, id ID, doc datatypes.JSON) (*Record, error) {
	if !id.Valid() {
		return nil, ErrInvalidID
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPartitionNotFound
	}

	record := &Record{
		ID:        s.genID.Generate(),
		Doc:       doc,
		CreatedAt: time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Exec(fmt.Sprintf(
		`INSERT INTO %s (id, doc, created_at) VALUES (?, ?, ?)`, id,
	), record.ID, string(record.Doc), record.CreatedAt).Error
	if err != nil {
		return nil, err
	}

	return record, nil
}

// List enumerates every record in the partition.
func (s *Store) List(ctx context.Context, id ID) ([]Record, error) {
	if !id.Valid() {
		return nil, ErrInvalidID
	}

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPartitionNotFound
	}

	var rows []struct {
		ID        int64
		Doc       string
		CreatedAt time.Time
	}
	err = s.db.WithContext(ctx).Raw(fmt.Sprintf(
		`SELECT id, doc, created_at FROM %s ORDER BY id`, id,
	)).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			ID:        snowflake.ID(row.ID),
			Doc:       datatypes.JSON(row.Doc),
			CreatedAt: row.CreatedAt,
		})
	}
	return records, nil
}

// Orphans returns every partition table with no owner in the given set. A
// crash between partition creation and the metadata insert leaves exactly this
// kind of table behind; the sweep makes it reclaimable.
func (s *Store) Orphans(ctx context.Context, owned []ID) ([]ID, error) {
	tables, err := s.db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, err
	}

	ownedSet := make(map[ID]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}

	var orphans []ID
	for _, table := range tables {
		if !strings.HasPrefix(table, idPrefix) {
			continue
		}
		id := ID(table)
		if !id.Valid() {
			continue
		}
		if _, ok := ownedSet[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	return orphans, nil
}
