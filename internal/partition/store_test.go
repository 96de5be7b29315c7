package partition

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgstore/pkg/db"
	"gorm.io/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	return NewStore(conn, node)
}

func TestCreateExistsDrop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := ID("org_acmecorp")

	exists, err := store.Exists(ctx, id)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Fatal("partition should not exist yet")
	}

	if err := store.Create(ctx, id); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// retried create converges
	if err := store.Create(ctx, id); err != nil {
		t.Fatalf("repeat create failed: %v", err)
	}

	exists, err = store.Exists(ctx, id)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Fatal("partition should exist")
	}

	if err := store.Drop(ctx, id); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	if err := store.Drop(ctx, id); err != nil {
		t.Fatalf("repeat drop failed: %v", err)
	}

	exists, err = store.Exists(ctx, id)
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Fatal("partition should be gone")
	}
}

func TestCreateRejectsInvalidID(t *testing.T) {
	store := newTestStore(t)

	if err := store.Create(context.Background(), ID("organizations")); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestInsertAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := ID("org_acmecorp")

	if err := store.Create(ctx, id); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := store.Insert(ctx, id, datatypes.JSON(`{"sku":"widget"}`))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected generated record id")
	}
	if _, err := store.Insert(ctx, id, datatypes.JSON(`{"sku":"gadget"}`)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	records, err := store.List(ctx, id)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestInsertMissingPartition(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Insert(context.Background(), ID("org_ghost"), datatypes.JSON(`{}`))
	if err != ErrPartitionNotFound {
		t.Fatalf("expected ErrPartitionNotFound, got %v", err)
	}
}

func TestCopyMovesRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src, dst := ID("org_acmecorp"), ID("org_acmeglobal")

	if err := store.Create(ctx, src); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, doc := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		if _, err := store.Insert(ctx, src, datatypes.JSON(doc)); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	if err := store.Copy(ctx, src, dst); err != nil {
		t.Fatalf("copy failed: %v", err)
	}

	srcRecords, err := store.List(ctx, src)
	if err != nil {
		t.Fatalf("list src failed: %v", err)
	}
	if len(srcRecords) != 3 {
		t.Fatalf("source must stay intact, got %d records", len(srcRecords))
	}

	dstRecords, err := store.List(ctx, dst)
	if err != nil {
		t.Fatalf("list dst failed: %v", err)
	}
	if len(dstRecords) != 3 {
		t.Fatalf("expected 3 copied records, got %d", len(dstRecords))
	}
}

func TestCopyIsRetrySafe(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src, dst := ID("org_acmecorp"), ID("org_acmeglobal")

	if err := store.Create(ctx, src); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Insert(ctx, src, datatypes.JSON(`{"n":1}`)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := store.Copy(ctx, src, dst); err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if err := store.Copy(ctx, src, dst); err != nil {
		t.Fatalf("repeat copy failed: %v", err)
	}

	records, err := store.List(ctx, dst)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("repeat copy must not duplicate rows, got %d", len(records))
	}
}

func TestCopyEmptySource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	src, dst := ID("org_acmecorp"), ID("org_acmeglobal")

	if err := store.Create(ctx, src); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Copy(ctx, src, dst); err != nil {
		t.Fatalf("copy of empty partition failed: %v", err)
	}

	records, err := store.List(ctx, dst)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty destination, got %d records", len(records))
	}
}

func TestCopyOntoItselfKeepsRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := ID("org_acmecorp")

	if err := store.Create(ctx, id); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Insert(ctx, id, datatypes.JSON(`{"kind":"widget"}`)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := store.Copy(ctx, id, id); err != nil {
		t.Fatalf("copy failed: %v", err)
	}

	records, err := store.List(ctx, id)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record to survive, got %d", len(records))
	}
}

func TestCopyMissingSource(t *testing.T) {
	store := newTestStore(t)

	err := store.Copy(context.Background(), ID("org_ghost"), ID("org_acmeglobal"))
	if err != ErrPartitionNotFound {
		t.Fatalf("expected ErrPartitionNotFound, got %v", err)
	}
}

func TestOrphans(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []ID{"org_acmecorp", "org_stale", "org_abandoned"} {
		if err := store.Create(ctx, id); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	orphans, err := store.Orphans(ctx, []ID{"org_acmecorp"})
	if err != nil {
		t.Fatalf("orphans failed: %v", err)
	}
	if len(orphans) != 2 {
		t.Fatalf("expected 2 orphans, got %v", orphans)
	}
	if orphans[0] != "org_abandoned" || orphans[1] != "org_stale" {
		t.Fatalf("unexpected orphans %v", orphans)
	}
}
