package bolt_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/artpar/schemarest/adapters/bolt"
	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/ports"
)

var probeSchema = schema.MustNew("probe", []schema.Attribute{
	schema.NewNumeric("depth", nil, nil),
	schema.NewCategoric("state", "up", "down"),
	schema.NewNumericList("readings", nil, nil, nil, nil),
})

func openStore(t *testing.T) *bolt.EntryStore {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.bolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := db.EntryStore(context.Background(), probeSchema)
	if err != nil {
		t.Fatalf("EntryStore: %v", err)
	}
	return store
}

func TestInsertFetch(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, map[string]any{"depth": 4.5, "state": "up"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id.Value() != 1 {
		t.Errorf("first id = %d, want 1", id.Value())
	}

	row, err := store.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if row["depth"] != 4.5 || row["state"] != "up" {
		t.Errorf("row = %v", row)
	}
	if row["id"] != int64(1) {
		t.Errorf("id = %v (%T), want int64 1", row["id"], row["id"])
	}

	if _, err := probeSchema.FlatToRecord(row); err != nil {
		t.Errorf("FlatToRecord on fetched row: %v", err)
	}
}

func TestNaN_CarriedNatively(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, map[string]any{
		"depth":    math.NaN(),
		"readings": []any{1.0, math.NaN()},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	row, err := store.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if f, ok := row["depth"].(float64); !ok || !math.IsNaN(f) {
		t.Errorf("depth = %v (%T), want NaN", row["depth"], row["depth"])
	}
	readings, ok := row["readings"].([]any)
	if !ok || len(readings) != 2 {
		t.Fatalf("readings = %v", row["readings"])
	}
	if f, ok := readings[1].(float64); !ok || !math.IsNaN(f) {
		t.Errorf("readings[1] = %v, want NaN", readings[1])
	}
}

func TestFetch_NotFound(t *testing.T) {
	store := openStore(t)
	if _, err := store.Fetch(context.Background(), record.NewIdentifier(42)); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertMany(t *testing.T) {
	store := openStore(t)
	ids, err := store.InsertMany(context.Background(), []map[string]any{
		{"state": "up"}, {"state": "down"},
	})
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	if len(ids) != 2 || ids[0].Value() != 1 || ids[1].Value() != 2 {
		t.Errorf("ids = %v", ids)
	}
}

func TestSelect(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	seed := []map[string]any{
		{"state": "up", "depth": 3.0},
		{"state": "down", "depth": 1.0},
		{"state": "up", "depth": 2.0},
	}
	if _, err := store.InsertMany(ctx, seed); err != nil {
		t.Fatal(err)
	}

	rows, total, err := store.Select(ctx, ports.StoreQuery{
		Filters: map[string][]any{"state": {"up"}},
		Sort:    []string{"depth"},
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("total = %d, rows = %d", total, len(rows))
	}
	if rows[0]["depth"] != 2.0 || rows[1]["depth"] != 3.0 {
		t.Errorf("sort order wrong: %v", rows)
	}
}

func TestSelect_Pagination(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		store.Insert(ctx, map[string]any{"depth": float64(i)})
	}

	rows, total, err := store.Select(ctx, ports.StoreQuery{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(rows) != 1 {
		t.Errorf("total = %d, page = %d rows; want 5, 1", total, len(rows))
	}
}

func TestReplaceRemove(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id, _ := store.Insert(ctx, map[string]any{"state": "up"})

	if err := store.Replace(ctx, id, map[string]any{"state": "down"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	row, _ := store.Fetch(ctx, id)
	if row["state"] != "down" {
		t.Errorf("state = %v", row["state"])
	}

	if err := store.Replace(ctx, record.NewIdentifier(77), map[string]any{}); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Replace missing: %v", err)
	}
	if err := store.Remove(ctx, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, id); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("double Remove: %v", err)
	}
}

func TestRemoveAll_KeepsSequence(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	store.Insert(ctx, map[string]any{"state": "up"})
	store.Insert(ctx, map[string]any{"state": "up"})

	n, err := store.RemoveAll(ctx)
	if err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if n != 2 {
		t.Errorf("RemoveAll = %d, want 2", n)
	}

	id, _ := store.Insert(ctx, map[string]any{"state": "down"})
	if id.Value() != 3 {
		t.Errorf("id after RemoveAll = %d, want 3 (sequence preserved)", id.Value())
	}
}
