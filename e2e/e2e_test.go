// Package e2e drives the full stack: client -> HTTP transport -> endpoint
// -> service -> store, once per storage backend. The same lifecycle must
// hold regardless of what sits behind the service.
package e2e

import (
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/schemarest/adapters/bolt"
	"github.com/artpar/schemarest/adapters/client"
	"github.com/artpar/schemarest/adapters/clock"
	schemahttp "github.com/artpar/schemarest/adapters/http"
	"github.com/artpar/schemarest/adapters/memory"
	"github.com/artpar/schemarest/adapters/metrics"
	"github.com/artpar/schemarest/adapters/sqlite"
	"github.com/artpar/schemarest/app"
	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/pkg/protocol"
	"github.com/artpar/schemarest/ports"
)

func fp(v float64) *float64 { return &v }

var readingSchema = schema.MustNew("reading", []schema.Attribute{
	schema.NewNumeric("temperature", fp(-100), fp(1000)),
	schema.NewCategoric("label", "alpha", "beta", "gamma"),
	schema.NewBoolean("active"),
	schema.NewNumericList("samples", nil, nil, nil, nil),
})

// backends enumerates the storage drivers under test.
var backends = []struct {
	name string
	open func(t *testing.T) ports.EntryStore
}{
	{"memory", func(t *testing.T) ports.EntryStore {
		return memory.NewEntryStore()
	}},
	{"sqlite", func(t *testing.T) ports.EntryStore {
		db, err := sqlite.Open(filepath.Join(t.TempDir(), "e2e.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		store, err := db.EntryStore(context.Background(), readingSchema)
		if err != nil {
			t.Fatalf("sqlite entry store: %v", err)
		}
		return store
	}},
	{"bolt", func(t *testing.T) ports.EntryStore {
		db, err := bolt.Open(filepath.Join(t.TempDir(), "e2e.bolt"))
		if err != nil {
			t.Fatalf("open bolt: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		store, err := db.EntryStore(context.Background(), readingSchema)
		if err != nil {
			t.Fatalf("bolt entry store: %v", err)
		}
		return store
	}},
}

func newClient(t *testing.T, store ports.EntryStore) *client.Client {
	t.Helper()
	h := schemahttp.NewHandler(zerolog.Nop(), clock.Real{}, metrics.NewWith(nil), "e2e")
	h.Register(app.NewEntryService(readingSchema, store, zerolog.Nop()))
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	return client.New(client.Config{
		Schema:    readingSchema,
		Transport: client.NewHTTPTransport(client.HTTPTransportConfig{BaseURL: srv.URL}),
		Retries:   1,
		Logger:    zerolog.Nop(),
	})
}

func newReading(t *testing.T, temperature float64, label string) *record.Record {
	t.Helper()
	r := readingSchema.NewRecord()
	if err := r.Set("temperature", record.Float(temperature)); err != nil {
		t.Fatal(err)
	}
	if err := r.Set("label", record.String(label)); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestLifecycle(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			c := newClient(t, backend.open(t))
			ctx := context.Background()

			// Create and read back.
			created, err := c.Create(ctx, newReading(t, 21.5, "alpha"), protocol.ReplyID)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			got, err := c.Read(ctx, created.ID())
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if !got.Equal(created) {
				t.Errorf("read back differs:\n  created: %v\n  read:    %v", created, got)
			}

			// Batch create, then filter and paginate.
			batch := make([]*record.Record, 9)
			for i := range batch {
				labels := []string{"alpha", "beta", "gamma"}
				batch[i] = newReading(t, float64(i), labels[i%3])
			}
			if _, err := c.BatchCreate(ctx, batch, 4); err != nil {
				t.Fatalf("BatchCreate: %v", err)
			}

			res, err := c.Query(ctx, client.QuerySpec{
				Filters:    map[string][]string{"label": {"alpha", "beta"}},
				Sort:       []string{"label", "temperature"},
				MaxResults: 5,
			})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			// 4 alphas (incl. the first create) + 3 betas.
			if res.Meta.TotalAvailableItems != 7 {
				t.Errorf("total = %d, want 7", res.Meta.TotalAvailableItems)
			}
			if len(res.Records) != 5 {
				t.Errorf("page size = %d, want 5", len(res.Records))
			}
			if res.Meta.LastPage != 2 {
				t.Errorf("last_page = %d, want 2", res.Meta.LastPage)
			}

			// Update replaces the whole entry.
			repl := newReading(t, -5, "gamma")
			updated, err := c.Update(ctx, created.ID(), repl)
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if v, _ := updated.Get("label"); mustStr(t, v) != "gamma" {
				t.Errorf("label after update = %v", v)
			}

			// Delete one, then the rest.
			gone, err := c.Delete(ctx, created.ID())
			if err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if !gone.Equal(created.ID()) {
				t.Errorf("deleted id = %v, want %v", gone, created.ID())
			}
			if _, err := c.Read(ctx, created.ID()); !errors.Is(err, ports.ErrNotFound) {
				t.Errorf("read after delete: err = %v, want ErrNotFound", err)
			}

			n, err := c.DeleteAllEntries(ctx)
			if err != nil {
				t.Fatalf("DeleteAllEntries: %v", err)
			}
			if n != 9 {
				t.Errorf("num_deleted = %d, want 9", n)
			}
		})
	}
}

func TestNaNSurvivesEveryBackend(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			c := newClient(t, backend.open(t))
			ctx := context.Background()

			r := readingSchema.NewRecord()
			if err := r.Set("temperature", record.Float(math.NaN())); err != nil {
				t.Fatal(err)
			}
			if err := r.Set("samples", record.Floats([]float64{1, math.NaN(), 3})); err != nil {
				t.Fatal(err)
			}

			created, err := c.Create(ctx, r, protocol.ReplyID)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			got, err := c.Read(ctx, created.ID())
			if err != nil {
				t.Fatalf("Read: %v", err)
			}

			v, _ := got.Get("temperature")
			if f, _ := v.Float(); !math.IsNaN(f) {
				t.Errorf("temperature = %v, want NaN", f)
			}
			lv, _ := got.Get("samples")
			fs, _ := lv.Floats()
			if len(fs) != 3 || !math.IsNaN(fs[1]) || fs[0] != 1 || fs[2] != 3 {
				t.Errorf("samples = %v, want [1 NaN 3]", fs)
			}
		})
	}
}

func mustStr(t *testing.T, v record.Value) string {
	t.Helper()
	s, ok := v.String()
	if !ok {
		t.Fatalf("value %v is not a string", v)
	}
	return s
}
