package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/schemarest/adapters/memory"
	"github.com/artpar/schemarest/app"
	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/pkg/protocol"
	"github.com/artpar/schemarest/ports"
)

func fp(v float64) *float64 { return &v }

var readingSchema = schema.MustNew("reading", []schema.Attribute{
	schema.NewNumeric("temperature", fp(-40), fp(120)),
	schema.NewCategoric("label", "a1", "k2", "x4", "z8"),
	schema.NewBoolean("active"),
})

func newService(t *testing.T) *app.EntryService {
	t.Helper()
	return app.NewEntryService(readingSchema, memory.NewEntryStore(), zerolog.Nop())
}

func newRecord(t *testing.T, temperature float64, label string) *record.Record {
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

func TestCreateRead(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	in := newRecord(t, 21.5, "a1")
	created, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.ID().IsSet() {
		t.Fatal("Create must assign an identifier")
	}

	got, err := svc.Read(ctx, created.ID())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Equal(created) {
		t.Errorf("read back record differs:\n  created: %v\n  read:    %v", created, got)
	}
}

func TestRead_NotFound(t *testing.T) {
	svc := newService(t)
	_, err := svc.Read(context.Background(), record.NewIdentifier(404))
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateBatch_AssignsInOrder(t *testing.T) {
	svc := newService(t)
	rs := []*record.Record{
		newRecord(t, 1, "a1"),
		newRecord(t, 2, "k2"),
		newRecord(t, 3, "x4"),
	}
	out, err := svc.CreateBatch(context.Background(), rs)
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	for i, r := range out {
		if r.ID().Value() != int64(i+1) {
			t.Errorf("record %d id = %v, want %d", i, r.ID(), i+1)
		}
	}
}

func TestQuery_Pagination(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := svc.Create(ctx, newRecord(t, float64(i), "a1")); err != nil {
			t.Fatal(err)
		}
	}

	page1, err := svc.Query(ctx, protocol.QueryParams{MaxResults: 6, Page: 1})
	if err != nil {
		t.Fatalf("Query page 1: %v", err)
	}
	if len(page1.Records) != 6 {
		t.Errorf("page 1 has %d records, want 6", len(page1.Records))
	}
	if page1.Meta.TotalAvailableItems != 10 || page1.Meta.LastPage != 2 {
		t.Errorf("page 1 meta = %+v", page1.Meta)
	}

	page2, err := svc.Query(ctx, protocol.QueryParams{MaxResults: 6, Page: 2})
	if err != nil {
		t.Fatalf("Query page 2: %v", err)
	}
	if len(page2.Records) != 4 {
		t.Errorf("page 2 has %d records, want 4", len(page2.Records))
	}
	if page2.Meta.NumItems != 4 || page2.Meta.Page != 2 {
		t.Errorf("page 2 meta = %+v", page2.Meta)
	}
}

func TestQuery_ORFilters(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	labels := []string{"a1", "k2", "x4"}
	for i := 0; i < 15; i++ {
		if _, err := svc.Create(ctx, newRecord(t, float64(i), labels[i%3])); err != nil {
			t.Fatal(err)
		}
	}

	res, err := svc.Query(ctx, protocol.QueryParams{
		Page:    1,
		Filters: map[string][]string{"label": {"a1", "k2"}},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Records) != 10 {
		t.Errorf("matched %d records, want 10", len(res.Records))
	}
	for _, r := range res.Records {
		v, _ := r.Get("label")
		label, _ := v.String()
		if label != "a1" && label != "k2" {
			t.Errorf("record with label %q should not match", label)
		}
	}
}

func TestQuery_Sort(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, label := range []string{"z8", "a1", "x4", "k2"} {
		if _, err := svc.Create(ctx, newRecord(t, 0, label)); err != nil {
			t.Fatal(err)
		}
	}

	res, err := svc.Query(ctx, protocol.QueryParams{Page: 1, Sort: []string{"label"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"a1", "k2", "x4", "z8"}
	for i, r := range res.Records {
		v, _ := r.Get("label")
		got, _ := v.String()
		if got != want[i] {
			t.Errorf("sorted labels[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestQuery_NumericFilterTyping(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	svc.Create(ctx, newRecord(t, 3, "a1"))
	svc.Create(ctx, newRecord(t, 4, "a1"))

	res, err := svc.Query(ctx, protocol.QueryParams{
		Page:    1,
		Filters: map[string][]string{"temperature": {"3"}},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("matched %d, want 1 (string filter typed to float)", len(res.Records))
	}
}

func TestQuery_UndeclaredFilter(t *testing.T) {
	svc := newService(t)
	_, err := svc.Query(context.Background(), protocol.QueryParams{
		Page:    1,
		Filters: map[string][]string{"velocity": {"9"}},
	})
	var fe *app.FilterError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FilterError for undeclared attribute", err)
	}
	if fe.Field != "velocity" {
		t.Errorf("Field = %q, want velocity", fe.Field)
	}
}

func TestQuery_UnparseableFilterValue(t *testing.T) {
	svc := newService(t)
	_, err := svc.Query(context.Background(), protocol.QueryParams{
		Page:    1,
		Filters: map[string][]string{"temperature": {"abc"}},
	})
	var fe *app.FilterError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FilterError for unparseable value", err)
	}
}

func TestQuery_Projection(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	svc.Create(ctx, newRecord(t, 7, "a1"))

	res, err := svc.Query(ctx, protocol.QueryParams{
		Page:   1,
		Fields: []string{"label", "temperature"},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Partials) != 1 || res.Records != nil {
		t.Fatalf("projection should produce partials, got %+v", res)
	}

	obj := res.Partials[0]
	if len(obj) != 3 {
		t.Fatalf("partial has %d members, want 3 (_id + 2 fields): %v", len(obj), obj)
	}
	// Identifier leads, then fields in request order.
	if obj[0].Key != "_id" || obj[1].Key != "label" || obj[2].Key != "temperature" {
		t.Errorf("partial order = %v", obj)
	}
	if v, _ := obj.Get("label"); v != "a1" {
		t.Errorf("label = %v", v)
	}
}

func TestUpdate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, newRecord(t, 1, "a1"))
	if err != nil {
		t.Fatal(err)
	}

	replacement := newRecord(t, 2, "k2")
	updated, err := svc.Update(ctx, created.ID(), replacement)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.ID().Equal(created.ID()) {
		t.Errorf("updated id = %v, want %v", updated.ID(), created.ID())
	}

	got, _ := svc.Read(ctx, created.ID())
	v, _ := got.Get("label")
	if label, _ := v.String(); label != "k2" {
		t.Errorf("label after update = %s, want k2", label)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newService(t)
	_, err := svc.Update(context.Background(), record.NewIdentifier(99), newRecord(t, 1, "a1"))
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	created, _ := svc.Create(ctx, newRecord(t, 1, "a1"))

	deleted, err := svc.Delete(ctx, created.ID())
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted.Equal(created.ID()) {
		t.Errorf("deleted id = %v, want %v", deleted, created.ID())
	}

	if _, err := svc.Read(ctx, created.ID()); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Read after Delete: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Delete(ctx, created.ID()); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("double Delete: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAll(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		svc.Create(ctx, newRecord(t, float64(i), "a1"))
	}

	n, err := svc.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 4 {
		t.Errorf("DeleteAll = %d, want 4", n)
	}

	res, _ := svc.Query(ctx, protocol.QueryParams{Page: 1})
	if len(res.Records) != 0 {
		t.Errorf("records after DeleteAll: %d", len(res.Records))
	}
}

func TestQuery_IDFilter(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	var ids []record.Identifier
	for i := 0; i < 3; i++ {
		r, _ := svc.Create(ctx, newRecord(t, float64(i), "a1"))
		ids = append(ids, r.ID())
	}

	res, err := svc.Query(ctx, protocol.QueryParams{
		Page:    1,
		Filters: map[string][]string{"id": {fmt.Sprint(ids[1].Value())}},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Records) != 1 || !res.Records[0].ID().Equal(ids[1]) {
		t.Errorf("id filter matched %v", res.Records)
	}
}
