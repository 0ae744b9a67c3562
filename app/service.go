// Package app contains the application services coordinating schemas,
// storage, and the wire protocol. The HTTP endpoint and the embedded
// in-process mode both drive the same EntryService, so CRUD behavior is
// identical either way.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/core/validation"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/pkg/protocol"
	"github.com/artpar/schemarest/ports"
)

// EntryService implements the CRUD operation vocabulary for one schema over
// an EntryStore. All methods are single synchronous exchanges; the store
// serializes concurrent writes.
type EntryService struct {
	schema *schema.Schema
	store  ports.EntryStore
	logger zerolog.Logger
}

// NewEntryService pairs a schema with its storage collaborator.
func NewEntryService(s *schema.Schema, store ports.EntryStore, logger zerolog.Logger) *EntryService {
	return &EntryService{
		schema: s,
		store:  store,
		logger: logger.With().Str("schema", s.Name()).Logger(),
	}
}

// Schema returns the record type this service operates on.
func (s *EntryService) Schema() *schema.Schema {
	return s.schema
}

// warnAdvisory logs constraint violations without blocking the write.
// Constraints are advisory; only the SQL store rejects them.
func (s *EntryService) warnAdvisory(r *record.Record) {
	if res := validation.Check(s.schema, r); !res.Valid {
		s.logger.Warn().Interface("issues", res.Issues).Msg("record violates advisory constraints")
	}
}

// Create persists one record and assigns its identifier onto the input.
func (s *EntryService) Create(ctx context.Context, r *record.Record) (*record.Record, error) {
	s.warnAdvisory(r)
	flat, err := s.schema.RecordToFlat(r)
	if err != nil {
		return nil, err
	}
	delete(flat, schema.FlatIDKey)

	id, err := s.store.Insert(ctx, flat)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	if err := r.AssignID(id); err != nil {
		return nil, err
	}
	s.logger.Debug().Stringer("id", id).Msg("entry created")
	return r, nil
}

// CreateBatch persists records as one atomic unit. Either every record is
// created or none are; identifiers are assigned in input order.
func (s *EntryService) CreateBatch(ctx context.Context, rs []*record.Record) ([]*record.Record, error) {
	flats := make([]map[string]any, len(rs))
	for i, r := range rs {
		s.warnAdvisory(r)
		flat, err := s.schema.RecordToFlat(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		delete(flat, schema.FlatIDKey)
		flats[i] = flat
	}

	ids, err := s.store.InsertMany(ctx, flats)
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	for i, r := range rs {
		if err := r.AssignID(ids[i]); err != nil {
			return nil, err
		}
	}
	s.logger.Debug().Int("count", len(rs)).Msg("batch created")
	return rs, nil
}

// Read fetches one record by identifier. A miss is ports.ErrNotFound.
func (s *EntryService) Read(ctx context.Context, id record.Identifier) (*record.Record, error) {
	flat, err := s.store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.schema.FlatToRecord(flat)
}

// QueryResult carries one page of query results: decoded records, or raw
// partial objects when field projection was requested.
type QueryResult struct {
	Records  []*record.Record
	Partials []protocol.OrderedObject
	Meta     protocol.Meta
}

// Query selects records by flat equality filters. Multiple values under
// one filter key are OR'd. Pagination is 1-indexed; a zero MaxResults
// returns every match. With Fields set, items come back as raw partials
// containing exactly the requested fields plus the identifier, bypassing
// the full codec: a partial object may not satisfy required-field decode
// rules.
func (s *EntryService) Query(ctx context.Context, q protocol.QueryParams) (*QueryResult, error) {
	filters, err := s.typedFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	limit, offset := q.LimitOffset()
	flats, total, err := s.store.Select(ctx, ports.StoreQuery{
		Filters: filters,
		Sort:    q.Sort,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	result := &QueryResult{
		Meta: protocol.NewMeta(total, q.Page, q.MaxResults, len(flats)),
	}

	if len(q.Fields) > 0 {
		result.Partials = make([]protocol.OrderedObject, len(flats))
		for i, flat := range flats {
			result.Partials[i] = project(flat, q.Fields)
		}
		return result, nil
	}

	result.Records = make([]*record.Record, len(flats))
	for i, flat := range flats {
		r, err := s.schema.FlatToRecord(flat)
		if err != nil {
			return nil, err
		}
		result.Records[i] = r
	}
	return result, nil
}

// Update replaces the entry under the given identifier with the record's
// full contents. The record's own identifier, if any, is overridden by id.
func (s *EntryService) Update(ctx context.Context, id record.Identifier, r *record.Record) (*record.Record, error) {
	r.ForceID(id)
	s.warnAdvisory(r)
	flat, err := s.schema.RecordToFlat(r)
	if err != nil {
		return nil, err
	}
	if err := s.store.Replace(ctx, id, flat); err != nil {
		return nil, err
	}
	s.logger.Debug().Stringer("id", id).Msg("entry updated")
	return r, nil
}

// Delete removes one entry and returns the identifier it removed.
func (s *EntryService) Delete(ctx context.Context, id record.Identifier) (record.Identifier, error) {
	if err := s.store.Remove(ctx, id); err != nil {
		return record.Identifier{}, err
	}
	s.logger.Debug().Stringer("id", id).Msg("entry deleted")
	return id, nil
}

// DeleteAll wipes the collection and returns how many entries were removed.
func (s *EntryService) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.store.RemoveAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("count", n).Msg("collection wiped")
	return n, nil
}

// FilterError reports a query filter the caller got wrong: an undeclared
// attribute, or a value that does not parse as the attribute's type. The
// endpoint answers these with a client error, not a server fault.
type FilterError struct {
	Field string
	Err   error
}

func (e *FilterError) Error() string { return fmt.Sprintf("filter %s: %v", e.Field, e.Err) }

func (e *FilterError) Unwrap() error { return e.Err }

// typedFilters converts raw string filter values to the storage types the
// attribute kinds imply, so equality behaves the same in every store.
func (s *EntryService) typedFilters(raw map[string][]string) (map[string][]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string][]any, len(raw))
	for name, vals := range raw {
		typed := make([]any, len(vals))
		for i, v := range vals {
			tv, err := s.typedFilterValue(name, v)
			if err != nil {
				return nil, err
			}
			typed[i] = tv
		}
		filters[name] = typed
	}
	return filters, nil
}

func (s *EntryService) typedFilterValue(name, v string) (any, error) {
	if name == schema.FlatIDKey {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, &FilterError{Field: name, Err: err}
		}
		return n, nil
	}

	attr, ok := s.schema.Attribute(name)
	if !ok {
		return nil, &FilterError{Field: name, Err: errors.New("attribute not declared")}
	}
	switch attr.Type() {
	case schema.TypeNumeric, schema.TypeNumericList:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &FilterError{Field: name, Err: err}
		}
		return f, nil
	case schema.TypeInt, schema.TypeIntList, schema.TypeRef, schema.TypeRefList:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, &FilterError{Field: name, Err: err}
		}
		return n, nil
	case schema.TypeBoolean:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &FilterError{Field: name, Err: err}
		}
		return b, nil
	default:
		return v, nil
	}
}

// project builds the partial wire object for one flat row: requested fields
// in request order, the identifier always included under its wire name, NaN
// replaced by null so the partial stays JSON-encodable.
func project(flat map[string]any, fields []string) protocol.OrderedObject {
	var obj protocol.OrderedObject
	obj = obj.Set(protocol.IDFieldWire, flat[schema.FlatIDKey])
	for _, f := range fields {
		if f == protocol.IDFieldStored {
			continue
		}
		v, ok := flat[f]
		if !ok {
			continue
		}
		obj = obj.Set(f, sanitize(v))
	}
	return obj
}

func sanitize(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = sanitize(e)
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = sanitize(e)
		}
		return out
	}
	return v
}
