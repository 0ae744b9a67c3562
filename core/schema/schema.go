package schema

import (
	"fmt"
	"reflect"

	"github.com/artpar/schemarest/domain/record"
)

// Schema is an ordered, named collection of attributes plus secondary-index
// declarations. It is the single source of truth for a record type:
// transcoding, validation, example payloads, and storage layout all derive
// from it.
type Schema struct {
	name    string
	attrs   []Attribute
	byName  map[string]Attribute
	indexes [][]string
	keys    []string
}

// New creates a schema. Attribute names must be unique; index declarations
// may only name declared attributes.
func New(name string, attrs []Attribute, indexes ...[]string) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("schema name is required")
	}
	byName := make(map[string]Attribute, len(attrs))
	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a.Name() == "" {
			return nil, fmt.Errorf("schema %q: attribute with empty name", name)
		}
		if _, dup := byName[a.Name()]; dup {
			return nil, fmt.Errorf("schema %q: duplicate attribute %q", name, a.Name())
		}
		byName[a.Name()] = a
		keys = append(keys, a.Name())
	}
	for _, idx := range indexes {
		for _, field := range idx {
			if _, ok := byName[field]; !ok {
				return nil, fmt.Errorf("schema %q: index field %q not declared", name, field)
			}
		}
	}
	return &Schema{
		name:    name,
		attrs:   attrs,
		byName:  byName,
		indexes: indexes,
		keys:    keys,
	}, nil
}

// MustNew is New that panics, for package-level schema literals in tests.
func MustNew(name string, attrs []Attribute, indexes ...[]string) *Schema {
	s, err := New(name, attrs, indexes...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Attributes returns the attributes in declaration order.
func (s *Schema) Attributes() []Attribute { return s.attrs }

// Attribute looks up an attribute by name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// Indexes returns the secondary-index declarations.
func (s *Schema) Indexes() [][]string { return s.indexes }

// AttributeNames returns the declared names in declaration order.
func (s *Schema) AttributeNames() []string { return s.keys }

// NewRecord creates an empty record bound to this schema's attribute set.
func (s *Schema) NewRecord() *record.Record {
	return record.New(s.keys)
}

// RecordToWire encodes a record as a wire JSON object. The identifier is
// always present under "_id", JSON null when unassigned.
func (s *Schema) RecordToWire(r *record.Record) (map[string]any, error) {
	obj := make(map[string]any, len(s.attrs)+1)
	for _, a := range s.attrs {
		v, ok, err := a.ToWire(r)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", s.name, err)
		}
		if ok {
			obj[a.Name()] = v
		}
	}
	if id := r.ID(); id.IsSet() {
		obj[WireIDKey] = id.Value()
	} else {
		obj[WireIDKey] = nil
	}
	return obj, nil
}

// WireToRecord decodes a wire JSON object into a fresh record. Absent keys
// leave attributes unset.
func (s *Schema) WireToRecord(obj map[string]any) (*record.Record, error) {
	r := s.NewRecord()
	for _, a := range s.attrs {
		if err := a.FromWire(obj, r); err != nil {
			return nil, fmt.Errorf("schema %q: %w", s.name, err)
		}
	}
	if err := parseIdentifier(obj, WireIDKey, r); err != nil {
		return nil, fmt.Errorf("schema %q: %w", s.name, err)
	}
	return r, nil
}

// RecordToFlat encodes a record as a flat storage JSON object under "id".
func (s *Schema) RecordToFlat(r *record.Record) (map[string]any, error) {
	obj := make(map[string]any, len(s.attrs)+1)
	for _, a := range s.attrs {
		v, ok, err := a.ToFlat(r)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", s.name, err)
		}
		if ok {
			obj[a.Name()] = v
		}
	}
	if id := r.ID(); id.IsSet() {
		obj[FlatIDKey] = id.Value()
	} else {
		obj[FlatIDKey] = nil
	}
	return obj, nil
}

// FlatToRecord decodes a flat storage JSON object into a fresh record.
func (s *Schema) FlatToRecord(obj map[string]any) (*record.Record, error) {
	r := s.NewRecord()
	for _, a := range s.attrs {
		if err := a.FromFlat(obj, r); err != nil {
			return nil, fmt.Errorf("schema %q: %w", s.name, err)
		}
	}
	if err := parseIdentifier(obj, FlatIDKey, r); err != nil {
		return nil, fmt.Errorf("schema %q: %w", s.name, err)
	}
	return r, nil
}

// Example produces a record with every attribute set to its deterministic
// example value. Used for self-testing and documentation.
func (s *Schema) Example() *record.Record {
	r := s.NewRecord()
	for _, a := range s.attrs {
		// Set cannot fail: every attribute name is declared.
		_ = r.Set(a.Name(), a.Example())
	}
	return r
}

// Equal reports whether two schemas describe the same record type: same
// name, same attribute set with the same constraints, same ordered index
// declarations. Attribute order is presentational (documentation, example
// payloads) and does not participate in equality.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.name != o.name || len(s.attrs) != len(o.attrs) || len(s.indexes) != len(o.indexes) {
		return false
	}
	for _, a := range s.attrs {
		other, ok := o.Attribute(a.Name())
		if !ok || !reflect.DeepEqual(a.describe(), other.describe()) {
			return false
		}
	}
	return reflect.DeepEqual(s.indexes, o.indexes)
}

func parseIdentifier(obj map[string]any, key string, r *record.Record) error {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return nil
	}
	n, err := asInt(raw)
	if err != nil {
		return fmt.Errorf("identifier %q: %w", key, err)
	}
	return r.AssignID(record.NewIdentifier(n))
}
