// Package schema provides declarative record type definitions. A Schema is
// an ordered set of Attributes; each Attribute owns the codec contract for
// one named field, converting between the wire JSON representation (API),
// the flat JSON representation (tabular storage), and in-memory records.
package schema

import (
	"fmt"
	"math"

	"github.com/artpar/schemarest/domain/record"
)

// Identifier keys used by the two representations. The wire protocol names
// the identifier "_id"; tabular storage names it "id".
const (
	WireIDKey = "_id"
	FlatIDKey = "id"
)

// Attribute type discriminators, stored under "type" in the schema's JSON
// self-description and in YAML definition files.
const (
	TypeNumeric       = "numeric"
	TypeInt           = "int"
	TypeCategoric     = "categoric"
	TypeBoolean       = "boolean"
	TypeJSON          = "json"
	TypeOpaqueJSON    = "opaque_json"
	TypeRef           = "ref"
	TypeNumericList   = "numeric_list"
	TypeIntList       = "int_list"
	TypeCategoricList = "categoric_list"
	TypeRefList       = "ref_list"
)

// WireCodec converts one attribute between a record and the wire JSON
// object. The bool result of ToWire reports whether the attribute is set on
// the record; unset attributes are omitted from the encoded object.
type WireCodec interface {
	ToWire(r *record.Record) (any, bool, error)
	FromWire(obj map[string]any, r *record.Record) error
}

// FlatCodec converts one attribute between a record and the flat storage
// JSON object.
type FlatCodec interface {
	ToFlat(r *record.Record) (any, bool, error)
	FromFlat(obj map[string]any, r *record.Record) error
}

// Attribute defines one named field of a record type: its codec pair, its
// constraints, and a deterministic example value.
type Attribute interface {
	// Name returns the field name this attribute owns.
	Name() string

	// Type returns the discriminator for self-description.
	Type() string

	WireCodec
	FlatCodec

	// Example produces a representative in-range value: the midpoint when
	// both bounds are given, min+1 or max-1 with one bound, zero or the
	// first whitelist entry otherwise.
	Example() record.Value

	// describe returns the serializable descriptor for this attribute.
	describe() Descriptor
}

// asFloat coerces the number representations JSON decoders produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// asInt coerces to int64, rejecting fractional floats.
func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case float32:
		f := float64(n)
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("expected integer, got %v", f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func kindError(name string, want record.ValueKind, got record.ValueKind) error {
	return fmt.Errorf("attribute %q holds %s, want %s", name, got, want)
}
