package record

import (
	"math"
	"reflect"
)

// ValueKind discriminates the cases of the Value union. There is one case
// per attribute kind the schema layer supports.
type ValueKind int

const (
	KindUnset ValueKind = iota
	KindFloat
	KindInt
	KindString
	KindBool
	KindJSON
	KindRef
	KindFloatList
	KindIntList
	KindStringList
	KindRefList
)

// String returns a short name for the kind, used in error messages.
func (k ValueKind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	case KindRef:
		return "ref"
	case KindFloatList:
		return "float_list"
	case KindIntList:
		return "int_list"
	case KindStringList:
		return "string_list"
	case KindRefList:
		return "ref_list"
	default:
		return "unknown"
	}
}

// Value is a tagged union holding one attribute value. The zero Value is
// unset. Values are immutable once constructed.
type Value struct {
	kind    ValueKind
	f       float64
	i       int64
	s       string
	b       bool
	j       any
	ref     Identifier
	floats  []float64
	ints    []int64
	strings []string
	refs    []Identifier
}

// Float wraps a float64, including NaN.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Int wraps an int64.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// String wraps a string.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bool wraps a bool.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// JSON wraps an arbitrary JSON-shaped value (maps, slices, scalars).
func JSON(v any) Value { return Value{kind: KindJSON, j: v} }

// Ref wraps the identifier of a record in another schema.
func Ref(id Identifier) Value { return Value{kind: KindRef, ref: id} }

// Floats wraps a float64 slice.
func Floats(v []float64) Value { return Value{kind: KindFloatList, floats: v} }

// Ints wraps an int64 slice.
func Ints(v []int64) Value { return Value{kind: KindIntList, ints: v} }

// Strings wraps a string slice.
func Strings(v []string) Value { return Value{kind: KindStringList, strings: v} }

// Refs wraps a slice of identifiers.
func Refs(v []Identifier) Value { return Value{kind: KindRefList, refs: v} }

// Kind returns the union case.
func (v Value) Kind() ValueKind { return v.kind }

// IsSet reports whether the value holds anything.
func (v Value) IsSet() bool { return v.kind != KindUnset }

// Float returns the wrapped float64.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Int returns the wrapped int64.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// String returns the wrapped string.
func (v Value) String() (string, bool) { return v.s, v.kind == KindString }

// Bool returns the wrapped bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// JSON returns the wrapped JSON value.
func (v Value) JSON() (any, bool) { return v.j, v.kind == KindJSON }

// Ref returns the wrapped identifier.
func (v Value) Ref() (Identifier, bool) { return v.ref, v.kind == KindRef }

// Floats returns the wrapped float64 slice.
func (v Value) Floats() ([]float64, bool) { return v.floats, v.kind == KindFloatList }

// Ints returns the wrapped int64 slice.
func (v Value) Ints() ([]int64, bool) { return v.ints, v.kind == KindIntList }

// Strings returns the wrapped string slice.
func (v Value) Strings() ([]string, bool) { return v.strings, v.kind == KindStringList }

// Refs returns the wrapped identifier slice.
func (v Value) Refs() ([]Identifier, bool) { return v.refs, v.kind == KindRefList }

// Equal reports deep equality of two values. NaN compares equal to NaN so
// that codec round-trips through the wire null convention remain checkable.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUnset:
		return true
	case KindFloat:
		return floatEqual(v.f, o.f)
	case KindInt:
		return v.i == o.i
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	case KindJSON:
		return reflect.DeepEqual(v.j, o.j)
	case KindRef:
		return v.ref.Equal(o.ref)
	case KindFloatList:
		if len(v.floats) != len(o.floats) {
			return false
		}
		for i := range v.floats {
			if !floatEqual(v.floats[i], o.floats[i]) {
				return false
			}
		}
		return true
	case KindIntList:
		if len(v.ints) != len(o.ints) {
			return false
		}
		for i := range v.ints {
			if v.ints[i] != o.ints[i] {
				return false
			}
		}
		return true
	case KindStringList:
		if len(v.strings) != len(o.strings) {
			return false
		}
		for i := range v.strings {
			if v.strings[i] != o.strings[i] {
				return false
			}
		}
		return true
	case KindRefList:
		if len(v.refs) != len(o.refs) {
			return false
		}
		for i := range v.refs {
			if !v.refs[i].Equal(o.refs[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}
