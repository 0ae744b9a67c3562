package schema

import (
	"fmt"
	"math"

	"github.com/artpar/schemarest/domain/record"
)

// NumericAttr is a scalar float field with optional min/max bounds.
//
// NaN handling is explicit: the flat storage path carries NaN through
// unchanged (a relational array column can store it), while the wire path
// encodes NaN as JSON null and decodes wire null back to NaN. JSON encoders
// reject NaN, so the codec never hands NaN to the wire marshaller.
type NumericAttr struct {
	name     string
	min, max *float64
}

// NewNumeric creates a numeric attribute. Either bound may be nil.
func NewNumeric(name string, min, max *float64) *NumericAttr {
	return &NumericAttr{name: name, min: min, max: max}
}

func (a *NumericAttr) Name() string { return a.name }
func (a *NumericAttr) Type() string { return TypeNumeric }

// Min returns the lower bound, nil when unbounded.
func (a *NumericAttr) Min() *float64 { return a.min }

// Max returns the upper bound, nil when unbounded.
func (a *NumericAttr) Max() *float64 { return a.max }

func (a *NumericAttr) ToWire(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	f, ok := v.Float()
	if !ok {
		return nil, false, kindError(a.name, record.KindFloat, v.Kind())
	}
	if math.IsNaN(f) {
		return nil, true, nil
	}
	return f, true, nil
}

func (a *NumericAttr) FromWire(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok {
		return nil
	}
	if raw == nil {
		// Wire null means NaN, not zero.
		return r.Set(a.name, record.Float(math.NaN()))
	}
	f, ok := asFloat(raw)
	if !ok {
		return fmt.Errorf("attribute %q: expected number, got %T", a.name, raw)
	}
	return r.Set(a.name, record.Float(f))
}

func (a *NumericAttr) ToFlat(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	f, ok := v.Float()
	if !ok {
		return nil, false, kindError(a.name, record.KindFloat, v.Kind())
	}
	return f, true, nil
}

func (a *NumericAttr) FromFlat(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	f, ok := asFloat(raw)
	if !ok {
		return fmt.Errorf("attribute %q: expected number, got %T", a.name, raw)
	}
	return r.Set(a.name, record.Float(f))
}

func (a *NumericAttr) Example() record.Value {
	return record.Float(midpoint(a.min, a.max))
}

func (a *NumericAttr) describe() Descriptor {
	return Descriptor{Name: a.name, Type: TypeNumeric, Min: a.min, Max: a.max}
}

// IntAttr is a scalar integer field with optional min/max bounds.
type IntAttr struct {
	name     string
	min, max *int64
}

// NewInt creates an integer attribute. Either bound may be nil.
func NewInt(name string, min, max *int64) *IntAttr {
	return &IntAttr{name: name, min: min, max: max}
}

func (a *IntAttr) Name() string { return a.name }
func (a *IntAttr) Type() string { return TypeInt }

func (a *IntAttr) ToWire(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	n, ok := v.Int()
	if !ok {
		return nil, false, kindError(a.name, record.KindInt, v.Kind())
	}
	return n, true, nil
}

func (a *IntAttr) FromWire(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *IntAttr) ToFlat(r *record.Record) (any, bool, error) {
	return a.ToWire(r)
}

func (a *IntAttr) FromFlat(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *IntAttr) parse(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	n, err := asInt(raw)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", a.name, err)
	}
	return r.Set(a.name, record.Int(n))
}

func (a *IntAttr) Example() record.Value {
	switch {
	case a.min != nil && a.max != nil:
		return record.Int((*a.min + *a.max) / 2)
	case a.min != nil:
		return record.Int(*a.min + 1)
	case a.max != nil:
		return record.Int(*a.max - 1)
	default:
		return record.Int(0)
	}
}

func (a *IntAttr) describe() Descriptor {
	d := Descriptor{Name: a.name, Type: TypeInt}
	if a.min != nil {
		v := float64(*a.min)
		d.Min = &v
	}
	if a.max != nil {
		v := float64(*a.max)
		d.Max = &v
	}
	return d
}

// CategoricAttr is a scalar string field with a whitelist of valid values.
// The whitelist is carried for documentation, example generation, and
// storage-level CHECK constraints; the codec itself does not enforce it.
type CategoricAttr struct {
	name   string
	values []string
}

// NewCategoric creates a categoric attribute with the given whitelist.
func NewCategoric(name string, values ...string) *CategoricAttr {
	return &CategoricAttr{name: name, values: values}
}

func (a *CategoricAttr) Name() string { return a.name }
func (a *CategoricAttr) Type() string { return TypeCategoric }

// Values returns the whitelist.
func (a *CategoricAttr) Values() []string { return a.values }

func (a *CategoricAttr) ToWire(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	s, ok := v.String()
	if !ok {
		return nil, false, kindError(a.name, record.KindString, v.Kind())
	}
	return s, true, nil
}

func (a *CategoricAttr) FromWire(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *CategoricAttr) ToFlat(r *record.Record) (any, bool, error) {
	return a.ToWire(r)
}

func (a *CategoricAttr) FromFlat(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *CategoricAttr) parse(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return fmt.Errorf("attribute %q: expected string, got %T", a.name, raw)
	}
	return r.Set(a.name, record.String(s))
}

func (a *CategoricAttr) Example() record.Value {
	if len(a.values) > 0 {
		return record.String(a.values[0])
	}
	return record.String("")
}

func (a *CategoricAttr) describe() Descriptor {
	return Descriptor{Name: a.name, Type: TypeCategoric, Values: a.values}
}

// BooleanAttr is a scalar boolean field.
type BooleanAttr struct {
	name string
}

// NewBoolean creates a boolean attribute.
func NewBoolean(name string) *BooleanAttr {
	return &BooleanAttr{name: name}
}

func (a *BooleanAttr) Name() string { return a.name }
func (a *BooleanAttr) Type() string { return TypeBoolean }

func (a *BooleanAttr) ToWire(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.Bool()
	if !ok {
		return nil, false, kindError(a.name, record.KindBool, v.Kind())
	}
	return b, true, nil
}

func (a *BooleanAttr) FromWire(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *BooleanAttr) ToFlat(r *record.Record) (any, bool, error) {
	return a.ToWire(r)
}

func (a *BooleanAttr) FromFlat(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *BooleanAttr) parse(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	b, ok := raw.(bool)
	if !ok {
		return fmt.Errorf("attribute %q: expected bool, got %T", a.name, raw)
	}
	return r.Set(a.name, record.Bool(b))
}

func (a *BooleanAttr) Example() record.Value {
	return record.Bool(false)
}

func (a *BooleanAttr) describe() Descriptor {
	return Descriptor{Name: a.name, Type: TypeBoolean}
}

// midpoint implements the shared example policy for float bounds.
func midpoint(min, max *float64) float64 {
	switch {
	case min != nil && max != nil:
		return (*min + *max) / 2
	case min != nil:
		return *min + 1
	case max != nil:
		return *max - 1
	default:
		return 0
	}
}
