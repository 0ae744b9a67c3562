package schema

import (
	"fmt"
	"math"

	"github.com/artpar/schemarest/domain/record"
)

// List-valued attributes wrap the scalar codec logic element-wise. Declared
// min/max item counts are advisory: carried in the self-description, never
// enforced by the codec.

// NumericListAttr is a list of floats. The scalar NaN policy applies per
// element: wire null elements decode to NaN, flat elements keep NaN.
type NumericListAttr struct {
	name               string
	min, max           *float64
	minItems, maxItems *int
}

// NewNumericList creates a list-valued numeric attribute.
func NewNumericList(name string, min, max *float64, minItems, maxItems *int) *NumericListAttr {
	return &NumericListAttr{name: name, min: min, max: max, minItems: minItems, maxItems: maxItems}
}

func (a *NumericListAttr) Name() string { return a.name }
func (a *NumericListAttr) Type() string { return TypeNumericList }

func (a *NumericListAttr) ToWire(r *record.Record) (any, bool, error) {
	fs, ok, err := a.values(r)
	if !ok || err != nil {
		return nil, ok, err
	}
	out := make([]any, len(fs))
	for i, f := range fs {
		if math.IsNaN(f) {
			out[i] = nil
		} else {
			out[i] = f
		}
	}
	return out, true, nil
}

func (a *NumericListAttr) FromWire(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("attribute %q: expected array, got %T", a.name, raw)
	}
	fs := make([]float64, len(items))
	for i, item := range items {
		if item == nil {
			fs[i] = math.NaN()
			continue
		}
		f, ok := asFloat(item)
		if !ok {
			return fmt.Errorf("attribute %q[%d]: expected number, got %T", a.name, i, item)
		}
		fs[i] = f
	}
	return r.Set(a.name, record.Floats(fs))
}

func (a *NumericListAttr) ToFlat(r *record.Record) (any, bool, error) {
	fs, ok, err := a.values(r)
	if !ok || err != nil {
		return nil, ok, err
	}
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out, true, nil
}

func (a *NumericListAttr) FromFlat(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("attribute %q: expected array, got %T", a.name, raw)
	}
	fs := make([]float64, len(items))
	for i, item := range items {
		f, ok := asFloat(item)
		if !ok {
			return fmt.Errorf("attribute %q[%d]: expected number, got %T", a.name, i, item)
		}
		fs[i] = f
	}
	return r.Set(a.name, record.Floats(fs))
}

func (a *NumericListAttr) values(r *record.Record) ([]float64, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	fs, ok := v.Floats()
	if !ok {
		return nil, false, kindError(a.name, record.KindFloatList, v.Kind())
	}
	return fs, true, nil
}

func (a *NumericListAttr) Example() record.Value {
	n := 1
	if a.minItems != nil && *a.minItems > 1 {
		n = *a.minItems
	}
	fs := make([]float64, n)
	for i := range fs {
		fs[i] = midpoint(a.min, a.max)
	}
	return record.Floats(fs)
}

func (a *NumericListAttr) describe() Descriptor {
	return Descriptor{
		Name:     a.name,
		Type:     TypeNumericList,
		Min:      a.min,
		Max:      a.max,
		MinItems: a.minItems,
		MaxItems: a.maxItems,
	}
}

// IntListAttr is a list of integers.
type IntListAttr struct {
	name               string
	min, max           *int64
	minItems, maxItems *int
}

// NewIntList creates a list-valued integer attribute.
func NewIntList(name string, min, max *int64, minItems, maxItems *int) *IntListAttr {
	return &IntListAttr{name: name, min: min, max: max, minItems: minItems, maxItems: maxItems}
}

func (a *IntListAttr) Name() string { return a.name }
func (a *IntListAttr) Type() string { return TypeIntList }

func (a *IntListAttr) ToWire(r *record.Record) (any, bool, error) {
	return a.encode(r)
}

func (a *IntListAttr) FromWire(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *IntListAttr) ToFlat(r *record.Record) (any, bool, error) {
	return a.encode(r)
}

func (a *IntListAttr) FromFlat(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *IntListAttr) encode(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	ns, ok := v.Ints()
	if !ok {
		return nil, false, kindError(a.name, record.KindIntList, v.Kind())
	}
	out := make([]any, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return out, true, nil
}

func (a *IntListAttr) parse(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("attribute %q: expected array, got %T", a.name, raw)
	}
	ns := make([]int64, len(items))
	for i, item := range items {
		n, err := asInt(item)
		if err != nil {
			return fmt.Errorf("attribute %q[%d]: %w", a.name, i, err)
		}
		ns[i] = n
	}
	return r.Set(a.name, record.Ints(ns))
}

func (a *IntListAttr) Example() record.Value {
	n := 1
	if a.minItems != nil && *a.minItems > 1 {
		n = *a.minItems
	}
	var v int64
	switch {
	case a.min != nil && a.max != nil:
		v = (*a.min + *a.max) / 2
	case a.min != nil:
		v = *a.min + 1
	case a.max != nil:
		v = *a.max - 1
	}
	ns := make([]int64, n)
	for i := range ns {
		ns[i] = v
	}
	return record.Ints(ns)
}

func (a *IntListAttr) describe() Descriptor {
	d := Descriptor{Name: a.name, Type: TypeIntList, MinItems: a.minItems, MaxItems: a.maxItems}
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

// CategoricListAttr is a list of whitelisted strings.
type CategoricListAttr struct {
	name               string
	values             []string
	minItems, maxItems *int
}

// NewCategoricList creates a list-valued categoric attribute.
func NewCategoricList(name string, values []string, minItems, maxItems *int) *CategoricListAttr {
	return &CategoricListAttr{name: name, values: values, minItems: minItems, maxItems: maxItems}
}

func (a *CategoricListAttr) Name() string { return a.name }
func (a *CategoricListAttr) Type() string { return TypeCategoricList }

func (a *CategoricListAttr) ToWire(r *record.Record) (any, bool, error) {
	return a.encode(r)
}

func (a *CategoricListAttr) FromWire(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *CategoricListAttr) ToFlat(r *record.Record) (any, bool, error) {
	return a.encode(r)
}

func (a *CategoricListAttr) FromFlat(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *CategoricListAttr) encode(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	ss, ok := v.Strings()
	if !ok {
		return nil, false, kindError(a.name, record.KindStringList, v.Kind())
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out, true, nil
}

func (a *CategoricListAttr) parse(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("attribute %q: expected array, got %T", a.name, raw)
	}
	ss := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return fmt.Errorf("attribute %q[%d]: expected string, got %T", a.name, i, item)
		}
		ss[i] = s
	}
	return r.Set(a.name, record.Strings(ss))
}

func (a *CategoricListAttr) Example() record.Value {
	n := 1
	if a.minItems != nil && *a.minItems > 1 {
		n = *a.minItems
	}
	var v string
	if len(a.values) > 0 {
		v = a.values[0]
	}
	ss := make([]string, n)
	for i := range ss {
		ss[i] = v
	}
	return record.Strings(ss)
}

func (a *CategoricListAttr) describe() Descriptor {
	return Descriptor{
		Name:     a.name,
		Type:     TypeCategoricList,
		Values:   a.values,
		MinItems: a.minItems,
		MaxItems: a.maxItems,
	}
}
