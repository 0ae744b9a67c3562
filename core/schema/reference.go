package schema

import (
	"fmt"

	"github.com/artpar/schemarest/domain/record"
)

// RefAttr is a pointer-like field holding the identity of a record in a
// different schema. Both representations carry the identifier's scalar
// value; round-trips go through identifier equality, never raw scalar
// comparison.
type RefAttr struct {
	name string
	to   string
}

// NewRef creates a reference attribute pointing at the named schema.
func NewRef(name, to string) *RefAttr {
	return &RefAttr{name: name, to: to}
}

func (a *RefAttr) Name() string { return a.name }
func (a *RefAttr) Type() string { return TypeRef }

// To returns the target schema name.
func (a *RefAttr) To() string { return a.to }

func (a *RefAttr) ToWire(r *record.Record) (any, bool, error) {
	return a.encode(r)
}

func (a *RefAttr) FromWire(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *RefAttr) ToFlat(r *record.Record) (any, bool, error) {
	return a.encode(r)
}

func (a *RefAttr) FromFlat(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *RefAttr) encode(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	id, ok := v.Ref()
	if !ok {
		return nil, false, kindError(a.name, record.KindRef, v.Kind())
	}
	if !id.IsSet() {
		return nil, true, nil
	}
	return id.Value(), true, nil
}

func (a *RefAttr) parse(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok {
		return nil
	}
	if raw == nil {
		return r.Set(a.name, record.Ref(record.Identifier{}))
	}
	n, err := asInt(raw)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", a.name, err)
	}
	return r.Set(a.name, record.Ref(record.NewIdentifier(n)))
}

func (a *RefAttr) Example() record.Value {
	return record.Ref(record.NewIdentifier(0))
}

func (a *RefAttr) describe() Descriptor {
	return Descriptor{Name: a.name, Type: TypeRef, To: a.to}
}

// RefListAttr is a list of references into another schema. Min/max item
// counts are advisory; the codec does not enforce them.
type RefListAttr struct {
	name               string
	to                 string
	minItems, maxItems *int
}

// NewRefList creates a list-valued reference attribute.
func NewRefList(name, to string, minItems, maxItems *int) *RefListAttr {
	return &RefListAttr{name: name, to: to, minItems: minItems, maxItems: maxItems}
}

func (a *RefListAttr) Name() string { return a.name }
func (a *RefListAttr) Type() string { return TypeRefList }

func (a *RefListAttr) ToWire(r *record.Record) (any, bool, error) {
	return a.encode(r)
}

func (a *RefListAttr) FromWire(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *RefListAttr) ToFlat(r *record.Record) (any, bool, error) {
	return a.encode(r)
}

func (a *RefListAttr) FromFlat(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *RefListAttr) encode(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	ids, ok := v.Refs()
	if !ok {
		return nil, false, kindError(a.name, record.KindRefList, v.Kind())
	}
	out := make([]any, len(ids))
	for i, id := range ids {
		if id.IsSet() {
			out[i] = id.Value()
		}
	}
	return out, true, nil
}

func (a *RefListAttr) parse(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("attribute %q: expected array, got %T", a.name, raw)
	}
	ids := make([]record.Identifier, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		n, err := asInt(item)
		if err != nil {
			return fmt.Errorf("attribute %q[%d]: %w", a.name, i, err)
		}
		ids[i] = record.NewIdentifier(n)
	}
	return r.Set(a.name, record.Refs(ids))
}

func (a *RefListAttr) Example() record.Value {
	n := 1
	if a.minItems != nil && *a.minItems > 1 {
		n = *a.minItems
	}
	ids := make([]record.Identifier, n)
	for i := range ids {
		ids[i] = record.NewIdentifier(0)
	}
	return record.Refs(ids)
}

func (a *RefListAttr) describe() Descriptor {
	return Descriptor{
		Name:     a.name,
		Type:     TypeRefList,
		To:       a.to,
		MinItems: a.minItems,
		MaxItems: a.maxItems,
	}
}
