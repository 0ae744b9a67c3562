package schema

import (
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/artpar/schemarest/domain/record"
)

// JSONAttr is a nested-JSON field. It stays a nested object on the wire but
// serializes to a string for flat storage, so a single text column can hold
// it.
type JSONAttr struct {
	name string
}

// NewJSON creates a nested-JSON attribute.
func NewJSON(name string) *JSONAttr {
	return &JSONAttr{name: name}
}

func (a *JSONAttr) Name() string { return a.name }
func (a *JSONAttr) Type() string { return TypeJSON }

func (a *JSONAttr) ToWire(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	j, ok := v.JSON()
	if !ok {
		return nil, false, kindError(a.name, record.KindJSON, v.Kind())
	}
	return j, true, nil
}

func (a *JSONAttr) FromWire(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	return r.Set(a.name, record.JSON(raw))
}

func (a *JSONAttr) ToFlat(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	j, ok := v.JSON()
	if !ok {
		return nil, false, kindError(a.name, record.KindJSON, v.Kind())
	}
	data, err := gojson.Marshal(j)
	if err != nil {
		return nil, false, fmt.Errorf("attribute %q: serialize: %w", a.name, err)
	}
	return string(data), true, nil
}

func (a *JSONAttr) FromFlat(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return fmt.Errorf("attribute %q: expected serialized string, got %T", a.name, raw)
	}
	var j any
	if err := gojson.Unmarshal([]byte(s), &j); err != nil {
		return fmt.Errorf("attribute %q: parse: %w", a.name, err)
	}
	return r.Set(a.name, record.JSON(j))
}

func (a *JSONAttr) Example() record.Value {
	return record.JSON(map[string]any{})
}

func (a *JSONAttr) describe() Descriptor {
	return Descriptor{Name: a.name, Type: TypeJSON}
}

// OpaqueJSONAttr is a JSON field passed through verbatim on both paths.
// Neither representation reinterprets it; storage keeps the nested value
// as-is.
type OpaqueJSONAttr struct {
	name string
}

// NewOpaqueJSON creates an opaque JSON attribute.
func NewOpaqueJSON(name string) *OpaqueJSONAttr {
	return &OpaqueJSONAttr{name: name}
}

func (a *OpaqueJSONAttr) Name() string { return a.name }
func (a *OpaqueJSONAttr) Type() string { return TypeOpaqueJSON }

func (a *OpaqueJSONAttr) ToWire(r *record.Record) (any, bool, error) {
	v, ok := r.Get(a.name)
	if !ok {
		return nil, false, nil
	}
	j, ok := v.JSON()
	if !ok {
		return nil, false, kindError(a.name, record.KindJSON, v.Kind())
	}
	return j, true, nil
}

func (a *OpaqueJSONAttr) FromWire(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *OpaqueJSONAttr) ToFlat(r *record.Record) (any, bool, error) {
	return a.ToWire(r)
}

func (a *OpaqueJSONAttr) FromFlat(obj map[string]any, r *record.Record) error {
	return a.parse(obj, r)
}

func (a *OpaqueJSONAttr) parse(obj map[string]any, r *record.Record) error {
	raw, ok := obj[a.name]
	if !ok || raw == nil {
		return nil
	}
	return r.Set(a.name, record.JSON(raw))
}

func (a *OpaqueJSONAttr) Example() record.Value {
	return record.JSON(map[string]any{})
}

func (a *OpaqueJSONAttr) describe() Descriptor {
	return Descriptor{Name: a.name, Type: TypeOpaqueJSON}
}
