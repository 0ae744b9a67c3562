package schema

import (
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Descriptor is the serializable form of one attribute: the "type"
// discriminator plus whichever constraints the kind carries. It doubles as
// the YAML definition shape.
type Descriptor struct {
	Name     string   `json:"name" yaml:"name"`
	Type     string   `json:"type" yaml:"type"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
	To       string   `json:"to,omitempty" yaml:"to,omitempty"`
	MinItems *int     `json:"min_items,omitempty" yaml:"min_items,omitempty"`
	MaxItems *int     `json:"max_items,omitempty" yaml:"max_items,omitempty"`
}

// Document is the serializable form of a whole schema.
type Document struct {
	Name       string       `json:"name" yaml:"name"`
	Attributes []Descriptor `json:"attributes" yaml:"attributes"`
	Indexes    [][]string   `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// UnknownTypeError reports an unrecognized attribute type discriminator
// during schema reconstruction. It is never silently defaulted.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown attribute type %q", e.Type)
}

// Describe returns the schema's serializable document.
func (s *Schema) Describe() Document {
	doc := Document{
		Name:       s.name,
		Attributes: make([]Descriptor, len(s.attrs)),
		Indexes:    s.indexes,
	}
	for i, a := range s.attrs {
		doc.Attributes[i] = a.describe()
	}
	return doc
}

// ToJSON serializes the schema: name, ordered attribute descriptors with
// kind and constraints, and the index list.
func (s *Schema) ToJSON() ([]byte, error) {
	return gojson.Marshal(s.Describe())
}

// FromJSON reconstructs a schema from its ToJSON output.
func FromJSON(data []byte) (*Schema, error) {
	var doc Document
	if err := gojson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema json: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument builds a schema from a deserialized document, dispatching on
// each descriptor's type discriminator.
func FromDocument(doc Document) (*Schema, error) {
	attrs := make([]Attribute, len(doc.Attributes))
	for i, d := range doc.Attributes {
		a, err := attributeFromDescriptor(d)
		if err != nil {
			return nil, fmt.Errorf("schema %q attribute %q: %w", doc.Name, d.Name, err)
		}
		attrs[i] = a
	}
	return New(doc.Name, attrs, doc.Indexes...)
}

func attributeFromDescriptor(d Descriptor) (Attribute, error) {
	switch d.Type {
	case TypeNumeric:
		return NewNumeric(d.Name, d.Min, d.Max), nil
	case TypeInt:
		return NewInt(d.Name, intBound(d.Min), intBound(d.Max)), nil
	case TypeCategoric:
		return NewCategoric(d.Name, d.Values...), nil
	case TypeBoolean:
		return NewBoolean(d.Name), nil
	case TypeJSON:
		return NewJSON(d.Name), nil
	case TypeOpaqueJSON:
		return NewOpaqueJSON(d.Name), nil
	case TypeRef:
		if d.To == "" {
			return nil, fmt.Errorf("ref attribute requires a target schema")
		}
		return NewRef(d.Name, d.To), nil
	case TypeNumericList:
		return NewNumericList(d.Name, d.Min, d.Max, d.MinItems, d.MaxItems), nil
	case TypeIntList:
		return NewIntList(d.Name, intBound(d.Min), intBound(d.Max), d.MinItems, d.MaxItems), nil
	case TypeCategoricList:
		return NewCategoricList(d.Name, d.Values, d.MinItems, d.MaxItems), nil
	case TypeRefList:
		if d.To == "" {
			return nil, fmt.Errorf("ref_list attribute requires a target schema")
		}
		return NewRefList(d.Name, d.To, d.MinItems, d.MaxItems), nil
	default:
		return nil, &UnknownTypeError{Type: d.Type}
	}
}

func intBound(v *float64) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}
