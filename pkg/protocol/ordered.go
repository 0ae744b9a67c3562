package protocol

import (
	"bytes"

	gojson "github.com/goccy/go-json"
)

// Member is one key/value pair of an OrderedObject.
type Member struct {
	Key   string
	Value any
}

// OrderedObject is a JSON object that marshals its members in insertion
// order. Field projection uses it so the requested field order survives
// encoding, which plain maps cannot guarantee.
type OrderedObject []Member

// Set appends a member, replacing an existing key in place.
func (o OrderedObject) Set(key string, value any) OrderedObject {
	for i := range o {
		if o[i].Key == key {
			o[i].Value = value
			return o
		}
	}
	return append(o, Member{Key: key, Value: value})
}

// Get returns the value under key.
func (o OrderedObject) Get(key string) (any, bool) {
	for i := range o {
		if o[i].Key == key {
			return o[i].Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the object preserving member order.
func (o OrderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := gojson.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := gojson.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
