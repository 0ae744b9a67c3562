package record

import (
	"fmt"
	"sort"
)

// Record is a mutable bundle of named attribute values plus an identifier.
// A record only ever holds keys declared by the schema that constructed it;
// Set rejects anything else.
type Record struct {
	id      Identifier
	allowed map[string]struct{}
	values  map[string]Value
}

// New creates an empty record accepting exactly the given attribute names.
func New(allowed []string) *Record {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}
	return &Record{
		allowed: set,
		values:  make(map[string]Value, len(allowed)),
	}
}

// ID returns the record's identifier, unassigned until first persisted.
func (r *Record) ID() Identifier {
	return r.id
}

// AssignID sets the identifier exactly once. Reassigning to a different
// identity is an error; assigning the same identity again is a no-op.
func (r *Record) AssignID(id Identifier) error {
	if r.id.IsSet() {
		if r.id.Equal(id) {
			return nil
		}
		return fmt.Errorf("identifier already assigned to %s", r.id)
	}
	r.id = id
	return nil
}

// ForceID overwrites the identifier unconditionally. Endpoints use this to
// impose the path identifier over whatever the request body carried.
func (r *Record) ForceID(id Identifier) {
	r.id = id
}

// Set stores a value under an attribute name declared by the owning schema.
func (r *Record) Set(name string, v Value) error {
	if _, ok := r.allowed[name]; !ok {
		return fmt.Errorf("attribute %q not declared by schema", name)
	}
	r.values[name] = v
	return nil
}

// Get returns the value for an attribute name.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Unset removes a value, leaving the attribute absent.
func (r *Record) Unset(name string) {
	delete(r.values, name)
}

// Len returns how many attributes currently hold values.
func (r *Record) Len() int {
	return len(r.values)
}

// Names returns the currently set attribute names, sorted.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy sharing no mutable state with the original. Slice
// contents inside values are not copied; values are treated as immutable.
func (r *Record) Clone() *Record {
	c := &Record{
		id:      r.id,
		allowed: r.allowed,
		values:  make(map[string]Value, len(r.values)),
	}
	for name, v := range r.values {
		c.values[name] = v
	}
	return c
}

// Equal reports whether two records carry the same identity and the same
// values under the same names.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if !r.id.Equal(o.id) {
		return false
	}
	if len(r.values) != len(o.values) {
		return false
	}
	for name, v := range r.values {
		ov, ok := o.values[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
