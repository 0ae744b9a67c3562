// Package record provides the in-memory data unit: identifiers, typed
// values, and records. This package has NO dependencies on I/O or external
// packages.
package record

import "strconv"

// Identifier is an opaque surrogate key for a persisted record.
// The zero value is "unassigned": a record that has never been stored.
type Identifier struct {
	value    int64
	assigned bool
}

// NewIdentifier creates an assigned identifier wrapping the given value.
func NewIdentifier(v int64) Identifier {
	return Identifier{value: v, assigned: true}
}

// IsSet reports whether the identifier has been assigned.
func (id Identifier) IsSet() bool {
	return id.assigned
}

// Value returns the wrapped scalar. It is 0 for an unassigned identifier;
// callers that need to distinguish must check IsSet first.
func (id Identifier) Value() int64 {
	return id.value
}

// Equal reports whether two identifiers denote the same identity.
// An unassigned identifier is never equal to an assigned one.
func (id Identifier) Equal(other Identifier) bool {
	return id.assigned == other.assigned && id.value == other.value
}

// String renders the identifier for logs and paths.
func (id Identifier) String() string {
	if !id.assigned {
		return "<unset>"
	}
	return strconv.FormatInt(id.value, 10)
}
