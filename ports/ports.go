// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/artpar/schemarest/domain/record"
)

// ErrNotFound reports a successful, well-formed lookup whose identifier
// does not exist. It is distinct from transport or storage failure.
var ErrNotFound = errors.New("entry not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Sleeper abstracts retry delays so tests do not wait in real time.
// Sleep returns early with the context error when the context is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Transport is the black-box request/response primitive the CRUD client
// drives. A non-nil error means the request never produced a response
// (timeout, connection refused); non-2xx statuses come back as data.
type Transport interface {
	Send(ctx context.Context, verb, path string, params url.Values, headers map[string]string, body []byte) (status int, respBody []byte, err error)
}

// -----------------------------------------------------------------------------
// Storage Ports
// -----------------------------------------------------------------------------

// StoreQuery selects entries from a store. Filter keys use storage naming
// ("id", never "_id"); multiple values under one key are OR'd, distinct
// keys are AND'd. Sort fields apply ascending in the order given.
type StoreQuery struct {
	Filters map[string][]any
	Sort    []string
	Limit   int // 0 = unbounded
	Offset  int
}

// EntryStore persists the flat-JSON representation of one record
// collection, keyed by identifier. The store assigns identifiers on Insert
// and is solely responsible for write atomicity.
type EntryStore interface {
	// Insert stores a new entry and returns its assigned identifier.
	Insert(ctx context.Context, flat map[string]any) (record.Identifier, error)

	// InsertMany stores a batch of entries atomically: either every entry
	// is created, or none are. Identifiers come back in input order.
	InsertMany(ctx context.Context, flats []map[string]any) ([]record.Identifier, error)

	// Fetch retrieves one entry by identifier. Returns ErrNotFound for a
	// missing identifier.
	Fetch(ctx context.Context, id record.Identifier) (map[string]any, error)

	// Select retrieves matching entries plus the total match count before
	// pagination.
	Select(ctx context.Context, q StoreQuery) ([]map[string]any, int64, error)

	// Replace overwrites the entry under the given identifier entirely.
	// Returns ErrNotFound when the identifier does not exist.
	Replace(ctx context.Context, id record.Identifier, flat map[string]any) error

	// Remove deletes one entry. Returns ErrNotFound when absent.
	Remove(ctx context.Context, id record.Identifier) error

	// RemoveAll wipes the collection and returns how many entries went.
	RemoveAll(ctx context.Context) (int64, error)

	// Close releases the underlying resources.
	Close() error
}
