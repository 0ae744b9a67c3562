// Package bolt implements the EntryStore over bbolt. One bucket per
// schema; rows are msgpack-encoded flat maps, which carry NaN without any
// marker convention.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	bbolt "go.etcd.io/bbolt"

	"github.com/artpar/schemarest/core/flatq"
	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/ports"
)

// DB wraps one bbolt database holding any number of entry collections.
type DB struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// EntryStore creates the bucket for a schema and returns the store bound
// to it.
func (d *DB) EntryStore(ctx context.Context, s *schema.Schema) (*EntryStore, error) {
	bucket := []byte(s.Name())
	err := d.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", s.Name(), err)
	}
	return &EntryStore{db: d.db, bucket: bucket}, nil
}

// EntryStore persists one schema's entries in one bucket, keyed by the
// big-endian identifier.
type EntryStore struct {
	db     *bbolt.DB
	bucket []byte
}

// Insert stores a new entry under the bucket's next sequence value.
func (s *EntryStore) Insert(ctx context.Context, flat map[string]any) (record.Identifier, error) {
	var id record.Identifier
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = insertRow(tx.Bucket(s.bucket), flat)
		return err
	})
	if err != nil {
		return record.Identifier{}, fmt.Errorf("insert: %w", err)
	}
	return id, nil
}

// InsertMany stores a batch in one transaction: all or nothing.
func (s *EntryStore) InsertMany(ctx context.Context, flats []map[string]any) ([]record.Identifier, error) {
	ids := make([]record.Identifier, len(flats))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for i, flat := range flats {
			id, err := insertRow(b, flat)
			if err != nil {
				return err
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	return ids, nil
}

// Fetch retrieves one entry by identifier.
func (s *EntryStore) Fetch(ctx context.Context, id record.Identifier) (map[string]any, error) {
	if !id.IsSet() {
		return nil, ports.ErrNotFound
	}
	var flat map[string]any
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.bucket).Get(idKey(id.Value()))
		if data == nil {
			return ports.ErrNotFound
		}
		var err error
		flat, err = decodeRow(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return flat, nil
}

// Select loads matching rows, sorts them in memory, and paginates. The
// match count is taken before pagination.
func (s *EntryStore) Select(ctx context.Context, q ports.StoreQuery) ([]map[string]any, int64, error) {
	var matched []map[string]any
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(_, data []byte) error {
			flat, err := decodeRow(data)
			if err != nil {
				return err
			}
			if flatq.Match(flat, q.Filters) {
				matched = append(matched, flat)
			}
			return nil
		})
	})
	if err != nil {
		return nil, 0, fmt.Errorf("select: %w", err)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i]["id"].(int64) < matched[j]["id"].(int64)
	})
	flatq.Sort(matched, q.Sort)

	total := int64(len(matched))
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, total, nil
}

// Replace overwrites an existing entry.
func (s *EntryStore) Replace(ctx context.Context, id record.Identifier, flat map[string]any) error {
	if !id.IsSet() {
		return ports.ErrNotFound
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := idKey(id.Value())
		if b.Get(key) == nil {
			return ports.ErrNotFound
		}
		data, err := encodeRow(flat, id.Value())
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// Remove deletes one entry.
func (s *EntryStore) Remove(ctx context.Context, id record.Identifier) error {
	if !id.IsSet() {
		return ports.ErrNotFound
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := idKey(id.Value())
		if b.Get(key) == nil {
			return ports.ErrNotFound
		}
		return b.Delete(key)
	})
}

// RemoveAll drops and recreates the bucket, keeping the sequence.
func (s *EntryStore) RemoveAll(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		n = int64(b.Stats().KeyN)
		seq := b.Sequence()
		if err := tx.DeleteBucket(s.bucket); err != nil {
			return err
		}
		fresh, err := tx.CreateBucket(s.bucket)
		if err != nil {
			return err
		}
		return fresh.SetSequence(seq)
	})
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return n, nil
}

// Close is a no-op; the shared DB owns the file handle.
func (s *EntryStore) Close() error {
	return nil
}

func insertRow(b *bbolt.Bucket, flat map[string]any) (record.Identifier, error) {
	seq, err := b.NextSequence()
	if err != nil {
		return record.Identifier{}, err
	}
	id := int64(seq)
	data, err := encodeRow(flat, id)
	if err != nil {
		return record.Identifier{}, err
	}
	if err := b.Put(idKey(id), data); err != nil {
		return record.Identifier{}, err
	}
	return record.NewIdentifier(id), nil
}

func encodeRow(flat map[string]any, id int64) ([]byte, error) {
	row := make(map[string]any, len(flat)+1)
	for k, v := range flat {
		row[k] = v
	}
	row["id"] = id
	return msgpack.Marshal(row)
}

func decodeRow(data []byte) (map[string]any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	// Loose decoding lands every integer as int64 and every float as
	// float64, matching the flat representation.
	dec.UseLooseInterfaceDecoding(true)
	var flat map[string]any
	if err := dec.Decode(&flat); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return flat, nil
}

func idKey(id int64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(id))
	return key[:]
}
