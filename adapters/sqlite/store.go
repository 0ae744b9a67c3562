// Package sqlite implements the EntryStore over SQLite. One table per
// schema, one column per attribute; list and JSON attributes are stored as
// JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	gojson "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/ports"
)

// nanMarker stores NaN in REAL columns, which SQLite's dynamic typing
// allows. The decoder restores it to a float NaN before the flat codec
// sees the row.
const nanMarker = "NaN"

// DB wraps one SQLite database holding any number of entry collections.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path with the usual pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &DB{db: db}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// EntryStore creates the table and indexes for a schema and returns the
// store bound to it.
func (d *DB) EntryStore(ctx context.Context, s *schema.Schema) (*EntryStore, error) {
	table := tableName(s)

	if _, err := d.db.ExecContext(ctx, buildCreateTableSQL(s, table)); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	for _, indexSQL := range buildIndexSQL(s, table) {
		if _, err := d.db.ExecContext(ctx, indexSQL); err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	return &EntryStore{db: d.db, schema: s, table: table}, nil
}

// EntryStore persists one schema's entries in one table.
type EntryStore struct {
	db     *sql.DB
	schema *schema.Schema
	table  string
}

// Insert stores a new entry and returns the rowid-assigned identifier.
func (s *EntryStore) Insert(ctx context.Context, flat map[string]any) (record.Identifier, error) {
	insertSQL, values, err := s.buildInsert(flat)
	if err != nil {
		return record.Identifier{}, err
	}
	res, err := s.db.ExecContext(ctx, insertSQL, values...)
	if err != nil {
		return record.Identifier{}, fmt.Errorf("insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return record.Identifier{}, fmt.Errorf("insert id: %w", err)
	}
	return record.NewIdentifier(id), nil
}

// InsertMany stores a batch inside one transaction, so either every entry
// commits or none do.
func (s *EntryStore) InsertMany(ctx context.Context, flats []map[string]any) ([]record.Identifier, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ids := make([]record.Identifier, len(flats))
	for i, flat := range flats {
		insertSQL, values, err := s.buildInsert(flat)
		if err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx, insertSQL, values...)
		if err != nil {
			return nil, fmt.Errorf("insert %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert %d id: %w", i, err)
		}
		ids[i] = record.NewIdentifier(id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// Fetch retrieves one entry by identifier.
func (s *EntryStore) Fetch(ctx context.Context, id record.Identifier) (map[string]any, error) {
	if !id.IsSet() {
		return nil, ports.ErrNotFound
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ?",
		strings.Join(s.columns(), ", "), s.table,
	)
	row := s.db.QueryRowContext(ctx, query, id.Value())
	flat, err := s.scanRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return flat, nil
}

// Select filters, sorts, and paginates. The match count is taken before
// pagination.
func (s *EntryStore) Select(ctx context.Context, q ports.StoreQuery) ([]map[string]any, int64, error) {
	whereClause, args := s.buildWhere(q.Filters)

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.table, whereClause)
	var total int64
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	querySQL := fmt.Sprintf(
		"SELECT %s FROM %s%s%s",
		strings.Join(s.columns(), ", "), s.table, whereClause, s.buildOrder(q.Sort),
	)
	if q.Limit > 0 {
		querySQL += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		flat, err := s.scanRow(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		results = append(results, flat)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("select: %w", err)
	}
	return results, total, nil
}

// Replace overwrites every attribute column of one entry.
func (s *EntryStore) Replace(ctx context.Context, id record.Identifier, flat map[string]any) error {
	if !id.IsSet() {
		return ports.ErrNotFound
	}

	var sets []string
	var values []any
	for _, a := range s.schema.Attributes() {
		v, err := encodeValue(a, flat[a.Name()])
		if err != nil {
			return err
		}
		sets = append(sets, a.Name()+" = ?")
		values = append(values, v)
	}
	if len(sets) == 0 {
		return nil
	}
	values = append(values, id.Value())

	updateSQL := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ?",
		s.table, strings.Join(sets, ", "),
	)
	res, err := s.db.ExecContext(ctx, updateSQL, values...)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Remove deletes one entry.
func (s *EntryStore) Remove(ctx context.Context, id record.Identifier) error {
	if !id.IsSet() {
		return ports.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table), id.Value())
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// RemoveAll wipes the table.
func (s *EntryStore) RemoveAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table)
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return res.RowsAffected()
}

// Close is a no-op; the shared DB owns the connection.
func (s *EntryStore) Close() error {
	return nil
}

func (s *EntryStore) columns() []string {
	cols := make([]string, 0, len(s.schema.Attributes())+1)
	cols = append(cols, "id")
	for _, a := range s.schema.Attributes() {
		cols = append(cols, a.Name())
	}
	return cols
}

func (s *EntryStore) buildInsert(flat map[string]any) (string, []any, error) {
	var columns []string
	var placeholders []string
	var values []any

	for _, a := range s.schema.Attributes() {
		raw, ok := flat[a.Name()]
		if !ok {
			continue
		}
		v, err := encodeValue(a, raw)
		if err != nil {
			return "", nil, err
		}
		columns = append(columns, a.Name())
		placeholders = append(placeholders, "?")
		values = append(values, v)
	}

	if len(columns) == 0 {
		// An entry with no attribute values still gets a row and an id.
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", s.table), nil, nil
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
	return insertSQL, values, nil
}

func (s *EntryStore) buildWhere(filters map[string][]any) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	var conditions []string
	var args []any
	// Iterate attributes in declaration order for a stable statement.
	for _, name := range append([]string{"id"}, s.schema.AttributeNames()...) {
		vals, ok := filters[name]
		if !ok || len(vals) == 0 {
			continue
		}
		placeholders := make([]string, len(vals))
		for i, v := range vals {
			placeholders[i] = name + " = ?"
			args = append(args, filterArg(v))
		}
		conditions = append(conditions, "("+strings.Join(placeholders, " OR ")+")")
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (s *EntryStore) buildOrder(sortFields []string) string {
	var fields []string
	for _, f := range sortFields {
		if f == "id" {
			fields = append(fields, "id ASC")
			continue
		}
		// Only declared attributes may appear in ORDER BY.
		if _, ok := s.schema.Attribute(f); ok {
			fields = append(fields, f+" ASC")
		}
	}
	// Stable tiebreaker.
	fields = append(fields, "id ASC")
	return " ORDER BY " + strings.Join(fields, ", ")
}

// scanRow reads one row into the flat representation.
func (s *EntryStore) scanRow(scan func(...any) error) (map[string]any, error) {
	attrs := s.schema.Attributes()
	values := make([]any, len(attrs)+1)
	dest := make([]any, len(attrs)+1)
	for i := range values {
		dest[i] = &values[i]
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}

	flat := make(map[string]any, len(attrs)+1)
	flat["id"] = values[0]
	for i, a := range attrs {
		v, err := decodeValue(a, values[i+1])
		if err != nil {
			return nil, err
		}
		if v != nil {
			flat[a.Name()] = v
		}
	}
	return flat, nil
}

func filterArg(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

// encodeValue converts a flat value to a database value.
func encodeValue(a schema.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch a.Type() {
	case schema.TypeNumeric:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("column %s: expected float64, got %T", a.Name(), v)
		}
		if math.IsNaN(f) {
			return nanMarker, nil
		}
		return f, nil
	case schema.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("column %s: expected bool, got %T", a.Name(), v)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case schema.TypeNumericList:
		// The NaN marker only applies here: every legitimate element is a
		// number, so the text form is unambiguous.
		data, err := gojson.Marshal(markNaN(v))
		if err != nil {
			return nil, fmt.Errorf("column %s: serialize: %w", a.Name(), err)
		}
		return string(data), nil
	case schema.TypeIntList, schema.TypeCategoricList, schema.TypeRefList, schema.TypeOpaqueJSON:
		data, err := gojson.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: serialize: %w", a.Name(), err)
		}
		return string(data), nil
	default:
		return v, nil
	}
}

// decodeValue converts a database value back to a flat value.
func decodeValue(a schema.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch a.Type() {
	case schema.TypeNumeric:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case string:
			if n == nanMarker {
				return math.NaN(), nil
			}
		case []byte:
			if string(n) == nanMarker {
				return math.NaN(), nil
			}
		}
		return nil, fmt.Errorf("column %s: unexpected value %v", a.Name(), v)
	case schema.TypeBoolean:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("column %s: expected integer, got %T", a.Name(), v)
		}
		return n != 0, nil
	case schema.TypeNumericList, schema.TypeIntList, schema.TypeCategoricList,
		schema.TypeRefList, schema.TypeOpaqueJSON:
		text, err := asText(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", a.Name(), err)
		}
		var decoded any
		if err := gojson.Unmarshal([]byte(text), &decoded); err != nil {
			return nil, fmt.Errorf("column %s: parse: %w", a.Name(), err)
		}
		if a.Type() == schema.TypeNumericList {
			decoded = restoreNaN(decoded)
		}
		return decoded, nil
	case schema.TypeJSON, schema.TypeCategoric:
		return asText(v)
	default:
		return v, nil
	}
}

func asText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	}
	return "", fmt.Errorf("expected text, got %T", v)
}

// markNaN replaces NaN floats with the text marker before JSON encoding,
// which rejects NaN.
func markNaN(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nanMarker
		}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = markNaN(e)
		}
		return out
	}
	return v
}

// restoreNaN is the inverse of markNaN.
func restoreNaN(v any) any {
	switch x := v.(type) {
	case string:
		if x == nanMarker {
			return math.NaN()
		}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = restoreNaN(e)
		}
		return out
	}
	return v
}
