package sqlite

import (
	"fmt"
	"strings"

	"github.com/artpar/schemarest/core/schema"
)

// columnType maps an attribute kind to its SQLite column type. List and
// JSON kinds are stored as JSON text.
func columnType(a schema.Attribute) string {
	switch a.Type() {
	case schema.TypeInt, schema.TypeRef, schema.TypeBoolean:
		return "INTEGER"
	case schema.TypeNumeric:
		return "REAL"
	default:
		return "TEXT"
	}
}

// buildCreateTableSQL generates the CREATE TABLE statement for a schema.
// Numeric bounds and categoric whitelists become CHECK constraints, the
// storage-level counterpart of the advisory codec constraints.
func buildCreateTableSQL(s *schema.Schema, table string) string {
	columns := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}
	var constraints []string

	for _, a := range s.Attributes() {
		columns = append(columns, a.Name()+" "+columnType(a))

		switch attr := a.(type) {
		case *schema.NumericAttr:
			// typeof() guard keeps the NaN text marker valid.
			if min := attr.Min(); min != nil {
				constraints = append(constraints, fmt.Sprintf(
					"CHECK(%s IS NULL OR typeof(%s) = 'text' OR %s >= %v)",
					a.Name(), a.Name(), a.Name(), *min,
				))
			}
			if max := attr.Max(); max != nil {
				constraints = append(constraints, fmt.Sprintf(
					"CHECK(%s IS NULL OR typeof(%s) = 'text' OR %s <= %v)",
					a.Name(), a.Name(), a.Name(), *max,
				))
			}
		case *schema.CategoricAttr:
			if values := attr.Values(); len(values) > 0 {
				quoted := make([]string, len(values))
				for i, v := range values {
					quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
				}
				constraints = append(constraints, fmt.Sprintf(
					"CHECK(%s IS NULL OR %s IN (%s))",
					a.Name(), a.Name(), strings.Join(quoted, ", "),
				))
			}
		}
	}

	sql := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s",
		table,
		strings.Join(columns, ",\n  "),
	)
	if len(constraints) > 0 {
		sql += ",\n  " + strings.Join(constraints, ",\n  ")
	}
	sql += "\n)"
	return sql
}

// buildIndexSQL generates CREATE INDEX statements for the schema's
// secondary-index declarations.
func buildIndexSQL(s *schema.Schema, table string) []string {
	var indexes []string
	for _, idx := range s.Indexes() {
		if len(idx) == 0 {
			continue
		}
		indexes = append(indexes, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			table, strings.Join(idx, "_"), table, strings.Join(idx, ", "),
		))
	}
	return indexes
}

// tableName derives the table name from the schema name. Schema names come
// from trusted definitions, but the quoting keeps odd names workable.
func tableName(s *schema.Schema) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s.Name())
}
