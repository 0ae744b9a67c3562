// Package flatq evaluates store queries against flat JSON rows in memory.
// The non-relational stores (memory, bolt) share it so filtering and
// sorting behave exactly like the SQL translation in the sqlite store.
package flatq

import (
	"math"
	"sort"
	"strings"
)

// Match reports whether a flat row satisfies the filters: values under one
// key are OR'd, distinct keys are AND'd.
func Match(flat map[string]any, filters map[string][]any) bool {
	for name, vals := range filters {
		have, ok := flat[name]
		if !ok {
			return false
		}
		anyMatch := false
		for _, want := range vals {
			if equal(have, want) {
				anyMatch = true
				break
			}
		}
		if !anyMatch {
			return false
		}
	}
	return true
}

// Sort orders rows ascending by the named fields, first field primary.
// Rows keep their prior relative order when all sort fields tie.
func Sort(rows []map[string]any, fields []string) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, f := range fields {
			c := compare(rows[i][f], rows[j][f])
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// equal compares a stored value with a typed filter value. Numbers compare
// across int64/float64 so an integer filter matches a float column.
func equal(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

// compare orders two stored values. nil sorts first, then numbers (NaN
// lowest), then strings, then bools.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case rankNumber:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case math.IsNaN(af) && math.IsNaN(bf):
			return 0
		case math.IsNaN(af):
			return -1
		case math.IsNaN(bf):
			return 1
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		av, bv := a.(bool), b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	}
	return 0
}

const (
	rankNil = iota
	rankNumber
	rankString
	rankBool
	rankOther
)

func rank(v any) int {
	if v == nil {
		return rankNil
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case bool:
		return rankBool
	}
	return rankOther
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
