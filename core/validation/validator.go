// Package validation checks records against schema constraints. The
// constraints are advisory at the protocol level: only the SQL store
// enforces them at write time, so callers who want early feedback run a
// check before sending. A failed check never blocks a write here.
package validation

import (
	"fmt"
	"math"

	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/domain/record"
)

// Issue reports one constraint violation on one attribute.
type Issue struct {
	Attribute string `json:"attribute"`
	Code      string `json:"code"`
	Value     any    `json:"value,omitempty"`
	Message   string `json:"message"`
}

// Issue codes.
const (
	CodeBelowMin     = "below_min"
	CodeAboveMax     = "above_max"
	CodeNotInValues  = "not_in_values"
	CodeTooFewItems  = "too_few_items"
	CodeTooManyItems = "too_many_items"
)

// Result collects the issues found in one record.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

func (r *Result) add(attr, code string, value any, msg string) {
	r.Valid = false
	r.Issues = append(r.Issues, Issue{Attribute: attr, Code: code, Value: value, Message: msg})
}

// Check validates the set attributes of a record against the schema's
// declared constraints: numeric bounds, categoric whitelists, and list
// item counts. Unset attributes pass; type correctness is the codec's job
// and is assumed here. NaN is exempt from bounds, matching what the SQL
// store's CHECK constraints admit.
func Check(s *schema.Schema, r *record.Record) Result {
	result := Result{Valid: true}

	for _, d := range s.Describe().Attributes {
		v, ok := r.Get(d.Name)
		if !ok || !v.IsSet() {
			continue
		}
		switch d.Type {
		case schema.TypeNumeric:
			if f, ok := v.Float(); ok {
				checkBounds(&result, d, f)
			}
		case schema.TypeInt:
			if i, ok := v.Int(); ok {
				checkBounds(&result, d, float64(i))
			}
		case schema.TypeCategoric:
			if val, ok := v.String(); ok {
				checkWhitelist(&result, d, val)
			}
		case schema.TypeNumericList:
			if fs, ok := v.Floats(); ok {
				checkItemCount(&result, d, len(fs))
				for _, f := range fs {
					checkBounds(&result, d, f)
				}
			}
		case schema.TypeIntList:
			if is, ok := v.Ints(); ok {
				checkItemCount(&result, d, len(is))
				for _, i := range is {
					checkBounds(&result, d, float64(i))
				}
			}
		case schema.TypeCategoricList:
			if ss, ok := v.Strings(); ok {
				checkItemCount(&result, d, len(ss))
				for _, val := range ss {
					checkWhitelist(&result, d, val)
				}
			}
		}
	}
	return result
}

func checkBounds(result *Result, d schema.Descriptor, f float64) {
	if math.IsNaN(f) {
		return
	}
	if d.Min != nil && f < *d.Min {
		result.add(d.Name, CodeBelowMin, f,
			fmt.Sprintf("%v is below the minimum %v", f, *d.Min))
	}
	if d.Max != nil && f > *d.Max {
		result.add(d.Name, CodeAboveMax, f,
			fmt.Sprintf("%v is above the maximum %v", f, *d.Max))
	}
}

func checkWhitelist(result *Result, d schema.Descriptor, s string) {
	for _, allowed := range d.Values {
		if s == allowed {
			return
		}
	}
	result.add(d.Name, CodeNotInValues, s,
		fmt.Sprintf("%q is not one of the declared values", s))
}

func checkItemCount(result *Result, d schema.Descriptor, n int) {
	if d.MinItems != nil && n < *d.MinItems {
		result.add(d.Name, CodeTooFewItems, n,
			fmt.Sprintf("%d items is fewer than the minimum %d", n, *d.MinItems))
	}
	if d.MaxItems != nil && n > *d.MaxItems {
		result.add(d.Name, CodeTooManyItems, n,
			fmt.Sprintf("%d items is more than the maximum %d", n, *d.MaxItems))
	}
}
