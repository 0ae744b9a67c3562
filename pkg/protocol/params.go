package protocol

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// QueryParams is the parsed form of a collection query. Pagination and
// projection parameters are split out; everything else becomes an attribute
// filter. Multiple values under one filter key are OR'd.
type QueryParams struct {
	MaxResults int // 0 = unbounded page size
	Page       int // 1-indexed
	Fields     []string
	Sort       []string
	Reply      ReplyMode
	Filters    map[string][]string
}

// ParseQuery parses collection query parameters. Comma-joined values inside
// a single filter value are split into multiple OR'd values, so ?x=a,b
// behaves like ?x=a&x=b. The wire identifier key "_id" is translated to the
// storage key "id" wherever it appears in filters, fields, or sort.
func ParseQuery(values url.Values) (QueryParams, error) {
	q := QueryParams{
		Page:    1,
		Reply:   ReplyID,
		Filters: make(map[string][]string),
	}

	for key, vals := range values {
		switch key {
		case ParamMaxResults:
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 0 {
				return q, fmt.Errorf("invalid %s %q", ParamMaxResults, vals[0])
			}
			q.MaxResults = n
		case ParamPage:
			n, err := strconv.Atoi(vals[0])
			if err != nil || n < 1 {
				return q, fmt.Errorf("invalid %s %q", ParamPage, vals[0])
			}
			q.Page = n
		case ParamFields:
			q.Fields = normalizeIDFields(splitAll(vals))
		case ParamSort:
			q.Sort = normalizeIDFields(splitAll(vals))
		case ParamReply:
			mode, err := ParseReplyMode(vals[0])
			if err != nil {
				return q, err
			}
			q.Reply = mode
		default:
			name := key
			if name == IDFieldWire {
				name = IDFieldStored
			}
			q.Filters[name] = append(q.Filters[name], splitAll(vals)...)
		}
	}

	return q, nil
}

// Encode renders the parameters back into query values, the form the
// client sends. Inverse of ParseQuery up to comma-splitting.
func (q QueryParams) Encode() url.Values {
	values := url.Values{}
	if q.MaxResults > 0 {
		values.Set(ParamMaxResults, strconv.Itoa(q.MaxResults))
	}
	if q.Page > 1 {
		values.Set(ParamPage, strconv.Itoa(q.Page))
	}
	if len(q.Fields) > 0 {
		values.Set(ParamFields, strings.Join(q.Fields, ","))
	}
	if len(q.Sort) > 0 {
		values.Set(ParamSort, strings.Join(q.Sort, ","))
	}
	for name, vals := range q.Filters {
		for _, v := range vals {
			values.Add(name, v)
		}
	}
	return values
}

// LimitOffset converts pagination to storage terms. A limit of 0 means no
// bound.
func (q QueryParams) LimitOffset() (limit, offset int) {
	if q.MaxResults <= 0 {
		return 0, 0
	}
	return q.MaxResults, (q.Page - 1) * q.MaxResults
}

// splitAll flattens repeated parameters and comma-joined values into one
// list, preserving order.
func splitAll(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func normalizeIDFields(fields []string) []string {
	for i, f := range fields {
		if f == IDFieldWire {
			fields[i] = IDFieldStored
		}
	}
	return fields
}
