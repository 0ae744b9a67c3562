// Package protocol defines the CRUD wire vocabulary shared by the client
// and the endpoint: reply modes, response body shapes, query-parameter
// names, and pagination metadata. Both sides must agree on these exactly.
package protocol

import "fmt"

// ReplyMode selects the shape of a write response. It controls response
// shape only, never persistence semantics.
type ReplyMode string

const (
	ReplyID    ReplyMode = "id"
	ReplyCount ReplyMode = "count"
	ReplyWhole ReplyMode = "whole"
)

// ParseReplyMode parses the reply query parameter. Empty defaults to id.
func ParseReplyMode(s string) (ReplyMode, error) {
	switch ReplyMode(s) {
	case "":
		return ReplyID, nil
	case ReplyID, ReplyCount, ReplyWhole:
		return ReplyMode(s), nil
	default:
		return "", fmt.Errorf("invalid reply mode %q", s)
	}
}

// Reserved query parameter names. Anything else in a collection query is an
// attribute filter.
const (
	ParamMaxResults = "max_results"
	ParamPage       = "page"
	ParamFields     = "fields"
	ParamSort       = "sort"
	ParamReply      = "reply"
)

// Identifier field naming: "_id" on the wire, "id" in storage.
const (
	IDFieldWire   = "_id"
	IDFieldStored = "id"
)

// Meta is the pagination block of a query response.
type Meta struct {
	Page                int   `json:"page"`
	TotalAvailableItems int64 `json:"total_available_items"`
	NumItems            int   `json:"num_items"`
	LastPage            int   `json:"last_page"`
}

// NewMeta computes the metadata for one result page. A perPage of 0 means
// unbounded, which always yields a single page.
func NewMeta(total int64, page, perPage, numItems int) Meta {
	lastPage := 1
	if perPage > 0 && total > 0 {
		lastPage = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Meta{
		Page:                page,
		TotalAvailableItems: total,
		NumItems:            numItems,
		LastPage:            lastPage,
	}
}

// QueryResponse is the collection query body: items plus metadata. Items
// are full wire objects, or raw partials under field projection. The item
// type is open so the encoder can use order-preserving objects.
type QueryResponse struct {
	Items []any `json:"_items"`
	Meta  Meta  `json:"_meta"`
}

// Write response shapes, per reply mode.

type CreatedID struct {
	CreatedID int64 `json:"created_id"`
}

type CreatedIDs struct {
	CreatedIDs []int64 `json:"created_ids"`
	NumCreated int     `json:"num_created"`
}

type NumCreated struct {
	NumCreated int `json:"num_created"`
}

type CreatedEntries struct {
	CreatedEntries []map[string]any `json:"created_entries"`
	NumCreated     int              `json:"num_created"`
}

type UpdatedID struct {
	UpdatedID int64 `json:"updated_id"`
}

type NumUpdated struct {
	NumUpdated int `json:"num_updated"`
}

type DeletedID struct {
	DeletedID int64 `json:"deleted_id"`
}

type NumDeleted struct {
	NumDeleted int64 `json:"num_deleted"`
}

// ErrorBody is the generic error response. Server-side detail never leaks
// into it; the original error stays in server logs.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used by the endpoint.
const (
	CodeNotFound    = "not_found"
	CodeBadRequest  = "bad_request"
	CodeServerError = "server_error"
)
