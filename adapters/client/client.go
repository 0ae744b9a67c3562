// Package client implements the CRUD protocol from the caller side. A
// Client drives any Transport (the real HTTP transport or an in-process
// fake) and decodes results into records, so behavior is identical
// against a remote service or an embedded store.
package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/artpar/schemarest/adapters/clock"
	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/pkg/protocol"
	"github.com/artpar/schemarest/ports"
)

// Config configures a Client.
type Config struct {
	Schema    *schema.Schema
	Transport ports.Transport

	// BasePath is the collection path; defaults to "/" + schema name.
	BasePath string

	// Retries is how many additional attempts follow a transport failure.
	Retries int

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration

	// Sleeper defaults to a real sleeper; tests inject a fake.
	Sleeper ports.Sleeper

	Logger zerolog.Logger
}

// Client issues CRUD operations for one schema.
type Client struct {
	schema    *schema.Schema
	transport ports.Transport
	sleeper   ports.Sleeper
	logger    zerolog.Logger
	basePath  string
	retries   int
	delay     time.Duration
}

// New creates a client from its configuration.
func New(cfg Config) *Client {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/" + cfg.Schema.Name()
	}
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = clock.RealSleeper{}
	}
	return &Client{
		schema:    cfg.Schema,
		transport: cfg.Transport,
		sleeper:   sleeper,
		logger:    cfg.Logger.With().Str("schema", cfg.Schema.Name()).Logger(),
		basePath:  basePath,
		retries:   cfg.Retries,
		delay:     cfg.RetryDelay,
	}
}

// Create persists one record. The reply mode controls response shape only;
// with mode id or whole the returned record carries its new identifier.
// Any transport or decode failure yields no result, never a partial record.
func (c *Client) Create(ctx context.Context, rec *record.Record, mode protocol.ReplyMode) (*record.Record, error) {
	wire, err := c.schema.RecordToWire(rec)
	if err != nil {
		return nil, err
	}
	body, err := gojson.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	params := url.Values{protocol.ParamReply: {string(mode)}}

	switch mode {
	case protocol.ReplyCount:
		var out protocol.NumCreated
		if err := c.send(ctx, "POST", c.basePath, params, body, &out); err != nil {
			return nil, err
		}
		if out.NumCreated != 1 {
			return nil, &DecodeError{Reason: fmt.Sprintf("expected num_created=1, got %d", out.NumCreated)}
		}
		return rec, nil
	case protocol.ReplyWhole:
		var out map[string]any
		if err := c.send(ctx, "POST", c.basePath, params, body, &out); err != nil {
			return nil, err
		}
		return c.schema.WireToRecord(out)
	default:
		var out protocol.CreatedID
		if err := c.send(ctx, "POST", c.basePath, params, body, &out); err != nil {
			return nil, err
		}
		if out.CreatedID == 0 {
			return nil, &DecodeError{Reason: "response lacks created_id"}
		}
		if err := rec.AssignID(record.NewIdentifier(out.CreatedID)); err != nil {
			return nil, err
		}
		return rec, nil
	}
}

// BatchCreate persists records in batches of batchSize, one request per
// batch, and assigns identifiers in input order. Each batch is atomic on
// the server; across batches there is no atomicity. When a later batch
// fails, earlier batches may have committed remotely, and BatchCreate
// stops and reports failure without partial results.
func (c *Client) BatchCreate(ctx context.Context, recs []*record.Record, batchSize int) ([]*record.Record, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	params := url.Values{protocol.ParamReply: {string(protocol.ReplyID)}}

	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		body, err := c.encodeBatch(batch)
		if err != nil {
			return nil, err
		}
		var out protocol.CreatedIDs
		if err := c.send(ctx, "POST", c.basePath, params, body, &out); err != nil {
			return nil, fmt.Errorf("batch %d: %w", start/batchSize, err)
		}
		if len(out.CreatedIDs) != len(batch) {
			return nil, &DecodeError{Reason: fmt.Sprintf(
				"batch %d: expected %d created ids, got %d", start/batchSize, len(batch), len(out.CreatedIDs),
			)}
		}
		for i, rec := range batch {
			if err := rec.AssignID(record.NewIdentifier(out.CreatedIDs[i])); err != nil {
				return nil, err
			}
		}
	}
	return recs, nil
}

// BatchCreateAsync persists records like BatchCreate but requests count
// replies, skipping client-side decode and identifier assignment. It
// returns the running total of created entries.
func (c *Client) BatchCreateAsync(ctx context.Context, recs []*record.Record, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive")
	}
	params := url.Values{protocol.ParamReply: {string(protocol.ReplyCount)}}

	total := 0
	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		body, err := c.encodeBatch(batch)
		if err != nil {
			return 0, err
		}
		var out protocol.NumCreated
		if err := c.send(ctx, "POST", c.basePath, params, body, &out); err != nil {
			return 0, fmt.Errorf("batch %d: %w", start/batchSize, err)
		}
		total += out.NumCreated
	}
	return total, nil
}

// Read fetches one record. A miss surfaces as ports.ErrNotFound; transport
// failure surfaces as its own error. Either way there is no result.
func (c *Client) Read(ctx context.Context, id record.Identifier) (*record.Record, error) {
	var out map[string]any
	if err := c.send(ctx, "GET", c.entryPath(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return c.schema.WireToRecord(out)
}

// QuerySpec selects records: flat equality filters (values under one key
// OR'd), 1-indexed pagination, ascending multi-field sort, and optional
// field projection.
type QuerySpec struct {
	Filters    map[string][]string
	MaxResults int
	Page       int
	Fields     []string
	Sort       []string
}

// QueryResult is one page of results. Records is set for full queries;
// Partials holds raw projected objects when Fields was requested.
type QueryResult struct {
	Records  []*record.Record
	Partials []map[string]any
	Meta     protocol.Meta
}

// Query runs a filtered, paginated, sorted query.
func (c *Client) Query(ctx context.Context, spec QuerySpec) (*QueryResult, error) {
	page := spec.Page
	if page < 1 {
		page = 1
	}
	params := protocol.QueryParams{
		MaxResults: spec.MaxResults,
		Page:       page,
		Fields:     spec.Fields,
		Sort:       spec.Sort,
		Filters:    spec.Filters,
	}.Encode()

	var out protocol.QueryResponse
	if err := c.send(ctx, "GET", c.basePath, params, nil, &out); err != nil {
		return nil, err
	}

	result := &QueryResult{Meta: out.Meta}
	if len(spec.Fields) > 0 {
		result.Partials = make([]map[string]any, 0, len(out.Items))
		for _, item := range out.Items {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, &DecodeError{Reason: fmt.Sprintf("item is %T, not an object", item)}
			}
			result.Partials = append(result.Partials, obj)
		}
		return result, nil
	}

	result.Records = make([]*record.Record, 0, len(out.Items))
	for _, item := range out.Items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &DecodeError{Reason: fmt.Sprintf("item is %T, not an object", item)}
		}
		rec, err := c.schema.WireToRecord(obj)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// Update replaces the entry under id with the record's full contents and
// returns the updated record.
func (c *Client) Update(ctx context.Context, id record.Identifier, rec *record.Record) (*record.Record, error) {
	wire, err := c.schema.RecordToWire(rec)
	if err != nil {
		return nil, err
	}
	body, err := gojson.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	params := url.Values{protocol.ParamReply: {string(protocol.ReplyWhole)}}

	var out map[string]any
	if err := c.send(ctx, "PATCH", c.entryPath(id), params, body, &out); err != nil {
		return nil, err
	}
	return c.schema.WireToRecord(out)
}

// Delete removes one entry and returns the identifier the server deleted,
// which callers can assert equals the one requested.
func (c *Client) Delete(ctx context.Context, id record.Identifier) (record.Identifier, error) {
	var out protocol.DeletedID
	if err := c.send(ctx, "DELETE", c.entryPath(id), nil, nil, &out); err != nil {
		return record.Identifier{}, err
	}
	if out.DeletedID == 0 {
		return record.Identifier{}, &DecodeError{Reason: "response lacks deleted_id"}
	}
	return record.NewIdentifier(out.DeletedID), nil
}

// DeleteAllEntries wipes the whole collection. The name is deliberately
// verbose and has no short alias, so destructive calls are never typed by
// accident.
func (c *Client) DeleteAllEntries(ctx context.Context) (int64, error) {
	var out protocol.NumDeleted
	if err := c.send(ctx, "DELETE", c.basePath, nil, nil, &out); err != nil {
		return 0, err
	}
	return out.NumDeleted, nil
}

func (c *Client) encodeBatch(batch []*record.Record) ([]byte, error) {
	wires := make([]map[string]any, len(batch))
	for i, rec := range batch {
		wire, err := c.schema.RecordToWire(rec)
		if err != nil {
			return nil, err
		}
		wires[i] = wire
	}
	data, err := gojson.Marshal(wires)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}

func (c *Client) entryPath(id record.Identifier) string {
	return fmt.Sprintf("%s/%d", c.basePath, id.Value())
}

// send performs one protocol exchange with the retry policy: transport
// failures (connection errors, non-2xx without a decodable error body,
// unparseable success bodies) are retried up to the configured count with
// a fixed delay. A successfully decoded server error is returned as-is and
// never retried; a not_found body maps to ports.ErrNotFound.
func (c *Client) send(ctx context.Context, verb, path string, params url.Values, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := c.sleeper.Sleep(ctx, c.delay); err != nil {
				return err
			}
			c.logger.Debug().Int("attempt", attempt).Str("path", path).Msg("retrying request")
		}

		status, respBody, err := c.transport.Send(ctx, verb, path, params, nil, body)
		if err != nil {
			lastErr = &TransportError{Err: err}
			continue
		}

		if status >= 200 && status < 300 {
			if out == nil {
				return nil
			}
			if err := gojson.Unmarshal(respBody, out); err != nil {
				// Malformed JSON where JSON was required counts as a
				// transport-level failure.
				lastErr = &TransportError{Status: status, Err: fmt.Errorf("malformed response: %w", err)}
				continue
			}
			return nil
		}

		var errBody protocol.ErrorBody
		if decodeErr := gojson.Unmarshal(respBody, &errBody); decodeErr == nil && errBody.Error.Code != "" {
			if errBody.Error.Code == protocol.CodeNotFound {
				return ports.ErrNotFound
			}
			return &ServerError{Status: status, Code: errBody.Error.Code, Message: errBody.Error.Message}
		}
		lastErr = &TransportError{Status: status}
	}
	c.logger.Warn().Err(lastErr).Str("path", path).Int("retries", c.retries).Msg("request exhausted retries")
	return lastErr
}
