// Package http exposes registered schemas over the CRUD wire protocol.
// Each schema gets a Collection endpoint (query, create, batch-create,
// delete-all) and an Entry endpoint (read, update, delete).
package http

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/schemarest/adapters/metrics"
	"github.com/artpar/schemarest/app"
	"github.com/artpar/schemarest/core/schema"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/pkg/protocol"
	"github.com/artpar/schemarest/ports"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// Handler routes CRUD requests to the EntryService registered for each
// schema.
type Handler struct {
	services    map[string]*app.EntryService
	logger      zerolog.Logger
	metrics     *metrics.Collector
	clock       ports.Clock
	version     string
	metricsPath string
	gatherer    prometheus.Gatherer
}

// NewHandler creates an empty handler; Register adds schemas.
func NewHandler(logger zerolog.Logger, clock ports.Clock, m *metrics.Collector, version string) *Handler {
	return &Handler{
		services: make(map[string]*app.EntryService),
		logger:   logger,
		metrics:  m,
		clock:    clock,
		version:  version,
	}
}

// Register mounts a service under its schema name.
func (h *Handler) Register(svc *app.EntryService) {
	h.services[svc.Schema().Name()] = svc
}

// ServeMetrics exposes a Prometheus scrape endpoint for g at path.
// Without this call Router mounts no metrics route; operation metrics are
// still collected either way.
func (h *Handler) ServeMetrics(path string, g prometheus.Gatherer) {
	h.metricsPath = path
	h.gatherer = g
}

// Router builds the chi router for every registered schema.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/version", h.versionInfo)
	r.Get("/schemas", h.schemaIndex)
	if h.metricsPath != "" {
		r.Handle(h.metricsPath, promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/{schema}", func(r chi.Router) {
		r.Get("/", h.query)
		r.Post("/", h.create)
		r.Delete("/", h.deleteAll)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.read)
			r.Patch("/", h.update)
			r.Delete("/", h.delete)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) versionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "schemarest",
		"version": h.version,
	})
}

// schemaIndex serves the self-description of every registered schema, in
// name order.
func (h *Handler) schemaIndex(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.services))
	for name := range h.services {
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]schema.Document, len(names))
	for i, name := range names {
		docs[i] = h.services[name].Schema().Describe()
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": docs})
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	svc, done, ok := h.begin(w, r, "query")
	if !ok {
		return
	}

	params, err := protocol.ParseQuery(r.URL.Query())
	if err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, err.Error())
		return
	}

	result, err := svc.Query(r.Context(), params)
	if err != nil {
		var fe *app.FilterError
		if errors.As(err, &fe) {
			done(protocol.CodeBadRequest)
			writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, fe.Error())
			return
		}
		h.serverFault(w, r, err, done)
		return
	}

	resp := protocol.QueryResponse{
		Items: make([]any, 0, result.Meta.NumItems),
		Meta:  result.Meta,
	}
	if result.Partials != nil {
		for _, p := range result.Partials {
			resp.Items = append(resp.Items, p)
		}
	} else {
		for _, rec := range result.Records {
			obj, err := svc.Schema().RecordToWire(rec)
			if err != nil {
				h.serverFault(w, r, err, done)
				return
			}
			resp.Items = append(resp.Items, obj)
		}
	}

	done("ok")
	writeJSON(w, http.StatusOK, resp)
}

// create handles both single-object and array payloads, dispatching to
// single or batch creation and honoring the requested reply mode.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	svc, done, ok := h.begin(w, r, "create")
	if !ok {
		return
	}

	mode, err := protocol.ParseReplyMode(r.URL.Query().Get(protocol.ParamReply))
	if err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "failed to read request body")
		return
	}

	var payload any
	if err := gojson.Unmarshal(body, &payload); err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "request body is not valid JSON")
		return
	}

	switch p := payload.(type) {
	case map[string]any:
		h.createOne(w, r, svc, p, mode, done)
	case []any:
		h.createBatch(w, r, svc, p, mode, done)
	default:
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "expected object or array")
	}
}

func (h *Handler) createOne(w http.ResponseWriter, r *http.Request, svc *app.EntryService, obj map[string]any, mode protocol.ReplyMode, done func(string)) {
	// Identifiers are store-assigned; a body identifier on create is noise.
	delete(obj, protocol.IDFieldWire)
	rec, err := svc.Schema().WireToRecord(obj)
	if err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, err.Error())
		return
	}
	created, err := svc.Create(r.Context(), rec)
	if err != nil {
		h.serverFault(w, r, err, done)
		return
	}

	done("ok")
	switch mode {
	case protocol.ReplyCount:
		writeJSON(w, http.StatusCreated, protocol.NumCreated{NumCreated: 1})
	case protocol.ReplyWhole:
		wire, err := svc.Schema().RecordToWire(created)
		if err != nil {
			h.serverFault(w, r, err, func(string) {})
			return
		}
		writeJSON(w, http.StatusCreated, wire)
	default:
		writeJSON(w, http.StatusCreated, protocol.CreatedID{CreatedID: created.ID().Value()})
	}
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request, svc *app.EntryService, items []any, mode protocol.ReplyMode, done func(string)) {
	recs := make([]*record.Record, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			done(protocol.CodeBadRequest)
			writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "array items must be objects")
			return
		}
		delete(obj, protocol.IDFieldWire)
		rec, err := svc.Schema().WireToRecord(obj)
		if err != nil {
			done(protocol.CodeBadRequest)
			writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, err.Error())
			return
		}
		recs[i] = rec
	}

	created, err := svc.CreateBatch(r.Context(), recs)
	if err != nil {
		h.serverFault(w, r, err, done)
		return
	}

	done("ok")
	switch mode {
	case protocol.ReplyCount:
		writeJSON(w, http.StatusCreated, protocol.NumCreated{NumCreated: len(created)})
	case protocol.ReplyWhole:
		entries := make([]map[string]any, len(created))
		for i, rec := range created {
			wire, err := svc.Schema().RecordToWire(rec)
			if err != nil {
				h.serverFault(w, r, err, func(string) {})
				return
			}
			entries[i] = wire
		}
		writeJSON(w, http.StatusCreated, protocol.CreatedEntries{
			CreatedEntries: entries,
			NumCreated:     len(entries),
		})
	default:
		ids := make([]int64, len(created))
		for i, rec := range created {
			ids[i] = rec.ID().Value()
		}
		writeJSON(w, http.StatusCreated, protocol.CreatedIDs{
			CreatedIDs: ids,
			NumCreated: len(ids),
		})
	}
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request) {
	svc, done, ok := h.begin(w, r, "read")
	if !ok {
		return
	}
	id, ok := h.entryID(w, r, done)
	if !ok {
		return
	}

	rec, err := svc.Read(r.Context(), id)
	if err == ports.ErrNotFound {
		done(protocol.CodeNotFound)
		writeError(w, http.StatusNotFound, protocol.CodeNotFound, "entry not found")
		return
	}
	if err != nil {
		h.serverFault(w, r, err, done)
		return
	}

	wire, err := svc.Schema().RecordToWire(rec)
	if err != nil {
		h.serverFault(w, r, err, done)
		return
	}
	done("ok")
	writeJSON(w, http.StatusOK, wire)
}

// update takes a full record body and force-assigns the path identifier
// onto it; the body's own identifier is ignored.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	svc, done, ok := h.begin(w, r, "update")
	if !ok {
		return
	}
	id, ok := h.entryID(w, r, done)
	if !ok {
		return
	}

	mode, err := protocol.ParseReplyMode(r.URL.Query().Get(protocol.ParamReply))
	if err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "failed to read request body")
		return
	}
	var obj map[string]any
	if err := gojson.Unmarshal(body, &obj); err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "request body is not valid JSON")
		return
	}
	// The wire identifier in the body must not fight the path identifier.
	delete(obj, protocol.IDFieldWire)

	rec, err := svc.Schema().WireToRecord(obj)
	if err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, err.Error())
		return
	}

	updated, err := svc.Update(r.Context(), id, rec)
	if err == ports.ErrNotFound {
		done(protocol.CodeNotFound)
		writeError(w, http.StatusNotFound, protocol.CodeNotFound, "entry not found")
		return
	}
	if err != nil {
		h.serverFault(w, r, err, done)
		return
	}

	done("ok")
	switch mode {
	case protocol.ReplyCount:
		writeJSON(w, http.StatusOK, protocol.NumUpdated{NumUpdated: 1})
	case protocol.ReplyWhole:
		wire, err := svc.Schema().RecordToWire(updated)
		if err != nil {
			h.serverFault(w, r, err, func(string) {})
			return
		}
		writeJSON(w, http.StatusOK, wire)
	default:
		writeJSON(w, http.StatusOK, protocol.UpdatedID{UpdatedID: id.Value()})
	}
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	svc, done, ok := h.begin(w, r, "delete")
	if !ok {
		return
	}
	id, ok := h.entryID(w, r, done)
	if !ok {
		return
	}

	deleted, err := svc.Delete(r.Context(), id)
	if err == ports.ErrNotFound {
		done(protocol.CodeNotFound)
		writeError(w, http.StatusNotFound, protocol.CodeNotFound, "entry not found")
		return
	}
	if err != nil {
		h.serverFault(w, r, err, done)
		return
	}

	done("ok")
	writeJSON(w, http.StatusOK, protocol.DeletedID{DeletedID: deleted.Value()})
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	svc, done, ok := h.begin(w, r, "delete_all")
	if !ok {
		return
	}

	n, err := svc.DeleteAll(r.Context())
	if err != nil {
		h.serverFault(w, r, err, done)
		return
	}

	done("ok")
	writeJSON(w, http.StatusOK, protocol.NumDeleted{NumDeleted: n})
}

// begin resolves the schema service and starts metric collection. The done
// callback records the outcome exactly once.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request, operation string) (*app.EntryService, func(string), bool) {
	name := chi.URLParam(r, "schema")
	svc, ok := h.services[name]
	if !ok {
		writeError(w, http.StatusNotFound, protocol.CodeNotFound, "unknown schema "+strconv.Quote(name))
		return nil, nil, false
	}

	start := h.clock.Now()
	var recorded bool
	done := func(outcome string) {
		if recorded {
			return
		}
		recorded = true
		h.metrics.Observe(name, operation, outcome, h.clock.Now().Sub(start))
	}
	return svc, done, true
}

func (h *Handler) entryID(w http.ResponseWriter, r *http.Request, done func(string)) (record.Identifier, bool) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		done(protocol.CodeBadRequest)
		writeError(w, http.StatusBadRequest, protocol.CodeBadRequest, "invalid identifier "+strconv.Quote(raw))
		return record.Identifier{}, false
	}
	return record.NewIdentifier(n), true
}

// serverFault logs the real error and replies with a generic body: no
// partial payloads, no detail leakage.
func (h *Handler) serverFault(w http.ResponseWriter, r *http.Request, err error, done func(string)) {
	h.logger.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	done(protocol.CodeServerError)
	writeError(w, http.StatusInternalServerError, protocol.CodeServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := gojson.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":"server_error","message":"encoding failed"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, protocol.ErrorBody{
		Error: protocol.ErrorDetail{Code: code, Message: message},
	})
}
