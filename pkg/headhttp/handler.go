// Package headhttp exposes a headsync Manager over HTTP.
//
// Routes:
//
//	POST   /contributions       register, body is a registry.Document, 201 {"id": ...}
//	PUT    /contributions/{id}  update, 204 (unknown IDs are ignored)
//	DELETE /contributions/{id}  unregister, 204
//	GET    /head                rendered head markup of the canonical set
//	GET    /head/{type}         markup of one tag type, 404 for unknown types
//	GET    /ws                  websocket patch stream, when a Stream is configured
//	GET    /metrics             Prometheus exposition, when a Gatherer is configured
package headhttp

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/headsync/internal/errors"
	"github.com/vango-dev/headsync/pkg/headsync"
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/registry"
	"github.com/vango-dev/headsync/pkg/render"
)

// maxBodyBytes bounds contribution request bodies.
const maxBodyBytes = 1 << 20

type options struct {
	stream   *Stream
	gatherer prometheus.Gatherer
	render   render.RendererConfig
	logger   *slog.Logger
}

// Option configures NewHandler.
type Option func(*options)

// WithStream serves s on /ws.
func WithStream(s *Stream) Option {
	return func(o *options) { o.stream = s }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) { o.gatherer = g }
}

// WithRenderConfig configures /head rendering.
func WithRenderConfig(c render.RendererConfig) Option {
	return func(o *options) { o.render = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type handler struct {
	m      *headsync.Manager
	opts   options
	logger *slog.Logger
}

// NewHandler returns the HTTP API for m.
func NewHandler(m *headsync.Manager, opts ...Option) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	h := &handler{m: m, opts: o, logger: o.logger.With("component", "http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/contributions", func(r chi.Router) {
		r.Post("/", h.register)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.unregister)
	})
	r.Get("/head", h.head)
	r.Get("/head/{type}", h.headType)

	if o.stream != nil {
		r.Handle("/ws", o.stream)
	}
	if o.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	tags, ok := h.decode(w, r)
	if !ok {
		return
	}
	id, err := h.m.Register(tags)
	if err != nil && id == "" {
		h.fail(w, r, err)
		return
	}
	if err != nil {
		// Stored, but the synchronous apply failed.
		h.logger.Warn("register applied with error", "id", id, "error", err)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(id)})
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	tags, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.m.Update(registry.ID(chi.URLParam(r, "id")), tags); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) unregister(w http.ResponseWriter, r *http.Request) {
	if err := h.m.Unregister(registry.ID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) head(w http.ResponseWriter, r *http.Request) {
	markup := render.Head(h.m.Table(), h.m.Canonical(), h.opts.render)
	writeHTML(w, markup.Head())
}

func (h *handler) headType(w http.ResponseWriter, r *http.Request) {
	typ := headtag.Type(chi.URLParam(r, "type"))
	if _, ok := h.m.Table().Rule(typ); !ok {
		http.NotFound(w, r)
		return
	}
	markup := render.Head(h.m.Table(), h.m.Canonical(), h.opts.render)
	writeHTML(w, markup.Type(typ))
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request) (registry.Tags, bool) {
	var doc registry.Document
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body", Detail: err.Error()})
		return nil, false
	}
	tags, err := doc.Tags(h.m.Table())
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return tags, true
}

type errorBody struct {
	Code   string `json:"code,omitempty"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, headsync.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.HasCode(err, "E401"):
		status = http.StatusBadRequest
	}

	body := errorBody{Error: err.Error()}
	var coded *errors.Error
	if stderrors.As(err, &coded) {
		body = errorBody{Code: coded.Code, Error: coded.Message, Detail: coded.Detail}
	}
	if status >= 500 {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, body)
}
