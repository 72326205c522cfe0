package headsync

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/headsync/internal/errors"
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/reconcile"
	"github.com/vango-dev/headsync/pkg/registry"
	"github.com/vango-dev/headsync/pkg/render"
	"github.com/vango-dev/headsync/pkg/surface"
)

const tracerName = "headsync"

// Manager is the composition root tying a registry to a surface.
type Manager struct {
	reg        *registry.Registry
	table      *headtag.Table
	surface    surface.Surface
	dispatcher Dispatcher
	loop       *EventLoop // owned, nil when a dispatcher was supplied
	deferred   bool

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	onFlush func(reconcile.Set, surface.Changes)
	onError func(error)

	mu        sync.Mutex
	scheduled bool
	closed    bool

	// flushMu serializes reconcile and apply passes.
	flushMu sync.Mutex
	last    reconcile.Set
}

// New creates a Manager.
func New(opts ...Option) (*Manager, error) {
	o := options{deferred: true}
	for _, opt := range opts {
		opt(&o)
	}

	if o.rulesFile != "" {
		table, err := headtag.LoadTableFile(o.rulesFile)
		if err != nil {
			return nil, err
		}
		o.table = table
	}
	if o.table == nil {
		o.table = headtag.DefaultTable()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.surface == nil {
		o.surface = surface.NewString(o.table, render.RendererConfig{})
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	m := &Manager{
		reg:        registry.New(),
		table:      o.table,
		surface:    o.surface,
		dispatcher: o.dispatcher,
		deferred:   o.deferred,
		logger:     o.logger.With("component", "headsync"),
		metrics:    o.metrics,
		tracer:     o.tracer,
		onFlush:    o.onFlush,
		onError:    o.onError,
	}

	if m.deferred && m.dispatcher == nil {
		m.loop = NewEventLoop(o.queueSize, o.logger)
		m.dispatcher = m.loop
		m.loop.Start(context.Background())
	}
	return m, nil
}

// Table returns the rule table.
func (m *Manager) Table() *headtag.Table {
	return m.table
}

// Deferred reports whether mutations are applied on a dispatched flush.
func (m *Manager) Deferred() bool {
	return m.deferred
}

// Register adds a contribution and returns its ID. The ID is returned
// whenever the contribution was stored, even if applying the change then
// failed, so the caller can still update or unregister it.
func (m *Manager) Register(tags registry.Tags) (registry.ID, error) {
	var id registry.ID
	if !m.mutate(func() { id = m.reg.Register(tags) }) {
		return "", ErrClosed
	}
	m.metrics.recordMutation("register", m.reg.Len())
	return id, m.changed()
}

// Update replaces the tags of a contribution, keeping its precedence.
// Unknown IDs are ignored.
func (m *Manager) Update(id registry.ID, tags registry.Tags) error {
	known := false
	if !m.mutate(func() { known = m.reg.Update(id, tags) }) {
		return ErrClosed
	}
	if !known {
		m.logger.Debug("update of unknown contribution ignored", "id", id)
		return nil
	}
	m.metrics.recordMutation("update", m.reg.Len())
	return m.changed()
}

// Unregister removes a contribution. Unknown IDs are ignored.
func (m *Manager) Unregister(id registry.ID) error {
	known := false
	if !m.mutate(func() { known = m.reg.Unregister(id) }) {
		return ErrClosed
	}
	if !known {
		m.logger.Debug("unregister of unknown contribution ignored", "id", id)
		return nil
	}
	m.metrics.recordMutation("unregister", m.reg.Len())
	return m.changed()
}

// mutate runs fn against the registry unless the Manager is closed, and
// reports whether it ran. Close cannot complete while fn runs.
func (m *Manager) mutate(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	fn()
	return true
}

// Len returns the number of live contributions.
func (m *Manager) Len() int {
	return m.reg.Len()
}

// Canonical reconciles the current registry state. It does not touch the
// surface.
func (m *Manager) Canonical() reconcile.Set {
	return reconcile.Reconcile(m.table, m.reg.Snapshot())
}

// Last returns the set applied by the most recent successful flush.
func (m *Manager) Last() reconcile.Set {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()
	return m.last
}

// Flush reconciles and applies immediately, regardless of mode.
func (m *Manager) Flush(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	return m.flush(ctx)
}

// Close stops the Manager. A flush already scheduled on the owned event
// loop still runs before Close returns. Close must not be called from a
// function running on that loop.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.loop != nil {
		m.loop.Close()
	}
	m.logger.Debug("manager closed")
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) changed() error {
	if !m.deferred {
		return m.flush(context.Background())
	}
	return m.schedule()
}

// schedule queues one flush. Further calls before it runs are coalesced.
func (m *Manager) schedule() error {
	m.mu.Lock()
	if m.scheduled {
		m.mu.Unlock()
		m.metrics.recordCoalesced()
		return nil
	}
	m.scheduled = true
	m.mu.Unlock()

	if err := m.dispatcher.Dispatch(m.runScheduled); err != nil {
		m.mu.Lock()
		m.scheduled = false
		m.mu.Unlock()
		if stderrors.Is(err, ErrClosed) {
			return ErrClosed
		}
		serr := errors.New("E302").Wrap(err)
		m.report(serr)
		return serr
	}
	return nil
}

func (m *Manager) runScheduled() {
	// Clear the flag first: a mutation made while this flush runs must
	// schedule another one.
	m.mu.Lock()
	m.scheduled = false
	m.mu.Unlock()

	if err := m.flush(context.Background()); err != nil {
		m.logger.Error("deferred flush failed", "error", err)
		m.report(err)
	}
}

func (m *Manager) report(err error) {
	if m.onError != nil {
		m.onError(err)
	}
}

func (m *Manager) flush(ctx context.Context) error {
	set, changes, err := m.apply(ctx)
	if err != nil {
		return err
	}
	if m.onFlush != nil {
		m.onFlush(set, changes)
	}
	return nil
}

func (m *Manager) apply(ctx context.Context) (reconcile.Set, surface.Changes, error) {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	start := time.Now()
	snapshot := m.reg.Snapshot()

	ctx, span := m.tracer.Start(ctx, "headsync.flush",
		trace.WithAttributes(attribute.Int("headsync.contributions", len(snapshot))))
	defer span.End()

	set := reconcile.Reconcile(m.table, snapshot)
	changes, err := m.surface.Apply(ctx, set)

	span.SetAttributes(
		attribute.Int("headsync.entries", set.Len()),
		attribute.Int("headsync.added", changes.Added),
		attribute.Int("headsync.removed", changes.Removed),
	)
	m.metrics.recordFlush(time.Since(start).Seconds(), changes.Added, changes.Removed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, changes, err
	}
	span.SetStatus(codes.Ok, "")

	m.last = set
	m.logger.Debug("flushed",
		"contributions", len(snapshot),
		"entries", set.Len(),
		"added", changes.Added,
		"removed", changes.Removed,
		"kept", changes.Kept)
	return set, changes, nil
}
