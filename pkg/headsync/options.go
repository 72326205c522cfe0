package headsync

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/reconcile"
	"github.com/vango-dev/headsync/pkg/surface"
)

type options struct {
	deferred   bool
	table      *headtag.Table
	rulesFile  string
	surface    surface.Surface
	dispatcher Dispatcher
	queueSize  int
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	onFlush    func(reconcile.Set, surface.Changes)
	onError    func(error)
}

// Option configures a Manager.
type Option func(*options)

// WithDefer selects deferred (true, the default) or synchronous scheduling.
func WithDefer(deferred bool) Option {
	return func(o *options) {
		o.deferred = deferred
	}
}

// WithRules sets the rule table. Default: headtag.DefaultTable().
func WithRules(table *headtag.Table) Option {
	return func(o *options) {
		o.table = table
	}
}

// WithRulesFile loads the rule table from a YAML file, merged over the
// default table. It takes precedence over WithRules.
func WithRulesFile(path string) Option {
	return func(o *options) {
		o.rulesFile = path
	}
}

// WithSurface sets the surface flushes are applied to.
// Default: a surface.String over the rule table.
func WithSurface(s surface.Surface) Option {
	return func(o *options) {
		o.surface = s
	}
}

// WithDispatcher sets the host loop deferred flushes are scheduled on.
// Without one, a deferred Manager starts its own EventLoop.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) {
		o.dispatcher = d
	}
}

// WithQueueSize sets the capacity of the Manager-owned EventLoop.
func WithQueueSize(n int) Option {
	return func(o *options) {
		o.queueSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer flush spans are started on.
// Default: otel.Tracer("headsync") from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithOnFlush registers a callback run after every successful flush.
func WithOnFlush(fn func(reconcile.Set, surface.Changes)) Option {
	return func(o *options) {
		o.onFlush = fn
	}
}

// WithOnError registers a callback for deferred flush and scheduling
// errors, which have no caller to be returned to.
func WithOnError(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
