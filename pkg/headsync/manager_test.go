package headsync

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/headsync/internal/errors"
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/reconcile"
	"github.com/vango-dev/headsync/pkg/registry"
	"github.com/vango-dev/headsync/pkg/render"
	"github.com/vango-dev/headsync/pkg/surface"
	"github.com/vango-dev/headsync/pkg/vdom"
)

var s = headtag.S

func canonical(href string) registry.Tags {
	return registry.Tags{headtag.TypeLink: {
		headtag.Link(headtag.A{"rel": s("canonical"), "href": s(href)}),
	}}
}

// manualLoop queues dispatched functions until the test runs them.
type manualLoop struct {
	mu    sync.Mutex
	queue []func()
}

func (q *manualLoop) Dispatch(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, fn)
	return nil
}

func (q *manualLoop) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// turn runs everything queued before the call, like one event loop turn.
func (q *manualLoop) turn() int {
	q.mu.Lock()
	fns := q.queue
	q.queue = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

type surfaceFunc func(context.Context, reconcile.Set) (surface.Changes, error)

func (f surfaceFunc) Apply(ctx context.Context, set reconcile.Set) (surface.Changes, error) {
	return f(ctx, set)
}

func newSync(t *testing.T, opts ...Option) (*Manager, *surface.String) {
	t.Helper()
	str := surface.NewString(headtag.DefaultTable(), render.RendererConfig{})
	m, err := New(append([]Option{WithDefer(false), WithSurface(str)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, str
}

func TestSyncModeAppliesInline(t *testing.T) {
	m, str := newSync(t)

	a, err := m.Register(canonical("/x"))
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if got := str.Markup().Type(headtag.TypeLink); !strings.Contains(got, `href="/x"`) {
		t.Fatalf("after Register: %q", got)
	}

	b, _ := m.Register(canonical("/y"))
	if err := m.Update(a, canonical("/z")); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	// a keeps its original precedence, so b still wins.
	if got := str.Markup().Type(headtag.TypeLink); !strings.Contains(got, `href="/y"`) {
		t.Errorf("after Update: %q, want /y to keep winning", got)
	}

	_ = m.Unregister(b)
	if got := str.Markup().Type(headtag.TypeLink); !strings.Contains(got, `href="/z"`) {
		t.Errorf("after Unregister: %q, want /z restored", got)
	}

	_ = m.Unregister(a)
	if got := str.Markup().Head(); got != "" {
		t.Errorf("after removing everything: %q", got)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d", m.Len())
	}
}

func TestSyncModeReturnsSurfaceError(t *testing.T) {
	boom := stderrors.New("boom")
	m, err := New(WithDefer(false), WithSurface(surfaceFunc(func(context.Context, reconcile.Set) (surface.Changes, error) {
		return surface.Changes{}, boom
	})))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	id, err := m.Register(canonical("/x"))
	if !stderrors.Is(err, boom) {
		t.Fatalf("Register() error = %v, want boom", err)
	}
	if id == "" {
		t.Error("Register() should still return the ID of the stored contribution")
	}
	if m.Last() != nil {
		t.Error("Last() should stay nil after a failed flush")
	}
}

func TestUnknownIDIsNoOp(t *testing.T) {
	loop := &manualLoop{}
	m, err := New(WithDispatcher(loop))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.Update("missing", canonical("/x")); err != nil {
		t.Errorf("Update(unknown) error: %v", err)
	}
	if err := m.Unregister("missing"); err != nil {
		t.Errorf("Unregister(unknown) error: %v", err)
	}
	if loop.pending() != 0 {
		t.Error("unknown IDs should schedule nothing")
	}
}

func TestDeferredCoalesces(t *testing.T) {
	loop := &manualLoop{}
	var flushes []reconcile.Set
	m, err := New(
		WithDispatcher(loop),
		WithOnFlush(func(set reconcile.Set, _ surface.Changes) { flushes = append(flushes, set) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	a, _ := m.Register(canonical("/x"))
	_, _ = m.Register(canonical("/y"))
	_ = m.Update(a, canonical("/z"))

	if loop.pending() != 1 {
		t.Fatalf("pending = %d, want a single scheduled flush", loop.pending())
	}
	if len(flushes) != 0 {
		t.Fatal("deferred mode must not flush inline")
	}

	loop.turn()
	if len(flushes) != 1 {
		t.Fatalf("flushes = %d, want 1", len(flushes))
	}
	decls := flushes[0].Declarations(headtag.TypeLink)
	if len(decls) != 1 {
		t.Fatalf("canonical links = %v", decls)
	}
	if v, _ := decls[0].Value("href"); v != "/y" {
		t.Errorf("href = %q, want /y", v)
	}
	if loop.pending() != 0 {
		t.Error("nothing should be scheduled after the flush ran")
	}
}

func TestDeferredClearStillFlushes(t *testing.T) {
	loop := &manualLoop{}
	var last reconcile.Set
	flushed := 0
	m, _ := New(
		WithDispatcher(loop),
		WithOnFlush(func(set reconcile.Set, _ surface.Changes) { last, flushed = set, flushed+1 }),
	)
	defer m.Close()

	id, _ := m.Register(canonical("/x"))
	_ = m.Unregister(id)
	loop.turn()

	if flushed != 1 {
		t.Fatalf("flushed = %d, want 1", flushed)
	}
	if last.Len() != 0 {
		t.Errorf("flushed set has %d entries, want none", last.Len())
	}
	for _, typ := range headtag.DefaultTable().Types() {
		if entries, ok := last[typ]; !ok || entries == nil {
			t.Errorf("type %s missing from cleared set", typ)
		}
	}
}

func TestMutationDuringFlushSchedulesAnother(t *testing.T) {
	loop := &manualLoop{}
	var m *Manager
	once := false
	m, _ = New(
		WithDispatcher(loop),
		WithOnFlush(func(reconcile.Set, surface.Changes) {
			if !once {
				once = true
				_, _ = m.Register(canonical("/late"))
			}
		}),
	)
	defer m.Close()

	_, _ = m.Register(canonical("/x"))
	loop.turn()
	if loop.pending() != 1 {
		t.Fatalf("pending = %d, a mutation during a flush must schedule a new one", loop.pending())
	}
	loop.turn()
	decls := m.Last().Declarations(headtag.TypeLink)
	if v, _ := decls[0].Value("href"); v != "/late" {
		t.Errorf("href = %q, want /late", v)
	}
}

func TestDeferredErrorIsReported(t *testing.T) {
	loop := &manualLoop{}
	var logs bytes.Buffer
	var reported []error

	m, _ := New(
		WithDispatcher(loop),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithSurface(surfaceFunc(func(context.Context, reconcile.Set) (surface.Changes, error) {
			return surface.Changes{}, errors.New("E300")
		})),
		WithOnError(func(err error) { reported = append(reported, err) }),
	)
	defer m.Close()

	if _, err := m.Register(canonical("/x")); err != nil {
		t.Fatalf("deferred Register() error: %v", err)
	}
	loop.turn()

	if len(reported) != 1 || !errors.HasCode(reported[0], "E300") {
		t.Errorf("reported = %v, want one E300", reported)
	}
	if !strings.Contains(logs.String(), "deferred flush failed") {
		t.Errorf("log = %q", logs.String())
	}
}

func TestDispatchFailure(t *testing.T) {
	fail := true
	calls := 0
	d := DispatcherFunc(func(fn func()) error {
		calls++
		if fail {
			return ErrQueueFull
		}
		return nil
	})
	var reported []error
	m, _ := New(WithDispatcher(d), WithOnError(func(err error) { reported = append(reported, err) }))
	defer m.Close()

	_, err := m.Register(canonical("/x"))
	if !errors.HasCode(err, "E302") || !stderrors.Is(err, ErrQueueFull) {
		t.Fatalf("Register() error = %v, want E302 wrapping ErrQueueFull", err)
	}
	if len(reported) != 1 {
		t.Errorf("reported %d errors, want 1", len(reported))
	}

	fail = false
	if _, err := m.Register(canonical("/y")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if calls != 2 {
		t.Errorf("Dispatch calls = %d, a failed dispatch must not leave a flush marked scheduled", calls)
	}
}

func TestRegisterReturnsIDWhenSchedulingFails(t *testing.T) {
	d := DispatcherFunc(func(func()) error { return ErrClosed })
	m, _ := New(WithDispatcher(d))
	defer m.Close()

	id, err := m.Register(canonical("/x"))
	if !stderrors.Is(err, ErrClosed) {
		t.Fatalf("Register() error = %v, want ErrClosed", err)
	}
	if id == "" {
		t.Fatal("Register() should return the ID of the stored contribution")
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}

	if err := m.Unregister(id); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Unregister() error = %v, want ErrClosed", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, the returned ID should remove the contribution", m.Len())
	}
}

func TestCloseRacingMutations(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []registry.ID
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id, err := m.Register(canonical("/x"))
				if id == "" {
					if !stderrors.Is(err, ErrClosed) {
						t.Errorf("Register() = (\"\", %v), want ErrClosed", err)
					}
					return
				}
				mu.Lock()
				ids = append(ids, id)
				mu.Unlock()
			}
		}()
	}
	m.Close()
	wg.Wait()

	if m.Len() != len(ids) {
		t.Errorf("Len() = %d, but %d IDs were returned", m.Len(), len(ids))
	}
}

func TestOwnedEventLoop(t *testing.T) {
	flushed := make(chan reconcile.Set, 4)
	m, err := New(WithOnFlush(func(set reconcile.Set, _ surface.Changes) { flushed <- set }))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Register(canonical("/x")); err != nil {
		t.Fatal(err)
	}
	m.Close()

	select {
	case set := <-flushed:
		if set.Len() != 1 {
			t.Errorf("flushed %d entries, want 1", set.Len())
		}
	default:
		t.Fatal("Close should run the pending flush")
	}
}

func TestClosedManager(t *testing.T) {
	m, _ := newSync(t)
	id, _ := m.Register(canonical("/x"))
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	if _, err := m.Register(canonical("/y")); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Register() error = %v, want ErrClosed", err)
	}
	if err := m.Update(id, canonical("/y")); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Update() error = %v, want ErrClosed", err)
	}
	if err := m.Unregister(id); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Unregister() error = %v, want ErrClosed", err)
	}
	if err := m.Flush(context.Background()); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Flush() error = %v, want ErrClosed", err)
	}
}

func TestFlushAndCanonical(t *testing.T) {
	loop := &manualLoop{}
	m, _ := New(WithDispatcher(loop))
	defer m.Close()

	_, _ = m.Register(canonical("/x"))
	first := m.Canonical()
	if !first.Equal(m.Canonical()) {
		t.Error("Canonical() should be idempotent")
	}
	if m.Last() != nil {
		t.Error("nothing has been flushed yet")
	}

	if err := m.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.Last().Equal(first) {
		t.Error("Flush() should apply the canonical set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Flush(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Flush(cancelled) error = %v", err)
	}
}

func TestLiveDocument(t *testing.T) {
	doc := vdom.NewDocument()
	table := headtag.DefaultTable()
	var batches [][]vdom.Patch
	doc.Subscribe(func(p []vdom.Patch) { batches = append(batches, p) })

	m, _ := New(WithDefer(false), WithSurface(surface.NewDOM(table, doc, nil)))
	defer m.Close()

	id, _ := m.Register(registry.Tags{
		headtag.TypeTitle: {headtag.Title("Home", nil)},
	})
	_ = m.Unregister(id)

	if len(batches) != 2 {
		t.Fatalf("got %d patch batches, want 2", len(batches))
	}
	if batches[0][0].Op != vdom.PatchInsertNode || batches[1][0].Op != vdom.PatchRemoveNode {
		t.Errorf("batches = %+v", batches)
	}
}

func TestNewWithRulesFile(t *testing.T) {
	if _, err := New(WithRulesFile("does-not-exist.yaml")); err == nil {
		t.Error("New() with a missing rules file should fail")
	}
}

// recordingTracer records the names of started spans.
type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	names []string
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	return r.Tracer.Start(ctx, name, opts...)
}

func TestFlushIsTraced(t *testing.T) {
	tracer := &recordingTracer{}
	m, _ := newSync(t, WithTracer(tracer))

	_, _ = m.Register(canonical("/x"))
	_ = m.Flush(context.Background())

	if len(tracer.names) != 2 || tracer.names[0] != "headsync.flush" {
		t.Errorf("spans = %v, want two headsync.flush spans", tracer.names)
	}
}
