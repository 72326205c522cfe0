package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/headsync/internal/config"
	"github.com/vango-dev/headsync/pkg/headhttp"
	"github.com/vango-dev/headsync/pkg/headsync"
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/publish"
	"github.com/vango-dev/headsync/pkg/render"
	"github.com/vango-dev/headsync/pkg/surface"
	"github.com/vango-dev/headsync/pkg/vdom"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		rules      string
		sync       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with a live head document",
		Long: `Start an HTTP server that accepts contributions and keeps a live
head document in sync with the reconciled set.

Endpoints:
  POST   /contributions        register, returns {"id": "..."}
  PUT    /contributions/{id}   replace a contribution's tags
  DELETE /contributions/{id}   remove a contribution
  GET    /head                 rendered head markup
  GET    /head/{type}          one tag type
  GET    /ws                   websocket stream of head patches
  GET    /metrics              Prometheus metrics

When publish.bucket is configured every change is also uploaded to S3.

Examples:
  headsync serve
  headsync serve --addr=127.0.0.1:8080
  headsync serve --config=deploy/headsync.json --sync`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if rules != "" {
				cfg.Rules = rules
			}
			if sync {
				deferred := false
				cfg.Defer = &deferred
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, newLogger(cfg))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to headsync.json (default: search from working directory)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from headsync.json)")
	cmd.Flags().StringVarP(&rules, "rules", "r", "", "YAML rule table merged over the defaults")
	cmd.Flags().BoolVar(&sync, "sync", false, "Apply every mutation immediately instead of deferring")

	return cmd
}

// service is the assembled server: a manager driving a live document, an
// optional S3 publisher and the HTTP API in front of them.
type service struct {
	manager  *headsync.Manager
	doc      *vdom.Document
	stream   *headhttp.Stream
	registry *prometheus.Registry
	handler  http.Handler
	logger   *slog.Logger
}

func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service, error) {
	table := headtag.DefaultTable()
	if path := cfg.RulesPath(); path != "" {
		var err error
		if table, err = headtag.LoadTableFile(path); err != nil {
			return nil, err
		}
	}
	renderCfg := render.RendererConfig{Pretty: cfg.Render.Pretty, Indent: cfg.Render.Indent}

	doc := vdom.NewDocument()
	surfaces := []surface.Surface{surface.NewDOM(table, doc, logger)}
	if cfg.PublishEnabled() {
		client, err := publish.NewClient(ctx, cfg.Publish.Region, cfg.Publish.Endpoint)
		if err != nil {
			return nil, err
		}
		pub, err := publish.NewS3(client, table, publish.S3Config{
			Bucket:       cfg.Publish.Bucket,
			Key:          cfg.Publish.Key,
			CacheControl: cfg.Publish.CacheControl,
			Render:       renderCfg,
		}, logger)
		if err != nil {
			return nil, err
		}
		surfaces = append(surfaces, pub)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := headsync.New(
		headsync.WithDefer(cfg.Deferred()),
		headsync.WithRules(table),
		headsync.WithSurface(surface.Multi(surfaces...)),
		headsync.WithLogger(logger),
		headsync.WithMetrics(headsync.NewMetrics(headsync.WithRegistry(reg))),
		headsync.WithOnError(func(err error) {
			logger.Error("head sync failed", "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	stream := headhttp.NewStream(doc, allowOrigins(cfg.Server.AllowedOrigins), logger)
	handler := headhttp.NewHandler(m,
		headhttp.WithStream(stream),
		headhttp.WithGatherer(reg),
		headhttp.WithRenderConfig(renderCfg),
		headhttp.WithLogger(logger),
	)

	return &service{
		manager:  m,
		doc:      doc,
		stream:   stream,
		registry: reg,
		handler:  handler,
		logger:   logger,
	}, nil
}

// Close stops the stream and flushes pending work.
func (s *service) Close() error {
	s.stream.Close()
	return s.manager.Close()
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           svc.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		success("Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		return stderrors.Join(err, svc.Close())
	})
	return g.Wait()
}

// allowOrigins returns a websocket origin check for the given list. An empty
// list allows every origin.
func allowOrigins(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := allowed[r.Header.Get("Origin")]
		return ok
	}
}
