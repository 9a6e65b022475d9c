package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"armory/internal/catalog/events"
	"armory/internal/intel/equivalence"
	"armory/internal/intel/handler"
	intelmetrics "armory/internal/intel/metrics"
	"armory/internal/platform/httpserver"
	platformmetrics "armory/internal/platform/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background refreshers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// serve wires every configured component and blocks until ctx ends.
func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.logger
	intelMetrics := intelmetrics.New()
	httpMetrics := platformmetrics.New()

	eng, err := buildEngine(ctx, cfg, "", log, intelMetrics)
	if err != nil {
		return err
	}
	defer eng.Close()

	// A failed first build leaves /health/ready at 503 until a later refresh
	// succeeds.
	if _, err := eng.svc.Refresh(ctx); err != nil {
		log.ErrorContext(ctx, "initial intelligence build failed", "error", err)
	}

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	handler.New(eng.svc, log, httpMetrics,
		handler.WithDefaultLimit(cfg.Intel.DefaultLimit),
		handler.WithAdminToken(cfg.Server.AdminToken),
	).Register(router)
	if cfg.Server.AdminToken == "" {
		log.WarnContext(ctx, "admin routes are unauthenticated; set ARMORY_ADMIN_TOKEN")
	}

	var watcher *equivalence.Watcher
	if cfg.Registry.Watch {
		if watcher, err = equivalence.NewWatcher(eng.holder, cfg.Registry.Path, cfg.Registry.Debounce, log); err != nil {
			return err
		}
	}
	var consumer *events.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		opts := []events.Option{events.WithLogger(log), events.WithMetrics(intelMetrics)}
		if eng.memCatalog != nil {
			opts = append(opts, events.WithWriter(eng.memCatalog))
		}
		consumer, err = events.NewConsumer(events.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, eng.svc, opts...)
		if err != nil {
			return err
		}
		if cfg.Kafka.EnsureTopic {
			if err := consumer.EnsureTopic(ctx, cfg.Kafka.Partitions); err != nil {
				log.WarnContext(ctx, "could not ensure catalog topic", "topic", cfg.Kafka.Topic, "error", err)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server.Addr, router), cfg.Server.ShutdownTimeout, log)
	})
	if cfg.Intel.RefreshInterval > 0 {
		g.Go(func() error {
			return ignoreCancel(eng.svc.StartPeriodicRefresh(gctx, cfg.Intel.RefreshInterval))
		})
	}
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}

	return ignoreCancel(g.Wait())
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
