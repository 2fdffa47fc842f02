// Package app wires the configured collaborators around the scheduling
// pipeline and serves it over HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/yds/api/runs"
	"github.com/kilianp07/yds/api/schedule"
	"github.com/kilianp07/yds/config"
	coremetrics "github.com/kilianp07/yds/core/metrics"
	coremon "github.com/kilianp07/yds/core/monitoring"
	"github.com/kilianp07/yds/infra/cache"
	"github.com/kilianp07/yds/infra/logger"
	"github.com/kilianp07/yds/infra/metrics"
	"github.com/kilianp07/yds/infra/monitoring"
	"github.com/kilianp07/yds/infra/mqtt"
	"github.com/kilianp07/yds/infra/store"
	"github.com/kilianp07/yds/infra/tracing"
	"github.com/kilianp07/yds/internal/eventbus"
	"github.com/kilianp07/yds/internal/pipeline"
)

// Service holds the scheduling pipeline and its collaborators.
type Service struct {
	Runner *pipeline.Runner
	Store  *store.SQLiteStore

	cfg       *config.Config
	sink      coremetrics.MetricsSink
	publisher *mqtt.Publisher
	cache     *cache.RedisCache
	tracing   tracing.ShutdownFunc
	bus       *eventbus.TypedBus[coremetrics.RoundEvent]
	log       logger.Logger
}

// New creates a Service from the configuration. The store, the cache, the
// tracer and the MQTT publisher are only set up when configured.
func New(cfg *config.Config) (*Service, error) {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext is New with a context bounding the connection attempts.
func NewWithContext(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	shutdown, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		closeSink(sink)
		return nil, fmt.Errorf("tracing: %w", err)
	}

	s := &Service{cfg: cfg, sink: sink, tracing: shutdown, bus: eventbus.NewTyped[coremetrics.RoundEvent](), log: logg}
	opts := pipeline.RunnerOptions{
		Workers:   cfg.Scheduler.Workers,
		Verify:    cfg.Scheduler.Verify,
		Tolerance: cfg.Scheduler.Tolerance,
		Sink:      sink,
		Bus:       s.bus,
		Logger:    logger.New("scheduler"),
	}
	if cfg.Store.Enabled() {
		st, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			s.release()
			return nil, fmt.Errorf("store: %w", err)
		}
		s.Store = st
		opts.Store = st
	}
	if cfg.Cache.Enabled() {
		c, err := cache.NewRedisCache(ctx, cfg.Cache)
		if err != nil {
			s.release()
			return nil, fmt.Errorf("cache: %w", err)
		}
		s.cache = c
		opts.Cache = c
	}
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			s.release()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		s.publisher = pub
		opts.Publisher = pub
	}
	s.Runner = pipeline.NewRunner(opts)
	return s, nil
}

// Handler returns the HTTP routes of the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/schedule", schedule.NewHandler(s.Runner, s.cfg.Server.Token))
	if s.Store != nil {
		mux.Handle("/api/runs", runs.NewHandler(s.Store, s.cfg.Server.Token))
	}
	if s.cfg.Metrics.PrometheusAddr == "" {
		mux.Handle("/metrics", metrics.Handler(nil))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run serves the API until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.watchRounds(ctx)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			defer coremon.Recover()
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("server shutdown: %v", err)
		}
	}()
	s.log.Infof("serving api on %s", s.cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchRounds logs every critical interval resolved by the pipeline.
func (s *Service) watchRounds(ctx context.Context) {
	defer coremon.Recover()
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	log := logger.New("rounds")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			log.Debugw("critical interval", map[string]any{
				"run_id":     ev.RunID,
				"round":      ev.Round,
				"start":      ev.Start,
				"end":        ev.End,
				"intensity":  ev.Intensity,
				"tasks":      ev.TaskIDs,
				"candidates": ev.Candidates,
			})
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if d := s.bus.Dropped(); d > 0 {
		s.log.Warnf("%d round events dropped", d)
	}
	s.bus.Close()
	if s.publisher != nil {
		s.publisher.Close()
	}
	var errs []error
	if c, ok := s.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = append(errs, s.tracing(ctx))
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

// release undoes a partially built service.
func (s *Service) release() {
	closeSink(s.sink)
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.Store != nil {
		_ = s.Store.Close()
	}
	_ = s.tracing(context.Background())
}

func closeSink(sink coremetrics.MetricsSink) {
	if c, ok := sink.(io.Closer); ok {
		_ = c.Close()
	}
}
