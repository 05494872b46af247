package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proctor/internal/correlation"
	"proctor/internal/correlation/handler"
	corrmetrics "proctor/internal/correlation/metrics"
	"proctor/internal/correlation/publisher"
	"proctor/internal/correlation/refresh"
	"proctor/internal/correlation/service"
	"proctor/internal/correlation/store"
	jwttoken "proctor/internal/jwt_token"
	"proctor/internal/platform/config"
	"proctor/internal/platform/metrics"
	"proctor/internal/platform/redis"
	"proctor/pkg/platform/httputil"
	"proctor/pkg/platform/middleware/admin"
	"proctor/pkg/platform/middleware/auth"
	"proctor/pkg/platform/middleware/metadata"
	"proctor/pkg/platform/middleware/request"
	"proctor/pkg/platform/middleware/requesttime"
)

type application struct {
	router  http.Handler
	workers []func(ctx context.Context) error
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// healthCheck reports whether one dependency is reachable.
type healthCheck func(ctx context.Context) error

// build wires the stores, cache, summary feed and change listener selected by
// cfg. Without DATABASE_URL the service runs on the in-memory store, seeded
// from SEED_FILE when set.
func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*application, error) {
	app := &application{}
	checks := map[string]healthCheck{}
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(corrmetrics.New()),
		service.WithEngine(correlation.NewEngine(correlation.Options{
			WindowBuffer:    cfg.Correlation.WindowBuffer,
			DefaultDuration: cfg.Correlation.DefaultDuration,
		})),
	}

	var (
		svc    *service.Service
		reader interface {
			service.SessionStore
			service.ViolationStore
			service.ParticipantStore
			service.SubjectStore
			service.SnapshotRunner
		}
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := store.Migrate(ctx, db); err != nil {
			app.close()
			return nil, err
		}
		reader = store.NewPostgres(db, store.WithPostgresLogger(log))
		checks["postgres"] = db.PingContext

		listener := refresh.New(refresh.PgxDialer(cfg.DatabaseURL), cfg.Refresh.Channel,
			invalidatorFunc(func(ctx context.Context) error { return svc.Invalidate(ctx) }),
			refresh.WithDebounce(cfg.Refresh.Debounce),
			refresh.WithLogger(log),
		)
		app.workers = append(app.workers, listener.Run)
		log.Info("using postgres correlation store")
	} else {
		mem := store.NewInMemory(store.WithChangeHook(func() {
			if svc != nil {
				_ = svc.Invalidate(context.Background())
			}
		}))
		if cfg.SeedFile != "" {
			fixture, err := store.LoadFixtureFile(cfg.SeedFile)
			if err != nil {
				return nil, err
			}
			store.Seed(mem, fixture)
			log.Info("seeded in-memory correlation store",
				"file", cfg.SeedFile,
				"sessions", len(fixture.Sessions),
				"violations", len(fixture.Violations),
			)
		}
		reader = mem
		log.Warn("DATABASE_URL not set, using in-memory correlation store")
	}
	opts = append(opts, service.WithSnapshot(reader))

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		app.close()
		return nil, err
	}
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
		checks["redis"] = redisClient.Health
		opts = append(opts, service.WithCache(store.NewRedisCache(redisClient.Client, cfg.Redis.CacheTTL,
			store.WithCacheLogger(log))))
	} else {
		opts = append(opts, service.WithCache(store.NewMemoryCache(cfg.Redis.CacheTTL)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := publisher.NewClient(cfg.Kafka.Brokers, cfg.Kafka.SummaryTopic)
		if err != nil {
			app.close()
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		if err := publisher.EnsureTopic(ctx, client, cfg.Kafka.SummaryTopic, 3, 1); err != nil {
			log.Warn("could not ensure summary topic", "topic", cfg.Kafka.SummaryTopic, "error", err)
		}
		opts = append(opts, service.WithPublisher(publisher.NewKafka(client, cfg.Kafka.SummaryTopic,
			publisher.WithLogger(log))))
	}

	svc = service.New(reader, reader, reader, reader, opts...)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "proctor", "proctor-admin")
	app.router = newRouter(routerDeps{
		service:   svc,
		validator: jwttoken.NewJWTServiceAdapter(jwtService),
		adminRole: cfg.AdminRole,
		metrics:   metrics.New(),
		checks:    checks,
		logger:    log,
	})
	return app, nil
}

type invalidatorFunc func(ctx context.Context) error

func (f invalidatorFunc) Invalidate(ctx context.Context) error { return f(ctx) }

type routerDeps struct {
	service   handler.Service
	validator auth.JWTValidator
	adminRole string
	metrics   *metrics.Metrics
	checks    map[string]healthCheck
	logger    *slog.Logger
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(deps.logger))
	r.Use(deps.metrics.Instrument)

	r.Get("/healthz", healthHandler(deps.checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Use(admin.RequireAdmin(deps.validator, deps.adminRole, deps.logger))
		handler.New(deps.service, deps.logger).Register(r)
	})
	return r
}

func healthHandler(checks map[string]healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = "unavailable"
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
