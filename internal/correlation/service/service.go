package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"proctor/internal/correlation"
	"proctor/internal/correlation/metrics"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/sentinel"
	"proctor/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

type SessionStore interface {
	ListSessions(ctx context.Context) ([]correlation.Session, error)
}

type ViolationStore interface {
	ListViolations(ctx context.Context) ([]correlation.ViolationEvent, error)
}

type ParticipantStore interface {
	ListParticipants(ctx context.Context) ([]correlation.Participant, error)
}

type SubjectStore interface {
	ListSubjects(ctx context.Context) ([]correlation.Subject, error)
}

// SnapshotRunner runs fn so that every store read inside it sees one
// consistent snapshot of the data.
type SnapshotRunner interface {
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

// ResultCache holds the last computed result. Get returns sentinel.ErrNotFound
// on a miss.
type ResultCache interface {
	Get(ctx context.Context) (*correlation.Result, error)
	Set(ctx context.Context, result *correlation.Result) error
	Invalidate(ctx context.Context) error
}

// SummaryPublisher feeds per-session summaries to downstream consumers.
type SummaryPublisher interface {
	Publish(ctx context.Context, reports []correlation.SessionReport) error
}

// Service loads snapshots, runs the correlation engine and serves the
// dashboard read models.
type Service struct {
	sessions     SessionStore
	violations   ViolationStore
	participants ParticipantStore
	subjects     SubjectStore
	snapshot     SnapshotRunner
	cache        ResultCache
	publisher    SummaryPublisher
	engine       *correlation.Engine
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	group        singleflight.Group

	// generation advances on every invalidation. A pass only caches its
	// result when no invalidation happened since it started loading.
	genMu      sync.Mutex
	generation uint64
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(cache ResultCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithPublisher(publisher SummaryPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithSnapshot loads all four collections through runner instead of
// concurrently.
func WithSnapshot(runner SnapshotRunner) Option {
	return func(s *Service) {
		s.snapshot = runner
	}
}

func WithEngine(engine *correlation.Engine) Option {
	return func(s *Service) {
		s.engine = engine
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service. The engine defaults to correlation.DefaultOptions.
func New(sessions SessionStore, violations ViolationStore, participants ParticipantStore, subjects SubjectStore, opts ...Option) *Service {
	s := &Service{
		sessions:     sessions,
		violations:   violations,
		participants: participants,
		subjects:     subjects,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = correlation.NewEngine(correlation.DefaultOptions())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("proctor/correlation")
	}
	return s
}

// Correlate returns the current result, from the cache when it holds one.
// Concurrent misses share one computation.
func (s *Service) Correlate(ctx context.Context) (*correlation.Result, error) {
	ctx, span := s.tracer.Start(ctx, "correlation.Correlate")
	defer span.End()

	if cached, ok := s.cachedResult(ctx); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, shared := s.group.Do("correlate", func() (any, error) {
		return s.compute(context.WithoutCancel(ctx))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "correlation failed")
		return nil, err
	}
	span.SetAttributes(attribute.Bool("singleflight.shared", shared))
	return v.(*correlation.Result), nil
}

// SessionReport returns one session with its violations and summary.
func (s *Service) SessionReport(ctx context.Context, id correlation.SessionID) (*correlation.SessionReport, error) {
	id = correlation.SessionID(strings.TrimSpace(string(id)))
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "session id is required")
	}
	result, err := s.Correlate(ctx)
	if err != nil {
		return nil, err
	}
	report, ok := result.Report(id)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return &report, nil
}

// ListReports returns per-session summaries matching filter, most recently
// started first.
func (s *Service) ListReports(ctx context.Context, filter correlation.Filter) ([]correlation.SessionReport, error) {
	result, err := s.Correlate(ctx)
	if err != nil {
		return nil, err
	}
	return result.Reports(filter), nil
}

// Diagnostics reports what the current result could not attribute cleanly.
func (s *Service) Diagnostics(ctx context.Context) (*correlation.DiagnosticsReport, error) {
	result, err := s.Correlate(ctx)
	if err != nil {
		return nil, err
	}
	report := result.DiagnosticsReport(requestcontext.Now(ctx))
	return &report, nil
}

// Refresh drops the cached result and recomputes it.
func (s *Service) Refresh(ctx context.Context) (*correlation.Result, error) {
	ctx, span := s.tracer.Start(ctx, "correlation.Refresh")
	defer span.End()

	if err := s.invalidate(ctx, "manual"); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed before refresh",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.compute(context.WithoutCancel(ctx))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return nil, err
	}
	return v.(*correlation.Result), nil
}

// Invalidate drops the cached result so the next read recomputes it. It is
// called when the underlying data changes.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := s.invalidate(ctx, "notify"); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to invalidate correlation cache")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, trigger string) error {
	s.genMu.Lock()
	s.generation++
	s.genMu.Unlock()
	s.group.Forget("correlate")

	if s.cache == nil {
		return nil
	}
	s.metrics.IncrementInvalidation(trigger)
	return s.cache.Invalidate(ctx)
}

func (s *Service) cachedResult(ctx context.Context) (*correlation.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	result, err := s.cache.Get(ctx)
	switch {
	case err == nil && result != nil:
		s.metrics.IncrementCacheLookup("hit")
		return result, true
	case err == nil, errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncrementCacheLookup("miss")
	default:
		s.metrics.IncrementCacheLookup("error")
		s.logger.WarnContext(ctx, "correlation cache read failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return nil, false
}

// compute loads a snapshot, runs the engine and fans the result out to the
// cache and the summary feed. Cache and feed failures are logged; they never
// fail the read.
func (s *Service) compute(ctx context.Context) (*correlation.Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "correlation.compute")
	defer span.End()

	generation := s.currentGeneration()
	snap, err := s.load(ctx)
	if err != nil {
		s.metrics.IncrementPassFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot load failed")
		s.logger.ErrorContext(ctx, "correlation snapshot load failed", "error", err)
		return nil, translateLoadError(err)
	}

	result, err := s.engine.Correlate(snap)
	if err != nil {
		s.metrics.IncrementPassFailed()
		return nil, err
	}

	counts := make(map[string]int)
	for kind, n := range correlation.CountDiagnostics(result.Diagnostics) {
		counts[string(kind)] = n
	}
	attributed := result.Attributed()
	s.metrics.ObservePass(start, attributed, result.EventCount, counts)
	span.SetAttributes(
		attribute.Int("correlation.sessions", len(result.Sessions)),
		attribute.Int("correlation.events", result.EventCount),
		attribute.Int("correlation.attributed", attributed),
	)
	s.logger.InfoContext(ctx, "correlation pass completed",
		"sessions", len(result.Sessions),
		"events", result.EventCount,
		"attributed", attributed,
		"diagnostics", len(result.Diagnostics),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s.store(ctx, generation, result)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, result.Reports(correlation.Filter{})); err != nil {
			s.metrics.IncrementPublishFailure()
			s.logger.WarnContext(ctx, "session summary publish failed", "error", err)
		}
	}
	return result, nil
}

func (s *Service) currentGeneration() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generation
}

// store caches result unless the data changed while it was being computed.
// The generation check and the write happen under one lock so an
// invalidation either lands first and the write is skipped, or lands after
// and deletes it.
func (s *Service) store(ctx context.Context, generation uint64, result *correlation.Result) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generation != generation {
		s.logger.DebugContext(ctx, "correlation result outdated by invalidation, not cached")
		return
	}
	if err := s.cache.Set(ctx, result); err != nil {
		s.logger.WarnContext(ctx, "correlation cache write failed", "error", err)
	}
}

func (s *Service) load(ctx context.Context) (correlation.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "correlation.load")
	defer span.End()

	var snap correlation.Snapshot
	if s.snapshot != nil {
		err := s.snapshot.ReadSnapshot(ctx, func(ctx context.Context) error {
			return s.loadSequential(ctx, &snap)
		})
		if err != nil {
			return correlation.Snapshot{}, err
		}
	} else if err := s.loadConcurrent(ctx, &snap); err != nil {
		return correlation.Snapshot{}, err
	}

	if snap.Sessions == nil {
		snap.Sessions = []correlation.Session{}
	}
	if snap.Events == nil {
		snap.Events = []correlation.ViolationEvent{}
	}
	return snap, nil
}

// loadSequential reads inside one transaction, which cannot serve queries
// concurrently.
func (s *Service) loadSequential(ctx context.Context, snap *correlation.Snapshot) error {
	var err error
	if snap.Sessions, err = s.sessions.ListSessions(ctx); err != nil {
		return err
	}
	if snap.Events, err = s.violations.ListViolations(ctx); err != nil {
		return err
	}
	if s.participants != nil {
		if snap.Participants, err = s.participants.ListParticipants(ctx); err != nil {
			return err
		}
	}
	if s.subjects != nil {
		if snap.Subjects, err = s.subjects.ListSubjects(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadConcurrent(ctx context.Context, snap *correlation.Snapshot) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Sessions, err = s.sessions.ListSessions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Events, err = s.violations.ListViolations(gctx)
		return err
	})
	if s.participants != nil {
		g.Go(func() error {
			var err error
			snap.Participants, err = s.participants.ListParticipants(gctx)
			return err
		})
	}
	if s.subjects != nil {
		g.Go(func() error {
			var err error
			snap.Subjects, err = s.subjects.ListSubjects(gctx)
			return err
		})
	}
	return g.Wait()
}

func translateLoadError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "correlation data source unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "loading correlation data timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load correlation data")
	}
}
