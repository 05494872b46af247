package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"proctor/internal/correlation"
	"proctor/pkg/platform/httputil"
	"proctor/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// Service defines the correlation operations the admin dashboard reads.
type Service interface {
	Correlate(ctx context.Context) (*correlation.Result, error)
	SessionReport(ctx context.Context, id correlation.SessionID) (*correlation.SessionReport, error)
	ListReports(ctx context.Context, filter correlation.Filter) ([]correlation.SessionReport, error)
	Diagnostics(ctx context.Context) (*correlation.DiagnosticsReport, error)
	Refresh(ctx context.Context) (*correlation.Result, error)
}

// Handler serves the correlated violation views.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the correlation endpoints. Callers are expected to wrap r
// in the admin middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/correlation", h.HandleCorrelate)
	r.Get("/admin/correlation/sessions", h.HandleListSessions)
	r.Get("/admin/correlation/sessions/{sessionID}", h.HandleGetSession)
	r.Get("/admin/correlation/diagnostics", h.HandleDiagnostics)
	r.Post("/admin/correlation/refresh", h.HandleRefresh)
}

// HandleCorrelate handles GET /admin/correlation: every session with its
// attributed violations and summary.
func (h *Handler) HandleCorrelate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.Correlate(ctx)
	if err != nil {
		h.fail(ctx, w, "correlation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleListSessions handles GET /admin/correlation/sessions.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := ListSessionsRequest{}
	req.Bind(r.URL.Query())
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(ctx, "invalid session list request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	reports, err := h.service.ListReports(ctx, req.Filter())
	if err != nil {
		h.fail(ctx, w, "listing session reports failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReports(reports))
}

// HandleGetSession handles GET /admin/correlation/sessions/{sessionID}.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := correlation.SessionID(chi.URLParam(r, "sessionID"))

	report, err := h.service.SessionReport(ctx, id)
	if err != nil {
		h.fail(ctx, w, "session report failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReport(*report))
}

// HandleDiagnostics handles GET /admin/correlation/diagnostics.
func (h *Handler) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.service.Diagnostics(ctx)
	if err != nil {
		h.fail(ctx, w, "diagnostics failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleRefresh handles POST /admin/correlation/refresh.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	result, err := h.service.Refresh(ctx)
	if err != nil {
		h.fail(ctx, w, "correlation refresh failed", err)
		return
	}

	h.logger.InfoContext(ctx, "correlation refreshed",
		"request_id", requestcontext.RequestID(ctx),
		"subject", requestcontext.Subject(ctx),
		"events", result.EventCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, RefreshResponse{
		Sessions:    len(result.Sessions),
		Events:      result.EventCount,
		Attributed:  result.Attributed(),
		RefreshedAt: requestcontext.Now(ctx),
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
