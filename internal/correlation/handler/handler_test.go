package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"proctor/internal/correlation"
	"proctor/internal/correlation/handler/mocks"
	jwttoken "proctor/internal/jwt_token"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/middleware/admin"
	"proctor/pkg/requestcontext"
	"proctor/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req = testutil.WithRequestID(testutil.WithAdmin(req, "staff-1"), "req-1")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](s *HandlerSuite, rec *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&out))
	return out
}

var started = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleResult() *correlation.Result {
	return &correlation.Result{
		Sessions: map[correlation.SessionID]correlation.Session{
			"s1": {ID: "s1", ParticipantID: "p1", StartedAt: &started, Status: correlation.SessionInProgress},
			"s2": {ID: "s2", ParticipantID: "p2", Status: correlation.SessionNotStarted},
		},
		BySession: map[correlation.SessionID][]correlation.ViolationEvent{
			"s1": {{ID: "e1", Type: correlation.TypeTabSwitch}},
		},
		Summaries: map[correlation.SessionID]correlation.Summary{
			"s1": {ViolationCount: 1, DistinctEventTypes: []string{correlation.TypeTabSwitch}},
		},
		Order:      []correlation.SessionID{"s1", "s2"},
		EventCount: 2,
	}
}

func (s *HandlerSuite) TestCorrelate() {
	s.Run("every session appears with its violations", func() {
		s.SetupTest()
		s.service.EXPECT().Correlate(gomock.Any()).Return(sampleResult(), nil)

		rec := s.do(http.MethodGet, "/admin/correlation")
		s.Require().Equal(http.StatusOK, rec.Code)

		body := decode[CorrelationResponse](s, rec)
		s.Equal([]correlation.SessionID{"s1", "s2"}, body.Order)
		s.Len(body.Sessions["s1"].Violations, 1)
		s.Equal(1, body.Sessions["s1"].Summary.ViolationCount)
		s.NotNil(body.Sessions["s2"].Violations)
		s.Empty(body.Sessions["s2"].Violations)
	})

	s.Run("unavailable store is 503", func() {
		s.SetupTest()
		s.service.EXPECT().Correlate(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeUnavailable, "down"))

		rec := s.do(http.MethodGet, "/admin/correlation")
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})
}

func (s *HandlerSuite) TestListSessions() {
	s.Run("query parameters become the filter", func() {
		s.SetupTest()
		s.service.EXPECT().ListReports(gomock.Any(), correlation.Filter{
			SubjectCode:   "CS101",
			ParticipantID: "p1",
			Status:        correlation.SessionInProgress,
			Date:          "2024-03-01",
			FlaggedOnly:   true,
		}).Return([]correlation.SessionReport{{
			Session: correlation.Session{ID: "s1", ParticipantID: "p1", Status: correlation.SessionInProgress},
			Summary: correlation.Summary{ViolationCount: 2},
		}}, nil)

		rec := s.do(http.MethodGet, "/admin/correlation/sessions?subject=CS101&participant=p1&status=IN_PROGRESS&date=2024-03-01&flagged=true")
		s.Require().Equal(http.StatusOK, rec.Code)

		body := decode[ListSessionsResponse](s, rec)
		s.Equal(1, body.Total)
		s.Equal(correlation.SessionID("s1"), body.Sessions[0].ID)
		s.Equal(2, body.Sessions[0].Summary.ViolationCount)
	})

	s.Run("no parameters lists everything", func() {
		s.SetupTest()
		s.service.EXPECT().ListReports(gomock.Any(), correlation.Filter{}).Return(nil, nil)

		rec := s.do(http.MethodGet, "/admin/correlation/sessions")
		s.Require().Equal(http.StatusOK, rec.Code)
		body := decode[ListSessionsResponse](s, rec)
		s.NotNil(body.Sessions)
		s.Zero(body.Total)
	})

	for _, query := range []string{"status=paused", "date=01-03-2024", "flagged=maybe"} {
		s.Run("rejects "+query, func() {
			s.SetupTest()
			rec := s.do(http.MethodGet, "/admin/correlation/sessions?"+query)
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal(string(dErrors.CodeValidation), decode[map[string]string](s, rec)["error"])
		})
	}
}

func (s *HandlerSuite) TestGetSession() {
	s.Run("found", func() {
		s.SetupTest()
		s.service.EXPECT().SessionReport(gomock.Any(), correlation.SessionID("s1")).Return(&correlation.SessionReport{
			Session:    correlation.Session{ID: "s1", StartedAt: &started},
			Summary:    correlation.Summary{ViolationCount: 1},
			Violations: []correlation.ViolationEvent{{ID: "e1"}},
		}, nil)

		rec := s.do(http.MethodGet, "/admin/correlation/sessions/s1")
		s.Require().Equal(http.StatusOK, rec.Code)
		body := decode[SessionDetailResponse](s, rec)
		s.Equal(correlation.SessionID("s1"), body.ID)
		s.Len(body.Violations, 1)
	})

	s.Run("not found", func() {
		s.SetupTest()
		s.service.EXPECT().SessionReport(gomock.Any(), correlation.SessionID("nope")).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "session not found"))

		rec := s.do(http.MethodGet, "/admin/correlation/sessions/nope")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestDiagnostics() {
	s.SetupTest()
	s.service.EXPECT().Diagnostics(gomock.Any()).Return(&correlation.DiagnosticsReport{
		Events:       3,
		Attributed:   1,
		Unattributed: 2,
		Counts:       map[correlation.DiagnosticKind]int{correlation.DiagUnmatched: 2},
	}, nil)

	rec := s.do(http.MethodGet, "/admin/correlation/diagnostics")
	s.Require().Equal(http.StatusOK, rec.Code)
	body := decode[correlation.DiagnosticsReport](s, rec)
	s.Equal(2, body.Unattributed)
	s.Equal(2, body.Counts[correlation.DiagUnmatched])
}

func (s *HandlerSuite) TestRefresh() {
	s.SetupTest()
	s.service.EXPECT().Refresh(gomock.Any()).Return(sampleResult(), nil)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	req := httptest.NewRequest(http.MethodPost, "/admin/correlation/refresh", nil)
	req = req.WithContext(requestcontext.WithTime(req.Context(), now))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Require().Equal(http.StatusOK, rec.Code)
	body := decode[RefreshResponse](s, rec)
	s.Equal(2, body.Sessions)
	s.Equal(2, body.Events)
	s.Equal(1, body.Attributed)
	s.True(now.Equal(body.RefreshedAt))
}

func TestAdminGuard(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	service.EXPECT().Diagnostics(gomock.Any()).Return(&correlation.DiagnosticsReport{}, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtService := jwttoken.NewJWTService("test-signing-key", "proctor", "proctor-admin")

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdmin(jwttoken.NewJWTServiceAdapter(jwtService), "admin", logger))
		New(service, logger).Register(r)
	})

	token := func(roles ...string) string {
		tok, err := jwtService.GenerateAccessToken("staff-1", roles, time.Minute)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		return tok
	}

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"invalid token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"missing role", "Bearer " + token("proctor"), http.StatusForbidden},
		{"admin", "Bearer " + token("admin"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/correlation/diagnostics", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}
