package testutil

import (
	"net/http"

	"proctor/pkg/requestcontext"
)

// WithAdmin marks the request as coming from an authenticated staff member
// with the given roles. This simulates what the auth middleware would do.
func WithAdmin(req *http.Request, subject string, roles ...string) *http.Request {
	if len(roles) == 0 {
		roles = []string{"admin"}
	}
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), subject, roles))
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
