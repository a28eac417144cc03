package testutil

import (
	"net/http"

	"smartcore/pkg/platform/middleware/auth"
)

// WithAuth binds an authenticated subject and roles to the request context,
// simulating what the auth middleware does after token validation.
func WithAuth(req *http.Request, subject string, roles ...string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), subject, roles...))
}
