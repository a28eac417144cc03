// Package auth guards the privileged token endpoints with role-bearing
// bearer tokens. Roles map onto the on-ledger role capabilities: custodian
// operations, supply operations (mint/burn), and administration.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role names carried in token claims.
const (
	RoleAdmin      = "admin"
	RoleCustodian  = "custodian"
	RoleSupply     = "supply"
	RoleYieldAdmin = "yield-admin"
)

// Claims are the JWT claims this service understands.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Validator verifies HS256 bearer tokens.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a bearer token.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

type contextKeySubject struct{}
type contextKeyRoles struct{}

// WithIdentity binds an authenticated subject and its roles to the context.
// The middleware uses it after token validation; tests use it to simulate an
// authenticated request.
func WithIdentity(ctx context.Context, subject string, roles ...string) context.Context {
	ctx = context.WithValue(ctx, contextKeySubject{}, subject)
	return context.WithValue(ctx, contextKeyRoles{}, roles)
}

// Subject retrieves the authenticated subject from the context.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(contextKeySubject{}).(string)
	return s
}

// Roles retrieves the authenticated roles from the context.
func Roles(ctx context.Context) []string {
	r, _ := ctx.Value(contextKeyRoles{}).([]string)
	return r
}

// HasRole reports whether the context carries the role. Admin implies every
// other role.
func HasRole(ctx context.Context, role string) bool {
	for _, r := range Roles(ctx) {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// subject and roles in the request context.
func RequireAuth(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token")
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token", "error", err)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), claims.Subject, claims.Roles...)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests lacking the role capability.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasRole(r.Context(), role) {
				logger.WarnContext(r.Context(), "forbidden - missing role",
					"subject", Subject(r.Context()),
					"required_role", role,
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Missing required role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
