package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Identity is supplied by trusted request headers. This is an explicit trust
// assumption standing in for real authentication, not a security boundary:
// swap this middleware for a real auth layer without touching the handlers.
const (
	HeaderRole   = "X-Role"
	HeaderUserID = "X-User-Id"

	RoleUser  = "user"
	RoleAdmin = "admin"

	defaultUserRef = "guest"
)

// IdentityMiddleware extracts the caller reference and role from the trusted
// headers, applying the anonymous defaults when absent.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := strings.ToLower(r.Header.Get(HeaderRole))
		if role == "" {
			role = RoleUser
		}

		userRef := r.Header.Get(HeaderUserID)
		if userRef == "" {
			userRef = defaultUserRef
		}

		ctx := context.WithValue(r.Context(), "user_ref", userRef)
		ctx = context.WithValue(ctx, "role", role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin guards catalog mutations; everyone else reads.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getRole(r.Context()) != RoleAdmin {
			respondError(w, http.StatusForbidden, "permission_denied", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), "request_id", requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getUserRef(ctx context.Context) string {
	if userRef, ok := ctx.Value("user_ref").(string); ok {
		return userRef
	}
	return defaultUserRef
}

func getRole(ctx context.Context) string {
	if role, ok := ctx.Value("role").(string); ok {
		return role
	}
	return RoleUser
}
