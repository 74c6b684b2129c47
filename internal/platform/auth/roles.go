package auth

import (
	"net/http"
	"strings"

	"github.com/example/store-rating/internal/platform/api"
	"github.com/example/store-rating/internal/platform/httpserver"
)

// RequireRole allows the request only if RequireUser already injected a
// principal whose role is one of roles (case-insensitive).
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := httpserver.RequestIDFromContext(r.Context())
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				api.Unauthorized(w, "AUTH_MISSING", "authentication required", rid)
				return
			}
			if _, ok := allowed[strings.ToLower(p.Role)]; !ok {
				api.Forbidden(w, "FORBIDDEN_ROLE", "role not permitted", rid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireRole("admin").
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole("admin")(next)
}
