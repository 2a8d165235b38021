package auth

import (
	"net/http"
	"strings"

	"github.com/example/lesson-platform/internal/platform/api"
)

// RequireAdmin passes the request through only when RequireUser already put
// role=admin into the context. Operators use it for force-teardown routes.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFromContext(r.Context())
		if !strings.EqualFold(strings.TrimSpace(role), "admin") {
			api.Forbidden(w, "ADMIN_ONLY", "Admin role required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
