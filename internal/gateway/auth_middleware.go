package gateway

import (
	"net/http"

	"github.com/nullbridge/tunnelgate/internal/auth"
)

// requireAdmin wraps next so it only runs once the request's
// Authorization header carries the configured admin key, per spec.md
// §4.7's three accepted header forms. Missing, malformed, or mismatching
// credentials produce 401 with the standard error envelope.
func (g *Gateway) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := auth.ExtractAdminKey(r.Header.Get("Authorization"))
		if !ok || !auth.ConstantTimeEquals(key, g.cfg.AdminKey) {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid admin credentials")
			return
		}
		next(w, r)
	}
}
