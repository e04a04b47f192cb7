// internal/app/features/flags/routes.go
package flags

import (
	"github.com/go-chi/chi/v5"

	"github.com/openzakat/zakathub/internal/app/system/auth"
)

// Routes mounts all Flag routes under the base path (typically "/flags"
// from bootstrap). Flags are staff-only; applicants never see them.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Use(sm.RequireRole("admin", "superadmin"))

	r.Get("/", h.List)
	r.Post("/", h.Raise)
	r.Post("/{id}/resolve", h.Resolve)

	return r
}
