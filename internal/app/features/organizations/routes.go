// internal/app/features/organizations/routes.go
package organizations

import (
	"github.com/go-chi/chi/v5"

	"github.com/openzakat/zakathub/internal/app/system/auth"
)

// Routes mounts all Organization routes under the base path (typically
// "/organizations" from bootstrap).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Staff can browse the network directory.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("admin", "superadmin"))
		pr.Get("/", h.List)
		pr.Get("/{id}", h.View)
	})

	// Only superadmins manage the directory itself.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole("superadmin"))
		pr.Post("/", h.Create)
		pr.Put("/{id}", h.Update)
	})

	return r
}
