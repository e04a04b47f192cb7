// internal/app/features/applications/routes.go
package applications

import (
	"github.com/go-chi/chi/v5"

	"github.com/openzakat/zakathub/internal/app/system/auth"
)

// Routes mounts all Application routes under the base path (typically
// "/applications" from bootstrap). Per-application authorization happens
// in the handlers via applicationpolicy.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.List)
	r.Post("/", h.Create)

	// Shared queue of submitted, unclaimed applications.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole("admin", "superadmin"))
		pr.Get("/queue", h.Queue)
	})

	r.Get("/{id}", h.View)
	r.Put("/{id}", h.UpdateDraft)
	r.Get("/{id}/history", h.History)
	r.Get("/{id}/disbursements", h.ListDisbursements)
	r.Post("/{id}/notes", h.AddNote)

	// Applicant lifecycle.
	r.Post("/{id}/submit", h.Submit)

	// Staff lifecycle.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole("admin", "superadmin"))
		pr.Post("/{id}/claim", h.Claim)
		pr.Post("/{id}/release", h.Release)
		pr.Post("/{id}/status", h.ChangeStatus)
		pr.Post("/{id}/resolve", h.Resolve)
		pr.Post("/{id}/disbursements", h.RecordDisbursement)
	})

	// Superadmin-only direct reassignment.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole("superadmin"))
		pr.Post("/{id}/reassign", h.Reassign)
	})

	return r
}
