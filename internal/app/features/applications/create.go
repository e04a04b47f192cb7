// internal/app/features/applications/create.go
package applications

import (
	"net/http"

	"github.com/openzakat/zakathub/internal/app/casework"
	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
)

type draftRequest struct {
	Category        string   `json:"category"`
	AmountRequested float64  `json:"amount_requested"`
	Description     string   `json:"description"`
	DocumentPaths   []string `json:"document_paths"`
}

// Create handles POST /applications: an applicant opens a new draft.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var req draftRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.create")
	defer cancel()

	app, err := h.Svc.CreateDraft(ctx, actor, casework.DraftInput{
		Category:        req.Category,
		AmountRequested: req.AmountRequested,
		Description:     req.Description,
		DocumentPaths:   req.DocumentPaths,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.Created(w, app)
}

// UpdateDraft handles PUT /applications/{id}: the owning applicant edits
// their draft.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var req draftRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.update_draft")
	defer cancel()

	if err := h.Svc.UpdateDraft(ctx, actor, id, casework.DraftInput{
		Category:        req.Category,
		AmountRequested: req.AmountRequested,
		Description:     req.Description,
		DocumentPaths:   req.DocumentPaths,
	}); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	app, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, forViewer(r, app))
}
