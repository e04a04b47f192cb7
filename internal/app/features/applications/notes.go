// internal/app/features/applications/notes.go
package applications

import (
	"net/http"

	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	"github.com/openzakat/zakathub/internal/app/policy/applicationpolicy"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
)

type noteRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// AddNote handles POST /applications/{id}/notes. Staff may mark notes
// internal; applicant notes are always visible.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
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
	var req noteRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "applications.add_note")
	defer cancel()

	app, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if !applicationpolicy.CanAddNote(r, &app) {
		respond.Error(w, h.Log, apperr.New(apperr.NotFound, "application not found"))
		return
	}

	note, err := h.Svc.AddNote(ctx, actor, id, req.Content, req.IsInternal)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.Created(w, note)
}
