// internal/app/features/applications/view.go
package applications

import (
	"net/http"

	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	"github.com/openzakat/zakathub/internal/app/policy/applicationpolicy"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// historyLimit bounds the event trail returned with a single request.
const historyLimit = 200

// View handles GET /applications/{id}. A denied view answers not-found so
// applicants cannot probe for other people's applications.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "applications.view")
	defer cancel()

	app, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if !applicationpolicy.CanViewApplication(r, &app) {
		respond.Error(w, h.Log, apperr.New(apperr.NotFound, "application not found"))
		return
	}
	respond.OK(w, forViewer(r, app))
}

// History handles GET /applications/{id}/history: the immutable event
// trail, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "applications.history")
	defer cancel()

	app, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if !applicationpolicy.CanViewApplication(r, &app) {
		respond.Error(w, h.Log, apperr.New(apperr.NotFound, "application not found"))
		return
	}

	entries, err := h.Svc.History(ctx, id, historyLimit)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, map[string][]models.HistoryEntry{"history": entries})
}

// ListDisbursements handles GET /applications/{id}/disbursements: the
// payout ledger for one application, oldest first.
func (h *Handler) ListDisbursements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "applications.disbursements")
	defer cancel()

	app, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if !applicationpolicy.CanViewApplication(r, &app) {
		respond.Error(w, h.Log, apperr.New(apperr.NotFound, "application not found"))
		return
	}

	rows, err := h.Svc.Disbursements(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, map[string][]models.Disbursement{"disbursements": rows})
}
