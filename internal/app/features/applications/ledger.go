// internal/app/features/applications/ledger.go

// Terminal decision and payout endpoints.

package applications

import (
	"net/http"

	"github.com/openzakat/zakathub/internal/app/casework"
	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	"github.com/openzakat/zakathub/internal/app/policy/applicationpolicy"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
)

type resolveRequest struct {
	Decision        string  `json:"decision"`
	AmountApproved  float64 `json:"amount_approved"`
	RejectionReason string  `json:"rejection_reason"`
}

// Resolve handles POST /applications/{id}/resolve: the write-once terminal
// decision.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
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
	var req resolveRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.resolve")
	defer cancel()

	app, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if !applicationpolicy.CanActOnCase(r, &app) {
		respond.Error(w, h.Log, apperr.New(apperr.PermissionDenied, "not your case to act on"))
		return
	}

	resolved, err := h.Svc.Resolve(ctx, actor, id, casework.ResolveInput{
		Decision:        req.Decision,
		AmountApproved:  req.AmountApproved,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, resolved)
}

type disbursementRequest struct {
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
}

// RecordDisbursement handles POST /applications/{id}/disbursements: one
// (possibly partial) payout against an approved application.
func (h *Handler) RecordDisbursement(w http.ResponseWriter, r *http.Request) {
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
	var req disbursementRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.disburse")
	defer cancel()

	app, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if !applicationpolicy.CanActOnCase(r, &app) {
		respond.Error(w, h.Log, apperr.New(apperr.PermissionDenied, "not your case to act on"))
		return
	}

	row, err := h.Svc.RecordDisbursement(ctx, actor, id, casework.DisbursementInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.Created(w, row)
}
