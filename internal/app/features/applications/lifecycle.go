// internal/app/features/applications/lifecycle.go

// Lifecycle endpoints: submission into the shared queue, claim/release by
// organizations, status transitions, and superadmin reassignment.

package applications

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openzakat/zakathub/internal/app/casework"
	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	"github.com/openzakat/zakathub/internal/app/policy/applicationpolicy"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
)

// Submit handles POST /applications/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.submit")
	defer cancel()

	app, err := h.Svc.Submit(ctx, actor, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, app)
}

// Claim handles POST /applications/{id}/claim.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	if !applicationpolicy.CanClaim(r) {
		respond.Error(w, h.Log, apperr.New(apperr.PermissionDenied, "claiming requires an organization"))
		return
	}
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.claim")
	defer cancel()

	app, err := h.Svc.Claim(ctx, actor, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, app)
}

type releaseRequest struct {
	Reason string `json:"reason"`
}

// Release handles POST /applications/{id}/release. The body is optional.
func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
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
	var req releaseRequest
	if err := respond.DecodeOptional(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.release")
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

	if err := h.Svc.Release(ctx, actor, id, req.Reason); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, map[string]string{"status": "released"})
}

type statusRequest struct {
	Status          string  `json:"status"`
	Reason          string  `json:"reason"`
	AmountApproved  float64 `json:"amount_approved"`
	DisbursedAmount float64 `json:"disbursed_amount"`
	Method          string  `json:"method"`
}

// ChangeStatus handles POST /applications/{id}/status: one lifecycle
// transition, terminal targets included.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
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
	var req statusRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.status")
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

	change := casework.StatusChangeInput{
		Status:          req.Status,
		Reason:          req.Reason,
		AmountApproved:  req.AmountApproved,
		DisbursedAmount: req.DisbursedAmount,
		Method:          req.Method,
	}
	if err := h.Svc.ChangeStatus(ctx, actor, id, change); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	updated, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, updated)
}

type reassignRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

// Reassign handles POST /applications/{id}/reassign (superadmin only,
// enforced by the route).
func (h *Handler) Reassign(w http.ResponseWriter, r *http.Request) {
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
	var req reassignRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	reviewerID, err := primitive.ObjectIDFromHex(req.ReviewerID)
	if err != nil {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "invalid reviewer id"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.reassign")
	defer cancel()

	if err := h.Svc.Reassign(ctx, actor, id, reviewerID); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	updated, err := h.Svc.GetApplication(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, updated)
}
