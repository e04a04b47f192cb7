// internal/app/features/flags/flags.go
package flags

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openzakat/zakathub/internal/app/casework"
	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	"github.com/openzakat/zakathub/internal/app/policy/flagpolicy"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/auth"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// listLimit bounds a single flag listing.
const listLimit = 200

type raiseRequest struct {
	ApplicantID string `json:"applicant_id"`
	Reason      string `json:"reason"`
	Severity    string `json:"severity"`
}

// Raise handles POST /flags: raise a flag against an applicant.
func (h *Handler) Raise(w http.ResponseWriter, r *http.Request) {
	if !flagpolicy.CanRaiseFlag(r) {
		respond.Error(w, h.Log, apperr.New(apperr.PermissionDenied, "only staff raise flags"))
		return
	}
	actor, err := actorFrom(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var req raiseRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	applicantID, err := primitive.ObjectIDFromHex(req.ApplicantID)
	if err != nil {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "invalid applicant id"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "flags.raise")
	defer cancel()

	flag, err := h.Svc.FlagApplicant(ctx, actor, applicantID, casework.FlagInput{
		Reason:   req.Reason,
		Severity: req.Severity,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.Created(w, flag)
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

// Resolve handles POST /flags/{id}/resolve. Any staff member may resolve
// a flag, not only the raising organization.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	if !flagpolicy.CanResolveFlag(r) {
		respond.Error(w, h.Log, apperr.New(apperr.PermissionDenied, "only staff resolve flags"))
		return
	}
	actor, err := actorFrom(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	flagID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "invalid flag id"))
		return
	}
	var req resolveRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "flags.resolve")
	defer cancel()

	if err := h.Svc.ResolveFlag(ctx, actor, flagID, req.Notes); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, map[string]string{"status": "resolved"})
}

// List handles GET /flags. Optional filters: applicant_id, active=true|false.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !flagpolicy.CanListFlags(r) {
		respond.Error(w, h.Log, apperr.New(apperr.PermissionDenied, "only staff list flags"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "flags.list")
	defer cancel()

	filter := bson.M{}
	if s := query.Get(r, "applicant_id"); s != "" {
		applicantID, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "invalid applicant id"))
			return
		}
		filter["applicant_id"] = applicantID
	}
	switch query.Get(r, "active") {
	case "":
	case "true":
		filter["is_active"] = true
	case "false":
		filter["is_active"] = false
	default:
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "active must be true or false"))
		return
	}

	find := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(listLimit)
	rows, err := h.Flags.Find(ctx, filter, find)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not list flags"))
		return
	}
	respond.OK(w, map[string][]models.Flag{"flags": rows})
}

// actorFrom builds the casework actor from the session user.
func actorFrom(r *http.Request) (casework.Actor, error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return casework.Actor{}, apperr.New(apperr.Unauthenticated, "sign-in required")
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return casework.Actor{}, apperr.New(apperr.Unauthenticated, "invalid session")
	}
	actor := casework.Actor{
		ID:      id,
		Name:    u.Name,
		Role:    u.Role,
		OrgName: u.OrganizationName,
	}
	if u.OrganizationID != "" {
		if orgID, err := primitive.ObjectIDFromHex(u.OrganizationID); err == nil {
			actor.OrgID = orgID
		}
	}
	return actor, nil
}
