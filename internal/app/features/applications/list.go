// internal/app/features/applications/list.go
package applications

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	"github.com/openzakat/zakathub/internal/app/policy/applicationpolicy"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/normalize"
	"github.com/openzakat/zakathub/internal/app/system/paging"
	"github.com/openzakat/zakathub/internal/app/system/statusflow"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// applicantListLimit bounds the single-page applicant list; one person
// never has anywhere near this many applications.
const applicantListLimit = 200

// listResponse is a keyset-paged list of applications.
type listResponse struct {
	Applications []models.Application `json:"applications"`
	HasPrev      bool                 `json:"has_prev"`
	HasNext      bool                 `json:"has_next"`
	PrevCursor   string               `json:"prev_cursor,omitempty"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}

// List handles GET /applications. Applicants see their own applications
// (drafts included); staff see their organization's caseload; superadmins
// see everything. Staff lists page by application number.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope := applicationpolicy.ListApplications(r)
	if !scope.CanList {
		respond.Error(w, h.Log, apperr.New(apperr.PermissionDenied, "not allowed to list applications"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.list")
	defer cancel()

	filter := bson.M{}
	if status := normalize.Status(query.Get(r, "status")); status != "" {
		if !statusflow.IsValid(status) {
			respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "unknown status %q", status))
			return
		}
		filter["status"] = status
	}

	if scope.ApplicantID != primitive.NilObjectID {
		h.listForApplicant(ctx, w, r, scope.ApplicantID, filter)
		return
	}

	if scope.AllApplications {
		// Network-wide lists page by number, which drafts do not have yet.
		if _, ok := filter["status"]; !ok {
			filter["status"] = bson.M{"$ne": statusflow.Draft}
		}
	} else {
		filter["assigned_to_org"] = scope.OrgID
	}

	before := query.Get(r, "before")
	after := query.Get(r, "after")
	cfg := paging.ConfigureKeyset(before, after)
	if win := cfg.KeysetWindow("application_number"); win != nil {
		for k, v := range win {
			filter[k] = v
		}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "application_number")

	rows, err := h.Apps.Find(ctx, filter, find)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not list applications"))
		return
	}

	page := paging.TrimPage(&rows, before, after)
	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}

	resp := listResponse{
		Applications: rows,
		HasPrev:      page.HasPrev,
		HasNext:      page.HasNext,
	}
	resp.PrevCursor, resp.NextCursor = paging.BuildCursors(rows,
		func(a models.Application) string { return a.ApplicationNumber },
		func(a models.Application) primitive.ObjectID { return a.ID },
	)
	respond.OK(w, resp)
}

// listForApplicant serves the applicant's own applications, newest first,
// with internal notes stripped.
func (h *Handler) listForApplicant(ctx context.Context, w http.ResponseWriter, r *http.Request, applicantID primitive.ObjectID, filter bson.M) {
	filter["applicant_snapshot.applicant_id"] = applicantID

	find := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(applicantListLimit)
	rows, err := h.Apps.Find(ctx, filter, find)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not list applications"))
		return
	}
	for i := range rows {
		rows[i] = forViewer(r, rows[i])
	}
	respond.OK(w, listResponse{Applications: rows})
}

// Queue handles GET /applications/queue: the shared queue of submitted,
// unclaimed applications, oldest first.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "applications.queue")
	defer cancel()

	apps, err := h.Svc.Queue(ctx, paging.LimitPlusOne())
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	hasNext := false
	if int64(len(apps)) > int64(paging.PageSize) {
		apps = apps[:paging.PageSize]
		hasNext = true
	}
	respond.OK(w, listResponse{Applications: apps, HasNext: hasNext})
}
