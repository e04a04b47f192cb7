// internal/app/features/reports/handler.go

// Package reports serves read-only aggregates over the payout ledger: a
// per-applicant summary for staff, plus the network-wide disbursement
// summary and live caseload counters for superadmins.
package reports

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	disbursementstore "github.com/openzakat/zakathub/internal/app/store/disbursements"
	organizationstore "github.com/openzakat/zakathub/internal/app/store/organizations"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/auth"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// Handler is the feature-level entry point for Reports.
type Handler struct {
	Orgs *organizationstore.Store
	Disb *disbursementstore.Store
	Log  *zap.Logger
}

// NewHandler constructs a Reports handler bound to a DB and logger.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Orgs: organizationstore.New(db),
		Disb: disbursementstore.New(db),
		Log:  logger,
	}
}

// Routes mounts the report routes (typically under "/reports").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole("admin", "superadmin"))
		pr.Get("/applicants/{applicantID}/disbursements", h.ApplicantDisbursements)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole("superadmin"))
		pr.Get("/disbursements", h.Disbursements)
		pr.Get("/caseload", h.Caseload)
	})
	return r
}

// orgRow is one organization's totals over the requested window.
type orgRow struct {
	OrganizationID   primitive.ObjectID `json:"organization_id"`
	OrganizationName string             `json:"organization_name"`
	Count            int64              `json:"count"`
	Total            float64            `json:"total"`
}

type disbursementsResponse struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	Organizations []orgRow  `json:"organizations"`
	GrandTotal    float64   `json:"grand_total"`
}

// Disbursements handles GET /reports/disbursements?from=&to= (RFC 3339
// dates; defaults to the last 30 days).
func (h *Handler) Disbursements(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	var err error
	if s := query.Get(r, "from"); s != "" {
		if from, err = time.Parse("2006-01-02", s); err != nil {
			respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "from must be YYYY-MM-DD"))
			return
		}
	}
	if s := query.Get(r, "to"); s != "" {
		if to, err = time.Parse("2006-01-02", s); err != nil {
			respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "to must be YYYY-MM-DD"))
			return
		}
		to = to.AddDate(0, 0, 1) // window is inclusive of the "to" day
	}
	if !from.Before(to) {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "from must precede to"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "reports.disbursements")
	defer cancel()

	summary, err := h.Disb.SummarizeByOrg(ctx, from, to)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not summarize disbursements"))
		return
	}

	ids := make([]primitive.ObjectID, 0, len(summary))
	for _, s := range summary {
		ids = append(ids, s.OrganizationID)
	}
	orgs, err := h.Orgs.GetByIDs(ctx, ids)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not load organizations"))
		return
	}
	names := make(map[primitive.ObjectID]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.Name
	}

	resp := disbursementsResponse{From: from, To: to}
	for _, s := range summary {
		resp.Organizations = append(resp.Organizations, orgRow{
			OrganizationID:   s.OrganizationID,
			OrganizationName: names[s.OrganizationID],
			Count:            s.Count,
			Total:            s.Total,
		})
		resp.GrandTotal += s.Total
	}
	respond.OK(w, resp)
}

type applicantSummaryResponse struct {
	ApplicantID   primitive.ObjectID `json:"applicant_id"`
	Organizations []orgRow           `json:"organizations"`
	GrandTotal    float64            `json:"grand_total"`
}

// ApplicantDisbursements handles GET
// /reports/applicants/{applicantID}/disbursements: one applicant's payout
// history grouped by organization. An applicant with no payouts gets an
// empty summary.
func (h *Handler) ApplicantDisbursements(w http.ResponseWriter, r *http.Request) {
	applicantID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "applicantID"))
	if err != nil {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "invalid applicant id"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "reports.applicant_disbursements")
	defer cancel()

	summary, err := h.Disb.SummarizeForApplicant(ctx, applicantID)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not summarize disbursements"))
		return
	}

	ids := make([]primitive.ObjectID, 0, len(summary))
	for _, s := range summary {
		ids = append(ids, s.OrganizationID)
	}
	orgs, err := h.Orgs.GetByIDs(ctx, ids)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not load organizations"))
		return
	}
	names := make(map[primitive.ObjectID]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.Name
	}

	resp := applicantSummaryResponse{ApplicantID: applicantID, Organizations: []orgRow{}}
	for _, s := range summary {
		resp.Organizations = append(resp.Organizations, orgRow{
			OrganizationID:   s.OrganizationID,
			OrganizationName: names[s.OrganizationID],
			Count:            s.Count,
			Total:            s.Total,
		})
		resp.GrandTotal += s.Total
	}
	respond.OK(w, resp)
}

// Caseload handles GET /reports/caseload: every organization's live
// counters, busiest first.
func (h *Handler) Caseload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "reports.caseload")
	defer cancel()

	find := options.Find().SetSort(bson.D{
		{Key: "applications_in_progress", Value: -1},
		{Key: "name_ci", Value: 1},
	})
	orgs, err := h.Orgs.Find(ctx, bson.M{}, find)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not load organizations"))
		return
	}
	respond.OK(w, map[string][]models.Organization{"organizations": orgs})
}
