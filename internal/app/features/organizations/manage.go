// internal/app/features/organizations/manage.go

// Directory management: create and update organization profiles. Caseload
// counters are never written through these endpoints; they move only with
// the application lifecycle.

package organizations

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	organizationstore "github.com/openzakat/zakathub/internal/app/store/organizations"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/htmlsanitize"
	"github.com/openzakat/zakathub/internal/app/system/normalize"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

type orgRequest struct {
	Name        string `json:"name"`
	City        string `json:"city"`
	State       string `json:"state"`
	TimeZone    string `json:"time_zone"`
	ContactInfo string `json:"contact_info"`
	Status      string `json:"status"`
}

func (req *orgRequest) sanitize() {
	req.Name = normalize.Name(req.Name)
	req.City = normalize.Name(req.City)
	req.State = normalize.Name(req.State)
	req.TimeZone = strings.TrimSpace(req.TimeZone)
	req.ContactInfo = htmlsanitize.Plain(req.ContactInfo)
	req.Status = normalize.Status(req.Status)
}

// Create handles POST /organizations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	req.sanitize()
	if req.Name == "" {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "organization name is required"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "organizations.create")
	defer cancel()

	org, err := h.Orgs.Create(ctx, models.Organization{
		Name:        req.Name,
		City:        req.City,
		State:       req.State,
		TimeZone:    req.TimeZone,
		ContactInfo: req.ContactInfo,
		Status:      req.Status,
	})
	if err != nil {
		if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
			respond.Error(w, h.Log, apperr.New(apperr.FailedPrecondition, "an organization with this name already exists"))
			return
		}
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not create organization"))
		return
	}
	respond.Created(w, org)
}

// Update handles PUT /organizations/{id}. Empty fields are left unchanged.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "invalid organization id"))
		return
	}
	var req orgRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	req.sanitize()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "organizations.update")
	defer cancel()

	if _, err := h.Orgs.GetByID(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, h.Log, apperr.New(apperr.NotFound, "organization not found"))
			return
		}
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not load organization"))
		return
	}

	err = h.Orgs.Update(ctx, id, models.Organization{
		Name:        req.Name,
		City:        req.City,
		State:       req.State,
		TimeZone:    req.TimeZone,
		ContactInfo: req.ContactInfo,
		Status:      req.Status,
	})
	if err != nil {
		if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
			respond.Error(w, h.Log, apperr.New(apperr.FailedPrecondition, "an organization with this name already exists"))
			return
		}
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not update organization"))
		return
	}

	org, err := h.Orgs.GetByID(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not load organization"))
		return
	}
	respond.OK(w, org)
}

// View handles GET /organizations/{id}, including the live caseload
// counters.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "invalid organization id"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "organizations.view")
	defer cancel()

	org, err := h.Orgs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, h.Log, apperr.New(apperr.NotFound, "organization not found"))
			return
		}
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not load organization"))
		return
	}
	respond.OK(w, org)
}
