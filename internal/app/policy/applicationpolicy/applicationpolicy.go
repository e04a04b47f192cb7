// Package applicationpolicy provides authorization policies for the
// application lifecycle.
//
// Authorization rules:
//   - Applicants see and edit only their own applications
//   - Admins (masjid staff) see the shared queue plus their org's caseload,
//     and act on a claimed case only while they are its assignee
//   - Superadmins see everything but claim/resolve through an org like staff
package applicationpolicy

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openzakat/zakathub/internal/app/system/authz"
	"github.com/openzakat/zakathub/internal/app/system/statusflow"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// ListScope represents the set of applications a user may list.
type ListScope struct {
	// CanList indicates whether the user can list applications at all.
	CanList bool
	// AllApplications is true for superadmins.
	AllApplications bool
	// ApplicantID restricts the list to one applicant's own applications.
	ApplicantID primitive.ObjectID
	// OrgID restricts the list to one organization's caseload plus the
	// shared queue.
	OrgID primitive.ObjectID
}

// ListApplications determines what scope of applications the current user
// can list.
func ListApplications(r *http.Request) ListScope {
	role, _, userID, ok := authz.UserCtx(r)
	if !ok {
		return ListScope{CanList: false}
	}

	switch role {
	case "superadmin":
		return ListScope{CanList: true, AllApplications: true}
	case "admin":
		orgID := authz.UserOrgID(r)
		if orgID == primitive.NilObjectID {
			return ListScope{CanList: false}
		}
		return ListScope{CanList: true, OrgID: orgID}
	case "applicant":
		return ListScope{CanList: true, ApplicantID: userID}
	default:
		return ListScope{CanList: false}
	}
}

// CanViewApplication reports whether the current user may read the given
// application, including its history and disbursements.
func CanViewApplication(r *http.Request, app *models.Application) bool {
	role, _, userID, ok := authz.UserCtx(r)
	if !ok {
		return false
	}

	switch role {
	case "superadmin":
		return true
	case "admin":
		// Unclaimed queue entries are visible to all staff; claimed cases
		// only to the owning organization.
		if app.AssignedToOrg == nil {
			return app.Status != statusflow.Draft
		}
		return authz.CanAccessOrg(r, *app.AssignedToOrg)
	case "applicant":
		return app.ApplicantSnapshot.ApplicantID == userID
	default:
		return false
	}
}

// CanEditDraft reports whether the current user may modify or submit the
// draft. Only the owning applicant may, and only while it is a draft.
func CanEditDraft(r *http.Request, app *models.Application) bool {
	role, _, userID, ok := authz.UserCtx(r)
	if !ok || role != "applicant" {
		return false
	}
	return app.Status == statusflow.Draft && app.ApplicantSnapshot.ApplicantID == userID
}

// CanClaim reports whether the current user may claim from the shared
// queue: staff with an organization, or superadmin.
func CanClaim(r *http.Request) bool {
	if authz.IsSuperAdmin(r) {
		return true
	}
	return authz.IsStaff(r) && authz.UserOrgID(r) != primitive.NilObjectID
}

// CanActOnCase reports whether the current user may release, transition,
// resolve, or disburse against the given application. Staff must be the
// case's current assignee; superadmins may act on any application,
// including unclaimed ones.
func CanActOnCase(r *http.Request, app *models.Application) bool {
	if authz.IsSuperAdmin(r) {
		return true
	}
	if app.AssignedTo == nil || app.AssignedToOrg == nil {
		return false
	}
	_, _, userID, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	return authz.IsStaff(r) && *app.AssignedTo == userID && authz.CanAccessOrg(r, *app.AssignedToOrg)
}

// CanAddNote reports whether the current user may annotate the
// application: acting staff, superadmin, or the owning applicant.
func CanAddNote(r *http.Request, app *models.Application) bool {
	role, _, userID, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	if role == "applicant" {
		return app.ApplicantSnapshot.ApplicantID == userID
	}
	return CanViewApplication(r, app)
}
