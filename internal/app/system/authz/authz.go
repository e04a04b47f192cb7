// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/openzakat/zakathub/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a
// found flag. If no user is present in context or the user ID is malformed,
// it returns "visitor", "", NilObjectID, false; ok=true always means a
// valid, authenticated user with a valid ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session - fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsSuperAdmin reports whether the current request's user holds the
// network-wide role.
func IsSuperAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == "superadmin"
}

// IsStaff reports whether the current request's user is masjid staff.
// Superadmins count as staff for permission purposes.
func IsStaff(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && (role == "admin" || role == "superadmin")
}

// IsApplicant reports whether the current request's user is an applicant.
func IsApplicant(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == "applicant"
}

// UserOrgID returns the current user's organization ID as an ObjectID.
// Returns NilObjectID if the user is not signed in or has no organization
// (applicants and superadmins have none).
func UserOrgID(r *http.Request) primitive.ObjectID {
	user, ok := auth.CurrentUser(r)
	if !ok || user.OrganizationID == "" {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(user.OrganizationID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// CanAccessOrg reports whether the current user can act on behalf of the
// given organization. Superadmins can act for any organization; staff only
// for their own; applicants for none.
func CanAccessOrg(r *http.Request, orgID primitive.ObjectID) bool {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return false
	}

	role := strings.ToLower(user.Role)
	if role == "superadmin" {
		return true
	}
	if role == "admin" {
		if user.OrganizationID == "" {
			return false
		}
		userOrgID, err := primitive.ObjectIDFromHex(user.OrganizationID)
		if err != nil {
			return false
		}
		return userOrgID == orgID
	}
	return false
}
