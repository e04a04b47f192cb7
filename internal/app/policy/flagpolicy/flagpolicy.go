// Package flagpolicy provides authorization policies for applicant flags.
//
// Authorization rules:
//   - Staff and superadmins may raise and resolve flags and list them
//   - Applicants never see flags, including their own
package flagpolicy

import (
	"net/http"

	"github.com/openzakat/zakathub/internal/app/system/authz"
)

// CanRaiseFlag reports whether the current user may flag an applicant.
func CanRaiseFlag(r *http.Request) bool {
	return authz.IsStaff(r)
}

// CanResolveFlag reports whether the current user may resolve a flag.
// Any staff member may resolve, not only the raising organization: flags
// are a network-wide signal and resolution is a reviewed staff action.
func CanResolveFlag(r *http.Request) bool {
	return authz.IsStaff(r)
}

// CanListFlags reports whether the current user may list flags.
func CanListFlags(r *http.Request) bool {
	return authz.IsStaff(r)
}
