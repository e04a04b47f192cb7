// internal/app/system/statusflow/statusflow.go

// Package statusflow defines the fixed application status set and the legal
// transitions between statuses. Every mutating operation consults
// IsLegalTransition before writing anything; an undeclared transition is a
// precondition failure, never a partial write.
package statusflow

// Application statuses. Draft is the entry state; Disbursed and Closed are
// absorbing (no outgoing transitions).
const (
	Draft               = "draft"
	Submitted           = "submitted"
	UnderReview         = "under_review"
	PendingDocuments    = "pending_documents"
	PendingVerification = "pending_verification"
	Approved            = "approved"
	Rejected            = "rejected"
	Disbursed           = "disbursed"
	Closed              = "closed"
)

// transitions maps each status to the set of statuses it may move to.
// Note there is deliberately no pending_documents → approved edge: an
// application must come back through review or verification first.
var transitions = map[string][]string{
	Draft:               {Submitted},
	Submitted:           {UnderReview, Closed},
	UnderReview:         {PendingDocuments, PendingVerification, Approved, Rejected, Closed},
	PendingDocuments:    {UnderReview, PendingVerification, Rejected, Closed},
	PendingVerification: {UnderReview, Approved, Rejected, Closed},
	Approved:            {Disbursed, Closed},
	Rejected:            {Closed},
	Disbursed:           {},
	Closed:              {},
}

// IsValid reports whether s is a member of the status enum.
func IsValid(s string) bool {
	_, ok := transitions[s]
	return ok
}

// IsLegalTransition reports whether moving from one status to another is
// declared in the transition table. Unknown statuses are never legal.
func IsLegalTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns a copy of the legal next statuses for a status.
func NextStatuses(from string) []string {
	next := transitions[from]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether a status represents a final decision
// (approved, rejected, disbursed, or closed).
func IsTerminal(s string) bool {
	switch s {
	case Approved, Rejected, Disbursed, Closed:
		return true
	}
	return false
}

// IsActive reports whether an application in this status occupies a slot in
// an organization's in-progress count (claimed but not yet resolved).
func IsActive(s string) bool {
	switch s {
	case UnderReview, PendingDocuments, PendingVerification:
		return true
	}
	return false
}
