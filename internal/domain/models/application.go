// internal/domain/models/application.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ApplicantSnapshot is the denormalized applicant data copied onto an
// application at submission time. Only IsFlagged is kept in sync afterward
// (via the flag fan-out); name and email are a point-in-time copy.
type ApplicantSnapshot struct {
	ApplicantID primitive.ObjectID `bson:"applicant_id" json:"applicant_id"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"`
	IsFlagged   bool               `bson:"is_flagged" json:"is_flagged"`
}

// Resolution records the terminal decision on an application.
// DecidedAt being set is the single source of truth for "this application
// has already been counted in the organization aggregates".
type Resolution struct {
	Decision        string              `bson:"decision" json:"decision"` // "approved", "rejected", or "closed"
	DecidedBy       primitive.ObjectID  `bson:"decided_by" json:"decided_by"`
	DecidedByName   string              `bson:"decided_by_name,omitempty" json:"decided_by_name,omitempty"`
	DecidedAt       time.Time           `bson:"decided_at" json:"decided_at"`
	AmountApproved  float64             `bson:"amount_approved,omitempty" json:"amount_approved,omitempty"`
	AmountDisbursed float64             `bson:"amount_disbursed,omitempty" json:"amount_disbursed,omitempty"`
	DisbursedAt     *time.Time          `bson:"disbursed_at,omitempty" json:"disbursed_at,omitempty"`
	RejectionReason string              `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
}

// Note is an append-only annotation on an application.
type Note struct {
	ID         primitive.ObjectID `bson:"id" json:"id"`
	Content    string             `bson:"content" json:"content"`
	IsInternal bool               `bson:"is_internal" json:"is_internal"`
	CreatedBy  primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Application is the aggregate root of the case-management core.
//
// Ownership invariant: AssignedTo, AssignedToOrg, AssignedToOrgName and
// AssignedAt are set or cleared together. An application never has more
// than one current owner.
type Application struct {
	ID                primitive.ObjectID `bson:"_id" json:"id"`
	ApplicationNumber string             `bson:"application_number,omitempty" json:"application_number,omitempty"`

	Status      string     `bson:"status" json:"status"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	SubmittedAt *time.Time `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`

	AssignedTo        *primitive.ObjectID `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	AssignedToOrg     *primitive.ObjectID `bson:"assigned_to_org,omitempty" json:"assigned_to_org,omitempty"`
	AssignedToOrgName string              `bson:"assigned_to_org_name,omitempty" json:"assigned_to_org_name,omitempty"`
	AssignedAt        *time.Time          `bson:"assigned_at,omitempty" json:"assigned_at,omitempty"`

	ApplicantSnapshot ApplicantSnapshot `bson:"applicant_snapshot" json:"applicant_snapshot"`

	// Request details supplied by the applicant. DocumentPaths are opaque
	// references into the external document store; this service never reads
	// the files themselves.
	Category        string   `bson:"category,omitempty" json:"category,omitempty"`
	AmountRequested float64  `bson:"amount_requested,omitempty" json:"amount_requested,omitempty"`
	Description     string   `bson:"description,omitempty" json:"description,omitempty"`
	DocumentPaths   []string `bson:"document_paths,omitempty" json:"document_paths,omitempty"`

	Resolution *Resolution `bson:"resolution,omitempty" json:"resolution,omitempty"`
	Notes      []Note      `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Assigned reports whether the application currently has an owner.
func (a *Application) Assigned() bool {
	return a.AssignedTo != nil
}

// Resolved reports whether a terminal decision has been recorded.
func (a *Application) Resolved() bool {
	return a.Resolution != nil && !a.Resolution.DecidedAt.IsZero()
}
