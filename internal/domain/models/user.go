// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles used throughout the portal. Identity and role issuance are handled
// by the external auth collaborator; this core only consumes them.
const (
	RoleApplicant  = "applicant"
	RoleAdmin      = "admin" // masjid staff
	RoleSuperAdmin = "superadmin"
)

// User is the profile record for an applicant or staff member.
// IsFlagged on an applicant profile mirrors "has at least one active flag";
// it is maintained by the flag fan-out, never written directly.
type User struct {
	ID             primitive.ObjectID  `bson:"_id" json:"id"`
	FullName       string              `bson:"full_name" json:"full_name"`
	FullNameCI     string              `bson:"full_name_ci" json:"-"`
	Email          string              `bson:"email" json:"email"`
	Role           string              `bson:"role" json:"role"`
	Status         string              `bson:"status" json:"status"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`
	IsFlagged      bool                `bson:"is_flagged" json:"is_flagged"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}
