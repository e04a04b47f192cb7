// internal/domain/models/flag.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Flag marks an applicant for attention across the whole network. One
// applicant may carry multiple flags (raised by different organizations);
// the applicant is considered flagged while at least one flag is active.
type Flag struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ApplicantID     primitive.ObjectID  `bson:"applicant_id" json:"applicant_id"`
	Reason          string              `bson:"reason" json:"reason"`
	Severity        string              `bson:"severity" json:"severity"` // "low", "medium", "high"
	IsActive        bool                `bson:"is_active" json:"is_active"`
	FlaggedBy       primitive.ObjectID  `bson:"flagged_by" json:"flagged_by"`
	FlaggedByOrg    *primitive.ObjectID `bson:"flagged_by_org,omitempty" json:"flagged_by_org,omitempty"`
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
	ResolvedAt      *time.Time          `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ResolvedBy      *primitive.ObjectID `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	ResolutionNotes string              `bson:"resolution_notes,omitempty" json:"resolution_notes,omitempty"`
}
