// internal/domain/models/disbursement.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Disbursement is an immutable ledger row recording money paid out against
// an approved application. Multiple partial disbursements may exist for a
// single approval.
type Disbursement struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ApplicationID  primitive.ObjectID `bson:"application_id" json:"application_id"`
	ApplicantID    primitive.ObjectID `bson:"applicant_id" json:"applicant_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	Amount         float64            `bson:"amount" json:"amount"`
	Method         string             `bson:"method" json:"method"` // "check", "cash", "transfer", ...
	Reference      string             `bson:"reference" json:"reference"`
	RecordedBy     primitive.ObjectID `bson:"recorded_by" json:"recorded_by"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}
