// internal/domain/models/history.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryEntry is an immutable record of a state-changing operation on an
// application. Entries are never updated or deleted; display order is
// CreatedAt descending.
type HistoryEntry struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ApplicationID   primitive.ObjectID `bson:"application_id" json:"application_id"`
	Action          string             `bson:"action" json:"action"`
	PerformedBy     primitive.ObjectID `bson:"performed_by" json:"performed_by"`
	PerformedByName string             `bson:"performed_by_name,omitempty" json:"performed_by_name,omitempty"`
	PreviousStatus  string             `bson:"previous_status,omitempty" json:"previous_status,omitempty"`
	NewStatus       string             `bson:"new_status,omitempty" json:"new_status,omitempty"`
	Details         string             `bson:"details" json:"details"`
	Metadata        map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}
