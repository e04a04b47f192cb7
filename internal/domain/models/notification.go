// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is an append-only record consumed by the external delivery
// collaborator. The core only enqueues these; it never sends email.
type Notification struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Type          string              `bson:"type" json:"type"`
	Title         string              `bson:"title" json:"title"`
	Message       string              `bson:"message" json:"message"`
	ApplicationID *primitive.ObjectID `bson:"application_id,omitempty" json:"application_id,omitempty"`
	DedupeKey     string              `bson:"dedupe_key,omitempty" json:"dedupe_key,omitempty"`
	Read          bool                `bson:"read" json:"read"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
}
