// internal/app/store/history/historystore.go

// Package historystore is the append-only timeline of an application.
// Entries are never updated or deleted.
package historystore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openzakat/zakathub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("application_history")}
}

// Append records one entry. ID and CreatedAt are assigned here.
func (s *Store) Append(ctx context.Context, entry models.HistoryEntry) error {
	entry.ID = primitive.NewObjectID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, entry)
	return err
}

// ListByApplication returns an application's timeline, newest first.
func (s *Store) ListByApplication(ctx context.Context, appID primitive.ObjectID, limit int64) ([]models.HistoryEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{"application_id": appID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []models.HistoryEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByApplication returns the number of entries for an application.
func (s *Store) CountByApplication(ctx context.Context, appID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"application_id": appID})
}
