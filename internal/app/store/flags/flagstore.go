// internal/app/store/flags/flagstore.go
package flagstore

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
	return &Store{c: db.Collection("flags")}
}

// Create raises a new active flag on an applicant. An applicant may carry
// several active flags at once (raised by different organizations).
func (s *Store) Create(ctx context.Context, flag models.Flag) (models.Flag, error) {
	flag.ID = primitive.NewObjectID()
	flag.IsActive = true
	flag.CreatedAt = time.Now().UTC()
	flag.ResolvedAt = nil
	flag.ResolvedBy = nil
	flag.ResolutionNotes = ""
	if _, err := s.c.InsertOne(ctx, flag); err != nil {
		return models.Flag{}, err
	}
	return flag, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Flag, error) {
	var flag models.Flag
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&flag)
	if err != nil {
		return models.Flag{}, err
	}
	return flag, nil
}

// Resolve deactivates a flag, recording who resolved it and why. The
// is_active filter means a second resolve of the same flag reports no match.
func (s *Store) Resolve(ctx context.Context, id, resolvedBy primitive.ObjectID, notes string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": true},
		bson.M{"$set": bson.M{
			"is_active":        false,
			"resolved_at":      now,
			"resolved_by":      resolvedBy,
			"resolution_notes": notes,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// HasActive reports whether the applicant currently carries an active flag.
func (s *Store) HasActive(ctx context.Context, applicantID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"applicant_id": applicantID, "is_active": true}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByApplicant returns all of an applicant's flags, newest first.
func (s *Store) ListByApplicant(ctx context.Context, applicantID primitive.ObjectID) ([]models.Flag, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"applicant_id": applicantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var flags []models.Flag
	if err := cur.All(ctx, &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// Find returns flags matching the given filter with optional find options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Flag, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var flags []models.Flag
	if err := cur.All(ctx, &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

// Count returns the number of flags matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
