// internal/app/store/disbursements/disbursementstore.go

// Package disbursementstore is the immutable payout ledger. Rows are only
// ever inserted; corrections are modeled as new rows, never edits.
package disbursementstore

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
	return &Store{c: db.Collection("disbursements")}
}

// Record inserts one ledger row. ID and CreatedAt are assigned here.
func (s *Store) Record(ctx context.Context, d models.Disbursement) (models.Disbursement, error) {
	d.ID = primitive.NewObjectID()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, d); err != nil {
		return models.Disbursement{}, err
	}
	return d, nil
}

// ListByApplication returns an application's payouts in insertion order.
func (s *Store) ListByApplication(ctx context.Context, appID primitive.ObjectID) ([]models.Disbursement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"application_id": appID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.Disbursement
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// TotalForApplication sums the ledger for one application.
func (s *Store) TotalForApplication(ctx context.Context, appID primitive.ObjectID) (float64, error) {
	return s.sumWhere(ctx, bson.M{"application_id": appID})
}

// OrgSummary aggregates an organization's payout activity inside a time
// window (either bound may be zero for an open end).
type OrgSummary struct {
	OrganizationID primitive.ObjectID `bson:"_id"`
	Count          int64              `bson:"count"`
	Total          float64            `bson:"total"`
}

// SummarizeForApplicant groups one applicant's payout history by
// organization, largest total first. An applicant with no payouts gets an
// empty summary, not an error.
func (s *Store) SummarizeForApplicant(ctx context.Context, applicantID primitive.ObjectID) ([]OrgSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"applicant_id": applicantID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$organization_id",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []OrgSummary{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SummarizeByOrg returns per-organization totals for the given window,
// largest total first.
func (s *Store) SummarizeByOrg(ctx context.Context, from, to time.Time) ([]OrgSummary, error) {
	match := bson.M{}
	created := bson.M{}
	if !from.IsZero() {
		created["$gte"] = from
	}
	if !to.IsZero() {
		created["$lt"] = to
	}
	if len(created) > 0 {
		match["created_at"] = created
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$organization_id",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []OrgSummary
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) sumWhere(ctx context.Context, match bson.M) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount"},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	var res []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &res); err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0].Total, nil
}
