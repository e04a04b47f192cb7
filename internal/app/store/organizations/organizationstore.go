// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openzakat/zakathub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateOrganization = errors.New("an organization with this name already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.NameCI = text.Fold(org.Name)
	org.CityCI = text.Fold(org.City)
	org.StateCI = text.Fold(org.State)
	if org.Status == "" {
		org.Status = "active"
	}
	// Counters always start at zero regardless of what the caller passed.
	org.ApplicationsInProgress = 0
	org.TotalApplicationsHandled = 0
	org.TotalAmountDisbursed = 0
	org.CreatedAt = now
	org.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, org)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateOrganization
		}
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// GetByIDs loads multiple organizations by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Organization, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Update modifies an organization's profile fields and refreshes UpdatedAt.
// Counters are never written through this path.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, org models.Organization) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if org.Name != "" {
		set["name"] = org.Name
		set["name_ci"] = text.Fold(org.Name)
	}
	if org.City != "" {
		set["city"] = org.City
		set["city_ci"] = text.Fold(org.City)
	}
	if org.State != "" {
		set["state"] = org.State
		set["state_ci"] = text.Fold(org.State)
	}
	if org.Status != "" {
		set["status"] = org.Status
	}
	if org.TimeZone != "" {
		set["time_zone"] = org.TimeZone
	}
	if org.ContactInfo != "" {
		set["contact_info"] = org.ContactInfo
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateOrganization
		}
		return err
	}
	return nil
}

// NameExistsForOther checks if an organization with the given name exists,
// excluding the specified ID. Used for update validation.
func (s *Store) NameExistsForOther(ctx context.Context, nameCI string, excludeID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"name_ci": nameCI,
		"_id":     bson.M{"$ne": excludeID},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find returns organizations matching the given filter with optional find options.
// The caller is responsible for building the filter and options (pagination, sorting).
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Organization, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Count returns the number of organizations matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

/* -------------------------------------------------------------------------- */
/* Caseload counters                                                           */
/* -------------------------------------------------------------------------- */

// IncInProgress atomically bumps the in-progress counter when an
// organization claims an application.
func (s *Store) IncInProgress(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"applications_in_progress": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DecInProgressClamped atomically decrements the in-progress counter,
// clamping at zero. The clamp uses an aggregation-pipeline update so a
// racing decrement can never drive the counter negative.
func (s *Store) DecInProgressClamped(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"applications_in_progress": bson.M{
				"$max": bson.A{0, bson.M{"$add": bson.A{"$applications_in_progress", -1}}},
			},
			"updated_at": time.Now().UTC(),
		}}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// RecordResolution moves one application out of the in-progress count and
// into the lifetime handled total, in a single atomic update. Disbursed
// amounts are tracked separately via AddDisbursed when payouts are recorded.
func (s *Store) RecordResolution(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"applications_in_progress": bson.M{
				"$max": bson.A{0, bson.M{"$add": bson.A{"$applications_in_progress", -1}}},
			},
			"total_applications_handled": bson.M{"$add": bson.A{"$total_applications_handled", 1}},
			"updated_at":                 time.Now().UTC(),
		}}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// AddDisbursed adds a payout amount to the lifetime disbursement total.
func (s *Store) AddDisbursed(ctx context.Context, id primitive.ObjectID, amount float64) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"total_amount_disbursed": amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
