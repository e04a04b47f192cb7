// internal/app/store/applications/applicationstore.go

// Package applicationstore persists applications. Every mutating method
// that participates in the lifecycle uses a conditional update filter as
// its authoritative precondition guard: the returned bool reports whether
// the guard matched, and false means the document was missing or in the
// wrong state. Callers translate false into a precondition failure after
// re-reading the document.
package applicationstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openzakat/zakathub/internal/app/system/statusflow"
	"github.com/openzakat/zakathub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("applications")}
}

// Create inserts a new draft application for the applicant.
func (s *Store) Create(ctx context.Context, app models.Application) (models.Application, error) {
	now := time.Now().UTC()
	app.ID = primitive.NewObjectID()
	app.Status = statusflow.Draft
	app.CreatedAt = now
	app.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, app); err != nil {
		return models.Application{}, err
	}
	return app, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Application, error) {
	var app models.Application
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&app)
	if err != nil {
		return models.Application{}, err
	}
	return app, nil
}

// UpdateDraft modifies the request details of a draft. The filter pins both
// ownership and draft status so a submitted application can never be edited.
func (s *Store) UpdateDraft(ctx context.Context, id, applicantID primitive.ObjectID, category string, amount float64, description string, documents []string) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                             id,
			"status":                          statusflow.Draft,
			"applicant_snapshot.applicant_id": applicantID,
		},
		bson.M{"$set": bson.M{
			"category":         category,
			"amount_requested": amount,
			"description":      description,
			"document_paths":   documents,
			"updated_at":       time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// MarkSubmitted moves a draft into the shared queue, stamping the assigned
// application number, the submission time, and a fresh applicant snapshot.
func (s *Store) MarkSubmitted(ctx context.Context, id, applicantID primitive.ObjectID, number string, snapshot models.ApplicantSnapshot) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                             id,
			"status":                          statusflow.Draft,
			"applicant_snapshot.applicant_id": applicantID,
		},
		bson.M{"$set": bson.M{
			"status":             statusflow.Submitted,
			"application_number": number,
			"submitted_at":       now,
			"applicant_snapshot": snapshot,
			"updated_at":         now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// Claim takes ownership of a submitted, unassigned application. The filter
// guarantees at most one concurrent claimer wins; the losers match nothing.
func (s *Store) Claim(ctx context.Context, id, reviewerID, orgID primitive.ObjectID, orgName string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":         id,
			"status":      statusflow.Submitted,
			"assigned_to": nil,
		},
		bson.M{"$set": bson.M{
			"status":               statusflow.UnderReview,
			"assigned_to":          reviewerID,
			"assigned_to_org":      orgID,
			"assigned_to_org_name": orgName,
			"assigned_at":          now,
			"updated_at":           now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// Release returns a claimed application to the shared queue, clearing all
// ownership fields together. Only the current owner's org may release, and
// only from an active (unresolved) status.
func (s *Store) Release(ctx context.Context, id, orgID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":             id,
			"assigned_to_org": orgID,
			"status":          bson.M{"$in": activeStatuses()},
		},
		bson.M{
			"$set": bson.M{
				"status":     statusflow.Submitted,
				"updated_at": time.Now().UTC(),
			},
			"$unset": bson.M{
				"assigned_to":          "",
				"assigned_to_org":      "",
				"assigned_to_org_name": "",
				"assigned_at":          "",
			},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// Reassign moves an active case from one organization's reviewer to
// another's without passing through the shared queue. The from org is part
// of the filter so a concurrent release or resolution wins cleanly.
func (s *Store) Reassign(ctx context.Context, id, fromOrgID, toReviewerID, toOrgID primitive.ObjectID, toOrgName string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":             id,
			"assigned_to_org": fromOrgID,
			"status":          bson.M{"$in": activeStatuses()},
		},
		bson.M{"$set": bson.M{
			"assigned_to":          toReviewerID,
			"assigned_to_org":      toOrgID,
			"assigned_to_org_name": toOrgName,
			"assigned_at":          now,
			"updated_at":           now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// SetStatus performs one lifecycle transition. The from status and owning
// org are part of the filter, so a concurrent transition or reassignment
// invalidates this write instead of racing it.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, from, to string, orgID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":             id,
			"status":          from,
			"assigned_to_org": orgID,
		},
		bson.M{"$set": bson.M{
			"status":     to,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// SetResolution records the terminal decision. The filter pins the current
// status, the owning org, and an unset decided_at, making the decision a
// write-once field.
func (s *Store) SetResolution(ctx context.Context, id primitive.ObjectID, orgID primitive.ObjectID, from, newStatus string, r models.Resolution) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                   id,
			"status":                from,
			"assigned_to_org":       orgID,
			"resolution.decided_at": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{
			"status":     newStatus,
			"resolution": r,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// RecordFirstPayout moves a still-approved application to disbursed and
// stamps the first payout onto its resolution. The filter requires an
// approved decision, so of any concurrent first payouts exactly one takes
// this path; the rest land as followups.
func (s *Store) RecordFirstPayout(ctx context.Context, id primitive.ObjectID, orgID primitive.ObjectID, amount float64, disbursedAt time.Time) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                 id,
			"status":              statusflow.Approved,
			"assigned_to_org":     orgID,
			"resolution.decision": statusflow.Approved,
		},
		bson.M{
			"$inc": bson.M{"resolution.amount_disbursed": amount},
			"$set": bson.M{
				"status":                  statusflow.Disbursed,
				"resolution.disbursed_at": disbursedAt,
				"updated_at":              time.Now().UTC(),
			},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// RecordFollowupPayout adds a further payout onto an already-disbursed
// application's running total.
func (s *Store) RecordFollowupPayout(ctx context.Context, id primitive.ObjectID, orgID primitive.ObjectID, amount float64) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":             id,
			"status":          statusflow.Disbursed,
			"assigned_to_org": orgID,
		},
		bson.M{
			"$inc": bson.M{"resolution.amount_disbursed": amount},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// CloseClaimed closes a claimed, still-unresolved application, stamping the
// closure as its write-once resolution.
func (s *Store) CloseClaimed(ctx context.Context, id primitive.ObjectID, orgID primitive.ObjectID, from string, r models.Resolution) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                   id,
			"status":                from,
			"assigned_to_org":       orgID,
			"resolution.decided_at": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{
			"status":     statusflow.Closed,
			"resolution": r,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// CloseUnclaimed closes a submitted application straight out of the shared
// queue, before any organization has claimed it.
func (s *Store) CloseUnclaimed(ctx context.Context, id primitive.ObjectID, r models.Resolution) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                   id,
			"status":                statusflow.Submitted,
			"assigned_to":           nil,
			"resolution.decided_at": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{
			"status":     statusflow.Closed,
			"resolution": r,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// AddNote appends an annotation to the application.
func (s *Store) AddNote(ctx context.Context, id primitive.ObjectID, note models.Note) (bool, error) {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"notes": note},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// SyncApplicantFlag fans the applicant's flag state out to the snapshot on
// every one of their applications, whatever the status. Returns the number
// updated.
func (s *Store) SyncApplicantFlag(ctx context.Context, applicantID primitive.ObjectID, flagged bool) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"applicant_snapshot.applicant_id": applicantID},
		bson.M{"$set": bson.M{
			"applicant_snapshot.is_flagged": flagged,
			"updated_at":                    time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Find returns applications matching the given filter with optional find
// options. Callers build the filter and options (pagination, sorting).
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Application, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var apps []models.Application
	if err := cur.All(ctx, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// Count returns the number of applications matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// ListQueue returns the shared submitted queue, oldest submission first.
func (s *Store) ListQueue(ctx context.Context, limit int64) ([]models.Application, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "submitted_at", Value: 1}}).
		SetLimit(limit)
	return s.Find(ctx, bson.M{"status": statusflow.Submitted}, opts)
}

func activeStatuses() bson.A {
	return bson.A{statusflow.UnderReview, statusflow.PendingDocuments, statusflow.PendingVerification}
}
