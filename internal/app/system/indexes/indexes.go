// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureOrganizations(ctx, db); err != nil {
		problems = append(problems, "organizations: "+err.Error())
	}
	if err := ensureApplications(ctx, db); err != nil {
		problems = append(problems, "applications: "+err.Error())
	}
	if err := ensureApplicationHistory(ctx, db); err != nil {
		problems = append(problems, "application_history: "+err.Error())
	}
	if err := ensureFlags(ctx, db); err != nil {
		problems = append(problems, "flags: "+err.Error())
	}
	if err := ensureDisbursements(ctx, db); err != nil {
		problems = append(problems, "disbursements: "+err.Error())
	}
	if err := ensureNotifications(ctx, db); err != nil {
		problems = append(problems, "notifications: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		start := time.Now()

		// Load existing indexes so we can reuse or reconcile in place.
		existing := map[string]existingIndex{} // sig -> index
		cur, err := coll.Indexes().List(ctx)
		if err == nil {
			for cur.Next(ctx) {
				var idx existingIndex
				if err := cur.Decode(&idx); err != nil {
					zap.L().Warn("failed to decode existing index",
						zap.String("collection", coll.Name()),
						zap.Error(err))
					continue
				}
				existing[keySig(idx.Key)] = idx
			}
			cur.Close(ctx)
		}

		if ex, ok := existing[desiredSig]; ok {
			// Same key pattern exists already.
			if sameBoolPtr(desiredUnique, ex.Unique) {
				// Name alignment: if the name differs, drop & recreate with the
				// desired name so later drops by name find the right index.
				if desiredName != "" && ex.Name != desiredName {
					if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
						errs = append(errs, fmt.Sprintf("%s(%s): rename drop failed: %v", coll.Name(), desiredName, err))
						continue
					}
					if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
						errs = append(errs, fmt.Sprintf("%s(%s): rename create failed: %v", coll.Name(), desiredName, err))
						continue
					}
					zap.L().Info("index renamed",
						zap.String("collection", coll.Name()),
						zap.String("from", ex.Name),
						zap.String("to", desiredName),
						zap.String("took", time.Since(start).String()))
					continue
				}

				// Names aligned, options aligned: reuse.
				continue
			}

			// Options mismatch (e.g. upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.String("took", time.Since(start).String()))
			continue
		}

		// No existing index with the same keys: create it.
		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isOptionsConflictErr(err) {
				// Lost a race with another instance ensuring the same set;
				// the next startup will reconcile names.
				continue
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email is the login identity; globally unique.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Staff rosters per organization.
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "organization_id", Value: 1}},
			Options: options.Index().SetName("idx_users_role_org"),
		},
		// Flag fan-out targets applicants by flag state.
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "is_flagged", Value: 1}},
			Options: options.Index().SetName("idx_users_role_flagged"),
		},
	})
}

func ensureOrganizations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("organizations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Enforce global uniqueness of organization names (case-folded).
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_orgs_nameci"),
		},
		// Filter by status, then name_ci sort with stable tiebreak.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_orgs_status_nameci__id"),
		},
	})
}

func ensureApplications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("applications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Human-facing case number; assigned once at submission.
		{
			Keys:    bson.D{{Key: "application_number", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_apps_number"),
		},
		// Applicant's own case list, newest first.
		{
			Keys:    bson.D{{Key: "applicant_snapshot.applicant_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_apps_applicant_created"),
		},
		// The shared submitted queue staff claim from.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "submitted_at", Value: 1}},
			Options: options.Index().SetName("idx_apps_status_submitted"),
		},
		// Per-org caseload views (claimed cases by status).
		{
			Keys:    bson.D{{Key: "assigned_to_org", Value: 1}, {Key: "status", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_apps_org_status_updated"),
		},
		// Per-reviewer worklists.
		{
			Keys:    bson.D{{Key: "assigned_to", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_apps_assignee_status"),
		},
	})
}

func ensureApplicationHistory(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("application_history")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Timeline reads: one application's entries in order.
		{
			Keys:    bson.D{{Key: "application_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_history_app_created"),
		},
	})
}

func ensureFlags(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("flags")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Active-flag lookups drive the fan-out (an applicant is flagged
		// while at least one active flag exists). The partial filter keeps
		// the index small as resolved flags accumulate.
		{
			Keys: bson.D{{Key: "applicant_id", Value: 1}},
			Options: options.Index().
				SetPartialFilterExpression(bson.D{{Key: "is_active", Value: true}}).
				SetName("idx_flags_active_applicant"),
		},
		// Flag review screens: active flags per flagging org.
		{
			Keys:    bson.D{{Key: "flagged_by_org", Value: 1}, {Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_flags_org_active_created"),
		},
		// All flags for one applicant, newest first.
		{
			Keys:    bson.D{{Key: "applicant_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_flags_applicant_created"),
		},
	})
}

func ensureDisbursements(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("disbursements")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Per-application payout ledger in order.
		{
			Keys:    bson.D{{Key: "application_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_disb_app_created"),
		},
		// Per-org reporting windows.
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_disb_org_created"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("notifications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// A user's notification feed, newest first.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_notif_user_created"),
		},
		// Dedupe key suppresses repeat deliveries of the same event.
		// Sparse: most notifications carry no dedupe key.
		{
			Keys:    bson.D{{Key: "dedupe_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_notif_dedupe"),
		},
	})
}
