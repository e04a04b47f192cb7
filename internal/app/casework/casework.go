// internal/app/casework/casework.go

// Package casework is the service layer of the case-management core. It
// orchestrates the stores: every multi-document mutation runs through
// txn.Run, every lifecycle precondition is enforced by the stores'
// conditional update guards, and every state change is recorded to the
// application history and the notification queue best-effort.
//
// Authorization happens in the policy packages before these methods are
// called; casework re-validates only the invariants the database guards
// depend on (ownership, status, amounts).
package casework

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	applicationstore "github.com/openzakat/zakathub/internal/app/store/applications"
	disbursementstore "github.com/openzakat/zakathub/internal/app/store/disbursements"
	flagstore "github.com/openzakat/zakathub/internal/app/store/flags"
	historystore "github.com/openzakat/zakathub/internal/app/store/history"
	notificationstore "github.com/openzakat/zakathub/internal/app/store/notifications"
	organizationstore "github.com/openzakat/zakathub/internal/app/store/organizations"
	sequencestore "github.com/openzakat/zakathub/internal/app/store/sequence"
	userstore "github.com/openzakat/zakathub/internal/app/store/users"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// Actor identifies who is performing an operation. It is built from the
// session by the feature handlers; OrgID is the nil ObjectID for actors
// without an organization (applicants, unattached superadmins).
type Actor struct {
	ID      primitive.ObjectID
	Name    string
	Role    string
	OrgID   primitive.ObjectID
	OrgName string
}

// HasOrg reports whether the actor belongs to an organization.
func (a Actor) HasOrg() bool {
	return a.OrgID != primitive.NilObjectID
}

// Service coordinates the application lifecycle, the resolution and
// disbursement ledger, and the applicant flag fan-out.
type Service struct {
	client *mongo.Client

	apps    *applicationstore.Store
	orgs    *organizationstore.Store
	users   *userstore.Store
	flags   *flagstore.Store
	disb    *disbursementstore.Store
	history *historystore.Store
	notif   *notificationstore.Store
	seq     *sequencestore.Store

	log *zap.Logger
}

func New(client *mongo.Client, db *mongo.Database, log *zap.Logger) *Service {
	return &Service{
		client:  client,
		apps:    applicationstore.New(db),
		orgs:    organizationstore.New(db),
		users:   userstore.New(db),
		flags:   flagstore.New(db),
		disb:    disbursementstore.New(db),
		history: historystore.New(db),
		notif:   notificationstore.New(db),
		seq:     sequencestore.New(db),
		log:     log,
	}
}

// GetApplication loads one application, mapping a missing document to a
// not-found error.
func (s *Service) GetApplication(ctx context.Context, appID primitive.ObjectID) (models.Application, error) {
	return s.loadApplication(ctx, appID)
}

// GetUser loads one user profile.
func (s *Service) GetUser(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.New(apperr.NotFound, "user not found")
		}
		return models.User{}, apperr.Wrap(err, apperr.Internal, "could not load user")
	}
	return user, nil
}

// History returns the newest-first event trail for an application.
func (s *Service) History(ctx context.Context, appID primitive.ObjectID, limit int64) ([]models.HistoryEntry, error) {
	entries, err := s.history.ListByApplication(ctx, appID, limit)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "could not load history")
	}
	return entries, nil
}

// Disbursements returns the payout ledger for an application, oldest first.
func (s *Service) Disbursements(ctx context.Context, appID primitive.ObjectID) ([]models.Disbursement, error) {
	rows, err := s.disb.ListByApplication(ctx, appID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "could not load disbursements")
	}
	return rows, nil
}

// Queue returns the shared submitted queue, oldest submission first.
func (s *Service) Queue(ctx context.Context, limit int64) ([]models.Application, error) {
	apps, err := s.apps.ListQueue(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "could not load queue")
	}
	return apps, nil
}

// record appends a history entry. History is best-effort: a failed append
// never fails the operation that already committed.
func (s *Service) record(ctx context.Context, entry models.HistoryEntry) {
	if err := s.history.Append(ctx, entry); err != nil {
		s.log.Warn("history append failed",
			zap.String("application_id", entry.ApplicationID.Hex()),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

// notify enqueues a notification for the external delivery collaborator.
// Best-effort, same as record.
func (s *Service) notify(ctx context.Context, n models.Notification) {
	if err := s.notif.Enqueue(ctx, n); err != nil {
		s.log.Warn("notification enqueue failed",
			zap.String("user_id", n.UserID.Hex()),
			zap.String("type", n.Type),
			zap.Error(err))
	}
}
