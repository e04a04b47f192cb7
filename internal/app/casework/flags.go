// internal/app/casework/flags.go

// Applicant flag management and fan-out. The applicant's flagged state is
// derived: it is true while at least one active flag exists, and every
// change fans out atomically to the user profile and to the snapshots on
// all of the applicant's applications.

package casework

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/htmlsanitize"
	"github.com/openzakat/zakathub/internal/app/system/txn"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// FlagInput carries the details of a new applicant flag.
type FlagInput struct {
	Reason   string
	Severity string // "low", "medium" or "high"; defaults to medium
}

// FlagApplicant raises a flag against an applicant. The flag insert and
// the fan-out (user profile plus application snapshots) commit in one
// transaction. Multiple organizations may hold active flags on the same
// applicant at once.
func (s *Service) FlagApplicant(ctx context.Context, actor Actor, applicantID primitive.ObjectID, in FlagInput) (models.Flag, error) {
	in.Reason = htmlsanitize.Plain(in.Reason)
	if in.Reason == "" {
		return models.Flag{}, apperr.New(apperr.InvalidArgument, "a reason is required")
	}
	if in.Severity == "" {
		in.Severity = "medium"
	}
	switch in.Severity {
	case "low", "medium", "high":
	default:
		return models.Flag{}, apperr.New(apperr.InvalidArgument, "severity must be low, medium or high")
	}

	applicant, err := s.users.GetByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Flag{}, apperr.New(apperr.NotFound, "applicant not found")
		}
		return models.Flag{}, apperr.Wrap(err, apperr.Internal, "could not load applicant")
	}
	if applicant.Role != models.RoleApplicant {
		return models.Flag{}, apperr.New(apperr.InvalidArgument, "only applicants can be flagged")
	}

	flag := models.Flag{
		ApplicantID: applicantID,
		Reason:      in.Reason,
		Severity:    in.Severity,
		FlaggedBy:   actor.ID,
	}
	if actor.HasOrg() {
		orgID := actor.OrgID
		flag.FlaggedByOrg = &orgID
	}

	err = txn.Run(ctx, s.client, func(ctx context.Context) error {
		var err error
		flag, err = s.flags.Create(ctx, flag)
		if err != nil {
			return err
		}
		if err := s.users.SetFlagged(ctx, applicantID, true); err != nil {
			return err
		}
		_, err = s.apps.SyncApplicantFlag(ctx, applicantID, true)
		return err
	})
	if err != nil {
		return models.Flag{}, s.internalUnless(err, "could not flag applicant")
	}

	s.log.Info("applicant flagged",
		zap.String("applicant_id", applicantID.Hex()),
		zap.String("flag_id", flag.ID.Hex()),
		zap.String("severity", in.Severity))
	return flag, nil
}

// ResolveFlag resolves a single flag. The derived flagged state is
// recomputed inside the same transaction: the applicant stays flagged
// while other active flags remain.
func (s *Service) ResolveFlag(ctx context.Context, actor Actor, flagID primitive.ObjectID, notes string) error {
	notes = htmlsanitize.Plain(notes)

	flag, err := s.flags.GetByID(ctx, flagID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.New(apperr.NotFound, "flag not found")
		}
		return apperr.Wrap(err, apperr.Internal, "could not load flag")
	}
	if !flag.IsActive {
		return apperr.New(apperr.FailedPrecondition, "flag has already been resolved")
	}

	err = txn.Run(ctx, s.client, func(ctx context.Context) error {
		ok, err := s.flags.Resolve(ctx, flagID, actor.ID, notes)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.FailedPrecondition, "flag has already been resolved")
		}

		// Other organizations may still hold active flags; the derived
		// state only clears when the last one resolves.
		stillFlagged, err := s.flags.HasActive(ctx, flag.ApplicantID)
		if err != nil {
			return err
		}
		if err := s.users.SetFlagged(ctx, flag.ApplicantID, stillFlagged); err != nil {
			return err
		}
		_, err = s.apps.SyncApplicantFlag(ctx, flag.ApplicantID, stillFlagged)
		return err
	})
	if err != nil {
		return s.internalUnless(err, "could not resolve flag")
	}

	s.log.Info("flag resolved",
		zap.String("flag_id", flagID.Hex()),
		zap.String("applicant_id", flag.ApplicantID.Hex()))
	return nil
}
