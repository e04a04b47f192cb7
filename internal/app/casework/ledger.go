// internal/app/casework/ledger.go

// Terminal decisions and the disbursement ledger. A resolution is written
// exactly once per application and counted exactly once into the owning
// organization's aggregates; payouts against an approved resolution
// accumulate onto a running total with no ceiling.

package casework

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/htmlsanitize"
	"github.com/openzakat/zakathub/internal/app/system/statusflow"
	"github.com/openzakat/zakathub/internal/app/system/txn"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// ResolveInput carries a terminal decision.
type ResolveInput struct {
	Decision        string  // statusflow.Approved or statusflow.Rejected
	AmountApproved  float64 // required when approving
	RejectionReason string  // required when rejecting
}

// Resolve records the terminal decision on a claimed, reviewable
// application. The resolution write and the organization counter moves
// (in-progress down, handled up) commit in one transaction; the store
// guard makes the decision write-once.
func (s *Service) Resolve(ctx context.Context, actor Actor, appID primitive.ObjectID, in ResolveInput) (models.Application, error) {
	in.RejectionReason = htmlsanitize.Plain(in.RejectionReason)

	switch in.Decision {
	case statusflow.Approved:
		if in.AmountApproved <= 0 {
			return models.Application{}, apperr.New(apperr.InvalidArgument, "approved amount must be positive")
		}
	case statusflow.Rejected:
		if in.RejectionReason == "" {
			return models.Application{}, apperr.New(apperr.InvalidArgument, "a rejection reason is required")
		}
	default:
		return models.Application{}, apperr.New(apperr.InvalidArgument, "decision must be approved or rejected")
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return models.Application{}, err
	}
	if app.AssignedToOrg == nil {
		return models.Application{}, apperr.New(apperr.FailedPrecondition, "application is not claimed")
	}
	if app.Resolved() {
		return models.Application{}, apperr.New(apperr.FailedPrecondition, "application has already been resolved")
	}
	if !statusflow.IsLegalTransition(app.Status, in.Decision) {
		return models.Application{}, apperr.New(apperr.FailedPrecondition, "application cannot be %s from %q", in.Decision, app.Status)
	}
	orgID := *app.AssignedToOrg

	resolution := models.Resolution{
		Decision:      in.Decision,
		DecidedBy:     actor.ID,
		DecidedByName: actor.Name,
		DecidedAt:     time.Now().UTC(),
	}
	if in.Decision == statusflow.Approved {
		resolution.AmountApproved = in.AmountApproved
	} else {
		resolution.RejectionReason = in.RejectionReason
	}

	err = txn.Run(ctx, s.client, func(ctx context.Context) error {
		ok, err := s.apps.SetResolution(ctx, appID, orgID, app.Status, in.Decision, resolution)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.FailedPrecondition, "application was resolved or moved concurrently")
		}
		return s.orgs.RecordResolution(ctx, orgID)
	})
	if err != nil {
		return models.Application{}, s.internalUnless(err, "could not resolve application")
	}

	s.record(ctx, models.HistoryEntry{
		ApplicationID:   appID,
		Action:          in.Decision,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		PreviousStatus:  app.Status,
		NewStatus:       in.Decision,
		Details:         resolutionDetails(resolution),
	})
	s.notify(ctx, resolutionNotification(app, resolution))

	return s.loadApplication(ctx, appID)
}

// DisbursementInput carries one payout against an approved application.
type DisbursementInput struct {
	Amount    float64
	Method    string // "check", "cash", "transfer", ...
	Reference string
}

// RecordDisbursement records one payout against an approved application:
// the running total on the resolution, an immutable ledger row, and the
// organization's lifetime disbursed total all move in one transaction. The
// first payout moves the application from approved to disbursed and stamps
// the disbursement time; later payouts keep accumulating onto the running
// total, which may exceed the approved amount.
func (s *Service) RecordDisbursement(ctx context.Context, actor Actor, appID primitive.ObjectID, in DisbursementInput) (models.Disbursement, error) {
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	in.Reference = htmlsanitize.Plain(in.Reference)

	if in.Amount <= 0 {
		return models.Disbursement{}, apperr.New(apperr.InvalidArgument, "disbursement amount must be positive")
	}
	if in.Method == "" {
		return models.Disbursement{}, apperr.New(apperr.InvalidArgument, "disbursement method is required")
	}
	if in.Reference == "" {
		// Generate a receipt reference when the payer didn't supply one,
		// so every ledger row can be quoted back to the applicant.
		in.Reference = fmt.Sprintf("ZH-%s", uuid.New().String()[:8])
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return models.Disbursement{}, err
	}
	if app.AssignedToOrg == nil || app.Resolution == nil || app.Resolution.Decision != statusflow.Approved {
		return models.Disbursement{}, apperr.New(apperr.FailedPrecondition, "disbursements require an approved application")
	}
	if app.Status != statusflow.Approved && app.Status != statusflow.Disbursed {
		return models.Disbursement{}, apperr.New(apperr.FailedPrecondition, "disbursements require an approved application")
	}
	orgID := *app.AssignedToOrg

	now := time.Now().UTC()
	disbursement := models.Disbursement{
		ApplicationID:  appID,
		ApplicantID:    app.ApplicantSnapshot.ApplicantID,
		OrganizationID: orgID,
		Amount:         in.Amount,
		Method:         in.Method,
		Reference:      in.Reference,
		RecordedBy:     actor.ID,
	}

	firstPayout := false
	err = txn.Run(ctx, s.client, func(ctx context.Context) error {
		ok, err := s.apps.RecordFirstPayout(ctx, appID, orgID, in.Amount, now)
		if err != nil {
			return err
		}
		if ok {
			firstPayout = true
		} else {
			// Already disbursed, either before we loaded the application or
			// by a concurrent payout since. Accumulate onto the total.
			ok, err = s.apps.RecordFollowupPayout(ctx, appID, orgID, in.Amount)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.New(apperr.FailedPrecondition, "application can no longer receive disbursements")
			}
		}
		disbursement, err = s.disb.Record(ctx, disbursement)
		if err != nil {
			return err
		}
		return s.orgs.AddDisbursed(ctx, orgID, in.Amount)
	})
	if err != nil {
		return models.Disbursement{}, s.internalUnless(err, "could not record disbursement")
	}

	s.record(ctx, models.HistoryEntry{
		ApplicationID:   appID,
		Action:          "disbursement_recorded",
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Details:         fmt.Sprintf("disbursed %.2f by %s", in.Amount, in.Method),
	})
	if firstPayout {
		s.record(ctx, models.HistoryEntry{
			ApplicationID:   appID,
			Action:          "disbursed",
			PerformedBy:     actor.ID,
			PerformedByName: actor.Name,
			PreviousStatus:  statusflow.Approved,
			NewStatus:       statusflow.Disbursed,
			Details:         "first disbursement recorded",
		})
	}
	s.notify(ctx, models.Notification{
		UserID:        app.ApplicantSnapshot.ApplicantID,
		Type:          "disbursement_recorded",
		Title:         "Assistance payment recorded",
		Message:       fmt.Sprintf("A payment of %.2f was recorded for your application %s.", in.Amount, app.ApplicationNumber),
		ApplicationID: &appID,
	})

	return disbursement, nil
}

func resolutionDetails(r models.Resolution) string {
	if r.Decision == statusflow.Approved {
		return fmt.Sprintf("approved for %.2f", r.AmountApproved)
	}
	return "rejected: " + r.RejectionReason
}

func resolutionNotification(app models.Application, r models.Resolution) models.Notification {
	n := models.Notification{
		UserID:        app.ApplicantSnapshot.ApplicantID,
		ApplicationID: &app.ID,
		DedupeKey:     "resolved:" + app.ID.Hex(),
	}
	if r.Decision == statusflow.Approved {
		n.Type = "application_approved"
		n.Title = "Application approved"
		n.Message = fmt.Sprintf("Your application %s was approved for %.2f.", app.ApplicationNumber, r.AmountApproved)
	} else {
		n.Type = "application_rejected"
		n.Title = "Application decision"
		n.Message = fmt.Sprintf("Your application %s was not approved. Reason: %s", app.ApplicationNumber, r.RejectionReason)
	}
	return n
}
