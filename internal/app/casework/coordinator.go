// internal/app/casework/coordinator.go

// Application lifecycle coordination: drafting, submission into the shared
// queue, claim/release by organizations, reassignment, and status moves.

package casework

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/htmlsanitize"
	"github.com/openzakat/zakathub/internal/app/system/statusflow"
	"github.com/openzakat/zakathub/internal/app/system/txn"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// DraftInput carries the applicant-editable request details. Drafts may be
// incomplete; completeness is enforced at submission.
type DraftInput struct {
	Category        string
	AmountRequested float64
	Description     string
	DocumentPaths   []string
}

func (in *DraftInput) sanitize() {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = htmlsanitize.Note(in.Description)
	paths := in.DocumentPaths[:0]
	for _, p := range in.DocumentPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	in.DocumentPaths = paths
}

// CreateDraft opens a new draft application for the acting applicant.
func (s *Service) CreateDraft(ctx context.Context, actor Actor, in DraftInput) (models.Application, error) {
	if actor.Role != models.RoleApplicant {
		return models.Application{}, apperr.New(apperr.PermissionDenied, "only applicants create applications")
	}
	in.sanitize()
	if in.AmountRequested < 0 {
		return models.Application{}, apperr.New(apperr.InvalidArgument, "amount requested cannot be negative")
	}

	snapshot, err := s.applicantSnapshot(ctx, actor.ID)
	if err != nil {
		return models.Application{}, err
	}

	app, err := s.apps.Create(ctx, models.Application{
		ApplicantSnapshot: snapshot,
		Category:          in.Category,
		AmountRequested:   in.AmountRequested,
		Description:       in.Description,
		DocumentPaths:     in.DocumentPaths,
	})
	if err != nil {
		return models.Application{}, apperr.Wrap(err, apperr.Internal, "could not create application")
	}

	s.record(ctx, models.HistoryEntry{
		ApplicationID:   app.ID,
		Action:          "created",
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		NewStatus:       statusflow.Draft,
		Details:         "application draft created",
	})
	return app, nil
}

// UpdateDraft modifies a draft's request details. Only the owning applicant
// may edit, and only while the application is a draft.
func (s *Service) UpdateDraft(ctx context.Context, actor Actor, appID primitive.ObjectID, in DraftInput) error {
	in.sanitize()
	if in.AmountRequested < 0 {
		return apperr.New(apperr.InvalidArgument, "amount requested cannot be negative")
	}

	ok, err := s.apps.UpdateDraft(ctx, appID, actor.ID, in.Category, in.AmountRequested, in.Description, in.DocumentPaths)
	if err != nil {
		return apperr.Wrap(err, apperr.Internal, "could not update application")
	}
	if !ok {
		return s.draftGuardError(ctx, appID, actor.ID)
	}
	return nil
}

// Submit moves a complete draft into the shared queue, assigning it a
// sequential application number and a fresh applicant snapshot.
func (s *Service) Submit(ctx context.Context, actor Actor, appID primitive.ObjectID) (models.Application, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return models.Application{}, err
	}
	if app.ApplicantSnapshot.ApplicantID != actor.ID {
		return models.Application{}, apperr.New(apperr.PermissionDenied, "not your application")
	}
	if app.Status != statusflow.Draft {
		return models.Application{}, apperr.New(apperr.FailedPrecondition, "application has already been submitted")
	}
	if app.Category == "" || app.AmountRequested <= 0 || strings.TrimSpace(app.Description) == "" {
		return models.Application{}, apperr.New(apperr.InvalidArgument, "category, amount and description are required before submission")
	}

	snapshot, err := s.applicantSnapshot(ctx, actor.ID)
	if err != nil {
		return models.Application{}, err
	}

	// Sequence numbers come from a counter outside the transaction; an
	// aborted submission leaves a hole in the series, which is acceptable.
	number, err := s.seq.NextApplicationNumber(ctx)
	if err != nil {
		return models.Application{}, apperr.Wrap(err, apperr.Internal, "could not assign application number")
	}

	err = txn.Run(ctx, s.client, func(ctx context.Context) error {
		ok, err := s.apps.MarkSubmitted(ctx, appID, actor.ID, number, snapshot)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.FailedPrecondition, "application has already been submitted")
		}
		return nil
	})
	if err != nil {
		return models.Application{}, s.internalUnless(err, "could not submit application")
	}

	s.record(ctx, models.HistoryEntry{
		ApplicationID:   appID,
		Action:          "submitted",
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		PreviousStatus:  statusflow.Draft,
		NewStatus:       statusflow.Submitted,
		Details:         "application " + number + " submitted",
	})
	s.notify(ctx, models.Notification{
		UserID:        actor.ID,
		Type:          "application_submitted",
		Title:         "Application submitted",
		Message:       "Your application " + number + " has been received and is waiting for review.",
		ApplicationID: &appID,
		DedupeKey:     "application_submitted:" + appID.Hex(),
	})

	return s.loadApplication(ctx, appID)
}

// Claim takes a submitted application out of the shared queue for the
// actor's organization. Exactly one of any concurrent claimers wins; the
// organization's in-progress counter moves in the same transaction.
func (s *Service) Claim(ctx context.Context, actor Actor, appID primitive.ObjectID) (models.Application, error) {
	if !actor.HasOrg() {
		return models.Application{}, apperr.New(apperr.PermissionDenied, "claiming requires an organization")
	}

	err := txn.Run(ctx, s.client, func(ctx context.Context) error {
		ok, err := s.apps.Claim(ctx, appID, actor.ID, actor.OrgID, actor.OrgName)
		if err != nil {
			return err
		}
		if !ok {
			return s.claimGuardError(ctx, appID)
		}
		return s.orgs.IncInProgress(ctx, actor.OrgID)
	})
	if err != nil {
		return models.Application{}, s.internalUnless(err, "could not claim application")
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return models.Application{}, err
	}

	s.record(ctx, models.HistoryEntry{
		ApplicationID:   appID,
		Action:          "claimed",
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		PreviousStatus:  statusflow.Submitted,
		NewStatus:       statusflow.UnderReview,
		Details:         "claimed by " + actor.OrgName,
	})
	s.notify(ctx, models.Notification{
		UserID:        app.ApplicantSnapshot.ApplicantID,
		Type:          "status_changed",
		Title:         "Application under review",
		Message:       "Your application " + app.ApplicationNumber + " is being reviewed by " + actor.OrgName + ".",
		ApplicationID: &appID,
	})
	return app, nil
}

// Release returns a claimed application to the shared queue, clearing the
// ownership fields and decrementing the owning organization's in-progress
// counter in one transaction. The reason, when given, is kept in history.
func (s *Service) Release(ctx context.Context, actor Actor, appID primitive.ObjectID, reason string) error {
	reason = htmlsanitize.Note(reason)
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if app.AssignedToOrg == nil {
		return apperr.New(apperr.FailedPrecondition, "application is not claimed")
	}
	orgID := *app.AssignedToOrg

	err = txn.Run(ctx, s.client, func(ctx context.Context) error {
		ok, err := s.apps.Release(ctx, appID, orgID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.FailedPrecondition, "application can no longer be released")
		}
		return s.orgs.DecInProgressClamped(ctx, orgID)
	})
	if err != nil {
		return s.internalUnless(err, "could not release application")
	}

	details := "returned to the shared queue by " + app.AssignedToOrgName
	if reason != "" {
		details += ": " + reason
	}
	s.record(ctx, models.HistoryEntry{
		ApplicationID:   appID,
		Action:          "released",
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		PreviousStatus:  app.Status,
		NewStatus:       statusflow.Submitted,
		Details:         details,
	})
	s.notify(ctx, models.Notification{
		UserID:        app.ApplicantSnapshot.ApplicantID,
		Type:          "status_changed",
		Title:         "Application back in the queue",
		Message:       "Your application " + app.ApplicationNumber + " is waiting for another organization to review it.",
		ApplicationID: &appID,
	})
	return nil
}

// Reassign moves an active case directly to another staff member, possibly
// at a different organization. Both organizations' in-progress counters
// move in the same transaction as the ownership change.
func (s *Service) Reassign(ctx context.Context, actor Actor, appID, newReviewerID primitive.ObjectID) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if app.AssignedToOrg == nil || !statusflow.IsActive(app.Status) {
		return apperr.New(apperr.FailedPrecondition, "only active claimed applications can be reassigned")
	}
	fromOrg := *app.AssignedToOrg

	reviewer, err := s.users.GetByID(ctx, newReviewerID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.New(apperr.NotFound, "reviewer not found")
		}
		return apperr.Wrap(err, apperr.Internal, "could not load reviewer")
	}
	if reviewer.Role == models.RoleApplicant || reviewer.OrganizationID == nil {
		return apperr.New(apperr.InvalidArgument, "reviewer must be staff with an organization")
	}
	toOrg := *reviewer.OrganizationID

	org, err := s.orgs.GetByID(ctx, toOrg)
	if err != nil {
		return apperr.Wrap(err, apperr.Internal, "could not load reviewer organization")
	}

	err = txn.Run(ctx, s.client, func(ctx context.Context) error {
		ok, err := s.apps.Reassign(ctx, appID, fromOrg, newReviewerID, toOrg, org.Name)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.FailedPrecondition, "application can no longer be reassigned")
		}
		if fromOrg != toOrg {
			if err := s.orgs.DecInProgressClamped(ctx, fromOrg); err != nil {
				return err
			}
			if err := s.orgs.IncInProgress(ctx, toOrg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.internalUnless(err, "could not reassign application")
	}

	s.record(ctx, models.HistoryEntry{
		ApplicationID:   appID,
		Action:          "reassigned",
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Details:         "reassigned to " + reviewer.FullName + " (" + org.Name + ")",
	})
	s.notify(ctx, models.Notification{
		UserID:        app.ApplicantSnapshot.ApplicantID,
		Type:          "status_changed",
		Title:         "Application reassigned",
		Message:       "Your application " + app.ApplicationNumber + " is now being reviewed by " + org.Name + ".",
		ApplicationID: &appID,
	})
	return nil
}

// StatusChangeInput carries one requested lifecycle transition. The extra
// fields matter only for terminal targets: AmountApproved when approving,
// Reason when rejecting or closing, DisbursedAmount and Method when moving
// to disbursed.
type StatusChangeInput struct {
	Status          string
	Reason          string
	AmountApproved  float64
	DisbursedAmount float64
	Method          string
}

// ChangeStatus performs one lifecycle transition. Non-terminal moves update
// the status in place; approval and rejection route through Resolve,
// disbursed through RecordDisbursement, and closure stamps a first-time
// resolution when the case was never decided.
func (s *Service) ChangeStatus(ctx context.Context, actor Actor, appID primitive.ObjectID, in StatusChangeInput) error {
	to := in.Status
	if !statusflow.IsValid(to) {
		return apperr.New(apperr.InvalidArgument, "unknown status %q", to)
	}
	switch to {
	case statusflow.Draft, statusflow.Submitted:
		return apperr.New(apperr.InvalidArgument, "cannot move an application back to %q", to)
	case statusflow.Approved, statusflow.Rejected:
		_, err := s.Resolve(ctx, actor, appID, ResolveInput{
			Decision:        to,
			AmountApproved:  in.AmountApproved,
			RejectionReason: in.Reason,
		})
		return err
	case statusflow.Disbursed:
		method := in.Method
		if method == "" {
			method = "unspecified"
		}
		_, err := s.RecordDisbursement(ctx, actor, appID, DisbursementInput{
			Amount: in.DisbursedAmount,
			Method: method,
		})
		return err
	case statusflow.Closed:
		return s.close(ctx, actor, appID, htmlsanitize.Note(in.Reason))
	}

	reason := htmlsanitize.Note(in.Reason)
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if app.AssignedToOrg == nil {
		return apperr.New(apperr.FailedPrecondition, "application is not claimed")
	}
	if !statusflow.IsLegalTransition(app.Status, to) {
		return apperr.New(apperr.FailedPrecondition, "cannot move from %q to %q", app.Status, to)
	}
	orgID := *app.AssignedToOrg

	ok, err := s.apps.SetStatus(ctx, appID, app.Status, to, orgID)
	if err != nil {
		return apperr.Wrap(err, apperr.Internal, "could not change status")
	}
	if !ok {
		return apperr.New(apperr.FailedPrecondition, "application changed concurrently, please retry")
	}

	s.recordStatusChange(ctx, actor, app, to, reason)
	return nil
}

// close moves an application to closed. A first-time closure (no decision
// on record) stamps the closure as the write-once resolution and, when the
// case is claimed, counts it into the owning organization's aggregates; a
// closure after approval or rejection is a plain status move, since the
// resolution was already counted.
func (s *Service) close(ctx context.Context, actor Actor, appID primitive.ObjectID, reason string) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if !statusflow.IsLegalTransition(app.Status, statusflow.Closed) {
		return apperr.New(apperr.FailedPrecondition, "cannot move from %q to %q", app.Status, statusflow.Closed)
	}

	switch {
	case app.Resolved():
		if app.AssignedToOrg == nil {
			return apperr.New(apperr.FailedPrecondition, "application is not claimed")
		}
		ok, err := s.apps.SetStatus(ctx, appID, app.Status, statusflow.Closed, *app.AssignedToOrg)
		if err != nil {
			return apperr.Wrap(err, apperr.Internal, "could not close application")
		}
		if !ok {
			return apperr.New(apperr.FailedPrecondition, "application changed concurrently, please retry")
		}

	case app.AssignedToOrg == nil:
		ok, err := s.apps.CloseUnclaimed(ctx, appID, s.closure(actor))
		if err != nil {
			return apperr.Wrap(err, apperr.Internal, "could not close application")
		}
		if !ok {
			return apperr.New(apperr.FailedPrecondition, "application changed concurrently, please retry")
		}

	default:
		orgID := *app.AssignedToOrg
		err := txn.Run(ctx, s.client, func(ctx context.Context) error {
			ok, err := s.apps.CloseClaimed(ctx, appID, orgID, app.Status, s.closure(actor))
			if err != nil {
				return err
			}
			if !ok {
				return apperr.New(apperr.FailedPrecondition, "application changed concurrently, please retry")
			}
			return s.orgs.RecordResolution(ctx, orgID)
		})
		if err != nil {
			return s.internalUnless(err, "could not close application")
		}
	}

	s.recordStatusChange(ctx, actor, app, statusflow.Closed, reason)
	return nil
}

func (s *Service) closure(actor Actor) models.Resolution {
	return models.Resolution{
		Decision:      statusflow.Closed,
		DecidedBy:     actor.ID,
		DecidedByName: actor.Name,
		DecidedAt:     time.Now().UTC(),
	}
}

// recordStatusChange writes the shared history entry and applicant
// notification for a completed status move.
func (s *Service) recordStatusChange(ctx context.Context, actor Actor, app models.Application, to, reason string) {
	details := fmt.Sprintf("status changed from %s to %s", app.Status, to)
	if reason != "" {
		details += ": " + reason
	}
	s.record(ctx, models.HistoryEntry{
		ApplicationID:   app.ID,
		Action:          "status_changed",
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		PreviousStatus:  app.Status,
		NewStatus:       to,
		Details:         details,
	})
	s.notify(ctx, models.Notification{
		UserID:        app.ApplicantSnapshot.ApplicantID,
		Type:          "status_changed",
		Title:         "Application status updated",
		Message:       "Your application " + app.ApplicationNumber + " is now " + strings.ReplaceAll(to, "_", " ") + ".",
		ApplicationID: &app.ID,
	})
}

// AddNote appends an annotation to the application. Applicant notes are
// never internal regardless of the requested visibility.
func (s *Service) AddNote(ctx context.Context, actor Actor, appID primitive.ObjectID, content string, isInternal bool) (models.Note, error) {
	content = htmlsanitize.Note(content)
	if content == "" {
		return models.Note{}, apperr.New(apperr.InvalidArgument, "note content is required")
	}
	if actor.Role == models.RoleApplicant {
		isInternal = false
	}

	note := models.Note{
		ID:         primitive.NewObjectID(),
		Content:    content,
		IsInternal: isInternal,
		CreatedBy:  actor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	ok, err := s.apps.AddNote(ctx, appID, note)
	if err != nil {
		return models.Note{}, apperr.Wrap(err, apperr.Internal, "could not add note")
	}
	if !ok {
		return models.Note{}, apperr.New(apperr.NotFound, "application not found")
	}

	s.record(ctx, models.HistoryEntry{
		ApplicationID:   appID,
		Action:          "note_added",
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Details:         "note added",
	})
	return note, nil
}

// applicantSnapshot builds a point-in-time snapshot of the applicant for
// embedding on the application.
func (s *Service) applicantSnapshot(ctx context.Context, applicantID primitive.ObjectID) (models.ApplicantSnapshot, error) {
	user, err := s.users.GetByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ApplicantSnapshot{}, apperr.New(apperr.NotFound, "applicant not found")
		}
		return models.ApplicantSnapshot{}, apperr.Wrap(err, apperr.Internal, "could not load applicant")
	}
	return models.ApplicantSnapshot{
		ApplicantID: user.ID,
		Name:        user.FullName,
		Email:       user.Email,
		IsFlagged:   user.IsFlagged,
	}, nil
}

// loadApplication fetches an application, mapping a missing document to a
// not-found error.
func (s *Service) loadApplication(ctx context.Context, appID primitive.ObjectID) (models.Application, error) {
	app, err := s.apps.GetByID(ctx, appID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Application{}, apperr.New(apperr.NotFound, "application not found")
		}
		return models.Application{}, apperr.Wrap(err, apperr.Internal, "could not load application")
	}
	return app, nil
}

// draftGuardError distinguishes why a draft-only update matched nothing.
func (s *Service) draftGuardError(ctx context.Context, appID, applicantID primitive.ObjectID) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if app.ApplicantSnapshot.ApplicantID != applicantID {
		return apperr.New(apperr.PermissionDenied, "not your application")
	}
	return apperr.New(apperr.FailedPrecondition, "only draft applications can be edited")
}

// claimGuardError distinguishes why a claim matched nothing.
func (s *Service) claimGuardError(ctx context.Context, appID primitive.ObjectID) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if app.Assigned() {
		return apperr.New(apperr.FailedPrecondition, "application is already claimed by %s", app.AssignedToOrgName)
	}
	return apperr.New(apperr.FailedPrecondition, "application is not in the queue")
}

// internalUnless keeps coded errors as-is and wraps everything else as an
// internal failure with the given message.
func (s *Service) internalUnless(err error, msg string) error {
	var coded *apperr.Error
	if errors.As(err, &coded) {
		return err
	}
	return apperr.Wrap(err, apperr.Internal, "%s", msg)
}
