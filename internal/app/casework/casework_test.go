package casework_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/casework"
	applicationstore "github.com/openzakat/zakathub/internal/app/store/applications"
	notificationstore "github.com/openzakat/zakathub/internal/app/store/notifications"
	organizationstore "github.com/openzakat/zakathub/internal/app/store/organizations"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/statusflow"
	"github.com/openzakat/zakathub/internal/app/system/txn"
	"github.com/openzakat/zakathub/internal/domain/models"
	"github.com/openzakat/zakathub/internal/testutil"
)

func newService(db *mongo.Database) *casework.Service {
	return casework.New(db.Client(), db, zap.NewNop())
}

func newOrgReader(db *mongo.Database) *organizationstore.Store {
	return organizationstore.New(db)
}

func actorFor(u models.User) casework.Actor {
	a := casework.Actor{ID: u.ID, Name: u.FullName, Role: u.Role}
	if u.OrganizationID != nil {
		a.OrgID = *u.OrganizationID
	}
	return a
}

func adminActor(u models.User, org models.Organization) casework.Actor {
	a := actorFor(u)
	a.OrgName = org.Name
	return a
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("expected %s error, got %s: %v", code, got, err)
	}
}

// requireReplicaSet skips tests that depend on multi-document transaction
// rollback, which a standalone mongod cannot provide.
func requireReplicaSet(t *testing.T, db *mongo.Database) {
	t.Helper()
	var hello struct {
		SetName string `bson:"setName"`
	}
	res := db.Client().Database("admin").RunCommand(context.Background(), bson.D{{Key: "hello", Value: 1}})
	if err := res.Decode(&hello); err != nil || hello.SetName == "" {
		t.Skip("multi-document transactions require a replica set")
	}
}

func TestDraftLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)
	applicant := fx.CreateApplicant(ctx, "Amina Hassan", "amina@example.com")
	actor := actorFor(applicant)

	app, err := svc.CreateDraft(ctx, actor, casework.DraftInput{
		Category:        "rent",
		AmountRequested: 500,
	})
	if err != nil {
		t.Fatalf("CreateDraft failed: %v", err)
	}
	if app.Status != statusflow.Draft {
		t.Errorf("expected draft status, got %q", app.Status)
	}
	if app.ApplicantSnapshot.ApplicantID != applicant.ID || app.ApplicantSnapshot.Email != "amina@example.com" {
		t.Errorf("unexpected snapshot %+v", app.ApplicantSnapshot)
	}

	// Staff cannot open applications.
	org := fx.CreateOrganization(ctx, "Masjid Draft")
	admin := fx.CreateAdmin(ctx, "Admin", "admin-draft@example.com", org.ID)
	_, err = svc.CreateDraft(ctx, actorFor(admin), casework.DraftInput{})
	wantCode(t, err, apperr.PermissionDenied)

	// A description missing means the draft is incomplete: it can be saved
	// but not submitted.
	_, err = svc.Submit(ctx, actor, app.ID)
	wantCode(t, err, apperr.InvalidArgument)

	if err := svc.UpdateDraft(ctx, actor, app.ID, casework.DraftInput{
		Category:        "rent",
		AmountRequested: 650,
		Description:     "Behind on rent after a job loss.",
	}); err != nil {
		t.Fatalf("UpdateDraft failed: %v", err)
	}

	// Another applicant cannot touch the draft.
	other := fx.CreateApplicant(ctx, "Other", "other@example.com")
	err = svc.UpdateDraft(ctx, actorFor(other), app.ID, casework.DraftInput{Description: "x"})
	wantCode(t, err, apperr.PermissionDenied)

	submitted, err := svc.Submit(ctx, actor, app.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submitted.Status != statusflow.Submitted {
		t.Errorf("expected submitted status, got %q", submitted.Status)
	}
	if submitted.ApplicationNumber == "" || !strings.HasPrefix(submitted.ApplicationNumber, "ZKT-") {
		t.Errorf("expected a ZKT application number, got %q", submitted.ApplicationNumber)
	}
	if submitted.SubmittedAt == nil {
		t.Error("expected submitted_at to be stamped")
	}

	// Submitted applications are frozen for the applicant.
	err = svc.UpdateDraft(ctx, actor, app.ID, casework.DraftInput{Description: "more"})
	wantCode(t, err, apperr.FailedPrecondition)
	_, err = svc.Submit(ctx, actor, app.ID)
	wantCode(t, err, apperr.FailedPrecondition)
}

func TestSubmitAssignsSequentialNumbers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	first := fx.CreateApplicant(ctx, "First", "first@example.com")
	second := fx.CreateApplicant(ctx, "Second", "second@example.com")

	a1 := fx.CreateDraftApplication(ctx, first)
	a2 := fx.CreateDraftApplication(ctx, second)

	s1, err := svc.Submit(ctx, actorFor(first), a1.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	s2, err := svc.Submit(ctx, actorFor(second), a2.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if s1.ApplicationNumber != "ZKT-00000001" || s2.ApplicationNumber != "ZKT-00000002" {
		t.Errorf("expected sequential numbers, got %q and %q", s1.ApplicationNumber, s2.ApplicationNumber)
	}
}

func TestClaimAndRelease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	org := fx.CreateOrganization(ctx, "Masjid An-Nur")
	orgB := fx.CreateOrganization(ctx, "Masjid Al-Falah")
	admin := fx.CreateAdmin(ctx, "Reviewer", "rev@example.com", org.ID)
	adminB := fx.CreateAdmin(ctx, "Reviewer B", "revb@example.com", orgB.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl@example.com")
	app := fx.CreateSubmittedApplication(ctx, applicant, "ZKT-00000100")

	claimed, err := svc.Claim(ctx, adminActor(admin, org), app.ID)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claimed.Status != statusflow.UnderReview {
		t.Errorf("expected under_review, got %q", claimed.Status)
	}
	if claimed.AssignedToOrg == nil || *claimed.AssignedToOrg != org.ID {
		t.Error("expected assignment to the claiming org")
	}

	gotOrg, err := newOrgReader(db).GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if gotOrg.ApplicationsInProgress != 1 {
		t.Errorf("expected in-progress counter 1, got %d", gotOrg.ApplicationsInProgress)
	}

	// A second organization claiming the same case loses cleanly.
	_, err = svc.Claim(ctx, adminActor(adminB, orgB), app.ID)
	wantCode(t, err, apperr.FailedPrecondition)

	if err := svc.Release(ctx, adminActor(admin, org), app.ID, "caseload rebalancing"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	released, err := svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if released.Status != statusflow.Submitted || released.Assigned() {
		t.Errorf("expected unassigned submitted application, got %+v", released)
	}
	gotOrg, err = newOrgReader(db).GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if gotOrg.ApplicationsInProgress != 0 {
		t.Errorf("expected in-progress counter back to 0, got %d", gotOrg.ApplicationsInProgress)
	}

	// Releasing an unclaimed application is a precondition failure.
	err = svc.Release(ctx, adminActor(admin, org), app.ID, "")
	wantCode(t, err, apperr.FailedPrecondition)
}

func TestReleaseAndReassignNotifyApplicant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	org := fx.CreateOrganization(ctx, "Masjid An-Nur")
	orgB := fx.CreateOrganization(ctx, "Masjid Al-Falah")
	admin := fx.CreateAdmin(ctx, "Reviewer", "rev-notify@example.com", org.ID)
	adminB := fx.CreateAdmin(ctx, "Reviewer B", "revb-notify@example.com", orgB.ID)
	super := fx.CreateSuperAdmin(ctx, "Root", "root-notify@example.com")
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-notify@example.com")
	app := fx.CreateSubmittedApplication(ctx, applicant, "ZKT-00000150")

	if _, err := svc.Claim(ctx, adminActor(admin, org), app.ID); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := svc.Release(ctx, adminActor(admin, org), app.ID, ""); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := svc.Claim(ctx, adminActor(admin, org), app.ID); err != nil {
		t.Fatalf("second Claim failed: %v", err)
	}
	if err := svc.Reassign(ctx, actorFor(super), app.ID, adminB.ID); err != nil {
		t.Fatalf("Reassign failed: %v", err)
	}

	feed, err := notificationstore.New(db).ListByUser(ctx, applicant.ID, 0)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	var released, reassigned bool
	for _, n := range feed {
		switch n.Title {
		case "Application back in the queue":
			released = true
			if !strings.Contains(n.Message, app.ApplicationNumber) {
				t.Errorf("release notification missing application number: %q", n.Message)
			}
		case "Application reassigned":
			reassigned = true
			if !strings.Contains(n.Message, orgB.Name) {
				t.Errorf("reassign notification missing new org name: %q", n.Message)
			}
		}
	}
	if !released {
		t.Error("expected a notification for the release")
	}
	if !reassigned {
		t.Error("expected a notification for the reassignment")
	}
}

func TestChangeStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	org := fx.CreateOrganization(ctx, "Masjid Status")
	admin := fx.CreateAdmin(ctx, "Reviewer", "rev-st@example.com", org.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-st@example.com")
	app := fx.CreateClaimedApplication(ctx, applicant, admin, org, "ZKT-00000200")
	actor := adminActor(admin, org)

	if err := svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{
		Status: statusflow.PendingDocuments,
		Reason: "missing utility bill",
	}); err != nil {
		t.Fatalf("ChangeStatus failed: %v", err)
	}

	err := svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{Status: "bogus"})
	wantCode(t, err, apperr.InvalidArgument)
	err = svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{Status: statusflow.Draft})
	wantCode(t, err, apperr.InvalidArgument)

	// pending_documents cannot jump anywhere illegal, approval included.
	err = svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{Status: statusflow.PendingDocuments})
	wantCode(t, err, apperr.FailedPrecondition)
	err = svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{
		Status:         statusflow.Approved,
		AmountApproved: 100,
	})
	wantCode(t, err, apperr.FailedPrecondition)

	if err := svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{Status: statusflow.UnderReview}); err != nil {
		t.Fatalf("ChangeStatus back to review failed: %v", err)
	}
}

func TestChangeStatusTerminalTargets(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	org := fx.CreateOrganization(ctx, "Masjid Terminal")
	admin := fx.CreateAdmin(ctx, "Reviewer", "rev-t@example.com", org.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-t@example.com")
	app := fx.CreateClaimedApplication(ctx, applicant, admin, org, "ZKT-00000210")
	actor := adminActor(admin, org)

	// Approval through the status endpoint carries the amount and counts
	// the resolution once.
	if err := svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{
		Status:         statusflow.Approved,
		AmountApproved: 500,
	}); err != nil {
		t.Fatalf("ChangeStatus to approved failed: %v", err)
	}
	got, err := svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if got.Status != statusflow.Approved || got.Resolution == nil || got.Resolution.AmountApproved != 500 {
		t.Fatalf("expected approved for 500, got %+v", got)
	}
	gotOrg, err := newOrgReader(db).GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if gotOrg.TotalApplicationsHandled != 1 || gotOrg.ApplicationsInProgress != 0 {
		t.Errorf("expected handled=1 in-progress=0, got handled=%d in-progress=%d",
			gotOrg.TotalApplicationsHandled, gotOrg.ApplicationsInProgress)
	}

	// Moving to disbursed records a payout for the given amount.
	if err := svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{
		Status:          statusflow.Disbursed,
		DisbursedAmount: 500,
	}); err != nil {
		t.Fatalf("ChangeStatus to disbursed failed: %v", err)
	}
	got, err = svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if got.Status != statusflow.Disbursed || got.Resolution.AmountDisbursed != 500 {
		t.Fatalf("expected disbursed total 500, got %+v", got.Resolution)
	}
	gotOrg, err = newOrgReader(db).GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if gotOrg.TotalAmountDisbursed != 500 {
		t.Errorf("expected org lifetime disbursed 500, got %v", gotOrg.TotalAmountDisbursed)
	}
	if gotOrg.TotalApplicationsHandled != 1 {
		t.Errorf("disbursing must not count the case again, handled=%d", gotOrg.TotalApplicationsHandled)
	}

	// Disbursed without an amount is invalid.
	err = svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{Status: statusflow.Disbursed})
	wantCode(t, err, apperr.InvalidArgument)

	// Rejection through the status endpoint carries the reason.
	app2 := fx.CreateClaimedApplication(ctx, applicant, admin, org, "ZKT-00000211")
	if err := svc.ChangeStatus(ctx, actor, app2.ID, casework.StatusChangeInput{
		Status: statusflow.Rejected,
		Reason: "duplicate request",
	}); err != nil {
		t.Fatalf("ChangeStatus to rejected failed: %v", err)
	}
	got, err = svc.GetApplication(ctx, app2.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if got.Status != statusflow.Rejected || got.Resolution.RejectionReason != "duplicate request" {
		t.Fatalf("expected rejection with reason, got %+v", got.Resolution)
	}
}

func TestCloseCountsFirstTimeOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	org := fx.CreateOrganization(ctx, "Masjid Close")
	admin := fx.CreateAdmin(ctx, "Reviewer", "rev-c@example.com", org.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-c@example.com")
	actor := adminActor(admin, org)

	// Closing an undecided claimed case stamps the closure as its
	// resolution and counts it into the org aggregates.
	app := fx.CreateClaimedApplication(ctx, applicant, admin, org, "ZKT-00000220")
	if err := svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{
		Status: statusflow.Closed,
		Reason: "applicant withdrew",
	}); err != nil {
		t.Fatalf("ChangeStatus to closed failed: %v", err)
	}
	got, err := svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if got.Status != statusflow.Closed || !got.Resolved() || got.Resolution.Decision != statusflow.Closed {
		t.Fatalf("expected a stamped closure, got %+v", got)
	}
	gotOrg, err := newOrgReader(db).GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if gotOrg.TotalApplicationsHandled != 1 || gotOrg.ApplicationsInProgress != 0 {
		t.Errorf("expected handled=1 in-progress=0, got handled=%d in-progress=%d",
			gotOrg.TotalApplicationsHandled, gotOrg.ApplicationsInProgress)
	}

	// Closing after approval is a plain status move: the case was already
	// counted when it was resolved.
	app2 := fx.CreateClaimedApplication(ctx, applicant, admin, org, "ZKT-00000221")
	if _, err := svc.Resolve(ctx, actor, app2.ID, casework.ResolveInput{
		Decision:       statusflow.Approved,
		AmountApproved: 200,
	}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := svc.ChangeStatus(ctx, actor, app2.ID, casework.StatusChangeInput{Status: statusflow.Closed}); err != nil {
		t.Fatalf("ChangeStatus to closed failed: %v", err)
	}
	got, err = svc.GetApplication(ctx, app2.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if got.Status != statusflow.Closed || got.Resolution.Decision != statusflow.Approved {
		t.Fatalf("expected closed application keeping its approval, got %+v", got)
	}
	gotOrg, err = newOrgReader(db).GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if gotOrg.TotalApplicationsHandled != 2 {
		t.Errorf("closing a resolved case must not count it again, handled=%d", gotOrg.TotalApplicationsHandled)
	}
}

func TestCloseUnclaimedSubmitted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	super := fx.CreateSuperAdmin(ctx, "Root", "root-close@example.com")
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-uc@example.com")
	app := fx.CreateSubmittedApplication(ctx, applicant, "ZKT-00000230")

	if err := svc.ChangeStatus(ctx, actorFor(super), app.ID, casework.StatusChangeInput{
		Status: statusflow.Closed,
		Reason: "withdrawn before review",
	}); err != nil {
		t.Fatalf("ChangeStatus to closed failed: %v", err)
	}

	got, err := svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if got.Status != statusflow.Closed || got.Resolution == nil || got.Resolution.Decision != statusflow.Closed {
		t.Fatalf("expected a stamped closure, got %+v", got)
	}
	if got.Assigned() {
		t.Error("closing from the queue must not assign the case")
	}
}

func TestResolveApproveAndDisburse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	org := fx.CreateOrganization(ctx, "Masjid Ledger")
	admin := fx.CreateAdmin(ctx, "Reviewer", "rev-l@example.com", org.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-l@example.com")
	app := fx.CreateClaimedApplication(ctx, applicant, admin, org, "ZKT-00000300")
	actor := adminActor(admin, org)

	// Approving without an amount is invalid.
	_, err := svc.Resolve(ctx, actor, app.ID, casework.ResolveInput{Decision: statusflow.Approved})
	wantCode(t, err, apperr.InvalidArgument)

	resolved, err := svc.Resolve(ctx, actor, app.ID, casework.ResolveInput{
		Decision:       statusflow.Approved,
		AmountApproved: 400,
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != statusflow.Approved || !resolved.Resolved() {
		t.Fatalf("expected approved resolution, got %+v", resolved)
	}
	if resolved.Resolution.AmountApproved != 400 {
		t.Errorf("expected approved amount 400, got %v", resolved.Resolution.AmountApproved)
	}

	gotOrg, err := newOrgReader(db).GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if gotOrg.TotalApplicationsHandled != 1 {
		t.Errorf("expected handled counter 1, got %d", gotOrg.TotalApplicationsHandled)
	}

	// The decision is write-once.
	_, err = svc.Resolve(ctx, actor, app.ID, casework.ResolveInput{
		Decision:        statusflow.Rejected,
		RejectionReason: "never mind",
	})
	wantCode(t, err, apperr.FailedPrecondition)

	// The first payout moves the application to disbursed, whatever the
	// amount.
	d1, err := svc.RecordDisbursement(ctx, actor, app.ID, casework.DisbursementInput{
		Amount: 150, Method: "check", Reference: "chk-100",
	})
	if err != nil {
		t.Fatalf("RecordDisbursement failed: %v", err)
	}
	if d1.ID.IsZero() || d1.Amount != 150 {
		t.Errorf("unexpected ledger row %+v", d1)
	}

	first, err := svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if first.Status != statusflow.Disbursed {
		t.Errorf("expected disbursed after the first payout, got %q", first.Status)
	}
	if first.Resolution.AmountDisbursed != 150 || first.Resolution.DisbursedAt == nil {
		t.Errorf("expected stamped payout of 150, got %+v", first.Resolution)
	}

	// Later payouts keep accumulating, past the approved amount included.
	if _, err := svc.RecordDisbursement(ctx, actor, app.ID, casework.DisbursementInput{
		Amount: 250, Method: "transfer", Reference: "tx-7",
	}); err != nil {
		t.Fatalf("second RecordDisbursement failed: %v", err)
	}
	if _, err := svc.RecordDisbursement(ctx, actor, app.ID, casework.DisbursementInput{
		Amount: 200, Method: "cash",
	}); err != nil {
		t.Fatalf("third RecordDisbursement failed: %v", err)
	}

	total, err := svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if total.Status != statusflow.Disbursed {
		t.Errorf("expected disbursed status, got %q", total.Status)
	}
	if total.Resolution.AmountDisbursed != 600 {
		t.Errorf("expected disbursed total 600, got %v", total.Resolution.AmountDisbursed)
	}

	gotOrg, err = newOrgReader(db).GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if gotOrg.TotalAmountDisbursed != 600 {
		t.Errorf("expected org lifetime disbursed 600, got %v", gotOrg.TotalAmountDisbursed)
	}
}

func TestResolveReject(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	org := fx.CreateOrganization(ctx, "Masjid Reject")
	admin := fx.CreateAdmin(ctx, "Reviewer", "rev-r@example.com", org.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-r@example.com")
	app := fx.CreateClaimedApplication(ctx, applicant, admin, org, "ZKT-00000400")
	actor := adminActor(admin, org)

	// A rejection must carry a reason.
	_, err := svc.Resolve(ctx, actor, app.ID, casework.ResolveInput{Decision: statusflow.Rejected})
	wantCode(t, err, apperr.InvalidArgument)

	resolved, err := svc.Resolve(ctx, actor, app.ID, casework.ResolveInput{
		Decision:        statusflow.Rejected,
		RejectionReason: "duplicate of an existing request",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != statusflow.Rejected {
		t.Errorf("expected rejected status, got %q", resolved.Status)
	}
	if resolved.Resolution.RejectionReason != "duplicate of an existing request" {
		t.Errorf("unexpected rejection reason %q", resolved.Resolution.RejectionReason)
	}

	// Rejected applications never accept payouts.
	_, err = svc.RecordDisbursement(ctx, actor, app.ID, casework.DisbursementInput{Amount: 10, Method: "cash"})
	wantCode(t, err, apperr.FailedPrecondition)
}

func TestResolveFromPendingDocuments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	org := fx.CreateOrganization(ctx, "Masjid Pending")
	admin := fx.CreateAdmin(ctx, "Reviewer", "rev-p@example.com", org.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-p@example.com")
	app := fx.CreateClaimedApplication(ctx, applicant, admin, org, "ZKT-00000500")
	actor := adminActor(admin, org)

	if err := svc.ChangeStatus(ctx, actor, app.ID, casework.StatusChangeInput{Status: statusflow.PendingDocuments}); err != nil {
		t.Fatalf("ChangeStatus failed: %v", err)
	}

	// An application waiting on documents must come back through review
	// before it can be approved.
	_, err := svc.Resolve(ctx, actor, app.ID, casework.ResolveInput{
		Decision:       statusflow.Approved,
		AmountApproved: 100,
	})
	wantCode(t, err, apperr.FailedPrecondition)

	// Rejecting it directly is fine: the documents never arrived.
	resolved, err := svc.Resolve(ctx, actor, app.ID, casework.ResolveInput{
		Decision:        statusflow.Rejected,
		RejectionReason: "requested documents were never provided",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != statusflow.Rejected {
		t.Errorf("expected rejected status, got %q", resolved.Status)
	}
}

func TestAddNote(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-n@example.com")
	app := fx.CreateDraftApplication(ctx, applicant)
	actor := actorFor(applicant)

	// Applicant notes are always visible, even if internal was requested.
	note, err := svc.AddNote(ctx, actor, app.ID, "<script>alert(1)</script><p>please call me</p>", true)
	if err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	if note.IsInternal {
		t.Error("applicant notes must not be internal")
	}
	if strings.Contains(note.Content, "script") {
		t.Errorf("expected sanitized content, got %q", note.Content)
	}
	if !strings.Contains(note.Content, "please call me") {
		t.Errorf("expected note text preserved, got %q", note.Content)
	}

	// A note that sanitizes to nothing is rejected.
	_, err = svc.AddNote(ctx, actor, app.ID, "<script>only</script>", false)
	wantCode(t, err, apperr.InvalidArgument)
}

func TestFlagFanOut(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	orgA := fx.CreateOrganization(ctx, "Masjid Flag A")
	orgB := fx.CreateOrganization(ctx, "Masjid Flag B")
	adminA := fx.CreateAdmin(ctx, "Admin A", "fa@example.com", orgA.ID)
	adminB := fx.CreateAdmin(ctx, "Admin B", "fb@example.com", orgB.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-f@example.com")

	active := fx.CreateClaimedApplication(ctx, applicant, adminA, orgA, "ZKT-00000600")
	closed := fx.CreateSubmittedApplication(ctx, applicant, "ZKT-00000601")
	if _, err := db.Collection("applications").UpdateByID(ctx, closed.ID,
		bson.M{"$set": bson.M{"status": statusflow.Closed}}); err != nil {
		t.Fatalf("failed to close fixture application: %v", err)
	}

	// Staff cannot be flagged.
	_, err := svc.FlagApplicant(ctx, adminActor(adminA, orgA), adminB.ID, casework.FlagInput{Reason: "nope"})
	wantCode(t, err, apperr.InvalidArgument)

	flagA, err := svc.FlagApplicant(ctx, adminActor(adminA, orgA), applicant.ID, casework.FlagInput{
		Reason:   "duplicate requests across masjids",
		Severity: "high",
	})
	if err != nil {
		t.Fatalf("FlagApplicant failed: %v", err)
	}
	if !flagA.IsActive || flagA.FlaggedByOrg == nil || *flagA.FlaggedByOrg != orgA.ID {
		t.Errorf("unexpected flag %+v", flagA)
	}

	flagB, err := svc.FlagApplicant(ctx, adminActor(adminB, orgB), applicant.ID, casework.FlagInput{
		Reason: "verification concerns",
	})
	if err != nil {
		t.Fatalf("second FlagApplicant failed: %v", err)
	}
	if flagB.Severity != "medium" {
		t.Errorf("expected default severity medium, got %q", flagB.Severity)
	}

	assertFlagged := func(want bool) {
		t.Helper()
		user, err := svc.GetUser(ctx, applicant.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if user.IsFlagged != want {
			t.Errorf("expected user flagged=%v", want)
		}
		// The fan-out covers every application, terminal statuses included.
		for _, id := range []primitive.ObjectID{active.ID, closed.ID} {
			got, err := svc.GetApplication(ctx, id)
			if err != nil {
				t.Fatalf("GetApplication failed: %v", err)
			}
			if got.ApplicantSnapshot.IsFlagged != want {
				t.Errorf("expected application snapshot flagged=%v", want)
			}
		}
	}

	assertFlagged(true)

	// Resolving one of two flags keeps the applicant flagged.
	if err := svc.ResolveFlag(ctx, adminActor(adminB, orgB), flagA.ID, "cleared with org A"); err != nil {
		t.Fatalf("ResolveFlag failed: %v", err)
	}
	assertFlagged(true)

	// Resolving the last active flag clears the derived state everywhere.
	if err := svc.ResolveFlag(ctx, adminActor(adminB, orgB), flagB.ID, "verified"); err != nil {
		t.Fatalf("ResolveFlag failed: %v", err)
	}
	assertFlagged(false)

	// A resolved flag cannot be resolved again.
	err = svc.ResolveFlag(ctx, adminActor(adminB, orgB), flagB.ID, "again")
	wantCode(t, err, apperr.FailedPrecondition)
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	orgA := fx.CreateOrganization(ctx, "Masjid Race A")
	orgB := fx.CreateOrganization(ctx, "Masjid Race B")
	adminA := fx.CreateAdmin(ctx, "Admin A", "race-a@example.com", orgA.ID)
	adminB := fx.CreateAdmin(ctx, "Admin B", "race-b@example.com", orgB.ID)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-race@example.com")
	app := fx.CreateSubmittedApplication(ctx, applicant, "ZKT-00000800")

	actors := []casework.Actor{adminActor(adminA, orgA), adminActor(adminB, orgB)}
	errs := make([]error, len(actors))
	var wg sync.WaitGroup
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Claim(ctx, actors[i], app.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		wantCode(t, err, apperr.FailedPrecondition)
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", winners)
	}

	got, err := svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if got.Status != statusflow.UnderReview || !got.Assigned() {
		t.Fatalf("expected a claimed case, got %+v", got)
	}

	// Exactly one in-progress slot is occupied across the two orgs, and it
	// belongs to the winner.
	reader := newOrgReader(db)
	a, err := reader.GetByID(ctx, orgA.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	b, err := reader.GetByID(ctx, orgB.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if a.ApplicationsInProgress+b.ApplicationsInProgress != 1 {
		t.Errorf("expected one in-progress slot total, got a=%d b=%d",
			a.ApplicationsInProgress, b.ApplicationsInProgress)
	}
	winnerInProgress := a.ApplicationsInProgress
	if *got.AssignedToOrg == orgB.ID {
		winnerInProgress = b.ApplicationsInProgress
	}
	if winnerInProgress != 1 {
		t.Error("the in-progress slot must belong to the winning org")
	}
}

func TestFlagFanOutAllOrNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	requireReplicaSet(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-atomic@example.com")
	apps := []models.Application{
		fx.CreateSubmittedApplication(ctx, applicant, "ZKT-00000810"),
		fx.CreateSubmittedApplication(ctx, applicant, "ZKT-00000811"),
		fx.CreateDraftApplication(ctx, applicant),
	}
	store := applicationstore.New(db)

	// A failure after the fan-out aborts the transaction and must leave
	// every snapshot untouched.
	errAbort := errors.New("abort after fan-out")
	err := txn.Run(ctx, db.Client(), func(ctx context.Context) error {
		n, err := store.SyncApplicantFlag(ctx, applicant.ID, true)
		if err != nil {
			return err
		}
		if n != int64(len(apps)) {
			t.Errorf("expected %d snapshots written inside the transaction, got %d", len(apps), n)
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected the injected error back, got %v", err)
	}

	for _, app := range apps {
		got, err := store.GetByID(ctx, app.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.ApplicantSnapshot.IsFlagged {
			t.Errorf("application %s must not keep the aborted fan-out", app.ID.Hex())
		}
	}
}

func TestReassign(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	svc := newService(db)

	orgA := fx.CreateOrganization(ctx, "Masjid From")
	orgB := fx.CreateOrganization(ctx, "Masjid To")
	adminA := fx.CreateAdmin(ctx, "Admin A", "ra@example.com", orgA.ID)
	adminB := fx.CreateAdmin(ctx, "Admin B", "rb@example.com", orgB.ID)
	super := fx.CreateSuperAdmin(ctx, "Root", "root@example.com")
	applicant := fx.CreateApplicant(ctx, "Applicant", "appl-ra@example.com")
	app := fx.CreateSubmittedApplication(ctx, applicant, "ZKT-00000700")

	if _, err := svc.Claim(ctx, adminActor(adminA, orgA), app.ID); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	if err := svc.Reassign(ctx, actorFor(super), app.ID, adminB.ID); err != nil {
		t.Fatalf("Reassign failed: %v", err)
	}

	got, err := svc.GetApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetApplication failed: %v", err)
	}
	if got.AssignedTo == nil || *got.AssignedTo != adminB.ID {
		t.Error("expected assignment to the new reviewer")
	}
	if got.AssignedToOrg == nil || *got.AssignedToOrg != orgB.ID {
		t.Error("expected assignment to the new organization")
	}

	reader := newOrgReader(db)
	a, err := reader.GetByID(ctx, orgA.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	b, err := reader.GetByID(ctx, orgB.ID)
	if err != nil {
		t.Fatalf("org read failed: %v", err)
	}
	if a.ApplicationsInProgress != 0 || b.ApplicationsInProgress != 1 {
		t.Errorf("expected counters to move with the case, got from=%d to=%d",
			a.ApplicationsInProgress, b.ApplicationsInProgress)
	}

	// Reassigning to an applicant is invalid.
	err = svc.Reassign(ctx, actorFor(super), app.ID, applicant.ID)
	wantCode(t, err, apperr.InvalidArgument)
}
