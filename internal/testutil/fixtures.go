package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/openzakat/zakathub/internal/app/system/statusflow"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization creates a test masjid with the given name and zeroed
// caseload counters.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		City:      "Test City",
		CityCI:    text.Fold("Test City"),
		State:     "TS",
		StateCI:   text.Fold("TS"),
		TimeZone:  "America/New_York",
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateUser creates a test user with the given role. Staff must carry an
// orgID; applicants and superadmins pass nil.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, orgID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:             primitive.NewObjectID(),
		FullName:       fullName,
		FullNameCI:     text.Fold(fullName),
		Email:          email,
		Role:           role,
		Status:         "active",
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateApplicant creates a test applicant user.
func (f *Fixtures) CreateApplicant(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleApplicant, nil)
}

// CreateAdmin creates a test staff user in the given organization.
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleAdmin, &orgID)
}

// CreateSuperAdmin creates a test superadmin user.
func (f *Fixtures) CreateSuperAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleSuperAdmin, nil)
}

// CreateDraftApplication creates a draft application owned by the applicant.
func (f *Fixtures) CreateDraftApplication(ctx context.Context, applicant models.User) models.Application {
	f.t.Helper()

	now := time.Now().UTC()
	app := models.Application{
		ID:        primitive.NewObjectID(),
		Status:    statusflow.Draft,
		CreatedAt: now,
		UpdatedAt: now,
		ApplicantSnapshot: models.ApplicantSnapshot{
			ApplicantID: applicant.ID,
			Name:        applicant.FullName,
			Email:       applicant.Email,
			IsFlagged:   applicant.IsFlagged,
		},
		Category:        "rent",
		AmountRequested: 500,
		Description:     "Test assistance request",
	}

	if _, err := f.db.Collection("applications").InsertOne(ctx, app); err != nil {
		f.t.Fatalf("failed to create test application: %v", err)
	}
	return app
}

// CreateSubmittedApplication creates an application already in the shared
// submitted queue, with a number and submission time set.
func (f *Fixtures) CreateSubmittedApplication(ctx context.Context, applicant models.User, number string) models.Application {
	f.t.Helper()

	now := time.Now().UTC()
	app := models.Application{
		ID:                primitive.NewObjectID(),
		ApplicationNumber: number,
		Status:            statusflow.Submitted,
		CreatedAt:         now,
		SubmittedAt:       &now,
		UpdatedAt:         now,
		ApplicantSnapshot: models.ApplicantSnapshot{
			ApplicantID: applicant.ID,
			Name:        applicant.FullName,
			Email:       applicant.Email,
			IsFlagged:   applicant.IsFlagged,
		},
		Category:        "rent",
		AmountRequested: 500,
		Description:     "Test assistance request",
	}

	if _, err := f.db.Collection("applications").InsertOne(ctx, app); err != nil {
		f.t.Fatalf("failed to create test application: %v", err)
	}
	return app
}

// CreateClaimedApplication creates an application under review, owned by the
// given reviewer and organization.
func (f *Fixtures) CreateClaimedApplication(ctx context.Context, applicant, reviewer models.User, org models.Organization, number string) models.Application {
	f.t.Helper()

	now := time.Now().UTC()
	app := models.Application{
		ID:                primitive.NewObjectID(),
		ApplicationNumber: number,
		Status:            statusflow.UnderReview,
		CreatedAt:         now,
		SubmittedAt:       &now,
		UpdatedAt:         now,
		AssignedTo:        &reviewer.ID,
		AssignedToOrg:     &org.ID,
		AssignedToOrgName: org.Name,
		AssignedAt:        &now,
		ApplicantSnapshot: models.ApplicantSnapshot{
			ApplicantID: applicant.ID,
			Name:        applicant.FullName,
			Email:       applicant.Email,
			IsFlagged:   applicant.IsFlagged,
		},
		Category:        "rent",
		AmountRequested: 500,
		Description:     "Test assistance request",
	}

	if _, err := f.db.Collection("applications").InsertOne(ctx, app); err != nil {
		f.t.Fatalf("failed to create test application: %v", err)
	}
	return app
}

// CreateActiveFlag creates an active flag on the applicant raised by the
// given staff user.
func (f *Fixtures) CreateActiveFlag(ctx context.Context, applicant, staff models.User, reason string) models.Flag {
	f.t.Helper()

	flag := models.Flag{
		ID:           primitive.NewObjectID(),
		ApplicantID:  applicant.ID,
		Reason:       reason,
		Severity:     "medium",
		IsActive:     true,
		FlaggedBy:    staff.ID,
		FlaggedByOrg: staff.OrganizationID,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := f.db.Collection("flags").InsertOne(ctx, flag); err != nil {
		f.t.Fatalf("failed to create test flag: %v", err)
	}
	return flag
}
