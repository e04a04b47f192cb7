package userstore_test

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	userstore "github.com/openzakat/zakathub/internal/app/store/users"
	"github.com/openzakat/zakathub/internal/domain/models"
	"github.com/openzakat/zakathub/internal/testutil"
)

func TestCreate_NormalizesFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := userstore.New(db)
	user, err := store.Create(ctx, models.User{
		FullName: "  Amina Khan  ",
		Email:    "  Amina@Example.COM ",
		Role:     "APPLICANT",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if user.FullName != "Amina Khan" {
		t.Errorf("expected trimmed name, got %q", user.FullName)
	}
	if user.Email != "amina@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.Role != models.RoleApplicant {
		t.Errorf("expected lowercased role, got %q", user.Role)
	}
	if user.Status != "active" {
		t.Errorf("expected default status active, got %q", user.Status)
	}
}

func TestGetByEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := userstore.New(db)
	created, err := store.Create(ctx, models.User{
		FullName: "Bilal Ahmed",
		Email:    "bilal@example.com",
		Role:     models.RoleApplicant,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByEmail(ctx, "BILAL@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != created.ID {
		t.Error("expected lookup to find the created user")
	}
}

func TestSetFlagged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := userstore.New(db)
	user, err := store.Create(ctx, models.User{
		FullName: "Flagged Applicant",
		Email:    "flagged@example.com",
		Role:     models.RoleApplicant,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetFlagged(ctx, user.ID, true); err != nil {
		t.Fatalf("SetFlagged failed: %v", err)
	}
	got, err := store.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.IsFlagged {
		t.Error("expected is_flagged true")
	}

	if err := store.SetFlagged(ctx, user.ID, false); err != nil {
		t.Fatalf("SetFlagged failed: %v", err)
	}
	got, err = store.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.IsFlagged {
		t.Error("expected is_flagged false after clearing")
	}
}

func TestSetFlagged_MissingUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := userstore.New(db)
	if err := store.SetFlagged(ctx, primitive.NewObjectID(), true); err == nil {
		t.Error("expected error for missing user")
	}
}

func TestFetchSessionUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	org := fx.CreateOrganization(ctx, "Masjid Session")
	admin := fx.CreateAdmin(ctx, "Staff Member", "staff@example.com", org.ID)

	fetcher := userstore.NewFetcher(db)
	su, err := fetcher.FetchSessionUser(ctx, admin.ID.Hex())
	if err != nil {
		t.Fatalf("FetchSessionUser failed: %v", err)
	}
	if su == nil {
		t.Fatal("expected session user")
	}
	if su.Role != models.RoleAdmin {
		t.Errorf("expected role admin, got %q", su.Role)
	}
	if su.OrganizationID != org.ID.Hex() {
		t.Errorf("expected org ID %s, got %s", org.ID.Hex(), su.OrganizationID)
	}
	if su.OrganizationName != "Masjid Session" {
		t.Errorf("expected org name, got %q", su.OrganizationName)
	}
	if su.IsSuperAdmin {
		t.Error("admin must not be superadmin")
	}
}

func TestFetchSessionUser_MissingAndMalformed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fetcher := userstore.NewFetcher(db)

	su, err := fetcher.FetchSessionUser(ctx, primitive.NewObjectID().Hex())
	if err != nil {
		t.Fatalf("unexpected error for missing user: %v", err)
	}
	if su != nil {
		t.Error("expected nil session user for missing user")
	}

	su, err = fetcher.FetchSessionUser(ctx, "not-an-id")
	if err != nil || su != nil {
		t.Error("expected nil, nil for malformed ID")
	}
}

func TestFetchSessionUser_DisabledUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := userstore.New(db)
	user, err := store.Create(ctx, models.User{
		FullName: "Disabled User",
		Email:    "disabled@example.com",
		Role:     models.RoleApplicant,
		Status:   "disabled",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	fetcher := userstore.NewFetcher(db)
	su, err := fetcher.FetchSessionUser(ctx, user.ID.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if su != nil {
		t.Error("disabled user must not get a session")
	}
}
