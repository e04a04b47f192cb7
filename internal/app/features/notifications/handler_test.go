package notifications_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/features/notifications"
	notificationstore "github.com/openzakat/zakathub/internal/app/store/notifications"
	"github.com/openzakat/zakathub/internal/domain/models"
	"github.com/openzakat/zakathub/internal/testutil"
)

func newTestHandler(t *testing.T) (*notifications.Handler, *notificationstore.Store, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	handler := notifications.NewHandler(db, zap.NewNop())
	return handler, notificationstore.New(db), testutil.NewFixtures(t, db)
}

func userFor(u models.User) testutil.TestUser {
	return testutil.TestUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
	}
}

func decodeData(t *testing.T, rec *testutil.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got body %s", rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func TestList_OwnFeedWithUnreadCount(t *testing.T) {
	handler, store, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	me := fixtures.CreateApplicant(ctx, "Amina Yusuf", "amina@test.com")
	other := fixtures.CreateApplicant(ctx, "Bilal Khan", "bilal@test.com")

	for _, n := range []models.Notification{
		{UserID: me.ID, Type: "status_changed", Title: "Update", Message: "one"},
		{UserID: me.ID, Type: "status_changed", Title: "Update", Message: "two"},
		{UserID: other.ID, Type: "status_changed", Title: "Update", Message: "not mine"},
	} {
		if err := store.Enqueue(ctx, n); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	req := testutil.NewAuthenticatedRequest("GET", "/notifications", userFor(me))
	rec := testutil.NewRecorder()
	handler.List(rec, req)

	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int64                 `json:"unread"`
	}
	decodeData(t, rec, &resp)
	if len(resp.Notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(resp.Notifications))
	}
	if resp.Unread != 2 {
		t.Errorf("Unread: got %d, want 2", resp.Unread)
	}
	for _, n := range resp.Notifications {
		if n.UserID != me.ID {
			t.Error("feed leaked another user's notification")
		}
	}
}

func TestMarkRead_OwnNotification(t *testing.T) {
	handler, store, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	me := fixtures.CreateApplicant(ctx, "Amina Yusuf", "amina@test.com")
	if err := store.Enqueue(ctx, models.Notification{
		UserID: me.ID, Type: "status_changed", Title: "Update", Message: "one",
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	rows, err := store.ListByUser(ctx, me.ID, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("seed notification missing: %v", err)
	}
	id := rows[0].ID

	req := testutil.NewAuthenticatedRequest("POST", "/notifications/"+id.Hex()+"/read", userFor(me))
	req = testutil.WithChiURLParam(req, "id", id.Hex())
	rec := testutil.NewRecorder()
	handler.MarkRead(rec, req)

	rec.AssertStatus(t, http.StatusOK)

	unread, err := store.CountUnread(ctx, me.ID)
	if err != nil {
		t.Fatalf("CountUnread failed: %v", err)
	}
	if unread != 0 {
		t.Errorf("unread count: got %d, want 0", unread)
	}
}

func TestMarkRead_ForeignNotification_NotFound(t *testing.T) {
	handler, store, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateApplicant(ctx, "Amina Yusuf", "amina@test.com")
	intruder := fixtures.CreateApplicant(ctx, "Bilal Khan", "bilal@test.com")
	if err := store.Enqueue(ctx, models.Notification{
		UserID: owner.ID, Type: "status_changed", Title: "Update", Message: "one",
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	rows, err := store.ListByUser(ctx, owner.ID, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("seed notification missing: %v", err)
	}
	id := rows[0].ID

	req := testutil.NewAuthenticatedRequest("POST", "/notifications/"+id.Hex()+"/read", userFor(intruder))
	req = testutil.WithChiURLParam(req, "id", id.Hex())
	rec := testutil.NewRecorder()
	handler.MarkRead(rec, req)

	rec.AssertStatus(t, http.StatusNotFound)

	unread, err := store.CountUnread(ctx, owner.ID)
	if err != nil {
		t.Fatalf("CountUnread failed: %v", err)
	}
	if unread != 1 {
		t.Errorf("owner's notification must stay unread, unread=%d", unread)
	}
}
