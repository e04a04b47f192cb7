// internal/app/features/notifications/handler.go

// Package notifications serves a user's own notification feed. The core
// only records notifications; delivery (email, push) belongs to an
// external collaborator reading the same collection.
package notifications

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	notificationstore "github.com/openzakat/zakathub/internal/app/store/notifications"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/auth"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// feedLimit bounds a single feed fetch.
const feedLimit = 100

// Handler is the feature-level entry point for Notifications.
type Handler struct {
	Notif *notificationstore.Store
	Log   *zap.Logger
}

// NewHandler constructs a Notifications handler bound to a DB and logger.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Notif: notificationstore.New(db),
		Log:   logger,
	}
}

// Routes mounts the notification routes (typically under "/notifications").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.List)
	r.Post("/{id}/read", h.MarkRead)
	return r
}

type feedResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

// List handles GET /notifications: the signed-in user's feed, newest
// first, with the unread count.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "notifications.list")
	defer cancel()

	rows, err := h.Notif.ListByUser(ctx, userID, feedLimit)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not load notifications"))
		return
	}
	unread, err := h.Notif.CountUnread(ctx, userID)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not count notifications"))
		return
	}
	respond.OK(w, feedResponse{Notifications: rows, Unread: unread})
}

// MarkRead handles POST /notifications/{id}/read. Users can only mark
// their own notifications.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.Log, apperr.New(apperr.InvalidArgument, "invalid notification id"))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "notifications.mark_read")
	defer cancel()

	ok, err := h.Notif.MarkRead(ctx, id, userID)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not mark notification"))
		return
	}
	if !ok {
		respond.Error(w, h.Log, apperr.New(apperr.NotFound, "notification not found"))
		return
	}
	respond.OK(w, map[string]string{"status": "read"})
}

func currentUserID(r *http.Request) (primitive.ObjectID, error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, apperr.New(apperr.Unauthenticated, "sign-in required")
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.Unauthenticated, "invalid session")
	}
	return id, nil
}
