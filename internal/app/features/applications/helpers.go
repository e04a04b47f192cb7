// internal/app/features/applications/helpers.go
package applications

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openzakat/zakathub/internal/app/casework"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/auth"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// pathID parses the {id} route parameter as an ObjectID.
func pathID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.InvalidArgument, "invalid application id")
	}
	return id, nil
}

// actorFrom builds the casework actor from the session user.
func actorFrom(r *http.Request) (casework.Actor, error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return casework.Actor{}, apperr.New(apperr.Unauthenticated, "sign-in required")
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return casework.Actor{}, apperr.New(apperr.Unauthenticated, "invalid session")
	}
	actor := casework.Actor{
		ID:      id,
		Name:    u.Name,
		Role:    u.Role,
		OrgName: u.OrganizationName,
	}
	if u.OrganizationID != "" {
		if orgID, err := primitive.ObjectIDFromHex(u.OrganizationID); err == nil {
			actor.OrgID = orgID
		}
	}
	return actor, nil
}

// forViewer strips data the current viewer must not see: applicants never
// see internal notes.
func forViewer(r *http.Request, app models.Application) models.Application {
	u, ok := auth.CurrentUser(r)
	if !ok || u.Role != models.RoleApplicant {
		return app
	}
	visible := app.Notes[:0:0]
	for _, n := range app.Notes {
		if !n.IsInternal {
			visible = append(visible, n)
		}
	}
	app.Notes = visible
	return app
}
