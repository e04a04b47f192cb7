package userstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openzakat/zakathub/internal/app/system/auth"
	"github.com/openzakat/zakathub/internal/app/system/normalize"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// Fetcher implements auth.UserFetcher to load fresh user data on each
// request, so role changes and disabled accounts take effect immediately.
type Fetcher struct {
	users *mongo.Collection
	orgs  *mongo.Collection
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{
		users: db.Collection("users"),
		orgs:  db.Collection("organizations"),
	}
}

// FetchSessionUser retrieves a user by ID. It returns (nil, nil) when the
// user is missing, disabled, or the ID is malformed, so a stale session
// simply behaves as signed out.
func (f *Fetcher) FetchSessionUser(ctx context.Context, userID string) (*auth.SessionUser, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var u models.User
	proj := options.FindOne().SetProjection(bson.M{
		"_id":             1,
		"full_name":       1,
		"email":           1,
		"role":            1,
		"status":          1,
		"organization_id": 1,
	})
	if err := f.users.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	if normalize.Status(u.Status) == "disabled" {
		return nil, nil
	}

	role := normalize.Role(u.Role)
	su := &auth.SessionUser{
		ID:           u.ID.Hex(),
		Name:         u.FullName,
		LoginID:      u.Email,
		Role:         role,
		IsSuperAdmin: role == models.RoleSuperAdmin,
	}

	// Staff carry their organization; fetch the display name best-effort.
	if u.OrganizationID != nil {
		su.OrganizationID = u.OrganizationID.Hex()

		var org models.Organization
		orgProj := options.FindOne().SetProjection(bson.M{"name": 1})
		if err := f.orgs.FindOne(ctx, bson.M{"_id": u.OrganizationID}, orgProj).Decode(&org); err == nil {
			su.OrganizationName = org.Name
		}
	}

	return su, nil
}
