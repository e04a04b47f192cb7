// internal/app/features/organizations/list.go
package organizations

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openzakat/zakathub/internal/app/features/shared/respond"
	"github.com/openzakat/zakathub/internal/app/system/apperr"
	"github.com/openzakat/zakathub/internal/app/system/normalize"
	"github.com/openzakat/zakathub/internal/app/system/paging"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// listResponse is a keyset-paged directory listing.
type listResponse struct {
	Organizations []models.Organization `json:"organizations"`
	HasPrev       bool                  `json:"has_prev"`
	HasNext       bool                  `json:"has_next"`
	PrevCursor    string                `json:"prev_cursor,omitempty"`
	NextCursor    string                `json:"next_cursor,omitempty"`
}

// List handles GET /organizations: the network directory, ordered by
// folded name, with an optional case/diacritic-insensitive search prefix.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "organizations.list")
	defer cancel()

	filter := bson.M{}
	if status := normalize.Status(query.Get(r, "status")); status != "" {
		filter["status"] = status
	}
	if q := query.Search(r, "q"); q != "" {
		if fq := text.Fold(q); fq != "" {
			hi := fq + "\uffff"
			filter["$or"] = []bson.M{
				{"name_ci": bson.M{"$gte": fq, "$lt": hi}},
				{"city_ci": bson.M{"$gte": fq, "$lt": hi}},
				{"state_ci": bson.M{"$gte": fq, "$lt": hi}},
			}
		}
	}

	before := query.Get(r, "before")
	after := query.Get(r, "after")
	cfg := paging.ConfigureKeyset(before, after)
	if win := cfg.KeysetWindow("name_ci"); win != nil {
		for k, v := range win {
			filter[k] = v
		}
	}
	find := options.Find()
	cfg.ApplyToFind(find, "name_ci")

	rows, err := h.Orgs.Find(ctx, filter, find)
	if err != nil {
		respond.Error(w, h.Log, apperr.Wrap(err, apperr.Internal, "could not list organizations"))
		return
	}

	page := paging.TrimPage(&rows, before, after)
	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}

	resp := listResponse{
		Organizations: rows,
		HasPrev:       page.HasPrev,
		HasNext:       page.HasNext,
	}
	resp.PrevCursor, resp.NextCursor = paging.BuildCursors(rows,
		func(o models.Organization) string { return o.NameCI },
		func(o models.Organization) primitive.ObjectID { return o.ID },
	)
	respond.OK(w, resp)
}
