// internal/app/features/applications/handler.go
package applications

import (
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/casework"
	applicationstore "github.com/openzakat/zakathub/internal/app/store/applications"
)

// Handler is the feature-level entry point for Applications.
type Handler struct {
	Svc  *casework.Service
	Apps *applicationstore.Store
	Log  *zap.Logger
}

// NewHandler constructs an Applications handler bound to the casework
// service, a DB for list queries, and a logger.
func NewHandler(svc *casework.Service, db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:  svc,
		Apps: applicationstore.New(db),
		Log:  logger,
	}
}
