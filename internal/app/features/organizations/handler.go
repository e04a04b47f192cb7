// internal/app/features/organizations/handler.go
package organizations

import (
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	organizationstore "github.com/openzakat/zakathub/internal/app/store/organizations"
)

// Handler is the feature-level entry point for Organizations.
type Handler struct {
	Orgs *organizationstore.Store
	Log  *zap.Logger
}

// NewHandler constructs an Organizations handler bound to a DB and logger.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Orgs: organizationstore.New(db),
		Log:  logger,
	}
}
