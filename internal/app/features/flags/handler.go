// internal/app/features/flags/handler.go
package flags

import (
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/casework"
	flagstore "github.com/openzakat/zakathub/internal/app/store/flags"
)

// Handler is the feature-level entry point for applicant flags.
type Handler struct {
	Svc   *casework.Service
	Flags *flagstore.Store
	Log   *zap.Logger
}

// NewHandler constructs a Flags handler bound to the casework service, a
// DB for list queries, and a logger.
func NewHandler(svc *casework.Service, db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:   svc,
		Flags: flagstore.New(db),
		Log:   logger,
	}
}
