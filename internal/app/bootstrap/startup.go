// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	userstore "github.com/openzakat/zakathub/internal/app/store/users"
	"github.com/openzakat/zakathub/internal/app/system/timeouts"
	"github.com/openzakat/zakathub/internal/domain/models"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts configured from environment", zap.Int("overrides", n))
	}

	if appCfg.SuperAdminEmail != "" {
		if err := ensureSuperAdmin(ctx, deps, appCfg, logger); err != nil {
			return fmt.Errorf("superadmin bootstrap: %w", err)
		}
	}
	return nil
}

// ensureSuperAdmin creates or promotes the configured superadmin account
// so a fresh deployment is never locked out of the portal.
func ensureSuperAdmin(ctx context.Context, deps DBDeps, appCfg AppConfig, logger *zap.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	users := userstore.New(deps.MongoDatabase)
	user, err := users.GetByEmail(startCtx, appCfg.SuperAdminEmail)
	if errors.Is(err, mongo.ErrNoDocuments) {
		created, err := users.Create(startCtx, models.User{
			FullName: appCfg.SuperAdminName,
			Email:    appCfg.SuperAdminEmail,
			Role:     models.RoleSuperAdmin,
		})
		if err != nil {
			return err
		}
		logger.Info("superadmin created",
			zap.String("email", created.Email),
			zap.String("user_id", created.ID.Hex()))
		return nil
	}
	if err != nil {
		return err
	}

	if user.Role != models.RoleSuperAdmin {
		if err := users.SetRole(startCtx, user.ID, models.RoleSuperAdmin); err != nil {
			return err
		}
		logger.Info("superadmin promoted",
			zap.String("email", user.Email),
			zap.String("user_id", user.ID.Hex()))
	}
	return nil
}
