// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openzakat/zakathub/internal/app/casework"
	applicationsfeature "github.com/openzakat/zakathub/internal/app/features/applications"
	flagsfeature "github.com/openzakat/zakathub/internal/app/features/flags"
	healthfeature "github.com/openzakat/zakathub/internal/app/features/health"
	notificationsfeature "github.com/openzakat/zakathub/internal/app/features/notifications"
	organizationsfeature "github.com/openzakat/zakathub/internal/app/features/organizations"
	reportsfeature "github.com/openzakat/zakathub/internal/app/features/reports"
	userstore "github.com/openzakat/zakathub/internal/app/store/users"
	"github.com/openzakat/zakathub/internal/app/system/auth"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. ZakatHub applies session middleware and
// mounts the JSON API routers for every application area: applications,
// flags, organizations, notifications, and reports.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Create the session manager using app config.
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Set up the UserFetcher so LoadSessionUser fetches fresh user data on each request.
	// This ensures role changes, flag state, and profile updates take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	// One casework service is shared by every feature that mutates cases.
	// It owns the transaction plumbing, history recording, and notifications.
	svc := casework.New(deps.MongoClient, deps.MongoDatabase, logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Case lifecycle: drafts, submission, claiming, review, resolution,
	// disbursements, notes, and history.
	applicationsHandler := applicationsfeature.NewHandler(svc, deps.MongoDatabase, logger)
	r.Mount("/applications", applicationsfeature.Routes(applicationsHandler, sessionMgr))

	// Applicant flags (staff only).
	flagsHandler := flagsfeature.NewHandler(svc, deps.MongoDatabase, logger)
	r.Mount("/flags", flagsfeature.Routes(flagsHandler, sessionMgr))

	// Organization directory and management.
	organizationsHandler := organizationsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/organizations", organizationsfeature.Routes(organizationsHandler, sessionMgr))

	// Per-user notification feed.
	notificationsHandler := notificationsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	// Cross-organization reporting (superadmin only).
	reportsHandler := reportsfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/reports", reportsfeature.Routes(reportsHandler, sessionMgr))

	return r, nil
}
