package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"url2/internal/config"
	"url2/internal/db"
	"url2/internal/handlers"
	"url2/internal/handlers/api"
	"url2/internal/logger"
	"url2/internal/middleware"
	"url2/internal/module"
)

// RegisterRoutes registers all application routes. checker runs the
// on-demand link checks; nil disables them.
func (s *Server) RegisterRoutes(ctx context.Context, database *db.DB, site *config.YAMLConfig, checker api.Checker) error {
	svc := module.New(database, s.Cfg, site.GetRoles(), s.Log.With(logger.String("component", "module")))

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(database, s.Cfg, s.Log)

	// Initialize handlers
	viewHandler := handlers.NewViewHandler(svc, s.Cfg, s.Log)
	probeHandler := handlers.NewProbeHandler(database)
	if s.Sessions != nil {
		probeHandler.Check("sessions", redisPinger{store: s.Sessions})
	}
	url2Handler := api.NewURL2Handler(svc, checker, s.Log)
	userHandler := api.NewUserHandler(database)

	// Probes and metrics
	s.App.Get("/healthz", probeHandler.Liveness)
	s.App.Get("/readyz", probeHandler.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Auth routes - OIDC is required unless an ingress forwards client certificates
	switch {
	case s.Cfg.OIDCIssuer != "":
		authHandler, err := handlers.NewAuthHandler(ctx, s.Cfg, site, database, s.Log)
		if err != nil {
			return err
		}
		s.App.Get("/auth/login", authHandler.Login)
		s.App.Get("/auth/callback", authHandler.Callback)
		s.App.Get("/auth/logout", authHandler.Logout)
	case s.Cfg.ClientCertHeader != "":
		s.Log.Warn("OIDC disabled, users are identified by client certificate only",
			logger.String("header", s.Cfg.ClientCertHeader))
	default:
		return errors.New("OIDC_ISSUER is required, all users must be authenticated")
	}

	// Pages
	s.App.Get("/", authMiddleware.RequireAuth, viewHandler.Home)
	s.App.Get("/mod/url2/view.php", authMiddleware.RequireAuth, viewHandler.View)
	s.App.Get("/mod/url2/index.php", authMiddleware.RequireAuth, viewHandler.Index)

	// JSON API
	v1 := s.App.Group("/api/v1", authMiddleware.RequireAuth)

	v1.Get("/url2", url2Handler.List)
	v1.Get("/url2/metadata", url2Handler.Metadata)
	v1.Get("/url2/variables", url2Handler.Variables)
	v1.Post("/url2/view", url2Handler.View)
	v1.Put("/url2/:id", url2Handler.Update)
	v1.Delete("/url2/:id", url2Handler.Delete)
	v1.Get("/url2/:id/contents", url2Handler.Contents)
	v1.Get("/url2/:id/backup", url2Handler.Backup)
	v1.Post("/url2/:id/health", url2Handler.CheckHealth)

	v1.Post("/courses/:id/url2", url2Handler.Create)
	v1.Post("/courses/:id/url2/restore", url2Handler.Restore)
	v1.Post("/courses/:id/url2/dnd", url2Handler.Drop)

	v1.Get("/course-modules/:id/info", url2Handler.Info)
	v1.Get("/course-modules/:id/updates", url2Handler.Updates)
	v1.Get("/calendar/events/:id/action", url2Handler.EventAction)

	// Site administration (admin only)
	v1.Post("/courses", userHandler.CreateCourse)
	v1.Post("/courses/:id/enrolments", userHandler.Enrol)
	v1.Get("/courses/:id/logs", userHandler.CourseLog)
	v1.Put("/users/:id/role", userHandler.UpdateRole)
	v1.Delete("/users/:id", userHandler.Delete)

	return nil
}
