package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"

	"url2/internal/config"
	"url2/internal/logger"
	"url2/internal/models"
)

// UserStore looks up authenticated users.
type UserStore interface {
	GetUserBySub(ctx context.Context, sub string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuthMiddleware handles user authentication via sessions, or via a client
// certificate CN forwarded by the ingress.
type AuthMiddleware struct {
	store UserStore
	cfg   *config.Config
	log   logger.Logger
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(store UserStore, cfg *config.Config, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{store: store, cfg: cfg, log: log}
}

// RequireAuth ensures the user is authenticated. Pages redirect to the login
// flow and come back afterwards; API calls get a 401.
func (m *AuthMiddleware) RequireAuth(c fiber.Ctx) error {
	if user := m.currentUser(c); user != nil {
		c.Locals("user", user)
		return c.Next()
	}

	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status": "error",
			"error":  "unauthorized",
		})
	}

	if sess := session.FromContext(c); sess != nil {
		sess.Set("redirect_after_login", c.OriginalURL())
	}
	return c.Redirect().To("/auth/login")
}

// OptionalAuth loads the user if authenticated, but doesn't require authentication.
func (m *AuthMiddleware) OptionalAuth(c fiber.Ctx) error {
	if user := m.currentUser(c); user != nil {
		c.Locals("user", user)
	}
	return c.Next()
}

func (m *AuthMiddleware) currentUser(c fiber.Ctx) *models.User {
	if m.cfg.ClientCertHeader != "" {
		if username := extractUsernameFromCN(c.Get(m.cfg.ClientCertHeader)); username != "" {
			user, err := m.store.GetUserByUsername(c.Context(), username)
			if err == nil {
				return user
			}
			m.log.Debug("client certificate user not found", logger.String("username", username))
		}
	}

	sess := session.FromContext(c)
	if sess == nil {
		return nil
	}
	sub, ok := sess.Get("user_sub").(string)
	if !ok || sub == "" {
		return nil
	}

	user, err := m.store.GetUserBySub(c.Context(), sub)
	if err != nil {
		sess.Delete("user_sub")
		return nil
	}
	return user
}

// extractUsernameFromCN returns the username from a certificate common name
// of the form "Full Name (username)", or "" when the CN has another shape.
func extractUsernameFromCN(cn string) string {
	cn = strings.TrimSpace(cn)
	if !strings.HasSuffix(cn, ")") {
		return ""
	}

	open := strings.LastIndex(cn, "(")
	if open < 0 {
		return ""
	}

	inner := cn[open+1 : len(cn)-1]
	if strings.ContainsAny(inner, "()") {
		return ""
	}
	return strings.TrimSpace(inner)
}
