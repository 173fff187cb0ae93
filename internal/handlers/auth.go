package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"url2/internal/config"
	"url2/internal/logger"
	"url2/internal/models"
)

// AuthStore is the persistence the login flow needs.
type AuthStore interface {
	UpsertUser(ctx context.Context, user *models.User) error
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) error
	GetCourseByShortName(ctx context.Context, shortName string) (*models.Course, error)
	EnrolUser(ctx context.Context, e *models.Enrolment) error
}

// AuthHandler handles OIDC authentication flows.
type AuthHandler struct {
	provider     *oidc.Provider
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
	store        AuthStore
	site         *config.YAMLConfig
	cfg          *config.Config
	log          logger.Logger
}

// NewAuthHandler creates a new auth handler with OIDC configuration.
func NewAuthHandler(ctx context.Context, cfg *config.Config, site *config.YAMLConfig, store AuthStore, log logger.Logger) (*AuthHandler, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, err
	}

	scopes := []string{oidc.ScopeOpenID, "profile", "email"}
	if site != nil && site.AutoAssignment.Claim == "groups" {
		scopes = append(scopes, "groups")
	}

	oauth2Config := oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})

	return &AuthHandler{
		provider:     provider,
		oauth2Config: oauth2Config,
		verifier:     verifier,
		store:        store,
		site:         site,
		cfg:          cfg,
		log:          log,
	}, nil
}

// Login initiates the OIDC login flow.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	state := generateState()

	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}
	sess.Set("oauth_state", state)

	url := h.oauth2Config.AuthCodeURL(state)
	return c.Redirect().To(url)
}

// Callback handles the OIDC callback after authentication.
func (h *AuthHandler) Callback(c fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}

	// Verify state
	savedState, _ := sess.Get("oauth_state").(string)
	if savedState == "" || savedState != c.Query("state") {
		return fiber.NewError(fiber.StatusBadRequest, "invalid state")
	}
	sess.Delete("oauth_state")

	// Exchange code for token
	oauth2Token, err := h.oauth2Config.Exchange(c.Context(), c.Query("code"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to exchange code")
	}

	// Extract and verify ID token
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "missing id_token")
	}

	idToken, err := h.verifier.Verify(c.Context(), rawIDToken)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id_token")
	}

	claims := make(map[string]any)
	if err := idToken.Claims(&claims); err != nil {
		return err
	}

	// Some providers only put minimal claims in the ID token
	userInfo, err := h.provider.UserInfo(c.Context(), oauth2.StaticTokenSource(oauth2Token))
	if err == nil {
		var userInfoClaims map[string]any
		if err := userInfo.Claims(&userInfoClaims); err == nil {
			for k, v := range userInfoClaims {
				claims[k] = v
			}
		}
	} else {
		h.log.Warn("failed to fetch userinfo", logger.Error(err))
	}

	if h.cfg.IsDev() {
		h.log.Debug("OIDC claims received", logger.Int("count", len(claims)))
	}

	user := userFromClaims(claims)
	if user.Sub == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing subject claim")
	}
	if err := h.store.UpsertUser(c.Context(), user); err != nil {
		return err
	}
	if err := syncClaims(c.Context(), h.store, h.site, user, claims, h.log); err != nil {
		return err
	}

	sess.Set("user_sub", user.Sub)

	// Redirect to original URL if stored, otherwise home
	redirectURL := "/"
	if saved, ok := sess.Get("redirect_after_login").(string); ok && strings.HasPrefix(saved, "/") {
		redirectURL = saved
	}
	sess.Delete("redirect_after_login")

	return c.Redirect().To(redirectURL)
}

// Logout clears the user session.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess != nil {
		sess.Destroy()
	}
	return c.Redirect().To("/")
}

// userFromClaims maps standard OIDC claims onto a user profile.
func userFromClaims(claims map[string]any) *models.User {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}

	user := &models.User{
		Sub:       str("sub"),
		Username:  str("preferred_username"),
		FirstName: str("given_name"),
		LastName:  str("family_name"),
		Email:     str("email"),
		Phone1:    str("phone_number"),
		Timezone:  str("zoneinfo"),
		URL:       str("website"),
	}
	if user.FirstName == "" && user.LastName == "" {
		first, last, _ := strings.Cut(str("name"), " ")
		user.FirstName, user.LastName = first, last
	}
	if locale := str("locale"); locale != "" {
		lang, _, _ := strings.Cut(locale, "-")
		user.Lang = strings.ToLower(lang)
	}
	return user
}

// syncClaims grants the site admin role and course enrolments mapped from
// the configured claim in the site file.
func syncClaims(ctx context.Context, store AuthStore, site *config.YAMLConfig, user *models.User, claims map[string]any, log logger.Logger) error {
	if site == nil || site.AutoAssignment.Claim == "" {
		return nil
	}

	for _, value := range claimValues(claims[site.AutoAssignment.Claim]) {
		if site.IsAdminClaimValue(value) && user.Role != models.RoleAdmin {
			if err := store.UpdateUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
				return err
			}
			user.Role = models.RoleAdmin
		}

		for _, entry := range site.GetCourseRolesForClaimValue(value) {
			shortName, role, ok := strings.Cut(entry, ":")
			if !ok || shortName == "" || role == "" {
				log.Warn("ignoring malformed course role mapping", logger.String("entry", entry))
				continue
			}
			course, err := store.GetCourseByShortName(ctx, shortName)
			if err != nil {
				log.Warn("course from claim mapping not found", logger.String("course", shortName))
				continue
			}
			e := &models.Enrolment{UserID: user.ID, CourseID: course.ID, Role: role}
			if err := store.EnrolUser(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// claimValues flattens a string or list claim.
func claimValues(v any) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
