package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"url2/internal/display"
	"url2/internal/params"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string
	BaseURL    string // site root; links under it are treated as local pages

	// Database
	DatabaseURL string

	// Redis backs the session store when set; sessions stay in memory otherwise.
	RedisURL string

	// TLS/mTLS
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string // CA for verifying client certs (mTLS)

	// Client cert via header (for ingress-terminated TLS)
	ClientCertHeader string // Header name containing client cert CN, e.g. "X-Client-CN"

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// Session
	SessionSecret string // Used for signing cookies (min 32 chars)

	// CORS
	CORSOrigins string // Comma-separated allowed origins

	// Logging
	LogLevel  string // debug, info, warn, error
	PrettyLog bool

	// Link health checker
	HealthCheckEnabled  bool
	HealthCheckInterval time.Duration
	HealthCheckMaxAge   time.Duration

	// Site
	SiteTitle string // env: SITE_TITLE, overridden by the site file
	SiteLang  string // env: SITE_LANG
	SiteZone  string // env: SITE_TIMEZONE, IANA name

	Module ModuleSettings
}

// ModuleSettings are the site-wide settings of the URL resource module.
type ModuleSettings struct {
	FrameSize      int    // height of the navigation frame in pixels
	SecretPhrase   string // enables the encryptedcode variable
	RolesInParams  bool   // offer course role names as variables
	DisplayOptions []display.Mode

	// Defaults for new instances and dropped links.
	Display     display.Mode
	PrintIntro  bool
	PopupWidth  int
	PopupHeight int
}

// DefaultDisplayOptions are the display modes offered when
// URL2_DISPLAY_OPTIONS is not set.
var DefaultDisplayOptions = []display.Mode{display.Automatic, display.Embed, display.Open, display.Popup}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present; variables
// already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:              getEnv("ENV", "development"),
		ServerAddr:       getEnv("SERVER_ADDR", ":3000"),
		BaseURL:          strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),
		DatabaseURL:      getEnv("DATABASE_URL", "postgres://localhost:5432/url2?sslmode=disable"),
		RedisURL:         getEnv("REDIS_URL", ""),
		TLSEnabled:       getEnv("TLS_ENABLED", "") != "",
		TLSCertFile:      getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:       getEnv("TLS_KEY_FILE", ""),
		TLSCAFile:        getEnv("TLS_CA_FILE", ""),
		ClientCertHeader: getEnv("CLIENT_CERT_HEADER", ""),
		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", "http://localhost:3000/auth/callback"),
		SessionSecret:    getEnv("SESSION_SECRET", "change-me-in-production-min-32-chars"),
		CORSOrigins:      getEnv("CORS_ORIGINS", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		PrettyLog: getEnvBool("PRETTY_LOG", false),

		HealthCheckEnabled:  getEnvBool("HEALTH_CHECK_ENABLED", true),
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", time.Hour),
		HealthCheckMaxAge:   getEnvDuration("HEALTH_CHECK_MAX_AGE", 24*time.Hour),

		SiteTitle: getEnv("SITE_TITLE", "Learning Site"),
		SiteLang:  getEnv("SITE_LANG", "en"),
		SiteZone:  getEnv("SITE_TIMEZONE", ""),

		Module: ModuleSettings{
			FrameSize:      getEnvInt("URL2_FRAME_SIZE", 130),
			SecretPhrase:   getEnv("URL2_SECRET_PHRASE", ""),
			RolesInParams:  getEnvBool("URL2_ROLES_IN_PARAMS", false),
			DisplayOptions: getEnvModes("URL2_DISPLAY_OPTIONS", DefaultDisplayOptions),
			Display:        getEnvMode("URL2_DISPLAY", display.Automatic),
			PrintIntro:     getEnvBool("URL2_PRINT_INTRO", true),
			PopupWidth:     getEnvInt("URL2_POPUP_WIDTH", display.DefaultPopupWidth),
			PopupHeight:    getEnvInt("URL2_POPUP_HEIGHT", display.DefaultPopupHeight),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnvMode(key string, fallback display.Mode) display.Mode {
	m, err := display.ParseMode(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return m
}

// getEnvModes parses a comma-separated list of display modes, skipping
// unknown entries. An empty result yields fallback.
func getEnvModes(key string, fallback []display.Mode) []display.Mode {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var modes []display.Mode
	for _, part := range strings.Split(raw, ",") {
		if m, err := display.ParseMode(part); err == nil {
			modes = append(modes, m)
		}
	}
	if len(modes) == 0 {
		return fallback
	}
	return modes
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsMTLSEnabled returns true if mTLS is configured with a CA file.
func (c *Config) IsMTLSEnabled() bool {
	return c.TLSEnabled && c.TLSCAFile != ""
}

// Location returns the site timezone, falling back to the server's.
func (c *Config) Location() *time.Location {
	if c.SiteZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.SiteZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Params returns the settings the parameter expander needs.
func (c *Config) Params() params.Config {
	return params.Config{
		SiteRoot:      c.BaseURL,
		SecretPhrase:  c.Module.SecretPhrase,
		RolesInParams: c.Module.RolesInParams,
	}
}

// Allows reports whether m is one of the display modes offered to authors.
func (s ModuleSettings) Allows(m display.Mode) bool {
	for _, o := range s.DisplayOptions {
		if o == m {
			return true
		}
	}
	return false
}
