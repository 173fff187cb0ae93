package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"url2/internal/display"
	"url2/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"BASE_URL", "URL2_FRAME_SIZE", "URL2_DISPLAY_OPTIONS", "URL2_DISPLAY",
		"URL2_POPUP_WIDTH", "URL2_POPUP_HEIGHT", "URL2_PRINT_INTRO", "URL2_SECRET_PHRASE",
		"URL2_ROLES_IN_PARAMS", "HEALTH_CHECK_INTERVAL"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, 130, cfg.Module.FrameSize)
	assert.Equal(t, DefaultDisplayOptions, cfg.Module.DisplayOptions)
	assert.Equal(t, display.Automatic, cfg.Module.Display)
	assert.True(t, cfg.Module.PrintIntro)
	assert.Equal(t, 620, cfg.Module.PopupWidth)
	assert.Equal(t, 450, cfg.Module.PopupHeight)
	assert.Empty(t, cfg.Module.SecretPhrase)
	assert.False(t, cfg.Module.RolesInParams)
	assert.Equal(t, time.Hour, cfg.HealthCheckInterval)
}

func TestLoad_ModuleSettings(t *testing.T) {
	t.Setenv("BASE_URL", "https://lms.example.org/")
	t.Setenv("URL2_FRAME_SIZE", "200")
	t.Setenv("URL2_SECRET_PHRASE", "s3cret")
	t.Setenv("URL2_ROLES_IN_PARAMS", "true")
	t.Setenv("URL2_DISPLAY_OPTIONS", "automatic, frame,6,bogus")
	t.Setenv("URL2_DISPLAY", "popup")
	t.Setenv("URL2_PRINT_INTRO", "0")
	t.Setenv("URL2_POPUP_WIDTH", "800")
	t.Setenv("URL2_POPUP_HEIGHT", "not-a-number")
	t.Setenv("HEALTH_CHECK_INTERVAL", "15m")

	cfg := Load()

	assert.Equal(t, "https://lms.example.org", cfg.BaseURL)
	assert.Equal(t, 200, cfg.Module.FrameSize)
	assert.Equal(t, []display.Mode{display.Automatic, display.Frame, display.Popup}, cfg.Module.DisplayOptions)
	assert.Equal(t, display.Popup, cfg.Module.Display)
	assert.False(t, cfg.Module.PrintIntro)
	assert.Equal(t, 800, cfg.Module.PopupWidth)
	assert.Equal(t, 450, cfg.Module.PopupHeight)
	assert.Equal(t, 15*time.Minute, cfg.HealthCheckInterval)

	p := cfg.Params()
	assert.Equal(t, "https://lms.example.org", p.SiteRoot)
	assert.Equal(t, "s3cret", p.SecretPhrase)
	assert.True(t, p.RolesInParams)
}

func TestModuleSettings_Allows(t *testing.T) {
	s := ModuleSettings{DisplayOptions: DefaultDisplayOptions}

	assert.True(t, s.Allows(display.Automatic))
	assert.True(t, s.Allows(display.Popup))
	assert.False(t, s.Allows(display.Frame))
	assert.False(t, s.Allows(display.Download))
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
site:
  name: Campus Online
  lang: cs
  timezone: Europe/Prague
roles:
  - shortname: student
    name: Learner
  - shortname: editingteacher
    name: Tutor
auto_assignment:
  claim: groups
  admin_values: [lms-admins]
  courses:
    net-staff:
      - "NET101:editingteacher"
`), 0o600))

	yc, err := loadYAMLFile(path)
	require.NoError(t, err)
	require.NotNil(t, yc)

	assert.Equal(t, []models.Role{
		{ShortName: "student", Name: "Learner"},
		{ShortName: "editingteacher", Name: "Tutor"},
	}, yc.GetRoles())
	assert.True(t, yc.IsAdminClaimValue("lms-admins"))
	assert.False(t, yc.IsAdminClaimValue("students"))
	assert.Equal(t, []string{"NET101:editingteacher"}, yc.GetCourseRolesForClaimValue("net-staff"))

	cfg := &Config{SiteTitle: "Default", SiteLang: "en"}
	yc.Apply(cfg)
	assert.Equal(t, "Campus Online", cfg.SiteTitle)
	assert.Equal(t, "cs", cfg.SiteLang)
	assert.Equal(t, "Europe/Prague", cfg.SiteZone)
}

func TestLoadYAMLFile_Missing(t *testing.T) {
	yc, err := loadYAMLFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, yc)

	// nil site file falls back to defaults
	assert.Equal(t, DefaultRoles, yc.GetRoles())
	assert.False(t, yc.IsAdminClaimValue("anything"))
	assert.Nil(t, yc.GetCourseRolesForClaimValue("anything"))

	cfg := &Config{SiteTitle: "Default"}
	yc.Apply(cfg)
	assert.Equal(t, "Default", cfg.SiteTitle)
}

func TestLoadYAMLFile_DefaultRoles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  name: Only a name\n"), 0o600))

	yc, err := loadYAMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRoles, yc.Roles)
}

func TestLoadYAMLFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles: [unterminated"), 0o600))

	_, err := loadYAMLFile(path)
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SERVER_ADDR=:8443\nURL2_FRAME_SIZE=90\n"), 0o600))
	t.Chdir(dir)

	// SERVER_ADDR comes from the file; the environment wins for the frame size
	t.Setenv("SERVER_ADDR", "")
	require.NoError(t, os.Unsetenv("SERVER_ADDR"))
	t.Setenv("URL2_FRAME_SIZE", "150")

	cfg := Load()

	assert.Equal(t, ":8443", cfg.ServerAddr)
	assert.Equal(t, 150, cfg.Module.FrameSize)
}
