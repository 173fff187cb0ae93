package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"url2/internal/models"
)

// YAMLConfig represents the structure of the site file.
// Role definitions and claim mappings are easier to manage in YAML than env vars.
type YAMLConfig struct {
	Site           SiteConfig           `yaml:"site"`
	Roles          []models.Role        `yaml:"roles"`
	AutoAssignment AutoAssignmentConfig `yaml:"auto_assignment"`
}

// SiteConfig names the site. Empty fields keep the environment values.
type SiteConfig struct {
	Name     string `yaml:"name"`
	Lang     string `yaml:"lang"`
	Timezone string `yaml:"timezone"` // IANA name used for users without one
}

// AutoAssignmentConfig maps an OIDC claim to site and course roles.
type AutoAssignmentConfig struct {
	Claim       string              `yaml:"claim"`        // OIDC claim name (e.g., "groups")
	AdminValues []string            `yaml:"admin_values"` // Claim values granting the admin site role
	Courses     map[string][]string `yaml:"courses"`      // Claim value -> "course-shortname:role" entries
}

// DefaultRoles are used when the site file defines none.
var DefaultRoles = []models.Role{
	{ShortName: models.CourseRoleManager, Name: "Manager"},
	{ShortName: models.CourseRoleEditingTeacher, Name: "Teacher"},
	{ShortName: models.CourseRoleTeacher, Name: "Non-editing teacher"},
	{ShortName: models.CourseRoleStudent, Name: "Student"},
	{ShortName: "guest", Name: "Guest"},
}

// LoadYAMLConfig loads the site file.
// Path is determined by CONFIG_FILE env var, defaulting to "config.yaml".
// Returns nil without error if the file doesn't exist.
func LoadYAMLConfig() (*YAMLConfig, error) {
	return loadYAMLFile(getEnv("CONFIG_FILE", "config.yaml"))
}

func loadYAMLFile(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Site file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if len(cfg.Roles) == 0 {
		cfg.Roles = DefaultRoles
	}

	return &cfg, nil
}

// Apply copies site file values over the environment configuration.
func (c *YAMLConfig) Apply(cfg *Config) {
	if c == nil {
		return
	}
	if c.Site.Name != "" {
		cfg.SiteTitle = c.Site.Name
	}
	if c.Site.Lang != "" {
		cfg.SiteLang = c.Site.Lang
	}
	if c.Site.Timezone != "" {
		cfg.SiteZone = c.Site.Timezone
	}
}

// GetRoles returns the course role definitions.
func (c *YAMLConfig) GetRoles() []models.Role {
	if c == nil || len(c.Roles) == 0 {
		return DefaultRoles
	}
	return c.Roles
}

// IsAdminClaimValue reports whether an OIDC claim value grants the admin role.
func (c *YAMLConfig) IsAdminClaimValue(value string) bool {
	if c == nil {
		return false
	}
	for _, v := range c.AutoAssignment.AdminValues {
		if v == value {
			return true
		}
	}
	return false
}

// GetCourseRolesForClaimValue returns "course-shortname:role" entries for an
// OIDC claim value.
func (c *YAMLConfig) GetCourseRolesForClaimValue(value string) []string {
	if c == nil || c.AutoAssignment.Courses == nil {
		return nil
	}
	return c.AutoAssignment.Courses[value]
}
