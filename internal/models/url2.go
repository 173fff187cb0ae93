package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"url2/internal/display"
)

// Intro formats for the description text.
const (
	FormatMoodle   = 0
	FormatHTML     = 1
	FormatPlain    = 2
	FormatMarkdown = 4
)

// Health status constants
const (
	HealthUnknown   = "unknown"
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

// MaxParameters caps the number of parameter rows an author can submit.
const MaxParameters = 100

// URL2 is a course resource pointing at an external URL.
type URL2 struct {
	ID             uuid.UUID         `json:"id"`
	CourseID       uuid.UUID         `json:"course"`
	Name           string            `json:"name"`
	Intro          string            `json:"intro"`
	IntroFormat    int               `json:"introformat"`
	ExternalURL    string            `json:"externalurl2"`
	Display        display.Mode      `json:"display"`
	DisplayOptions DisplayOptions    `json:"displayoptions"`
	Parameters     ParameterTemplate `json:"parameters"`
	TimeModified   time.Time         `json:"timemodified"`
	CreatedAt      time.Time         `json:"created_at"`

	HealthStatus    string     `json:"health_status"`
	HealthCheckedAt *time.Time `json:"health_checked_at,omitempty"`
	HealthError     *string    `json:"health_error,omitempty"`
}

// IsHealthy returns true if the last check reached the target.
func (u *URL2) IsHealthy() bool {
	return u.HealthStatus == HealthHealthy
}

// IsUnhealthy returns true if the last check failed.
func (u *URL2) IsUnhealthy() bool {
	return u.HealthStatus == HealthUnhealthy
}

// NeedsHealthCheck returns true if the link was never checked or the last
// check is older than maxAge.
func (u *URL2) NeedsHealthCheck(maxAge time.Duration) bool {
	if u.HealthCheckedAt == nil {
		return true
	}
	return time.Since(*u.HealthCheckedAt) > maxAge
}

// HasUsableURL reports whether a stored URL can be displayed at all. Older
// records may hold an empty value or the bare "http://" prefix.
func (u *URL2) HasUsableURL() bool {
	ext := strings.TrimSpace(u.ExternalURL)
	return ext != "" && ext != "http://"
}

// DisplayOptions holds the per-mode presentation settings. Only the fields
// relevant to the chosen display mode are set.
type DisplayOptions struct {
	PopupWidth  int  `json:"popupwidth,omitempty"`
	PopupHeight int  `json:"popupheight,omitempty"`
	PrintIntro  bool `json:"printintro,omitempty"`
}

// Parameter maps an outbound query parameter name to a catalog variable.
type Parameter struct {
	Name     string `json:"name"`
	Variable string `json:"variable"`
}

// ParameterTemplate is the ordered list of parameters appended to a link.
// Outbound names are unique.
type ParameterTemplate []Parameter

// Set binds name to variable. An existing name keeps its position and takes
// the new variable.
func (t *ParameterTemplate) Set(name, variable string) {
	for i := range *t {
		if (*t)[i].Name == name {
			(*t)[i].Variable = variable
			return
		}
	}
	*t = append(*t, Parameter{Name: name, Variable: variable})
}

// Get returns the variable bound to name.
func (t ParameterTemplate) Get(name string) (string, bool) {
	for _, p := range t {
		if p.Name == name {
			return p.Variable, true
		}
	}
	return "", false
}
