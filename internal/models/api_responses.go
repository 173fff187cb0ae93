package models

import (
	"time"

	"github.com/google/uuid"

	"url2/internal/display"
)

// Warning describes a partial failure in a batch API call.
type Warning struct {
	Item        string `json:"item,omitempty"`
	ItemID      string `json:"itemid,omitempty"`
	WarningCode string `json:"warningcode"`
	Message     string `json:"message"`
}

// ViewResponse is returned after recording a view.
type ViewResponse struct {
	Status   bool      `json:"status"`
	Warnings []Warning `json:"warnings"`
}

// URL2Summary is one resource as listed for a course.
type URL2Summary struct {
	ID             uuid.UUID         `json:"id"`
	CourseModule   uuid.UUID         `json:"coursemodule"`
	Course         uuid.UUID         `json:"course"`
	Name           string            `json:"name"`
	Intro          string            `json:"intro"`
	IntroFormat    int               `json:"introformat"`
	ExternalURL    string            `json:"externalurl2"`
	Display        display.Mode      `json:"display"`
	DisplayOptions DisplayOptions    `json:"displayoptions"`
	Parameters     ParameterTemplate `json:"parameters"`
	TimeModified   time.Time         `json:"timemodified"`
	Section        int               `json:"section"`
	Visible        bool              `json:"visible"`
}

// URL2sByCoursesResponse lists resources for the requested courses.
type URL2sByCoursesResponse struct {
	URL2s    []URL2Summary `json:"url2s"`
	Warnings []Warning     `json:"warnings"`
}

// VariableGroup is one group of the variable catalog offered to authors.
type VariableGroup struct {
	Label     string           `json:"label"`
	Variables []VariableOption `json:"variables"`
}

// VariableOption is one selectable catalog variable.
type VariableOption struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// HealthCheckAPIResponse contains health check results for the API.
type HealthCheckAPIResponse struct {
	URL2ID    uuid.UUID  `json:"url2_id"`
	Status    string     `json:"status"`
	CheckedAt *time.Time `json:"checked_at"`
	Error     string     `json:"error,omitempty"`
}
