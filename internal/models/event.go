package models

import (
	"time"

	"github.com/google/uuid"
)

// Event names recorded in the activity log.
const (
	EventCourseModuleViewed      = "course_module_viewed"
	EventInstanceListViewed      = "course_module_instance_list_viewed"
	EventCompletionUpdated       = "course_module_completion_updated"
	EventCourseModuleCreated     = "course_module_created"
	EventCourseModuleUpdated     = "course_module_updated"
	EventCourseModuleDeleted     = "course_module_deleted"
	EventCourseModuleHealthCheck = "course_module_health_checked"
)

// LogEvent is an entry in the activity log.
type LogEvent struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"eventname"`
	Component      string     `json:"component"`
	CourseID       uuid.UUID  `json:"courseid"`
	CourseModuleID *uuid.UUID `json:"contextinstanceid,omitempty"`
	ObjectID       *uuid.UUID `json:"objectid,omitempty"`
	UserID         *uuid.UUID `json:"userid,omitempty"`
	CreatedAt      time.Time  `json:"timecreated"`
}

// Content is one entry of an exported module's contents.
type Content struct {
	Type         string     `json:"type"`
	FileName     string     `json:"filename"`
	FilePath     *string    `json:"filepath"`
	FileSize     int64      `json:"filesize"`
	FileURL      string     `json:"fileurl"`
	TimeCreated  *time.Time `json:"timecreated"`
	TimeModified time.Time  `json:"timemodified"`
	SortOrder    *int       `json:"sortorder"`
	UserID       *uuid.UUID `json:"userid"`
	Author       *string    `json:"author"`
	License      *string    `json:"license"`
}

// CourseModuleInfo is the extra information shown for a module on the
// course page.
type CourseModuleInfo struct {
	Name    string `json:"name"`
	Icon    string `json:"icon,omitempty"`
	OnClick string `json:"onclick,omitempty"`
	Content string `json:"content,omitempty"`
}

// UpdateArea reports whether one area of a module changed.
type UpdateArea struct {
	Updated bool `json:"updated"`
}

// ModuleUpdates lists the areas that changed since a given time.
type ModuleUpdates struct {
	Configuration UpdateArea `json:"configuration"`
	ContentFiles  UpdateArea `json:"contentfiles"`
}
