package models

import (
	"time"

	"github.com/google/uuid"
)

// ModuleName is the component name used in events, backups and calendar
// entries.
const ModuleName = "url2"

// Course is the container a resource belongs to.
type Course struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullname"`
	ShortName string    `json:"shortname"`
	IDNumber  string    `json:"idnumber"`
	Summary   string    `json:"summary"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
}

// Completion tracking modes of a course module.
const (
	CompletionNone      = 0
	CompletionManual    = 1
	CompletionAutomatic = 2
)

// CourseModule places a resource instance inside a course.
type CourseModule struct {
	ID                 uuid.UUID  `json:"id"`
	CourseID           uuid.UUID  `json:"course"`
	InstanceID         uuid.UUID  `json:"instance"`
	IDNumber           string     `json:"idnumber"`
	Section            int        `json:"section"`
	Visible            bool       `json:"visible"`
	ShowDescription    bool       `json:"showdescription"`
	Completion         int        `json:"completion"`
	CompletionView     bool       `json:"completionview"`
	CompletionExpected *time.Time `json:"completionexpected,omitempty"`
	Added              time.Time  `json:"added"`
}

// TracksViews reports whether viewing the module completes it.
func (cm *CourseModule) TracksViews() bool {
	return cm.Completion == CompletionAutomatic && cm.CompletionView
}

// Completion states.
const (
	CompletionIncomplete = 0
	CompletionComplete   = 1
)

// CompletionState is one user's progress on one course module.
type CompletionState struct {
	CourseModuleID uuid.UUID `json:"coursemoduleid"`
	UserID         uuid.UUID `json:"userid"`
	State          int       `json:"completionstate"`
	Viewed         bool      `json:"viewed"`
	TimeModified   time.Time `json:"timemodified"`
}

// EventTypeExpectCompletion marks the calendar event created from a course
// module's expected completion date.
const EventTypeExpectCompletion = "expectcompletionon"

// CalendarEvent is a dated entry shown on the course calendar.
type CalendarEvent struct {
	ID             uuid.UUID `json:"id"`
	CourseID       uuid.UUID `json:"courseid"`
	CourseModuleID uuid.UUID `json:"coursemoduleid"`
	InstanceID     uuid.UUID `json:"instance"`
	ModuleName     string    `json:"modulename"`
	EventType      string    `json:"eventtype"`
	Name           string    `json:"name"`
	TimeStart      time.Time `json:"timestart"`
}

// EventAction is what a calendar block offers for an event.
type EventAction struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	ItemCount  int    `json:"itemcount"`
	Actionable bool   `json:"actionable"`
}
