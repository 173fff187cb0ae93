package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Site role constants
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Course role shortnames with editing rights.
const (
	CourseRoleManager        = "manager"
	CourseRoleEditingTeacher = "editingteacher"
	CourseRoleTeacher        = "teacher"
	CourseRoleStudent        = "student"
)

// User represents a user authenticated via OIDC.
type User struct {
	ID          uuid.UUID `json:"id"`
	Sub         string    `json:"sub"` // OIDC subject identifier
	Username    string    `json:"username"`
	IDNumber    string    `json:"idnumber"`
	FirstName   string    `json:"firstname"`
	LastName    string    `json:"lastname"`
	Email       string    `json:"email"`
	ICQ         string    `json:"icq"`
	Phone1      string    `json:"phone1"`
	Phone2      string    `json:"phone2"`
	Institution string    `json:"institution"`
	Department  string    `json:"department"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	Timezone    string    `json:"timezone"` // IANA name, empty means server time
	URL         string    `json:"url"`
	Lang        string    `json:"lang"`
	Role        string    `json:"role"` // user, admin
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsAdmin returns true if the user is a site admin.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Location resolves the user's timezone. Unknown or empty names fall back
// to fallback.
func (u *User) Location(fallback *time.Location) *time.Location {
	if u.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// Enrolment gives a user a role in a course.
type Enrolment struct {
	UserID   uuid.UUID `json:"userid"`
	CourseID uuid.UUID `json:"courseid"`
	Role     string    `json:"role"`
}

// CanEdit reports whether the enrolment role may manage activities.
func (e *Enrolment) CanEdit() bool {
	return e.Role == CourseRoleManager || e.Role == CourseRoleEditingTeacher
}

// Role is a course role definition with its display name.
type Role struct {
	ShortName string `json:"shortname" yaml:"shortname"`
	Name      string `json:"name" yaml:"name"`
}
