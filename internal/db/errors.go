package db

import "errors"

// Domain-level database error sentinels.
var (
	// Resource errors
	ErrURL2NotFound         = errors.New("url2 not found")
	ErrCourseModuleNotFound = errors.New("course module not found")

	// Course errors
	ErrCourseNotFound        = errors.New("course not found")
	ErrDuplicateShortName    = errors.New("course short name already exists")
	ErrEnrolmentNotFound     = errors.New("enrolment not found")
	ErrCalendarEventNotFound = errors.New("calendar event not found")

	// User errors
	ErrUserNotFound = errors.New("user not found")
)
