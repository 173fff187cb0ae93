// Package module implements the lifecycle and host hooks of the url2
// resource: creating and editing instances, recording views and completion,
// and the course, calendar and export integrations.
package module

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"url2/internal/config"
	"url2/internal/logger"
	"url2/internal/metrics"
	"url2/internal/models"
	"url2/internal/params"
)

// Store is the persistence the module needs. *db.DB implements it.
type Store interface {
	CreateURL2(ctx context.Context, u *models.URL2, cm *models.CourseModule) error
	UpdateURL2(ctx context.Context, u *models.URL2) error
	UpdateCourseModule(ctx context.Context, cm *models.CourseModule) error
	DeleteURL2(ctx context.Context, id uuid.UUID) error
	GetURL2ByID(ctx context.Context, id uuid.UUID) (*models.URL2, error)
	ListURL2sByCourse(ctx context.Context, courseID uuid.UUID) ([]models.URL2, error)

	GetCourseModuleByID(ctx context.Context, id uuid.UUID) (*models.CourseModule, error)
	GetCourseModuleByInstance(ctx context.Context, instanceID uuid.UUID) (*models.CourseModule, error)
	GetCourseByID(ctx context.Context, id uuid.UUID) (*models.Course, error)

	GetEnrolment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrolment, error)
	ListEnrolledCourseIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	GetCompletion(ctx context.Context, cmID, userID uuid.UUID) (*models.CompletionState, error)
	SaveCompletion(ctx context.Context, state *models.CompletionState) error

	SaveCalendarEvent(ctx context.Context, ev *models.CalendarEvent) error
	DeleteCalendarEvent(ctx context.Context, cmID uuid.UUID, eventType string) error
	GetCalendarEvent(ctx context.Context, id uuid.UUID) (*models.CalendarEvent, error)

	RecordEvent(ctx context.Context, ev *models.LogEvent) error
}

// Service runs the module operations against a Store.
type Service struct {
	store    Store
	settings config.ModuleSettings
	params   params.Config
	siteName string
	lang     string
	zone     *time.Location
	roles    []models.Role
	log      logger.Logger
	now      func() time.Time
}

// New creates a Service. roles are the course role definitions offered as
// parameter variables.
func New(store Store, cfg *config.Config, roles []models.Role, log logger.Logger) *Service {
	return &Service{
		store:    store,
		settings: cfg.Module,
		params:   cfg.Params(),
		siteName: cfg.SiteTitle,
		lang:     cfg.SiteLang,
		zone:     cfg.Location(),
		roles:    roles,
		log:      log,
		now:      time.Now,
	}
}

// Settings returns the module settings the service was built with.
func (s *Service) Settings() config.ModuleSettings {
	return s.settings
}

// SiteRoot returns the base URL of the site.
func (s *Service) SiteRoot() string {
	return s.params.SiteRoot
}

// Target is a resource together with its placement.
type Target struct {
	URL2         *models.URL2
	CourseModule *models.CourseModule
	Course       *models.Course
}

// Load fetches a resource by its course module id.
func (s *Service) Load(ctx context.Context, cmID uuid.UUID) (*Target, error) {
	cm, err := s.store.GetCourseModuleByID(ctx, cmID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, cm, nil)
}

// LoadByInstance fetches a resource by its instance id.
func (s *Service) LoadByInstance(ctx context.Context, instanceID uuid.UUID) (*Target, error) {
	u, err := s.store.GetURL2ByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	cm, err := s.store.GetCourseModuleByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, cm, u)
}

func (s *Service) complete(ctx context.Context, cm *models.CourseModule, u *models.URL2) (*Target, error) {
	var err error
	if u == nil {
		if u, err = s.store.GetURL2ByID(ctx, cm.InstanceID); err != nil {
			return nil, err
		}
	}
	course, err := s.store.GetCourseByID(ctx, cm.CourseID)
	if err != nil {
		return nil, err
	}
	return &Target{URL2: u, CourseModule: cm, Course: course}, nil
}

// emit records an activity log entry and counts it.
func (s *Service) emit(ctx context.Context, name string, courseID uuid.UUID, cm *models.CourseModule, user *models.User) error {
	ev := &models.LogEvent{
		Name:      name,
		Component: models.ModuleName,
		CourseID:  courseID,
	}
	if cm != nil {
		ev.CourseModuleID = &cm.ID
		ev.ObjectID = &cm.InstanceID
	}
	if user != nil {
		ev.UserID = &user.ID
	}

	if err := s.store.RecordEvent(ctx, ev); err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}
	metrics.RecordEvent(name)
	s.log.Debug("event recorded",
		logger.String("event", name),
		logger.Stringer("course", courseID),
	)
	return nil
}

// Course fetches a course.
func (s *Service) Course(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return s.store.GetCourseByID(ctx, id)
}

// CalendarEvent fetches a calendar event.
func (s *Service) CalendarEvent(ctx context.Context, id uuid.UUID) (*models.CalendarEvent, error) {
	return s.store.GetCalendarEvent(ctx, id)
}

// VariableOptions is the variable catalog offered on the edit form.
func (s *Service) VariableOptions() []models.VariableGroup {
	return params.Options(s.params, s.roles)
}

// EnrolledCourses lists the courses user is enrolled in, by short name.
func (s *Service) EnrolledCourses(ctx context.Context, user *models.User) ([]models.Course, error) {
	if user == nil {
		return nil, nil
	}
	ids, err := s.store.ListEnrolledCourseIDs(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}

	courses := make([]models.Course, 0, len(ids))
	for _, id := range ids {
		c, err := s.store.GetCourseByID(ctx, id)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	return courses, nil
}
