package module

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/google/uuid"

	"url2/internal/db"
	"url2/internal/logger"
	"url2/internal/models"
	"url2/internal/validation"
)

// AddInstance creates a resource in a course from a validated form.
func (s *Service) AddInstance(ctx context.Context, courseID uuid.UUID, f *Form, user *models.User) (*Target, error) {
	course, err := s.store.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}

	u := &models.URL2{CourseID: courseID}
	f.apply(u, s.now())
	cm := &models.CourseModule{}
	f.applyPlacement(cm)

	if err := s.store.CreateURL2(ctx, u, cm); err != nil {
		return nil, fmt.Errorf("create url2: %w", err)
	}
	if err := s.updateCompletionEvent(ctx, u, cm); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, models.EventCourseModuleCreated, courseID, cm, user); err != nil {
		return nil, err
	}

	s.log.Info("url2 created",
		logger.Stringer("id", u.ID),
		logger.Stringer("course", courseID),
		logger.String("display", u.Display.String()),
	)
	return &Target{URL2: u, CourseModule: cm, Course: course}, nil
}

// UpdateInstance saves a validated form over an existing resource.
func (s *Service) UpdateInstance(ctx context.Context, instanceID uuid.UUID, f *Form, user *models.User) (*Target, error) {
	t, err := s.LoadByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	f.apply(t.URL2, s.now())
	f.applyPlacement(t.CourseModule)

	if err := s.store.UpdateURL2(ctx, t.URL2); err != nil {
		return nil, fmt.Errorf("update url2: %w", err)
	}
	if err := s.store.UpdateCourseModule(ctx, t.CourseModule); err != nil {
		return nil, fmt.Errorf("update course module: %w", err)
	}
	if err := s.updateCompletionEvent(ctx, t.URL2, t.CourseModule); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, models.EventCourseModuleUpdated, t.Course.ID, t.CourseModule, user); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteInstance removes a resource, its course module and its calendar
// event. It reports false when the resource does not exist.
func (s *Service) DeleteInstance(ctx context.Context, instanceID uuid.UUID, user *models.User) (bool, error) {
	t, err := s.LoadByInstance(ctx, instanceID)
	if errors.Is(err, db.ErrURL2NotFound) || errors.Is(err, db.ErrCourseModuleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.store.DeleteCalendarEvent(ctx, t.CourseModule.ID, models.EventTypeExpectCompletion); err != nil {
		return false, fmt.Errorf("delete calendar event: %w", err)
	}
	if err := s.store.DeleteURL2(ctx, instanceID); err != nil {
		if errors.Is(err, db.ErrURL2NotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete url2: %w", err)
	}
	if err := s.emit(ctx, models.EventCourseModuleDeleted, t.Course.ID, t.CourseModule, user); err != nil {
		return true, err
	}

	s.log.Info("url2 deleted", logger.Stringer("id", instanceID))
	return true, nil
}

// updateCompletionEvent keeps the expected-completion calendar entry in
// step with the course module setting.
func (s *Service) updateCompletionEvent(ctx context.Context, u *models.URL2, cm *models.CourseModule) error {
	if cm.CompletionExpected == nil {
		if err := s.store.DeleteCalendarEvent(ctx, cm.ID, models.EventTypeExpectCompletion); err != nil {
			return fmt.Errorf("delete calendar event: %w", err)
		}
		return nil
	}

	ev := &models.CalendarEvent{
		CourseID:       u.CourseID,
		CourseModuleID: cm.ID,
		InstanceID:     u.ID,
		ModuleName:     models.ModuleName,
		EventType:      models.EventTypeExpectCompletion,
		Name:           u.Name,
		TimeStart:      *cm.CompletionExpected,
	}
	if err := s.store.SaveCalendarEvent(ctx, ev); err != nil {
		return fmt.Errorf("save calendar event: %w", err)
	}
	return nil
}

// DndUpload creates a resource from a link dropped on the course page,
// using the site defaults for display.
func (s *Service) DndUpload(ctx context.Context, courseID uuid.UUID, section int, displayName, content string, user *models.User) (*Target, error) {
	f := &Form{
		Name:        displayName,
		Intro:       "<p>" + html.EscapeString(displayName) + "</p>",
		IntroFormat: models.FormatHTML,
		ExternalURL: content,
		Display:     s.settings.Display,
		PopupWidth:  s.settings.PopupWidth,
		PopupHeight: s.settings.PopupHeight,
		PrintIntro:  s.settings.PrintIntro,
		Section:     section,
	}

	errs := FormErrors{}
	if displayName == "" {
		errs["name"] = "Required"
	}
	if ok, msg := validation.ValidateSubmittedURL(content); !ok {
		errs["externalurl2"] = msg
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return s.AddInstance(ctx, courseID, f, user)
}

// Restore creates a resource in a course from a record read out of a backup.
// The restored module is visible and untracked.
func (s *Service) Restore(ctx context.Context, courseID uuid.UUID, u *models.URL2, section int, user *models.User) (*Target, error) {
	course, err := s.store.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}

	u.ID = uuid.Nil
	u.CourseID = courseID
	if u.TimeModified.IsZero() {
		u.TimeModified = s.now()
	}
	cm := &models.CourseModule{Section: section, Visible: true}

	if err := s.store.CreateURL2(ctx, u, cm); err != nil {
		return nil, fmt.Errorf("restore url2: %w", err)
	}
	if err := s.emit(ctx, models.EventCourseModuleCreated, courseID, cm, user); err != nil {
		return nil, err
	}

	s.log.Info("url2 restored",
		logger.Stringer("id", u.ID),
		logger.Stringer("course", courseID),
	)
	return &Target{URL2: u, CourseModule: cm, Course: course}, nil
}
