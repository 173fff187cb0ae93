package module

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"url2/internal/db"
	"url2/internal/models"
)

// CanView reports whether user may view resources of a course: site admins
// and anyone enrolled.
func (s *Service) CanView(ctx context.Context, user *models.User, courseID uuid.UUID) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsAdmin() {
		return true, nil
	}
	_, err := s.store.GetEnrolment(ctx, user.ID, courseID)
	if errors.Is(err, db.ErrEnrolmentNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CanManage reports whether user may add, edit and delete resources of a
// course: site admins, managers and editing teachers.
func (s *Service) CanManage(ctx context.Context, user *models.User, courseID uuid.UUID) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsAdmin() {
		return true, nil
	}
	e, err := s.store.GetEnrolment(ctx, user.ID, courseID)
	if errors.Is(err, db.ErrEnrolmentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.CanEdit(), nil
}

// UserVisible reports whether a course module is visible to user. Hidden
// modules are shown to managers only.
func (s *Service) UserVisible(ctx context.Context, user *models.User, cm *models.CourseModule) (bool, error) {
	ok, err := s.CanView(ctx, user, cm.CourseID)
	if err != nil || !ok {
		return false, err
	}
	if cm.Visible {
		return true, nil
	}
	return s.CanManage(ctx, user, cm.CourseID)
}
