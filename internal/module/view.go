package module

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"url2/internal/db"
	"url2/internal/display"
	"url2/internal/models"
	"url2/internal/params"
	"url2/internal/validation"
)

// iconSize is the size of file-type icons on the course page.
const iconSize = 24

// VariableContext builds the parameter variable context for one request.
// user is nil for anonymous requests.
func (s *Service) VariableContext(t *Target, user *models.User, remoteAddr string) params.VariableContext {
	lang := s.lang
	if user != nil && user.Lang != "" {
		lang = user.Lang
	}
	return params.VariableContext{
		Course:       *t.Course,
		Instance:     *t.URL2,
		CourseModule: *t.CourseModule,
		SiteName:     s.siteName,
		Lang:         lang,
		Now:          s.now(),
		User:         user,
		ServerZone:   s.zone,
		RemoteAddr:   remoteAddr,
		Roles:        s.roles,
	}
}

// FullURL returns the resource URL with its parameters appended, entity
// encoded for markup.
func (s *Service) FullURL(vc params.VariableContext) string {
	return params.FullURL(vc.Instance.ExternalURL, vc.Instance.Parameters, params.Values(vc, s.params))
}

// FinalDisplay resolves the display mode of a resource.
func (s *Service) FinalDisplay(u *models.URL2) display.Mode {
	return display.Resolve(u.Display, u.ExternalURL, s.params.SiteRoot)
}

// ViewURL is the link to the view page of a course module.
func (s *Service) ViewURL(cmID uuid.UUID) string {
	return s.params.SiteRoot + "/mod/url2/view.php?id=" + cmID.String()
}

// View records that user viewed a resource and completes it when the course
// module tracks views.
func (s *Service) View(ctx context.Context, t *Target, user *models.User) error {
	if err := s.emit(ctx, models.EventCourseModuleViewed, t.Course.ID, t.CourseModule, user); err != nil {
		return err
	}

	if user == nil || !t.CourseModule.TracksViews() {
		return nil
	}

	state, err := s.store.GetCompletion(ctx, t.CourseModule.ID, user.ID)
	if err != nil {
		return fmt.Errorf("get completion: %w", err)
	}
	if state.Viewed && state.State == models.CompletionComplete {
		return nil
	}

	state.Viewed = true
	state.State = models.CompletionComplete
	if err := s.store.SaveCompletion(ctx, state); err != nil {
		return fmt.Errorf("save completion: %w", err)
	}
	return s.emit(ctx, models.EventCompletionUpdated, t.Course.ID, t.CourseModule, user)
}

// ListViewed records that user viewed the list of resources of a course.
func (s *Service) ListViewed(ctx context.Context, course *models.Course, user *models.User) error {
	return s.emit(ctx, models.EventInstanceListViewed, course.ID, nil, user)
}

// CourseModuleInfo is what the course page shows for a resource. Popup and
// new window modes open through the view page in redirect mode.
func (s *Service) CourseModuleInfo(t *Target) *models.CourseModuleInfo {
	info := &models.CourseModuleInfo{
		Name: t.URL2.Name,
		Icon: display.GuessIcon(t.URL2.ExternalURL, iconSize),
	}

	redirect := s.ViewURL(t.CourseModule.ID) + "&amp;redirect=1"
	switch s.FinalDisplay(t.URL2) {
	case display.Popup:
		opts := t.URL2.DisplayOptions
		info.OnClick = display.PopupOnClick(redirect, opts.PopupWidth, opts.PopupHeight)
	case display.NewWindow:
		info.OnClick = display.NewWindowOnClick(redirect)
	}

	if t.CourseModule.ShowDescription {
		info.Content = t.URL2.Intro
	}
	return info
}

// ExportContents describes the resource for content export. It returns nil
// when the expanded URL is not plausible.
func (s *Service) ExportContents(vc params.VariableContext) []models.Content {
	full := params.Raw(s.FullURL(vc))
	if ok, _ := validation.ValidateSubmittedURL(full); !ok {
		return nil
	}
	return []models.Content{{
		Type:         "url",
		FileName:     vc.Instance.Name,
		FileURL:      full,
		TimeModified: vc.Instance.TimeModified,
	}}
}

// CheckUpdatesSince reports which areas of a resource changed after from.
func (s *Service) CheckUpdatesSince(t *Target, from time.Time) models.ModuleUpdates {
	return models.ModuleUpdates{
		Configuration: models.UpdateArea{Updated: t.URL2.TimeModified.After(from)},
		ContentFiles:  models.UpdateArea{Updated: false},
	}
}

// ProvideEventAction returns the calendar action for an event, or nil when
// the module is hidden from user or user already completed it.
func (s *Service) ProvideEventAction(ctx context.Context, ev *models.CalendarEvent, user *models.User) (*models.EventAction, error) {
	cm, err := s.store.GetCourseModuleByID(ctx, ev.CourseModuleID)
	if err != nil {
		return nil, err
	}

	visible, err := s.UserVisible(ctx, user, cm)
	if err != nil || !visible {
		return nil, err
	}

	state, err := s.store.GetCompletion(ctx, cm.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if state.State != models.CompletionIncomplete {
		return nil, nil
	}

	return &models.EventAction{
		Name:       "View",
		URL:        s.ViewURL(cm.ID),
		ItemCount:  1,
		Actionable: true,
	}, nil
}

const noAccessCode = "1"

// ListByCourses returns the resources of the given courses visible to user.
// An empty list means the courses user is enrolled in. Courses that are
// missing or not viewable produce a warning instead of an error.
func (s *Service) ListByCourses(ctx context.Context, user *models.User, courseIDs []uuid.UUID) (*models.URL2sByCoursesResponse, error) {
	resp := &models.URL2sByCoursesResponse{
		URL2s:    []models.URL2Summary{},
		Warnings: []models.Warning{},
	}

	if len(courseIDs) == 0 && user != nil {
		ids, err := s.store.ListEnrolledCourseIDs(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		courseIDs = ids
	}

	seen := make(map[uuid.UUID]bool, len(courseIDs))
	for _, courseID := range courseIDs {
		if seen[courseID] {
			continue
		}
		seen[courseID] = true

		summaries, err := s.courseSummaries(ctx, user, courseID)
		if errors.Is(err, ErrNoAccess) || errors.Is(err, db.ErrCourseNotFound) {
			resp.Warnings = append(resp.Warnings, models.Warning{
				Item:        "course",
				ItemID:      courseID.String(),
				WarningCode: noAccessCode,
				Message:     "No access rights in course context",
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		resp.URL2s = append(resp.URL2s, summaries...)
	}

	return resp, nil
}

// ErrNoAccess is returned when a user may not view a course.
var ErrNoAccess = errors.New("no access to course")

func (s *Service) courseSummaries(ctx context.Context, user *models.User, courseID uuid.UUID) ([]models.URL2Summary, error) {
	if _, err := s.store.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	ok, err := s.CanView(ctx, user, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoAccess
	}
	manage, err := s.CanManage(ctx, user, courseID)
	if err != nil {
		return nil, err
	}

	list, err := s.store.ListURL2sByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	out := make([]models.URL2Summary, 0, len(list))
	for _, u := range list {
		cm, err := s.store.GetCourseModuleByInstance(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if !cm.Visible && !manage {
			continue
		}
		out = append(out, summarize(u, cm))
	}
	return out, nil
}

func summarize(u models.URL2, cm *models.CourseModule) models.URL2Summary {
	return models.URL2Summary{
		ID:             u.ID,
		CourseModule:   cm.ID,
		Course:         u.CourseID,
		Name:           u.Name,
		Intro:          u.Intro,
		IntroFormat:    u.IntroFormat,
		ExternalURL:    u.ExternalURL,
		Display:        u.Display,
		DisplayOptions: u.DisplayOptions,
		Parameters:     u.Parameters,
		TimeModified:   u.TimeModified,
		Section:        cm.Section,
		Visible:        cm.Visible,
	}
}

// CourseListing is one row of the course index page.
type CourseListing struct {
	Section     int
	Name        string
	Intro       string
	IntroFormat int
	ViewURL     string
	Visible     bool
}

// CourseIndex lists the resources of a course for the index page, hiding
// invisible ones from users who cannot manage the course.
func (s *Service) CourseIndex(ctx context.Context, course *models.Course, user *models.User) ([]CourseListing, error) {
	list, err := s.courseSummaries(ctx, user, course.ID)
	if err != nil {
		return nil, err
	}

	rows := make([]CourseListing, 0, len(list))
	for _, u := range list {
		rows = append(rows, CourseListing{
			Section:     u.Section,
			Name:        u.Name,
			Intro:       strings.TrimSpace(u.Intro),
			IntroFormat: u.IntroFormat,
			ViewURL:     s.ViewURL(u.CourseModule),
			Visible:     u.Visible,
		})
	}
	return rows, nil
}
