package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"url2/internal/db"
	"url2/internal/display"
	"url2/internal/models"
)

// MemoryStore is an in-memory stand-in for *db.DB with the same error
// semantics. Records are copied on the way in and out.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]models.User
	courses     map[uuid.UUID]models.Course
	enrolments  map[[2]uuid.UUID]models.Enrolment
	url2s       map[uuid.UUID]models.URL2
	modules     map[uuid.UUID]models.CourseModule
	completions map[[2]uuid.UUID]models.CompletionState
	calendar    map[uuid.UUID]models.CalendarEvent
	events      []models.LogEvent
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[uuid.UUID]models.User),
		courses:     make(map[uuid.UUID]models.Course),
		enrolments:  make(map[[2]uuid.UUID]models.Enrolment),
		url2s:       make(map[uuid.UUID]models.URL2),
		modules:     make(map[uuid.UUID]models.CourseModule),
		completions: make(map[[2]uuid.UUID]models.CompletionState),
		calendar:    make(map[uuid.UUID]models.CalendarEvent),
	}
}

// Users

func (m *MemoryStore) UpsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, existing := range m.users {
		if existing.Sub == user.Sub {
			user.ID = id
			user.Role = existing.Role
			user.CreatedAt = existing.CreatedAt
			if user.Username == "" {
				user.Username = existing.Username
			}
			user.UpdatedAt = now
			m.users[id] = *user
			return nil
		}
	}

	user.ID = uuid.New()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) findUser(match func(models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (m *MemoryStore) GetUserBySub(_ context.Context, sub string) (*models.User, error) {
	return m.findUser(func(u models.User) bool { return u.Sub == sub })
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return m.findUser(func(u models.User) bool { return u.Username != "" && u.Username == username })
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return m.findUser(func(u models.User) bool { return u.ID == id })
}

func (m *MemoryStore) UpdateUserRole(_ context.Context, userID uuid.UUID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return db.ErrUserNotFound
	}
	u.Role = role
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return db.ErrUserNotFound
	}
	delete(m.users, userID)
	for key := range m.enrolments {
		if key[0] == userID {
			delete(m.enrolments, key)
		}
	}
	for key := range m.completions {
		if key[1] == userID {
			delete(m.completions, key)
		}
	}
	return nil
}

// Courses and enrolments

func (m *MemoryStore) CreateCourse(_ context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.courses {
		if existing.ShortName == c.ShortName {
			return db.ErrDuplicateShortName
		}
	}
	c.ID = uuid.New()
	if c.Format == "" {
		c.Format = "topics"
	}
	c.CreatedAt = time.Now()
	m.courses[c.ID] = *c
	return nil
}

func (m *MemoryStore) GetCourseByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.courses[id]
	if !ok {
		return nil, db.ErrCourseNotFound
	}
	return &c, nil
}

func (m *MemoryStore) GetCourseByShortName(_ context.Context, shortName string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.courses {
		if c.ShortName == shortName {
			return &c, nil
		}
	}
	return nil, db.ErrCourseNotFound
}

func (m *MemoryStore) EnrolUser(_ context.Context, e *models.Enrolment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enrolments[[2]uuid.UUID{e.UserID, e.CourseID}] = *e
	return nil
}

func (m *MemoryStore) GetEnrolment(_ context.Context, userID, courseID uuid.UUID) (*models.Enrolment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.enrolments[[2]uuid.UUID{userID, courseID}]
	if !ok {
		return nil, db.ErrEnrolmentNotFound
	}
	return &e, nil
}

func (m *MemoryStore) ListEnrolledCourseIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var courses []models.Course
	for key := range m.enrolments {
		if key[0] == userID {
			courses = append(courses, m.courses[key[1]])
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ShortName < courses[j].ShortName })

	ids := make([]uuid.UUID, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	return ids, nil
}

// Resources

func (m *MemoryStore) CreateURL2(_ context.Context, u *models.URL2, cm *models.CourseModule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.courses[u.CourseID]; !ok {
		return db.ErrCourseNotFound
	}

	now := time.Now()
	u.ID = uuid.New()
	u.CreatedAt = now
	u.HealthStatus = models.HealthUnknown
	if u.Parameters == nil {
		u.Parameters = models.ParameterTemplate{}
	}
	m.url2s[u.ID] = cloneURL2(*u)

	cm.ID = uuid.New()
	cm.CourseID = u.CourseID
	cm.InstanceID = u.ID
	cm.Added = now
	m.modules[cm.ID] = *cm
	return nil
}

func (m *MemoryStore) UpdateURL2(_ context.Context, u *models.URL2) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.url2s[u.ID]
	if !ok {
		return db.ErrURL2NotFound
	}
	existing.Name = u.Name
	existing.Intro = u.Intro
	existing.IntroFormat = u.IntroFormat
	existing.ExternalURL = u.ExternalURL
	existing.Display = u.Display
	existing.DisplayOptions = u.DisplayOptions
	existing.Parameters = u.Parameters
	existing.TimeModified = u.TimeModified
	m.url2s[u.ID] = cloneURL2(existing)
	return nil
}

func (m *MemoryStore) UpdateCourseModule(_ context.Context, cm *models.CourseModule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.modules[cm.ID]
	if !ok {
		return db.ErrCourseModuleNotFound
	}
	existing.IDNumber = cm.IDNumber
	existing.Section = cm.Section
	existing.Visible = cm.Visible
	existing.ShowDescription = cm.ShowDescription
	existing.Completion = cm.Completion
	existing.CompletionView = cm.CompletionView
	existing.CompletionExpected = cm.CompletionExpected
	m.modules[cm.ID] = existing
	return nil
}

func (m *MemoryStore) DeleteURL2(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.url2s[id]; !ok {
		return db.ErrURL2NotFound
	}
	delete(m.url2s, id)
	for cmID, cm := range m.modules {
		if cm.InstanceID != id {
			continue
		}
		delete(m.modules, cmID)
		for key := range m.completions {
			if key[0] == cmID {
				delete(m.completions, key)
			}
		}
		for evID, ev := range m.calendar {
			if ev.CourseModuleID == cmID {
				delete(m.calendar, evID)
			}
		}
	}
	return nil
}

func (m *MemoryStore) GetURL2ByID(_ context.Context, id uuid.UUID) (*models.URL2, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.url2s[id]
	if !ok {
		return nil, db.ErrURL2NotFound
	}
	u = cloneURL2(u)
	return &u, nil
}

func (m *MemoryStore) ListURL2sByCourse(_ context.Context, courseID uuid.UUID) ([]models.URL2, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cms []models.CourseModule
	for _, cm := range m.modules {
		if cm.CourseID == courseID {
			cms = append(cms, cm)
		}
	}
	sort.Slice(cms, func(i, j int) bool {
		if cms[i].Section != cms[j].Section {
			return cms[i].Section < cms[j].Section
		}
		return cms[i].Added.Before(cms[j].Added)
	})

	var out []models.URL2
	for _, cm := range cms {
		if u, ok := m.url2s[cm.InstanceID]; ok {
			out = append(out, cloneURL2(u))
		}
	}
	return out, nil
}

func (m *MemoryStore) GetCourseModuleByID(_ context.Context, id uuid.UUID) (*models.CourseModule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cm, ok := m.modules[id]
	if !ok {
		return nil, db.ErrCourseModuleNotFound
	}
	return &cm, nil
}

func (m *MemoryStore) GetCourseModuleByInstance(_ context.Context, instanceID uuid.UUID) (*models.CourseModule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cm := range m.modules {
		if cm.InstanceID == instanceID {
			return &cm, nil
		}
	}
	return nil, db.ErrCourseModuleNotFound
}

// Health checks

func (m *MemoryStore) GetURL2sNeedingHealthCheck(_ context.Context, maxAge time.Duration, limit int) ([]models.URL2, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.URL2
	for _, u := range m.url2s {
		lower := strings.ToLower(u.ExternalURL)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			continue
		}
		if u.NeedsHealthCheck(maxAge) {
			out = append(out, cloneURL2(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].HealthCheckedAt, out[j].HealthCheckedAt
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateURL2HealthStatus(_ context.Context, id uuid.UUID, status string, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.url2s[id]
	if !ok {
		return db.ErrURL2NotFound
	}
	now := time.Now()
	u.HealthStatus = status
	u.HealthCheckedAt = &now
	u.HealthError = errMsg
	m.url2s[id] = u
	return nil
}

func (m *MemoryStore) CountURL2sByDisplay(_ context.Context) (map[display.Mode]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[display.Mode]int)
	for _, u := range m.url2s {
		counts[u.Display]++
	}
	return counts, nil
}

// Completion

func (m *MemoryStore) GetCompletion(_ context.Context, cmID, userID uuid.UUID) (*models.CompletionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.completions[[2]uuid.UUID{cmID, userID}]
	if !ok {
		state = models.CompletionState{CourseModuleID: cmID, UserID: userID}
	}
	return &state, nil
}

func (m *MemoryStore) SaveCompletion(_ context.Context, state *models.CompletionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state.TimeModified = time.Now()
	m.completions[[2]uuid.UUID{state.CourseModuleID, state.UserID}] = *state
	return nil
}

// Calendar

func (m *MemoryStore) SaveCalendarEvent(_ context.Context, ev *models.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.calendar {
		if existing.CourseModuleID == ev.CourseModuleID && existing.EventType == ev.EventType {
			ev.ID = id
			m.calendar[id] = *ev
			return nil
		}
	}
	ev.ID = uuid.New()
	m.calendar[ev.ID] = *ev
	return nil
}

func (m *MemoryStore) DeleteCalendarEvent(_ context.Context, cmID uuid.UUID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ev := range m.calendar {
		if ev.CourseModuleID == cmID && ev.EventType == eventType {
			delete(m.calendar, id)
		}
	}
	return nil
}

func (m *MemoryStore) GetCalendarEvent(_ context.Context, id uuid.UUID) (*models.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.calendar[id]
	if !ok {
		return nil, db.ErrCalendarEventNotFound
	}
	return &ev, nil
}

// CalendarEvents returns all stored calendar events.
func (m *MemoryStore) CalendarEvents() []models.CalendarEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.CalendarEvent, 0, len(m.calendar))
	for _, ev := range m.calendar {
		out = append(out, ev)
	}
	return out
}

// Activity log

func (m *MemoryStore) RecordEvent(_ context.Context, ev *models.LogEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = uuid.New()
	ev.CreatedAt = time.Now()
	m.events = append(m.events, *ev)
	return nil
}

func (m *MemoryStore) ListCourseEvents(_ context.Context, courseID uuid.UUID, limit int) ([]models.LogEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.LogEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].CourseID == courseID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

// EventNames returns the names of the recorded events in order.
func (m *MemoryStore) EventNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.events))
	for i, ev := range m.events {
		names[i] = ev.Name
	}
	return names
}

// Events returns the recorded events in order.
func (m *MemoryStore) Events() []models.LogEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.LogEvent(nil), m.events...)
}

func cloneURL2(u models.URL2) models.URL2 {
	u.Parameters = append(models.ParameterTemplate{}, u.Parameters...)
	return u
}
