package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"url2/internal/config"
	"url2/internal/display"
	"url2/internal/logger"
	"url2/internal/models"
	"url2/internal/module"
	"url2/internal/testutil"
)

type envelope struct {
	Status string            `json:"status"`
	Data   json.RawMessage   `json:"data"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type fakeChecker struct {
	status string
	calls  int
}

func (f *fakeChecker) Check(_ context.Context, u *models.URL2) (string, *string, error) {
	f.calls++
	now := time.Now()
	u.HealthStatus = f.status
	u.HealthCheckedAt = &now
	return f.status, nil, nil
}

type apiSite struct {
	app     *fiber.App
	f       *testutil.Fixture
	checker *fakeChecker
}

func newAPISite(t *testing.T, withChecker bool) *apiSite {
	t.Helper()

	cfg := &config.Config{
		BaseURL:   "https://lms.example.org",
		SiteTitle: "Campus Online",
		SiteLang:  "en",
		Module: config.ModuleSettings{
			FrameSize:      130,
			DisplayOptions: config.DefaultDisplayOptions,
			Display:        display.Automatic,
			PrintIntro:     true,
			PopupWidth:     display.DefaultPopupWidth,
			PopupHeight:    display.DefaultPopupHeight,
		},
	}
	f := testutil.NewFixture(t)
	svc := module.New(f.Store, cfg, config.DefaultRoles, logger.Nop())

	s := &apiSite{f: f, checker: &fakeChecker{status: models.HealthHealthy}}
	var checker Checker
	if withChecker {
		checker = s.checker
	}
	h := NewURL2Handler(svc, checker, logger.Nop())
	users := NewUserHandler(f.Store)

	app := fiber.New()
	byName := map[string]*models.User{
		"admin":    f.Admin,
		"teacher":  f.Teacher,
		"student":  f.Student,
		"outsider": f.Outsider,
	}
	app.Use(func(c fiber.Ctx) error {
		if u, ok := byName[c.Get("X-Test-User")]; ok {
			c.Locals("user", u)
		}
		return c.Next()
	})

	v1 := app.Group("/api/v1")
	v1.Get("/url2/metadata", h.Metadata)
	v1.Get("/url2/variables", h.Variables)
	v1.Post("/url2/view", h.View)
	v1.Get("/url2", h.List)
	v1.Put("/url2/:id", h.Update)
	v1.Delete("/url2/:id", h.Delete)
	v1.Get("/url2/:id/contents", h.Contents)
	v1.Get("/url2/:id/backup", h.Backup)
	v1.Post("/url2/:id/health", h.CheckHealth)
	v1.Post("/courses", users.CreateCourse)
	v1.Post("/courses/:id/enrolments", users.Enrol)
	v1.Get("/courses/:id/logs", users.CourseLog)
	v1.Post("/courses/:id/url2", h.Create)
	v1.Post("/courses/:id/url2/restore", h.Restore)
	v1.Post("/courses/:id/url2/dnd", h.Drop)
	v1.Get("/course-modules/:id/info", h.Info)
	v1.Get("/course-modules/:id/updates", h.Updates)
	v1.Get("/calendar/events/:id/action", h.EventAction)
	v1.Put("/users/:id/role", users.UpdateRole)
	v1.Delete("/users/:id", users.Delete)

	s.app = app
	return s
}

func (s *apiSite) do(t *testing.T, method, path, user, body string) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)

	resp, err := s.app.Test(req)
	require.NoError(t, err)

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type created struct {
	URL2         models.URL2         `json:"url2"`
	CourseModule models.CourseModule `json:"coursemodule"`
}

func (s *apiSite) coursePath(suffix string) string {
	return "/api/v1/courses/" + s.f.Course.ID.String() + suffix
}

func TestMetadataAndVariables(t *testing.T) {
	s := newAPISite(t, true)

	_, env := s.do(t, http.MethodGet, "/api/v1/url2/metadata", "student", "")
	assert.Equal(t, "ok", env.Status)
	meta := decode[module.Metadata](t, env.Data)
	assert.Equal(t, "url2", meta.Name)
	assert.Equal(t, "resource", meta.Archetype)

	_, env = s.do(t, http.MethodGet, "/api/v1/url2/variables", "teacher", "")
	groups := decode[[]models.VariableGroup](t, env.Data)
	assert.NotEmpty(t, groups)
}

func TestCreate(t *testing.T) {
	s := newAPISite(t, true)

	body := `{"name":" Docs ","externalurl2":"example.org/docs","display":"popup","popupwidth":700,"popupheight":500,
		"parameters":[{"name":"u","variable":"userusername"},{"name":"","variable":"courseid"}],"section":2}`

	resp, env := s.do(t, http.MethodPost, s.coursePath("/url2"), "teacher", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	got := decode[created](t, env.Data)

	assert.Equal(t, "Docs", got.URL2.Name)
	assert.Equal(t, "http://example.org/docs", got.URL2.ExternalURL)
	assert.Equal(t, display.Popup, got.URL2.Display)
	assert.Equal(t, models.DisplayOptions{PopupWidth: 700, PopupHeight: 500}, got.URL2.DisplayOptions)
	assert.Equal(t, models.ParameterTemplate{{Name: "u", Variable: "userusername"}}, got.URL2.Parameters)
	assert.Equal(t, 2, got.CourseModule.Section)
	assert.True(t, got.CourseModule.Visible)
	assert.Contains(t, s.f.Store.EventNames(), models.EventCourseModuleCreated)
}

func TestCreate_Rejected(t *testing.T) {
	s := newAPISite(t, true)

	tests := []struct {
		name   string
		user   string
		path   string
		body   string
		status int
		fields []string
	}{
		{"student", "student", s.coursePath("/url2"), `{"name":"A","externalurl2":"https://a.example"}`, fiber.StatusForbidden, nil},
		{"outsider", "outsider", s.coursePath("/url2"), `{"name":"A","externalurl2":"https://a.example"}`, fiber.StatusForbidden, nil},
		{"bad course id", "teacher", "/api/v1/courses/nope/url2", `{}`, fiber.StatusBadRequest, nil},
		{"bad json", "teacher", s.coursePath("/url2"), `{`, fiber.StatusBadRequest, nil},
		{"missing fields", "teacher", s.coursePath("/url2"), `{"name":"  "}`, fiber.StatusBadRequest, []string{"name", "externalurl2"}},
		{"display not offered", "teacher", s.coursePath("/url2"), `{"name":"A","externalurl2":"https://a.example","display":"frame"}`, fiber.StatusBadRequest, []string{"display"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := s.do(t, http.MethodPost, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "error", env.Status)
			for _, f := range tt.fields {
				assert.Contains(t, env.Fields, f)
			}
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newAPISite(t, true)
	u, _ := s.f.AddURL2(t, &models.URL2{Name: "Old", ExternalURL: "https://example.org/old"}, nil)
	path := "/api/v1/url2/" + u.ID.String()

	resp, _ := s.do(t, http.MethodPut, path, "student", `{"name":"New","externalurl2":"https://example.org/new"}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, env := s.do(t, http.MethodPut, path, "teacher", `{"name":"New","externalurl2":"https://example.org/new","display":"embed","printintro":true}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)
	got := decode[created](t, env.Data)
	assert.Equal(t, "New", got.URL2.Name)
	assert.Equal(t, display.Embed, got.URL2.Display)
	assert.True(t, got.URL2.DisplayOptions.PrintIntro)

	resp, _ = s.do(t, http.MethodDelete, path, "teacher", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = s.do(t, http.MethodDelete, path, "teacher", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "url2 not found", env.Error)
}

func TestView(t *testing.T) {
	s := newAPISite(t, true)
	u, _ := s.f.AddURL2(t, &models.URL2{Name: "Docs", ExternalURL: "https://example.org/"}, nil)

	resp, env := s.do(t, http.MethodPost, "/api/v1/url2/view", "student", `{"url2id":"`+u.ID.String()+`"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error)
	got := decode[models.ViewResponse](t, env.Data)
	assert.True(t, got.Status)
	assert.Empty(t, got.Warnings)
	assert.Equal(t, []string{models.EventCourseModuleViewed}, s.f.Store.EventNames())

	resp, _ = s.do(t, http.MethodPost, "/api/v1/url2/view", "outsider", `{"url2id":"`+u.ID.String()+`"}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/url2/view", "student", `{"url2id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestList(t *testing.T) {
	s := newAPISite(t, true)
	s.f.AddURL2(t, &models.URL2{Name: "One", ExternalURL: "https://example.org/1"}, nil)
	s.f.AddURL2(t, &models.URL2{Name: "Two", ExternalURL: "https://example.org/2"}, nil)

	_, env := s.do(t, http.MethodGet, "/api/v1/url2", "student", "")
	got := decode[models.URL2sByCoursesResponse](t, env.Data)
	assert.Len(t, got.URL2s, 2)
	assert.Empty(t, got.Warnings)

	_, env = s.do(t, http.MethodGet, "/api/v1/url2?courseids="+s.f.Course.ID.String(), "outsider", "")
	got = decode[models.URL2sByCoursesResponse](t, env.Data)
	assert.Empty(t, got.URL2s)
	require.Len(t, got.Warnings, 1)
	assert.Equal(t, s.f.Course.ID.String(), got.Warnings[0].ItemID)

	resp, _ := s.do(t, http.MethodGet, "/api/v1/url2?courseids=abc", "student", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestContents(t *testing.T) {
	s := newAPISite(t, true)
	u, _ := s.f.AddURL2(t, &models.URL2{
		Name:        "Search",
		ExternalURL: "https://search.example.org/?q=go",
		Parameters:  models.ParameterTemplate{{Name: "who", Variable: "userusername"}},
	}, nil)

	_, env := s.do(t, http.MethodGet, "/api/v1/url2/"+u.ID.String()+"/contents", "student", "")
	contents := decode[[]models.Content](t, env.Data)
	require.Len(t, contents, 1)
	assert.Equal(t, "url", contents[0].Type)
	assert.Equal(t, "Search", contents[0].FileName)
	assert.Equal(t, "https://search.example.org/?q=go&who=student", contents[0].FileURL)
}

func TestInfoAndUpdates(t *testing.T) {
	s := newAPISite(t, true)
	_, cm := s.f.AddURL2(t, &models.URL2{
		Name:           "Popup",
		ExternalURL:    "https://example.org/",
		Display:        display.Popup,
		DisplayOptions: models.DisplayOptions{PopupWidth: 400, PopupHeight: 300},
		TimeModified:   time.Unix(1700000000, 0),
	}, nil)
	base := "/api/v1/course-modules/" + cm.ID.String()

	_, env := s.do(t, http.MethodGet, base+"/info", "student", "")
	info := decode[models.CourseModuleInfo](t, env.Data)
	assert.Equal(t, "Popup", info.Name)
	assert.Contains(t, info.OnClick, "&amp;redirect=1")
	assert.Contains(t, info.OnClick, "width=400")

	_, env = s.do(t, http.MethodGet, base+"/updates?since=1600000000", "student", "")
	assert.True(t, decode[models.ModuleUpdates](t, env.Data).Configuration.Updated)

	_, env = s.do(t, http.MethodGet, base+"/updates?since=1800000000", "student", "")
	assert.False(t, decode[models.ModuleUpdates](t, env.Data).Configuration.Updated)

	resp, _ := s.do(t, http.MethodGet, base+"/updates?since=yesterday", "student", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/course-modules/"+uuid.NewString()+"/info", "student", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEventAction(t *testing.T) {
	s := newAPISite(t, true)

	body := `{"name":"Reading","externalurl2":"https://example.org/read","completion":2,"completionview":true,
		"completionexpected":"2026-11-01T09:00:00Z"}`
	resp, env := s.do(t, http.MethodPost, s.coursePath("/url2"), "teacher", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	got := decode[created](t, env.Data)

	events := s.f.Store.CalendarEvents()
	require.Len(t, events, 1)
	path := "/api/v1/calendar/events/" + events[0].ID.String() + "/action"

	_, env = s.do(t, http.MethodGet, path, "student", "")
	action := decode[*models.EventAction](t, env.Data)
	require.NotNil(t, action)
	assert.Equal(t, "View", action.Name)
	assert.Equal(t, "https://lms.example.org/mod/url2/view.php?id="+got.CourseModule.ID.String(), action.URL)
	assert.Equal(t, 1, action.ItemCount)
	assert.True(t, action.Actionable)

	// Viewing completes the module and the action goes away
	s.do(t, http.MethodPost, "/api/v1/url2/view", "student", `{"url2id":"`+got.URL2.ID.String()+`"}`)
	_, env = s.do(t, http.MethodGet, path, "student", "")
	assert.Equal(t, "null", string(env.Data))
}

func TestBackupAndRestore(t *testing.T) {
	s := newAPISite(t, true)
	u, cm := s.f.AddURL2(t, &models.URL2{
		Name:        "Docs",
		Intro:       "<p>Read me</p>",
		IntroFormat: models.FormatHTML,
		ExternalURL: "https://example.org/docs",
		Display:     display.Frame,
		Parameters:  models.ParameterTemplate{{Name: "c", Variable: "courseid"}},
	}, nil)

	resp, _ := s.do(t, http.MethodGet, "/api/v1/url2/"+u.ID.String()+"/backup", "student", "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/url2/"+u.ID.String()+"/backup", nil)
	req.Header.Set("X-Test-User", "teacher")
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")
	assert.Equal(t, "activities/url2_"+cm.ID.String()+"/url2.xml", resp.Header.Get("X-Backup-Path"))
	doc, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<externalurl2>https://example.org/docs</externalurl2>")

	resp, env := s.do(t, http.MethodPost, s.coursePath("/url2/restore?section=3"), "teacher", string(doc))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	got := decode[created](t, env.Data)
	assert.NotEqual(t, u.ID, got.URL2.ID)
	assert.Equal(t, "Docs", got.URL2.Name)
	assert.Equal(t, display.Frame, got.URL2.Display)
	assert.Equal(t, u.Parameters, got.URL2.Parameters)
	assert.Equal(t, 3, got.CourseModule.Section)

	resp, _ = s.do(t, http.MethodPost, s.coursePath("/url2/restore"), "teacher", "<activity")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, s.coursePath("/url2/restore?section=-1"), "teacher", string(doc))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRestoreLegacy(t *testing.T) {
	s := newAPISite(t, true)
	mod := `<MOD>
  <ID>77</ID>
  <MODTYPE>resource</MODTYPE>
  <NAME>Library search</NAME>
  <SUMMARY>Find books</SUMMARY>
  <REFERENCE>http://library.example.org/search</REFERENCE>
  <POPUP>resizable=1,width=640,height=480</POPUP>
  <ALLTEXT>courseshortname=course</ALLTEXT>
  <TIMEMODIFIED>1136073600</TIMEMODIFIED>
</MOD>`

	resp, env := s.do(t, http.MethodPost, s.coursePath("/url2/restore?format=legacy&section=2"), "teacher", mod)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	got := decode[created](t, env.Data)
	assert.Equal(t, "Library search", got.URL2.Name)
	assert.Equal(t, "Find books", got.URL2.Intro)
	assert.Equal(t, display.Popup, got.URL2.Display)
	assert.Equal(t, models.DisplayOptions{PrintIntro: true, PopupWidth: 640, PopupHeight: 480}, got.URL2.DisplayOptions)
	assert.Equal(t, models.ParameterTemplate{{Name: "course", Variable: "courseshortname"}}, got.URL2.Parameters)
	assert.Equal(t, 2, got.CourseModule.Section)

	tests := []struct {
		name  string
		query string
		body  string
	}{
		{"not a resource", "?format=legacy", `<MOD><MODTYPE>forum</MODTYPE></MOD>`},
		{"broken xml", "?format=legacy", `<MOD>`},
		{"unknown format", "?format=zip", mod},
		{"legacy body as backup", "", mod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := s.do(t, http.MethodPost, s.coursePath("/url2/restore"+tt.query), "teacher", tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, _ = s.do(t, http.MethodPost, s.coursePath("/url2/restore?format=legacy"), "student", mod)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestDrop(t *testing.T) {
	s := newAPISite(t, true)

	resp, env := s.do(t, http.MethodPost, s.coursePath("/url2/dnd"), "teacher",
		`{"displayname":"Go <docs>","content":"https://go.dev/doc/","section":1}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error)
	got := decode[created](t, env.Data)
	assert.Equal(t, "Go <docs>", got.URL2.Name)
	assert.Equal(t, "<p>Go &lt;docs&gt;</p>", got.URL2.Intro)
	assert.Equal(t, "https://go.dev/doc/", got.URL2.ExternalURL)
	assert.Equal(t, 1, got.CourseModule.Section)

	resp, env = s.do(t, http.MethodPost, s.coursePath("/url2/dnd"), "teacher", `{"displayname":"x","content":"not a url"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Fields, "externalurl2")

	resp, _ = s.do(t, http.MethodPost, s.coursePath("/url2/dnd"), "student", `{"displayname":"x","content":"https://go.dev"}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCheckHealth(t *testing.T) {
	s := newAPISite(t, true)
	u, _ := s.f.AddURL2(t, &models.URL2{Name: "Docs", ExternalURL: "https://example.org/"}, nil)
	path := "/api/v1/url2/" + u.ID.String() + "/health"

	resp, _ := s.do(t, http.MethodPost, path, "student", "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Zero(t, s.checker.calls)

	resp, env := s.do(t, http.MethodPost, path, "teacher", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	got := decode[models.HealthCheckAPIResponse](t, env.Data)
	assert.Equal(t, u.ID, got.URL2ID)
	assert.Equal(t, models.HealthHealthy, got.Status)
	assert.NotNil(t, got.CheckedAt)
	assert.Equal(t, 1, s.checker.calls)

	disabled := newAPISite(t, false)
	u, _ = disabled.f.AddURL2(t, &models.URL2{Name: "Docs", ExternalURL: "https://example.org/"}, nil)
	resp, _ = disabled.do(t, http.MethodPost, "/api/v1/url2/"+u.ID.String()+"/health", "teacher", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
