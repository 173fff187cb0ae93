package handlers

import (
	"errors"
	"html"
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"url2/internal/config"
	"url2/internal/db"
	"url2/internal/display"
	"url2/internal/logger"
	"url2/internal/metrics"
	"url2/internal/models"
	"url2/internal/module"
	"url2/internal/params"
)

// ViewHandler serves the resource view page and the course index.
type ViewHandler struct {
	svc *module.Service
	cfg *config.Config
	log logger.Logger
}

// NewViewHandler creates a new view handler.
func NewViewHandler(svc *module.Service, cfg *config.Config, log logger.Logger) *ViewHandler {
	return &ViewHandler{svc: svc, cfg: cfg, log: log}
}

// View shows a resource the way its display mode asks for: a redirect to
// the target, an embedded player, a frameset or a page with a link.
func (h *ViewHandler) View(c fiber.Ctx) error {
	ctx := c.Context()
	user, _ := c.Locals("user").(*models.User)

	target, err := h.load(c)
	if err != nil {
		if isNotFound(err) {
			return notice(c, h.cfg, fiber.StatusNotFound, "Not Found", "The requested resource does not exist.", "/")
		}
		return err
	}

	visible, err := h.svc.UserVisible(ctx, user, target.CourseModule)
	if err != nil {
		return err
	}
	if !visible {
		return fiber.NewError(fiber.StatusForbidden, "You do not have permission to view this resource.")
	}

	if err := h.svc.View(ctx, target, user); err != nil {
		return err
	}

	u := target.URL2
	if !u.HasUsableURL() {
		return c.Render("notice", h.page(c, target, fiber.Map{
			"Intro":   formatIntro(u.Intro, u.IntroFormat),
			"Message": "Cannot display this resource, url2 is invalid.",
			"Next":    indexURL(target.Course.ID),
		}))
	}

	mode := h.svc.FinalDisplay(u)
	redirect, _ := strconv.ParseBool(c.Query("redirect"))
	// Open always redirects, except right after saving the edit form.
	if mode == display.Open && !strings.Contains(c.Get(fiber.HeaderReferer), "modedit") {
		redirect = true
	}

	vc := h.svc.VariableContext(target, user, c.IP())
	full := params.Raw(h.svc.FullURL(vc))
	metrics.RecordView(mode)

	if redirect {
		return c.Redirect().Status(fiber.StatusSeeOther).To(full)
	}

	switch mode {
	case display.Embed:
		return h.embed(c, target, full)
	case display.Frame:
		return h.frame(c, target, full)
	default:
		return h.workaround(c, target, mode, full)
	}
}

func (h *ViewHandler) load(c fiber.Ctx) (*module.Target, error) {
	if raw := c.Query("u"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, db.ErrURL2NotFound
		}
		return h.svc.LoadByInstance(c.Context(), id)
	}

	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		return nil, db.ErrCourseModuleNotFound
	}
	return h.svc.Load(c.Context(), id)
}

func (h *ViewHandler) embed(c fiber.Ctx, t *module.Target, full string) error {
	u := t.URL2
	mimetype := display.GuessMimeType(u.ExternalURL)

	data := fiber.Map{
		"Kind":     display.EmbedKind(mimetype),
		"MimeType": mimetype,
		"URL":      safeURL(full),
		"LinkText": full,
	}
	if u.DisplayOptions.PrintIntro {
		data["Intro"] = formatIntro(u.Intro, u.IntroFormat)
	}
	return c.Render("view/embed", h.page(c, t, data))
}

func (h *ViewHandler) frame(c fiber.Ctx, t *module.Target, full string) error {
	u := t.URL2

	if c.Query("frameset") == "top" {
		data := fiber.Map{}
		if u.DisplayOptions.PrintIntro {
			data["Intro"] = formatIntro(u.Intro, u.IntroFormat)
		}
		return c.Render("view/frametop", h.page(c, t, data))
	}

	// The frameset is a complete document of its own.
	return c.Render("view/frameset", fiber.Map{
		"Title":        t.Course.ShortName + ": " + u.Name,
		"Lang":         h.cfg.SiteLang,
		"FrameSize":    h.svc.Settings().FrameSize,
		"NavURL":       h.svc.ViewURL(t.CourseModule.ID) + "&frameset=top",
		"ContentURL":   safeURL(full),
		"ModuleName":   models.ModuleName,
		"ContentTitle": u.Name,
	}, "")
}

func (h *ViewHandler) workaround(c fiber.Ctx, t *module.Target, mode display.Mode, full string) error {
	u := t.URL2

	var onclick template.JS
	switch mode {
	case display.Popup:
		onclick = template.JS(display.PopupOnClick(full, u.DisplayOptions.PopupWidth, u.DisplayOptions.PopupHeight))
	case display.NewWindow:
		if !display.IsScriptURL(full) {
			onclick = template.JS("this.target='_blank';")
		}
	}

	return c.Render("view/workaround", h.page(c, t, fiber.Map{
		"Intro":    formatIntro(u.Intro, u.IntroFormat),
		"URL":      safeURL(full),
		"LinkText": full,
		"OnClick":  onclick,
		"Display":  mode.String(),
	}))
}

// page adds the fields shared by every resource page.
func (h *ViewHandler) page(c fiber.Ctx, t *module.Target, data fiber.Map) fiber.Map {
	data["Title"] = t.Course.ShortName + ": " + t.URL2.Name
	data["Heading"] = t.Course.FullName
	data["Name"] = t.URL2.Name
	data["CourseURL"] = indexURL(t.Course.ID)
	return MergeSite(c, data, h.cfg)
}

// IndexRow is one line of the course index table.
type IndexRow struct {
	Section string
	Break   bool // first row of a new section
	Name    string
	Intro   template.HTML
	ViewURL string
	Dimmed  bool
}

// Index lists the resources of a course.
func (h *ViewHandler) Index(c fiber.Ctx) error {
	ctx := c.Context()
	user, _ := c.Locals("user").(*models.User)

	courseID, err := uuid.Parse(c.Query("id"))
	if err != nil {
		return notice(c, h.cfg, fiber.StatusNotFound, "Not Found", "The requested course does not exist.", "/")
	}
	course, err := h.svc.Course(ctx, courseID)
	if errors.Is(err, db.ErrCourseNotFound) {
		return notice(c, h.cfg, fiber.StatusNotFound, "Not Found", "The requested course does not exist.", "/")
	}
	if err != nil {
		return err
	}

	listing, err := h.svc.CourseIndex(ctx, course, user)
	if errors.Is(err, module.ErrNoAccess) {
		return fiber.NewError(fiber.StatusForbidden, "You do not have access to this course.")
	}
	if err != nil {
		return err
	}

	if err := h.svc.ListViewed(ctx, course, user); err != nil {
		return err
	}

	if len(listing) == 0 {
		return notice(c, h.cfg, fiber.StatusOK, course.ShortName+": URLs", "There are no URLs", "/")
	}

	rows := make([]IndexRow, 0, len(listing))
	current := -1
	for _, l := range listing {
		row := IndexRow{
			Name:    l.Name,
			Intro:   formatIntro(l.Intro, l.IntroFormat),
			ViewURL: l.ViewURL,
			Dimmed:  !l.Visible,
		}
		if l.Section != current {
			row.Break = current != -1
			if l.Section != 0 {
				row.Section = "Section " + strconv.Itoa(l.Section)
			}
			current = l.Section
		}
		rows = append(rows, row)
	}

	return c.Render("index", MergeSite(c, fiber.Map{
		"Title":   course.ShortName + ": URLs",
		"Heading": course.FullName,
		"Rows":    rows,
	}, h.cfg))
}

func indexURL(courseID uuid.UUID) string {
	return "/mod/url2/index.php?id=" + courseID.String()
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrURL2NotFound) ||
		errors.Is(err, db.ErrCourseModuleNotFound) ||
		errors.Is(err, db.ErrCourseNotFound)
}

// formatIntro renders a description. Descriptions without visible text give
// "".
func formatIntro(text string, format int) template.HTML {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil || strings.TrimSpace(doc.Text()) == "" {
		return ""
	}

	switch format {
	case models.FormatPlain, models.FormatMarkdown:
		escaped := html.EscapeString(strings.TrimSpace(text))
		return template.HTML("<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>")
	default:
		return template.HTML(text)
	}
}

// safeURL marks a resource URL as trusted for href and src attributes, so
// schemes like ftp or teamspeak survive template escaping. Script schemes
// are replaced.
func safeURL(raw string) template.URL {
	if _, err := url.Parse(raw); err != nil || display.IsScriptURL(raw) {
		return "#"
	}
	return template.URL(raw)
}

// Home lists the courses of the current user.
func (h *ViewHandler) Home(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	courses, err := h.svc.EnrolledCourses(c.Context(), user)
	if err != nil {
		return err
	}
	return c.Render("home", MergeSite(c, fiber.Map{
		"Title":   h.cfg.SiteTitle,
		"Courses": courses,
	}, h.cfg))
}
