package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"url2/internal/backup"
	"url2/internal/db"
	"url2/internal/logger"
	"url2/internal/models"
	"url2/internal/module"
)

// Checker probes a resource link and records the result on it.
type Checker interface {
	Check(ctx context.Context, u *models.URL2) (string, *string, error)
}

// URL2Handler exposes the resource operations via JSON API.
type URL2Handler struct {
	svc     *module.Service
	checker Checker
	log     logger.Logger
}

// NewURL2Handler creates a new API resource handler. checker may be nil when
// link health checks are disabled.
func NewURL2Handler(svc *module.Service, checker Checker, log logger.Logger) *URL2Handler {
	return &URL2Handler{svc: svc, checker: checker, log: log}
}

// instanceResponse is a resource together with its course module.
type instanceResponse struct {
	URL2         *models.URL2         `json:"url2"`
	CourseModule *models.CourseModule `json:"coursemodule"`
}

func respond(t *module.Target) instanceResponse {
	return instanceResponse{URL2: t.URL2, CourseModule: t.CourseModule}
}

// Metadata returns the static module description.
func (h *URL2Handler) Metadata(c fiber.Ctx) error {
	return jsonSuccess(c, module.Describe())
}

// Variables returns the variable catalog for the parameter rows of the form.
func (h *URL2Handler) Variables(c fiber.Ctx) error {
	return jsonSuccess(c, h.svc.VariableOptions())
}

// View records a view of a resource and completes it when tracked.
func (h *URL2Handler) View(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	var body struct {
		URL2ID string `json:"url2id"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	id, err := uuid.Parse(body.URL2ID)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid url2 id")
	}

	t, err := h.svc.LoadByInstance(c.Context(), id)
	if err != nil {
		return h.fail(c, err, "failed to fetch url2")
	}
	if ok, err := h.svc.UserVisible(c.Context(), user, t.CourseModule); err != nil || !ok {
		return h.denied(c, err)
	}

	if err := h.svc.View(c.Context(), t, user); err != nil {
		return h.fail(c, err, "failed to record view")
	}
	return jsonSuccess(c, models.ViewResponse{Status: true, Warnings: []models.Warning{}})
}

// List returns the resources of the requested courses. Without courseids
// it lists the courses the caller is enrolled in.
func (h *URL2Handler) List(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	var courseIDs []uuid.UUID
	for _, raw := range strings.Split(c.Query("courseids"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid course id: "+raw)
		}
		courseIDs = append(courseIDs, id)
	}

	resp, err := h.svc.ListByCourses(c.Context(), user, courseIDs)
	if err != nil {
		return h.fail(c, err, "failed to list url2s")
	}
	return jsonSuccess(c, resp)
}

// Create adds a resource to a course.
func (h *URL2Handler) Create(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid course id")
	}
	if ok, err := h.requireManage(c, user, courseID); !ok {
		return err
	}

	form, err := h.parseForm(c)
	if form == nil {
		return err
	}

	t, err := h.svc.AddInstance(c.Context(), courseID, form, user)
	if err != nil {
		return h.fail(c, err, "failed to create url2")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": respond(t)})
}

// Update saves the edit form over a resource.
func (h *URL2Handler) Update(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	t, err := h.loadManaged(c, user)
	if err != nil || t == nil {
		return err
	}

	form, err := h.parseForm(c)
	if form == nil {
		return err
	}

	t, err = h.svc.UpdateInstance(c.Context(), t.URL2.ID, form, user)
	if err != nil {
		return h.fail(c, err, "failed to update url2")
	}
	return jsonSuccess(c, respond(t))
}

// Delete removes a resource.
func (h *URL2Handler) Delete(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	t, err := h.loadManaged(c, user)
	if err != nil || t == nil {
		return err
	}

	deleted, err := h.svc.DeleteInstance(c.Context(), t.URL2.ID, user)
	if err != nil {
		return h.fail(c, err, "failed to delete url2")
	}
	if !deleted {
		return jsonError(c, fiber.StatusNotFound, "url2 not found")
	}
	return jsonSuccess(c, fiber.Map{"message": "url2 deleted successfully"})
}

// Info returns what the course page shows for a course module.
func (h *URL2Handler) Info(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	t, err := h.loadVisibleModule(c, user)
	if err != nil || t == nil {
		return err
	}
	return jsonSuccess(c, h.svc.CourseModuleInfo(t))
}

// Updates reports which areas of a course module changed after since, a
// unix timestamp.
func (h *URL2Handler) Updates(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	since, err := strconv.ParseInt(c.Query("since", "0"), 10, 64)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid since timestamp")
	}

	t, err := h.loadVisibleModule(c, user)
	if err != nil || t == nil {
		return err
	}
	return jsonSuccess(c, h.svc.CheckUpdatesSince(t, time.Unix(since, 0)))
}

// Contents returns the export entry of a resource, with its parameters
// expanded for the caller.
func (h *URL2Handler) Contents(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid url2 id")
	}
	t, err := h.svc.LoadByInstance(c.Context(), id)
	if err != nil {
		return h.fail(c, err, "failed to fetch url2")
	}
	if ok, err := h.svc.UserVisible(c.Context(), user, t.CourseModule); err != nil || !ok {
		return h.denied(c, err)
	}

	contents := h.svc.ExportContents(h.svc.VariableContext(t, user, c.IP()))
	if contents == nil {
		contents = []models.Content{}
	}
	return jsonSuccess(c, contents)
}

// EventAction returns the calendar action of an event for the caller.
func (h *URL2Handler) EventAction(c fiber.Ctx) error {
	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid event id")
	}
	ev, err := h.svc.CalendarEvent(c.Context(), id)
	if err != nil {
		return h.fail(c, err, "failed to fetch event")
	}

	action, err := h.svc.ProvideEventAction(c.Context(), ev, user)
	if err != nil {
		return h.fail(c, err, "failed to resolve event action")
	}
	return jsonSuccess(c, action)
}

// Backup returns the backup document of a resource.
func (h *URL2Handler) Backup(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	t, err := h.loadManaged(c, user)
	if err != nil || t == nil {
		return err
	}

	data, err := backup.Export(t.URL2, t.CourseModule)
	if err != nil {
		return h.fail(c, err, "failed to export url2")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="url2_`+t.CourseModule.ID.String()+`.xml"`)
	c.Set("X-Backup-Path", backup.Path(t.CourseModule.ID))
	return c.Send(data)
}

// Restore creates a resource in a course from a backup document. The
// target section comes from the section query parameter; format=legacy
// reads a 1.x resource module instead.
func (h *URL2Handler) Restore(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid course id")
	}
	section, err := strconv.Atoi(c.Query("section", "0"))
	if err != nil || section < 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid section")
	}
	if ok, err := h.requireManage(c, user, courseID); !ok {
		return err
	}

	var u *models.URL2
	switch c.Query("format", "backup") {
	case "backup":
		u, err = backup.Import(c.Body())
	case "legacy":
		u, err = backup.ImportLegacy(c.Body())
	default:
		return jsonError(c, fiber.StatusBadRequest, "format must be backup or legacy")
	}
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	t, err := h.svc.Restore(c.Context(), courseID, u, section, user)
	if err != nil {
		return h.fail(c, err, "failed to restore url2")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": respond(t)})
}

// Drop creates a resource from a link dropped on the course page.
func (h *URL2Handler) Drop(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid course id")
	}
	if ok, err := h.requireManage(c, user, courseID); !ok {
		return err
	}

	var body struct {
		DisplayName string `json:"displayname"`
		Content     string `json:"content"`
		Section     int    `json:"section"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	t, err := h.svc.DndUpload(c.Context(), courseID, body.Section, strings.TrimSpace(body.DisplayName), strings.TrimSpace(body.Content), user)
	if err != nil {
		return h.fail(c, err, "failed to create url2")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": respond(t)})
}

// CheckHealth probes the link of a resource now and records the result.
func (h *URL2Handler) CheckHealth(c fiber.Ctx) error {
	user, _ := c.Locals("user").(*models.User)

	if h.checker == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "link health checks are disabled")
	}

	t, err := h.loadManaged(c, user)
	if err != nil || t == nil {
		return err
	}

	status, errMsg, err := h.checker.Check(c.Context(), t.URL2)
	if err != nil {
		return h.fail(c, err, "failed to update health status")
	}

	resp := models.HealthCheckAPIResponse{
		URL2ID:    t.URL2.ID,
		Status:    status,
		CheckedAt: t.URL2.HealthCheckedAt,
	}
	if errMsg != nil {
		resp.Error = *errMsg
	}
	return jsonSuccess(c, resp)
}

// parseForm reads and validates the edit form. A nil form means the
// response was already written.
func (h *URL2Handler) parseForm(c fiber.Ctx) (*module.Form, error) {
	var form module.Form
	if err := json.Unmarshal(c.Body(), &form); err != nil {
		return nil, jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := module.ValidateForm(&form, h.svc.Settings()); err != nil {
		return nil, h.fail(c, err, "invalid form")
	}
	return &form, nil
}

// loadManaged loads the resource named by the id parameter and checks that
// user may manage it. A nil target means the response was already written.
func (h *URL2Handler) loadManaged(c fiber.Ctx, user *models.User) (*module.Target, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, jsonError(c, fiber.StatusBadRequest, "invalid url2 id")
	}
	t, err := h.svc.LoadByInstance(c.Context(), id)
	if err != nil {
		return nil, h.fail(c, err, "failed to fetch url2")
	}
	if ok, err := h.requireManage(c, user, t.Course.ID); !ok {
		return nil, err
	}
	return t, nil
}

// loadVisibleModule loads the course module named by the id parameter and
// checks that user can see it.
func (h *URL2Handler) loadVisibleModule(c fiber.Ctx, user *models.User) (*module.Target, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, jsonError(c, fiber.StatusBadRequest, "invalid course module id")
	}
	t, err := h.svc.Load(c.Context(), id)
	if err != nil {
		return nil, h.fail(c, err, "failed to fetch course module")
	}
	if ok, err := h.svc.UserVisible(c.Context(), user, t.CourseModule); err != nil || !ok {
		return nil, h.denied(c, err)
	}
	return t, nil
}

// requireManage reports whether user may manage the course. When it
// reports false the response has already been written.
func (h *URL2Handler) requireManage(c fiber.Ctx, user *models.User, courseID uuid.UUID) (bool, error) {
	ok, err := h.svc.CanManage(c.Context(), user, courseID)
	if err != nil {
		return false, h.fail(c, err, "failed to check permissions")
	}
	if !ok {
		return false, jsonError(c, fiber.StatusForbidden, "you do not have permission to manage this course")
	}
	return true, nil
}

func (h *URL2Handler) denied(c fiber.Ctx, err error) error {
	if err != nil {
		return h.fail(c, err, "failed to check permissions")
	}
	return jsonError(c, fiber.StatusForbidden, "no access rights in module context")
}

// fail maps service errors onto API responses.
func (h *URL2Handler) fail(c fiber.Ctx, err error, message string) error {
	var formErrs module.FormErrors
	switch {
	case errors.As(err, &formErrs):
		return jsonFormError(c, formErrs)
	case errors.Is(err, db.ErrURL2NotFound):
		return jsonError(c, fiber.StatusNotFound, "url2 not found")
	case errors.Is(err, db.ErrCourseModuleNotFound):
		return jsonError(c, fiber.StatusNotFound, "course module not found")
	case errors.Is(err, db.ErrCourseNotFound):
		return jsonError(c, fiber.StatusNotFound, "course not found")
	case errors.Is(err, db.ErrCalendarEventNotFound):
		return jsonError(c, fiber.StatusNotFound, "event not found")
	}

	h.log.Error(message, logger.Error(err), logger.String("path", c.Path()))
	return jsonError(c, fiber.StatusInternalServerError, message)
}
