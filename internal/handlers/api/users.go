package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"url2/internal/db"
	"url2/internal/models"
)

// SiteStore is the persistence behind site administration.
type SiteStore interface {
	UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
	CreateCourse(ctx context.Context, c *models.Course) error
	GetCourseByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	EnrolUser(ctx context.Context, e *models.Enrolment) error
	ListCourseEvents(ctx context.Context, courseID uuid.UUID, limit int) ([]models.LogEvent, error)
}

// UserHandler handles site administration of users, courses and
// enrolments via JSON API. Every operation requires a site admin.
type UserHandler struct {
	store SiteStore
}

// NewUserHandler creates a new API user handler.
func NewUserHandler(store SiteStore) *UserHandler {
	return &UserHandler{store: store}
}

var courseRoles = map[string]bool{
	models.CourseRoleManager:        true,
	models.CourseRoleEditingTeacher: true,
	models.CourseRoleTeacher:        true,
	models.CourseRoleStudent:        true,
}

func admin(c fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals("user").(*models.User)
	if !ok || !user.IsAdmin() {
		return nil, false
	}
	return user, true
}

// UpdateRole updates a user's site role.
func (h *UserHandler) UpdateRole(c fiber.Ctx) error {
	currentUser, ok := admin(c)
	if !ok {
		return jsonError(c, fiber.StatusForbidden, "admin access required")
	}

	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var body struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if body.Role != models.RoleUser && body.Role != models.RoleAdmin {
		return jsonError(c, fiber.StatusBadRequest, "invalid role")
	}

	if userID == currentUser.ID && body.Role != models.RoleAdmin {
		return jsonError(c, fiber.StatusBadRequest, "cannot change your own role")
	}

	if err := h.store.UpdateUserRole(c.Context(), userID, body.Role); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return jsonError(c, fiber.StatusNotFound, "user not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to update role")
	}

	return jsonSuccess(c, fiber.Map{
		"message": "role updated successfully",
	})
}

// Delete removes a user along with their enrolments and completion state.
func (h *UserHandler) Delete(c fiber.Ctx) error {
	currentUser, ok := admin(c)
	if !ok {
		return jsonError(c, fiber.StatusForbidden, "admin access required")
	}

	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid user id")
	}

	if userID == currentUser.ID {
		return jsonError(c, fiber.StatusBadRequest, "cannot delete your own account")
	}

	if err := h.store.DeleteUser(c.Context(), userID); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return jsonError(c, fiber.StatusNotFound, "user not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to delete user")
	}

	return jsonSuccess(c, fiber.Map{
		"message": "user deleted successfully",
	})
}

// CreateCourse adds a course.
func (h *UserHandler) CreateCourse(c fiber.Ctx) error {
	if _, ok := admin(c); !ok {
		return jsonError(c, fiber.StatusForbidden, "admin access required")
	}

	var course models.Course
	if err := json.Unmarshal(c.Body(), &course); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	course.FullName = strings.TrimSpace(course.FullName)
	course.ShortName = strings.TrimSpace(course.ShortName)
	if course.FullName == "" || course.ShortName == "" {
		return jsonError(c, fiber.StatusBadRequest, "fullname and shortname are required")
	}

	if err := h.store.CreateCourse(c.Context(), &course); err != nil {
		if errors.Is(err, db.ErrDuplicateShortName) {
			return jsonError(c, fiber.StatusConflict, "a course with this short name already exists")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to create course")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": course})
}

// Enrol gives a user a role in a course, replacing any previous role.
func (h *UserHandler) Enrol(c fiber.Ctx) error {
	if _, ok := admin(c); !ok {
		return jsonError(c, fiber.StatusForbidden, "admin access required")
	}

	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var body struct {
		UserID string `json:"userid"`
		Role   string `json:"role"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid user id")
	}
	if !courseRoles[body.Role] {
		return jsonError(c, fiber.StatusBadRequest, "invalid role")
	}

	if _, err := h.store.GetCourseByID(c.Context(), courseID); err != nil {
		if errors.Is(err, db.ErrCourseNotFound) {
			return jsonError(c, fiber.StatusNotFound, "course not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch course")
	}
	if _, err := h.store.GetUserByID(c.Context(), userID); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return jsonError(c, fiber.StatusNotFound, "user not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch user")
	}

	e := &models.Enrolment{UserID: userID, CourseID: courseID, Role: body.Role}
	if err := h.store.EnrolUser(c.Context(), e); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to enrol user")
	}

	return jsonSuccess(c, e)
}

// CourseLog returns the most recent activity log entries of a course.
func (h *UserHandler) CourseLog(c fiber.Ctx) error {
	if _, ok := admin(c); !ok {
		return jsonError(c, fiber.StatusForbidden, "admin access required")
	}

	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid course id")
	}
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		return jsonError(c, fiber.StatusBadRequest, "limit must be between 1 and 500")
	}

	events, err := h.store.ListCourseEvents(c.Context(), courseID, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to fetch log")
	}
	if events == nil {
		events = []models.LogEvent{}
	}
	return jsonSuccess(c, events)
}
