package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"url2/internal/models"
)

const courseModuleColumns = `id, course_id, instance_id, idnumber, section, visible, showdescription,
	completion, completionview, completionexpected, added`

func scanCourseModuleRow(row pgx.Row) (*models.CourseModule, error) {
	var cm models.CourseModule
	err := row.Scan(
		&cm.ID,
		&cm.CourseID,
		&cm.InstanceID,
		&cm.IDNumber,
		&cm.Section,
		&cm.Visible,
		&cm.ShowDescription,
		&cm.Completion,
		&cm.CompletionView,
		&cm.CompletionExpected,
		&cm.Added,
	)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

func scanCourseModule(row pgx.Row) (*models.CourseModule, error) {
	cm, err := scanCourseModuleRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCourseModuleNotFound
	}
	return cm, err
}

// GetCourseModuleByID retrieves a course module by its UUID.
func (d *DB) GetCourseModuleByID(ctx context.Context, id uuid.UUID) (*models.CourseModule, error) {
	query := `SELECT ` + courseModuleColumns + ` FROM course_modules WHERE id = $1`
	return scanCourseModule(d.Pool.QueryRow(ctx, query, id))
}

// GetCourseModuleByInstance retrieves the course module placing a resource.
func (d *DB) GetCourseModuleByInstance(ctx context.Context, instanceID uuid.UUID) (*models.CourseModule, error) {
	query := `SELECT ` + courseModuleColumns + ` FROM course_modules WHERE instance_id = $1`
	return scanCourseModule(d.Pool.QueryRow(ctx, query, instanceID))
}

// GetCompletion returns a user's completion state for a module. Users with
// no recorded progress get an incomplete state.
func (d *DB) GetCompletion(ctx context.Context, cmID, userID uuid.UUID) (*models.CompletionState, error) {
	state := models.CompletionState{CourseModuleID: cmID, UserID: userID}
	err := d.Pool.QueryRow(ctx, `
		SELECT completionstate, viewed, timemodified
		FROM course_modules_completion
		WHERE course_module_id = $1 AND user_id = $2
	`, cmID, userID).Scan(&state.State, &state.Viewed, &state.TimeModified)

	if errors.Is(err, pgx.ErrNoRows) {
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveCompletion stores a user's completion state for a module.
func (d *DB) SaveCompletion(ctx context.Context, state *models.CompletionState) error {
	return d.Pool.QueryRow(ctx, `
		INSERT INTO course_modules_completion (course_module_id, user_id, completionstate, viewed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (course_module_id, user_id) DO UPDATE SET
			completionstate = EXCLUDED.completionstate,
			viewed = EXCLUDED.viewed,
			timemodified = NOW()
		RETURNING timemodified
	`, state.CourseModuleID, state.UserID, state.State, state.Viewed).Scan(&state.TimeModified)
}
