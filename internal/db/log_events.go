package db

import (
	"context"

	"github.com/google/uuid"

	"url2/internal/models"
)

// RecordEvent appends an entry to the activity log.
func (d *DB) RecordEvent(ctx context.Context, ev *models.LogEvent) error {
	return d.Pool.QueryRow(ctx, `
		INSERT INTO log_events (eventname, component, course_id, course_module_id, object_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`,
		ev.Name,
		ev.Component,
		ev.CourseID,
		ev.CourseModuleID,
		ev.ObjectID,
		ev.UserID,
	).Scan(&ev.ID, &ev.CreatedAt)
}

// ListCourseEvents returns a course's most recent log entries, newest first.
func (d *DB) ListCourseEvents(ctx context.Context, courseID uuid.UUID, limit int) ([]models.LogEvent, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, eventname, component, course_id, course_module_id, object_id, user_id, created_at
		FROM log_events
		WHERE course_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, courseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.LogEvent
	for rows.Next() {
		var ev models.LogEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.Name,
			&ev.Component,
			&ev.CourseID,
			&ev.CourseModuleID,
			&ev.ObjectID,
			&ev.UserID,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
