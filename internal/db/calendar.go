package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"url2/internal/models"
)

// SaveCalendarEvent creates or replaces the event of its type for a course
// module.
func (d *DB) SaveCalendarEvent(ctx context.Context, ev *models.CalendarEvent) error {
	return d.Pool.QueryRow(ctx, `
		INSERT INTO calendar_events (course_id, course_module_id, instance_id, modulename, eventtype, name, timestart)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (course_module_id, eventtype) DO UPDATE SET
			name = EXCLUDED.name,
			timestart = EXCLUDED.timestart
		RETURNING id
	`,
		ev.CourseID,
		ev.CourseModuleID,
		ev.InstanceID,
		ev.ModuleName,
		ev.EventType,
		ev.Name,
		ev.TimeStart,
	).Scan(&ev.ID)
}

// DeleteCalendarEvent removes a course module's event of the given type.
// Missing events are not an error.
func (d *DB) DeleteCalendarEvent(ctx context.Context, cmID uuid.UUID, eventType string) error {
	_, err := d.Pool.Exec(ctx, `
		DELETE FROM calendar_events WHERE course_module_id = $1 AND eventtype = $2
	`, cmID, eventType)
	return err
}

// GetCalendarEvent retrieves a calendar event by its UUID.
func (d *DB) GetCalendarEvent(ctx context.Context, id uuid.UUID) (*models.CalendarEvent, error) {
	var ev models.CalendarEvent
	err := d.Pool.QueryRow(ctx, `
		SELECT id, course_id, course_module_id, instance_id, modulename, eventtype, name, timestart
		FROM calendar_events WHERE id = $1
	`, id).Scan(
		&ev.ID,
		&ev.CourseID,
		&ev.CourseModuleID,
		&ev.InstanceID,
		&ev.ModuleName,
		&ev.EventType,
		&ev.Name,
		&ev.TimeStart,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCalendarEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
