package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"url2/internal/models"
)

const courseColumns = `id, fullname, shortname, idnumber, summary, format, created_at`

func scanCourse(row pgx.Row) (*models.Course, error) {
	var c models.Course
	err := row.Scan(&c.ID, &c.FullName, &c.ShortName, &c.IDNumber, &c.Summary, &c.Format, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCourse inserts a course.
func (d *DB) CreateCourse(ctx context.Context, c *models.Course) error {
	format := c.Format
	if format == "" {
		format = "topics"
	}

	err := d.Pool.QueryRow(ctx, `
		INSERT INTO courses (fullname, shortname, idnumber, summary, format)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, format, created_at
	`, c.FullName, c.ShortName, c.IDNumber, c.Summary, format).Scan(&c.ID, &c.Format, &c.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateShortName
		}
		return err
	}
	return nil
}

// GetCourseByID retrieves a course by its UUID.
func (d *DB) GetCourseByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	return scanCourse(d.Pool.QueryRow(ctx, query, id))
}

// GetCourseByShortName retrieves a course by its short name.
func (d *DB) GetCourseByShortName(ctx context.Context, shortName string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE shortname = $1`
	return scanCourse(d.Pool.QueryRow(ctx, query, shortName))
}

// EnrolUser gives a user a role in a course, replacing any existing role.
func (d *DB) EnrolUser(ctx context.Context, e *models.Enrolment) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO enrolments (user_id, course_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, course_id) DO UPDATE SET role = EXCLUDED.role
	`, e.UserID, e.CourseID, e.Role)
	return err
}

// GetEnrolment returns a user's enrolment in a course.
func (d *DB) GetEnrolment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrolment, error) {
	var e models.Enrolment
	err := d.Pool.QueryRow(ctx, `
		SELECT user_id, course_id, role FROM enrolments WHERE user_id = $1 AND course_id = $2
	`, userID, courseID).Scan(&e.UserID, &e.CourseID, &e.Role)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEnrolmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEnrolledCourseIDs returns the courses a user is enrolled in.
func (d *DB) ListEnrolledCourseIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT e.course_id FROM enrolments e
		JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = $1
		ORDER BY c.shortname ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
