package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"url2/internal/display"
	"url2/internal/models"
)

// url2Columns is the standard column list for url2 queries.
const url2Columns = `id, course_id, name, intro, introformat, externalurl2, display,
	displayoptions, parameters, timemodified, created_at,
	health_status, health_checked_at, health_error`

// scanURL2 scans a row into a URL2 struct.
func scanURL2(row pgx.Row) (*models.URL2, error) {
	u, err := scanURL2Row(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrURL2NotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// scanURL2s scans multiple rows into a slice of URL2s.
func scanURL2s(rows pgx.Rows) ([]models.URL2, error) {
	defer rows.Close()

	var out []models.URL2
	for rows.Next() {
		u, err := scanURL2Row(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}

	return out, rows.Err()
}

func scanURL2Row(row pgx.Row) (*models.URL2, error) {
	var (
		u          models.URL2
		mode       int
		optionsRaw []byte
		paramsRaw  []byte
	)
	err := row.Scan(
		&u.ID,
		&u.CourseID,
		&u.Name,
		&u.Intro,
		&u.IntroFormat,
		&u.ExternalURL,
		&mode,
		&optionsRaw,
		&paramsRaw,
		&u.TimeModified,
		&u.CreatedAt,
		&u.HealthStatus,
		&u.HealthCheckedAt,
		&u.HealthError,
	)
	if err != nil {
		return nil, err
	}

	u.Display = display.Mode(mode)
	if len(optionsRaw) > 0 {
		if err := json.Unmarshal(optionsRaw, &u.DisplayOptions); err != nil {
			return nil, fmt.Errorf("decode display options of %s: %w", u.ID, err)
		}
	}
	if len(paramsRaw) > 0 {
		if err := json.Unmarshal(paramsRaw, &u.Parameters); err != nil {
			return nil, fmt.Errorf("decode parameters of %s: %w", u.ID, err)
		}
	}

	return &u, nil
}

func encodeJSONColumns(u *models.URL2) (options, parameters []byte, err error) {
	options, err = json.Marshal(u.DisplayOptions)
	if err != nil {
		return nil, nil, err
	}
	tmpl := u.Parameters
	if tmpl == nil {
		tmpl = models.ParameterTemplate{}
	}
	parameters, err = json.Marshal(tmpl)
	if err != nil {
		return nil, nil, err
	}
	return options, parameters, nil
}

// CreateURL2 inserts a resource and the course module placing it, in one
// transaction. IDs and timestamps are filled in on both structs.
func (d *DB) CreateURL2(ctx context.Context, u *models.URL2, cm *models.CourseModule) error {
	options, parameters, err := encodeJSONColumns(u)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, d.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO url2s (course_id, name, intro, introformat, externalurl2, display,
				displayoptions, parameters, timemodified)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, health_status
		`,
			u.CourseID,
			u.Name,
			u.Intro,
			u.IntroFormat,
			u.ExternalURL,
			int(u.Display),
			options,
			parameters,
			u.TimeModified,
		).Scan(&u.ID, &u.CreatedAt, &u.HealthStatus)
		if err != nil {
			return fmt.Errorf("insert url2: %w", err)
		}

		cm.CourseID = u.CourseID
		cm.InstanceID = u.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO course_modules (course_id, instance_id, idnumber, section, visible,
				showdescription, completion, completionview, completionexpected)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, added
		`,
			cm.CourseID,
			cm.InstanceID,
			cm.IDNumber,
			cm.Section,
			cm.Visible,
			cm.ShowDescription,
			cm.Completion,
			cm.CompletionView,
			cm.CompletionExpected,
		).Scan(&cm.ID, &cm.Added)
		if err != nil {
			return fmt.Errorf("insert course module: %w", err)
		}
		return nil
	})
}

// UpdateURL2 saves the editable fields of a resource.
func (d *DB) UpdateURL2(ctx context.Context, u *models.URL2) error {
	options, parameters, err := encodeJSONColumns(u)
	if err != nil {
		return err
	}

	tag, err := d.Pool.Exec(ctx, `
		UPDATE url2s SET
			name = $2, intro = $3, introformat = $4, externalurl2 = $5, display = $6,
			displayoptions = $7, parameters = $8, timemodified = $9
		WHERE id = $1
	`,
		u.ID,
		u.Name,
		u.Intro,
		u.IntroFormat,
		u.ExternalURL,
		int(u.Display),
		options,
		parameters,
		u.TimeModified,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrURL2NotFound
	}
	return nil
}

// UpdateCourseModule saves placement and completion settings.
func (d *DB) UpdateCourseModule(ctx context.Context, cm *models.CourseModule) error {
	tag, err := d.Pool.Exec(ctx, `
		UPDATE course_modules SET
			idnumber = $2, section = $3, visible = $4, showdescription = $5,
			completion = $6, completionview = $7, completionexpected = $8
		WHERE id = $1
	`,
		cm.ID,
		cm.IDNumber,
		cm.Section,
		cm.Visible,
		cm.ShowDescription,
		cm.Completion,
		cm.CompletionView,
		cm.CompletionExpected,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseModuleNotFound
	}
	return nil
}

// DeleteURL2 removes a resource. Its course module, completion rows and
// calendar events go with it.
func (d *DB) DeleteURL2(ctx context.Context, id uuid.UUID) error {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM url2s WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrURL2NotFound
	}
	return nil
}

// GetURL2ByID retrieves a resource by its UUID.
func (d *DB) GetURL2ByID(ctx context.Context, id uuid.UUID) (*models.URL2, error) {
	query := `SELECT ` + url2Columns + ` FROM url2s WHERE id = $1`
	return scanURL2(d.Pool.QueryRow(ctx, query, id))
}

// ListURL2sByCourse returns a course's resources in section order.
func (d *DB) ListURL2sByCourse(ctx context.Context, courseID uuid.UUID) ([]models.URL2, error) {
	query := `
		SELECT u.id, u.course_id, u.name, u.intro, u.introformat, u.externalurl2, u.display,
			u.displayoptions, u.parameters, u.timemodified, u.created_at,
			u.health_status, u.health_checked_at, u.health_error
		FROM url2s u
		JOIN course_modules cm ON cm.instance_id = u.id
		WHERE u.course_id = $1
		ORDER BY cm.section ASC, cm.added ASC
	`
	rows, err := d.Pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	return scanURL2s(rows)
}

// GetURL2sNeedingHealthCheck returns web links never checked or last checked
// before maxAge ago, oldest first.
func (d *DB) GetURL2sNeedingHealthCheck(ctx context.Context, maxAge time.Duration, limit int) ([]models.URL2, error) {
	query := `SELECT ` + url2Columns + `
		FROM url2s
		WHERE (externalurl2 ILIKE 'http://%' OR externalurl2 ILIKE 'https://%')
		  AND (health_checked_at IS NULL OR health_checked_at < $1)
		ORDER BY health_checked_at ASC NULLS FIRST
		LIMIT $2
	`
	rows, err := d.Pool.Query(ctx, query, time.Now().Add(-maxAge), limit)
	if err != nil {
		return nil, err
	}
	return scanURL2s(rows)
}

// UpdateURL2HealthStatus records the outcome of a link check.
func (d *DB) UpdateURL2HealthStatus(ctx context.Context, id uuid.UUID, status string, errMsg *string) error {
	query := `
		UPDATE url2s SET health_status = $2, health_checked_at = NOW(), health_error = $3
		WHERE id = $1
	`
	tag, err := d.Pool.Exec(ctx, query, id, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrURL2NotFound
	}
	return nil
}

// CountURL2sByDisplay returns the number of resources per stored display mode.
func (d *DB) CountURL2sByDisplay(ctx context.Context) (map[display.Mode]int, error) {
	rows, err := d.Pool.Query(ctx, `SELECT display, COUNT(*) FROM url2s GROUP BY display`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[display.Mode]int)
	for rows.Next() {
		var mode, count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, err
		}
		counts[display.Mode(mode)] = count
	}

	return counts, rows.Err()
}
