package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"url2/internal/display"
	"url2/internal/models"
	"url2/migrations"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// RunMigrations runs all embedded SQL migrations.
func (d *DB) RunMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (d *DB) Close() {
	d.Pool.Close()
}

// SeedDevCourse inserts a demo course with one resource per display mode
// for development. Does nothing when the course already exists.
func (d *DB) SeedDevCourse(ctx context.Context) error {
	var courseID uuid.UUID
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO courses (fullname, shortname, summary)
		VALUES ('Demo Course', 'DEMO101', 'Course seeded for local development')
		ON CONFLICT (shortname) DO NOTHING
		RETURNING id
	`).Scan(&courseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to seed course: %w", err)
	}

	resources := []struct {
		name string
		url  string
		mode display.Mode
	}{
		{"Go website", "https://go.dev", display.Automatic},
		{"Gopher image", "https://go.dev/images/gophers/ladder.svg", display.Automatic},
		{"Package docs", "https://pkg.go.dev", display.Popup},
		{"Example domain", "https://example.org", display.Frame},
	}

	for i, r := range resources {
		u := &models.URL2{
			CourseID:     courseID,
			Name:         r.name,
			IntroFormat:  models.FormatHTML,
			ExternalURL:  r.url,
			Display:      r.mode,
			TimeModified: time.Now(),
		}
		if r.mode == display.Popup {
			u.DisplayOptions = models.DisplayOptions{
				PopupWidth:  display.DefaultPopupWidth,
				PopupHeight: display.DefaultPopupHeight,
			}
		}
		cm := &models.CourseModule{Section: i, Visible: true}
		if err := d.CreateURL2(ctx, u, cm); err != nil {
			return fmt.Errorf("failed to seed url2 %s: %w", r.name, err)
		}
	}

	return nil
}
