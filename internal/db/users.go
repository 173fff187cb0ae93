package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"url2/internal/models"
)

// userColumns is the standard column list for user queries.
const userColumns = `id, sub, COALESCE(username, ''), idnumber, firstname, lastname, email,
	icq, phone1, phone2, institution, department, address, city, timezone, url, lang,
	role, created_at, updated_at`

// scanUser scans a row into a User struct.
func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Sub,
		&user.Username,
		&user.IDNumber,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.ICQ,
		&user.Phone1,
		&user.Phone2,
		&user.Institution,
		&user.Department,
		&user.Address,
		&user.City,
		&user.Timezone,
		&user.URL,
		&user.Lang,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// UpsertUser creates or updates a user based on their OIDC subject.
// The site role is only set on creation; UpdateUserRole changes it later.
func (d *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (sub, username, idnumber, firstname, lastname, email, icq, phone1, phone2,
			institution, department, address, city, timezone, url, lang, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, COALESCE($17, 'user'))
		ON CONFLICT (sub) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username),
			idnumber = EXCLUDED.idnumber,
			firstname = EXCLUDED.firstname,
			lastname = EXCLUDED.lastname,
			email = EXCLUDED.email,
			icq = EXCLUDED.icq,
			phone1 = EXCLUDED.phone1,
			phone2 = EXCLUDED.phone2,
			institution = EXCLUDED.institution,
			department = EXCLUDED.department,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			timezone = EXCLUDED.timezone,
			url = EXCLUDED.url,
			lang = EXCLUDED.lang,
			updated_at = NOW()
		RETURNING id, role, created_at, updated_at
	`

	return d.Pool.QueryRow(ctx, query,
		user.Sub,
		nullIfEmpty(user.Username),
		user.IDNumber,
		user.FirstName,
		user.LastName,
		user.Email,
		user.ICQ,
		user.Phone1,
		user.Phone2,
		user.Institution,
		user.Department,
		user.Address,
		user.City,
		user.Timezone,
		user.URL,
		user.Lang,
		nullIfEmpty(user.Role),
	).Scan(&user.ID, &user.Role, &user.CreatedAt, &user.UpdatedAt)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetUserBySub retrieves a user by their OIDC subject identifier.
func (d *DB) GetUserBySub(ctx context.Context, sub string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE sub = $1`
	return scanUser(d.Pool.QueryRow(ctx, query, sub))
}

// GetUserByUsername retrieves a user by their PKI username.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(d.Pool.QueryRow(ctx, query, username))
}

// GetUserByID retrieves a user by their UUID.
func (d *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(d.Pool.QueryRow(ctx, query, id))
}

// UpdateUserRole updates a user's site role.
func (d *DB) UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) error {
	query := `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`
	tag, err := d.Pool.Exec(ctx, query, role, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser deletes a user by ID. Enrolments and completion rows go with it.
func (d *DB) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`
	tag, err := d.Pool.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
