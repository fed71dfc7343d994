// ABOUTME: Staff account queries. Login lookup runs under RunSystem (no
// ABOUTME: identity exists yet); everything else runs on a scoped transaction.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a staff account. OrgID is invalid for platform staff.
type User struct {
	ID           uuid.UUID
	OrgID        uuid.NullUUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

const userColumns = `id, organisation_id, name, email, password_hash, role`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.OrgID, &u.Name, &u.Email, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserParams holds the fields for creating a staff account.
type UserParams struct {
	OrgID        uuid.NullUUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

// CreateUser inserts a staff account. A duplicate email surfaces as a unique
// violation (ErrConflict via RunScoped/RunSystem translation).
func CreateUser(ctx context.Context, tx pgx.Tx, p UserParams) (*User, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO users (organisation_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		p.OrgID, p.Name, p.Email, p.PasswordHash, p.Role)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email, or (nil, nil) if not
// found. Call only from the login flow, under RunSystem.
func GetUserByEmail(ctx context.Context, tx pgx.Tx, email string) (*User, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given id, or (nil, nil) if absent or
// hidden by policy.
func GetUserByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*User, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// ListUsers returns the staff accounts visible in the current scope, ordered
// by name.
func ListUsers(ctx context.Context, tx pgx.Tx) ([]User, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Name, &u.Email, &u.PasswordHash, &u.Role); err != nil {
			return nil, fmt.Errorf("list users: scan: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return result, nil
}

// DeleteUser deletes the user with the given id. Zero rows affected — whether
// the user does not exist or is hidden by the row policies — returns
// ErrNotFound; callers must not distinguish the two cases in their responses.
func DeleteUser(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
