// ABOUTME: Organisation (tenant) queries. Creation is platform-only.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Organisation is a tenant: one workshop business.
type Organisation struct {
	ID   uuid.UUID
	Name string
}

// CreateOrganisation inserts a new tenant. Only reachable from platform-admin
// scoped transactions; the organisations insert policy rejects everyone else.
func CreateOrganisation(ctx context.Context, tx pgx.Tx, name string) (*Organisation, error) {
	var org Organisation
	err := tx.QueryRow(ctx,
		`INSERT INTO organisations (name) VALUES ($1) RETURNING id, name`,
		name).Scan(&org.ID, &org.Name)
	if err != nil {
		return nil, fmt.Errorf("create organisation: %w", err)
	}
	return &org, nil
}

// GetOrganisation returns the organisation with the given id, or (nil, nil)
// if absent or hidden by policy.
func GetOrganisation(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Organisation, error) {
	var org Organisation
	err := tx.QueryRow(ctx,
		`SELECT id, name FROM organisations WHERE id = $1`, id).Scan(&org.ID, &org.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organisation: %w", err)
	}
	return &org, nil
}
