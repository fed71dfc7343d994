// ABOUTME: Product and parts catalogue queries, org-scoped via RLS.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Product is a machine or part sold by the workshop.
type Product struct {
	ID            uuid.UUID
	OrgID         uuid.UUID
	Code          string
	Make          string
	Model         string
	Type          string
	Price         float64
	WarrantyYears int
}

const productColumns = `id, organisation_id, code, make, model, type, price, warranty_years`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.OrgID, &p.Code, &p.Make, &p.Model, &p.Type,
		&p.Price, &p.WarrantyYears)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductParams holds the fields for creating a product.
type ProductParams struct {
	Code          string
	Make          string
	Model         string
	Type          string
	Price         float64
	WarrantyYears int
}

// CreateProduct inserts a product for orgID. Duplicate codes within the org
// surface as ErrConflict via RunScoped's translation.
func CreateProduct(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, p ProductParams) (*Product, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO products (organisation_id, code, make, model, type, price, warranty_years)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		orgID, p.Code, p.Make, p.Model, p.Type, p.Price, p.WarrantyYears)
	prod, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return prod, nil
}

// GetProductByCode returns the product with the given code, or (nil, nil) if
// absent or hidden by policy.
func GetProductByCode(ctx context.Context, tx pgx.Tx, code string) (*Product, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE code = $1`, code)
	p, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}
