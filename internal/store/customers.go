// ABOUTME: Customer queries. All run on a scoped transaction from RunScoped;
// ABOUTME: row visibility is enforced by RLS, the WHERE clauses here are business logic only.
package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Customer is a workshop customer account.
type Customer struct {
	ID            uuid.UUID
	OrgID         uuid.UUID
	AccountNumber string
	AccountType   string // "Personal" or "Business"
	Name          string
	CompanyName   *string
	Address       string
	Postcode      string
	Email         string
	Phone         string
}

const customerColumns = `id, organisation_id, account_number, account_type,
	name, company_name, address, postcode, email, phone`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.OrgID, &c.AccountNumber, &c.AccountType,
		&c.Name, &c.CompanyName, &c.Address, &c.Postcode, &c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CustomerParams holds the mutable customer fields.
type CustomerParams struct {
	AccountNumber string
	AccountType   string
	Name          string
	CompanyName   *string
	Address       string
	Postcode      string
	Email         string
	Phone         string
}

// CreateCustomer inserts a customer for orgID. The org column is also checked
// by the insert row policy, so a mismatched orgID cannot create a row outside
// the transaction's scope. A duplicate account number within the org surfaces
// as a unique violation (translated to ErrConflict by RunScoped).
func CreateCustomer(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, p CustomerParams) (*Customer, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO customers (organisation_id, account_number, account_type,
			name, company_name, address, postcode, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+customerColumns,
		orgID, p.AccountNumber, p.AccountType, p.Name, p.CompanyName,
		p.Address, p.Postcode, p.Email, p.Phone)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// SearchCustomers returns up to limit customers matching q across the common
// contact fields, or the first page of all customers when q is empty. Rows
// from other organisations are filtered by RLS before this query sees them.
func SearchCustomers(ctx context.Context, tx pgx.Tx, q string, limit int) ([]Customer, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	sb := psql.
		Select(customerColumns).
		From("customers").
		OrderBy("name ASC").
		Limit(uint64(limit)) //nolint:gosec // G115: limit validated by caller

	if q != "" {
		term := "%" + q + "%"
		sb = sb.Where(sq.Or{
			sq.ILike{"name": term},
			sq.ILike{"company_name": term},
			sq.ILike{"email": term},
			sq.ILike{"phone": term},
			sq.ILike{"account_number": term},
			sq.ILike{"postcode": term},
		})
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("search customers: build query: %w", err)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	defer rows.Close()

	var result []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.OrgID, &c.AccountNumber, &c.AccountType,
			&c.Name, &c.CompanyName, &c.Address, &c.Postcode, &c.Email, &c.Phone); err != nil {
			return nil, fmt.Errorf("search customers: scan: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	return result, nil
}

// GetCustomer looks a customer up by UUID or, when idOrAccount does not parse
// as a UUID, by account number. Returns (nil, nil) when the row is absent or
// hidden by policy — the two are indistinguishable on purpose.
func GetCustomer(ctx context.Context, tx pgx.Tx, idOrAccount string) (*Customer, error) {
	column := "account_number"
	if _, err := uuid.Parse(idOrAccount); err == nil {
		column = "id"
	}
	row := tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE `+column+` = $1`,
		idOrAccount)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// UpdateCustomer updates the mutable fields of a customer. Returns (nil, nil)
// when no row was updated, whether because it does not exist or because it
// belongs to another organisation. The account number is immutable.
func UpdateCustomer(ctx context.Context, tx pgx.Tx, id uuid.UUID, p CustomerParams) (*Customer, error) {
	row := tx.QueryRow(ctx, `
		UPDATE customers SET
			account_type = $1, name = $2, company_name = $3, address = $4,
			postcode = $5, email = $6, phone = $7, updated_at = now()
		WHERE id = $8
		RETURNING `+customerColumns,
		p.AccountType, p.Name, p.CompanyName, p.Address,
		p.Postcode, p.Email, p.Phone, id)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}
