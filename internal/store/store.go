// Package store is the data access layer. Every tenant-scoped query runs
// inside [Store.RunScoped], which binds the caller's verified identity to the
// database transaction as two transaction-local settings consumed by the
// Row-Level Security policies. Application query code never adds its own
// organisation filters as a security boundary; the database does the
// filtering.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixbay/workshop-ops/internal/auth"
)

// Setting names referenced by the row policies in migrations/000002_rls.up.sql.
// Changing either requires a coordinated schema migration.
const (
	settingOrgID         = "app.current_user_org_id"
	settingPlatformAdmin = "app.is_platform_admin"
)

// Store wraps the shared connection pool. It is an injectable handle, not a
// package singleton, so tests can construct isolated pools (size 1 for the
// connection-reuse leakage tests).
type Store struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// New creates a Store backed by pool. acquireTimeout bounds the wait for a
// pooled connection in RunScoped and RunSystem; zero means wait forever.
func New(pool *pgxpool.Pool, acquireTimeout time.Duration) *Store {
	return &Store{pool: pool, acquireTimeout: acquireTimeout}
}

// Pool returns the underlying pgxpool for health checks.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// RunScoped executes fn inside a transaction whose visibility is restricted
// to id's organisation by the database row policies.
//
// The two settings are bound with set_config(..., is_local => true), so their
// lifetime is exactly the transaction: COMMIT and ROLLBACK both reset them
// before the connection can be handed to another request. Both settings are
// always bound — a platform-staff identity with no organisation gets an empty
// org value, never a skipped call; what an empty org may see is the row
// policies' decision, not ours.
//
// On any failure, including one returned by fn, the transaction is rolled
// back and the original error is propagated unchanged (after unique-violation
// translation to ErrConflict). The connection is released exactly once on
// every path.
func (s *Store) RunScoped(ctx context.Context, id auth.Identity, fn func(pgx.Tx) error) error {
	org := ""
	if id.OrgID.Valid {
		org = id.OrgID.UUID.String()
	}
	return s.run(ctx, org, id.IsPlatformAdmin(), fn)
}

// RunSystem executes fn with platform scope: empty org, platform-admin flag
// set. It exists for the few code paths that legitimately run before or
// outside any caller identity — login's user lookup and the background
// worker. Never call it from a handler that has an authenticated identity.
func (s *Store) RunSystem(ctx context.Context, fn func(pgx.Tx) error) error {
	return s.run(ctx, "", true, fn)
}

func (s *Store) run(ctx context.Context, org string, platformAdmin bool, fn func(pgx.Tx) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// The rollback must resolve the transaction even when the caller's context
	// is already cancelled (client disconnect mid-transaction). A no-op after
	// a successful commit.
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	if err := bindScope(ctx, tx, org, platformAdmin); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return translateErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// acquire checks a connection out of the pool, waiting at most acquireTimeout.
// A timeout while the caller's own context is still live is reported as
// ErrPoolExhausted; the caller's own cancellation passes through.
func (s *Store) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acqCtx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}
	conn, err := s.pool.Acquire(acqCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrPoolExhausted
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

// bindScope sets the two transaction-local settings the row policies key on.
// set_config with is_local = true scopes the value to the current transaction
// only — this is what makes pooled-connection reuse safe. Values are passed
// as bind parameters; no SQL is built from identity data.
func bindScope(ctx context.Context, tx pgx.Tx, org string, platformAdmin bool) error {
	if _, err := tx.Exec(ctx,
		"SELECT set_config($1, $2, true)", settingOrgID, org); err != nil {
		return fmt.Errorf("bind org scope: %w", err)
	}
	flag := "false"
	if platformAdmin {
		flag = "true"
	}
	if _, err := tx.Exec(ctx,
		"SELECT set_config($1, $2, true)", settingPlatformAdmin, flag); err != nil {
		return fmt.Errorf("bind platform-admin scope: %w", err)
	}
	return nil
}
