// ABOUTME: Request context key types and constants for the api package.
// ABOUTME: Used by middleware to inject auth state and by handlers to read it.
package api

import (
	"context"

	"github.com/fixbay/workshop-ops/internal/auth"
)

type contextKey int

const (
	ctxIdentity contextKey = iota // auth.Identity — verified caller identity
)

// identityFrom returns the verified identity injected by RequireAuthenticated.
// The bool is false when the middleware did not run, which is a wiring bug.
func identityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(auth.Identity)
	return id, ok
}
