// Package store persists the loaded session and the manual override set
// between CLI invocations. SQLite is the default client-local backend;
// Postgres serves shared deployments. Both treat the session as one atomic
// unit: a load replaces everything, there is no partial mutation.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/buildplane/takeoff-cli/internal/model"
)

// ErrNoSession is returned by LoadSession when nothing has been loaded yet.
var ErrNoSession = eris.New("store: no session loaded")

// Store is the persistence interface for sessions and overrides. The
// override methods satisfy the classification engine's OverrideStore.
type Store interface {
	// Session
	ReplaceSession(ctx context.Context, s *model.Session) error
	LoadSession(ctx context.Context) (*model.Session, error)

	// Overrides (complete-set semantics, not deltas)
	SaveOverrides(ctx context.Context, overrides map[model.ElementID]string) error
	LoadOverrides(ctx context.Context) (map[model.ElementID]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
