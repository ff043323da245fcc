package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/buildplane/takeoff-cli/internal/aggregate"
	"github.com/buildplane/takeoff-cli/internal/classify"
	"github.com/buildplane/takeoff-cli/internal/model"
	"github.com/buildplane/takeoff-cli/internal/store"
	"github.com/buildplane/takeoff-cli/internal/taxonomy"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.Pool.MaxConns),
			MinConns: int32(cfg.Store.Pool.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// takeoffEnv bundles the loaded session with a classified engine.
type takeoffEnv struct {
	store   store.Store
	session *model.Session
	taxo    *taxonomy.Table
	engine  *classify.Engine
	summary classify.Summary
}

func (e *takeoffEnv) Close() {
	_ = e.store.Close()
}

func (e *takeoffEnv) input() aggregate.Input {
	return aggregate.Input{
		Elements:        e.session.Elements,
		Classifications: e.engine.Classifications(),
		Elevations:      e.session.Storeys,
		Taxonomy:        e.taxo,
	}
}

// initEngine opens the store, loads the persisted session, and runs the
// full classification pass with saved overrides applied.
func initEngine(ctx context.Context) (*takeoffEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	session, err := st.LoadSession(ctx)
	if err != nil {
		st.Close() //nolint:errcheck
		if eris.Is(err, store.ErrNoSession) {
			return nil, eris.New("no session loaded; run 'takeoff-cli load <files>' first")
		}
		return nil, err
	}

	taxo := taxonomy.Default()
	engine := classify.NewEngine(taxo, session, st)
	if err := engine.LoadOverrides(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	summary := engine.ClassifyAll()

	return &takeoffEnv{
		store:   st,
		session: session,
		taxo:    taxo,
		engine:  engine,
		summary: summary,
	}, nil
}
