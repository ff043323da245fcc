package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/buildplane/takeoff-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id        TEXT PRIMARY KEY,
	loaded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS models (
	idx           INTEGER PRIMARY KEY,
	filename      TEXT NOT NULL,
	ifc_schema    TEXT NOT NULL DEFAULT '',
	element_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS storeys (
	name      TEXT PRIMARY KEY,
	elevation DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS elements (
	model_idx   INTEGER NOT NULL,
	native_id   BIGINT NOT NULL,
	entity_type TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	storey      TEXT NOT NULL DEFAULT '',
	source_file TEXT NOT NULL,
	properties  JSONB,
	PRIMARY KEY (model_idx, native_id)
);

CREATE TABLE IF NOT EXISTS overrides (
	stable_key TEXT PRIMARY KEY,
	code       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_elements_entity_type ON elements(entity_type);
CREATE INDEX IF NOT EXISTS idx_elements_storey ON elements(storey);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ReplaceSession(ctx context.Context, sess *model.Session) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{"sessions", "models", "storeys", "elements"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "postgres: clear %s", table)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO sessions (id, loaded_at) VALUES ($1, $2)`,
		sess.ID, sess.LoadedAt.UTC(),
	); err != nil {
		return eris.Wrap(err, "postgres: insert session")
	}

	for _, m := range sess.Models {
		if _, err := tx.Exec(ctx,
			`INSERT INTO models (idx, filename, ifc_schema, element_count) VALUES ($1, $2, $3, $4)`,
			m.Index, m.Filename, m.Schema, m.ElementCount,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert model %s", m.Filename)
		}
	}

	for name, elev := range sess.Storeys {
		if _, err := tx.Exec(ctx,
			`INSERT INTO storeys (name, elevation) VALUES ($1, $2)`,
			name, elev,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert storey %s", name)
		}
	}

	if len(sess.Elements) > 0 {
		rows := make([][]any, 0, len(sess.Elements))
		for _, el := range sess.Elements {
			props, err := marshalProperties(el.Properties)
			if err != nil {
				return eris.Wrapf(err, "postgres: marshal properties for %s", el.Ref)
			}
			rows = append(rows, []any{
				el.Ref.Model, el.Ref.NativeID, el.EntityType, el.Name, el.Storey, el.SourceFile, props,
			})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"elements"},
			[]string{"model_idx", "native_id", "entity_type", "name", "storey", "source_file", "properties"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return eris.Wrap(err, "postgres: copy elements")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit session")
	}
	return nil
}

func (s *PostgresStore) LoadSession(ctx context.Context) (*model.Session, error) {
	sess := &model.Session{Storeys: make(map[string]float64)}

	err := s.pool.QueryRow(ctx,
		`SELECT id, loaded_at FROM sessions LIMIT 1`,
	).Scan(&sess.ID, &sess.LoadedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load session row")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT idx, filename, ifc_schema, element_count FROM models ORDER BY idx`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query models")
	}
	defer rows.Close()
	for rows.Next() {
		var m model.ModelInfo
		if err := rows.Scan(&m.Index, &m.Filename, &m.Schema, &m.ElementCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan model")
		}
		sess.Models = append(sess.Models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate models")
	}

	srows, err := s.pool.Query(ctx, `SELECT name, elevation FROM storeys`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query storeys")
	}
	defer srows.Close()
	for srows.Next() {
		var name string
		var elev float64
		if err := srows.Scan(&name, &elev); err != nil {
			return nil, eris.Wrap(err, "postgres: scan storey")
		}
		sess.Storeys[name] = elev
	}
	if err := srows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate storeys")
	}

	erows, err := s.pool.Query(ctx,
		`SELECT model_idx, native_id, entity_type, name, storey, source_file, properties
		 FROM elements ORDER BY model_idx, native_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query elements")
	}
	defer erows.Close()
	for erows.Next() {
		var el model.ElementRecord
		var props *string
		if err := erows.Scan(&el.Ref.Model, &el.Ref.NativeID, &el.EntityType, &el.Name, &el.Storey, &el.SourceFile, &props); err != nil {
			return nil, eris.Wrap(err, "postgres: scan element")
		}
		if props != nil {
			if el.Properties, err = unmarshalProperties(*props); err != nil {
				return nil, eris.Wrapf(err, "postgres: properties for %s", el.Ref)
			}
		}
		sess.Elements = append(sess.Elements, el)
	}
	if err := erows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate elements")
	}

	return sess, nil
}

func (s *PostgresStore) SaveOverrides(ctx context.Context, overrides map[model.ElementID]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM overrides`); err != nil {
		return eris.Wrap(err, "postgres: clear overrides")
	}
	for id, code := range overrides {
		if _, err := tx.Exec(ctx,
			`INSERT INTO overrides (stable_key, code) VALUES ($1, $2)`,
			id.String(), code,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert override %s", id)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit overrides")
	}
	return nil
}

func (s *PostgresStore) LoadOverrides(ctx context.Context) (map[model.ElementID]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT stable_key, code FROM overrides`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query overrides")
	}
	defer rows.Close()

	out := make(map[model.ElementID]string)
	for rows.Next() {
		var key, code string
		if err := rows.Scan(&key, &code); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		id, err := model.ParseElementID(key)
		if err != nil {
			zap.L().Warn("postgres: dropping malformed override key", zap.String("key", key))
			continue
		}
		out[id] = code
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate overrides")
	}
	return out, nil
}
