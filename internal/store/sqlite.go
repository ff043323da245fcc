package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/buildplane/takeoff-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id        TEXT PRIMARY KEY,
	loaded_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS models (
	idx           INTEGER PRIMARY KEY,
	filename      TEXT NOT NULL,
	ifc_schema    TEXT,
	element_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS storeys (
	name      TEXT PRIMARY KEY,
	elevation REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS elements (
	model_idx   INTEGER NOT NULL,
	native_id   INTEGER NOT NULL,
	entity_type TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	storey      TEXT NOT NULL DEFAULT '',
	source_file TEXT NOT NULL,
	properties  TEXT,
	PRIMARY KEY (model_idx, native_id)
);

CREATE TABLE IF NOT EXISTS overrides (
	stable_key TEXT PRIMARY KEY,
	code       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_elements_entity_type ON elements(entity_type);
CREATE INDEX IF NOT EXISTS idx_elements_storey ON elements(storey);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceSession(ctx context.Context, sess *model.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"sessions", "models", "storeys", "elements"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, loaded_at) VALUES (?, ?)`,
		sess.ID, sess.LoadedAt.UTC(),
	); err != nil {
		return eris.Wrap(err, "sqlite: insert session")
	}

	for _, m := range sess.Models {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO models (idx, filename, ifc_schema, element_count) VALUES (?, ?, ?, ?)`,
			m.Index, m.Filename, m.Schema, m.ElementCount,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert model %s", m.Filename)
		}
	}

	for name, elev := range sess.Storeys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO storeys (name, elevation) VALUES (?, ?)`,
			name, elev,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert storey %s", name)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO elements (model_idx, native_id, entity_type, name, storey, source_file, properties)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare element insert")
	}
	defer stmt.Close()

	for _, el := range sess.Elements {
		props, err := marshalProperties(el.Properties)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal properties for %s", el.Ref)
		}
		if _, err := stmt.ExecContext(ctx,
			el.Ref.Model, el.Ref.NativeID, el.EntityType, el.Name, el.Storey, el.SourceFile, props,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert element %s", el.Ref)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit session")
	}

	zap.L().Debug("sqlite: session replaced",
		zap.String("session", sess.ID),
		zap.Int("elements", len(sess.Elements)),
	)
	return nil
}

func (s *SQLiteStore) LoadSession(ctx context.Context) (*model.Session, error) {
	sess := &model.Session{Storeys: make(map[string]float64)}

	var loadedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT id, loaded_at FROM sessions LIMIT 1`,
	).Scan(&sess.ID, &loadedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load session row")
	}
	sess.LoadedAt = loadedAt

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, filename, ifc_schema, element_count FROM models ORDER BY idx`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query models")
	}
	defer rows.Close()
	for rows.Next() {
		var m model.ModelInfo
		if err := rows.Scan(&m.Index, &m.Filename, &m.Schema, &m.ElementCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan model")
		}
		sess.Models = append(sess.Models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate models")
	}

	srows, err := s.db.QueryContext(ctx, `SELECT name, elevation FROM storeys`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query storeys")
	}
	defer srows.Close()
	for srows.Next() {
		var name string
		var elev float64
		if err := srows.Scan(&name, &elev); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan storey")
		}
		sess.Storeys[name] = elev
	}
	if err := srows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate storeys")
	}

	erows, err := s.db.QueryContext(ctx,
		`SELECT model_idx, native_id, entity_type, name, storey, source_file, properties
		 FROM elements ORDER BY model_idx, native_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query elements")
	}
	defer erows.Close()
	for erows.Next() {
		var el model.ElementRecord
		var props sql.NullString
		if err := erows.Scan(&el.Ref.Model, &el.Ref.NativeID, &el.EntityType, &el.Name, &el.Storey, &el.SourceFile, &props); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan element")
		}
		if el.Properties, err = unmarshalProperties(props.String); err != nil {
			return nil, eris.Wrapf(err, "sqlite: properties for %s", el.Ref)
		}
		sess.Elements = append(sess.Elements, el)
	}
	if err := erows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate elements")
	}

	return sess, nil
}

func (s *SQLiteStore) SaveOverrides(ctx context.Context, overrides map[model.ElementID]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM overrides`); err != nil {
		return eris.Wrap(err, "sqlite: clear overrides")
	}
	for id, code := range overrides {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO overrides (stable_key, code) VALUES (?, ?)`,
			id.String(), code,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert override %s", id)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit overrides")
	}
	return nil
}

func (s *SQLiteStore) LoadOverrides(ctx context.Context) (map[model.ElementID]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stable_key, code FROM overrides`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query overrides")
	}
	defer rows.Close()

	out := make(map[model.ElementID]string)
	for rows.Next() {
		var key, code string
		if err := rows.Scan(&key, &code); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		id, err := model.ParseElementID(key)
		if err != nil {
			zap.L().Warn("sqlite: dropping malformed override key", zap.String("key", key))
			continue
		}
		out[id] = code
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate overrides")
	}
	return out, nil
}

func marshalProperties(props map[string]model.PropertyValue) (any, error) {
	if len(props) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalProperties(raw string) (map[string]model.PropertyValue, error) {
	if raw == "" {
		return nil, nil
	}
	var props map[string]model.PropertyValue
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, err
	}
	return props, nil
}
