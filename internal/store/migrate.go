package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// migration is one schema step. Steps are applied in version order, each in
// its own transaction, and recorded in schema_migrations.
type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx) error
}

// Databases written by earlier collectors may already contain the
// restaurants table, with or without drive_time and type, so every step
// tolerates pre-existing objects.
var migrations = []migration{
	{1, "create_restaurants", execSQL(`
		CREATE TABLE IF NOT EXISTS restaurants (
			place_id     TEXT PRIMARY KEY,
			name         TEXT,
			address      TEXT,
			lat          REAL,
			lng          REAL,
			rating       REAL,
			maps_url     TEXT,
			last_visited TEXT,
			hidden       INTEGER DEFAULT 0,
			updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)},
	{2, "add_restaurants_drive_time", addColumn("restaurants", "drive_time", "INTEGER")},
	{3, "add_restaurants_type", addColumn("restaurants", "type", "TEXT")},
	{4, "create_fetch_logs", execSQL(`
		CREATE TABLE IF NOT EXISTS fetch_logs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			lat        REAL NOT NULL,
			lng        REAL NOT NULL,
			count      INTEGER NOT NULL DEFAULT 0,
			fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)},
	{5, "add_fetch_logs_run_id", addColumn("fetch_logs", "run_id", "TEXT")},
	{6, "create_indexes", execSQL(`
		CREATE INDEX IF NOT EXISTS idx_restaurants_hidden ON restaurants(hidden);
		CREATE INDEX IF NOT EXISTS idx_fetch_logs_lat_lng ON fetch_logs(lat, lng)`)},
}

// Migrate applies every pending migration.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		log.Info("applying migration", zap.Int("version", m.version), zap.String("name", m.name))
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin migration %d", m.version)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.up(ctx, tx); err != nil {
		return eris.Wrapf(err, "sqlite: apply migration %d (%s)", m.version, m.name)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, formatTime(s.now()),
	); err != nil {
		return eris.Wrapf(err, "sqlite: record migration %d", m.version)
	}

	return eris.Wrapf(tx.Commit(), "sqlite: commit migration %d", m.version)
}

func (s *SQLiteStore) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query applied migrations")
	}
	defer rows.Close() //nolint:errcheck

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan migration row")
		}
		applied[v] = true
	}
	return applied, eris.Wrap(rows.Err(), "sqlite: iterate migrations")
}

func execSQL(stmt string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, stmt)
		return err
	}
}

// addColumn adds a column unless the table already has it. SQLite has no
// ADD COLUMN IF NOT EXISTS.
func addColumn(table, column, decl string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		exists, err := hasColumn(ctx, tx, table, column)
		if err != nil {
			return err
		}
		if exists {
			zap.L().Debug("column already present", zap.String("table", table), zap.String("column", column))
			return nil
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
		return err
	}
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: table info %s", table)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, eris.Wrap(err, "sqlite: scan table info")
		}
		if name == column {
			return true, nil
		}
	}
	return false, eris.Wrap(rows.Err(), "sqlite: iterate table info")
}
