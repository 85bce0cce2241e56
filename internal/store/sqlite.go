package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/places-cli/internal/model"
)

// TimeFormat is the layout of updated_at and fetched_at values.
const TimeFormat = "2006-01-02 15:04:05"

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock overrides the clock used for updated_at and migration timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection serializes writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertPlace inserts a place or refreshes rating, drive_time and updated_at
// of an existing row. hidden and last_visited are never touched on conflict.
// A missing drive time keeps the stored one and the first stored type wins.
func (s *SQLiteStore) UpsertPlace(ctx context.Context, p model.Place) error {
	if p.PlaceID == "" {
		return eris.New("sqlite: upsert place without place_id")
	}
	mapsURL := p.MapsURL
	if mapsURL == "" {
		mapsURL = model.MapsURL(p.PlaceID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO restaurants (place_id, name, address, lat, lng, rating, maps_url, drive_time, type, hidden, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			rating     = excluded.rating,
			drive_time = COALESCE(excluded.drive_time, restaurants.drive_time),
			type       = COALESCE(restaurants.type, excluded.type),
			updated_at = excluded.updated_at`,
		p.PlaceID, p.Name, p.Address, p.Lat, p.Lng,
		nullFloat(p.Rating), mapsURL, nullInt(p.DriveTime), nullString(p.Category),
		formatTime(s.now()),
	)
	return eris.Wrapf(err, "sqlite: upsert place %s", p.PlaceID)
}

// RecordFetchLog appends one tile's result count.
func (s *SQLiteStore) RecordFetchLog(ctx context.Context, l model.FetchLog) error {
	fetchedAt := l.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_logs (run_id, lat, lng, count, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		nullString(l.RunID), l.Lat, l.Lng, l.Count, formatTime(fetchedAt),
	)
	return eris.Wrap(err, "sqlite: insert fetch log")
}

const placeColumns = `place_id, name, address, lat, lng, rating, maps_url, drive_time, type,
	COALESCE(hidden, 0), last_visited, updated_at`

func (s *SQLiteStore) GetPlace(ctx context.Context, placeID string) (*model.Place, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+placeColumns+` FROM restaurants WHERE place_id = ?`, placeID)
	p, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "place %s", placeID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get place %s", placeID)
	}
	return p, nil
}

func (s *SQLiteStore) ListPlaces(ctx context.Context, filter PlaceFilter) ([]model.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM restaurants WHERE 1=1`
	var args []any

	if filter.Hidden != nil {
		query += ` AND COALESCE(hidden, 0) = ?`
		args = append(args, boolToInt(*filter.Hidden))
	}
	query += ` ORDER BY name, place_id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return s.queryPlaces(ctx, "list places", query, args...)
}

// RandomPlaces returns up to n visible places in random order.
func (s *SQLiteStore) RandomPlaces(ctx context.Context, n int) ([]model.Place, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.queryPlaces(ctx, "random places",
		`SELECT `+placeColumns+` FROM restaurants WHERE COALESCE(hidden, 0) = 0 ORDER BY RANDOM() LIMIT ?`, n)
}

func (s *SQLiteStore) SetHidden(ctx context.Context, placeID string, hidden bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE restaurants SET hidden = ? WHERE place_id = ?`,
		boolToInt(hidden), placeID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set hidden %s", placeID)
	}
	return checkRowsAffected(res, placeID)
}

// SetLastVisited stores the visit date. A nil or empty date clears it.
func (s *SQLiteStore) SetLastVisited(ctx context.Context, placeID string, date *string) error {
	var v any
	if date != nil && *date != "" {
		v = *date
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE restaurants SET last_visited = ?, updated_at = ? WHERE place_id = ?`,
		v, formatTime(s.now()), placeID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set last visited %s", placeID)
	}
	return checkRowsAffected(res, placeID)
}

// HeatCells sums fetch counts per tile centre across all runs.
func (s *SQLiteStore) HeatCells(ctx context.Context) ([]model.HeatCell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lat, lng, SUM(count) FROM fetch_logs GROUP BY lat, lng ORDER BY lat, lng`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: heat cells")
	}
	defer rows.Close() //nolint:errcheck

	var cells []model.HeatCell
	for rows.Next() {
		var c model.HeatCell
		if err := rows.Scan(&c.Lat, &c.Lng, &c.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan heat cell")
		}
		cells = append(cells, c)
	}
	return cells, eris.Wrap(rows.Err(), "sqlite: heat cells iterate")
}

func (s *SQLiteStore) queryPlaces(ctx context.Context, op, query string, args ...any) ([]model.Place, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s scan", op)
		}
		out = append(out, *p)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func checkRowsAffected(res sql.Result, placeID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "place %s", placeID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPlace(row scannable) (*model.Place, error) {
	var (
		p           model.Place
		name, addr  sql.NullString
		mapsURL     sql.NullString
		category    sql.NullString
		lastVisited sql.NullString
		rating      sql.NullFloat64
		driveTime   sql.NullInt64
		lat, lng    sql.NullFloat64
		hidden      int
		updatedAt   any
	)
	if err := row.Scan(&p.PlaceID, &name, &addr, &lat, &lng, &rating, &mapsURL,
		&driveTime, &category, &hidden, &lastVisited, &updatedAt); err != nil {
		return nil, err
	}

	p.Name = name.String
	p.Address = addr.String
	p.Lat = lat.Float64
	p.Lng = lng.Float64
	p.MapsURL = mapsURL.String
	if p.MapsURL == "" {
		p.MapsURL = model.MapsURL(p.PlaceID)
	}
	p.Category = category.String
	p.Hidden = hidden != 0
	if rating.Valid {
		r := rating.Float64
		p.Rating = &r
	}
	if driveTime.Valid {
		d := int(driveTime.Int64)
		p.DriveTime = &d
	}
	if lastVisited.Valid {
		v := lastVisited.String
		p.LastVisited = &v
	}
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// parseTime accepts both representations the driver may return for a
// DATETIME column.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	}
	return time.Time{}
}

func parseTimeString(s string) time.Time {
	for _, layout := range []string{TimeFormat, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
