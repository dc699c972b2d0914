package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/icheolgyu/station-compare/internal/weather"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// SQLiteStore is the persistent weather.Store backed by a single readings
// table keyed by (source, timestamp).
type SQLiteStore struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer; collectors and request handlers each
	// acquire pooled connections, so let writers queue instead of failing.
	if _, err := conn.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configuring database: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		temperature REAL,
		humidity REAL,
		pressure REAL,
		timestamp TEXT NOT NULL,
		UNIQUE(source, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_readings_source_ts ON readings(source, timestamp);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Upsert inserts a reading or merges non-nil fields into the existing
// record. The single-statement ON CONFLICT form keeps the merge atomic:
// a later writer always observes the earlier writer's committed row.
func (s *SQLiteStore) Upsert(ctx context.Context, source weather.Source, ts time.Time, fields weather.Fields) error {
	query := `
	INSERT INTO readings (source, temperature, humidity, pressure, timestamp)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(source, timestamp) DO UPDATE SET
		temperature = COALESCE(excluded.temperature, temperature),
		humidity    = COALESCE(excluded.humidity, humidity),
		pressure    = COALESCE(excluded.pressure, pressure)
	`

	_, err := s.conn.ExecContext(ctx, query,
		string(source),
		nullable(fields.Temperature),
		nullable(fields.Humidity),
		nullable(fields.Pressure),
		ts.In(weather.KST).Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting reading: %w", err)
	}
	return nil
}

// Insert is the insert-only fast path. A (source, timestamp) collision
// leaves the stored row untouched and reports weather.ErrDuplicateKey.
func (s *SQLiteStore) Insert(ctx context.Context, source weather.Source, ts time.Time, fields weather.Fields) error {
	query := `
	INSERT OR IGNORE INTO readings (source, temperature, humidity, pressure, timestamp)
	VALUES (?, ?, ?, ?, ?)
	`

	res, err := s.conn.ExecContext(ctx, query,
		string(source),
		nullable(fields.Temperature),
		nullable(fields.Humidity),
		nullable(fields.Pressure),
		ts.In(weather.KST).Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	if affected == 0 {
		return weather.ErrDuplicateKey
	}
	return nil
}

// QueryRange returns readings from the given sources with
// start <= timestamp <= end, ordered by timestamp ascending.
func (s *SQLiteStore) QueryRange(ctx context.Context, sources []weather.Source, start, end time.Time) ([]weather.Reading, error) {
	query := fmt.Sprintf(`
	SELECT source, temperature, humidity, pressure, timestamp
	FROM readings
	WHERE source IN (%s) AND timestamp BETWEEN ? AND ?
	ORDER BY timestamp ASC
	`, placeholders(len(sources)))

	args := sourceArgs(sources)
	args = append(args,
		start.In(weather.KST).Format(timeLayout),
		end.In(weather.KST).Format(timeLayout),
	)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var results []weather.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// QueryLatestSince returns the most recent reading from the given sources
// at or after since, or weather.ErrNotFound. Timestamp ties go to the
// source listed earlier in sources.
func (s *SQLiteStore) QueryLatestSince(ctx context.Context, sources []weather.Source, since time.Time) (weather.Reading, error) {
	query := fmt.Sprintf(`
	SELECT source, temperature, humidity, pressure, timestamp
	FROM readings
	WHERE source IN (%s) AND timestamp >= ?
	ORDER BY timestamp DESC, %s
	LIMIT 1
	`, placeholders(len(sources)), sourceRank(len(sources)))

	args := sourceArgs(sources)
	args = append(args, since.In(weather.KST).Format(timeLayout))
	args = append(args, sourceArgs(sources)...)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("querying latest reading: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return weather.Reading{}, err
		}
		return weather.Reading{}, weather.ErrNotFound
	}
	return scanReading(rows)
}

func scanReading(rows *sql.Rows) (weather.Reading, error) {
	var (
		r      weather.Reading
		src    string
		ta     sql.NullFloat64
		hm     sql.NullFloat64
		pa     sql.NullFloat64
		tsText string
	)

	if err := rows.Scan(&src, &ta, &hm, &pa, &tsText); err != nil {
		return weather.Reading{}, fmt.Errorf("scanning reading: %w", err)
	}

	ts, err := time.ParseInLocation(timeLayout, tsText, weather.KST)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("parsing timestamp: %w", err)
	}

	r.Source = weather.Source(src)
	r.Timestamp = ts
	if ta.Valid {
		r.Temperature = &ta.Float64
	}
	if hm.Valid {
		r.Humidity = &hm.Float64
	}
	if pa.Valid {
		r.Pressure = &pa.Float64
	}
	return r, nil
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// sourceRank builds a CASE expression ranking sources by their position in
// the bound argument list, so precedence never rides on scan order.
func sourceRank(n int) string {
	var b strings.Builder
	b.WriteString("CASE source")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, " WHEN ? THEN %d", i)
	}
	fmt.Fprintf(&b, " ELSE %d END", n)
	return b.String()
}

func sourceArgs(sources []weather.Source) []interface{} {
	args := make([]interface{}, 0, len(sources)+2)
	for _, src := range sources {
		args = append(args, string(src))
	}
	return args
}
