package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matthewbaird/probenode/internal/probe"
)

// Store is the interface for writing and reading probe readings.
type Store interface {
	// WriteReadings appends readings to the journal.
	WriteReadings(ctx context.Context, readings []probe.Reading) error

	// Query returns readings newest first, plus the total number matching.
	Query(ctx context.Context, opts QueryOptions) (readings []probe.Reading, totalCount int, err error)

	// Summarize aggregates every reading in [since, until], unbounded by
	// any query limit.
	Summarize(ctx context.Context, since, until time.Time) (Summary, error)
}

// SQLiteStore implements Store on a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the sqlite database at dsn and creates the readings
// table if needed.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := NewSQLiteStore(db)
	if err := s.CreateTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating readings table: %w", err)
	}
	return s, nil
}

// NewSQLiteStore creates a SQLiteStore over an open database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateTable creates the readings table and its index.
func (s *SQLiteStore) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS readings (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			channel  TEXT    NOT NULL,
			raw      INTEGER NOT NULL,
			value    REAL    NOT NULL,
			unit     TEXT    NOT NULL DEFAULT '',
			taken_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_readings_channel_time
			ON readings (channel, taken_at DESC);
	`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteReadings inserts readings in one statement.
func (s *SQLiteStore) WriteReadings(ctx context.Context, readings []probe.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO readings (channel, raw, value, unit, taken_at) VALUES `)

	args := make([]any, 0, len(readings)*5)
	for i, r := range readings {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, r.Channel, r.Raw, r.Value, r.Unit, r.At.UnixNano())
	}

	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("inserting readings: %w", err)
	}
	return nil
}

// Query returns readings matching opts, newest first.
func (s *SQLiteStore) Query(ctx context.Context, opts QueryOptions) ([]probe.Reading, int, error) {
	var conditions []string
	var args []any

	if opts.Channel != "" {
		conditions = append(conditions, "channel = ?")
		args = append(args, opts.Channel)
	}
	if opts.Since != nil {
		conditions = append(conditions, "taken_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	if opts.Until != nil {
		conditions = append(conditions, "taken_at <= ?")
		args = append(args, opts.Until.UnixNano())
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT channel, raw, value, unit, taken_at
		FROM readings
		%s
		ORDER BY taken_at DESC, id DESC
		LIMIT ?`, where)

	rows, err := s.db.QueryContext(ctx, query, append(args, opts.limit())...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []probe.Reading
	for rows.Next() {
		var r probe.Reading
		var takenAt int64
		if err := rows.Scan(&r.Channel, &r.Raw, &r.Value, &r.Unit, &takenAt); err != nil {
			return nil, 0, fmt.Errorf("scanning reading: %w", err)
		}
		r.At = time.Unix(0, takenAt)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating readings: %w", err)
	}

	var totalCount int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM readings %s", where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("counting readings: %w", err)
	}

	return readings, totalCount, nil
}

// Summarize aggregates the window in SQL, one row per channel.
func (s *SQLiteStore) Summarize(ctx context.Context, since, until time.Time) (Summary, error) {
	mid := midpoint(since, until).UnixNano()
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.channel,
			COUNT(*), MIN(r.value), MAX(r.value), SUM(r.value),
			MIN(r.taken_at), MAX(r.taken_at),
			SUM(CASE WHEN r.taken_at < ? THEN 1 ELSE 0 END),
			TOTAL(CASE WHEN r.taken_at < ? THEN r.value ELSE 0 END),
			SUM(CASE WHEN r.taken_at >= ? THEN 1 ELSE 0 END),
			TOTAL(CASE WHEN r.taken_at >= ? THEN r.value ELSE 0 END),
			(SELECT f.unit FROM readings f
				WHERE f.channel = r.channel AND f.taken_at >= ? AND f.taken_at <= ?
				ORDER BY f.taken_at, f.id LIMIT 1)
		FROM readings r
		WHERE r.taken_at >= ? AND r.taken_at <= ?
		GROUP BY r.channel`,
		mid, mid, mid, mid,
		since.UnixNano(), until.UnixNano(),
		since.UnixNano(), until.UnixNano())
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing readings: %w", err)
	}
	defer rows.Close()

	out := Summary{Since: since, Until: until, Channels: make(map[string]ChannelSummary)}
	for rows.Next() {
		var channel string
		var acc accumulator
		var first, last int64
		if err := rows.Scan(&channel,
			&acc.count, &acc.min, &acc.max, &acc.sum,
			&first, &last,
			&acc.firstN, &acc.firstSum, &acc.secondN, &acc.secondSum,
			&acc.unit); err != nil {
			return Summary{}, fmt.Errorf("scanning summary: %w", err)
		}
		acc.first, acc.last = time.Unix(0, first), time.Unix(0, last)
		out.Channels[channel] = acc.summary(channel)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterating summary: %w", err)
	}
	return out, nil
}
