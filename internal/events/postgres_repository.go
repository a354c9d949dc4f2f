package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the events table when it does not exist.
const Schema = `
	CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		venue      TEXT NOT NULL DEFAULT '',
		lat        DOUBLE PRECISION NOT NULL,
		lng        DOUBLE PRECISION NOT NULL,
		starts_at  TIMESTAMPTZ NOT NULL,
		ends_at    TIMESTAMPTZ NOT NULL,
		CHECK (ends_at >= starts_at)
	);
	CREATE INDEX IF NOT EXISTS events_ends_at_idx ON events (ends_at);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL events repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the events table.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create events schema: %w", err)
	}
	return nil
}

// List returns events ordered by start time.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Event, error) {
	query := `
		SELECT id, title, venue, lat, lng, starts_at, ends_at
		FROM events
		WHERE $1::timestamptz IS NULL OR ends_at >= $1
		ORDER BY starts_at ASC
	`

	var endsAfter *time.Time
	if !opts.EndsAfter.IsZero() {
		endsAfter = &opts.EndsAfter
	}

	rows, err := r.pool.Query(ctx, query, endsAfter)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		err := row.Scan(
			&e.ID,
			&e.Title,
			&e.Venue,
			&e.Location.Lat,
			&e.Location.Lng,
			&e.Start,
			&e.End,
		)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}

	return events, nil
}

// Upsert inserts or replaces events by ID.
func (r *PostgresRepository) Upsert(ctx context.Context, events []Event) error {
	query := `
		INSERT INTO events (id, title, venue, lat, lng, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			venue = EXCLUDED.venue,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at
	`

	batch := &pgx.Batch{}
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("event %q: %w", e.ID, err)
		}
		batch.Queue(query, e.ID, e.Title, e.Venue, e.Location.Lat, e.Location.Lng, e.Start, e.End)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert events: %w", err)
	}
	return nil
}
