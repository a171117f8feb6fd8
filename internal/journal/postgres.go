package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = pq.ErrorCode("23505")

const createJournalTable = `
CREATE TABLE IF NOT EXISTS journal_entries (
	seq          BIGSERIAL PRIMARY KEY,
	aggregate_id UUID        NOT NULL,
	aggregate    TEXT        NOT NULL,
	kind         TEXT        NOT NULL,
	payload      JSONB       NOT NULL,
	version      INTEGER     NOT NULL CHECK (version > 0),
	recorded_at  TIMESTAMPTZ NOT NULL,
	CONSTRAINT journal_entries_aggregate_version UNIQUE (aggregate_id, version)
)`

const selectEntries = `SELECT seq, aggregate_id, aggregate, kind, payload, version, recorded_at FROM journal_entries`

// PostgresJournal keeps the audit trail in the journal_entries table.
type PostgresJournal struct {
	db     *sql.DB
	tracer trace.Tracer
	now    func() time.Time
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{
		db:     db,
		tracer: otel.Tracer("schoolshelf/journal"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnsureSchema creates the journal table if it does not exist yet.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, createJournalTable); err != nil {
		return fmt.Errorf("failed to create journal table: %w", err)
	}
	return nil
}

// Append writes all events or none of them. A version already taken by the
// same aggregate fails the whole batch with ErrConcurrencyConflict.
func (j *PostgresJournal) Append(ctx context.Context, events ...Event) (err error) {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(attribute.Int("journal.batch", len(events))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for i := range events {
		if events[i].Version <= 0 {
			return fmt.Errorf("entry %d (%s): %w", i, events[i].EventType, ErrInvalidVersion)
		}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start journal transaction: %w", err)
	}
	defer tx.Rollback()

	recordedAt := j.now()
	for _, e := range events {
		var seq int64
		row := tx.QueryRowContext(ctx,
			`INSERT INTO journal_entries (aggregate_id, aggregate, kind, payload, version, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING seq`,
			e.AggregateID, e.AggregateType, e.EventType, []byte(e.EventData), e.Version, recordedAt,
		)
		if err := row.Scan(&seq); err != nil {
			if isUniqueViolation(err) {
				span.SetAttributes(attribute.String("journal.conflict", e.AggregateID.String()))
				return fmt.Errorf("%w: %s v%d", ErrConcurrencyConflict, e.AggregateID, e.Version)
			}
			return fmt.Errorf("failed to write %s for %s: %w", e.EventType, e.AggregateID, err)
		}
		span.AddEvent(e.EventType, trace.WithAttributes(
			attribute.Int64("journal.seq", seq),
			attribute.Int("journal.version", e.Version),
		))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal entries: %w", err)
	}
	return nil
}

// Load returns one aggregate's history, oldest version first.
func (j *PostgresJournal) Load(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(attribute.String("journal.aggregate_id", aggregateID.String())),
	)
	defer span.End()

	history, err := j.query(ctx, selectEntries+` WHERE aggregate_id = $1 ORDER BY version`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", aggregateID, err)
	}
	span.SetAttributes(attribute.Int("journal.entries", len(history)))
	return history, nil
}

// Stream pages through the whole journal in append order, starting after
// sequence number fromID.
func (j *PostgresJournal) Stream(ctx context.Context, fromID int64, batchSize int) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "journal.stream",
		trace.WithAttributes(attribute.Int64("journal.after", fromID), attribute.Int("journal.limit", batchSize)),
	)
	defer span.End()

	page, err := j.query(ctx, selectEntries+` WHERE seq > $1 ORDER BY seq LIMIT $2`, fromID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to stream journal after %d: %w", fromID, err)
	}
	return page, nil
}

func (j *PostgresJournal) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e       Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &payload, &e.Version, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EventData = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
