// Package journal records an append-only audit trail of catalog and loan
// mutations. It is not the source of truth for state; the in-memory stores are.
package journal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version already recorded")
	ErrInvalidVersion      = errors.New("invalid version number")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is a single recorded mutation of an aggregate.
type Event struct {
	ID            int64               `json:"id"`
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	AggregateType string              `json:"aggregate_type"`
	EventType     string              `json:"event_type"`
	EventData     jsoniter.RawMessage `json:"event_data"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Recorder appends and reads back events.
type Recorder interface {
	// Append stores events atomically. A version already recorded for the same
	// aggregate fails the whole batch with ErrConcurrencyConflict.
	Append(ctx context.Context, events ...Event) error
	// Load returns the events of one aggregate ordered by version.
	Load(ctx context.Context, aggregateID uuid.UUID) ([]Event, error)
	// Stream returns up to batchSize events with an id greater than fromID.
	Stream(ctx context.Context, fromID int64, batchSize int) ([]Event, error)
}

// Entry is the unencoded form of an event handed to Record.
type Entry struct {
	AggregateID   uuid.UUID
	AggregateType string
	EventType     string
	Version       int
	Data          any
}

// Record encodes the entry and appends it. The journal is an audit trail, so
// failures are logged and swallowed.
func Record(ctx context.Context, rec Recorder, logger *slog.Logger, entry Entry) {
	if rec == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	data, err := json.Marshal(entry.Data)
	if err != nil {
		logger.ErrorContext(ctx, "failed to marshal event data",
			"event_type", entry.EventType, "aggregate_id", entry.AggregateID, "error", err)
		return
	}

	event := Event{
		AggregateID:   entry.AggregateID,
		AggregateType: entry.AggregateType,
		EventType:     entry.EventType,
		EventData:     data,
		Version:       entry.Version,
	}
	if err := rec.Append(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to append event",
			"event_type", entry.EventType, "aggregate_id", entry.AggregateID, "version", entry.Version, "error", err)
	}
}
