package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJournal keeps events in process memory.
type MemoryJournal struct {
	mu       sync.RWMutex
	events   []Event
	versions map[uuid.UUID]map[int]struct{}
	nextID   int64
}

// NewMemoryJournal returns an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{versions: make(map[uuid.UUID]map[int]struct{})}
}

// Append stores events atomically.
func (j *MemoryJournal) Append(ctx context.Context, events ...Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	pending := make(map[uuid.UUID]map[int]struct{})
	for i, event := range events {
		if event.Version <= 0 {
			return fmt.Errorf("event %d: %w", i, ErrInvalidVersion)
		}
		if _, seen := j.versions[event.AggregateID][event.Version]; seen {
			return ErrConcurrencyConflict
		}
		if _, seen := pending[event.AggregateID][event.Version]; seen {
			return ErrConcurrencyConflict
		}
		if pending[event.AggregateID] == nil {
			pending[event.AggregateID] = make(map[int]struct{})
		}
		pending[event.AggregateID][event.Version] = struct{}{}
	}

	now := time.Now().UTC()
	for _, event := range events {
		j.nextID++
		event.ID = j.nextID
		event.CreatedAt = now
		j.events = append(j.events, event)

		if j.versions[event.AggregateID] == nil {
			j.versions[event.AggregateID] = make(map[int]struct{})
		}
		j.versions[event.AggregateID][event.Version] = struct{}{}
	}
	return nil
}

// Load returns the events of one aggregate ordered by version.
func (j *MemoryJournal) Load(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	events := make([]Event, 0)
	for _, event := range j.events {
		if event.AggregateID == aggregateID {
			events = append(events, event)
		}
	}
	sort.SliceStable(events, func(a, b int) bool { return events[a].Version < events[b].Version })
	return events, nil
}

// Stream returns up to batchSize events with an id greater than fromID.
func (j *MemoryJournal) Stream(ctx context.Context, fromID int64, batchSize int) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	events := make([]Event, 0, batchSize)
	for _, event := range j.events {
		if event.ID <= fromID {
			continue
		}
		if len(events) == batchSize {
			break
		}
		events = append(events, event)
	}
	return events, nil
}
