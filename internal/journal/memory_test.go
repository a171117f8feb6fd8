package journal

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Message string `json:"message"`
}

func TestMemoryJournalAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	bookID := uuid.New()
	other := uuid.New()

	require.NoError(t, j.Append(ctx,
		Event{AggregateID: bookID, AggregateType: "book", EventType: "BookAdded", EventData: []byte(`{}`), Version: 1},
		Event{AggregateID: other, AggregateType: "book", EventType: "BookAdded", EventData: []byte(`{}`), Version: 1},
	))
	require.NoError(t, j.Append(ctx,
		Event{AggregateID: bookID, AggregateType: "book", EventType: "StockAdjusted", EventData: []byte(`{}`), Version: 3},
	))
	require.NoError(t, j.Append(ctx,
		Event{AggregateID: bookID, AggregateType: "book", EventType: "BookUpdated", EventData: []byte(`{}`), Version: 2},
	))

	events, err := j.Load(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{events[0].Version, events[1].Version, events[2].Version})
	assert.Equal(t, "BookUpdated", events[1].EventType)
	assert.NotZero(t, events[0].CreatedAt)
}

func TestMemoryJournalRejectsDuplicateVersion(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	id := uuid.New()

	require.NoError(t, j.Append(ctx, Event{AggregateID: id, EventType: "LoanOpened", Version: 1}))
	err := j.Append(ctx,
		Event{AggregateID: id, EventType: "LoanReturned", Version: 2},
		Event{AggregateID: id, EventType: "LoanReturned", Version: 1},
	)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	events, err := j.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, events, 1, "a rejected batch must not be partially applied")
}

func TestMemoryJournalRejectsInvalidVersion(t *testing.T) {
	err := NewMemoryJournal().Append(context.Background(), Event{AggregateID: uuid.New(), Version: 0})
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestMemoryJournalStream(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	for i := 1; i <= 5; i++ {
		require.NoError(t, j.Append(ctx, Event{AggregateID: uuid.New(), Version: 1}))
	}

	batch, err := j.Stream(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, int64(1), batch[0].ID)

	batch, err = j.Stream(ctx, batch[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, int64(5), batch[2].ID)
}

func TestRecordEncodesPayload(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	id := uuid.New()

	Record(ctx, j, nil, Entry{
		AggregateID:   id,
		AggregateType: "loan",
		EventType:     "LoanOpened",
		Version:       1,
		Data:          testEvent{Message: "hello"},
	})

	events, err := j.Load(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"message":"hello"}`, string(events[0].EventData))
}

func TestRecordLogsAppendFailure(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	id := uuid.New()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	entry := Entry{AggregateID: id, AggregateType: "loan", EventType: "LoanOpened", Version: 1, Data: testEvent{}}
	Record(ctx, j, logger, entry)
	Record(ctx, j, logger, entry)

	assert.Contains(t, buf.String(), "failed to append event")
}

func TestRecordWithNilRecorder(t *testing.T) {
	assert.NotPanics(t, func() {
		Record(context.Background(), nil, nil, Entry{AggregateID: uuid.New(), Version: 1})
	})
}
