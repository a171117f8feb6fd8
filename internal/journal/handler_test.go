package journal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"schoolshelf/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageRecorder remembers the page requested from Stream.
type pageRecorder struct {
	*MemoryJournal
	fromID    int64
	batchSize int
}

func (p *pageRecorder) Stream(ctx context.Context, fromID int64, batchSize int) ([]Event, error) {
	p.fromID, p.batchSize = fromID, batchSize
	return p.MemoryJournal.Stream(ctx, fromID, batchSize)
}

func newJournalRouter(t *testing.T) (*pageRecorder, http.Handler) {
	t.Helper()
	rec := &pageRecorder{MemoryJournal: NewMemoryJournal()}
	require.NoError(t, rec.Append(context.Background(),
		Event{AggregateID: uuid.New(), AggregateType: "book", EventType: "BookAdded", EventData: []byte(`{}`), Version: 1},
	))
	r := chi.NewRouter()
	NewHandler(rec, web.NewResponder(nil)).AdminRoutes(r)
	return rec, r
}

func TestStreamPaging(t *testing.T) {
	tests := map[string]struct {
		query     string
		status    int
		fromID    int64
		batchSize int
	}{
		"defaults":           {query: "", status: http.StatusOK, batchSize: defaultPageSize},
		"explicit page":      {query: "?after=7&limit=20", status: http.StatusOK, fromID: 7, batchSize: 20},
		"limit capped":       {query: "?limit=5000", status: http.StatusOK, batchSize: maxPageSize},
		"zero limit":         {query: "?limit=0", status: http.StatusBadRequest},
		"negative limit":     {query: "?limit=-3", status: http.StatusBadRequest},
		"non-numeric cursor": {query: "?after=abc", status: http.StatusBadRequest},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec, router := newJournalRouter(t)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/journal"+tc.query, nil))

			assert.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.fromID, rec.fromID)
				assert.Equal(t, tc.batchSize, rec.batchSize)
			}
		})
	}
}
