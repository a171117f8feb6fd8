package catalog

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"schoolshelf/internal/web"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) http.Handler {
	respond := web.NewResponder(nil,
		web.Rule{Err: ErrValidation, Status: http.StatusUnprocessableEntity},
		web.Rule{Err: ErrNotFound, Status: http.StatusNotFound},
	)
	h := NewHandler(f.svc, respond)
	r := chi.NewRouter()
	h.PublicRoutes(r)
	r.Route("/admin", h.AdminRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerBookLifecycle(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)

	rec := do(t, h, http.MethodPost, "/admin/books",
		`{"title":"Laskar Pelangi","author":"Andrea Hirata","category":"Novel","stock":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Contains(t, rec.Body.String(), `"status":"available"`)

	rec = do(t, h, http.MethodGet, "/books/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Laskar Pelangi"`)

	rec = do(t, h, http.MethodPatch, "/admin/books/"+created.ID.String(), `{"stock":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"borrowed"`)

	rec = do(t, h, http.MethodGet, "/books?q=laskar&category=Novel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	rec = do(t, h, http.MethodGet, "/admin/books/"+created.ID.String()+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BookAdded")

	rec = do(t, h, http.MethodDelete, "/admin/books/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/books/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestHandlerErrors(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(f)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"malformed id", http.MethodGet, "/books/not-a-uuid", "", http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/admin/books", `{"title":`, http.StatusBadRequest},
		{"invalid draft", http.MethodPost, "/admin/books", `{"title":"x"}`, http.StatusUnprocessableEntity},
		{"unknown category filter", http.MethodGet, "/books?category=Cooking", "", http.StatusUnprocessableEntity},
		{"isbn without match", http.MethodGet, "/admin/lookup/isbn/000", "", http.StatusNotFound},
		{"lookup without query", http.MethodGet, "/admin/lookup", "", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerCategories(t *testing.T) {
	h := newTestRouter(newFixture(t))
	rec := do(t, h, http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var categories []Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	assert.Equal(t, Categories, categories)
}
