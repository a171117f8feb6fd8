package journal

import (
	"fmt"
	"net/http"
	"strconv"

	"schoolshelf/internal/web"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

type Handler struct {
	journal Recorder
	respond *web.Responder
}

func NewHandler(rec Recorder, respond *web.Responder) *Handler {
	return &Handler{journal: rec, respond: respond}
}

// AdminRoutes mounts the journal feed.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/journal", h.handleStream)
}

// handleStream pages through every event with an id greater than ?after=.
// Limits above maxPageSize are capped.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	after, err := queryInt(r, "after", 0)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if limit == 0 {
		h.respond.Error(w, r, fmt.Errorf("%w: limit must be positive", web.ErrBadRequest))
		return
	}
	limit = min(limit, maxPageSize)

	events, err := h.journal.Stream(r.Context(), int64(after), limit)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, events)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", web.ErrBadRequest, key)
	}
	return n, nil
}
