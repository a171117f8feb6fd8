package inventory

import (
	"net/http"

	"schoolshelf/internal/web"

	"github.com/go-chi/chi/v5"
)

// AuditReport is the result of a ledger check.
type AuditReport struct {
	Consistent    bool          `json:"consistent"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

type Handler struct {
	coordinator *Coordinator
	respond     *web.Responder
}

func NewHandler(coordinator *Coordinator, respond *web.Responder) *Handler {
	return &Handler{coordinator: coordinator, respond: respond}
}

// AdminRoutes mounts the ledger audit.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/inventory/audit", h.handleAudit)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	discrepancies := h.coordinator.Verify(r.Context())
	h.respond.JSON(w, r, http.StatusOK, AuditReport{
		Consistent:    len(discrepancies) == 0,
		Discrepancies: discrepancies,
	})
}
