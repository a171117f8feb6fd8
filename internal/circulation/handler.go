// internal/circulation/handler.go
package circulation

import (
	"fmt"
	"net/http"

	"schoolshelf/internal/web"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
	respond *web.Responder
}

func NewHandler(service Service, respond *web.Responder) *Handler {
	return &Handler{service: service, respond: respond}
}

// PublicRoutes mounts the borrow and return endpoints used at the desk.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/loans", h.handleBorrow)
	r.Get("/loans/{id}", h.handleGetLoan)
	r.Post("/loans/{id}/return", h.handleReturn)
	r.Get("/students/{nis}/loans", h.handleStudentLoans)
}

// AdminRoutes mounts the loan reports.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/loans", h.handleListLoans)
	r.Get("/loans/{id}/history", h.handleHistory)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := web.Decode(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	loan, err := h.service.Borrow(r.Context(), req)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusCreated, loan)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, loan)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	loan, err := h.service.Return(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, loan)
}

func (h *Handler) handleStudentLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.FindActiveByBorrower(r.Context(), chi.URLParam(r, "nis"))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, loans)
}

func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	var (
		loans []LoanView
		err   error
	)
	switch status := LoanStatus(r.URL.Query().Get("status")); status {
	case "", LoanActive:
		loans, err = h.service.ListActive(r.Context())
	case LoanReturned:
		loans, err = h.service.ListReturned(r.Context())
	default:
		err = fmt.Errorf("%w: unknown loan status %q", ErrValidation, status)
	}
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, loans)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	events, err := h.service.History(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, events)
}
