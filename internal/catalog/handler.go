// internal/catalog/handler.go
package catalog

import (
	"fmt"
	"net/http"
	"strings"

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

// PublicRoutes mounts the read-only catalog endpoints.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/categories", h.handleCategories)
	r.Get("/books", h.handleListBooks)
	r.Get("/books/{id}", h.handleGetBook)
}

// AdminRoutes mounts the catalog management endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/books", h.handleAddBook)
	r.Post("/books/import", h.handleImportBook)
	r.Patch("/books/{id}", h.handleUpdateBook)
	r.Delete("/books/{id}", h.handleRemoveBook)
	r.Get("/books/{id}/history", h.handleHistory)
	r.Get("/lookup", h.handleLookup)
	r.Get("/lookup/isbn/{isbn}", h.handleLookupISBN)
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	h.respond.JSON(w, r, http.StatusOK, Categories)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	books, err := h.service.ListBooks(r.Context(), Filter{
		Query:    strings.TrimSpace(query.Get("q")),
		Category: Category(query.Get("category")),
	})
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, book)
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var draft Draft
	if err := web.Decode(r, &draft); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	book, err := h.service.AddBook(r.Context(), draft)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusCreated, book)
}

func (h *Handler) handleImportBook(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := web.Decode(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	book, err := h.service.ImportBook(r.Context(), req)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusCreated, book)
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	var patch Patch
	if err := web.Decode(r, &patch); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	book, err := h.service.UpdateBook(r.Context(), id, patch)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, book)
}

func (h *Handler) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	id, err := web.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := h.service.RemoveBook(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.service.SearchMetadata(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, r, http.StatusOK, drafts)
}

func (h *Handler) handleLookupISBN(w http.ResponseWriter, r *http.Request) {
	isbn := chi.URLParam(r, "isbn")
	draft, err := h.service.LookupISBN(r.Context(), isbn)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if draft == nil {
		h.respond.Error(w, r, fmt.Errorf("%w: no volume for isbn %s", ErrNotFound, isbn))
		return
	}
	h.respond.JSON(w, r, http.StatusOK, draft)
}
