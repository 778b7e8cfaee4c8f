package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/auth"
	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/policy"
	"github.com/openshelf/openshelf/internal/service"
)

// BookHandler handles catalog endpoints.
type BookHandler struct {
	bookService *service.BookService
	logger      zerolog.Logger
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(bookService *service.BookService, logger zerolog.Logger) *BookHandler {
	return &BookHandler{
		bookService: bookService,
		logger:      logger.With().Str("handler", "book").Logger(),
	}
}

// RegisterRoutes registers catalog routes. Reads are open to
// anonymous callers, writes require an admin.
func (h *BookHandler) RegisterRoutes(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(policy.CanReadBooks))
			r.Get("/", h.handleList)
			r.Get("/{id}", h.handleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(policy.CanWriteBooks))
			r.Post("/", h.handleCreate)
			r.Put("/{id}", h.handleUpdate)
			r.Delete("/{id}", h.handleDelete)
		})
	})
}

// bookRequest is the body for creating and updating books.
type bookRequest struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	ISBN      string `json:"isbn"`
	PageCount int    `json:"page_count"`
}

// listBooksResponse is the body for GET /books.
type listBooksResponse struct {
	Books []*domain.Book `json:"books"`
	Total int64          `json:"total"`
}

// handleList returns catalog entries matching the query filters.
func (h *BookHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListBooksInput{
		Title:    query.Get("title"),
		Author:   query.Get("author"),
		ISBN:     query.Get("isbn"),
		SortBy:   query.Get("sort"),
		SortDesc: query.Get("order") == "desc",
	}

	if raw := query.Get("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, h.logger, domain.NewValidationError("available", "must be true or false"))
			return
		}
		input.Available = &available
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, h.logger, domain.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		input.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, h.logger, domain.NewValidationError("offset", "must be a non-negative integer"))
			return
		}
		input.Offset = offset
	}

	out, err := h.bookService.List(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, listBooksResponse{Books: out.Books, Total: out.TotalCount})
}

// handleGet returns a single catalog entry.
func (h *BookHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	book, err := h.bookService.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// handleCreate adds a book to the catalog.
func (h *BookHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	book, err := h.bookService.Create(r.Context(), service.CreateBookInput{
		Title:     req.Title,
		Author:    req.Author,
		ISBN:      req.ISBN,
		PageCount: req.PageCount,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

// handleUpdate replaces the descriptive fields of a book.
func (h *BookHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	book, err := h.bookService.Update(r.Context(), service.UpdateBookInput{
		ID:        id,
		Title:     req.Title,
		Author:    req.Author,
		ISBN:      req.ISBN,
		PageCount: req.PageCount,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// handleDelete removes a book from the catalog.
func (h *BookHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.bookService.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID parses a numeric URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}
