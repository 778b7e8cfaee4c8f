package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/auth"
	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/metrics"
	"github.com/openshelf/openshelf/internal/service"
)

// LoanHandler handles borrow and return endpoints.
type LoanHandler struct {
	loanService *service.LoanService
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanService *service.LoanService, m *metrics.Metrics, logger zerolog.Logger) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
		metrics:     m,
		logger:      logger.With().Str("handler", "loan").Logger(),
	}
}

// RegisterRoutes registers loan routes. All of them require a user.
func (h *LoanHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/loans", h.handleList)
		r.Post("/loans", h.handleBorrow)
		r.Post("/return/{loanID}", h.handleReturn)
	})
}

// borrowRequest is the body for POST /loans. The borrower is always
// the authenticated caller.
type borrowRequest struct {
	Book int64 `json:"book"`
}

// listLoansResponse is the body for GET /loans.
type listLoansResponse struct {
	Loans []*domain.Loan `json:"loans"`
	Total int64          `json:"total"`
}

// handleList returns loans visible to the caller.
func (h *LoanHandler) handleList(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	query := r.URL.Query()

	input := service.ListLoansInput{}
	if raw := query.Get("user"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, h.logger, domain.NewValidationError("user", "must be a positive integer"))
			return
		}
		input.ForUserID = userID
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

	out, err := h.loanService.List(r.Context(), identity.User, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, listLoansResponse{Loans: out.Loans, Total: out.TotalCount})
}

// handleBorrow takes out a loan for the caller.
func (h *LoanHandler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())

	var req borrowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Book <= 0 {
		writeError(w, h.logger, domain.NewValidationError("book", "must be a positive integer"))
		return
	}

	loan, err := h.loanService.Borrow(r.Context(), identity.User, req.Book)
	if err != nil {
		if h.metrics != nil && errors.Is(err, domain.ErrBookUnavailable) {
			h.metrics.BorrowConflict()
		}
		// A missing book answers like an unavailable one, so callers
		// cannot probe which ids exist in the catalog.
		if errors.Is(err, domain.ErrBookNotFound) {
			err = domain.ErrBookUnavailable
		}
		writeError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.LoanBorrowed()
	}
	writeJSON(w, http.StatusCreated, loan)
}

// handleReturn closes one of the caller's open loans.
func (h *LoanHandler) handleReturn(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())

	loanID, err := pathID(r, "loanID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.loanService.Return(r.Context(), identity.User, loanID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.LoanReturned()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "book returned"})
}
