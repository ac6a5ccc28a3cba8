package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/authorworks/credits-api/internal/middleware"
	"github.com/authorworks/credits-api/internal/pkg/response"
	"github.com/authorworks/credits-api/internal/pkg/validator"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type consumeRequest struct {
	UserID        uuid.UUID `json:"user_id" validate:"required"`
	Amount        int64     `json:"amount" validate:"required,gt=0"`
	Reason        string    `json:"reason" validate:"required,max=500"`
	ReferenceID   string    `json:"reference_id"`
	ReferenceType string    `json:"reference_type"`
}

type grantRequest struct {
	UserID        uuid.UUID `json:"user_id" validate:"required"`
	Amount        int64     `json:"amount" validate:"required"`
	TxType        string    `json:"tx_type" validate:"required,tx_type"`
	Reason        string    `json:"reason" validate:"required,max=500"`
	ReferenceID   string    `json:"reference_id"`
	ReferenceType string    `json:"reference_type"`
}

// Balance returns the caller's balance. A user who never received credits
// sees 0.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	acct, err := h.svc.GetAccount(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to get account")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"balance":         acct.Balance,
		"total_purchased": acct.TotalPurchased,
		"total_consumed":  acct.TotalConsumed,
	})
}

// Sufficient is an advisory pre-check used by the generation orchestrator
// before starting paid work. A positive answer is not a reservation.
func (h *Handler) Sufficient(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		response.BadRequest(w, "amount must be a positive integer")
		return
	}

	ok, err := h.svc.HasSufficient(r.Context(), userID, amount)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"sufficient": ok})
}

// Consume debits credits on behalf of a user. Called by internal services
// after a unit of paid work completed; an insufficient balance is the
// expected "payment required" outcome, not an error.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	balance, ok, err := h.svc.Consume(r.Context(), req.UserID, req.Amount, req.Reason, Reference{
		Type: req.ReferenceType,
		ID:   req.ReferenceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		case errors.Is(err, ErrReferenceConflict):
			response.Conflict(w, "reference already used with a different amount")
		default:
			log.Error().Err(err).Str("user_id", req.UserID.String()).Msg("Failed to consume credits")
			response.InternalError(w)
		}
		return
	}

	if !ok {
		response.PaymentRequired(w, "insufficient credit balance")
		return
	}

	// balance comes from the debit itself, not a follow-up read, so it
	// matches the transaction's balance_after even under concurrent traffic.
	response.OK(w, map[string]interface{}{"consumed": req.Amount, "balance": balance})
}

// Grant applies an operator correction or manual grant.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	txID, err := h.svc.Add(r.Context(), req.UserID, req.Amount, TxType(req.TxType), req.Reason, Reference{
		Type: req.ReferenceType,
		ID:   req.ReferenceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidTxType):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrInsufficientCredits):
			response.Conflict(w, "correction would drive balance negative")
		case errors.Is(err, ErrReferenceConflict):
			response.Conflict(w, "reference already used with a different amount")
		default:
			log.Error().Err(err).Str("user_id", req.UserID.String()).Msg("Failed to grant credits")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, map[string]interface{}{"transaction_id": txID})
}

// Charged reports whether a debit was already recorded for a reference.
// Internal services call it after a timed-out Consume to decide whether a
// retry is safe.
func (h *Handler) Charged(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ref := Reference{Type: q.Get("reference_type"), ID: q.Get("reference_id")}
	if ref.IsZero() {
		response.BadRequest(w, "reference_type and reference_id are required")
		return
	}

	txType := TxType(q.Get("tx_type"))
	if txType == "" {
		txType = TxTypeConsumption
	}
	if !txType.Valid() {
		response.BadRequest(w, "invalid transaction type")
		return
	}

	charged, err := h.svc.HasTransactionForReference(r.Context(), txType, ref)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"charged": charged})
}

// ListTransactions returns the caller's own history, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := h.svc.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	total, err := h.svc.CountTransactions(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := (total + limit - 1) / limit
	response.WithMeta(w, transactions, response.Meta{
		Total:   total,
		Page:    offset/limit + 1,
		Limit:   limit,
		Pages:   pages,
		HasNext: offset+limit < total,
		HasPrev: offset > 0,
	})
}

// SearchTransactions is the admin view over all accounts.
func (h *Handler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := SearchFilters{}
	if v := q.Get("user_id"); v != "" {
		filters.UserID = &v
	}
	if v := q.Get("tx_type"); v != "" {
		filters.TxType = &v
	}
	if v := q.Get("reference_type"); v != "" {
		filters.ReferenceType = &v
	}
	if v := q.Get("reference_id"); v != "" {
		filters.ReferenceID = &v
	}
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateFrom = &t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateTo = &t
		}
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))

	transactions, err := h.svc.SearchTransactions(r.Context(), filters)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/balance", h.Balance)
	r.Get("/sufficient", h.Sufficient)
	r.Get("/transactions", h.ListTransactions)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireService())
		r.Post("/consume", h.Consume)
		r.Get("/charged", h.Charged)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin())
		r.Post("/grant", h.Grant)
		r.Get("/transactions/search", h.SearchTransactions)
	})

	return r
}
