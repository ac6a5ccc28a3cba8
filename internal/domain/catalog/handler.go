package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/authorworks/credits-api/internal/middleware"
	"github.com/authorworks/credits-api/internal/pkg/response"
	"github.com/authorworks/credits-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type packageRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	CreditAmount  int64  `json:"credit_amount" validate:"required,gt=0"`
	Price         int64  `json:"price" validate:"gte=0"`
	Currency      string `json:"currency" validate:"currency"`
	StripePriceID string `json:"stripe_price_id" validate:"max=255"`
	IsActive      bool   `json:"is_active"`
	SortOrder     int    `json:"sort_order"`
}

// List is the public storefront view: active packages only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	packages, err := h.svc.ListActive(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list packages")
		response.InternalError(w)
		return
	}

	response.OK(w, packages)
}

// ListAll is the admin view, including deactivated packages.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	packages, err := h.svc.ListAll(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, packages)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid package id")
		return
	}

	p, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			response.NotFound(w, "package not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	p := &Package{
		Name:          req.Name,
		CreditAmount:  req.CreditAmount,
		Price:         req.Price,
		Currency:      req.Currency,
		StripePriceID: req.StripePriceID,
		IsActive:      req.IsActive,
		SortOrder:     req.SortOrder,
	}
	if err := h.svc.Create(r.Context(), p); err != nil {
		log.Error().Err(err).Msg("Failed to create package")
		response.InternalError(w)
		return
	}

	response.Created(w, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid package id")
		return
	}

	var req packageRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	p := &Package{
		ID:            id,
		Name:          req.Name,
		CreditAmount:  req.CreditAmount,
		Price:         req.Price,
		Currency:      req.Currency,
		StripePriceID: req.StripePriceID,
		IsActive:      req.IsActive,
		SortOrder:     req.SortOrder,
	}
	if err := h.svc.Update(r.Context(), p); err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			response.NotFound(w, "package not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid package id")
		return
	}

	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			response.NotFound(w, "package not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin())
		r.Get("/all", h.ListAll)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}
