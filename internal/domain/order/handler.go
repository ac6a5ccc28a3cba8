package order

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"

	"github.com/authorworks/credits-api/internal/domain/catalog"
	"github.com/authorworks/credits-api/internal/middleware"
	"github.com/authorworks/credits-api/internal/pkg/response"
	"github.com/authorworks/credits-api/internal/pkg/validator"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 64 << 10

// WebhookVerifier verifies and parses signed webhook payloads.
type WebhookVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type Handler struct {
	svc      *Service
	verifier WebhookVerifier
}

func NewHandler(svc *Service, verifier WebhookVerifier) *Handler {
	return &Handler{svc: svc, verifier: verifier}
}

type checkoutRequest struct {
	PackageID uuid.UUID `json:"package_id" validate:"required"`
}

// Checkout starts a purchase: pending order plus a hosted payment page URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req checkoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	session, err := h.svc.Checkout(r.Context(), userID, req.PackageID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrPackageNotFound):
			response.NotFound(w, "package not found")
		case errors.Is(err, catalog.ErrPackageInactive):
			response.Conflict(w, "package is no longer available")
		default:
			log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to start checkout")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, session)
}

// List returns the caller's own orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.svc.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, orders)
}

// Get returns one of the caller's orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	o, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			response.NotFound(w, "order not found")
			return
		}
		response.InternalError(w)
		return
	}

	if o.UserID != userID && middleware.GetRole(r.Context()) != "admin" {
		response.NotFound(w, "order not found")
		return
	}

	response.OK(w, o)
}

// Webhook receives Stripe events. No auth middleware; the signature check
// is the authentication.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "failed to read payload")
		return
	}

	event, err := h.verifier.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("Rejected webhook with bad signature")
		response.BadRequest(w, "invalid webhook signature")
		return
	}

	if err := h.svc.HandleEvent(r.Context(), event); err != nil {
		// Non-2xx makes Stripe redeliver; processing is idempotent
		log.Error().Err(err).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("Failed to process webhook event")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]string{"received": event.ID})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/checkout", h.Checkout)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	return r
}

// WebhookRoutes returns webhook router (no auth, but signature verification)
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/stripe", h.Webhook)
	return r
}
