package reporting

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/authorworks/credits-api/internal/middleware"
	"github.com/authorworks/credits-api/internal/pkg/response"
)

// Handler serves read-only admin reports straight off the repository; there
// is no business logic to put a service layer in front of.
type Handler struct {
	repo *Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

func (h *Handler) CreditSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.CreditSummary(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build credit summary")
		response.InternalError(w)
		return
	}
	response.OK(w, summary)
}

func (h *Handler) PackageSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.repo.PackageSales(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build package sales report")
		response.InternalError(w)
		return
	}
	response.OK(w, sales)
}

func (h *Handler) DailyConsumption(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -30)
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "since must be RFC3339")
			return
		}
		since = parsed
	}

	rows, err := h.repo.DailyConsumption(r.Context(), since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build consumption report")
		response.InternalError(w)
		return
	}
	response.OK(w, rows)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())
	r.Get("/credits/summary", h.CreditSummary)
	r.Get("/packages/sales", h.PackageSales)
	r.Get("/credits/consumption", h.DailyConsumption)
	return r
}
