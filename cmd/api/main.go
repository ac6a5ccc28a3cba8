package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/authorworks/credits-api/internal/config"
	"github.com/authorworks/credits-api/internal/domain/catalog"
	"github.com/authorworks/credits-api/internal/domain/ledger"
	"github.com/authorworks/credits-api/internal/domain/order"
	"github.com/authorworks/credits-api/internal/domain/reporting"
	"github.com/authorworks/credits-api/internal/middleware"
	"github.com/authorworks/credits-api/internal/pkg/billing"
	"github.com/authorworks/credits-api/internal/pkg/database"
	"github.com/authorworks/credits-api/internal/pkg/idempotency"
	"github.com/authorworks/credits-api/internal/pkg/jwt"
	pkgresponse "github.com/authorworks/credits-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting AuthorWorks Credits API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	stripeClient := billing.NewClient(billing.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})

	// Fast webhook-event filter; the ledger's reference uniqueness is the
	// actual idempotency guarantee, so a missing Redis is survivable.
	eventDedup := idempotency.NewStore(redis, "stripe:event", 48*time.Hour)

	// ---------- Services ----------
	creditService := ledger.NewService(db)
	catalogService := catalog.NewService(db)
	orderService := order.NewService(db, catalogService, creditService, stripeClient, eventDedup, cfg.FrontendURL)

	// ---------- Handlers ----------
	creditHandler := ledger.NewHandler(creditService)
	catalogHandler := catalog.NewHandler(catalogService)
	orderHandler := order.NewHandler(orderService, stripeClient)
	reportHandler := reporting.NewHandler(db)

	// Pending orders whose checkout never reached Stripe get no webhook;
	// the sweep closes them once the session lifetime has passed.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			n, err := orderService.FailStale(context.Background(), 24*time.Hour)
			if err != nil {
				log.Error().Err(err).Msg("Failed to close stale orders")
				continue
			}
			if n > 0 {
				log.Info().Int64("count", n).Msg("Closed stale pending orders")
			}
		}
	}()

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/packages", catalogHandler.Routes(authMiddleware))
		r.Mount("/orders", orderHandler.Routes(authMiddleware))
		r.Mount("/reports", reportHandler.Routes(authMiddleware))
	})

	r.Mount("/webhooks", orderHandler.WebhookRoutes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
