package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"

	"github.com/authorworks/credits-api/internal/domain/catalog"
	"github.com/authorworks/credits-api/internal/domain/ledger"
	"github.com/authorworks/credits-api/internal/pkg/billing"
)

// CheckoutProvider creates hosted checkout sessions.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, req billing.CreateCheckoutRequest) (*billing.CreateCheckoutResponse, error)
}

// EventDeduper filters webhook event ids that were already processed.
type EventDeduper interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// CheckoutSession is what the API returns for a started purchase.
type CheckoutSession struct {
	OrderID     uuid.UUID `json:"order_id"`
	CheckoutURL string    `json:"checkout_url"`
}

// Service drives the order lifecycle. The completed transition is the only
// thing that grants purchase credits, and the refunded transition the only
// thing that compensates them; both grants go through the ledger with the
// order as reference, so webhook redeliveries cannot double-credit.
type Service struct {
	repo        *Repository
	packages    *catalog.Service
	credits     ledger.Service
	checkout    CheckoutProvider
	dedup       EventDeduper
	frontendURL string
}

func NewService(db *sqlx.DB, packages *catalog.Service, credits ledger.Service, checkout CheckoutProvider, dedup EventDeduper, frontendURL string) *Service {
	return &Service{
		repo:        NewRepository(db),
		packages:    packages,
		credits:     credits,
		checkout:    checkout,
		dedup:       dedup,
		frontendURL: frontendURL,
	}
}

// Checkout creates a pending order for the package and a Stripe session to
// pay for it.
func (s *Service) Checkout(ctx context.Context, userID, packageID uuid.UUID) (*CheckoutSession, error) {
	pkg, err := s.packages.GetActiveByID(ctx, packageID)
	if err != nil {
		return nil, err
	}

	o := &Order{
		UserID:       userID,
		PackageID:    pkg.ID,
		CreditAmount: pkg.CreditAmount,
		Price:        pkg.Price,
		Currency:     pkg.Currency,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	resp, err := s.checkout.CreateCheckout(ctx, billing.CreateCheckoutRequest{
		OrderID:    o.ID,
		UserID:     userID,
		PriceID:    pkg.StripePriceID,
		SuccessURL: s.frontendURL + "/credits/checkout/success?order_id=" + o.ID.String(),
		CancelURL:  s.frontendURL + "/credits/checkout/cancelled",
	})
	if err != nil {
		// The pending order stays behind; it either gets a session on
		// retry or the FailStale sweep closes it.
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	if err := s.repo.SetSession(ctx, o.ID, resp.SessionID); err != nil {
		return nil, err
	}

	return &CheckoutSession{OrderID: o.ID, CheckoutURL: resp.CheckoutURL}, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// FailStale closes pending orders older than maxAge. Stripe sessions expire
// within 24 hours, so anything pending past that never completed checkout;
// a periodic sweep catches the ones that never even got a session and thus
// never receive a checkout.session.expired webhook.
func (s *Service) FailStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	return s.repo.FailStale(ctx, time.Now().Add(-maxAge))
}

// HandleEvent routes a verified Stripe event. Unknown event types are
// acknowledged and dropped.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	first, err := s.dedup.FirstSeen(ctx, event.ID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("Event dedup store unavailable, relying on ledger idempotency")
	}
	if !first {
		log.Info().Str("event_id", event.ID).Msg("Skipping already-processed webhook event")
		return nil
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("parse checkout session: %w", err)
		}
		return s.handleSessionCompleted(ctx, &session)

	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("parse checkout session: %w", err)
		}
		return s.handleSessionExpired(ctx, &session)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return fmt.Errorf("parse charge: %w", err)
		}
		return s.handleChargeRefunded(ctx, &charge)

	default:
		log.Debug().Str("event_type", string(event.Type)).Msg("Ignoring webhook event")
		return nil
	}
}

// handleSessionCompleted completes the order and grants the purchased
// credits. Redeliveries pass through harmlessly: the guarded transition
// affects zero rows and the grant replays idempotently on the order
// reference.
func (s *Service) handleSessionCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	o, err := s.findBySession(ctx, session)
	if err != nil {
		return err
	}

	paymentIntentID := ""
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}

	if err := s.repo.Transition(ctx, o.ID, StatusPending, StatusCompleted, paymentIntentID); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			return err
		}
		current, getErr := s.repo.GetByID(ctx, o.ID)
		if getErr != nil {
			return getErr
		}
		if current.Status != StatusCompleted {
			// failed or refunded order, payment confirmation is
			// too late to honor automatically
			log.Warn().
				Str("order_id", o.ID.String()).
				Str("status", string(current.Status)).
				Msg("Payment confirmed for terminal order, skipping grant")
			return nil
		}
		// already completed: fall through and let the grant replay
	}

	_, err = s.credits.Add(ctx, o.UserID, o.CreditAmount, ledger.TxTypePurchase,
		"credit package purchase",
		ledger.Reference{Type: "order", ID: o.ID.String()})
	if err != nil {
		return fmt.Errorf("grant purchase credits: %w", err)
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Str("user_id", o.UserID.String()).
		Int64("credits", o.CreditAmount).
		Msg("Order completed, credits granted")

	return nil
}

func (s *Service) handleSessionExpired(ctx context.Context, session *stripe.CheckoutSession) error {
	o, err := s.findBySession(ctx, session)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil
		}
		return err
	}

	if err := s.repo.Transition(ctx, o.ID, StatusPending, StatusFailed, ""); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// already resolved, nothing to do
			return nil
		}
		return err
	}

	log.Info().Str("order_id", o.ID.String()).Msg("Order failed, checkout session expired")
	return nil
}

// handleChargeRefunded moves a completed order to refunded and books the
// compensating negative transaction.
func (s *Service) handleChargeRefunded(ctx context.Context, charge *stripe.Charge) error {
	if charge.PaymentIntent == nil {
		return nil
	}

	o, err := s.repo.GetByPaymentIntentID(ctx, charge.PaymentIntent.ID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("payment_intent", charge.PaymentIntent.ID).Msg("Refund for unknown order")
			return nil
		}
		return err
	}

	if err := s.repo.Transition(ctx, o.ID, StatusCompleted, StatusRefunded, ""); err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			return err
		}
		current, getErr := s.repo.GetByID(ctx, o.ID)
		if getErr != nil {
			return getErr
		}
		if current.Status != StatusRefunded {
			log.Warn().
				Str("order_id", o.ID.String()).
				Str("status", string(current.Status)).
				Msg("Refund event for order that was never completed")
			return nil
		}
		// already refunded: fall through, the compensation replays
	}

	_, err = s.credits.Add(ctx, o.UserID, -o.CreditAmount, ledger.TxTypeRefund,
		"order refunded",
		ledger.Reference{Type: "order", ID: o.ID.String()})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			// Credits were already spent; the order is refunded but the
			// balance cannot go negative. Needs operator follow-up.
			log.Error().
				Str("order_id", o.ID.String()).
				Str("user_id", o.UserID.String()).
				Msg("Refund compensation exceeds remaining balance")
			return nil
		}
		return fmt.Errorf("book refund transaction: %w", err)
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Int64("credits", o.CreditAmount).
		Msg("Order refunded, credits compensated")

	return nil
}

// findBySession resolves an order from a checkout session, preferring the
// stored session id and falling back to the order id we round-tripped
// through client_reference_id.
func (s *Service) findBySession(ctx context.Context, session *stripe.CheckoutSession) (*Order, error) {
	o, err := s.repo.GetBySessionID(ctx, session.ID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, ErrOrderNotFound) {
		return nil, err
	}

	if session.ClientReferenceID != "" {
		orderID, parseErr := uuid.Parse(session.ClientReferenceID)
		if parseErr == nil {
			return s.repo.GetByID(ctx, orderID)
		}
	}

	return nil, ErrOrderNotFound
}
