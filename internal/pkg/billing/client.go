package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
)

// signatureTolerance allows for clock drift between Stripe and this service.
const signatureTolerance = 5 * time.Minute

// Config holds Stripe configuration
type Config struct {
	SecretKey     string // API secret key (sk_*)
	WebhookSecret string // Webhook endpoint signing secret (whsec_*)
}

// Client wraps the Stripe SDK for checkout and webhook verification
type Client struct {
	config Config
}

// CreateCheckoutRequest represents a hosted-checkout creation request
type CreateCheckoutRequest struct {
	OrderID    uuid.UUID // Internal order id, round-tripped through Stripe
	UserID     uuid.UUID
	PriceID    string // Stripe price identifier of the credit package
	SuccessURL string
	CancelURL  string
}

// CreateCheckoutResponse carries the session identifiers the order keeps
type CreateCheckoutResponse struct {
	SessionID   string // Checkout session id (cs_*)
	CheckoutURL string // URL to redirect the user to
}

// NewClient creates a new Stripe client. The SDK key is process-global,
// matching how the SDK is designed to be used.
func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{config: cfg}
}

// CreateCheckout creates a one-time-payment checkout session for a credit
// package price.
func (c *Client) CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*CreateCheckoutResponse, error) {
	if strings.TrimSpace(c.config.SecretKey) == "" {
		return nil, fmt.Errorf("stripe config error: secret key is empty")
	}
	if strings.TrimSpace(req.PriceID) == "" {
		return nil, fmt.Errorf("validation error: price id is empty")
	}
	if req.OrderID == uuid.Nil {
		return nil, fmt.Errorf("validation error: order id is empty")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.OrderID.String()),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("user_id", req.UserID.String())

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &CreateCheckoutResponse{
		SessionID:   s.ID,
		CheckoutURL: s.URL,
	}, nil
}

// ConstructEvent verifies the Stripe-Signature header and parses the webhook
// payload into an event. Unverified payloads are rejected.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c.config.WebhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("stripe config error: webhook secret is empty")
	}
	if sigHeader == "" {
		return stripe.Event{}, fmt.Errorf("missing Stripe-Signature header")
	}

	event, err := webhook.ConstructEventWithTolerance(payload, sigHeader, c.config.WebhookSecret, signatureTolerance)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verify webhook signature: %w", err)
	}
	return event, nil
}
