package order_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v76"

	"github.com/authorworks/credits-api/internal/domain/order"
)

type stubVerifier struct {
	event stripe.Event
	err   error
}

func (s *stubVerifier) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if s.err != nil {
		return stripe.Event{}, s.err
	}
	return s.event, nil
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := order.NewHandler(nil, &stubVerifier{err: errors.New("signature mismatch")})

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=0,v1=bogus")
	rr := httptest.NewRecorder()

	h.WebhookRoutes().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rr.Code)
	}
}

func TestWebhookAcknowledgesUnknownEventType(t *testing.T) {
	svc := order.NewService(nil, nil, nil, nil, passDeduper{}, "")
	h := order.NewHandler(svc, &stubVerifier{event: stripe.Event{
		ID:   "evt_test_1",
		Type: "customer.created",
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}})

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=0,v1=valid")
	rr := httptest.NewRecorder()

	h.WebhookRoutes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored event, got %d", rr.Code)
	}
}
