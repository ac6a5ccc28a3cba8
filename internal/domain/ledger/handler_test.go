package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/authorworks/credits-api/internal/domain/ledger"
	"github.com/authorworks/credits-api/internal/middleware"
)

func TestListTransactionsCarriesPaginationMeta(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	userID := uuid.New()
	service := ledger.NewService(db)

	for i := 0; i < 3; i++ {
		_, err := service.Add(context.Background(), userID, 100, ledger.TxTypePurchase, "seed", ledger.Reference{})
		requireNoError(t, err)
	}

	handler := ledger.NewHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/transactions?limit=2", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
	rr := httptest.NewRecorder()

	handler.ListTransactions(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
		Meta    struct {
			Total   int  `json:"total"`
			Page    int  `json:"page"`
			Limit   int  `json:"limit"`
			Pages   int  `json:"pages"`
			HasNext bool `json:"has_next"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}

	if len(body.Data) != 2 {
		t.Fatalf("expected 2 transactions on the first page, got %d", len(body.Data))
	}
	if body.Meta.Total != 3 {
		t.Fatalf("expected total 3, got %d", body.Meta.Total)
	}
	if body.Meta.Page != 1 || body.Meta.Limit != 2 || body.Meta.Pages != 2 {
		t.Fatalf("unexpected meta: %+v", body.Meta)
	}
	if !body.Meta.HasNext {
		t.Fatal("expected has_next on the first of two pages")
	}
}
