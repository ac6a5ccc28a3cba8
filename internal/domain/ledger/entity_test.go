package ledger

import "testing"

func TestTxTypeValid(t *testing.T) {
	if !TxTypeRefund.Valid() {
		t.Fatal("refund should be a valid type")
	}
	if TxType("chargeback").Valid() {
		t.Fatal("unknown type should be invalid")
	}
}

func TestReferenceIsZero(t *testing.T) {
	if !(Reference{}).IsZero() {
		t.Fatal("empty reference should be zero")
	}
	if (Reference{Type: "order", ID: "42"}).IsZero() {
		t.Fatal("populated reference should not be zero")
	}
}
