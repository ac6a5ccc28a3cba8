package order

import "testing"

func TestStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusRefunded, false},
		{StatusCompleted, StatusRefunded, true},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusPending, false},
		{StatusFailed, StatusCompleted, false},
		{StatusFailed, StatusPending, false},
		{StatusRefunded, StatusPending, false},
		{StatusRefunded, StatusCompleted, false},
		{StatusPending, StatusPending, false},
		{StatusCompleted, StatusCompleted, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() {
		t.Error("pending should not be terminal")
	}
	if StatusCompleted.IsTerminal() {
		t.Error("completed should not be terminal, it can still be refunded")
	}
	if !StatusFailed.IsTerminal() {
		t.Error("failed should be terminal")
	}
	if !StatusRefunded.IsTerminal() {
		t.Error("refunded should be terminal")
	}
}
