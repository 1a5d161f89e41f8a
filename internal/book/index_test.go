package book

import (
	"testing"

	"coinbase-lob/pkg/types"
)

func TestIndexLookupPrecedence(t *testing.T) {
	t.Parallel()
	x := NewIndex()

	if _, loc := x.Lookup("A"); loc != Absent {
		t.Errorf("Lookup on empty index = %v, want Absent", loc)
	}

	pending := limitOrder("A", types.Buy, "10.00", "1.0")
	x.InsertPending(pending)

	got, loc := x.Lookup("A")
	if loc != Pending || got != pending {
		t.Errorf("Lookup = (%v, %v), want pending entry", got, loc)
	}

	// Promotion: the id moves from pending to resting.
	x.RemovePending("A")
	x.InsertResting(pending)

	if _, loc := x.Lookup("A"); loc != Resting {
		t.Errorf("Lookup after promotion = %v, want Resting", loc)
	}
	if x.PendingCount() != 0 || x.RestingCount() != 1 {
		t.Errorf("counts = %d/%d, want 0/1", x.PendingCount(), x.RestingCount())
	}
}

func TestIndexResetResting(t *testing.T) {
	t.Parallel()
	x := NewIndex()
	x.InsertResting(limitOrder("A", types.Buy, "10.00", "1.0"))
	x.InsertPending(limitOrder("B", types.Sell, "11.00", "1.0"))

	x.ResetResting()

	if x.RestingCount() != 0 {
		t.Errorf("resting = %d after reset, want 0", x.RestingCount())
	}
	if x.PendingCount() != 1 {
		t.Errorf("pending = %d, reset must not touch pending", x.PendingCount())
	}
}
