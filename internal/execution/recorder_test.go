package execution

import (
	"context"
	"testing"

	"github.com/psj098/capmbot/internal/domain"
)

func TestRecorderVenue_ImplementsInterface(t *testing.T) {
	var _ Venue = (*RecorderVenue)(nil) // Compile-time check
}

func TestRecorderVenue_RecordsFlow(t *testing.T) {
	rec := NewRecorderVenue(nil)
	order := domain.Order{
		Ref:        "test-order-1",
		SecurityID: 1,
		Side:       domain.SideBuy,
		Price:      240,
		Units:      1,
	}

	if err := rec.SubmitOrder(context.Background(), order); err != nil {
		t.Errorf("SubmitOrder failed: %v", err)
	}
	if err := rec.CancelOrder(context.Background(), "test-order-1"); err != nil {
		t.Errorf("CancelOrder failed: %v", err)
	}

	submitted := rec.Submitted()
	if len(submitted) != 1 || submitted[0].Ref != "test-order-1" {
		t.Errorf("Submitted = %+v, want the one routed order", submitted)
	}
	cancelled := rec.Cancelled()
	if len(cancelled) != 1 || cancelled[0] != "test-order-1" {
		t.Errorf("Cancelled = %v, want [test-order-1]", cancelled)
	}
}

func TestRecorderVenue_CopiesAreIndependent(t *testing.T) {
	rec := NewRecorderVenue(nil)
	_ = rec.SubmitOrder(context.Background(), domain.Order{Ref: "a"})

	got := rec.Submitted()
	got[0].Ref = "mutated"

	if rec.Submitted()[0].Ref != "a" {
		t.Error("Submitted must return a copy, not the backing slice")
	}
}
