package domain

import (
	"testing"
)

func TestHoldings_CreditDebitCash(t *testing.T) {
	h := NewHoldings()

	h.CreditCash(1000)
	if h.Cash != 1000 || h.CashAvailable != 1000 {
		t.Errorf("expected 1000/1000, got %d/%d", h.Cash, h.CashAvailable)
	}

	h.ReserveCash(300)
	if h.CashAvailable != 700 {
		t.Errorf("expected available 700, got %d", h.CashAvailable)
	}

	h.DebitCash(300)
	if h.Cash != 700 {
		t.Errorf("expected cash 700, got %d", h.Cash)
	}

	h.VerifyInvariant()
}

func TestHoldings_Units(t *testing.T) {
	h := NewHoldings()

	h.CreditUnits(3, 5)
	p := h.Position(3)
	if p.Units != 5 || p.UnitsAvailable != 5 {
		t.Errorf("expected 5/5, got %d/%d", p.Units, p.UnitsAvailable)
	}

	h.ReserveUnits(3, 2)
	if h.Position(3).UnitsAvailable != 3 {
		t.Errorf("expected available 3, got %d", h.Position(3).UnitsAvailable)
	}

	h.ReleaseUnits(3, 2)
	h.DebitUnits(3, 1) // settles without prior reserve in this test path
	if h.Position(3).Units != 4 {
		t.Errorf("expected units 4, got %d", h.Position(3).Units)
	}
}

func TestHoldings_Clone_Independent(t *testing.T) {
	h := NewHoldings()
	h.CreditCash(500)
	h.CreditUnits(1, 2)

	c := h.Clone()
	c.DebitCash(500)
	p := c.Position(1)
	p.UnitsAvailable = 0
	c.Positions[1] = p

	if h.Cash != 500 {
		t.Errorf("clone mutation leaked into cash: %d", h.Cash)
	}
	if h.Position(1).UnitsAvailable != 2 {
		t.Errorf("clone mutation leaked into position: %d", h.Position(1).UnitsAvailable)
	}
}

func TestHoldings_InvariantPanic_NegativeCash(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for negative cash")
		}
	}()

	h := &Holdings{Cash: -1, Positions: map[int]Position{}}
	h.VerifyInvariant()
}

func TestHoldings_InvariantPanic_AvailableExceedsUnits(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when available > units")
		}
	}()

	h := NewHoldings()
	h.Positions[2] = Position{SecurityID: 2, Units: 1, UnitsAvailable: 3}
	h.VerifyInvariant()
}

func TestHoldings_ReservePanic_Insufficient(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for over-reservation")
		}
	}()

	h := NewHoldings()
	h.CreditCash(50)
	h.ReserveCash(100) // Should panic
}

func TestHoldings_UnitsByID(t *testing.T) {
	h := NewHoldings()
	h.CreditUnits(1, 2)
	h.CreditUnits(7, 0)

	units := h.UnitsByID()
	if len(units) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(units))
	}
	if units[1] != 2 || units[7] != 0 {
		t.Errorf("unexpected units map: %v", units)
	}
}
