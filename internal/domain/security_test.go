package domain

import (
	"testing"
)

func TestParsePayoffs(t *testing.T) {
	tests := []struct {
		name        string
		description string
		expected    []int64
		wantErr     bool
	}{
		{"four states", "100,200,300,400", []int64{100, 200, 300, 400}, false},
		{"single state", "250", []int64{250}, false},
		{"with spaces", "100, 200", []int64{100, 200}, false},
		{"empty", "", nil, true},
		{"trailing comma", "100,200,", nil, true},
		{"not a number", "100,abc", nil, true},
		{"fractional", "100.5,200", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payoffs, err := ParsePayoffs(tt.description)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", payoffs)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(payoffs) != len(tt.expected) {
				t.Fatalf("expected %d payoffs, got %d", len(tt.expected), len(payoffs))
			}
			for i, want := range tt.expected {
				if int64(payoffs[i]) != want {
					t.Errorf("payoff[%d] = %d; want %d", i, payoffs[i], want)
				}
			}
		})
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("BUY opposite should be SELL")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("SELL opposite should be BUY")
	}
}

func TestOrder_Key(t *testing.T) {
	a := Order{SecurityID: 3, Side: SideBuy, Price: 450, Units: 1}
	b := Order{SecurityID: 3, Side: SideBuy, Price: 450, Units: 1, Ref: "different-ref"}
	c := Order{SecurityID: 3, Side: SideSell, Price: 450, Units: 1}

	if a.Key() != b.Key() {
		t.Error("same economic content should share a key")
	}
	if a.Key() == c.Key() {
		t.Error("different sides should not share a key")
	}
}
