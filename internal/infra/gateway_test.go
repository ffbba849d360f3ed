package infra

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/pkg/quant"
)

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func bidOrder(sec int, price int64) domain.Order {
	return domain.Order{
		Ref:        "test-ref",
		SecurityID: sec,
		Side:       domain.SideBuy,
		Type:       domain.TypeLimit,
		Price:      quant.Cents(price),
		Units:      1,
		Status:     domain.StatusNew,
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    event.Type
		wantErr bool
		wantNil bool
	}{
		{
			name: "orders snapshot",
			raw:  `{"type":"orders","orders":[{"ref":"r1","security_id":1,"side":"SELL","type":"LIMIT","price":240,"units":1,"status":"NEW"}]}`,
			want: event.EvMarketUpdate,
		},
		{
			name: "holdings",
			raw:  `{"type":"holdings","cash":10000,"cash_available":9500,"positions":{"1":{"security_id":1,"units":3,"units_available":2}}}`,
			want: event.EvHoldingsUpdate,
		},
		{
			name: "order accepted",
			raw:  `{"type":"order_accepted","order":{"ref":"mine-1","security_id":2,"side":"BUY","price":250,"units":1}}`,
			want: event.EvOrderAccepted,
		},
		{
			name: "order rejected",
			raw:  `{"type":"order_rejected","order":{"ref":"mine-2","security_id":2,"side":"BUY","price":250,"units":1},"reason":"insufficient funds"}`,
			want: event.EvOrderRejected,
		},
		{
			name: "session open",
			raw:  `{"type":"session","open":true}`,
			want: event.EvSessionUpdate,
		},
		{name: "pong is not an event", raw: `{"type":"pong"}`, wantNil: true},
		{name: "accepted without order", raw: `{"type":"order_accepted"}`, wantErr: true},
		{name: "unknown type", raw: `{"type":"greeting"}`, wantErr: true},
		{name: "broken json", raw: `{"type":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeFrame([]byte(tt.raw), 7, 1000)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeFrame failed: %v", err)
			}
			if tt.wantNil {
				if ev != nil {
					t.Fatalf("expected nil event, got %T", ev)
				}
				return
			}
			if ev.GetType() != tt.want {
				t.Errorf("expected type %s, got %s", tt.want, ev.GetType())
			}
			if ev.GetSeq() != 7 {
				t.Errorf("expected stamped seq 7, got %d", ev.GetSeq())
			}
		})
	}
}

func TestDecodeFrame_OrderFields(t *testing.T) {
	raw := `{"type":"orders","orders":[
		{"ref":"r1","security_id":1,"side":"SELL","type":"LIMIT","price":240,"units":1,"status":"NEW","mine":true},
		{"ref":"r2","security_id":2,"side":"BUY","type":"LIMIT","price":260,"units":1,"status":"NEW"}
	]}`

	ev, err := decodeFrame([]byte(raw), 1, 1000)
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	market := ev.(*event.MarketUpdateEvent)
	if len(market.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(market.Orders))
	}
	if !market.Orders[0].Mine {
		t.Error("mine flag lost in decode")
	}
	if market.Orders[1].Price != 260 {
		t.Errorf("price lost in decode: %d", market.Orders[1].Price)
	}
}

// TestGateway_EndToEnd drives a gateway against a mock marketplace:
// auth on connect, one snapshot in, one order out.
func TestGateway_EndToEnd(t *testing.T) {
	authed := make(chan []byte, 1)
	placed := make(chan []byte, 1)

	server := createMockWSServer(t, func(conn *websocket.Conn) {
		// Expect the auth frame first
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		authed <- msg

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"session","open":true}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"orders","orders":[]}`))

		_, msg, err = conn.ReadMessage()
		if err != nil {
			return
		}
		placed <- msg
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	inbox := make(chan event.Event, 16)
	var seq uint64
	g := NewGateway(GatewayConfig{
		URL:           httpToWS(server.URL),
		Account:       "capm-agent",
		Email:         "agent@example.com",
		Password:      "hunter2",
		MarketplaceID: 1301,
	}, inbox, &seq, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	g.Start(ctx)
	defer g.Stop()

	select {
	case msg := <-authed:
		if string(msg) == "" || !containsAll(string(msg), `"auth"`, `"capm-agent"`, `"hunter2"`) {
			t.Errorf("unexpected auth frame: %s", msg)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("server never saw auth frame")
	}

	// Session then snapshot, stamped 1 and 2
	for want := uint64(1); want <= 2; want++ {
		select {
		case ev := <-inbox:
			if ev.GetSeq() != want {
				t.Errorf("expected seq %d, got %d", want, ev.GetSeq())
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("event %d never arrived", want)
		}
	}

	if err := g.SendOrder(bidOrder(1, 250)); err != nil {
		t.Fatalf("SendOrder failed: %v", err)
	}
	select {
	case msg := <-placed:
		if !containsAll(string(msg), `"place_order"`, `"security_id":1`) {
			t.Errorf("unexpected order frame: %s", msg)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("server never saw order frame")
	}
}
