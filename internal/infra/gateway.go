package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/pkg/quant"
)

// GatewayConfig identifies the agent to the marketplace server.
type GatewayConfig struct {
	URL           string
	Account       string
	Email         string
	Password      string
	MarketplaceID int
}

// frame is the marketplace wire envelope. Fields are populated
// according to Type.
type frame struct {
	Type          string                  `json:"type"`
	Account       string                  `json:"account,omitempty"`
	Email         string                  `json:"email,omitempty"`
	Password      string                  `json:"password,omitempty"`
	MarketplaceID int                     `json:"marketplace_id,omitempty"`
	Orders        []domain.Order          `json:"orders,omitempty"`
	Cash          quant.Cents             `json:"cash,omitempty"`
	CashAvailable quant.Cents             `json:"cash_available,omitempty"`
	Positions     map[int]domain.Position `json:"positions,omitempty"`
	Order         *domain.Order           `json:"order,omitempty"`
	Ref           string                  `json:"ref,omitempty"`
	Reason        string                  `json:"reason,omitempty"`
	Open          bool                    `json:"open,omitempty"`
}

// Gateway speaks the marketplace WebSocket protocol. Inbound frames
// become sequenced events; outbound orders are serialized through the
// worker's write lock.
type Gateway struct {
	cfg    GatewayConfig
	inbox  chan<- event.Event
	seq    *uint64
	logger *zap.Logger
	worker *BaseWSWorker
}

// NewGateway wires a gateway to the sequencer inbox. seq is the shared
// event sequence counter; every producer must stamp from the same one.
func NewGateway(cfg GatewayConfig, inbox chan<- event.Event, seq *uint64, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		cfg:    cfg,
		inbox:  inbox,
		seq:    seq,
		logger: logger,
	}
	g.worker = NewBaseWSWorker(g, logger)
	return g
}

// Start begins the connect/read loop.
func (g *Gateway) Start(ctx context.Context) {
	g.worker.Start(ctx)
}

// Stop closes the connection and waits for the loops to exit.
func (g *Gateway) Stop() {
	g.worker.Stop()
}

func (g *Gateway) ID() string { return "fm-gateway" }

func (g *Gateway) GetURL() string { return g.cfg.URL }

// OnConnect authenticates before any market data is accepted.
func (g *Gateway) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	auth := frame{
		Type:          "auth",
		Account:       g.cfg.Account,
		Email:         g.cfg.Email,
		Password:      g.cfg.Password,
		MarketplaceID: g.cfg.MarketplaceID,
	}
	return conn.WriteJSON(auth)
}

func (g *Gateway) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return g.worker.Write(websocket.TextMessage, []byte(`{"type":"ping"}`))
}

func (g *Gateway) OnMessage(ctx context.Context, msg []byte) {
	ev, err := decodeFrame(msg, quant.NextSeq(g.seq), quant.TimeStamp(time.Now().UnixMicro()))
	if err != nil {
		g.logger.Warn("Undecodable frame", zap.Error(err), zap.ByteString("frame", msg))
		return
	}
	if ev == nil {
		return // pong and other non-events
	}

	select {
	case g.inbox <- ev:
	case <-ctx.Done():
	}
}

// decodeFrame translates one wire frame into a sequenced event.
// Returns a nil event for frames that carry no state (pong).
func decodeFrame(msg []byte, seq uint64, ts quant.TimeStamp) (event.Event, error) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return nil, err
	}

	base := event.BaseEvent{Seq: seq, Ts: ts}

	switch f.Type {
	case "orders":
		ev := event.AcquireMarketUpdateEvent()
		ev.BaseEvent = base
		ev.Orders = append(ev.Orders, f.Orders...)
		return ev, nil

	case "holdings":
		return &event.HoldingsUpdateEvent{
			BaseEvent:     base,
			Cash:          f.Cash,
			CashAvailable: f.CashAvailable,
			Positions:     f.Positions,
		}, nil

	case "order_accepted":
		if f.Order == nil {
			return nil, fmt.Errorf("order_accepted frame without order")
		}
		return &event.OrderAcceptedEvent{BaseEvent: base, Order: *f.Order}, nil

	case "order_rejected":
		if f.Order == nil {
			return nil, fmt.Errorf("order_rejected frame without order")
		}
		return &event.OrderRejectedEvent{BaseEvent: base, Order: *f.Order, Reason: f.Reason}, nil

	case "session":
		return &event.SessionUpdateEvent{BaseEvent: base, Open: f.Open}, nil

	case "pong":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}

// SendOrder submits a limit order to the marketplace.
func (g *Gateway) SendOrder(o domain.Order) error {
	data, err := json.Marshal(frame{Type: "place_order", Order: &o})
	if err != nil {
		return err
	}
	return g.worker.Write(websocket.TextMessage, data)
}

// SendCancel asks the marketplace to pull one of our resting orders.
func (g *Gateway) SendCancel(ref string) error {
	data, err := json.Marshal(frame{Type: "cancel_order", Ref: ref})
	if err != nil {
		return err
	}
	return g.worker.Write(websocket.TextMessage, data)
}
