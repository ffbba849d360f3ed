package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/pkg/quant"
)

func TestPaperVenue_ImplementsVenue(t *testing.T) {
	var _ Venue = (*PaperVenue)(nil)  // Compile-time check
	var _ Venue = (*RemoteVenue)(nil) // Compile-time check
}

func paperFixture(t *testing.T, cash int64, units int64) (*PaperVenue, chan event.Event) {
	t.Helper()

	securities := map[int]domain.Security{
		1: {ID: 1, Item: "note-a", Payoffs: []quant.Cents{100, 200, 300, 400}, MinPrice: 1, MaxPrice: 500, Tick: 1},
		2: {ID: 2, Item: "note-b", Payoffs: []quant.Cents{400, 300, 200, 100}, MinPrice: 1, MaxPrice: 500, Tick: 1},
	}
	h := domain.NewHoldings()
	h.CreditCash(quant.Cents(cash))
	for id := range securities {
		h.CreditUnits(id, quant.Units(units))
	}

	inbox := make(chan event.Event, 64)
	var seq uint64
	return NewPaperVenue(inbox, &seq, securities, h, nil), inbox
}

func drain(t *testing.T, ch chan event.Event, n int) []event.Event {
	t.Helper()

	out := make([]event.Event, 0, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			t.Fatalf("expected %d events, got %d", n, i)
		}
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event %s", ev.GetType())
	default:
	}
	return out
}

func compAsk(sec int, price int64) domain.Order {
	return domain.Order{SecurityID: sec, Side: domain.SideSell, Type: domain.TypeLimit,
		Price: quant.Cents(price), Units: 1, Status: domain.StatusNew}
}

func compBid(sec int, price int64) domain.Order {
	return domain.Order{SecurityID: sec, Side: domain.SideBuy, Type: domain.TypeLimit,
		Price: quant.Cents(price), Units: 1, Status: domain.StatusNew}
}

func TestPaperVenue_StartEmitsOpeningState(t *testing.T) {
	venue, inbox := paperFixture(t, 10000, 10)
	venue.SeedBook(compBid(1, 240), compAsk(1, 260))

	require.NoError(t, venue.Start(context.Background()))
	evs := drain(t, inbox, 3)

	sess, ok := evs[0].(*event.SessionUpdateEvent)
	require.True(t, ok, "first event should be the session update")
	assert.True(t, sess.Open)
	assert.Equal(t, uint64(1), sess.GetSeq())

	hold, ok := evs[1].(*event.HoldingsUpdateEvent)
	require.True(t, ok, "second event should be the holdings update")
	assert.Equal(t, quant.Cents(10000), hold.Cash)
	assert.Equal(t, quant.Cents(10000), hold.CashAvailable)
	assert.Equal(t, quant.Units(10), hold.Positions[1].Units)

	market, ok := evs[2].(*event.MarketUpdateEvent)
	require.True(t, ok, "third event should be the market snapshot")
	require.Len(t, market.Orders, 2)
	for _, o := range market.Orders {
		assert.False(t, o.Mine)
		assert.Equal(t, domain.StatusNew, o.Status)
	}
	assert.Equal(t, uint64(3), market.GetSeq())
}

func TestPaperVenue_CrossingBuyFillsAtRestingPrice(t *testing.T) {
	venue, inbox := paperFixture(t, 10000, 10)
	venue.SeedBook(compAsk(1, 240))

	err := venue.SubmitOrder(context.Background(), domain.Order{
		Ref: "r1", SecurityID: 1, Side: domain.SideBuy, Type: domain.TypeLimit, Price: 250, Units: 1,
	})
	require.NoError(t, err)
	evs := drain(t, inbox, 3)

	acc, ok := evs[0].(*event.OrderAcceptedEvent)
	require.True(t, ok, "first event should be the acceptance")
	assert.Equal(t, "r1", acc.Order.Ref)
	assert.True(t, acc.Order.Mine)

	market, ok := evs[1].(*event.MarketUpdateEvent)
	require.True(t, ok)
	assert.Empty(t, market.Orders, "both sides of the trade should leave the book")

	hold, ok := evs[2].(*event.HoldingsUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, quant.Cents(9760), hold.Cash, "fill settles at the resting 240, not the limit 250")
	assert.Equal(t, quant.Cents(9760), hold.CashAvailable)
	assert.Equal(t, quant.Units(11), hold.Positions[1].Units)
}

func TestPaperVenue_RestingBuyReservesCash(t *testing.T) {
	venue, inbox := paperFixture(t, 10000, 10)

	err := venue.SubmitOrder(context.Background(), domain.Order{
		Ref: "r1", SecurityID: 1, Side: domain.SideBuy, Type: domain.TypeLimit, Price: 240, Units: 1,
	})
	require.NoError(t, err)
	evs := drain(t, inbox, 3)

	market := evs[1].(*event.MarketUpdateEvent)
	require.Len(t, market.Orders, 1)
	assert.True(t, market.Orders[0].Mine)
	assert.Equal(t, domain.StatusNew, market.Orders[0].Status)

	hold := evs[2].(*event.HoldingsUpdateEvent)
	assert.Equal(t, quant.Cents(10000), hold.Cash, "nothing settled yet")
	assert.Equal(t, quant.Cents(9760), hold.CashAvailable, "limit cost is locked")
}

func TestPaperVenue_SellSettlesIntoCash(t *testing.T) {
	venue, inbox := paperFixture(t, 10000, 10)
	venue.SeedBook(compBid(1, 260))

	err := venue.SubmitOrder(context.Background(), domain.Order{
		Ref: "r1", SecurityID: 1, Side: domain.SideSell, Type: domain.TypeLimit, Price: 250, Units: 1,
	})
	require.NoError(t, err)
	evs := drain(t, inbox, 3)

	hold := evs[2].(*event.HoldingsUpdateEvent)
	assert.Equal(t, quant.Cents(10260), hold.Cash, "fill settles at the resting 260")
	assert.Equal(t, quant.Units(9), hold.Positions[1].Units)
	assert.Equal(t, quant.Units(9), hold.Positions[1].UnitsAvailable)
}

func TestPaperVenue_RejectsWhenShortOfCash(t *testing.T) {
	venue, inbox := paperFixture(t, 100, 10)

	err := venue.SubmitOrder(context.Background(), domain.Order{
		Ref: "r1", SecurityID: 1, Side: domain.SideBuy, Type: domain.TypeLimit, Price: 240, Units: 1,
	})
	require.NoError(t, err, "a rejection is an event, not a transport error")
	evs := drain(t, inbox, 1)

	rej, ok := evs[0].(*event.OrderRejectedEvent)
	require.True(t, ok)
	assert.Equal(t, "r1", rej.Order.Ref)
	assert.Contains(t, rej.Reason, "insufficient cash")
}

func TestPaperVenue_RejectsPriceOutsideBounds(t *testing.T) {
	venue, inbox := paperFixture(t, 10000, 10)

	err := venue.SubmitOrder(context.Background(), domain.Order{
		Ref: "r1", SecurityID: 1, Side: domain.SideBuy, Type: domain.TypeLimit, Price: 600, Units: 1,
	})
	require.NoError(t, err)
	evs := drain(t, inbox, 1)

	rej, ok := evs[0].(*event.OrderRejectedEvent)
	require.True(t, ok)
	assert.Contains(t, rej.Reason, "outside")
}

func TestPaperVenue_RejectsSellWithoutUnits(t *testing.T) {
	venue, inbox := paperFixture(t, 10000, 0)

	err := venue.SubmitOrder(context.Background(), domain.Order{
		Ref: "r1", SecurityID: 2, Side: domain.SideSell, Type: domain.TypeLimit, Price: 240, Units: 1,
	})
	require.NoError(t, err)
	evs := drain(t, inbox, 1)

	rej, ok := evs[0].(*event.OrderRejectedEvent)
	require.True(t, ok)
	assert.Contains(t, rej.Reason, "insufficient units")
}

func TestPaperVenue_CancelReleasesReserve(t *testing.T) {
	venue, inbox := paperFixture(t, 10000, 10)

	err := venue.SubmitOrder(context.Background(), domain.Order{
		Ref: "r1", SecurityID: 1, Side: domain.SideBuy, Type: domain.TypeLimit, Price: 240, Units: 1,
	})
	require.NoError(t, err)
	drain(t, inbox, 3)

	require.NoError(t, venue.CancelOrder(context.Background(), "r1"))
	evs := drain(t, inbox, 2)

	market := evs[0].(*event.MarketUpdateEvent)
	assert.Empty(t, market.Orders)

	hold := evs[1].(*event.HoldingsUpdateEvent)
	assert.Equal(t, quant.Cents(10000), hold.CashAvailable, "reserve comes back in full")

	assert.Error(t, venue.CancelOrder(context.Background(), "r1"), "second cancel finds nothing")
}
