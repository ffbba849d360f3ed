package execution

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/internal/infra"
	"github.com/psj098/capmbot/pkg/quant"
)

// Mode represents the trading execution mode
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeLive  Mode = "LIVE"
)

// VenueFactory creates venue instances based on mode
type VenueFactory struct {
	config *infra.Config
	logger *zap.Logger
}

// NewVenueFactory creates a new factory
func NewVenueFactory(cfg *infra.Config, logger *zap.Logger) *VenueFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VenueFactory{config: cfg, logger: logger}
}

// CreateVenue returns the appropriate Venue implementation. Both modes
// feed the same inbox and share the sequence counter with every other
// event source, so the journal stays gapless.
func (f *VenueFactory) CreateVenue(inbox chan<- event.Event, seq *uint64, securities map[int]domain.Security) (Venue, error) {
	mode := Mode(f.config.Trading.Mode)

	f.logger.Info("Initializing venue", zap.String("mode", string(mode)))

	switch mode {
	case ModePaper:
		holdings := paperHoldings(f.config, securities)
		venue := NewPaperVenue(inbox, seq, securities, holdings, f.logger)
		venue.SeedBook(paperQuotes(securities)...)
		return venue, nil

	case ModeLive:
		// SAFETY LATCH CHECK: live order flow spends a real account.
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			err := fmt.Errorf("SAFETY_GUARD: live trading requires 'CONFIRM_REAL_MONEY=true' environment variable")
			f.logger.Error(err.Error())
			panic(err) // Fail Fast
		}

		secret, err := infra.LoadSecretConfig(filepath.Join(infra.GetWorkspaceDir(), "secrets", "live.yaml"))
		if err != nil {
			return nil, err
		}

		f.logger.Warn("🚨🚨🚨 Connecting to LIVE marketplace, orders spend real balances 🚨🚨🚨")

		gateway := infra.NewGateway(infra.GatewayConfig{
			URL:           f.config.Exchange.WSURL,
			Account:       f.config.Exchange.Account,
			Email:         f.config.Exchange.Email,
			Password:      secret.Exchange.Password,
			MarketplaceID: f.config.Exchange.MarketplaceID,
		}, inbox, seq, f.logger)

		limiter := infra.NewRateLimiter(5, 2)
		breaker := infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("fm-venue"), f.logger)
		return NewRemoteVenue(gateway, limiter, breaker, f.logger), nil

	default:
		return nil, fmt.Errorf("unknown trading mode: %s", mode)
	}
}

// paperHoldings builds the virtual starting account from config.
func paperHoldings(cfg *infra.Config, securities map[int]domain.Security) *domain.Holdings {
	h := domain.NewHoldings()
	h.CreditCash(quant.Cents(cfg.Trading.Paper.InitialCashCents))
	for id := range securities {
		h.CreditUnits(id, quant.Units(cfg.Trading.Paper.InitialUnits))
	}
	return h
}

// paperQuotes builds one competing bid and ask per security around its
// mean payoff, so a simulated session has prices to trade against from
// the opening snapshot.
func paperQuotes(securities map[int]domain.Security) []domain.Order {
	ids := make([]int, 0, len(securities))
	for id := range securities {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var quotes []domain.Order
	for _, id := range ids {
		sec := securities[id]
		if len(sec.Payoffs) == 0 {
			continue
		}
		var sum int64
		for _, p := range sec.Payoffs {
			sum += int64(p)
		}
		mean := quant.Cents(sum / int64(len(sec.Payoffs)))

		spread := sec.Tick * 2
		bid := clamp(mean-spread, sec.MinPrice+sec.Tick, sec.MaxPrice-sec.Tick)
		ask := clamp(mean+spread, sec.MinPrice+sec.Tick, sec.MaxPrice-sec.Tick)
		if bid >= ask {
			// Degenerate bounds, leave this book empty.
			continue
		}

		quotes = append(quotes,
			domain.Order{SecurityID: id, Side: domain.SideBuy, Type: domain.TypeLimit, Price: bid, Units: 1, Status: domain.StatusNew},
			domain.Order{SecurityID: id, Side: domain.SideSell, Type: domain.TypeLimit, Price: ask, Units: 1, Status: domain.StatusNew},
		)
	}
	return quotes
}

func clamp(v, lo, hi quant.Cents) quant.Cents {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
