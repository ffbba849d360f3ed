package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/backtest"
	"github.com/psj098/capmbot/internal/engine"
	"github.com/psj098/capmbot/internal/execution"
	"github.com/psj098/capmbot/internal/infra"
	"github.com/psj098/capmbot/internal/strategy"
)

// replay runs a recorded session journal through the live decision
// path and reports where the strategy ended up.
func main() {
	dbPath := flag.String("db", "", "path to a recorded events.db journal")
	configPath := flag.String("config", "", "config file (default: standard search path)")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -db <events.db> [-config <config.yaml>]")
		os.Exit(2)
	}

	path := *configPath
	if path == "" {
		path = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := infra.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	securities, err := cfg.BuildSecurities()
	if err != nil {
		logger.Fatal("Invalid securities", zap.Error(err))
	}

	// The recorder venue captures what the strategy would send without
	// touching any marketplace.
	venue := execution.NewRecorderVenue(logger)
	ledger := execution.NewLedger(logger)

	agent, err := strategy.NewAgent(strategy.ConfigFrom(cfg), securities, venue, ledger, nil, logger)
	if err != nil {
		logger.Fatal("Agent construction failed", zap.Error(err))
	}

	// No store: replay must never write back into a journal.
	seq := engine.NewSequencer(1, nil, agent, logger)

	replayer, err := backtest.NewReplayer(*dbPath, logger)
	if err != nil {
		logger.Fatal("Journal open failed", zap.Error(err))
	}
	defer replayer.Close()

	count, err := replayer.RunReplay(context.Background(), seq)
	if err != nil {
		logger.Fatal("Replay failed", zap.Error(err))
	}

	ledger.Report()

	h := agent.Holdings()
	ids := make([]int, 0, len(securities))
	for id := range securities {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fmt.Println()
	fmt.Printf("Replayed events:   %d\n", count)
	fmt.Printf("Final performance: %.5f\n", agent.Performance())
	fmt.Printf("Final cash:        %d cents\n", int64(h.Cash))
	for _, id := range ids {
		pos := h.Position(id)
		fmt.Printf("  %-24s units=%d\n", securities[id].Item, int64(pos.Units))
	}
	fmt.Printf("Would have sent:   %d orders, %d cancels\n",
		len(venue.Submitted()), len(venue.Cancelled()))
}
