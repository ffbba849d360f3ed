package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/engine"
	"github.com/psj098/capmbot/internal/event"
	"github.com/psj098/capmbot/internal/execution"
	"github.com/psj098/capmbot/internal/infra"
	"github.com/psj098/capmbot/internal/storage"
	"github.com/psj098/capmbot/internal/strategy"
	"github.com/psj098/capmbot/pkg/quant"
)

// Bootstrap orchestrates the application startup sequence: config,
// storage, the decision agent and the venue, all wired around the
// single-threaded sequencer.
type Bootstrap struct {
	Config     *infra.Config
	Logger     *zap.Logger
	EventStore *storage.EventStore
	Snapshots  *storage.SnapshotManager
	Metrics    *infra.Metrics
	Ledger     *execution.Ledger
	Agent      *strategy.Agent
	Sequencer  *engine.Sequencer
	Venue      execution.Venue

	// seqCounter numbers events produced outside the journal replay:
	// venue feeds and the housekeeping timer share it atomically.
	seqCounter    uint64
	metricsServer *http.Server
	unlock        func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (DB, Dir, wiring).
func (b *Bootstrap) Initialize() error {
	// 0. Runtime Warmup (GC Optimization)
	event.Warmup()

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger, err := infra.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return err
	}
	b.Logger = logger

	// 3. Workspace layout. Data is isolated per trading mode so a paper
	// run can never touch the live journal.
	mode := strings.ToLower(cfg.Trading.Mode)
	workDir := cfg.Storage.Dir
	if workDir == "" {
		workDir = infra.GetWorkspaceDir()
	}
	dataDir := filepath.Join(workDir, "data", mode)
	logDir := filepath.Join(workDir, "logs", mode)

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(logDir); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	// 3.1 Singleton Instance Lock. Two processes on one journal corrupt it.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. Initialize EventStore (Single-Writer WAL DB)
	dbPath := filepath.Join(dataDir, "events.db")
	store, err := storage.NewEventStore(dbPath)
	if err != nil {
		return err
	}
	b.EventStore = store
	logger.Info("✅ EventStore initialized (WAL-mode)",
		zap.String("path", dbPath), zap.String("mode", mode))

	b.Snapshots = storage.NewSnapshotManager(filepath.Join(dataDir, "snapshots"), logger)

	// 5. Metrics endpoint, optional
	if cfg.Metrics.Addr != "" {
		b.Metrics = infra.NewMetrics(nil)
		b.metricsServer = infra.ServeMetrics(cfg.Metrics.Addr, logger)
	}

	// 6. Tradable securities from config
	securities, err := cfg.BuildSecurities()
	if err != nil {
		return err
	}

	// 7. Wiring. The venue posts into the sequencer inbox and the agent
	// trades through the venue, so the handler is installed last.
	b.Sequencer = engine.NewSequencer(1024, store, nil, logger)

	factory := execution.NewVenueFactory(cfg, logger)
	venue, err := factory.CreateVenue(b.Sequencer.Inbox(), &b.seqCounter, securities)
	if err != nil {
		return err
	}
	b.Venue = venue

	b.Ledger = execution.NewLedger(logger)

	agent, err := strategy.NewAgent(strategy.ConfigFrom(cfg), securities, venue, b.Ledger, b.Metrics, logger)
	if err != nil {
		return err
	}
	b.Agent = agent
	b.Sequencer.SetHandler(agent)

	// 8. Session metadata for the operator
	startedAt := time.Now()
	store.UpsertMetadata(context.Background(), "session:mode", cfg.Trading.Mode, startedAt.UnixMicro())
	store.UpsertMetadata(context.Background(), "session:started_at", startedAt.Format(time.RFC3339), startedAt.UnixMicro())

	return nil
}

// Run recovers journaled state, starts the event loop and the venue
// feed, then blocks until the context is cancelled.
func (b *Bootstrap) Run(ctx context.Context) error {
	// 1. Rebuild agent state from the journal, same code path as live.
	if err := b.Sequencer.RecoverFromWAL(ctx); err != nil {
		return err
	}
	// Producers continue numbering where the journal stopped.
	b.seqCounter = b.Sequencer.GetNextSeq() - 1

	// 2. The Hotpath Loop
	go b.Sequencer.Run(ctx)

	// 3. Venue feed
	if err := b.Venue.Start(ctx); err != nil {
		return err
	}

	// 4. Housekeeping timer
	go b.runIdleTimer(ctx)

	b.Logger.Info("✨ System fully operational",
		zap.String("mode", b.Config.Trading.Mode),
		zap.Int("securities", len(b.Config.Securities)))

	<-ctx.Done()
	return nil
}

// runIdleTimer feeds periodic ticks through the inbox so housekeeping
// runs on the sequencer thread like every other decision.
func (b *Bootstrap) runIdleTimer(ctx context.Context) {
	interval := time.Duration(b.Config.Session.IdleCheckIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev := &event.TimerTickEvent{BaseEvent: event.BaseEvent{
				Seq: quant.NextSeq(&b.seqCounter),
				Ts:  quant.TimeStamp(time.Now().UnixMicro()),
			}}
			select {
			case b.Sequencer.Inbox() <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Shutdown flushes a final snapshot and the session report, then
// releases resources in reverse start order.
func (b *Bootstrap) Shutdown() {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("👋 Shutting down gracefully...")

	if b.Agent != nil && b.Snapshots != nil {
		snap := storage.CreateSnapshot(b.Sequencer.GetNextSeq()-1, b.Agent.Holdings(), b.Agent.Performance())
		if err := b.Snapshots.Save(snap); err != nil {
			logger.Error("Failed to save final snapshot", zap.Error(err))
		}
		b.Snapshots.Cleanup(5)
	}

	if b.Ledger != nil {
		b.Ledger.Report()
	}

	if b.Venue != nil {
		if err := b.Venue.Close(); err != nil {
			logger.Warn("Venue close failed", zap.Error(err))
		}
	}
	if b.metricsServer != nil {
		b.metricsServer.Close()
	}
	if b.EventStore != nil {
		b.EventStore.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
	logger.Sync()
}

