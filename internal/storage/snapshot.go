package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/psj098/capmbot/internal/domain"
	"github.com/psj098/capmbot/pkg/quant"
)

// Snapshot represents a point-in-time capture of account state.
// Used for fast recovery instead of replaying entire WAL.
type Snapshot struct {
	Seq           uint64                  `json:"seq"` // Last processed sequence number
	TsUnix        int64                   `json:"ts"`  // Snapshot creation timestamp (Unix seconds)
	Cash          quant.Cents             `json:"cash"`
	CashAvailable quant.Cents             `json:"cash_available"`
	Positions     map[int]domain.Position `json:"positions"`
	Performance   float64                 `json:"performance"` // Risk-adjusted score at snapshot time
}

// SnapshotManager handles saving and loading snapshots.
type SnapshotManager struct {
	dir    string
	logger *zap.Logger
}

// NewSnapshotManager creates a new snapshot manager.
// dir: directory to store snapshot files.
func NewSnapshotManager(dir string, logger *zap.Logger) *SnapshotManager {
	return &SnapshotManager{dir: dir, logger: logger}
}

// Save writes a snapshot to disk.
func (sm *SnapshotManager) Save(snap *Snapshot) error {
	// Ensure directory exists
	if err := os.MkdirAll(sm.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	// Generate filename with timestamp
	filename := fmt.Sprintf("snapshot_%d_%d.json", snap.Seq, snap.TsUnix)
	path := filepath.Join(sm.dir, filename)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	sm.logger.Info("Snapshot saved",
		zap.Uint64("seq", snap.Seq),
		zap.String("path", path))

	return nil
}

// LoadLatest loads the most recent snapshot from disk.
// Returns nil if no snapshot exists.
func (sm *SnapshotManager) LoadLatest() (*Snapshot, error) {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No snapshots yet
		}
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}

	var latestPath string
	var latestSeq uint64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		var seq uint64
		var ts int64
		_, err := fmt.Sscanf(entry.Name(), "snapshot_%d_%d.json", &seq, &ts)
		if err != nil {
			continue // Not a snapshot file
		}

		if seq > latestSeq {
			latestSeq = seq
			latestPath = filepath.Join(sm.dir, entry.Name())
		}
	}

	if latestPath == "" {
		return nil, nil // No snapshots found
	}

	data, err := os.ReadFile(latestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	sm.logger.Info("Snapshot loaded",
		zap.Uint64("seq", snap.Seq),
		zap.String("path", latestPath))

	return &snap, nil
}

// CreateSnapshot captures the current account state.
func CreateSnapshot(seq uint64, h *domain.Holdings, performance float64) *Snapshot {
	// Deep copy positions to avoid mutation
	positions := make(map[int]domain.Position, len(h.Positions))
	for id, p := range h.Positions {
		positions[id] = p
	}

	return &Snapshot{
		Seq:           seq,
		TsUnix:        time.Now().Unix(),
		Cash:          h.Cash,
		CashAvailable: h.CashAvailable,
		Positions:     positions,
		Performance:   performance,
	}
}

// Cleanup removes old snapshots, keeping only the latest N.
func (sm *SnapshotManager) Cleanup(keepCount int) error {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		return err
	}

	// Collect snapshot files with their sequence numbers
	type snapFile struct {
		path string
		seq  uint64
	}
	var files []snapFile

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var seq uint64
		var ts int64
		if _, err := fmt.Sscanf(entry.Name(), "snapshot_%d_%d.json", &seq, &ts); err == nil {
			files = append(files, snapFile{
				path: filepath.Join(sm.dir, entry.Name()),
				seq:  seq,
			})
		}
	}

	// Sort by sequence (descending) and remove old ones
	if len(files) <= keepCount {
		return nil
	}

	// Simple bubble sort (small N)
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			if files[j].seq > files[i].seq {
				files[i], files[j] = files[j], files[i]
			}
		}
	}

	// Remove old snapshots
	for i := keepCount; i < len(files); i++ {
		if err := os.Remove(files[i].path); err != nil {
			sm.logger.Warn("Failed to remove old snapshot", zap.String("path", files[i].path))
		} else {
			sm.logger.Info("Removed old snapshot", zap.String("path", files[i].path))
		}
	}

	return nil
}
