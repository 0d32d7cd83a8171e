package sync

import (
	"context"
	"sync"
	"time"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/logging"
)

// Sweeper is the periodic retention job. It purges completed operations past
// the retention window and expired conflicts and autosave snapshots. Sweeper
// failures are logged and never affect the synchronizer.
type Sweeper struct {
	repo      *db.Repository
	retention time.Duration
	interval  time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
}

// CleanupResult reports what one sweep removed.
type CleanupResult struct {
	CompletedOperations int64 `json:"completed_operations"`
	ExpiredConflicts    int64 `json:"expired_conflicts"`
	UnresolvedExpired   int64 `json:"unresolved_expired"`
	ExpiredSnapshots    int64 `json:"expired_snapshots"`
}

// NewSweeper creates the retention sweeper. It does not start it.
func NewSweeper(repo *db.Repository, cfg *Config) *Sweeper {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Sweeper{
		repo:      repo,
		retention: cfg.CompletedRetention,
		interval:  cfg.SweepInterval,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("Retention sweeper started", map[string]interface{}{
		"interval_hours": s.interval.Hours(),
	})
}

// Stop signals the sweep loop to exit and waits for it.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.Cleanup(); err != nil {
				logging.Error("Retention sweep failed", err, nil)
			}
		}
	}
}

// Cleanup runs one sweep immediately. Each store is swept independently; a
// failure in one does not prevent the others. Idempotent: a second run with
// no new expirations removes nothing.
func (s *Sweeper) Cleanup() (*CleanupResult, error) {
	now := time.Now().Unix()
	result := &CleanupResult{}
	var firstErr error

	cutoff := time.Now().Add(-s.retention).Unix()
	if n, err := s.repo.DeleteCompletedOperationsBefore(cutoff); err != nil {
		logging.Error("Failed to sweep completed operations", err, nil)
		firstErr = err
	} else {
		result.CompletedOperations = n
	}

	// Expired-but-unresolved conflicts are discarded without a disposition;
	// count them so operators can see what was dropped.
	if n, err := s.repo.CountExpiredUnresolvedConflicts(now); err != nil {
		logging.Error("Failed to count unresolved expired conflicts", err, nil)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		result.UnresolvedExpired = n
	}
	if n, err := s.repo.DeleteExpiredConflicts(now); err != nil {
		logging.Error("Failed to sweep expired conflicts", err, nil)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		result.ExpiredConflicts = n
	}

	if n, err := s.repo.DeleteExpiredSnapshots(now); err != nil {
		logging.Error("Failed to sweep expired snapshots", err, nil)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		result.ExpiredSnapshots = n
	}

	logging.Info("Retention sweep completed", map[string]interface{}{
		"completed_operations": result.CompletedOperations,
		"expired_conflicts":    result.ExpiredConflicts,
		"unresolved_expired":   result.UnresolvedExpired,
		"expired_snapshots":    result.ExpiredSnapshots,
	})

	return result, firstErr
}
