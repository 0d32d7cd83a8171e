package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/models"
	"github.com/brightcrm/backend/internal/notify"
)

// Service is the facade the surrounding CRUD layer talks to. It is
// constructed once with injected store handles and passed by reference; there
// is no ambient global state.
type Service struct {
	cfg          *Config
	queue        *Manager
	synchronizer *Synchronizer
	conflicts    *ConflictResolver
	autosave     *Autosave
	sweeper      *Sweeper
}

// NewService wires the engine components. A nil notifier disables
// notifications; a nil config uses defaults.
func NewService(repo *db.Repository, registry *Registry, notifier notify.Notifier, cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		cfg:          cfg,
		queue:        NewManager(repo, registry, notifier, cfg.MaxQueueSize),
		synchronizer: NewSynchronizer(repo, registry, notifier, cfg),
		conflicts:    NewConflictResolver(repo, notifier),
		autosave:     NewAutosave(repo, cfg.AutosaveTTL),
		sweeper:      NewSweeper(repo, cfg),
	}
}

// Start launches the background synchronizer and the retention sweeper.
func (s *Service) Start(ctx context.Context) {
	s.synchronizer.Start(ctx)
	s.sweeper.Start(ctx)
}

// Stop shuts both background loops down, waiting for in-flight work.
func (s *Service) Stop() {
	s.synchronizer.Stop()
	s.sweeper.Stop()
}

// EnqueueOfflineOperation admits an offline mutation into the durable queue
// and returns its operation id.
func (s *Service) EnqueueOfflineOperation(payload json.RawMessage, userID string, entity EntityType, op OperationType) (string, error) {
	return s.queue.Enqueue(payload, userID, entity, op)
}

// GetSyncQueueStatus returns the read-only aggregate of a user's queue.
func (s *Service) GetSyncQueueStatus(userID string) (*QueueStatus, error) {
	status, err := s.queue.Status(userID)
	if err != nil {
		return nil, err
	}
	status.IsSyncing = s.synchronizer.InProgress()
	return status, nil
}

// GetSyncConflicts lists unresolved conflicts, optionally scoped to a user.
func (s *Service) GetSyncConflicts(userID string, limit int) ([]*models.ConflictRecord, error) {
	return s.conflicts.List(userID, limit)
}

// ResolveSyncConflict records a manual disposition for a conflict.
func (s *Service) ResolveSyncConflict(conflictID string, resolution Resolution, resolvedBy string) (bool, error) {
	return s.conflicts.Resolve(conflictID, resolution, resolvedBy)
}

// AutosaveData upserts the draft snapshot for a scope key and returns its id.
func (s *Service) AutosaveData(data json.RawMessage, entity EntityType, entityID, userID string) (string, error) {
	return s.autosave.Save(data, entity, entityID, userID)
}

// GetAutosavedData returns the live draft for a scope key, or nil when none.
func (s *Service) GetAutosavedData(entity EntityType, entityID, userID string) (*models.AutosaveSnapshot, error) {
	return s.autosave.Get(entity, entityID, userID)
}

// RetryFailed resets a user's terminally failed operations back to pending.
func (s *Service) RetryFailed(userID string) (int64, error) {
	return s.queue.RetryFailed(userID)
}

// TriggerSync runs an immediate pass outside the ticker. Returns false if a
// pass was already in progress.
func (s *Service) TriggerSync(ctx context.Context) bool {
	return s.synchronizer.TriggerSync(ctx)
}

// CleanupOldRecords runs one retention sweep immediately.
func (s *Service) CleanupOldRecords() (*CleanupResult, error) {
	return s.sweeper.Cleanup()
}

// Status is a point-in-time snapshot of the engine state.
type Status struct {
	Running        bool       `json:"running"`
	PassInProgress bool       `json:"pass_in_progress"`
	LastPassAt     *time.Time `json:"last_pass_at,omitempty"`
}

// Status reports the engine state.
func (s *Service) Status() Status {
	status := Status{
		Running:        s.synchronizer.IsRunning(),
		PassInProgress: s.synchronizer.InProgress(),
	}
	if t := s.synchronizer.LastPassTime(); !t.IsZero() {
		status.LastPassAt = &t
	}
	return status
}
