package sync

import (
	"encoding/json"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/errors"
	"github.com/brightcrm/backend/internal/logging"
	"github.com/brightcrm/backend/internal/models"
	"github.com/brightcrm/backend/internal/notify"
)

// Manager validates and admits offline operations into the durable queue,
// enforcing a per-user depth limit with oldest-pending eviction.
type Manager struct {
	repo         *db.Repository
	registry     *Registry
	notifier     notify.Notifier
	maxQueueSize int
}

// NewManager creates a queue Manager.
func NewManager(repo *db.Repository, registry *Registry, notifier notify.Notifier, maxQueueSize int) *Manager {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Manager{
		repo:         repo,
		registry:     registry,
		notifier:     notifier,
		maxQueueSize: maxQueueSize,
	}
}

// Enqueue admits a new offline operation in pending status and returns its id.
// The payload is validated by the registered handler before anything is
// persisted; an unregistered (entity type, operation type) pair or an invalid
// payload is a ValidationError with no side effect.
func (m *Manager) Enqueue(payload json.RawMessage, userID string, entity EntityType, op OperationType) (string, error) {
	if userID == "" {
		return "", errors.New(errors.ErrValidation, "user_id is required")
	}

	handler, ok := m.registry.Lookup(entity, op)
	if !ok {
		return "", errors.Newf(errors.ErrValidation, "no handler registered for %s/%s", entity, op)
	}
	if err := handler.Validate(payload); err != nil {
		return "", errors.Wrap(errors.ErrValidation, "invalid payload", err)
	}

	if err := m.ensureCapacity(userID); err != nil {
		return "", err
	}

	operation := &models.QueuedOperation{
		UserID:        userID,
		EntityType:    string(entity),
		OperationType: string(op),
		Payload:       payload,
	}
	if err := m.repo.CreateOperation(operation); err != nil {
		return "", errors.Wrap(errors.ErrDatabase, "failed to enqueue operation", err)
	}

	logging.Info("Operation enqueued", map[string]interface{}{
		"operation_id":   operation.ID.String(),
		"user_id":        userID,
		"entity_type":    entity,
		"operation_type": op,
	})

	m.notifier.Publish(notify.TopicOperationQueued, map[string]interface{}{
		"operation_id":   operation.ID.String(),
		"user_id":        userID,
		"entity_type":    string(entity),
		"operation_type": string(op),
	})

	return operation.ID.String(), nil
}

// ensureCapacity evicts the user's oldest pending operations until the new
// operation fits. Syncing and terminal operations are never evicted, so a
// queue saturated with in-flight work still raises a capacity error.
func (m *Manager) ensureCapacity(userID string) error {
	count, err := m.repo.CountUserActiveOperations(userID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to count queued operations", err)
	}
	if count < m.maxQueueSize {
		return nil
	}

	overflow := count - m.maxQueueSize + 1
	evicted, err := m.repo.EvictOldestPending(userID, overflow)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to evict pending operations", err)
	}
	if evicted > 0 {
		logging.Warn("Evicted oldest pending operations", map[string]interface{}{
			"user_id": userID,
			"evicted": evicted,
		})
	}

	count, err = m.repo.CountUserActiveOperations(userID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to recount queued operations", err)
	}
	if count >= m.maxQueueSize {
		return errors.Newf(errors.ErrCapacity, "queue full for user %s (max %d)", userID, m.maxQueueSize)
	}
	return nil
}

// QueueStatus is the read-only aggregate of a user's queue.
type QueueStatus struct {
	Total           int            `json:"total"`
	Counts          map[string]int `json:"counts"`
	OldestPendingAt int64          `json:"oldest_pending_at,omitempty"`
	IsSyncing       bool           `json:"is_syncing"`
}

// Status returns the per-status counts for a user's operations. IsSyncing is
// filled in by the service from the worker state.
func (m *Manager) Status(userID string) (*QueueStatus, error) {
	counts, err := m.repo.UserQueueCounts(userID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read queue counts", err)
	}

	status := &QueueStatus{Counts: counts}
	for _, c := range counts {
		status.Total += c
	}

	oldest, ok, err := m.repo.OldestPendingAt(userID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read oldest pending", err)
	}
	if ok {
		status.OldestPendingAt = oldest
	}

	return status, nil
}

// RetryFailed resets a user's terminally failed operations back to pending
// with fresh retry bookkeeping. Returns how many were reset.
func (m *Manager) RetryFailed(userID string) (int64, error) {
	reset, err := m.repo.RequeueFailedOperations(userID)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to requeue failed operations", err)
	}
	if reset > 0 {
		logging.Info("Reset failed operations for retry", map[string]interface{}{
			"user_id": userID,
			"count":   reset,
		})
	}
	return reset, nil
}
