package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/logging"
	"github.com/brightcrm/backend/internal/models"
	"github.com/brightcrm/backend/internal/notify"
)

// Synchronizer is the single background worker that drains pending operations
// in bounded batches and replays them against the authoritative store.
type Synchronizer struct {
	repo        *db.Repository
	registry    *Registry
	notifier    notify.Notifier
	interval    time.Duration
	batchSize   int
	maxRetries  int
	backoffUnit time.Duration
	conflictTTL time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu             sync.RWMutex
	isRunning      bool
	passInProgress bool
	lastPassTime   time.Time
}

// NewSynchronizer creates the background worker. It does not start it.
func NewSynchronizer(repo *db.Repository, registry *Registry, notifier notify.Notifier, cfg *Config) *Synchronizer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Synchronizer{
		repo:        repo,
		registry:    registry,
		notifier:    notifier,
		interval:    cfg.SyncInterval,
		batchSize:   cfg.BatchSize,
		maxRetries:  cfg.MaxRetries,
		backoffUnit: cfg.RetryBackoffUnit,
		conflictTTL: cfg.ConflictTTL,
		stopCh:      make(chan struct{}),
	}
}

// Start launches the worker goroutine. Safe to call once.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("Background synchronizer started", map[string]interface{}{
		"interval_seconds": s.interval.Seconds(),
		"batch_size":       s.batchSize,
	})
}

// Stop signals the worker to exit and waits for the in-flight pass to finish.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Background synchronizer stopped", nil)
}

// IsRunning reports whether the worker loop is active.
func (s *Synchronizer) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// InProgress reports whether a pass is currently executing.
func (s *Synchronizer) InProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.passInProgress
}

// LastPassTime returns when the last pass finished, or zero time.
func (s *Synchronizer) LastPassTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPassTime
}

// TriggerSync runs an immediate pass outside the ticker. Returns false if a
// pass was already in progress.
func (s *Synchronizer) TriggerSync(ctx context.Context) bool {
	return s.RunPass(ctx)
}

// loop is the worker body: wake on a fixed interval, run one pass, and back
// off for an extra interval after a pass-level failure (store unavailable).
func (s *Synchronizer) loop(ctx context.Context) {
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
			if err := s.runPass(ctx); err != nil {
				logging.Error("Sync pass failed", err, nil)
				select {
				case <-ctx.Done():
					return
				case <-s.stopCh:
					return
				case <-time.After(s.interval):
				}
			}
		}
	}
}

// RunPass executes a single drain pass. Returns false if another pass was
// already in progress (single-flight guard).
func (s *Synchronizer) RunPass(ctx context.Context) bool {
	ran, err := s.pass(ctx)
	if err != nil {
		logging.Error("Sync pass failed", err, nil)
	}
	return ran
}

// runPass is the ticker-driven variant: a skipped pass is not an error.
func (s *Synchronizer) runPass(ctx context.Context) error {
	_, err := s.pass(ctx)
	return err
}

// pass runs one drain under the single-flight guard. The first return value
// reports whether the pass actually ran.
func (s *Synchronizer) pass(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.passInProgress {
		s.mu.Unlock()
		return false, nil
	}
	s.passInProgress = true
	s.mu.Unlock()

	err := s.drain(ctx)

	s.mu.Lock()
	s.passInProgress = false
	s.lastPassTime = time.Now()
	s.mu.Unlock()
	return true, err
}

// drain selects one batch of ready operations and processes them in order.
// A failure in one operation never aborts the batch; only a store-level
// failure to select the batch is returned.
func (s *Synchronizer) drain(ctx context.Context) error {
	ops, err := s.repo.ListReadyOperations(s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to select pending operations: %w", err)
	}
	if len(ops) == 0 {
		return nil
	}

	processed := 0
	for _, op := range ops {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		default:
		}

		s.processOperation(ctx, op)
		processed++
	}

	logging.Debug("Sync pass completed", map[string]interface{}{
		"processed": processed,
	})
	s.notifier.Publish(notify.TopicPassCompleted, map[string]interface{}{
		"processed": processed,
	})
	return nil
}

// processOperation replays one queued operation. All outcomes are absorbed
// into operation status; nothing is surfaced to any caller.
func (s *Synchronizer) processOperation(ctx context.Context, op *models.QueuedOperation) {
	id := op.ID.String()

	ok, err := s.repo.MarkOperationSyncing(id)
	if err != nil {
		logging.Error("Failed to mark operation syncing", err, map[string]interface{}{
			"operation_id": id,
		})
		return
	}
	if !ok {
		// No longer pending: evicted or picked up by a concurrent trigger.
		return
	}

	handler, found := s.registry.Lookup(EntityType(op.EntityType), OperationType(op.OperationType))
	if !found {
		// Enqueue-time validation makes this unreachable unless the registry
		// changed between restarts. Terminal, not retryable.
		s.fail(op, fmt.Sprintf("no handler registered for %s/%s", op.EntityType, op.OperationType))
		return
	}

	outcome, err := applyHandler(ctx, handler, op.Payload)
	switch {
	case err != nil:
		s.retryOrFail(op, err)
	case outcome.Conflict:
		s.recordConflict(op, outcome)
	default:
		s.complete(op, outcome)
	}
}

// applyHandler invokes the handler, converting a panic into an error so a
// misbehaving handler cannot kill the worker.
func applyHandler(ctx context.Context, h Handler, payload json.RawMessage) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	outcome, err = h.Apply(ctx, payload)
	if err == nil && outcome == nil {
		err = fmt.Errorf("handler returned no outcome")
	}
	return outcome, err
}

// complete marks the operation applied and stores the handler result summary.
func (s *Synchronizer) complete(op *models.QueuedOperation, outcome *Outcome) {
	id := op.ID.String()

	result, err := json.Marshal(outcome.Result)
	if err != nil {
		result = []byte(`{}`)
	}
	if err := s.repo.CompleteOperation(id, result); err != nil {
		logging.Error("Failed to mark operation completed", err, map[string]interface{}{
			"operation_id": id,
		})
		return
	}

	logging.Info("Operation completed", map[string]interface{}{
		"operation_id":   id,
		"entity_type":    op.EntityType,
		"operation_type": op.OperationType,
	})
	s.notifier.Publish(notify.TopicOperationCompleted, map[string]interface{}{
		"operation_id": id,
		"user_id":      op.UserID,
		"entity_type":  op.EntityType,
	})
}

// recordConflict creates a ConflictRecord and parks the operation in conflict
// status. The mutation is not applied; resolution is manual.
func (s *Synchronizer) recordConflict(op *models.QueuedOperation, outcome *Outcome) {
	id := op.ID.String()

	serverData, err := json.Marshal(outcome.Existing)
	if err != nil {
		serverData = []byte(`{}`)
	}

	conflict := &models.ConflictRecord{
		OperationID:   op.ID,
		EntityType:    op.EntityType,
		OperationType: op.OperationType,
		OfflineData:   op.Payload,
		ServerData:    serverData,
		ExpiresAt:     time.Now().Add(s.conflictTTL).Unix(),
	}
	if err := s.repo.CreateConflict(conflict); err != nil {
		logging.Error("Failed to record conflict", err, map[string]interface{}{
			"operation_id": id,
		})
		// Leave the operation syncing-free for the next pass rather than
		// losing the collision.
		s.retryOrFail(op, fmt.Errorf("failed to record conflict: %w", err))
		return
	}

	if err := s.repo.MarkOperationConflict(id, "collision with existing record"); err != nil {
		logging.Error("Failed to mark operation conflicted", err, map[string]interface{}{
			"operation_id": id,
		})
		return
	}

	logging.Warn("Sync conflict detected", map[string]interface{}{
		"operation_id": id,
		"conflict_id":  conflict.ID.String(),
		"entity_type":  op.EntityType,
	})
	s.notifier.Publish(notify.TopicConflictDetected, map[string]interface{}{
		"operation_id": id,
		"conflict_id":  conflict.ID.String(),
		"user_id":      op.UserID,
		"entity_type":  op.EntityType,
	})
}

// retryOrFail applies the retry rule: requeue with linear backoff while
// attempts remain, otherwise mark terminally failed.
func (s *Synchronizer) retryOrFail(op *models.QueuedOperation, cause error) {
	id := op.ID.String()

	if op.RetryCount < s.maxRetries {
		retryCount := op.RetryCount + 1
		nextRetryAt := time.Now().Add(time.Duration(retryCount) * s.backoffUnit).Unix()

		if err := s.repo.RequeueOperation(id, retryCount, nextRetryAt, cause.Error()); err != nil {
			logging.Error("Failed to requeue operation", err, map[string]interface{}{
				"operation_id": id,
			})
			return
		}

		logging.Warn("Operation requeued after transient failure", map[string]interface{}{
			"operation_id":  id,
			"retry_count":   retryCount,
			"max_retries":   s.maxRetries,
			"next_retry_at": nextRetryAt,
		})
		return
	}

	s.fail(op, cause.Error())
}

// fail marks the operation terminally failed.
func (s *Synchronizer) fail(op *models.QueuedOperation, message string) {
	id := op.ID.String()

	if err := s.repo.FailOperation(id, message); err != nil {
		logging.Error("Failed to mark operation failed", err, map[string]interface{}{
			"operation_id": id,
		})
		return
	}

	logging.Error("Operation failed permanently", nil, map[string]interface{}{
		"operation_id": id,
		"retry_count":  op.RetryCount,
		"error":        message,
	})
	s.notifier.Publish(notify.TopicOperationFailed, map[string]interface{}{
		"operation_id": id,
		"user_id":      op.UserID,
		"entity_type":  op.EntityType,
		"error":        message,
	})
}
