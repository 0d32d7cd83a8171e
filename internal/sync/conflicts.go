package sync

import (
	"database/sql"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/errors"
	"github.com/brightcrm/backend/internal/logging"
	"github.com/brightcrm/backend/internal/models"
	"github.com/brightcrm/backend/internal/notify"
)

// Resolution is a manual conflict disposition.
type Resolution string

const (
	ResolutionUseOffline Resolution = "use_offline"
	ResolutionUseServer  Resolution = "use_server"
	ResolutionMerge      Resolution = "merge"
)

func (r Resolution) valid() bool {
	switch r {
	case ResolutionUseOffline, ResolutionUseServer, ResolutionMerge:
		return true
	}
	return false
}

// ConflictResolver exposes conflict listing and manual resolution. It never
// runs automatically; the synchronizer only records conflicts.
type ConflictResolver struct {
	repo     *db.Repository
	notifier notify.Notifier
}

// NewConflictResolver creates a ConflictResolver.
func NewConflictResolver(repo *db.Repository, notifier notify.Notifier) *ConflictResolver {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ConflictResolver{repo: repo, notifier: notifier}
}

// List returns unresolved conflicts, newest first, optionally scoped to the
// user owning the offline payload.
func (c *ConflictResolver) List(userID string, limit int) ([]*models.ConflictRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	conflicts, err := c.repo.ListPendingConflicts(userID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list conflicts", err)
	}
	return conflicts, nil
}

// Resolve records a manual disposition for a conflict. Resolution is
// advisory: even use_offline does not re-apply the offline payload — the
// record exists for audit, and the caller decides any follow-up mutation.
// Returns false if the conflict does not exist or was already resolved.
func (c *ConflictResolver) Resolve(conflictID string, resolution Resolution, resolvedBy string) (bool, error) {
	if !resolution.valid() {
		return false, errors.Newf(errors.ErrValidation, "unknown resolution %q", resolution)
	}
	if resolvedBy == "" {
		return false, errors.New(errors.ErrValidation, "resolved_by is required")
	}

	resolved, err := c.repo.ResolveConflict(conflictID, string(resolution), resolvedBy)
	if err != nil {
		return false, errors.Wrap(errors.ErrDatabase, "failed to resolve conflict", err)
	}
	if !resolved {
		return false, nil
	}

	logging.Info("Conflict resolved", map[string]interface{}{
		"conflict_id": conflictID,
		"resolution":  resolution,
		"resolved_by": resolvedBy,
	})
	if resolution == ResolutionUseOffline {
		logging.Warn("Offline payload kept for audit only; not re-applied", map[string]interface{}{
			"conflict_id": conflictID,
		})
	}

	c.notifier.Publish(notify.TopicConflictResolved, map[string]interface{}{
		"conflict_id": conflictID,
		"resolution":  string(resolution),
		"resolved_by": resolvedBy,
	})
	return true, nil
}

// Get returns a single conflict record by id.
func (c *ConflictResolver) Get(conflictID string) (*models.ConflictRecord, error) {
	conflict, err := c.repo.GetConflict(conflictID)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrNotFound, "conflict not found: %s", conflictID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read conflict", err)
	}
	return conflict, nil
}
