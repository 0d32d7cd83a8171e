package sync

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/errors"
	"github.com/brightcrm/backend/internal/logging"
	"github.com/brightcrm/backend/internal/models"
)

// Autosave stores versioned draft snapshots of in-progress edits. It is a
// lighter-weight write path than the operation queue: drafts are never
// replayed, only recovered.
type Autosave struct {
	repo *db.Repository
	ttl  time.Duration
}

// NewAutosave creates the autosave store with the given snapshot TTL.
func NewAutosave(repo *db.Repository, ttl time.Duration) *Autosave {
	return &Autosave{repo: repo, ttl: ttl}
}

// Save upserts the draft for (entityType, entityID, userID) and returns the
// snapshot id. An existing draft keeps its id, gets its version incremented
// and its TTL refreshed.
func (a *Autosave) Save(data json.RawMessage, entityType EntityType, entityID, userID string) (string, error) {
	if len(data) == 0 {
		return "", errors.New(errors.ErrValidation, "autosave data is required")
	}
	if entityType == "" || entityID == "" || userID == "" {
		return "", errors.New(errors.ErrValidation, "entity_type, entity_id and user_id are required")
	}
	if !json.Valid(data) {
		return "", errors.New(errors.ErrValidation, "autosave data is not valid JSON")
	}

	snap := &models.AutosaveSnapshot{
		EntityType: string(entityType),
		EntityID:   entityID,
		UserID:     userID,
		Data:       data,
		ExpiresAt:  time.Now().Add(a.ttl).Unix(),
	}
	if err := a.repo.UpsertSnapshot(snap); err != nil {
		return "", errors.Wrap(errors.ErrDatabase, "failed to save snapshot", err)
	}

	logging.Debug("Autosave snapshot written", map[string]interface{}{
		"snapshot_id": snap.ID.String(),
		"entity_type": entityType,
		"entity_id":   entityID,
		"user_id":     userID,
		"version":     snap.Version,
	})
	return snap.ID.String(), nil
}

// Get returns the live snapshot for a scope key, or nil when no non-expired
// snapshot exists.
func (a *Autosave) Get(entityType EntityType, entityID, userID string) (*models.AutosaveSnapshot, error) {
	snap, err := a.repo.GetSnapshot(string(entityType), entityID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read snapshot", err)
	}
	return snap, nil
}
