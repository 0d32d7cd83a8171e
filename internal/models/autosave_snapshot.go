// Package models provides data model definitions for the BrightCRM sync core.
package models

import (
	"encoding/json"
	"time"
)

// AutosaveSnapshot is a versioned draft of in-progress edits, scoped to one
// (entity_type, entity_id, user_id) key. At most one live snapshot exists per
// scope key; every write bumps Version and refreshes the TTL.
type AutosaveSnapshot struct {
	ID         UUID            `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	UserID     string          `db:"user_id" json:"user_id"`
	Data       json.RawMessage `db:"data" json:"data"`
	Version    int             `db:"version" json:"version"`
	CreatedAt  int64           `db:"created_at" json:"created_at"`
	UpdatedAt  int64           `db:"updated_at" json:"updated_at"`
	ExpiresAt  int64           `db:"expires_at" json:"expires_at"`
}

// TableName returns the table name for AutosaveSnapshot.
func (AutosaveSnapshot) TableName() string {
	return "autosave_snapshots"
}

// Expired reports whether the snapshot is past its expiry at the given time.
func (s *AutosaveSnapshot) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && s.ExpiresAt <= now.Unix()
}
