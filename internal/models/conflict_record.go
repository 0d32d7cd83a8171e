// Package models provides data model definitions for the BrightCRM sync core.
package models

import (
	"encoding/json"
	"time"
)

// ConflictRecord captures a collision between an offline mutation and an
// existing authoritative record, awaiting manual resolution.
type ConflictRecord struct {
	ID            UUID            `db:"id" json:"id"`
	OperationID   UUID            `db:"operation_id" json:"operation_id"`
	EntityType    string          `db:"entity_type" json:"entity_type"`
	OperationType string          `db:"operation_type" json:"operation_type"`
	OfflineData   json.RawMessage `db:"offline_data" json:"offline_data"`
	ServerData    json.RawMessage `db:"server_data" json:"server_data"`
	Status        string          `db:"status" json:"status"`                 // pending_resolution, resolved
	Resolution    string          `db:"resolution" json:"resolution,omitempty"` // use_offline, use_server, merge
	ResolvedBy    string          `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt    int64           `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt     int64           `db:"created_at" json:"created_at"`
	ExpiresAt     int64           `db:"expires_at" json:"expires_at"`
}

// TableName returns the table name for ConflictRecord.
func (ConflictRecord) TableName() string {
	return "sync_conflicts"
}

// Expired reports whether the record is past its expiry at the given time.
func (c *ConflictRecord) Expired(now time.Time) bool {
	return c.ExpiresAt > 0 && c.ExpiresAt <= now.Unix()
}
