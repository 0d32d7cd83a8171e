// Package models provides data model definitions for the BrightCRM sync core.
package models

import (
	"encoding/json"
	"time"
)

// QueuedOperation represents a mutation recorded while a client was offline,
// waiting to be replayed against the authoritative store.
type QueuedOperation struct {
	ID              UUID            `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	EntityType      string          `db:"entity_type" json:"entity_type"`       // lead, task, target, follow_up, voice_remark, lead_action
	OperationType   string          `db:"operation_type" json:"operation_type"` // create, update, complete, add_remark
	Payload         json.RawMessage `db:"payload" json:"payload"`
	Status          string          `db:"status" json:"status"` // pending, syncing, completed, failed, conflict
	RetryCount      int             `db:"retry_count" json:"retry_count"`
	MaxRetries      int             `db:"max_retries" json:"max_retries"`
	ErrorMessage    string          `db:"error_message" json:"error_message,omitempty"`
	Result          json.RawMessage `db:"result" json:"result,omitempty"`
	CreatedAt       int64           `db:"created_at" json:"created_at"`
	SyncStartedAt   int64           `db:"sync_started_at" json:"sync_started_at,omitempty"`
	SyncCompletedAt int64           `db:"sync_completed_at" json:"sync_completed_at,omitempty"`
	FailedAt        int64           `db:"failed_at" json:"failed_at,omitempty"`
	NextRetryAt     int64           `db:"next_retry_at" json:"next_retry_at,omitempty"`
}

// TableName returns the table name for QueuedOperation.
func (QueuedOperation) TableName() string {
	return "sync_operations"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (o *QueuedOperation) CreatedAtTime() time.Time {
	return time.Unix(o.CreatedAt, 0)
}
