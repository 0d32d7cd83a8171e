// Package models provides data model definitions for the BrightCRM sync core.
package models

import "time"

// Task is the reference CRM task entity used by the bundled entity handlers.
type Task struct {
	ID          UUID   `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"user_id"`
	LeadID      string `db:"lead_id" json:"lead_id,omitempty"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description,omitempty"`
	DueAt       int64  `db:"due_at" json:"due_at,omitempty"`
	Completed   bool   `db:"completed" json:"completed"`
	CompletedAt int64  `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
	UpdatedAt   int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// Touch updates the UpdatedAt timestamp.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().Unix()
}
