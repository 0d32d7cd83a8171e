// Package models provides data model definitions for the BrightCRM sync core.
package models

import "time"

// Lead is the reference CRM entity used by the bundled entity handlers.
// Phone and Email together form the natural key for offline-create dedup.
type Lead struct {
	ID        UUID   `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	Name      string `db:"name" json:"name"`
	Phone     string `db:"phone" json:"phone"`
	Email     string `db:"email" json:"email"`
	Source    string `db:"source" json:"source,omitempty"`
	Stage     string `db:"stage" json:"stage"` // new, contacted, qualified, won, lost
	Notes     string `db:"notes" json:"notes,omitempty"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Lead.
func (Lead) TableName() string {
	return "leads"
}

// Touch updates the UpdatedAt timestamp.
func (l *Lead) Touch() {
	l.UpdatedAt = time.Now().Unix()
}
