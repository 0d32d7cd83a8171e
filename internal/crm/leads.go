// Package crm provides the reference entity handlers the sync engine replays
// offline mutations through. Handlers decode their payloads into typed
// structs, apply them against the repository, and report applied or conflict
// outcomes; the engine treats payloads as opaque.
package crm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/models"
	"github.com/brightcrm/backend/internal/sync"
)

// LeadPayload is the offline payload for lead create/update operations.
// Phone and Email together form the dedup natural key.
type LeadPayload struct {
	LeadID string `json:"lead_id,omitempty"`
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Source string `json:"source,omitempty"`
	Stage  string `json:"stage,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// LeadCreateHandler applies offline lead creations with natural-key dedup.
type LeadCreateHandler struct {
	repo *db.Repository
}

// NewLeadCreateHandler creates the handler.
func NewLeadCreateHandler(repo *db.Repository) *LeadCreateHandler {
	return &LeadCreateHandler{repo: repo}
}

// Validate checks the payload shape at enqueue time.
func (h *LeadCreateHandler) Validate(payload json.RawMessage) error {
	var p LeadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed lead payload: %w", err)
	}
	if p.UserID == "" {
		return fmt.Errorf("lead payload requires user_id")
	}
	if p.Phone == "" && p.Email == "" {
		return fmt.Errorf("lead payload requires phone or email")
	}
	return nil
}

// Apply creates the lead unless a lead with the same phone+email already
// exists, in which case the existing record is reported as a conflict and no
// duplicate is created.
func (h *LeadCreateHandler) Apply(ctx context.Context, payload json.RawMessage) (*sync.Outcome, error) {
	var p LeadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed lead payload: %w", err)
	}

	existing, err := h.repo.FindLeadByNaturalKey(p.Phone, p.Email)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("lead dedup lookup failed: %w", err)
	}
	if existing != nil {
		return sync.Conflicted(map[string]interface{}{
			"lead_id": existing.ID.String(),
			"name":    existing.Name,
			"phone":   existing.Phone,
			"email":   existing.Email,
			"stage":   existing.Stage,
		}), nil
	}

	lead := &models.Lead{
		UserID: p.UserID,
		Name:   p.Name,
		Phone:  p.Phone,
		Email:  p.Email,
		Source: p.Source,
		Stage:  p.Stage,
		Notes:  p.Notes,
	}
	if err := h.repo.CreateLead(lead); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	return sync.Applied(map[string]interface{}{
		"lead_id": lead.ID.String(),
		"name":    lead.Name,
		"stage":   lead.Stage,
	}), nil
}

// LeadUpdateHandler applies offline lead field updates.
type LeadUpdateHandler struct {
	repo *db.Repository
}

// NewLeadUpdateHandler creates the handler.
func NewLeadUpdateHandler(repo *db.Repository) *LeadUpdateHandler {
	return &LeadUpdateHandler{repo: repo}
}

// Validate checks the payload shape at enqueue time.
func (h *LeadUpdateHandler) Validate(payload json.RawMessage) error {
	var p LeadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed lead payload: %w", err)
	}
	if p.LeadID == "" {
		return fmt.Errorf("lead update requires lead_id")
	}
	return nil
}

// Apply merges the non-empty payload fields into the stored lead.
func (h *LeadUpdateHandler) Apply(ctx context.Context, payload json.RawMessage) (*sync.Outcome, error) {
	var p LeadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed lead payload: %w", err)
	}

	lead, err := h.repo.GetLead(p.LeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead %s: %w", p.LeadID, err)
	}

	if p.Name != "" {
		lead.Name = p.Name
	}
	if p.Phone != "" {
		lead.Phone = p.Phone
	}
	if p.Email != "" {
		lead.Email = p.Email
	}
	if p.Source != "" {
		lead.Source = p.Source
	}
	if p.Stage != "" {
		lead.Stage = p.Stage
	}
	if p.Notes != "" {
		lead.Notes = p.Notes
	}

	if err := h.repo.UpdateLead(lead); err != nil {
		return nil, fmt.Errorf("failed to update lead %s: %w", p.LeadID, err)
	}

	return sync.Applied(map[string]interface{}{
		"lead_id": lead.ID.String(),
		"stage":   lead.Stage,
	}), nil
}
