package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/sync"
)

// RemarkPayload is the offline payload for follow-up remarks recorded against
// a lead.
type RemarkPayload struct {
	LeadID   string `json:"lead_id"`
	UserID   string `json:"user_id"`
	Remark   string `json:"remark"`
	MadeAt   int64  `json:"made_at,omitempty"`
	Channel  string `json:"channel,omitempty"` // call, visit, message
	Duration int64  `json:"duration_seconds,omitempty"`
}

// FollowUpRemarkHandler appends follow-up remarks to the lead's notes.
type FollowUpRemarkHandler struct {
	repo *db.Repository
}

// NewFollowUpRemarkHandler creates the handler.
func NewFollowUpRemarkHandler(repo *db.Repository) *FollowUpRemarkHandler {
	return &FollowUpRemarkHandler{repo: repo}
}

// Validate checks the payload shape at enqueue time.
func (h *FollowUpRemarkHandler) Validate(payload json.RawMessage) error {
	var p RemarkPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed remark payload: %w", err)
	}
	if p.LeadID == "" {
		return fmt.Errorf("remark requires lead_id")
	}
	if p.Remark == "" {
		return fmt.Errorf("remark text is required")
	}
	return nil
}

// Apply appends the remark to the lead's notes, stamped with the offline
// capture time so the timeline survives delayed sync.
func (h *FollowUpRemarkHandler) Apply(ctx context.Context, payload json.RawMessage) (*sync.Outcome, error) {
	var p RemarkPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed remark payload: %w", err)
	}

	lead, err := h.repo.GetLead(p.LeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead %s: %w", p.LeadID, err)
	}

	madeAt := p.MadeAt
	if madeAt == 0 {
		madeAt = time.Now().Unix()
	}
	entry := fmt.Sprintf("[%s] %s", time.Unix(madeAt, 0).UTC().Format(time.RFC3339), p.Remark)
	if p.Channel != "" {
		entry = fmt.Sprintf("[%s] (%s) %s", time.Unix(madeAt, 0).UTC().Format(time.RFC3339), p.Channel, p.Remark)
	}
	if lead.Notes == "" {
		lead.Notes = entry
	} else {
		lead.Notes = lead.Notes + "\n" + entry
	}

	if err := h.repo.UpdateLead(lead); err != nil {
		return nil, fmt.Errorf("failed to append remark to lead %s: %w", p.LeadID, err)
	}

	return sync.Applied(map[string]interface{}{
		"lead_id": lead.ID.String(),
		"made_at": madeAt,
	}), nil
}
