package crm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/models"
	"github.com/brightcrm/backend/internal/sync"
)

// TaskPayload is the offline payload for task create/complete operations.
type TaskPayload struct {
	TaskID      string `json:"task_id,omitempty"`
	UserID      string `json:"user_id"`
	LeadID      string `json:"lead_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	DueAt       int64  `json:"due_at,omitempty"`
}

// TaskCreateHandler applies offline task creations.
type TaskCreateHandler struct {
	repo *db.Repository
}

// NewTaskCreateHandler creates the handler.
func NewTaskCreateHandler(repo *db.Repository) *TaskCreateHandler {
	return &TaskCreateHandler{repo: repo}
}

// Validate checks the payload shape at enqueue time.
func (h *TaskCreateHandler) Validate(payload json.RawMessage) error {
	var p TaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed task payload: %w", err)
	}
	if p.UserID == "" {
		return fmt.Errorf("task payload requires user_id")
	}
	if p.Title == "" {
		return fmt.Errorf("task payload requires title")
	}
	return nil
}

// Apply creates the task.
func (h *TaskCreateHandler) Apply(ctx context.Context, payload json.RawMessage) (*sync.Outcome, error) {
	var p TaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed task payload: %w", err)
	}

	task := &models.Task{
		UserID:      p.UserID,
		LeadID:      p.LeadID,
		Title:       p.Title,
		Description: p.Description,
		DueAt:       p.DueAt,
	}
	if err := h.repo.CreateTask(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return sync.Applied(map[string]interface{}{
		"task_id": task.ID.String(),
		"title":   task.Title,
	}), nil
}

// TaskCompleteHandler applies offline task completions.
type TaskCompleteHandler struct {
	repo *db.Repository
}

// NewTaskCompleteHandler creates the handler.
func NewTaskCompleteHandler(repo *db.Repository) *TaskCompleteHandler {
	return &TaskCompleteHandler{repo: repo}
}

// Validate checks the payload shape at enqueue time.
func (h *TaskCompleteHandler) Validate(payload json.RawMessage) error {
	var p TaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed task payload: %w", err)
	}
	if p.TaskID == "" {
		return fmt.Errorf("task complete requires task_id")
	}
	return nil
}

// Apply marks the task completed. Completing an already-completed task is
// reported as applied; replays are expected after reconnects.
func (h *TaskCompleteHandler) Apply(ctx context.Context, payload json.RawMessage) (*sync.Outcome, error) {
	var p TaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed task payload: %w", err)
	}

	completed, err := h.repo.CompleteTask(p.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task %s: %w", p.TaskID, err)
	}
	if !completed {
		// Distinguish an already-completed task from a missing one.
		if _, err := h.repo.GetTask(p.TaskID); err != nil {
			return nil, fmt.Errorf("failed to load task %s: %w", p.TaskID, err)
		}
	}

	return sync.Applied(map[string]interface{}{
		"task_id":           p.TaskID,
		"already_completed": !completed,
	}), nil
}
