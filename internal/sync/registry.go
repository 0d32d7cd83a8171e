// Package sync provides the offline operation synchronization engine: a
// durable queue of mutations recorded while a client was disconnected, a
// background worker that replays them with conflict detection and bounded
// retries, and versioned autosave snapshots for crash recovery.
package sync

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/brightcrm/backend/internal/errors"
)

// EntityType identifies the domain object class a queued mutation targets.
type EntityType string

const (
	EntityLead        EntityType = "leads"
	EntityTask        EntityType = "tasks"
	EntityTarget      EntityType = "targets"
	EntityFollowUp    EntityType = "follow_ups"
	EntityVoiceRemark EntityType = "voice_remarks"
	EntityLeadAction  EntityType = "lead_actions"
)

// OperationType identifies the kind of mutation within an entity type.
type OperationType string

const (
	OpCreate    OperationType = "create"
	OpUpdate    OperationType = "update"
	OpComplete  OperationType = "complete"
	OpAddRemark OperationType = "add_remark"
)

// Outcome is the result of applying one queued mutation against the
// authoritative store. Exactly one of Applied/Conflict is set; a handler
// error is returned separately and treated as transient.
type Outcome struct {
	Applied  bool
	Result   map[string]interface{} // summary of the applied mutation
	Conflict bool
	Existing map[string]interface{} // identifying fields of the colliding record
}

// Applied builds a success outcome with a result summary.
func Applied(result map[string]interface{}) *Outcome {
	return &Outcome{Applied: true, Result: result}
}

// Conflicted builds a conflict outcome carrying the colliding record.
func Conflicted(existing map[string]interface{}) *Outcome {
	return &Outcome{Conflict: true, Existing: existing}
}

// Handler applies one (entity type, operation type) pair of mutations.
// Validate runs synchronously at enqueue time so malformed payloads fail fast;
// Apply runs inside the background worker and may perform store I/O.
type Handler interface {
	Validate(payload json.RawMessage) error
	Apply(ctx context.Context, payload json.RawMessage) (*Outcome, error)
}

type handlerKey struct {
	entity EntityType
	op     OperationType
}

// Registry maps (entity type, operation type) pairs to handlers. Registration
// is validated up front; lookups at sync time cannot fail for a registered
// pair.
type Registry struct {
	mu       sync.RWMutex
	handlers map[handlerKey]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[handlerKey]Handler)}
}

// Register binds a handler to an (entity type, operation type) pair.
func (r *Registry) Register(entity EntityType, op OperationType, h Handler) error {
	if entity == "" || op == "" {
		return errors.New(errors.ErrValidation, "entity type and operation type are required")
	}
	if h == nil {
		return errors.Newf(errors.ErrValidation, "nil handler for %s/%s", entity, op)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := handlerKey{entity: entity, op: op}
	if _, exists := r.handlers[key]; exists {
		return errors.Newf(errors.ErrDuplicate, "handler already registered for %s/%s", entity, op)
	}
	r.handlers[key] = h
	return nil
}

// Lookup returns the handler for an (entity type, operation type) pair.
func (r *Registry) Lookup(entity EntityType, op OperationType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[handlerKey{entity: entity, op: op}]
	return h, ok
}

// OperationTypes returns the operation types registered for an entity type.
func (r *Registry) OperationTypes(entity EntityType) []OperationType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ops []OperationType
	for key := range r.handlers {
		if key.entity == entity {
			ops = append(ops, key.op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
