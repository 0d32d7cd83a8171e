// Package notify provides the optional notification sink used by the sync
// core. The engine publishes lifecycle events best-effort; sink failures are
// swallowed and never reach the caller.
package notify

// Topics published by the sync engine.
const (
	TopicOperationQueued    = "sync.operation_queued"
	TopicOperationCompleted = "sync.operation_completed"
	TopicOperationFailed    = "sync.operation_failed"
	TopicConflictDetected   = "sync.conflict_detected"
	TopicConflictResolved   = "sync.conflict_resolved"
	TopicPassCompleted      = "sync.pass_completed"
)

// Notifier is the sink contract. Publish must not block the caller for long
// and must never panic; delivery is best-effort.
type Notifier interface {
	Publish(topic string, message map[string]interface{})
}

// Nop is a Notifier that discards everything. Used when no sink is wired.
type Nop struct{}

// Publish discards the message.
func (Nop) Publish(string, map[string]interface{}) {}
