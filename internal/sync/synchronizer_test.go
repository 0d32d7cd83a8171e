package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/brightcrm/backend/internal/db"
)

// testConfig returns a config with zero retry backoff so requeued operations
// are immediately ready again.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryBackoffUnit = 0
	return cfg
}

func enqueueFor(t *testing.T, m *Manager, userID string) string {
	t.Helper()
	id, err := m.Enqueue(json.RawMessage(`{"user_id":"`+userID+`"}`), userID, EntityLead, OpCreate)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return id
}

func TestRunPassCompletesOperation(t *testing.T) {
	repo, _ := setupRepo(t)
	handler := &stubHandler{applyFn: func(ctx context.Context, payload json.RawMessage) (*Outcome, error) {
		return Applied(map[string]interface{}{"lead_id": "new-lead"}), nil
	}}
	registry := registryWith(t, EntityLead, OpCreate, handler)
	m := NewManager(repo, registry, nil, 50)
	s := NewSynchronizer(repo, registry, nil, testConfig())

	id := enqueueFor(t, m, "user-1")

	if ran := s.RunPass(context.Background()); !ran {
		t.Fatal("Expected pass to run")
	}

	op, err := repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusCompleted {
		t.Errorf("Expected completed, got %s", op.Status)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(op.Result, &result); err != nil {
		t.Fatalf("Result unmarshal failed: %v", err)
	}
	if result["lead_id"] != "new-lead" {
		t.Errorf("Expected handler result stored, got %v", result)
	}
}

func TestRunPassRetriesThenFails(t *testing.T) {
	repo, _ := setupRepo(t)
	attempts := 0
	handler := &stubHandler{applyFn: func(ctx context.Context, payload json.RawMessage) (*Outcome, error) {
		attempts++
		return nil, fmt.Errorf("remote store unavailable")
	}}
	registry := registryWith(t, EntityLead, OpCreate, handler)
	m := NewManager(repo, registry, nil, 50)
	s := NewSynchronizer(repo, registry, nil, testConfig())

	id := enqueueFor(t, m, "user-1")

	// First pass: transient failure, requeued with retry_count 1.
	s.RunPass(context.Background())
	op, err := repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusPending {
		t.Fatalf("Expected pending after first failure, got %s", op.Status)
	}
	if op.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", op.RetryCount)
	}

	// Three more passes exhaust the retry budget.
	for i := 0; i < 3; i++ {
		s.RunPass(context.Background())
	}

	op, err = repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusFailed {
		t.Errorf("Expected terminal failed, got %s", op.Status)
	}
	if op.RetryCount != 3 {
		t.Errorf("Expected final retry count 3, got %d", op.RetryCount)
	}
	if attempts != 4 {
		t.Errorf("Expected 4 attempts (initial + 3 retries), got %d", attempts)
	}
	if op.ErrorMessage == "" {
		t.Error("Expected error message preserved on failed operation")
	}
}

func TestRunPassRecordsConflict(t *testing.T) {
	repo, _ := setupRepo(t)
	handler := &stubHandler{applyFn: func(ctx context.Context, payload json.RawMessage) (*Outcome, error) {
		return Conflicted(map[string]interface{}{"lead_id": "existing-lead"}), nil
	}}
	registry := registryWith(t, EntityLead, OpCreate, handler)
	m := NewManager(repo, registry, nil, 50)
	s := NewSynchronizer(repo, registry, nil, testConfig())

	id := enqueueFor(t, m, "user-1")
	s.RunPass(context.Background())

	op, err := repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusConflict {
		t.Errorf("Expected conflict status, got %s", op.Status)
	}

	conflicts, err := repo.ListPendingConflicts("user-1", 10)
	if err != nil {
		t.Fatalf("ListPendingConflicts failed: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflict record, got %d", len(conflicts))
	}
	c := conflicts[0]
	if c.OperationID != op.ID {
		t.Errorf("Expected conflict bound to operation %s, got %s", op.ID, c.OperationID)
	}
	var server map[string]interface{}
	if err := json.Unmarshal(c.ServerData, &server); err != nil {
		t.Fatalf("ServerData unmarshal failed: %v", err)
	}
	if server["lead_id"] != "existing-lead" {
		t.Errorf("Expected colliding record captured, got %v", server)
	}
	if string(c.OfflineData) != string(op.Payload) {
		t.Errorf("Expected offline payload preserved, got %s", c.OfflineData)
	}
	if c.ExpiresAt <= time.Now().Unix() {
		t.Error("Expected conflict expiry in the future")
	}
}

func TestHandlerPanicIsTransient(t *testing.T) {
	repo, _ := setupRepo(t)
	handler := &stubHandler{applyFn: func(ctx context.Context, payload json.RawMessage) (*Outcome, error) {
		panic("handler bug")
	}}
	registry := registryWith(t, EntityLead, OpCreate, handler)
	m := NewManager(repo, registry, nil, 50)
	s := NewSynchronizer(repo, registry, nil, testConfig())

	id := enqueueFor(t, m, "user-1")
	s.RunPass(context.Background())

	op, err := repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusPending {
		t.Errorf("Expected panic to count as transient failure, got %s", op.Status)
	}
	if op.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", op.RetryCount)
	}
}

func TestNilOutcomeIsTransient(t *testing.T) {
	repo, _ := setupRepo(t)
	handler := &stubHandler{applyFn: func(ctx context.Context, payload json.RawMessage) (*Outcome, error) {
		return nil, nil
	}}
	registry := registryWith(t, EntityLead, OpCreate, handler)
	m := NewManager(repo, registry, nil, 50)
	s := NewSynchronizer(repo, registry, nil, testConfig())

	id := enqueueFor(t, m, "user-1")
	s.RunPass(context.Background())

	op, err := repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusPending || op.RetryCount != 1 {
		t.Errorf("Expected requeued operation, got status=%s retries=%d", op.Status, op.RetryCount)
	}
}

func TestMissingHandlerFailsTerminally(t *testing.T) {
	repo, _ := setupRepo(t)
	registry := registryWith(t, EntityLead, OpCreate, okHandler())
	m := NewManager(repo, registry, nil, 50)
	// Worker sees a different registry, as after a restart with fewer handlers.
	s := NewSynchronizer(repo, NewRegistry(), nil, testConfig())

	id := enqueueFor(t, m, "user-1")
	s.RunPass(context.Background())

	op, err := repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusFailed {
		t.Errorf("Expected terminal failed for missing handler, got %s", op.Status)
	}
	if op.RetryCount != 0 {
		t.Errorf("Expected no retries for missing handler, got %d", op.RetryCount)
	}
}

func TestRunPassIsSingleFlight(t *testing.T) {
	repo, _ := setupRepo(t)
	started := make(chan struct{})
	release := make(chan struct{})
	handler := &stubHandler{applyFn: func(ctx context.Context, payload json.RawMessage) (*Outcome, error) {
		close(started)
		<-release
		return Applied(nil), nil
	}}
	registry := registryWith(t, EntityLead, OpCreate, handler)
	m := NewManager(repo, registry, nil, 50)
	s := NewSynchronizer(repo, registry, nil, testConfig())

	enqueueFor(t, m, "user-1")

	done := make(chan bool)
	go func() {
		done <- s.RunPass(context.Background())
	}()

	<-started
	if !s.InProgress() {
		t.Error("Expected pass to be reported in progress")
	}
	if ran := s.TriggerSync(context.Background()); ran {
		t.Error("Expected concurrent trigger to be skipped")
	}

	close(release)
	if ran := <-done; !ran {
		t.Error("Expected original pass to have run")
	}
	if s.InProgress() {
		t.Error("Expected pass to be finished")
	}
	if s.LastPassTime().IsZero() {
		t.Error("Expected last pass time to be recorded")
	}
}

func TestStartStop(t *testing.T) {
	repo, _ := setupRepo(t)
	registry := registryWith(t, EntityLead, OpCreate, okHandler())
	cfg := testConfig()
	cfg.SyncInterval = 10 * time.Millisecond
	m := NewManager(repo, registry, nil, 50)
	s := NewSynchronizer(repo, registry, nil, cfg)

	id := enqueueFor(t, m, "user-1")

	s.Start(context.Background())
	if !s.IsRunning() {
		t.Fatal("Expected synchronizer to be running")
	}

	deadline := time.After(2 * time.Second)
	for {
		op, err := repo.GetOperation(id)
		if err != nil {
			t.Fatalf("GetOperation failed: %v", err)
		}
		if op.Status == db.OpStatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("Operation never completed, status %s", op.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("Expected synchronizer to be stopped")
	}
}
