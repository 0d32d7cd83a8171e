package sync

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/errors"
)

func TestEnqueue(t *testing.T) {
	repo, _ := setupRepo(t)
	registry := registryWith(t, EntityLead, OpCreate, okHandler())
	m := NewManager(repo, registry, nil, 50)

	id, err := m.Enqueue(json.RawMessage(`{"user_id":"user-1"}`), "user-1", EntityLead, OpCreate)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected operation id")
	}

	op, err := repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusPending {
		t.Errorf("Expected pending, got %s", op.Status)
	}
	if op.UserID != "user-1" {
		t.Errorf("Expected user-1, got %s", op.UserID)
	}
}

func TestEnqueueRequiresUserID(t *testing.T) {
	repo, _ := setupRepo(t)
	registry := registryWith(t, EntityLead, OpCreate, okHandler())
	m := NewManager(repo, registry, nil, 50)

	_, err := m.Enqueue(json.RawMessage(`{}`), "", EntityLead, OpCreate)
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestEnqueueRejectsUnregisteredPair(t *testing.T) {
	repo, _ := setupRepo(t)
	m := NewManager(repo, NewRegistry(), nil, 50)

	_, err := m.Enqueue(json.RawMessage(`{}`), "user-1", EntityLead, OpCreate)
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestEnqueueRejectsInvalidPayload(t *testing.T) {
	repo, _ := setupRepo(t)
	handler := &stubHandler{validateErr: fmt.Errorf("missing phone")}
	registry := registryWith(t, EntityLead, OpCreate, handler)
	m := NewManager(repo, registry, nil, 50)

	_, err := m.Enqueue(json.RawMessage(`{}`), "user-1", EntityLead, OpCreate)
	if !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}

	// Nothing persisted.
	count, err := repo.CountUserActiveOperations("user-1")
	if err != nil {
		t.Fatalf("CountUserActiveOperations failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty queue after rejected enqueue, got %d", count)
	}
}

func TestEnqueueEvictsOldestPending(t *testing.T) {
	repo, sqlDB := setupRepo(t)
	registry := registryWith(t, EntityLead, OpCreate, okHandler())
	m := NewManager(repo, registry, nil, 3)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := m.Enqueue(json.RawMessage(`{"user_id":"user-1"}`), "user-1", EntityLead, OpCreate)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, id)
	}
	// Make creation order unambiguous.
	for i, id := range ids {
		if _, err := sqlDB.Exec("UPDATE sync_operations SET created_at = ? WHERE id = ?", int64(1000+i), id); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}

	newest, err := m.Enqueue(json.RawMessage(`{"user_id":"user-1"}`), "user-1", EntityLead, OpCreate)
	if err != nil {
		t.Fatalf("Enqueue at capacity failed: %v", err)
	}

	count, err := repo.CountUserActiveOperations("user-1")
	if err != nil {
		t.Fatalf("CountUserActiveOperations failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected queue depth held at 3, got %d", count)
	}

	// Oldest pending was evicted; the newest admission survives.
	if _, err := repo.GetOperation(ids[0]); err == nil {
		t.Error("Expected oldest pending operation to be evicted")
	}
	if _, err := repo.GetOperation(newest); err != nil {
		t.Errorf("Expected newest operation to exist: %v", err)
	}
}

func TestEnqueueCapacityErrorWhenNothingEvictable(t *testing.T) {
	repo, _ := setupRepo(t)
	registry := registryWith(t, EntityLead, OpCreate, okHandler())
	m := NewManager(repo, registry, nil, 2)

	var ids []string
	for i := 0; i < 2; i++ {
		id, err := m.Enqueue(json.RawMessage(`{"user_id":"user-1"}`), "user-1", EntityLead, OpCreate)
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, id)
	}
	// Everything in flight: nothing is evictable.
	for _, id := range ids {
		if _, err := repo.MarkOperationSyncing(id); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}

	_, err := m.Enqueue(json.RawMessage(`{"user_id":"user-1"}`), "user-1", EntityLead, OpCreate)
	if !errors.Is(err, errors.ErrCapacity) {
		t.Errorf("Expected capacity error, got %v", err)
	}
}

func TestQueueStatus(t *testing.T) {
	repo, _ := setupRepo(t)
	registry := registryWith(t, EntityLead, OpCreate, okHandler())
	m := NewManager(repo, registry, nil, 50)

	first, err := m.Enqueue(json.RawMessage(`{"user_id":"user-1"}`), "user-1", EntityLead, OpCreate)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := m.Enqueue(json.RawMessage(`{"user_id":"user-1"}`), "user-1", EntityLead, OpCreate); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := repo.MarkOperationSyncing(first); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	status, err := m.Status("user-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Total != 2 {
		t.Errorf("Expected total 2, got %d", status.Total)
	}
	if status.Counts[db.OpStatusPending] != 1 {
		t.Errorf("Expected 1 pending, got %d", status.Counts[db.OpStatusPending])
	}
	if status.Counts[db.OpStatusSyncing] != 1 {
		t.Errorf("Expected 1 syncing, got %d", status.Counts[db.OpStatusSyncing])
	}
	if status.OldestPendingAt == 0 {
		t.Error("Expected oldest pending timestamp to be set")
	}
}

func TestRetryFailedResetsOperations(t *testing.T) {
	repo, _ := setupRepo(t)
	registry := registryWith(t, EntityLead, OpCreate, okHandler())
	m := NewManager(repo, registry, nil, 50)

	id, err := m.Enqueue(json.RawMessage(`{"user_id":"user-1"}`), "user-1", EntityLead, OpCreate)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := repo.MarkOperationSyncing(id); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := repo.FailOperation(id, "remote down"); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	reset, err := m.RetryFailed("user-1")
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if reset != 1 {
		t.Errorf("Expected 1 reset, got %d", reset)
	}

	op, err := repo.GetOperation(id)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Status != db.OpStatusPending || op.RetryCount != 0 {
		t.Errorf("Expected fresh pending operation, got status=%s retries=%d", op.Status, op.RetryCount)
	}
}
