package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/brightcrm/backend/internal/errors"
)

func TestAutosaveSaveAndGet(t *testing.T) {
	repo, _ := setupRepo(t)
	a := NewAutosave(repo, 24*time.Hour)

	id, err := a.Save(json.RawMessage(`{"name":"draft"}`), EntityLead, "draft-1", "user-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected snapshot id")
	}

	snap, err := a.Get(EntityLead, "draft-1", "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap == nil {
		t.Fatal("Expected snapshot")
	}
	if string(snap.Data) != `{"name":"draft"}` {
		t.Errorf("Expected draft data, got %s", snap.Data)
	}
	if snap.Version != 1 {
		t.Errorf("Expected version 1, got %d", snap.Version)
	}
}

func TestAutosaveVersionIncrements(t *testing.T) {
	repo, _ := setupRepo(t)
	a := NewAutosave(repo, 24*time.Hour)

	first, err := a.Save(json.RawMessage(`{"name":"v1"}`), EntityLead, "draft-1", "user-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second, err := a.Save(json.RawMessage(`{"name":"v2"}`), EntityLead, "draft-1", "user-1")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if first != second {
		t.Errorf("Expected stable snapshot id, got %s and %s", first, second)
	}

	snap, err := a.Get(EntityLead, "draft-1", "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap.Version != 2 {
		t.Errorf("Expected version 2, got %d", snap.Version)
	}
	if string(snap.Data) != `{"name":"v2"}` {
		t.Errorf("Expected latest data, got %s", snap.Data)
	}
}

func TestAutosaveScopesAreIndependent(t *testing.T) {
	repo, _ := setupRepo(t)
	a := NewAutosave(repo, 24*time.Hour)

	if _, err := a.Save(json.RawMessage(`{"who":"me"}`), EntityLead, "draft-1", "user-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := a.Save(json.RawMessage(`{"who":"them"}`), EntityLead, "draft-1", "user-2"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mine, err := a.Get(EntityLead, "draft-1", "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(mine.Data) != `{"who":"me"}` {
		t.Errorf("Expected per-user scoping, got %s", mine.Data)
	}
	if mine.Version != 1 {
		t.Errorf("Expected independent version 1, got %d", mine.Version)
	}
}

func TestAutosaveValidation(t *testing.T) {
	repo, _ := setupRepo(t)
	a := NewAutosave(repo, 24*time.Hour)

	cases := []struct {
		name       string
		data       json.RawMessage
		entityType EntityType
		entityID   string
		userID     string
	}{
		{"empty data", nil, EntityLead, "draft-1", "user-1"},
		{"invalid json", json.RawMessage(`{not json`), EntityLead, "draft-1", "user-1"},
		{"missing entity type", json.RawMessage(`{}`), "", "draft-1", "user-1"},
		{"missing entity id", json.RawMessage(`{}`), EntityLead, "", "user-1"},
		{"missing user id", json.RawMessage(`{}`), EntityLead, "draft-1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Save(tc.data, tc.entityType, tc.entityID, tc.userID)
			if !errors.Is(err, errors.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestAutosaveGetMissing(t *testing.T) {
	repo, _ := setupRepo(t)
	a := NewAutosave(repo, 24*time.Hour)

	snap, err := a.Get(EntityLead, "no-such-draft", "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap != nil {
		t.Errorf("Expected nil for missing snapshot, got %+v", snap)
	}
}

func TestAutosaveExpiredIsGone(t *testing.T) {
	repo, _ := setupRepo(t)
	a := NewAutosave(repo, -time.Hour) // already expired on write

	if _, err := a.Save(json.RawMessage(`{}`), EntityLead, "draft-1", "user-1"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	snap, err := a.Get(EntityLead, "draft-1", "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap != nil {
		t.Error("Expected expired snapshot to be invisible")
	}
}
