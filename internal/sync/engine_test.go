package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/brightcrm/backend/internal/db"
)

// setupRepo creates a migrated in-memory store for engine tests.
func setupRepo(t *testing.T) (*db.Repository, *sql.DB) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Migrate(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db.NewRepository(sqlDB), sqlDB
}

// stubHandler is a scriptable Handler for engine tests.
type stubHandler struct {
	validateErr error
	applyFn     func(ctx context.Context, payload json.RawMessage) (*Outcome, error)
}

func (h *stubHandler) Validate(payload json.RawMessage) error {
	return h.validateErr
}

func (h *stubHandler) Apply(ctx context.Context, payload json.RawMessage) (*Outcome, error) {
	if h.applyFn == nil {
		return Applied(map[string]interface{}{"ok": true}), nil
	}
	return h.applyFn(ctx, payload)
}

// okHandler always applies successfully.
func okHandler() *stubHandler {
	return &stubHandler{}
}

// registryWith builds a registry with a single binding.
func registryWith(t *testing.T, entity EntityType, op OperationType, h Handler) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.Register(entity, op, h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return r
}
