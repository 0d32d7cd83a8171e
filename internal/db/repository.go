// Package db provides repository operations for the offline sync stores.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/brightcrm/backend/internal/models"
	"github.com/brightcrm/backend/internal/uuid"
)

// Operation status values persisted in sync_operations.status.
const (
	OpStatusPending   = "pending"
	OpStatusSyncing   = "syncing"
	OpStatusCompleted = "completed"
	OpStatusFailed    = "failed"
	OpStatusConflict  = "conflict"
)

// Conflict status values persisted in sync_conflicts.status.
const (
	ConflictStatusPending  = "pending_resolution"
	ConflictStatusResolved = "resolved"
)

// Repository provides store operations for all sync-core models.
// Statements are prepared on first use and cached for reuse.
type Repository struct {
	db *sql.DB

	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// QueuedOperation Operations
// =====================================================

const operationColumns = `id, user_id, entity_type, operation_type, payload, status,
	retry_count, max_retries, error_message, result, created_at,
	sync_started_at, sync_completed_at, failed_at, next_retry_at`

// CreateOperation persists a new queued operation in pending status.
func (r *Repository) CreateOperation(op *models.QueuedOperation) error {
	now := time.Now().Unix()
	op.ID = models.UUID(uuid.New())
	op.Status = OpStatusPending
	op.CreatedAt = now
	if op.MaxRetries == 0 {
		op.MaxRetries = 3
	}

	query := `
	INSERT INTO sync_operations (id, user_id, entity_type, operation_type, payload,
		status, retry_count, max_retries, error_message, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, op.ID, op.UserID, op.EntityType, op.OperationType,
		string(op.Payload), op.Status, op.RetryCount, op.MaxRetries, op.ErrorMessage, op.CreatedAt)
	return err
}

// GetOperation retrieves a queued operation by ID.
func (r *Repository) GetOperation(id string) (*models.QueuedOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM sync_operations WHERE id = ?`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	return scanOperation(stmt.QueryRow(id))
}

// ListReadyOperations returns up to limit pending operations whose retry time
// has arrived, oldest-created first.
func (r *Repository) ListReadyOperations(limit int) ([]*models.QueuedOperation, error) {
	query := `
	SELECT ` + operationColumns + `
	FROM sync_operations
	WHERE status = ? AND next_retry_at <= ?
	ORDER BY created_at ASC
	LIMIT ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(OpStatusPending, time.Now().Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*models.QueuedOperation
	for rows.Next() {
		op, err := scanOperationRow(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// MarkOperationSyncing flips a pending operation to syncing. Returns false if
// the operation was not pending anymore (picked up elsewhere or evicted).
func (r *Repository) MarkOperationSyncing(id string) (bool, error) {
	query := `
	UPDATE sync_operations
	SET status = ?, sync_started_at = ?
	WHERE id = ? AND status = ?
	`
	result, err := r.db.Exec(query, OpStatusSyncing, time.Now().Unix(), id, OpStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CompleteOperation marks a syncing operation as completed with the handler
// result summary.
func (r *Repository) CompleteOperation(id string, result json.RawMessage) error {
	query := `
	UPDATE sync_operations
	SET status = ?, result = ?, error_message = '', sync_completed_at = ?
	WHERE id = ? AND status = ?
	`
	res, err := r.db.Exec(query, OpStatusCompleted, string(result), time.Now().Unix(), id, OpStatusSyncing)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// FailOperation marks a syncing operation as terminally failed.
func (r *Repository) FailOperation(id, errorMessage string) error {
	query := `
	UPDATE sync_operations
	SET status = ?, error_message = ?, failed_at = ?
	WHERE id = ? AND status = ?
	`
	res, err := r.db.Exec(query, OpStatusFailed, errorMessage, time.Now().Unix(), id, OpStatusSyncing)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// RequeueOperation returns a syncing operation to pending with updated retry
// bookkeeping.
func (r *Repository) RequeueOperation(id string, retryCount int, nextRetryAt int64, errorMessage string) error {
	query := `
	UPDATE sync_operations
	SET status = ?, retry_count = ?, next_retry_at = ?, error_message = ?
	WHERE id = ? AND status = ?
	`
	res, err := r.db.Exec(query, OpStatusPending, retryCount, nextRetryAt, errorMessage, id, OpStatusSyncing)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// MarkOperationConflict marks a syncing operation as conflicted.
func (r *Repository) MarkOperationConflict(id, errorMessage string) error {
	query := `
	UPDATE sync_operations
	SET status = ?, error_message = ?, sync_completed_at = ?
	WHERE id = ? AND status = ?
	`
	res, err := r.db.Exec(query, OpStatusConflict, errorMessage, time.Now().Unix(), id, OpStatusSyncing)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// CountUserActiveOperations counts a user's pending and syncing operations.
func (r *Repository) CountUserActiveOperations(userID string) (int, error) {
	query := `
	SELECT COUNT(*) FROM sync_operations
	WHERE user_id = ? AND status IN (?, ?)
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return 0, err
	}
	var count int
	err = stmt.QueryRow(userID, OpStatusPending, OpStatusSyncing).Scan(&count)
	return count, err
}

// EvictOldestPending deletes up to n of a user's oldest pending operations
// and returns how many were removed. Syncing and terminal operations are
// never evicted.
func (r *Repository) EvictOldestPending(userID string, n int) (int, error) {
	query := `
	DELETE FROM sync_operations
	WHERE id IN (
		SELECT id FROM sync_operations
		WHERE user_id = ? AND status = ?
		ORDER BY created_at ASC
		LIMIT ?
	)
	`
	result, err := r.db.Exec(query, userID, OpStatusPending, n)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}

// UserQueueCounts returns per-status operation counts for a user.
func (r *Repository) UserQueueCounts(userID string) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM sync_operations WHERE user_id = ? GROUP BY status`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{
		OpStatusPending:   0,
		OpStatusSyncing:   0,
		OpStatusCompleted: 0,
		OpStatusFailed:    0,
		OpStatusConflict:  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// OldestPendingAt returns the created_at of the user's oldest pending
// operation, or false if there is none.
func (r *Repository) OldestPendingAt(userID string) (int64, bool, error) {
	query := `
	SELECT MIN(created_at) FROM sync_operations
	WHERE user_id = ? AND status = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return 0, false, err
	}
	var oldest sql.NullInt64
	if err := stmt.QueryRow(userID, OpStatusPending).Scan(&oldest); err != nil {
		return 0, false, err
	}
	if !oldest.Valid {
		return 0, false, nil
	}
	return oldest.Int64, true, nil
}

// DeleteCompletedOperationsBefore removes completed operations created before
// the cutoff and returns how many were removed.
func (r *Repository) DeleteCompletedOperationsBefore(cutoff int64) (int64, error) {
	query := `DELETE FROM sync_operations WHERE status = ? AND created_at < ?`
	result, err := r.db.Exec(query, OpStatusCompleted, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RequeueFailedOperations resets a user's terminally failed operations back to
// pending with fresh retry bookkeeping. Returns how many were reset.
func (r *Repository) RequeueFailedOperations(userID string) (int64, error) {
	query := `
	UPDATE sync_operations
	SET status = ?, retry_count = 0, next_retry_at = 0, error_message = '', failed_at = 0
	WHERE user_id = ? AND status = ?
	`
	result, err := r.db.Exec(query, OpStatusPending, userID, OpStatusFailed)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func requireAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("operation not in expected status: %s", id)
	}
	return nil
}

func scanOperation(row *sql.Row) (*models.QueuedOperation, error) {
	var op models.QueuedOperation
	var payload string
	var result sql.NullString
	err := row.Scan(
		&op.ID, &op.UserID, &op.EntityType, &op.OperationType, &payload, &op.Status,
		&op.RetryCount, &op.MaxRetries, &op.ErrorMessage, &result, &op.CreatedAt,
		&op.SyncStartedAt, &op.SyncCompletedAt, &op.FailedAt, &op.NextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	op.Payload = json.RawMessage(payload)
	if result.Valid {
		op.Result = json.RawMessage(result.String)
	}
	return &op, nil
}

func scanOperationRow(rows *sql.Rows) (*models.QueuedOperation, error) {
	var op models.QueuedOperation
	var payload string
	var result sql.NullString
	err := rows.Scan(
		&op.ID, &op.UserID, &op.EntityType, &op.OperationType, &payload, &op.Status,
		&op.RetryCount, &op.MaxRetries, &op.ErrorMessage, &result, &op.CreatedAt,
		&op.SyncStartedAt, &op.SyncCompletedAt, &op.FailedAt, &op.NextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	op.Payload = json.RawMessage(payload)
	if result.Valid {
		op.Result = json.RawMessage(result.String)
	}
	return &op, nil
}

// =====================================================
// ConflictRecord Operations
// =====================================================

const conflictColumns = `id, operation_id, entity_type, operation_type, offline_data,
	server_data, status, resolution, resolved_by, resolved_at, created_at, expires_at`

// CreateConflict persists a detected collision awaiting manual resolution.
func (r *Repository) CreateConflict(c *models.ConflictRecord) error {
	c.ID = models.UUID(uuid.New())
	c.Status = ConflictStatusPending
	c.CreatedAt = time.Now().Unix()

	query := `
	INSERT INTO sync_conflicts (id, operation_id, entity_type, operation_type,
		offline_data, server_data, status, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, c.ID, c.OperationID, c.EntityType, c.OperationType,
		string(c.OfflineData), string(c.ServerData), c.Status, c.CreatedAt, c.ExpiresAt)
	return err
}

// GetConflict retrieves a conflict record by ID.
func (r *Repository) GetConflict(id string) (*models.ConflictRecord, error) {
	query := `SELECT ` + conflictColumns + ` FROM sync_conflicts WHERE id = ?`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var c models.ConflictRecord
	var offline, server string
	err = stmt.QueryRow(id).Scan(
		&c.ID, &c.OperationID, &c.EntityType, &c.OperationType, &offline, &server,
		&c.Status, &c.Resolution, &c.ResolvedBy, &c.ResolvedAt, &c.CreatedAt, &c.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	c.OfflineData = json.RawMessage(offline)
	c.ServerData = json.RawMessage(server)
	return &c, nil
}

// ListPendingConflicts returns unresolved conflicts, newest first. When userID
// is non-empty, only conflicts whose offline payload belongs to that user are
// returned (ownership lives inside the payload, not on the record).
func (r *Repository) ListPendingConflicts(userID string, limit int) ([]*models.ConflictRecord, error) {
	baseQuery := `SELECT ` + conflictColumns + ` FROM sync_conflicts WHERE status = ?`
	orderLimit := ` ORDER BY created_at DESC LIMIT ?`

	var query string
	var args []interface{}

	if userID != "" {
		query = baseQuery + ` AND json_extract(offline_data, '$.user_id') = ?` + orderLimit
		args = []interface{}{ConflictStatusPending, userID, limit}
	} else {
		query = baseQuery + orderLimit
		args = []interface{}{ConflictStatusPending, limit}
	}

	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []*models.ConflictRecord
	for rows.Next() {
		var c models.ConflictRecord
		var offline, server string
		err := rows.Scan(
			&c.ID, &c.OperationID, &c.EntityType, &c.OperationType, &offline, &server,
			&c.Status, &c.Resolution, &c.ResolvedBy, &c.ResolvedAt, &c.CreatedAt, &c.ExpiresAt,
		)
		if err != nil {
			return nil, err
		}
		c.OfflineData = json.RawMessage(offline)
		c.ServerData = json.RawMessage(server)
		conflicts = append(conflicts, &c)
	}
	return conflicts, rows.Err()
}

// ResolveConflict records a manual resolution. Returns false if the conflict
// does not exist or was already resolved.
func (r *Repository) ResolveConflict(id, resolution, resolvedBy string) (bool, error) {
	query := `
	UPDATE sync_conflicts
	SET status = ?, resolution = ?, resolved_by = ?, resolved_at = ?
	WHERE id = ? AND status = ?
	`
	result, err := r.db.Exec(query, ConflictStatusResolved, resolution, resolvedBy,
		time.Now().Unix(), id, ConflictStatusPending)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CountExpiredUnresolvedConflicts counts unresolved conflicts past expiry.
func (r *Repository) CountExpiredUnresolvedConflicts(now int64) (int64, error) {
	query := `SELECT COUNT(*) FROM sync_conflicts WHERE status = ? AND expires_at <= ?`
	var count int64
	err := r.db.QueryRow(query, ConflictStatusPending, now).Scan(&count)
	return count, err
}

// DeleteExpiredConflicts removes conflicts past expiry regardless of
// resolution status and returns how many were removed.
func (r *Repository) DeleteExpiredConflicts(now int64) (int64, error) {
	query := `DELETE FROM sync_conflicts WHERE expires_at <= ?`
	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// =====================================================
// AutosaveSnapshot Operations
// =====================================================

// UpsertSnapshot creates or replaces the live snapshot for the scope key
// (entity_type, entity_id, user_id). An existing snapshot keeps its ID, gets
// its version incremented and its TTL refreshed.
func (r *Repository) UpsertSnapshot(snap *models.AutosaveSnapshot) error {
	now := time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existingID models.UUID
	var existingVersion int
	err = tx.QueryRow(
		`SELECT id, version FROM autosave_snapshots WHERE entity_type = ? AND entity_id = ? AND user_id = ?`,
		snap.EntityType, snap.EntityID, snap.UserID,
	).Scan(&existingID, &existingVersion)

	switch {
	case err == sql.ErrNoRows:
		snap.ID = models.UUID(uuid.New())
		snap.Version = 1
		snap.CreatedAt = now
		snap.UpdatedAt = now
		_, err = tx.Exec(
			`INSERT INTO autosave_snapshots (id, entity_type, entity_id, user_id, data, version, created_at, updated_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.EntityType, snap.EntityID, snap.UserID, string(snap.Data),
			snap.Version, snap.CreatedAt, snap.UpdatedAt, snap.ExpiresAt,
		)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		snap.ID = existingID
		snap.Version = existingVersion + 1
		snap.UpdatedAt = now
		_, err = tx.Exec(
			`UPDATE autosave_snapshots SET data = ?, version = ?, updated_at = ?, expires_at = ? WHERE id = ?`,
			string(snap.Data), snap.Version, snap.UpdatedAt, snap.ExpiresAt, snap.ID,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetSnapshot returns the live, non-expired snapshot for a scope key.
func (r *Repository) GetSnapshot(entityType, entityID, userID string) (*models.AutosaveSnapshot, error) {
	query := `
	SELECT id, entity_type, entity_id, user_id, data, version, created_at, updated_at, expires_at
	FROM autosave_snapshots
	WHERE entity_type = ? AND entity_id = ? AND user_id = ? AND expires_at > ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var snap models.AutosaveSnapshot
	var data string
	err = stmt.QueryRow(entityType, entityID, userID, time.Now().Unix()).Scan(
		&snap.ID, &snap.EntityType, &snap.EntityID, &snap.UserID, &data,
		&snap.Version, &snap.CreatedAt, &snap.UpdatedAt, &snap.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	snap.Data = json.RawMessage(data)
	return &snap, nil
}

// DeleteExpiredSnapshots removes snapshots past expiry and returns how many
// were removed.
func (r *Repository) DeleteExpiredSnapshots(now int64) (int64, error) {
	query := `DELETE FROM autosave_snapshots WHERE expires_at <= ?`
	result, err := r.db.Exec(query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// =====================================================
// Lead Operations
// =====================================================

// CreateLead creates a new lead.
func (r *Repository) CreateLead(lead *models.Lead) error {
	now := time.Now().Unix()
	lead.ID = models.UUID(uuid.New())
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Stage == "" {
		lead.Stage = "new"
	}

	query := `
	INSERT INTO leads (id, user_id, name, phone, email, source, stage, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, lead.ID, lead.UserID, lead.Name, lead.Phone, lead.Email,
		lead.Source, lead.Stage, lead.Notes, lead.CreatedAt, lead.UpdatedAt)
	return err
}

// GetLead retrieves a lead by ID.
func (r *Repository) GetLead(id string) (*models.Lead, error) {
	query := `
	SELECT id, user_id, name, phone, email, source, stage, notes, created_at, updated_at
	FROM leads WHERE id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	var lead models.Lead
	err = stmt.QueryRow(id).Scan(
		&lead.ID, &lead.UserID, &lead.Name, &lead.Phone, &lead.Email,
		&lead.Source, &lead.Stage, &lead.Notes, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// UpdateLead updates an existing lead.
func (r *Repository) UpdateLead(lead *models.Lead) error {
	lead.Touch()
	query := `
	UPDATE leads
	SET name = ?, phone = ?, email = ?, source = ?, stage = ?, notes = ?, updated_at = ?
	WHERE id = ?
	`
	result, err := r.db.Exec(query, lead.Name, lead.Phone, lead.Email, lead.Source,
		lead.Stage, lead.Notes, lead.UpdatedAt, lead.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("lead not found: %s", lead.ID)
	}
	return nil
}

// FindLeadByNaturalKey looks up a lead by its phone+email dedup key.
// Returns sql.ErrNoRows when no lead matches.
func (r *Repository) FindLeadByNaturalKey(phone, email string) (*models.Lead, error) {
	query := `
	SELECT id, user_id, name, phone, email, source, stage, notes, created_at, updated_at
	FROM leads WHERE phone = ? AND email = ?
	LIMIT 1
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	var lead models.Lead
	err = stmt.QueryRow(phone, email).Scan(
		&lead.ID, &lead.UserID, &lead.Name, &lead.Phone, &lead.Email,
		&lead.Source, &lead.Stage, &lead.Notes, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// =====================================================
// Task Operations
// =====================================================

// CreateTask creates a new task.
func (r *Repository) CreateTask(task *models.Task) error {
	now := time.Now().Unix()
	task.ID = models.UUID(uuid.New())
	task.CreatedAt = now
	task.UpdatedAt = now

	query := `
	INSERT INTO tasks (id, user_id, lead_id, title, description, due_at, completed, completed_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, task.ID, task.UserID, task.LeadID, task.Title,
		task.Description, task.DueAt, task.Completed, task.CompletedAt,
		task.CreatedAt, task.UpdatedAt)
	return err
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(id string) (*models.Task, error) {
	query := `
	SELECT id, user_id, lead_id, title, description, due_at, completed, completed_at, created_at, updated_at
	FROM tasks WHERE id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	var task models.Task
	err = stmt.QueryRow(id).Scan(
		&task.ID, &task.UserID, &task.LeadID, &task.Title, &task.Description,
		&task.DueAt, &task.Completed, &task.CompletedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// CompleteTask marks a task as completed. Returns false if the task does not
// exist or was already completed.
func (r *Repository) CompleteTask(id string) (bool, error) {
	now := time.Now().Unix()
	query := `
	UPDATE tasks SET completed = 1, completed_at = ?, updated_at = ?
	WHERE id = ? AND completed = 0
	`
	result, err := r.db.Exec(query, now, now, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
