package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// QuotaStore implements repositories.QuotaStore on a quota_calls table.
type QuotaStore struct {
	db     *DB
	logger *zap.Logger
}

// NewQuotaStore creates a new Postgres quota store
func NewQuotaStore(db *DB, logger *zap.Logger) *QuotaStore {
	return &QuotaStore{
		db:     db,
		logger: logger,
	}
}

// RecordCall records one call at the given timestamp.
func (s *QuotaStore) RecordCall(ctx context.Context, capabilityID, actorID string, at time.Time) error {
	query := `
		INSERT INTO quota_calls (capability_id, actor_id, called_at)
		VALUES ($1, $2, $3)
	`

	if _, err := s.db.ExecContext(ctx, query, capabilityID, actorID, at); err != nil {
		return fmt.Errorf("failed to record quota call: %w", err)
	}
	return nil
}

// CountCalls returns how many recorded calls fall within the trailing window
// ending at asOf.
func (s *QuotaStore) CountCalls(ctx context.Context, capabilityID, actorID string, asOf time.Time, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM quota_calls
		WHERE capability_id = $1
		  AND actor_id = $2
		  AND called_at >= $3
		  AND called_at <= $4
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, capabilityID, actorID, asOf.Add(-window), asOf).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count quota calls: %w", err)
	}
	return count, nil
}

// OldestCall returns the oldest call timestamp within the trailing window.
func (s *QuotaStore) OldestCall(ctx context.Context, capabilityID, actorID string, asOf time.Time, window time.Duration) (time.Time, bool, error) {
	query := `
		SELECT MIN(called_at)
		FROM quota_calls
		WHERE capability_id = $1
		  AND actor_id = $2
		  AND called_at >= $3
		  AND called_at <= $4
	`

	var oldest sql.NullTime
	err := s.db.QueryRowContext(ctx, query, capabilityID, actorID, asOf.Add(-window), asOf).Scan(&oldest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query oldest quota call: %w", err)
	}
	if !oldest.Valid {
		return time.Time{}, false, nil
	}
	return oldest.Time, true, nil
}

// TryRecordCall atomically checks the window count against limit and records
// the call only when below it. The check and the insert run inside one
// transaction holding a per-key advisory lock: under READ COMMITTED a bare
// conditional insert counts against its own snapshot, so two concurrent
// callers could both observe "below limit" and both take the last slot. The
// lock serializes callers on the same (capability, actor) key; it is released
// automatically at commit or rollback.
func (s *QuotaStore) TryRecordCall(ctx context.Context, capabilityID, actorID string, at time.Time, window time.Duration, limit int) (int, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin quota transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, capabilityID+":"+actorID); err != nil {
		return 0, false, fmt.Errorf("failed to acquire quota lock: %w", err)
	}

	countQuery := `
		SELECT COUNT(*)
		FROM quota_calls
		WHERE capability_id = $1
		  AND actor_id = $2
		  AND called_at >= $3
		  AND called_at <= $4
	`

	var count int
	if err := tx.QueryRowContext(ctx, countQuery, capabilityID, actorID, at.Add(-window), at).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("failed to count quota calls: %w", err)
	}
	if count >= limit {
		return count, false, nil
	}

	insert := `
		INSERT INTO quota_calls (capability_id, actor_id, called_at)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.ExecContext(ctx, insert, capabilityID, actorID, at); err != nil {
		return 0, false, fmt.Errorf("failed to record quota call: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit quota call: %w", err)
	}
	return count, true, nil
}

// CleanupOldCalls removes calls older than the retention period to keep the
// table size manageable. Should be called periodically.
func (s *QuotaStore) CleanupOldCalls(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.ExecContext(ctx, `DELETE FROM quota_calls WHERE called_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old quota calls: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info("cleaned up old quota calls",
		zap.Int64("rows_deleted", rows),
		zap.Time("cutoff_time", cutoff))

	return rows, nil
}

// StartCleanupWorker starts a background worker to periodically clean up old
// quota calls.
func (s *QuotaStore) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started quota cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupOldCalls(ctx, retention); err != nil {
				s.logger.Error("failed to cleanup old quota calls", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping quota cleanup worker")
			return
		}
	}
}
