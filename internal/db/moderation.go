package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
)

// AppendWarning adds one moderation history row. History is never rewritten.
func (t *Tx) AppendWarning(ctx context.Context, entry models.WarningEntry) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO warning_history (warning_id, group_id, member_id, kind, reason, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.GroupID, entry.MemberID, string(entry.Kind), entry.Reason, entry.Actor,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("append warning: %w", err)
	}
	return nil
}

// ListWarnings returns a member's full moderation history, oldest first
func (t *Tx) ListWarnings(ctx context.Context, groupID, memberID string) ([]models.WarningEntry, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT warning_id, group_id, member_id, kind, reason, actor, created_at
		 FROM warning_history WHERE group_id = ? AND member_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		groupID, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	var entries []models.WarningEntry
	for rows.Next() {
		var entry models.WarningEntry
		var kind string
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.GroupID, &entry.MemberID, &kind, &entry.Reason, &entry.Actor, &createdAt); err != nil {
			return nil, fmt.Errorf("list warnings: %w", err)
		}
		entry.Kind = models.WarningKind(kind)
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	return entries, nil
}

// IncrementWarnings bumps the warning counter and returns the new value
func (t *Tx) IncrementWarnings(ctx context.Context, groupID, memberID string, at time.Time) (int, error) {
	return t.incrementCounter(ctx, "warning_count", groupID, memberID, at)
}

// IncrementKicks bumps the lifetime kick counter and returns the new value
func (t *Tx) IncrementKicks(ctx context.Context, groupID, memberID string, at time.Time) (int, error) {
	return t.incrementCounter(ctx, "kick_count", groupID, memberID, at)
}

func (t *Tx) incrementCounter(ctx context.Context, column, groupID, memberID string, at time.Time) (int, error) {
	var count int
	err := t.q.QueryRowContext(ctx,
		`UPDATE members SET `+column+` = `+column+` + 1, updated_at = ?
		 WHERE group_id = ? AND member_id = ?
		 RETURNING `+column,
		toMillis(at), groupID, memberID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", column, err)
	}
	return count, nil
}

// ResetWarnings zeroes the counter and returns what it was
func (t *Tx) ResetWarnings(ctx context.Context, groupID, memberID string, at time.Time) (int, error) {
	var previous int
	err := t.q.QueryRowContext(ctx,
		`SELECT warning_count FROM members WHERE group_id = ? AND member_id = ?`,
		groupID, memberID,
	).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reset warnings: %w", err)
	}

	_, err = t.q.ExecContext(ctx,
		`UPDATE members SET warning_count = 0, updated_at = ? WHERE group_id = ? AND member_id = ?`,
		toMillis(at), groupID, memberID,
	)
	if err != nil {
		return 0, fmt.Errorf("reset warnings: %w", err)
	}
	return previous, nil
}
