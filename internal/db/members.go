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

const memberColumns = `group_id, member_id, linked_id, display_name, points, lifetime_earned,
	lifetime_spent, lifetime_redeemed, message_count, messages_since_last_point,
	warning_count, kick_count, is_active, created_at, updated_at, last_message_at`

func scanMember(row rowScanner) (models.Member, error) {
	var m models.Member
	var isActive int
	var createdAt, updatedAt int64
	var lastMessageAt sql.NullInt64
	err := row.Scan(
		&m.GroupID, &m.MemberID, &m.LinkedID, &m.DisplayName, &m.Points, &m.LifetimeEarned,
		&m.LifetimeSpent, &m.LifetimeRedeemed, &m.MessageCount, &m.MessagesSinceLastPoint,
		&m.WarningCount, &m.KickCount, &isActive, &createdAt, &updatedAt, &lastMessageAt,
	)
	if err != nil {
		return models.Member{}, err
	}
	m.IsActive = isActive != 0
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	m.LastMessageAt = fromNullMillis(lastMessageAt)
	return m, nil
}

// GetMember retrieves a member by canonical id
func (t *Tx) GetMember(ctx context.Context, groupID, memberID string) (models.Member, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE group_id = ? AND member_id = ?`,
		groupID, memberID,
	)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// FindMemberByLinkedID tries each candidate in order and returns the first hit.
func (t *Tx) FindMemberByLinkedID(ctx context.Context, groupID string, candidates []string) (models.Member, error) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		row := t.q.QueryRowContext(ctx,
			`SELECT `+memberColumns+` FROM members WHERE group_id = ? AND linked_id = ?`,
			groupID, candidate,
		)
		m, err := scanMember(row)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return models.Member{}, fmt.Errorf("find member by linked id: %w", err)
		}
		return m, nil
	}
	return models.Member{}, storage.ErrNotFound
}

// CreateMember inserts a member unless one already exists under the same key
func (t *Tx) CreateMember(ctx context.Context, m models.Member) (bool, error) {
	result, err := t.q.ExecContext(ctx,
		`INSERT INTO members (group_id, member_id, linked_id, display_name, points, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_id, member_id) DO NOTHING`,
		m.GroupID, m.MemberID, m.LinkedID, m.DisplayName, m.Points, boolToInt(m.IsActive),
		toMillis(m.CreatedAt), toMillis(m.UpdatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return false, storage.ErrConflict
		}
		return false, fmt.Errorf("create member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create member: %w", err)
	}
	return rows == 1, nil
}

// SetLinkedID records the member's platform alias
func (t *Tx) SetLinkedID(ctx context.Context, groupID, memberID, linkedID string, at time.Time) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE members SET linked_id = ?, updated_at = ? WHERE group_id = ? AND member_id = ?`,
		linkedID, toMillis(at), groupID, memberID,
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("set linked id: %w", err)
	}
	return requireRow(result, "set linked id")
}

// ReleaseLinkedID takes an alias away from whoever held it before keepMemberID.
// Usernames get renamed and reassigned, so the previous holder loses it.
func (t *Tx) ReleaseLinkedID(ctx context.Context, groupID string, candidates []string, keepMemberID string, at time.Time) (int64, error) {
	var released int64
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		result, err := t.q.ExecContext(ctx,
			`UPDATE members SET linked_id = '', updated_at = ?
			 WHERE group_id = ? AND linked_id = ? AND member_id <> ?`,
			toMillis(at), groupID, candidate, keepMemberID,
		)
		if err != nil {
			return released, fmt.Errorf("release linked id: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return released, fmt.Errorf("release linked id: %w", err)
		}
		released += rows
	}
	return released, nil
}

// SetMemberActive flips the soft-delete flag
func (t *Tx) SetMemberActive(ctx context.Context, groupID, memberID string, active bool, at time.Time) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE members SET is_active = ?, updated_at = ? WHERE group_id = ? AND member_id = ?`,
		boolToInt(active), toMillis(at), groupID, memberID,
	)
	if err != nil {
		return fmt.Errorf("set member active: %w", err)
	}
	return requireRow(result, "set member active")
}

// AddPoints applies delta in a single statement. When the balance would go
// negative it returns the current balance with storage.ErrNegativeBalance.
func (t *Tx) AddPoints(ctx context.Context, groupID, memberID string, delta int64, at time.Time) (int64, error) {
	var points int64
	err := t.q.QueryRowContext(ctx,
		`UPDATE members SET
		   points = points + ?1,
		   lifetime_earned = lifetime_earned + CASE WHEN ?1 > 0 THEN ?1 ELSE 0 END,
		   lifetime_spent = lifetime_spent + CASE WHEN ?1 < 0 THEN -?1 ELSE 0 END,
		   updated_at = ?2
		 WHERE group_id = ?3 AND member_id = ?4 AND points + ?1 >= 0
		 RETURNING points`,
		delta, toMillis(at), groupID, memberID,
	).Scan(&points)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := t.GetMember(ctx, groupID, memberID)
		if getErr != nil {
			return 0, getErr
		}
		return current.Points, storage.ErrNegativeBalance
	}
	if err != nil {
		return 0, fmt.Errorf("add points: %w", err)
	}
	return points, nil
}

// SetPoints overwrites the balance without touching lifetime counters
func (t *Tx) SetPoints(ctx context.Context, groupID, memberID string, value int64, at time.Time) (int64, error) {
	if value < 0 {
		return 0, storage.ErrNegativeBalance
	}
	var points int64
	err := t.q.QueryRowContext(ctx,
		`UPDATE members SET points = ?, updated_at = ? WHERE group_id = ? AND member_id = ? RETURNING points`,
		value, toMillis(at), groupID, memberID,
	).Scan(&points)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("set points: %w", err)
	}
	return points, nil
}

// RecordMessage increments the activity counters and, when the counter
// reaches messagesPerPoint, awards a point and resets it, all in one statement.
// Right-hand expressions read the pre-update row.
func (t *Tx) RecordMessage(ctx context.Context, groupID, memberID string, messagesPerPoint int64, at time.Time) (storage.Activity, error) {
	if messagesPerPoint <= 0 {
		return storage.Activity{}, fmt.Errorf("messages per point must be positive")
	}
	var activity storage.Activity
	err := t.q.QueryRowContext(ctx,
		`UPDATE members SET
		   message_count = message_count + 1,
		   points = points + CASE WHEN messages_since_last_point + 1 >= ?1 THEN 1 ELSE 0 END,
		   lifetime_earned = lifetime_earned + CASE WHEN messages_since_last_point + 1 >= ?1 THEN 1 ELSE 0 END,
		   messages_since_last_point = CASE WHEN messages_since_last_point + 1 >= ?1 THEN 0 ELSE messages_since_last_point + 1 END,
		   last_message_at = ?2,
		   updated_at = ?2
		 WHERE group_id = ?3 AND member_id = ?4
		 RETURNING message_count, messages_since_last_point, points`,
		messagesPerPoint, toMillis(at), groupID, memberID,
	).Scan(&activity.MessageCount, &activity.MessagesSinceLastPoint, &activity.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Activity{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Activity{}, fmt.Errorf("record message: %w", err)
	}
	activity.Awarded = activity.MessagesSinceLastPoint == 0
	return activity, nil
}

// IncrementRedeemed bumps the lifetime count of delivered redemptions
func (t *Tx) IncrementRedeemed(ctx context.Context, groupID, memberID string, at time.Time) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE members SET lifetime_redeemed = lifetime_redeemed + 1, updated_at = ?
		 WHERE group_id = ? AND member_id = ?`,
		toMillis(at), groupID, memberID,
	)
	if err != nil {
		return fmt.Errorf("increment redeemed: %w", err)
	}
	return requireRow(result, "increment redeemed")
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}
