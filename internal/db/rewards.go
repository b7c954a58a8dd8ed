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

const rewardColumns = `group_id, reward_id, name, description, cost, stock, is_active,
	total_pending, total_approved, total_delivered, created_at, updated_at`

func scanReward(row rowScanner) (models.Reward, error) {
	var r models.Reward
	var isActive int
	var createdAt, updatedAt int64
	err := row.Scan(
		&r.GroupID, &r.ID, &r.Name, &r.Description, &r.Cost, &r.Stock, &isActive,
		&r.TotalPending, &r.TotalApproved, &r.TotalDelivered, &createdAt, &updatedAt,
	)
	if err != nil {
		return models.Reward{}, err
	}
	r.IsActive = isActive != 0
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}

// GetReward retrieves a catalog entry
func (t *Tx) GetReward(ctx context.Context, groupID, rewardID string) (models.Reward, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+rewardColumns+` FROM rewards WHERE group_id = ? AND reward_id = ?`,
		groupID, rewardID,
	)
	r, err := scanReward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reward{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Reward{}, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListRewards returns a group's catalog ordered by cost
func (t *Tx) ListRewards(ctx context.Context, groupID string, activeOnly bool) ([]models.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE group_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY cost ASC, reward_id ASC`

	rows, err := t.q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []models.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("list rewards: %w", err)
		}
		rewards = append(rewards, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

// PutReward upserts catalog fields; lifecycle counters are left untouched
func (t *Tx) PutReward(ctx context.Context, r models.Reward) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO rewards (group_id, reward_id, name, description, cost, stock, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_id, reward_id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   cost = excluded.cost,
		   stock = excluded.stock,
		   is_active = excluded.is_active,
		   updated_at = excluded.updated_at`,
		r.GroupID, r.ID, r.Name, r.Description, r.Cost, r.Stock, boolToInt(r.IsActive),
		toMillis(r.CreatedAt), toMillis(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put reward: %w", err)
	}
	return nil
}

// AdjustRewardCounters applies deltas to the pending/approved/delivered counters
func (t *Tx) AdjustRewardCounters(ctx context.Context, groupID, rewardID string, delta storage.RewardCounters, at time.Time) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE rewards SET
		   total_pending = MAX(total_pending + ?, 0),
		   total_approved = total_approved + ?,
		   total_delivered = total_delivered + ?,
		   updated_at = ?
		 WHERE group_id = ? AND reward_id = ?`,
		delta.Pending, delta.Approved, delta.Delivered, toMillis(at), groupID, rewardID,
	)
	if err != nil {
		return fmt.Errorf("adjust reward counters: %w", err)
	}
	return requireRow(result, "adjust reward counters")
}

// ConsumeRewardStock takes one unit unless the reward is exhausted.
// Unlimited rewards are never decremented.
func (t *Tx) ConsumeRewardStock(ctx context.Context, groupID, rewardID string, at time.Time) (bool, error) {
	result, err := t.q.ExecContext(ctx,
		`UPDATE rewards SET
		   stock = CASE WHEN stock = -1 THEN -1 ELSE stock - 1 END,
		   updated_at = ?
		 WHERE group_id = ? AND reward_id = ? AND (stock = -1 OR stock > 0)`,
		toMillis(at), groupID, rewardID,
	)
	if err != nil {
		return false, fmt.Errorf("consume reward stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume reward stock: %w", err)
	}
	if rows == 1 {
		return true, nil
	}
	if _, err := t.GetReward(ctx, groupID, rewardID); err != nil {
		return false, err
	}
	return false, nil
}
