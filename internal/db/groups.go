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

// GetGroupConfig returns a group's stored overrides
func (t *Tx) GetGroupConfig(ctx context.Context, groupID string) (models.GroupConfig, error) {
	var cfg models.GroupConfig
	var updatedAt int64
	err := t.q.QueryRowContext(ctx,
		`SELECT group_id, messages_per_point, max_warnings, max_pending_redemptions, points_name, updated_at
		 FROM group_configs WHERE group_id = ?`,
		groupID,
	).Scan(&cfg.GroupID, &cfg.MessagesPerPoint, &cfg.MaxWarnings, &cfg.MaxPendingRedemptions, &cfg.PointsName, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupConfig{}, storage.ErrNotFound
	}
	if err != nil {
		return models.GroupConfig{}, fmt.Errorf("get group config: %w", err)
	}
	cfg.UpdatedAt = fromMillis(updatedAt)
	return cfg, nil
}

// PutGroupConfig upserts a group's economic knobs
func (t *Tx) PutGroupConfig(ctx context.Context, cfg models.GroupConfig) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO group_configs (group_id, messages_per_point, max_warnings, max_pending_redemptions, points_name, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET
		   messages_per_point = excluded.messages_per_point,
		   max_warnings = excluded.max_warnings,
		   max_pending_redemptions = excluded.max_pending_redemptions,
		   points_name = excluded.points_name,
		   updated_at = excluded.updated_at`,
		cfg.GroupID, cfg.MessagesPerPoint, cfg.MaxWarnings, cfg.MaxPendingRedemptions, cfg.PointsName,
		toMillis(cfg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put group config: %w", err)
	}
	return nil
}

// AddGroupPurchase bumps the group's aggregate purchase counters
func (t *Tx) AddGroupPurchase(ctx context.Context, groupID string, price int64, at time.Time) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO group_stats (group_id, total_purchases, total_purchase_points, updated_at)
		 VALUES (?, 1, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET
		   total_purchases = total_purchases + 1,
		   total_purchase_points = total_purchase_points + excluded.total_purchase_points,
		   updated_at = excluded.updated_at`,
		groupID, price, toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("add group purchase: %w", err)
	}
	return nil
}

// GetGroupStats returns aggregate counters; a group with no activity reads as zero
func (t *Tx) GetGroupStats(ctx context.Context, groupID string) (models.GroupStats, error) {
	stats := models.GroupStats{GroupID: groupID}
	err := t.q.QueryRowContext(ctx,
		`SELECT total_purchases, total_purchase_points FROM group_stats WHERE group_id = ?`,
		groupID,
	).Scan(&stats.TotalPurchases, &stats.TotalPurchasePoints)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return models.GroupStats{}, fmt.Errorf("get group stats: %w", err)
	}
	return stats, nil
}
