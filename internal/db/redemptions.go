package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
)

const redemptionColumns = `redemption_id, group_id, reward_id, reward_name, member_id, points_cost,
	status, notes, requested_at, processed_at, processed_by, reject_reason,
	delivered_at, delivered_by, delivery_notes`

func scanRedemption(row rowScanner) (models.Redemption, error) {
	var r models.Redemption
	var status string
	var requestedAt int64
	var processedAt, deliveredAt sql.NullInt64
	err := row.Scan(
		&r.ID, &r.GroupID, &r.RewardID, &r.RewardName, &r.MemberID, &r.PointsCost,
		&status, &r.Notes, &requestedAt, &processedAt, &r.ProcessedBy, &r.RejectReason,
		&deliveredAt, &r.DeliveredBy, &r.DeliveryNotes,
	)
	if err != nil {
		return models.Redemption{}, err
	}
	r.Status = models.RedemptionStatus(status)
	r.RequestedAt = fromMillis(requestedAt)
	r.ProcessedAt = fromNullMillis(processedAt)
	r.DeliveredAt = fromNullMillis(deliveredAt)
	return r, nil
}

// CreateRedemption stores a new redemption request
func (t *Tx) CreateRedemption(ctx context.Context, r models.Redemption) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO redemptions (redemption_id, group_id, reward_id, reward_name, member_id,
		   points_cost, status, notes, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.GroupID, r.RewardID, r.RewardName, r.MemberID, r.PointsCost,
		string(r.Status), r.Notes, toMillis(r.RequestedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create redemption: %w", err)
	}
	return nil
}

// GetRedemption retrieves a redemption by ID
func (t *Tx) GetRedemption(ctx context.Context, groupID, redemptionID string) (models.Redemption, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions WHERE group_id = ? AND redemption_id = ?`,
		groupID, redemptionID,
	)
	r, err := scanRedemption(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Redemption{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Redemption{}, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// ResolveRedemptionID expands the short id shown to staff
func (t *Tx) ResolveRedemptionID(ctx context.Context, groupID, prefix string) (string, error) {
	prefix = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := t.q.QueryContext(ctx,
		`SELECT redemption_id FROM redemptions
		 WHERE group_id = ? AND redemption_id LIKE ? || '%' ESCAPE '\'
		 LIMIT 2`,
		groupID, prefix,
	)
	if err != nil {
		return "", fmt.Errorf("resolve redemption id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve redemption id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve redemption id: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", storage.ErrNotFound
	case 1:
		return ids[0], nil
	default:
		return "", storage.ErrConflict
	}
}

// CountPendingRedemptions counts a member's unresolved requests in a group
func (t *Tx) CountPendingRedemptions(ctx context.Context, groupID, memberID string) (int, error) {
	var count int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM redemptions WHERE group_id = ? AND member_id = ? AND status = ?`,
		groupID, memberID, string(models.StatusPending),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending redemptions: %w", err)
	}
	return count, nil
}

// ListRedemptions returns a group's redemptions in one status, oldest first
func (t *Tx) ListRedemptions(ctx context.Context, groupID string, status models.RedemptionStatus, limit int) ([]models.Redemption, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions
		 WHERE group_id = ? AND status = ?
		 ORDER BY requested_at ASC, redemption_id ASC
		 LIMIT ?`,
		groupID, string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []models.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("list redemptions: %w", err)
		}
		redemptions = append(redemptions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return redemptions, nil
}

// TransitionRedemption writes the processing fields of r only while the
// stored status is still from; it reports false when another writer got there first.
func (t *Tx) TransitionRedemption(ctx context.Context, r models.Redemption, from models.RedemptionStatus) (bool, error) {
	result, err := t.q.ExecContext(ctx,
		`UPDATE redemptions SET
		   status = ?, processed_at = ?, processed_by = ?, reject_reason = ?,
		   delivered_at = ?, delivered_by = ?, delivery_notes = ?
		 WHERE group_id = ? AND redemption_id = ? AND status = ?`,
		string(r.Status), nullMillis(r.ProcessedAt), r.ProcessedBy, r.RejectReason,
		nullMillis(r.DeliveredAt), r.DeliveredBy, r.DeliveryNotes,
		r.GroupID, r.ID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition redemption: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition redemption: %w", err)
	}
	return rows == 1, nil
}
