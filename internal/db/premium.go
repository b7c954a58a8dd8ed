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

const premiumColumns = `group_id, name, description, price, is_available, total_purchases,
	unique_buyers, created_at, updated_at`

func scanPremiumCommand(row rowScanner) (models.PremiumCommand, error) {
	var c models.PremiumCommand
	var isAvailable int
	var createdAt, updatedAt int64
	err := row.Scan(
		&c.GroupID, &c.Name, &c.Description, &c.Price, &isAvailable, &c.TotalPurchases,
		&c.UniqueBuyers, &createdAt, &updatedAt,
	)
	if err != nil {
		return models.PremiumCommand{}, err
	}
	c.IsAvailable = isAvailable != 0
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

// GetPremiumCommand retrieves a purchasable capability by name
func (t *Tx) GetPremiumCommand(ctx context.Context, groupID, name string) (models.PremiumCommand, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+premiumColumns+` FROM premium_commands WHERE group_id = ? AND name = ?`,
		groupID, name,
	)
	c, err := scanPremiumCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PremiumCommand{}, storage.ErrNotFound
	}
	if err != nil {
		return models.PremiumCommand{}, fmt.Errorf("get premium command: %w", err)
	}
	return c, nil
}

// ListPremiumCommands returns a group's premium catalog ordered by price
func (t *Tx) ListPremiumCommands(ctx context.Context, groupID string) ([]models.PremiumCommand, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT `+premiumColumns+` FROM premium_commands WHERE group_id = ? ORDER BY price ASC, name ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list premium commands: %w", err)
	}
	defer rows.Close()

	var commands []models.PremiumCommand
	for rows.Next() {
		c, err := scanPremiumCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("list premium commands: %w", err)
		}
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list premium commands: %w", err)
	}
	return commands, nil
}

// PutPremiumCommand upserts catalog fields; purchase counters are left untouched
func (t *Tx) PutPremiumCommand(ctx context.Context, c models.PremiumCommand) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO premium_commands (group_id, name, description, price, is_available, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_id, name) DO UPDATE SET
		   description = excluded.description,
		   price = excluded.price,
		   is_available = excluded.is_available,
		   updated_at = excluded.updated_at`,
		c.GroupID, c.Name, c.Description, c.Price, boolToInt(c.IsAvailable),
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put premium command: %w", err)
	}
	return nil
}

// IncrementCommandPurchases counts one more sale and one more distinct buyer.
// Ownership is unique per member, so every sale is a new buyer.
func (t *Tx) IncrementCommandPurchases(ctx context.Context, groupID, name string, at time.Time) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE premium_commands SET
		   total_purchases = total_purchases + 1,
		   unique_buyers = unique_buyers + 1,
		   updated_at = ?
		 WHERE group_id = ? AND name = ?`,
		toMillis(at), groupID, name,
	)
	if err != nil {
		return fmt.Errorf("increment command purchases: %w", err)
	}
	return requireRow(result, "increment command purchases")
}

// HasCapability reports whether the member already owns name
func (t *Tx) HasCapability(ctx context.Context, groupID, memberID, name string) (bool, error) {
	var found int
	err := t.q.QueryRowContext(ctx,
		`SELECT 1 FROM member_capabilities WHERE group_id = ? AND member_id = ? AND name = ?`,
		groupID, memberID, name,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has capability: %w", err)
	}
	return true, nil
}

// ListCapabilities returns what a member owns, oldest purchase first
func (t *Tx) ListCapabilities(ctx context.Context, groupID, memberID string) ([]models.OwnedCapability, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT group_id, member_id, name, price_paid, usage_count, purchased_at, last_used_at
		 FROM member_capabilities WHERE group_id = ? AND member_id = ?
		 ORDER BY purchased_at ASC, name ASC`,
		groupID, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	defer rows.Close()

	var owned []models.OwnedCapability
	for rows.Next() {
		var c models.OwnedCapability
		var purchasedAt int64
		var lastUsedAt sql.NullInt64
		if err := rows.Scan(&c.GroupID, &c.MemberID, &c.Name, &c.PricePaid, &c.UsageCount, &purchasedAt, &lastUsedAt); err != nil {
			return nil, fmt.Errorf("list capabilities: %w", err)
		}
		c.PurchasedAt = fromMillis(purchasedAt)
		c.LastUsedAt = fromNullMillis(lastUsedAt)
		owned = append(owned, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	return owned, nil
}

// GrantCapability records ownership; a second grant of the same name conflicts
func (t *Tx) GrantCapability(ctx context.Context, c models.OwnedCapability) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO member_capabilities (group_id, member_id, name, price_paid, usage_count, purchased_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.GroupID, c.MemberID, c.Name, c.PricePaid, c.UsageCount, toMillis(c.PurchasedAt), nullMillis(c.LastUsedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("grant capability: %w", err)
	}
	return nil
}

// GetPurchase retrieves a purchase audit record
func (t *Tx) GetPurchase(ctx context.Context, groupID, purchaseID string) (models.Purchase, error) {
	var p models.Purchase
	var createdAt int64
	err := t.q.QueryRowContext(ctx,
		`SELECT purchase_id, group_id, member_id, command_name, price_paid, created_at
		 FROM purchases WHERE group_id = ? AND purchase_id = ?`,
		groupID, purchaseID,
	).Scan(&p.ID, &p.GroupID, &p.MemberID, &p.CommandName, &p.PricePaid, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Purchase{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

// CreatePurchase writes the immutable purchase audit record
func (t *Tx) CreatePurchase(ctx context.Context, p models.Purchase) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO purchases (purchase_id, group_id, member_id, command_name, price_paid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.GroupID, p.MemberID, p.CommandName, p.PricePaid, toMillis(p.CreatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}
