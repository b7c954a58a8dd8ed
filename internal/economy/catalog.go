package economy

import (
	"context"
	"errors"
	"strings"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
)

// PutReward creates or updates a catalog reward. Lifecycle counters are
// maintained by the redemption workflow and are ignored here.
func (e *Engine) PutReward(ctx context.Context, r models.Reward) (models.Reward, error) {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	switch {
	case r.GroupID == "" || r.ID == "":
		return models.Reward{}, apperrors.New(apperrors.CodeInvalidArgument, "group and reward id are required")
	case r.Name == "":
		return models.Reward{}, apperrors.New(apperrors.CodeInvalidArgument, "reward name is required")
	case r.Cost < 0:
		return models.Reward{}, apperrors.New(apperrors.CodeInvalidArgument, "reward cost must not be negative")
	case r.Stock < models.UnlimitedStock:
		return models.Reward{}, apperrors.New(apperrors.CodeInvalidArgument, "reward stock must be -1 or more")
	}

	return retry.OnContention(ctx, e.policy, func(ctx context.Context) (models.Reward, error) {
		var stored models.Reward
		err := e.store.Update(ctx, func(tx storage.Tx) error {
			now := e.timestamp()
			existing, err := tx.GetReward(ctx, r.GroupID, r.ID)
			switch {
			case err == nil:
				r.CreatedAt = existing.CreatedAt
			case errors.Is(err, storage.ErrNotFound):
				r.CreatedAt = now
			default:
				return err
			}
			r.UpdatedAt = now
			if err := tx.PutReward(ctx, r); err != nil {
				return err
			}
			stored, err = tx.GetReward(ctx, r.GroupID, r.ID)
			return err
		})
		return stored, err
	})
}

// Rewards lists a group's catalog. activeOnly hides retired entries.
func (e *Engine) Rewards(ctx context.Context, groupID string, activeOnly bool) ([]models.Reward, error) {
	var rewards []models.Reward
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		rewards, err = tx.ListRewards(ctx, groupID, activeOnly)
		return err
	})
	return rewards, err
}

// PutPremiumCommand creates or updates a purchasable capability.
func (e *Engine) PutPremiumCommand(ctx context.Context, c models.PremiumCommand) (models.PremiumCommand, error) {
	c.Name = NormalizeCommandName(c.Name)
	switch {
	case c.GroupID == "" || c.Name == "":
		return models.PremiumCommand{}, apperrors.New(apperrors.CodeInvalidArgument, "group and command name are required")
	case c.Price < 0:
		return models.PremiumCommand{}, apperrors.New(apperrors.CodeInvalidArgument, "command price must not be negative")
	}

	return retry.OnContention(ctx, e.policy, func(ctx context.Context) (models.PremiumCommand, error) {
		var stored models.PremiumCommand
		err := e.store.Update(ctx, func(tx storage.Tx) error {
			now := e.timestamp()
			existing, err := tx.GetPremiumCommand(ctx, c.GroupID, c.Name)
			switch {
			case err == nil:
				c.CreatedAt = existing.CreatedAt
			case errors.Is(err, storage.ErrNotFound):
				c.CreatedAt = now
			default:
				return err
			}
			c.UpdatedAt = now
			if err := tx.PutPremiumCommand(ctx, c); err != nil {
				return err
			}
			stored, err = tx.GetPremiumCommand(ctx, c.GroupID, c.Name)
			return err
		})
		return stored, err
	})
}

// PremiumCommands lists a group's purchasable capabilities.
func (e *Engine) PremiumCommands(ctx context.Context, groupID string) ([]models.PremiumCommand, error) {
	var commands []models.PremiumCommand
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		commands, err = tx.ListPremiumCommands(ctx, groupID)
		return err
	})
	return commands, err
}
