package economy

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
	"github.com/PercyTuncar/bot-2026-sub001/internal/telemetry"
)

// PurchaseResult is the state after a capability purchase.
type PurchaseResult struct {
	Purchase   models.Purchase
	Capability models.OwnedCapability
	Points     int64 // member balance after the debit
	PointsName string
}

// PurchaseCapability debits the command's price and grants the member
// permanent ownership. Ownership is checked first, so a second purchase of the
// same command always fails with AlreadyOwned and never charges twice.
func (e *Engine) PurchaseCapability(ctx context.Context, ref models.MemberRef, name string) (res PurchaseResult, err error) {
	ctx, span := telemetry.Start(ctx, e.tracer, "economy.PurchaseCapability", ref.GroupID,
		attribute.String("economy.command", name))
	defer func() { telemetry.End(span, err) }()

	name = NormalizeCommandName(name)
	if name == "" {
		return PurchaseResult{}, apperrors.New(apperrors.CodeInvalidArgument, "command name is required")
	}
	purchaseID := e.newID()

	return retry.OnContention(ctx, e.policy, func(ctx context.Context) (PurchaseResult, error) {
		var result PurchaseResult
		err := e.store.Update(ctx, func(tx storage.Tx) error {
			cfg, err := e.configs.Load(ctx, tx, ref.GroupID)
			if err != nil {
				return err
			}
			result.PointsName = cfg.PointsName

			if existing, err := tx.GetPurchase(ctx, ref.GroupID, purchaseID); err == nil {
				member, err := tx.GetMember(ctx, ref.GroupID, ref.MemberID)
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
				result.Purchase = existing
				result.Capability = models.OwnedCapability{
					GroupID:     existing.GroupID,
					MemberID:    existing.MemberID,
					Name:        existing.CommandName,
					PricePaid:   existing.PricePaid,
					PurchasedAt: existing.CreatedAt,
				}
				result.Points = member.Points
				return nil
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			member, err := tx.GetMember(ctx, ref.GroupID, ref.MemberID)
			if err != nil {
				return notFound(err, apperrors.CodeMemberNotFound, "member not found", apperrors.MetaMemberID, ref.MemberID)
			}
			cmd, err := tx.GetPremiumCommand(ctx, ref.GroupID, name)
			if err != nil {
				return notFound(err, apperrors.CodeCommandNotFound, "premium command not found", apperrors.MetaCommand, name)
			}

			owned, err := tx.HasCapability(ctx, ref.GroupID, ref.MemberID, name)
			if err != nil {
				return err
			}
			if owned {
				return alreadyOwned(name)
			}
			if !cmd.IsAvailable {
				return apperrors.WithMetadata(apperrors.CodeCommandUnavailable, "premium command is not available",
					map[string]string{apperrors.MetaCommand: name})
			}
			if member.Points < cmd.Price {
				return apperrors.InsufficientPoints(cmd.Price, member.Points)
			}

			now := e.timestamp()
			points := member.Points
			if cmd.Price > 0 {
				points, err = tx.AddPoints(ctx, ref.GroupID, ref.MemberID, -cmd.Price, now)
				if errors.Is(err, storage.ErrNegativeBalance) {
					return apperrors.InsufficientPoints(cmd.Price, points)
				}
				if err != nil {
					return err
				}
			}

			capability := models.OwnedCapability{
				GroupID:     ref.GroupID,
				MemberID:    ref.MemberID,
				Name:        name,
				PricePaid:   cmd.Price,
				PurchasedAt: now,
			}
			if err := tx.GrantCapability(ctx, capability); err != nil {
				if errors.Is(err, storage.ErrConflict) {
					return alreadyOwned(name)
				}
				return err
			}
			if err := tx.IncrementCommandPurchases(ctx, ref.GroupID, name, now); err != nil {
				return err
			}
			purchase := models.Purchase{
				ID:          purchaseID,
				GroupID:     ref.GroupID,
				MemberID:    ref.MemberID,
				CommandName: name,
				PricePaid:   cmd.Price,
				CreatedAt:   now,
			}
			if err := tx.CreatePurchase(ctx, purchase); err != nil {
				return err
			}
			if err := tx.AddGroupPurchase(ctx, ref.GroupID, cmd.Price, now); err != nil {
				return err
			}

			result.Purchase = purchase
			result.Capability = capability
			result.Points = points
			return nil
		})
		return result, err
	})
}

// Capabilities lists what a member owns.
func (e *Engine) Capabilities(ctx context.Context, ref models.MemberRef) ([]models.OwnedCapability, error) {
	var owned []models.OwnedCapability
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		owned, err = tx.ListCapabilities(ctx, ref.GroupID, ref.MemberID)
		return err
	})
	return owned, err
}

// GroupStats returns a group's aggregate purchase counters.
func (e *Engine) GroupStats(ctx context.Context, groupID string) (models.GroupStats, error) {
	var stats models.GroupStats
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		stats, err = tx.GetGroupStats(ctx, groupID)
		return err
	})
	return stats, err
}

func alreadyOwned(name string) error {
	return apperrors.WithMetadata(apperrors.CodeAlreadyOwned, "capability already owned",
		map[string]string{apperrors.MetaCommand: name})
}
