package economy

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
	"github.com/PercyTuncar/bot-2026-sub001/internal/telemetry"
)

// RedemptionResult is the state after a redemption workflow step.
type RedemptionResult struct {
	Redemption models.Redemption
	Points     int64 // member balance after the step
	Stock      int64 // reward stock after the step
	PointsName string
}

// RequestRedemption files a pending redemption. No points move here; the
// cost is snapshotted from the reward so later price changes do not apply.
func (e *Engine) RequestRedemption(ctx context.Context, ref models.MemberRef, rewardID, notes string) (res RedemptionResult, err error) {
	ctx, span := telemetry.Start(ctx, e.tracer, "economy.RequestRedemption", ref.GroupID,
		attribute.String("economy.reward_id", rewardID))
	defer func() { telemetry.End(span, err) }()

	rewardID = strings.TrimSpace(rewardID)
	if rewardID == "" {
		return RedemptionResult{}, apperrors.New(apperrors.CodeInvalidArgument, "reward id is required")
	}
	// Generated once so a retry after an unobserved commit finds the first record.
	id := e.newID()

	return retry.OnContention(ctx, e.policy, func(ctx context.Context) (RedemptionResult, error) {
		var result RedemptionResult
		err := e.store.Update(ctx, func(tx storage.Tx) error {
			cfg, err := e.configs.Load(ctx, tx, ref.GroupID)
			if err != nil {
				return err
			}
			result.PointsName = cfg.PointsName

			if existing, err := tx.GetRedemption(ctx, ref.GroupID, id); err == nil {
				result.Redemption = existing
				return e.fillBalances(ctx, tx, &result)
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			member, err := tx.GetMember(ctx, ref.GroupID, ref.MemberID)
			if err != nil {
				return notFound(err, apperrors.CodeMemberNotFound, "member not found", apperrors.MetaMemberID, ref.MemberID)
			}
			reward, err := tx.GetReward(ctx, ref.GroupID, rewardID)
			if err != nil {
				return notFound(err, apperrors.CodeRewardNotFound, "reward not found", apperrors.MetaRewardID, rewardID)
			}
			if !reward.IsActive {
				return apperrors.WithMetadata(apperrors.CodeRewardInactive, "reward is not active",
					map[string]string{apperrors.MetaRewardID: reward.ID})
			}
			if !reward.InStock() {
				return apperrors.WithMetadata(apperrors.CodeOutOfStock, "reward is out of stock",
					map[string]string{apperrors.MetaRewardID: reward.ID})
			}
			if member.Points < reward.Cost {
				return apperrors.InsufficientPoints(reward.Cost, member.Points)
			}

			pending, err := tx.CountPendingRedemptions(ctx, ref.GroupID, ref.MemberID)
			if err != nil {
				return err
			}
			if pending >= cfg.MaxPendingRedemptions {
				return apperrors.WithMetadata(apperrors.CodePendingLimitExceeded, "pending redemption limit reached",
					map[string]string{apperrors.MetaLimit: strconv.Itoa(cfg.MaxPendingRedemptions)})
			}

			now := e.timestamp()
			redemption := models.Redemption{
				ID:          id,
				GroupID:     ref.GroupID,
				RewardID:    reward.ID,
				RewardName:  reward.Name,
				MemberID:    ref.MemberID,
				PointsCost:  reward.Cost,
				Status:      models.StatusPending,
				Notes:       strings.TrimSpace(notes),
				RequestedAt: now,
			}
			if err := tx.CreateRedemption(ctx, redemption); err != nil {
				return err
			}
			if err := tx.AdjustRewardCounters(ctx, ref.GroupID, reward.ID, storage.RewardCounters{Pending: 1}, now); err != nil {
				return err
			}

			result.Redemption = redemption
			result.Points = member.Points
			result.Stock = reward.Stock
			return nil
		})
		return result, err
	})
}

// ApproveRedemption debits the snapshotted cost and takes one unit of stock.
// Balance and stock are re-checked here because either may have changed since
// the request; on failure the redemption stays pending.
func (e *Engine) ApproveRedemption(ctx context.Context, groupID, redemptionID, actor string) (res RedemptionResult, err error) {
	ctx, span := telemetry.Start(ctx, e.tracer, "economy.ApproveRedemption", groupID,
		attribute.String("economy.redemption_id", redemptionID))
	defer func() { telemetry.End(span, err) }()

	return retry.OnContention(ctx, e.policy, func(ctx context.Context) (RedemptionResult, error) {
		var result RedemptionResult
		err := e.store.Update(ctx, func(tx storage.Tx) error {
			cfg, err := e.configs.Load(ctx, tx, groupID)
			if err != nil {
				return err
			}
			result.PointsName = cfg.PointsName

			r, err := e.loadRedemption(ctx, tx, groupID, redemptionID)
			if err != nil {
				return err
			}
			if r.Status != models.StatusPending {
				return alreadyProcessed(r)
			}

			member, err := tx.GetMember(ctx, groupID, r.MemberID)
			if err != nil {
				return notFound(err, apperrors.CodeMemberNotFound, "member not found", apperrors.MetaMemberID, r.MemberID)
			}
			if member.Points < r.PointsCost {
				return apperrors.InsufficientPoints(r.PointsCost, member.Points)
			}

			now := e.timestamp()
			points, err := tx.AddPoints(ctx, groupID, r.MemberID, -r.PointsCost, now)
			if errors.Is(err, storage.ErrNegativeBalance) {
				return apperrors.InsufficientPoints(r.PointsCost, points)
			}
			if err != nil {
				return err
			}

			r.Status = models.StatusApproved
			r.ProcessedAt = &now
			r.ProcessedBy = strings.TrimSpace(actor)
			ok, err := tx.TransitionRedemption(ctx, r, models.StatusPending)
			if err != nil {
				return err
			}
			if !ok {
				return alreadyProcessed(r)
			}

			// Another approval may have taken the last unit since the request.
			inStock, err := tx.ConsumeRewardStock(ctx, groupID, r.RewardID, now)
			if err != nil {
				return notFound(err, apperrors.CodeRewardNotFound, "reward not found", apperrors.MetaRewardID, r.RewardID)
			}
			if !inStock {
				return apperrors.WithMetadata(apperrors.CodeOutOfStock, "reward is out of stock",
					map[string]string{apperrors.MetaRewardID: r.RewardID, apperrors.MetaRedemptionID: r.ID})
			}
			if err := tx.AdjustRewardCounters(ctx, groupID, r.RewardID, storage.RewardCounters{Pending: -1, Approved: 1}, now); err != nil {
				return err
			}

			reward, err := tx.GetReward(ctx, groupID, r.RewardID)
			if err != nil {
				return err
			}
			result.Redemption = r
			result.Points = points
			result.Stock = reward.Stock
			return nil
		})
		return result, err
	})
}

// RejectRedemption closes a pending redemption. Points never move on rejection.
func (e *Engine) RejectRedemption(ctx context.Context, groupID, redemptionID, actor, reason string) (res RedemptionResult, err error) {
	ctx, span := telemetry.Start(ctx, e.tracer, "economy.RejectRedemption", groupID,
		attribute.String("economy.redemption_id", redemptionID))
	defer func() { telemetry.End(span, err) }()

	return retry.OnContention(ctx, e.policy, func(ctx context.Context) (RedemptionResult, error) {
		var result RedemptionResult
		err := e.store.Update(ctx, func(tx storage.Tx) error {
			cfg, err := e.configs.Load(ctx, tx, groupID)
			if err != nil {
				return err
			}
			result.PointsName = cfg.PointsName

			r, err := e.loadRedemption(ctx, tx, groupID, redemptionID)
			if err != nil {
				return err
			}
			if r.Status != models.StatusPending {
				return alreadyProcessed(r)
			}

			now := e.timestamp()
			r.Status = models.StatusRejected
			r.ProcessedAt = &now
			r.ProcessedBy = strings.TrimSpace(actor)
			r.RejectReason = strings.TrimSpace(reason)
			ok, err := tx.TransitionRedemption(ctx, r, models.StatusPending)
			if err != nil {
				return err
			}
			if !ok {
				return alreadyProcessed(r)
			}
			if err := tx.AdjustRewardCounters(ctx, groupID, r.RewardID, storage.RewardCounters{Pending: -1}, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			result.Redemption = r
			return e.fillBalances(ctx, tx, &result)
		})
		return result, err
	})
}

// MarkDelivered closes an approved redemption.
func (e *Engine) MarkDelivered(ctx context.Context, groupID, redemptionID, actor, notes string) (res RedemptionResult, err error) {
	ctx, span := telemetry.Start(ctx, e.tracer, "economy.MarkDelivered", groupID,
		attribute.String("economy.redemption_id", redemptionID))
	defer func() { telemetry.End(span, err) }()

	return retry.OnContention(ctx, e.policy, func(ctx context.Context) (RedemptionResult, error) {
		var result RedemptionResult
		err := e.store.Update(ctx, func(tx storage.Tx) error {
			cfg, err := e.configs.Load(ctx, tx, groupID)
			if err != nil {
				return err
			}
			result.PointsName = cfg.PointsName

			r, err := e.loadRedemption(ctx, tx, groupID, redemptionID)
			if err != nil {
				return err
			}
			if r.Status != models.StatusApproved {
				return apperrors.WithMetadata(apperrors.CodeNotApproved, "redemption is not approved", map[string]string{
					apperrors.MetaRedemptionID: r.ID,
					apperrors.MetaStatus:       string(r.Status),
				})
			}

			now := e.timestamp()
			r.Status = models.StatusDelivered
			r.DeliveredAt = &now
			r.DeliveredBy = strings.TrimSpace(actor)
			r.DeliveryNotes = strings.TrimSpace(notes)
			ok, err := tx.TransitionRedemption(ctx, r, models.StatusApproved)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.WithMetadata(apperrors.CodeNotApproved, "redemption is not approved",
					map[string]string{apperrors.MetaRedemptionID: r.ID})
			}
			if err := tx.IncrementRedeemed(ctx, groupID, r.MemberID, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if err := tx.AdjustRewardCounters(ctx, groupID, r.RewardID, storage.RewardCounters{Delivered: 1}, now); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			result.Redemption = r
			return e.fillBalances(ctx, tx, &result)
		})
		return result, err
	})
}

// Redemption returns one redemption.
func (e *Engine) Redemption(ctx context.Context, groupID, redemptionID string) (models.Redemption, error) {
	var r models.Redemption
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		r, err = e.loadRedemption(ctx, tx, groupID, redemptionID)
		return err
	})
	return r, err
}

// PendingRedemptions lists a group's staff queue, oldest first.
func (e *Engine) PendingRedemptions(ctx context.Context, groupID string, limit int) ([]models.Redemption, error) {
	var list []models.Redemption
	err := e.store.View(ctx, func(tx storage.Tx) error {
		var err error
		list, err = tx.ListRedemptions(ctx, groupID, models.StatusPending, limit)
		return err
	})
	return list, err
}

// Staff may address a redemption by a prefix of its id at least this long.
const minShortIDLen = 6

func (e *Engine) loadRedemption(ctx context.Context, tx storage.RedemptionStore, groupID, redemptionID string) (models.Redemption, error) {
	redemptionID = strings.TrimSpace(redemptionID)
	if redemptionID == "" {
		return models.Redemption{}, apperrors.New(apperrors.CodeInvalidArgument, "redemption id is required")
	}
	r, err := tx.GetRedemption(ctx, groupID, redemptionID)
	if errors.Is(err, storage.ErrNotFound) && len(redemptionID) >= minShortIDLen {
		var full string
		full, err = tx.ResolveRedemptionID(ctx, groupID, redemptionID)
		if errors.Is(err, storage.ErrConflict) {
			return models.Redemption{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "ambiguous redemption id",
				map[string]string{apperrors.MetaRedemptionID: redemptionID})
		}
		if err == nil {
			r, err = tx.GetRedemption(ctx, groupID, full)
		}
	}
	if err != nil {
		return models.Redemption{}, notFound(err, apperrors.CodeRedemptionNotFound, "redemption not found",
			apperrors.MetaRedemptionID, redemptionID)
	}
	return r, nil
}

// fillBalances reads the member's balance and the reward's stock for a result.
func (e *Engine) fillBalances(ctx context.Context, tx storage.Tx, result *RedemptionResult) error {
	r := result.Redemption
	member, err := tx.GetMember(ctx, r.GroupID, r.MemberID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	result.Points = member.Points
	reward, err := tx.GetReward(ctx, r.GroupID, r.RewardID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	result.Stock = reward.Stock
	return nil
}

func alreadyProcessed(r models.Redemption) error {
	return apperrors.WithMetadata(apperrors.CodeAlreadyProcessed, "redemption already processed", map[string]string{
		apperrors.MetaRedemptionID: r.ID,
		apperrors.MetaStatus:       string(r.Status),
	})
}
