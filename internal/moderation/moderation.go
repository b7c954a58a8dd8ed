// Package moderation tracks warnings and kicks. It decides when a member has
// reached the kick threshold; executing the kick belongs to the caller.
package moderation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/groupconfig"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
	"github.com/PercyTuncar/bot-2026-sub001/internal/telemetry"
)

// WarningResult reports the counter after a warning change.
type WarningResult struct {
	Ref           models.MemberRef
	WarningCount  int
	MaxWarnings   int
	PreviousCount int
	// ShouldKick is true only on the warning that crosses MaxWarnings. A count
	// already past the threshold is not signaled again until a reset.
	ShouldKick bool
	Entry      models.WarningEntry
}

// KickResult reports a logged kick.
type KickResult struct {
	Ref       models.MemberRef
	KickCount int
	Entry     models.WarningEntry
}

type Service struct {
	store   storage.Store
	configs *groupconfig.Service
	policy  retry.Policy
	now     func() time.Time
	tracer  trace.Tracer
}

func New(store storage.Store, configs *groupconfig.Service, policy retry.Policy) *Service {
	return &Service{
		store:   store,
		configs: configs,
		policy:  policy,
		now:     time.Now,
		tracer:  telemetry.Tracer("github.com/PercyTuncar/bot-2026-sub001/internal/moderation"),
	}
}

// WithClock replaces the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddWarning appends a WARN entry and increments the counter.
func (s *Service) AddWarning(ctx context.Context, ref models.MemberRef, actor, reason string) (res WarningResult, err error) {
	ctx, span := telemetry.Start(ctx, s.tracer, "moderation.AddWarning", ref.GroupID)
	defer func() { telemetry.End(span, err) }()

	entryID := uuid.NewString()
	return retry.OnContention(ctx, s.policy, func(ctx context.Context) (WarningResult, error) {
		var result WarningResult
		err := s.store.Update(ctx, func(tx storage.Tx) error {
			cfg, err := s.configs.Load(ctx, tx, ref.GroupID)
			if err != nil {
				return err
			}
			now := s.now().UTC()
			count, err := tx.IncrementWarnings(ctx, ref.GroupID, ref.MemberID, now)
			if err != nil {
				return mapErr(err)
			}
			entry := newEntry(entryID, ref, models.WarningKindWarn, actor, reason, now)
			if err := tx.AppendWarning(ctx, entry); err != nil {
				return mapErr(err)
			}
			previous := count - 1
			result = WarningResult{
				Ref:           ref,
				WarningCount:  count,
				MaxWarnings:   cfg.MaxWarnings,
				PreviousCount: previous,
				ShouldKick:    previous < cfg.MaxWarnings && count >= cfg.MaxWarnings,
				Entry:         entry,
			}
			return nil
		})
		return result, err
	})
}

// ResetWarnings zeroes the counter and appends an UNWARN entry. Prior
// entries are kept.
func (s *Service) ResetWarnings(ctx context.Context, ref models.MemberRef, actor string) (res WarningResult, err error) {
	ctx, span := telemetry.Start(ctx, s.tracer, "moderation.ResetWarnings", ref.GroupID)
	defer func() { telemetry.End(span, err) }()

	entryID := uuid.NewString()
	return retry.OnContention(ctx, s.policy, func(ctx context.Context) (WarningResult, error) {
		var result WarningResult
		err := s.store.Update(ctx, func(tx storage.Tx) error {
			cfg, err := s.configs.Load(ctx, tx, ref.GroupID)
			if err != nil {
				return err
			}
			now := s.now().UTC()
			previous, err := tx.ResetWarnings(ctx, ref.GroupID, ref.MemberID, now)
			if err != nil {
				return mapErr(err)
			}
			entry := newEntry(entryID, ref, models.WarningKindUnwarn, actor, "", now)
			if err := tx.AppendWarning(ctx, entry); err != nil {
				return mapErr(err)
			}
			result = WarningResult{
				Ref:           ref,
				WarningCount:  0,
				MaxWarnings:   cfg.MaxWarnings,
				PreviousCount: previous,
				Entry:         entry,
			}
			return nil
		})
		return result, err
	})
}

// LogKick records a kick the caller performed. The warning counter is left alone.
func (s *Service) LogKick(ctx context.Context, ref models.MemberRef, actor, reason string) (res KickResult, err error) {
	ctx, span := telemetry.Start(ctx, s.tracer, "moderation.LogKick", ref.GroupID)
	defer func() { telemetry.End(span, err) }()

	entryID := uuid.NewString()
	return retry.OnContention(ctx, s.policy, func(ctx context.Context) (KickResult, error) {
		var result KickResult
		err := s.store.Update(ctx, func(tx storage.Tx) error {
			now := s.now().UTC()
			count, err := tx.IncrementKicks(ctx, ref.GroupID, ref.MemberID, now)
			if err != nil {
				return mapErr(err)
			}
			entry := newEntry(entryID, ref, models.WarningKindKick, actor, reason, now)
			if err := tx.AppendWarning(ctx, entry); err != nil {
				return mapErr(err)
			}
			result = KickResult{Ref: ref, KickCount: count, Entry: entry}
			return nil
		})
		return result, err
	})
}

// History returns the member's full moderation trail, oldest first.
func (s *Service) History(ctx context.Context, ref models.MemberRef) ([]models.WarningEntry, error) {
	var entries []models.WarningEntry
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		entries, err = tx.ListWarnings(ctx, ref.GroupID, ref.MemberID)
		return err
	})
	return entries, err
}

func newEntry(id string, ref models.MemberRef, kind models.WarningKind, actor, reason string, at time.Time) models.WarningEntry {
	return models.WarningEntry{
		ID:        id,
		GroupID:   ref.GroupID,
		MemberID:  ref.MemberID,
		Kind:      kind,
		Reason:    strings.TrimSpace(reason),
		Actor:     strings.TrimSpace(actor),
		CreatedAt: at,
	}
}

func mapErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeMemberNotFound, "member not found")
	}
	return err
}
