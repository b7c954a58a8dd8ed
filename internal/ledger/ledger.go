// Package ledger owns member point balances and activity accrual.
package ledger

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/groupconfig"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
	"github.com/PercyTuncar/bot-2026-sub001/internal/telemetry"
)

// Balance is a member's balance after a ledger change.
type Balance struct {
	Ref    models.MemberRef
	Points int64
	Delta  int64
}

// Activity is the outcome of recording one message.
type Activity struct {
	Ref                    models.MemberRef
	MessageCount           int64
	MessagesSinceLastPoint int64
	Points                 int64
	Awarded                bool
	PointsName             string
}

// Ledger applies point changes as single atomic store statements.
type Ledger struct {
	store   storage.Store
	configs *groupconfig.Service
	policy  retry.Policy
	now     func() time.Time
	tracer  trace.Tracer
}

// New builds a Ledger.
func New(store storage.Store, configs *groupconfig.Service, policy retry.Policy) *Ledger {
	return &Ledger{
		store:   store,
		configs: configs,
		policy:  policy,
		now:     time.Now,
		tracer:  telemetry.Tracer("github.com/PercyTuncar/bot-2026-sub001/internal/ledger"),
	}
}

// WithClock replaces the time source, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// AddPoints credits (delta > 0) or debits (delta < 0) a member. A debit that
// would take the balance below zero fails with InsufficientPoints.
func (l *Ledger) AddPoints(ctx context.Context, ref models.MemberRef, delta int64) (bal Balance, err error) {
	ctx, span := telemetry.Start(ctx, l.tracer, "ledger.AddPoints", ref.GroupID, attribute.Int64("economy.delta", delta))
	defer func() { telemetry.End(span, err) }()

	if delta == 0 {
		return Balance{}, apperrors.New(apperrors.CodeInvalidArgument, "point delta must not be zero")
	}
	return retry.OnContention(ctx, l.policy, func(ctx context.Context) (Balance, error) {
		var points int64
		err := l.store.Update(ctx, func(tx storage.Tx) error {
			var err error
			points, err = tx.AddPoints(ctx, ref.GroupID, ref.MemberID, delta, l.now().UTC())
			return mapMemberErr(err, delta, points)
		})
		if err != nil {
			return Balance{}, err
		}
		return Balance{Ref: ref, Points: points, Delta: delta}, nil
	})
}

// SetPoints overwrites a member's balance.
func (l *Ledger) SetPoints(ctx context.Context, ref models.MemberRef, value int64) (bal Balance, err error) {
	ctx, span := telemetry.Start(ctx, l.tracer, "ledger.SetPoints", ref.GroupID, attribute.Int64("economy.value", value))
	defer func() { telemetry.End(span, err) }()

	if value < 0 {
		return Balance{}, apperrors.New(apperrors.CodeInvalidArgument, "points must not be negative")
	}
	return retry.OnContention(ctx, l.policy, func(ctx context.Context) (Balance, error) {
		var before models.Member
		var points int64
		err := l.store.Update(ctx, func(tx storage.Tx) error {
			var err error
			before, err = tx.GetMember(ctx, ref.GroupID, ref.MemberID)
			if err != nil {
				return mapMemberErr(err, 0, 0)
			}
			points, err = tx.SetPoints(ctx, ref.GroupID, ref.MemberID, value, l.now().UTC())
			return mapMemberErr(err, 0, 0)
		})
		if err != nil {
			return Balance{}, err
		}
		return Balance{Ref: ref, Points: points, Delta: points - before.Points}, nil
	})
}

// ResetPoints sets a member's balance to zero.
func (l *Ledger) ResetPoints(ctx context.Context, ref models.MemberRef) (Balance, error) {
	return l.SetPoints(ctx, ref, 0)
}

// RecordMessageActivity counts one message and awards a point each time the
// group's messages-per-point threshold is reached.
func (l *Ledger) RecordMessageActivity(ctx context.Context, ref models.MemberRef) (act Activity, err error) {
	ctx, span := telemetry.Start(ctx, l.tracer, "ledger.RecordMessageActivity", ref.GroupID)
	defer func() { telemetry.End(span, err) }()

	return retry.OnContention(ctx, l.policy, func(ctx context.Context) (Activity, error) {
		var result Activity
		err := l.store.Update(ctx, func(tx storage.Tx) error {
			cfg, err := l.configs.Load(ctx, tx, ref.GroupID)
			if err != nil {
				return err
			}
			a, err := tx.RecordMessage(ctx, ref.GroupID, ref.MemberID, cfg.MessagesPerPoint, l.now().UTC())
			if err != nil {
				return mapMemberErr(err, 0, 0)
			}
			result = Activity{
				Ref:                    ref,
				MessageCount:           a.MessageCount,
				MessagesSinceLastPoint: a.MessagesSinceLastPoint,
				Points:                 a.Points,
				Awarded:                a.Awarded,
				PointsName:             cfg.PointsName,
			}
			return nil
		})
		return result, err
	})
}

// Member returns the current record for ref.
func (l *Ledger) Member(ctx context.Context, ref models.MemberRef) (models.Member, error) {
	var m models.Member
	err := l.store.View(ctx, func(tx storage.Tx) error {
		var err error
		m, err = tx.GetMember(ctx, ref.GroupID, ref.MemberID)
		return mapMemberErr(err, 0, 0)
	})
	return m, err
}

func mapMemberErr(err error, delta, current int64) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.New(apperrors.CodeMemberNotFound, "member not found")
	case errors.Is(err, storage.ErrNegativeBalance):
		return apperrors.InsufficientPoints(-delta, current)
	default:
		return err
	}
}
