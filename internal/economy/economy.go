// Package economy runs the multi-entity point workflows: reward redemption
// (request, approve, reject, deliver) and premium capability purchase.
//
// Every operation is one store transaction. Validation failures abort the
// transaction with no partial writes and come back as *apperrors.Error values
// carrying enough context to render a message. Store contention is retried
// from scratch by retry.OnContention; nothing here notifies anyone.
package economy

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/groupconfig"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
	"github.com/PercyTuncar/bot-2026-sub001/internal/telemetry"
)

// Engine runs economy workflows against an injected store.
type Engine struct {
	store   storage.Store
	configs *groupconfig.Service
	policy  retry.Policy
	now     func() time.Time
	newID   func() string
	tracer  trace.Tracer
}

type Option func(*Engine)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the record id source.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// New builds an Engine.
func New(store storage.Store, configs *groupconfig.Service, policy retry.Policy, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		configs: configs,
		policy:  policy,
		now:     time.Now,
		newID:   uuid.NewString,
		tracer:  telemetry.Tracer("github.com/PercyTuncar/bot-2026-sub001/internal/economy"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// NormalizeCommandName folds a premium command name to its storage form.
func NormalizeCommandName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}

func notFound(err error, code apperrors.Code, message, key, value string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WithMetadata(code, message, map[string]string{key: value})
	}
	return err
}
