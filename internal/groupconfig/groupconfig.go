// Package groupconfig serves per-group economic parameters layered over
// process-wide defaults.
package groupconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
)

// Defaults apply to every group without a stored override.
type Defaults struct {
	MessagesPerPoint      int64
	MaxWarnings           int
	MaxPendingRedemptions int
	PointsName            string
}

// BuiltinDefaults are used when no configuration is supplied.
func BuiltinDefaults() Defaults {
	return Defaults{
		MessagesPerPoint:      10,
		MaxWarnings:           3,
		MaxPendingRedemptions: 3,
		PointsName:            "points",
	}
}

// Service reads and writes group configuration.
type Service struct {
	store    storage.Store
	defaults Defaults
	now      func() time.Time
}

// New builds a Service. Zero fields in defaults fall back to BuiltinDefaults.
func New(store storage.Store, defaults Defaults) *Service {
	return &Service{
		store:    store,
		defaults: normalizeDefaults(defaults),
		now:      time.Now,
	}
}

func normalizeDefaults(d Defaults) Defaults {
	builtin := BuiltinDefaults()
	if d.MessagesPerPoint <= 0 {
		d.MessagesPerPoint = builtin.MessagesPerPoint
	}
	if d.MaxWarnings <= 0 {
		d.MaxWarnings = builtin.MaxWarnings
	}
	if d.MaxPendingRedemptions <= 0 {
		d.MaxPendingRedemptions = builtin.MaxPendingRedemptions
	}
	if strings.TrimSpace(d.PointsName) == "" {
		d.PointsName = builtin.PointsName
	}
	return d
}

// Defaults returns the effective process-wide defaults.
func (s *Service) Defaults() Defaults {
	return s.defaults
}

// Get returns the effective configuration of a group.
func (s *Service) Get(ctx context.Context, groupID string) (models.GroupConfig, error) {
	var cfg models.GroupConfig
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		cfg, err = s.Load(ctx, tx, groupID)
		return err
	})
	return cfg, err
}

// Load reads a group's configuration through tx, so workflows see the same
// values the rest of their transaction does.
func (s *Service) Load(ctx context.Context, tx storage.GroupStore, groupID string) (models.GroupConfig, error) {
	stored, err := tx.GetGroupConfig(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return s.withDefaults(models.GroupConfig{GroupID: groupID}), nil
	}
	if err != nil {
		return models.GroupConfig{}, fmt.Errorf("load group config: %w", err)
	}
	return s.withDefaults(stored), nil
}

// withDefaults fills any unset knob from the defaults.
func (s *Service) withDefaults(cfg models.GroupConfig) models.GroupConfig {
	if cfg.MessagesPerPoint <= 0 {
		cfg.MessagesPerPoint = s.defaults.MessagesPerPoint
	}
	if cfg.MaxWarnings <= 0 {
		cfg.MaxWarnings = s.defaults.MaxWarnings
	}
	if cfg.MaxPendingRedemptions <= 0 {
		cfg.MaxPendingRedemptions = s.defaults.MaxPendingRedemptions
	}
	if strings.TrimSpace(cfg.PointsName) == "" {
		cfg.PointsName = s.defaults.PointsName
	}
	return cfg
}

// Put stores a group's configuration. Unset fields take the defaults.
func (s *Service) Put(ctx context.Context, cfg models.GroupConfig) (models.GroupConfig, error) {
	if strings.TrimSpace(cfg.GroupID) == "" {
		return models.GroupConfig{}, apperrors.New(apperrors.CodeInvalidArgument, "group id is required")
	}
	if cfg.MessagesPerPoint < 0 || cfg.MaxWarnings < 0 || cfg.MaxPendingRedemptions < 0 {
		return models.GroupConfig{}, apperrors.New(apperrors.CodeInvalidArgument, "group config values must not be negative")
	}
	cfg = s.withDefaults(cfg)
	cfg.UpdatedAt = s.now().UTC()
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.PutGroupConfig(ctx, cfg)
	})
	if err != nil {
		return models.GroupConfig{}, err
	}
	return cfg, nil
}
