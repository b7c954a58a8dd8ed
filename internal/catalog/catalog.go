// Package catalog loads a YAML seed of group configuration, rewards and
// premium commands and applies it through the economy services.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
)

// Reward is one reward entry in the seed. A missing stock means unlimited.
type Reward struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Cost        int64  `yaml:"cost"`
	Stock       *int64 `yaml:"stock"`
	Active      *bool  `yaml:"active"`
}

// Command is one premium command entry in the seed.
type Command struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       int64  `yaml:"price"`
	Available   *bool  `yaml:"available"`
}

// GroupConfig holds per-group overrides; zero values keep the defaults.
type GroupConfig struct {
	MessagesPerPoint      int64  `yaml:"messages_per_point"`
	MaxWarnings           int    `yaml:"max_warnings"`
	MaxPendingRedemptions int    `yaml:"max_pending_redemptions"`
	PointsName            string `yaml:"points_name"`
}

// Group is the seed for one group.
type Group struct {
	ID              string       `yaml:"id"`
	Config          *GroupConfig `yaml:"config"`
	Rewards         []Reward     `yaml:"rewards"`
	PremiumCommands []Command    `yaml:"premium_commands"`
}

// File is a parsed catalog seed.
type File struct {
	Groups []Group `yaml:"groups"`
}

// Load reads and parses a catalog seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a catalog seed. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	seen := make(map[string]bool, len(f.Groups))
	for i, g := range f.Groups {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			return fmt.Errorf("group %d: id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("group %q: defined twice", id)
		}
		seen[id] = true
		for j, r := range g.Rewards {
			if strings.TrimSpace(r.ID) == "" {
				return fmt.Errorf("group %q reward %d: id is required", id, j)
			}
		}
		for j, c := range g.PremiumCommands {
			if strings.TrimSpace(c.Name) == "" {
				return fmt.Errorf("group %q premium command %d: name is required", id, j)
			}
		}
	}
	return nil
}

// CatalogWriter stores catalog entries.
type CatalogWriter interface {
	PutReward(ctx context.Context, r models.Reward) (models.Reward, error)
	PutPremiumCommand(ctx context.Context, c models.PremiumCommand) (models.PremiumCommand, error)
}

// ConfigWriter stores group configuration.
type ConfigWriter interface {
	Put(ctx context.Context, cfg models.GroupConfig) (models.GroupConfig, error)
}

// Summary counts what Apply wrote.
type Summary struct {
	Groups   int
	Configs  int
	Rewards  int
	Commands int
}

// Apply upserts every entry of f. It stops at the first failure; entries
// written before it stay written, and applying the same file again is safe.
func Apply(ctx context.Context, f *File, catalog CatalogWriter, configs ConfigWriter) (Summary, error) {
	var s Summary
	for _, g := range f.Groups {
		groupID := strings.TrimSpace(g.ID)
		s.Groups++

		if g.Config != nil {
			_, err := configs.Put(ctx, models.GroupConfig{
				GroupID:               groupID,
				MessagesPerPoint:      g.Config.MessagesPerPoint,
				MaxWarnings:           g.Config.MaxWarnings,
				MaxPendingRedemptions: g.Config.MaxPendingRedemptions,
				PointsName:            g.Config.PointsName,
			})
			if err != nil {
				return s, fmt.Errorf("group %q config: %w", groupID, err)
			}
			s.Configs++
		}

		for _, r := range g.Rewards {
			stock := int64(models.UnlimitedStock)
			if r.Stock != nil {
				stock = *r.Stock
			}
			name := r.Name
			if strings.TrimSpace(name) == "" {
				name = r.ID
			}
			_, err := catalog.PutReward(ctx, models.Reward{
				GroupID:     groupID,
				ID:          r.ID,
				Name:        name,
				Description: r.Description,
				Cost:        r.Cost,
				Stock:       stock,
				IsActive:    r.Active == nil || *r.Active,
			})
			if err != nil {
				return s, fmt.Errorf("group %q reward %q: %w", groupID, r.ID, err)
			}
			s.Rewards++
		}

		for _, c := range g.PremiumCommands {
			_, err := catalog.PutPremiumCommand(ctx, models.PremiumCommand{
				GroupID:     groupID,
				Name:        c.Name,
				Description: c.Description,
				Price:       c.Price,
				IsAvailable: c.Available == nil || *c.Available,
			})
			if err != nil {
				return s, fmt.Errorf("group %q command %q: %w", groupID, c.Name, err)
			}
			s.Commands++
		}
	}
	return s, nil
}
