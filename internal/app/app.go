// Package app wires the store and the services shared by the bot and the
// admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PercyTuncar/bot-2026-sub001/internal/catalog"
	"github.com/PercyTuncar/bot-2026-sub001/internal/config"
	"github.com/PercyTuncar/bot-2026-sub001/internal/db"
	"github.com/PercyTuncar/bot-2026-sub001/internal/economy"
	"github.com/PercyTuncar/bot-2026-sub001/internal/groupconfig"
	"github.com/PercyTuncar/bot-2026-sub001/internal/identity"
	"github.com/PercyTuncar/bot-2026-sub001/internal/ledger"
	"github.com/PercyTuncar/bot-2026-sub001/internal/moderation"
)

type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Store      *db.DB
	Configs    *groupconfig.Service
	Identity   *identity.Resolver
	Ledger     *ledger.Ledger
	Economy    *economy.Engine
	Moderation *moderation.Service
}

// Open opens the database and builds every service over it.
func Open(cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := db.New(cfg.DBPath, cfg.DBOptions())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	policy := cfg.RetryPolicy()
	configs := groupconfig.New(store, cfg.GroupDefaults())
	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Configs: configs,
		Identity: identity.NewResolver(store,
			identity.WithDirectory(store),
			identity.WithLinkedSuffix(cfg.LinkedIDSuffix),
			identity.WithLogger(logger),
			identity.WithRetryPolicy(policy),
		),
		Ledger:     ledger.New(store, configs, policy),
		Economy:    economy.New(store, configs, policy),
		Moderation: moderation.New(store, configs, policy),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// SeedCatalog applies the catalog file at path. An empty path is a no-op.
func (a *App) SeedCatalog(ctx context.Context, path string) (catalog.Summary, error) {
	if path == "" {
		return catalog.Summary{}, nil
	}
	f, err := catalog.Load(path)
	if err != nil {
		return catalog.Summary{}, err
	}
	summary, err := catalog.Apply(ctx, f, a.Economy, a.Configs)
	if err != nil {
		return summary, err
	}
	a.Logger.Info("catalog applied", "path", path,
		"groups", summary.Groups, "configs", summary.Configs,
		"rewards", summary.Rewards, "commands", summary.Commands)
	return summary, nil
}

// PurgeContacts drops directory entries not seen within the configured TTL.
func (a *App) PurgeContacts(ctx context.Context, now time.Time) (int64, error) {
	return a.Store.PurgeContacts(ctx, now.Add(-a.Config.ContactTTL))
}

// RunContactPurge purges stale contacts every interval until ctx is done.
// Serve runs the update loop next to the contact purge job until either
// fails or ctx ends. The purge job stops when the update loop returns.
func (a *App) Serve(ctx context.Context, run func(context.Context) error, purgeEvery time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return run(gctx)
	})
	g.Go(func() error { return a.RunContactPurge(gctx, purgeEvery) })
	return g.Wait()
}

func (a *App) RunContactPurge(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			purged, err := a.PurgeContacts(ctx, now)
			if err != nil {
				a.Logger.Error("error purging contacts", "error", err)
			} else if purged > 0 {
				a.Logger.Info("purged stale contacts", "count", purged)
			}
		}
	}
}
