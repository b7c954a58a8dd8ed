package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PercyTuncar/bot-2026-sub001/internal/config"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
)

const catalogYAML = `
groups:
  - id: "-100777"
    config:
      points_name: coins
      max_pending_redemptions: 1
    rewards:
      - id: mug
        name: Mug
        cost: 40
        stock: 2
    premium_commands:
      - name: sticker
        price: 10
`

func openTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_PATH", filepath.Join(dir, "app.db"))
	t.Setenv("CONTACT_TTL", "1h")
	cfg, err := config.Load(filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	a, err := Open(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestSeedCatalog(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	for i := 0; i < 2; i++ {
		summary, err := a.SeedCatalog(ctx, path)
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		if summary.Rewards != 1 || summary.Commands != 1 || summary.Configs != 1 {
			t.Fatalf("unexpected summary %+v", summary)
		}
	}

	rewards, err := a.Economy.Rewards(ctx, "-100777", true)
	if err != nil || len(rewards) != 1 || rewards[0].Stock != 2 {
		t.Fatalf("expected the seeded mug once, got %+v (%v)", rewards, err)
	}
	cfg, err := a.Configs.Get(ctx, "-100777")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.PointsName != "coins" || cfg.MaxPendingRedemptions != 1 || cfg.MaxWarnings != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := a.SeedCatalog(ctx, ""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
	if _, err := a.SeedCatalog(ctx, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected missing catalog error")
	}
}

func TestPurgeContactsUsesTTL(t *testing.T) {
	a := openTestApp(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for linked, seen := range map[string]time.Time{
		"stale": now.Add(-2 * time.Hour),
		"fresh": now.Add(-10 * time.Minute),
	} {
		if err := a.Store.PutContact(ctx, models.Contact{LinkedID: linked, CanonicalID: "5550001", SeenAt: seen}); err != nil {
			t.Fatalf("put contact %s: %v", linked, err)
		}
	}

	purged, err := a.PurgeContacts(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged contact, got %d", purged)
	}
	if _, err := a.Store.LookupCanonical(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh contact to survive: %v", err)
	}
}

func TestServeStopsWhenUpdatesEnd(t *testing.T) {
	a := openTestApp(t)

	done := make(chan error, 1)
	go func() {
		done <- a.Serve(context.Background(), func(context.Context) error { return nil }, time.Hour)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected a clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("purge job kept running after the update loop returned")
	}

	boom := errors.New("webhook listener failed")
	if err := a.Serve(context.Background(), func(context.Context) error { return boom }, time.Hour); !errors.Is(err, boom) {
		t.Fatalf("expected the loop error, got %v", err)
	}
}
