package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/db"
	"github.com/PercyTuncar/bot-2026-sub001/internal/groupconfig"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
	"github.com/PercyTuncar/bot-2026-sub001/internal/storage"
)

func newTestLedger(t *testing.T, defaults groupconfig.Defaults) (*Ledger, models.MemberRef) {
	t.Helper()
	store, err := db.New(filepath.Join(t.TempDir(), "economy.db"), db.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ref := models.MemberRef{GroupID: "g1", MemberID: "5491100000001"}
	now := time.Now().UTC()
	err = store.Update(context.Background(), func(tx storage.Tx) error {
		_, err := tx.CreateMember(context.Background(), models.Member{
			GroupID: ref.GroupID, MemberID: ref.MemberID, IsActive: true, CreatedAt: now, UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return New(store, groupconfig.New(store, defaults), retry.DefaultPolicy()), ref
}

func TestAddPoints(t *testing.T) {
	ctx := context.Background()
	l, ref := newTestLedger(t, groupconfig.BuiltinDefaults())

	bal, err := l.AddPoints(ctx, ref, 40)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if bal.Points != 40 || bal.Delta != 40 {
		t.Fatalf("expected 40/40, got %d/%d", bal.Points, bal.Delta)
	}

	_, err = l.AddPoints(ctx, ref, -50)
	if apperrors.CodeOf(err) != apperrors.CodeInsufficientPoints {
		t.Fatalf("expected insufficient points, got %v", err)
	}
	appErr, _ := apperrors.As(err)
	if appErr.Int(apperrors.MetaRequired) != 50 || appErr.Int(apperrors.MetaAvailable) != 40 {
		t.Fatalf("expected required 50 available 40, got %v", appErr.Metadata)
	}

	bal, err = l.AddPoints(ctx, ref, -40)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal.Points != 0 {
		t.Fatalf("expected 0, got %d", bal.Points)
	}

	if _, err := l.AddPoints(ctx, ref, 0); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument for zero delta, got %v", err)
	}
	missing := models.MemberRef{GroupID: "g1", MemberID: "999"}
	if _, err := l.AddPoints(ctx, missing, 1); apperrors.CodeOf(err) != apperrors.CodeMemberNotFound {
		t.Fatalf("expected member not found, got %v", err)
	}
}

func TestSetAndResetPoints(t *testing.T) {
	ctx := context.Background()
	l, ref := newTestLedger(t, groupconfig.BuiltinDefaults())

	bal, err := l.SetPoints(ctx, ref, 75)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if bal.Points != 75 || bal.Delta != 75 {
		t.Fatalf("expected 75/75, got %d/%d", bal.Points, bal.Delta)
	}
	if _, err := l.SetPoints(ctx, ref, -1); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	bal, err = l.ResetPoints(ctx, ref)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if bal.Points != 0 || bal.Delta != -75 {
		t.Fatalf("expected 0/-75, got %d/%d", bal.Points, bal.Delta)
	}
	m, err := l.Member(ctx, ref)
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	if m.LifetimeEarned != 0 {
		t.Fatalf("expected set to leave lifetime counters alone, got %d", m.LifetimeEarned)
	}
}

func TestRecordMessageActivity(t *testing.T) {
	ctx := context.Background()
	defaults := groupconfig.BuiltinDefaults()
	defaults.MessagesPerPoint = 5
	defaults.PointsName = "coins"
	l, ref := newTestLedger(t, defaults)

	var last Activity
	for i := 0; i < 5; i++ {
		var err error
		last, err = l.RecordMessageActivity(ctx, ref)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if i < 4 && last.Awarded {
			t.Fatalf("unexpected award on message %d", i+1)
		}
	}
	if !last.Awarded || last.Points != 1 || last.MessagesSinceLastPoint != 0 {
		t.Fatalf("expected award on fifth message, got %+v", last)
	}
	if last.PointsName != "coins" {
		t.Fatalf("expected points name coins, got %q", last.PointsName)
	}
}

func TestConcurrentMessagesAreNotLost(t *testing.T) {
	ctx := context.Background()
	defaults := groupconfig.BuiltinDefaults()
	defaults.MessagesPerPoint = 10
	l, ref := newTestLedger(t, defaults)

	const workers, perWorker = 4, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := l.RecordMessageActivity(ctx, ref); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("record message: %v", err)
	}

	m, err := l.Member(ctx, ref)
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	if m.MessageCount != workers*perWorker {
		t.Fatalf("expected %d messages, got %d", workers*perWorker, m.MessageCount)
	}
	if m.Points != 4 {
		t.Fatalf("expected 4 points, got %d", m.Points)
	}
}
