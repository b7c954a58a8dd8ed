package economy

import (
	"context"
	"errors"
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

const testGroup = "-100123"

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *db.DB) {
	t.Helper()
	store, err := db.New(filepath.Join(t.TempDir(), "economy.db"), db.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	configs := groupconfig.New(store, groupconfig.BuiltinDefaults())
	engine := New(store, configs, retry.DefaultPolicy(), WithClock(func() time.Time { return fixedNow }))
	return engine, store
}

func seedMember(t *testing.T, store *db.DB, memberID string, points int64) models.MemberRef {
	t.Helper()
	ref := models.MemberRef{GroupID: testGroup, MemberID: memberID}
	err := store.Update(context.Background(), func(tx storage.Tx) error {
		if _, err := tx.CreateMember(context.Background(), models.Member{
			GroupID:   testGroup,
			MemberID:  memberID,
			IsActive:  true,
			CreatedAt: fixedNow,
			UpdatedAt: fixedNow,
		}); err != nil {
			return err
		}
		if points == 0 {
			return nil
		}
		_, err := tx.AddPoints(context.Background(), testGroup, memberID, points, fixedNow)
		return err
	})
	if err != nil {
		t.Fatalf("seed member %s: %v", memberID, err)
	}
	return ref
}

func seedReward(t *testing.T, e *Engine, id string, cost, stock int64) models.Reward {
	t.Helper()
	r, err := e.PutReward(context.Background(), models.Reward{
		GroupID:  testGroup,
		ID:       id,
		Name:     "Reward " + id,
		Cost:     cost,
		Stock:    stock,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed reward %s: %v", id, err)
	}
	return r
}

func memberPoints(t *testing.T, store *db.DB, ref models.MemberRef) models.Member {
	t.Helper()
	var m models.Member
	err := store.View(context.Background(), func(tx storage.Tx) error {
		var err error
		m, err = tx.GetMember(context.Background(), ref.GroupID, ref.MemberID)
		return err
	})
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	return m
}

func rewardState(t *testing.T, store *db.DB, id string) models.Reward {
	t.Helper()
	var r models.Reward
	err := store.View(context.Background(), func(tx storage.Tx) error {
		var err error
		r, err = tx.GetReward(context.Background(), testGroup, id)
		return err
	})
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	return r
}

func requireCode(t *testing.T, err error, code apperrors.Code) *apperrors.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("expected *apperrors.Error with %s, got %T: %v", code, err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, appErr.Code, err)
	}
	return appErr
}

func TestRedemptionLifecycle(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	ref := seedMember(t, store, "5491100000001", 500)
	seedReward(t, e, "tshirt", 300, 2)

	requested, err := e.RequestRedemption(ctx, ref, "tshirt", "size M")
	if err != nil {
		t.Fatalf("request redemption: %v", err)
	}
	if requested.Redemption.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", requested.Redemption.Status)
	}
	if requested.Redemption.PointsCost != 300 {
		t.Fatalf("expected cost snapshot 300, got %d", requested.Redemption.PointsCost)
	}
	if got := memberPoints(t, store, ref).Points; got != 500 {
		t.Fatalf("expected no debit on request, got balance %d", got)
	}
	if got := rewardState(t, store, "tshirt").TotalPending; got != 1 {
		t.Fatalf("expected total pending 1, got %d", got)
	}

	// Staff address redemptions by the short id printed on the card.
	approved, err := e.ApproveRedemption(ctx, testGroup, requested.Redemption.ID[:8], "admin")
	if err != nil {
		t.Fatalf("approve redemption: %v", err)
	}
	if approved.Redemption.ID != requested.Redemption.ID {
		t.Fatalf("expected short id to resolve to %s, got %s", requested.Redemption.ID, approved.Redemption.ID)
	}
	if approved.Points != 200 {
		t.Fatalf("expected balance 200, got %d", approved.Points)
	}
	if approved.Stock != 1 {
		t.Fatalf("expected stock 1, got %d", approved.Stock)
	}
	if approved.Redemption.ProcessedBy != "admin" || approved.Redemption.ProcessedAt == nil {
		t.Fatalf("expected processed metadata, got %+v", approved.Redemption)
	}
	reward := rewardState(t, store, "tshirt")
	if reward.TotalPending != 0 || reward.TotalApproved != 1 {
		t.Fatalf("expected pending 0 approved 1, got %d/%d", reward.TotalPending, reward.TotalApproved)
	}
	member := memberPoints(t, store, ref)
	if member.LifetimeSpent != 300 {
		t.Fatalf("expected lifetime spent 300, got %d", member.LifetimeSpent)
	}

	delivered, err := e.MarkDelivered(ctx, testGroup, requested.Redemption.ID, "courier", "handed over")
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if delivered.Redemption.Status != models.StatusDelivered {
		t.Fatalf("expected delivered, got %s", delivered.Redemption.Status)
	}
	if got := memberPoints(t, store, ref).LifetimeRedeemed; got != 1 {
		t.Fatalf("expected lifetime redeemed 1, got %d", got)
	}
	if got := rewardState(t, store, "tshirt").TotalDelivered; got != 1 {
		t.Fatalf("expected total delivered 1, got %d", got)
	}

	_, err = e.MarkDelivered(ctx, testGroup, requested.Redemption.ID, "courier", "")
	requireCode(t, err, apperrors.CodeNotApproved)
}

func TestRequestRedemptionValidation(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	rich := seedMember(t, store, "5491100000001", 1000)
	poor := seedMember(t, store, "5491100000002", 10)
	seedReward(t, e, "mug", 100, models.UnlimitedStock)
	seedReward(t, e, "gone", 100, 0)
	if _, err := e.PutReward(ctx, models.Reward{GroupID: testGroup, ID: "retired", Name: "Retired", Cost: 1, Stock: 5}); err != nil {
		t.Fatalf("put reward: %v", err)
	}

	tests := []struct {
		name     string
		ref      models.MemberRef
		rewardID string
		code     apperrors.Code
	}{
		{name: "unknown member", ref: models.MemberRef{GroupID: testGroup, MemberID: "999"}, rewardID: "mug", code: apperrors.CodeMemberNotFound},
		{name: "unknown reward", ref: rich, rewardID: "nope", code: apperrors.CodeRewardNotFound},
		{name: "inactive reward", ref: rich, rewardID: "retired", code: apperrors.CodeRewardInactive},
		{name: "out of stock", ref: rich, rewardID: "gone", code: apperrors.CodeOutOfStock},
		{name: "insufficient points", ref: poor, rewardID: "mug", code: apperrors.CodeInsufficientPoints},
		{name: "empty reward id", ref: rich, rewardID: " ", code: apperrors.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RequestRedemption(ctx, tt.ref, tt.rewardID, "")
			requireCode(t, err, tt.code)
		})
	}

	_, err := e.RequestRedemption(ctx, poor, "mug", "")
	appErr := requireCode(t, err, apperrors.CodeInsufficientPoints)
	if appErr.Int(apperrors.MetaRequired) != 100 || appErr.Int(apperrors.MetaAvailable) != 10 {
		t.Fatalf("expected required 100 available 10, got %v", appErr.Metadata)
	}
}

func TestRequestRedemptionPendingLimit(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	ref := seedMember(t, store, "5491100000001", 1000)
	seedReward(t, e, "sticker", 10, models.UnlimitedStock)

	for i := 0; i < 3; i++ {
		if _, err := e.RequestRedemption(ctx, ref, "sticker", ""); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	_, err := e.RequestRedemption(ctx, ref, "sticker", "")
	appErr := requireCode(t, err, apperrors.CodePendingLimitExceeded)
	if appErr.Int(apperrors.MetaLimit) != 3 {
		t.Fatalf("expected limit 3, got %v", appErr.Metadata)
	}

	pending, err := e.PendingRedemptions(ctx, testGroup, 10)
	if err != nil {
		t.Fatalf("pending redemptions: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
}

func TestRequestRedemptionIsIdempotentForOneID(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	e.newID = func() string { return "fixed-id" }
	ref := seedMember(t, store, "5491100000001", 1000)
	seedReward(t, e, "sticker", 10, models.UnlimitedStock)

	first, err := e.RequestRedemption(ctx, ref, "sticker", "")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := e.RequestRedemption(ctx, ref, "sticker", "")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if first.Redemption.ID != second.Redemption.ID {
		t.Fatalf("expected same redemption, got %s and %s", first.Redemption.ID, second.Redemption.ID)
	}
	if got := rewardState(t, store, "sticker").TotalPending; got != 1 {
		t.Fatalf("expected one pending count, got %d", got)
	}
}

func TestApproveInsufficientBalanceLeavesPending(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	ref := seedMember(t, store, "5491100000001", 300)
	seedReward(t, e, "tshirt", 300, 5)

	requested, err := e.RequestRedemption(ctx, ref, "tshirt", "")
	if err != nil {
		t.Fatalf("request redemption: %v", err)
	}
	err = store.Update(ctx, func(tx storage.Tx) error {
		_, err := tx.AddPoints(ctx, testGroup, ref.MemberID, -250, fixedNow)
		return err
	})
	if err != nil {
		t.Fatalf("spend points: %v", err)
	}

	_, err = e.ApproveRedemption(ctx, testGroup, requested.Redemption.ID, "admin")
	requireCode(t, err, apperrors.CodeInsufficientPoints)

	r, err := e.Redemption(ctx, testGroup, requested.Redemption.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if r.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}
	if got := memberPoints(t, store, ref).Points; got != 50 {
		t.Fatalf("expected balance 50, got %d", got)
	}
	if got := rewardState(t, store, "tshirt").Stock; got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}
}

func TestApproveTwiceFails(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	ref := seedMember(t, store, "5491100000001", 1000)
	seedReward(t, e, "mug", 100, models.UnlimitedStock)

	requested, err := e.RequestRedemption(ctx, ref, "mug", "")
	if err != nil {
		t.Fatalf("request redemption: %v", err)
	}
	if _, err := e.ApproveRedemption(ctx, testGroup, requested.Redemption.ID, "admin"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = e.ApproveRedemption(ctx, testGroup, requested.Redemption.ID, "admin")
	appErr := requireCode(t, err, apperrors.CodeAlreadyProcessed)
	if appErr.Metadata[apperrors.MetaStatus] != string(models.StatusApproved) {
		t.Fatalf("expected status metadata approved, got %v", appErr.Metadata)
	}
	if got := memberPoints(t, store, ref).Points; got != 900 {
		t.Fatalf("expected a single debit, got balance %d", got)
	}
	if got := rewardState(t, store, "mug").Stock; got != models.UnlimitedStock {
		t.Fatalf("expected unlimited stock untouched, got %d", got)
	}

	_, err = e.ApproveRedemption(ctx, testGroup, "missing", "admin")
	requireCode(t, err, apperrors.CodeRedemptionNotFound)
}

func TestConcurrentApprovalsForLastUnit(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	alice := seedMember(t, store, "5491100000001", 500)
	bob := seedMember(t, store, "5491100000002", 500)
	seedReward(t, e, "ticket", 200, 1)

	ra, err := e.RequestRedemption(ctx, alice, "ticket", "")
	if err != nil {
		t.Fatalf("alice request: %v", err)
	}
	rb, err := e.RequestRedemption(ctx, bob, "ticket", "")
	if err != nil {
		t.Fatalf("bob request: %v", err)
	}

	ids := []string{ra.Redemption.ID, rb.Redemption.ID}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = e.ApproveRedemption(ctx, testGroup, id, "admin")
		}(i, id)
	}
	wg.Wait()

	var wins, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperrors.CodeOf(err) == apperrors.CodeOutOfStock:
			outOfStock++
		default:
			t.Fatalf("unexpected approval error: %v", err)
		}
	}
	if wins != 1 || outOfStock != 1 {
		t.Fatalf("expected one win and one out of stock, got %d/%d", wins, outOfStock)
	}
	if got := rewardState(t, store, "ticket").Stock; got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
	total := memberPoints(t, store, alice).Points + memberPoints(t, store, bob).Points
	if total != 800 {
		t.Fatalf("expected exactly one debit of 200, got combined balance %d", total)
	}

	pending, err := e.PendingRedemptions(ctx, testGroup, 10)
	if err != nil {
		t.Fatalf("pending redemptions: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected loser to stay pending, got %d pending", len(pending))
	}
}

func TestRejectRedemption(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	ref := seedMember(t, store, "5491100000001", 500)
	seedReward(t, e, "mug", 100, 3)

	requested, err := e.RequestRedemption(ctx, ref, "mug", "")
	if err != nil {
		t.Fatalf("request redemption: %v", err)
	}
	rejected, err := e.RejectRedemption(ctx, testGroup, requested.Redemption.ID, "admin", "not this month")
	if err != nil {
		t.Fatalf("reject redemption: %v", err)
	}
	if rejected.Redemption.Status != models.StatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Redemption.Status)
	}
	if rejected.Redemption.RejectReason != "not this month" {
		t.Fatalf("expected reject reason, got %q", rejected.Redemption.RejectReason)
	}
	if rejected.Points != 500 {
		t.Fatalf("expected balance untouched, got %d", rejected.Points)
	}
	reward := rewardState(t, store, "mug")
	if reward.TotalPending != 0 || reward.Stock != 3 {
		t.Fatalf("expected pending 0 stock 3, got %d/%d", reward.TotalPending, reward.Stock)
	}

	_, err = e.RejectRedemption(ctx, testGroup, requested.Redemption.ID, "admin", "")
	requireCode(t, err, apperrors.CodeAlreadyProcessed)
	_, err = e.ApproveRedemption(ctx, testGroup, requested.Redemption.ID, "admin")
	requireCode(t, err, apperrors.CodeAlreadyProcessed)
}

func TestMarkDeliveredRequiresApproval(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	ref := seedMember(t, store, "5491100000001", 500)
	seedReward(t, e, "mug", 100, 3)

	requested, err := e.RequestRedemption(ctx, ref, "mug", "")
	if err != nil {
		t.Fatalf("request redemption: %v", err)
	}
	_, err = e.MarkDelivered(ctx, testGroup, requested.Redemption.ID, "courier", "")
	appErr := requireCode(t, err, apperrors.CodeNotApproved)
	if appErr.Metadata[apperrors.MetaStatus] != string(models.StatusPending) {
		t.Fatalf("expected status metadata pending, got %v", appErr.Metadata)
	}
}

func TestPurchaseCapability(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	ref := seedMember(t, store, "5491100000001", 500)
	if _, err := e.PutPremiumCommand(ctx, models.PremiumCommand{
		GroupID: testGroup, Name: "/Sticker", Price: 150, IsAvailable: true,
	}); err != nil {
		t.Fatalf("put premium command: %v", err)
	}

	res, err := e.PurchaseCapability(ctx, ref, "sticker")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if res.Points != 350 {
		t.Fatalf("expected balance 350, got %d", res.Points)
	}
	if res.Purchase.PricePaid != 150 || res.Capability.Name != "sticker" {
		t.Fatalf("unexpected purchase result: %+v", res)
	}

	_, err = e.PurchaseCapability(ctx, ref, "/sticker")
	requireCode(t, err, apperrors.CodeAlreadyOwned)
	if got := memberPoints(t, store, ref).Points; got != 350 {
		t.Fatalf("expected no second charge, got balance %d", got)
	}

	commands, err := e.PremiumCommands(ctx, testGroup)
	if err != nil {
		t.Fatalf("list commands: %v", err)
	}
	if len(commands) != 1 || commands[0].TotalPurchases != 1 || commands[0].UniqueBuyers != 1 {
		t.Fatalf("expected one purchase and one buyer, got %+v", commands)
	}
	stats, err := e.GroupStats(ctx, testGroup)
	if err != nil {
		t.Fatalf("group stats: %v", err)
	}
	if stats.TotalPurchases != 1 || stats.TotalPurchasePoints != 150 {
		t.Fatalf("expected group stats 1/150, got %d/%d", stats.TotalPurchases, stats.TotalPurchasePoints)
	}
	owned, err := e.Capabilities(ctx, ref)
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	if len(owned) != 1 {
		t.Fatalf("expected one owned capability, got %d", len(owned))
	}
}

func TestPurchaseCapabilityValidation(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	ref := seedMember(t, store, "5491100000001", 100)
	for _, c := range []models.PremiumCommand{
		{GroupID: testGroup, Name: "pricey", Price: 1000, IsAvailable: true},
		{GroupID: testGroup, Name: "hidden", Price: 10, IsAvailable: false},
	} {
		if _, err := e.PutPremiumCommand(ctx, c); err != nil {
			t.Fatalf("put premium command: %v", err)
		}
	}

	tests := []struct {
		name    string
		command string
		code    apperrors.Code
	}{
		{name: "unknown", command: "ghost", code: apperrors.CodeCommandNotFound},
		{name: "unavailable", command: "hidden", code: apperrors.CodeCommandUnavailable},
		{name: "too expensive", command: "pricey", code: apperrors.CodeInsufficientPoints},
		{name: "empty", command: "/", code: apperrors.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.PurchaseCapability(ctx, ref, tt.command)
			requireCode(t, err, tt.code)
		})
	}
	if got := memberPoints(t, store, ref).Points; got != 100 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
}

func TestPutRewardValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	tests := []struct {
		name   string
		reward models.Reward
	}{
		{name: "missing id", reward: models.Reward{GroupID: testGroup, Name: "x"}},
		{name: "missing name", reward: models.Reward{GroupID: testGroup, ID: "x"}},
		{name: "negative cost", reward: models.Reward{GroupID: testGroup, ID: "x", Name: "x", Cost: -1}},
		{name: "bad stock", reward: models.Reward{GroupID: testGroup, ID: "x", Name: "x", Stock: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.PutReward(context.Background(), tt.reward)
			if !errors.Is(err, apperrors.New(apperrors.CodeInvalidArgument, "")) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}
