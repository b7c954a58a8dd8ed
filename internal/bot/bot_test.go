package bot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PercyTuncar/bot-2026-sub001/internal/db"
	"github.com/PercyTuncar/bot-2026-sub001/internal/economy"
	"github.com/PercyTuncar/bot-2026-sub001/internal/groupconfig"
	"github.com/PercyTuncar/bot-2026-sub001/internal/identity"
	"github.com/PercyTuncar/bot-2026-sub001/internal/ledger"
	"github.com/PercyTuncar/bot-2026-sub001/internal/messages"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/moderation"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
)

const (
	testChatID  int64 = -1001234
	testAdminDM int64 = 9001
)

var (
	staffUser = &tgbotapi.User{ID: 5001, FirstName: "Sara", UserName: "sara"}
	anaUser   = &tgbotapi.User{ID: 7001, FirstName: "Ana", UserName: "Ana_M"}
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	admins   map[int64]bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	status := "member"
	if f.admins[cfg.UserID] {
		status = "administrator"
	}
	return tgbotapi.ChatMember{User: &tgbotapi.User{ID: cfg.UserID}, Status: status}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, err
	}
	return &update, nil
}

// last returns the text of the most recent message sent to chatID.
func (f *fakeAPI) last(t *testing.T, chatID int64) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChatID == chatID {
			return f.sent[i].Text
		}
	}
	t.Fatalf("expected a message to chat %d", chatID)
	return ""
}

func (f *fakeAPI) kicked(userID int64) (banned, unbanned bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		switch c := r.(type) {
		case tgbotapi.BanChatMemberConfig:
			banned = banned || c.UserID == userID
		case tgbotapi.UnbanChatMemberConfig:
			unbanned = unbanned || c.UserID == userID
		}
	}
	return banned, unbanned
}

type testBot struct {
	*Bot
	api *fakeAPI
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	store, err := db.New(filepath.Join(t.TempDir(), "bot.db"), db.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	configs := groupconfig.New(store, groupconfig.BuiltinDefaults())
	policy := retry.DefaultPolicy()
	svc := Services{
		Identity:   identity.NewResolver(store, identity.WithDirectory(store), identity.WithLogger(logger)),
		Ledger:     ledger.New(store, configs, policy),
		Economy:    economy.New(store, configs, policy),
		Moderation: moderation.New(store, configs, policy),
		Configs:    configs,
		Contacts:   store,
	}
	api := &fakeAPI{admins: map[int64]bool{staffUser.ID: true}}
	b := newBot(api, Config{Language: "en", AdminIDs: []int64{testAdminDM}, WebhookSecret: "s3cret"}, svc, logger)
	return &testBot{Bot: b, api: api}
}

func groupMessage(from *tgbotapi.User, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      from,
		Chat:      &tgbotapi.Chat{ID: testChatID, Type: "supergroup"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

// send delivers a group message and returns the bot's reply in the group.
func (tb *testBot) send(t *testing.T, from *tgbotapi.User, text string) string {
	t.Helper()
	tb.HandleUpdate(context.Background(), groupMessage(from, text))
	return tb.api.last(t, testChatID)
}

func (tb *testBot) points(t *testing.T, userID string) int64 {
	t.Helper()
	m, err := tb.svc.Ledger.Member(context.Background(), models.MemberRef{GroupID: "-1001234", MemberID: userID})
	if err != nil {
		t.Fatalf("load member %s: %v", userID, err)
	}
	return m.Points
}

func TestMessagesAccruePoints(t *testing.T) {
	tb := newTestBot(t)
	for i := 0; i < 10; i++ {
		tb.HandleUpdate(context.Background(), groupMessage(anaUser, "hola"))
	}
	if got := tb.points(t, "7001"); got != 1 {
		t.Fatalf("expected 1 point after 10 messages, got %d", got)
	}
	if got := tb.send(t, anaUser, "/points"); got != "Ana has 1 points." {
		t.Fatalf("unexpected balance reply %q", got)
	}
}

func TestRedeemApproveFlow(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()
	if _, err := tb.svc.Economy.PutReward(ctx, models.Reward{
		GroupID: "-1001234", ID: "mug", Name: "Mug", Cost: 30, Stock: 1, IsActive: true,
	}); err != nil {
		t.Fatalf("put reward: %v", err)
	}

	tb.HandleUpdate(ctx, groupMessage(anaUser, "hi"))
	if got := tb.send(t, staffUser, "/addpoints 50 @ana_m"); got != "Added 50 points to @ana_m. Balance: 50." {
		t.Fatalf("unexpected addpoints reply %q", got)
	}

	reply := tb.send(t, anaUser, "/redeem mug blue please")
	if !strings.Contains(reply, "filed for Mug") {
		t.Fatalf("unexpected redeem reply %q", reply)
	}
	card := tb.api.last(t, testAdminDM)
	if !strings.Contains(card, "👤 Ana") || !strings.Contains(card, "📝 blue please") {
		t.Fatalf("unexpected admin card:\n%s", card)
	}

	pending, err := tb.svc.Economy.PendingRedemptions(ctx, "-1001234", 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending redemption, got %d (%v)", len(pending), err)
	}
	short := messages.ShortID(pending[0].ID)

	if got := tb.send(t, anaUser, "/approve "+short); got != "Only group admins can do that." {
		t.Fatalf("expected staff-only reply, got %q", got)
	}
	if got := tb.points(t, "7001"); got != 50 {
		t.Fatalf("expected balance untouched before approval, got %d", got)
	}

	approved := tb.send(t, staffUser, "/approve "+short)
	if !strings.Contains(approved, "approved: Mug") || !strings.Contains(approved, "balance 20") {
		t.Fatalf("unexpected approve reply %q", approved)
	}
	if dm := tb.api.last(t, anaUser.ID); dm != approved {
		t.Fatalf("expected member notification %q, got %q", approved, dm)
	}
	if got := tb.points(t, "7001"); got != 20 {
		t.Fatalf("expected 20 points after approval, got %d", got)
	}

	if got := tb.send(t, staffUser, "/approve "+short); got != "That redemption is already approved." {
		t.Fatalf("unexpected second approve reply %q", got)
	}
	if got := tb.send(t, staffUser, "/delivered "+short); !strings.Contains(got, "delivered") {
		t.Fatalf("unexpected delivered reply %q", got)
	}
}

func TestRedeemFailureIsRendered(t *testing.T) {
	tb := newTestBot(t)
	if _, err := tb.svc.Economy.PutReward(context.Background(), models.Reward{
		GroupID: "-1001234", ID: "hoodie", Name: "Hoodie", Cost: 500, Stock: models.UnlimitedStock, IsActive: true,
	}); err != nil {
		t.Fatalf("put reward: %v", err)
	}
	if got := tb.send(t, anaUser, "/redeem hoodie"); got != "Not enough points: 500 needed, 0 available." {
		t.Fatalf("unexpected reply %q", got)
	}
	if got := tb.send(t, anaUser, "/redeem"); got != "Usage: /redeem <reward> [notes]" {
		t.Fatalf("unexpected usage reply %q", got)
	}
}

func TestWarnKicksAtThreshold(t *testing.T) {
	tb := newTestBot(t)
	tb.HandleUpdate(context.Background(), groupMessage(anaUser, "hi"))

	for i := 1; i < 3; i++ {
		got := tb.send(t, staffUser, "/warn @ana_m spam")
		if !strings.Contains(got, "has been warned") {
			t.Fatalf("warning %d: unexpected reply %q", i, got)
		}
	}
	if banned, _ := tb.api.kicked(anaUser.ID); banned {
		t.Fatal("expected no kick before the threshold")
	}

	if got := tb.send(t, staffUser, "/warn @ana_m spam"); got != "🚫 @ana_m reached 3 warnings and was removed." {
		t.Fatalf("unexpected kick reply %q", got)
	}
	if banned, unbanned := tb.api.kicked(anaUser.ID); !banned || !unbanned {
		t.Fatalf("expected ban and unban, got ban=%v unban=%v", banned, unbanned)
	}

	if got := tb.send(t, staffUser, "/unwarn @ana_m"); got != "Warnings for @ana_m reset (was 3)." {
		t.Fatalf("unexpected unwarn reply %q", got)
	}
}

func TestUnknownUsernameIsUnresolvable(t *testing.T) {
	tb := newTestBot(t)
	if got := tb.send(t, staffUser, "/addpoints 5 @ghost"); got != "I could not identify that member." {
		t.Fatalf("unexpected reply %q", got)
	}
	if got := tb.send(t, staffUser, "/addpoints 5"); got != "Usage: /addpoints <n> @member" {
		t.Fatalf("unexpected usage reply %q", got)
	}
}

func TestRouter(t *testing.T) {
	tb := newTestBot(t)
	srv := httptest.NewServer(tb.Router(context.Background()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}

	body := `{"update_id":1,"message":{"message_id":3,"from":{"id":7001,"first_name":"Ana"},"chat":{"id":7001,"type":"private"},"text":"/help","entities":[{"type":"bot_command","offset":0,"length":5}]}}`

	resp, err = http.Post(srv.URL+"/telegram/wrong", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a wrong secret, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/telegram/s3cret", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := tb.api.last(t, 7001); got != messages.New("en").Help() {
		t.Fatalf("expected help text, got %q", got)
	}
}

func TestRecycledUsernameTargetsNewHolder(t *testing.T) {
	tb := newTestBot(t)
	ctx := context.Background()

	tb.HandleUpdate(ctx, groupMessage(anaUser, "hi"))
	if got := tb.send(t, staffUser, "/addpoints 50 @ana_m"); got != "Added 50 points to @ana_m. Balance: 50." {
		t.Fatalf("unexpected addpoints reply %q", got)
	}

	renamed := &tgbotapi.User{ID: anaUser.ID, FirstName: "Ana", UserName: "ana_new"}
	tb.HandleUpdate(ctx, groupMessage(renamed, "new handle"))
	newcomer := &tgbotapi.User{ID: 7002, FirstName: "Marta", UserName: "Ana_M"}
	tb.HandleUpdate(ctx, groupMessage(newcomer, "hello"))

	if got := tb.send(t, staffUser, "/addpoints 5 @ana_m"); got != "Added 5 points to @ana_m. Balance: 5." {
		t.Fatalf("expected the new holder of @ana_m to be credited, got %q", got)
	}
	if got := tb.points(t, "7001"); got != 50 {
		t.Fatalf("expected the renamed member to keep 50 points, got %d", got)
	}
	if got := tb.send(t, staffUser, "/addpoints 1 @ana_new"); got != "Added 1 points to @ana_new. Balance: 51." {
		t.Fatalf("unexpected reply for the renamed member %q", got)
	}
}
