package bot

import (
	"slices"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestSplitTarget(t *testing.T) {
	replyTo := &tgbotapi.Message{From: &tgbotapi.User{ID: 4242, FirstName: "Leo", UserName: "LeoR"}}
	mention := tgbotapi.MessageEntity{Type: "text_mention", User: &tgbotapi.User{ID: 3131, FirstName: "Mía", LastName: "Paz"}}

	tests := []struct {
		name     string
		msg      *tgbotapi.Message
		args     []string
		wantOK   bool
		wantUser int64
		wantName string
		wantRest []string
	}{
		{
			name:     "username argument",
			msg:      &tgbotapi.Message{},
			args:     []string{"50", "@Ana_M"},
			wantOK:   true,
			wantName: "ana_m",
			wantRest: []string{"50"},
		},
		{
			name:     "explicit id",
			msg:      &tgbotapi.Message{},
			args:     []string{"id:777", "spam"},
			wantOK:   true,
			wantUser: 777,
			wantRest: []string{"spam"},
		},
		{
			name:     "argument wins over reply",
			msg:      &tgbotapi.Message{ReplyToMessage: replyTo},
			args:     []string{"@ana"},
			wantOK:   true,
			wantName: "ana",
			wantRest: []string{},
		},
		{
			name:     "reply",
			msg:      &tgbotapi.Message{ReplyToMessage: replyTo},
			args:     []string{"10"},
			wantOK:   true,
			wantUser: 4242,
			wantName: "leor",
			wantRest: []string{"10"},
		},
		{
			name:     "text mention drops the mentioned name",
			msg:      &tgbotapi.Message{Entities: []tgbotapi.MessageEntity{mention}},
			args:     []string{"5", "Mía", "Paz"},
			wantOK:   true,
			wantUser: 3131,
			wantRest: []string{"5"},
		},
		{
			name:     "no target",
			msg:      &tgbotapi.Message{},
			args:     []string{"10"},
			wantRest: []string{"10"},
		},
		{
			name:     "bad id is a plain argument",
			msg:      &tgbotapi.Message{},
			args:     []string{"id:abc"},
			wantRest: []string{"id:abc"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rest, ok := splitTarget(tt.msg, tt.args)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got.userID != tt.wantUser || got.username != tt.wantName {
				t.Fatalf("expected user %d/%q, got %d/%q", tt.wantUser, tt.wantName, got.userID, got.username)
			}
			if !slices.Equal(rest, tt.wantRest) {
				t.Fatalf("expected rest %v, got %v", tt.wantRest, rest)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "50", want: 50},
		{in: "+7", want: 7},
		{in: "-20", want: -20},
		{in: "ten", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: expected %d, got %d (%v)", tt.in, tt.want, got, err)
		}
	}
}

func TestSubjectFromTarget(t *testing.T) {
	s := targetFromUser(&tgbotapi.User{ID: 123456, UserName: "Zoe"}).subject("-100")
	if s.CanonicalID != "123456" || s.LinkedID != "zoe" || s.DisplayName != "@Zoe" || s.GroupID != "-100" {
		t.Fatalf("unexpected subject %+v", s)
	}

	s = target{username: "zoe", display: "@zoe"}.subject("-100")
	if s.CanonicalID != "" || s.LinkedID != "zoe" {
		t.Fatalf("expected linked-only subject, got %+v", s)
	}
}
