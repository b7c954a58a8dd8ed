package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PercyTuncar/bot-2026-sub001/internal/identity"
)

// target is a member addressed by a command.
type target struct {
	userID   int64  // 0 when only the username is known
	username string // without '@', lower case
	display  string
}

func (t target) subject(groupID string) identity.Subject {
	s := identity.Subject{GroupID: groupID, LinkedID: t.username, DisplayName: t.display}
	if t.userID != 0 {
		s.CanonicalID = strconv.FormatInt(t.userID, 10)
	}
	return s
}

func targetFromUser(u *tgbotapi.User) target {
	return target{userID: u.ID, username: normalizeUsername(u.UserName), display: displayName(u)}
}

// targetFromArg accepts "@username" or "id:<user id>".
func targetFromArg(arg string) (target, bool) {
	switch {
	case strings.HasPrefix(arg, "@") && len(arg) > 1:
		name := normalizeUsername(arg)
		return target{username: name, display: "@" + name}, true
	case strings.HasPrefix(arg, "id:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(arg, "id:"), 10, 64)
		if err != nil || id <= 0 {
			return target{}, false
		}
		return target{userID: id, display: strconv.FormatInt(id, 10)}, true
	}
	return target{}, false
}

// splitTarget finds the member a command addresses: the author of the
// replied-to message, a text mention, or an "@username"/"id:" argument.
// The remaining arguments are returned in order.
func splitTarget(msg *tgbotapi.Message, args []string) (target, []string, bool) {
	rest := make([]string, 0, len(args))
	var found target
	ok := false
	for _, arg := range args {
		if !ok {
			if t, isTarget := targetFromArg(arg); isTarget {
				found, ok = t, true
				continue
			}
		}
		rest = append(rest, arg)
	}
	if ok {
		return found, rest, true
	}
	for _, e := range msg.Entities {
		if e.Type == "text_mention" && e.User != nil {
			name := displayName(e.User)
			return targetFromUser(e.User), dropWords(rest, name), true
		}
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && !msg.ReplyToMessage.From.IsBot {
		return targetFromUser(msg.ReplyToMessage.From), rest, true
	}
	return target{}, rest, false
}

// dropWords removes the words of a text mention from the argument list.
func dropWords(args []string, phrase string) []string {
	words := strings.Fields(phrase)
	if len(words) == 0 || len(args) < len(words) {
		return args
	}
	for i := 0; i+len(words) <= len(args); i++ {
		match := true
		for j, w := range words {
			if args[i+j] != w {
				match = false
				break
			}
		}
		if match {
			out := append([]string{}, args[:i]...)
			return append(out, args[i+len(words):]...)
		}
	}
	return args
}

func parseAmount(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.UserName != "" {
		return "@" + u.UserName
	}
	if name == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return name
}

func groupID(chat *tgbotapi.Chat) string {
	return strconv.FormatInt(chat.ID, 10)
}

// userIDOf recovers the Telegram user id from a canonical member id.
func userIDOf(memberID string) (int64, bool) {
	id, err := strconv.ParseInt(memberID, 10, 64)
	return id, err == nil && id > 0
}
