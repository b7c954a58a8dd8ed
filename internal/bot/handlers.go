package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
)

const pendingListLimit = 20

// HandleUpdate processes one Telegram update. Failures are reported to the
// chat and logged; nothing is returned to the receive loop.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		b.handlePrivate(msg)
		return
	}

	gid := groupID(msg.Chat)
	for i := range msg.NewChatMembers {
		u := &msg.NewChatMembers[i]
		if u.IsBot {
			continue
		}
		b.rememberContact(ctx, u)
		if _, err := b.svc.Identity.MarkJoined(ctx, targetFromUser(u).subject(gid)); err != nil {
			b.logger.Warn("failed to record join", "group_id", gid, "user_id", u.ID, "error", err)
		}
	}
	if u := msg.LeftChatMember; u != nil && !u.IsBot {
		b.markDeparted(ctx, gid, u)
	}

	if msg.From == nil || msg.From.IsBot {
		return
	}
	b.rememberContact(ctx, msg.From)

	sender, err := b.svc.Identity.EnsureMember(ctx, targetFromUser(msg.From).subject(gid))
	if err != nil {
		b.logger.Error("failed to resolve sender", "group_id", gid, "user_id", msg.From.ID, "error", err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, sender)
		return
	}
	if len(msg.NewChatMembers) > 0 || msg.LeftChatMember != nil {
		return
	}
	act, err := b.svc.Ledger.RecordMessageActivity(ctx, sender)
	if err != nil {
		b.logger.Error("failed to record activity", "group_id", gid, "member_id", sender.MemberID, "error", err)
		return
	}
	if act.Awarded {
		b.logger.Debug("activity point awarded", "group_id", gid, "member_id", sender.MemberID, "points", act.Points)
	}
}

func (b *Bot) handlePrivate(msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot || !msg.IsCommand() {
		return
	}
	switch msg.Command() {
	case "start", "help":
		b.reply(msg, b.text.Help())
	default:
		b.reply(msg, b.text.UnknownCommand())
	}
}

// rememberContact feeds the username directory used to resolve "@name"
// arguments. Best effort.
func (b *Bot) rememberContact(ctx context.Context, u *tgbotapi.User) {
	if b.svc.Contacts == nil || u.UserName == "" {
		return
	}
	err := b.svc.Contacts.PutContact(ctx, models.Contact{
		LinkedID:    normalizeUsername(u.UserName),
		CanonicalID: strconv.FormatInt(u.ID, 10),
		SeenAt:      b.now().UTC(),
	})
	if err != nil {
		b.logger.Warn("failed to store contact", "user_id", u.ID, "error", err)
	}
}

func (b *Bot) markDeparted(ctx context.Context, gid string, u *tgbotapi.User) {
	t := targetFromUser(u)
	ref, err := b.svc.Identity.Resolve(ctx, gid, strconv.FormatInt(u.ID, 10), t.username)
	if apperrors.CodeOf(err) == apperrors.CodeMemberNotFound {
		return
	}
	if err == nil {
		err = b.svc.Identity.MarkDeparted(ctx, ref)
	}
	if err != nil {
		b.logger.Warn("failed to record departure", "group_id", gid, "user_id", u.ID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef) {
	args := strings.Fields(msg.CommandArguments())
	cmd := strings.ToLower(msg.Command())

	switch cmd {
	case "start", "help":
		b.reply(msg, b.text.Help())
	case "points", "balance":
		b.handleBalance(ctx, msg, sender, args)
	case "rewards":
		b.handleRewards(ctx, msg)
	case "redeem":
		b.handleRedeem(ctx, msg, sender, args)
	case "shop":
		b.handleShop(ctx, msg)
	case "buy":
		b.handleBuy(ctx, msg, sender, args)
	case "pending", "approve", "reject", "delivered",
		"addpoints", "setpoints", "resetpoints", "warn", "unwarn":
		if !b.isStaff(msg.Chat.ID, msg.From.ID) {
			b.reply(msg, b.text.StaffOnly())
			return
		}
		b.handleStaffCommand(ctx, cmd, msg, sender, args)
	default:
		b.reply(msg, b.text.UnknownCommand())
	}
}

func (b *Bot) handleStaffCommand(ctx context.Context, cmd string, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	switch cmd {
	case "pending":
		b.handlePending(ctx, msg)
	case "approve":
		b.handleApprove(ctx, msg, sender, args)
	case "reject":
		b.handleReject(ctx, msg, sender, args)
	case "delivered":
		b.handleDelivered(ctx, msg, sender, args)
	case "addpoints":
		b.handleAddPoints(ctx, msg, args)
	case "setpoints":
		b.handleSetPoints(ctx, msg, args)
	case "resetpoints":
		b.handleResetPoints(ctx, msg, args)
	case "warn":
		b.handleWarn(ctx, msg, sender, args)
	case "unwarn":
		b.handleUnwarn(ctx, msg, sender, args)
	}
}

// pointsName is the group's currency label, falling back to the default.
func (b *Bot) pointsName(ctx context.Context, gid string) string {
	cfg, err := b.svc.Configs.Get(ctx, gid)
	if err != nil {
		return b.svc.Configs.Defaults().PointsName
	}
	return cfg.PointsName
}

func (b *Bot) fail(ctx context.Context, msg *tgbotapi.Message, op string, err error) {
	gid := groupID(msg.Chat)
	if apperrors.KindOf(err) == apperrors.KindInternal {
		b.logger.Error("command failed", "op", op, "group_id", gid, "error", err)
	} else {
		b.logger.Debug("command rejected", "op", op, "group_id", gid, "code", apperrors.CodeOf(err))
	}
	b.reply(msg, b.text.Failure(err, b.pointsName(ctx, gid)))
}

// resolveTarget resolves the member a staff command addresses.
func (b *Bot) resolveTarget(ctx context.Context, msg *tgbotapi.Message, args []string) (models.MemberRef, target, []string, error) {
	t, rest, ok := splitTarget(msg, args)
	if !ok {
		return models.MemberRef{}, target{}, rest, apperrors.New(apperrors.CodeInvalidArgument, "no member given")
	}
	ref, err := b.svc.Identity.EnsureMember(ctx, t.subject(groupID(msg.Chat)))
	return ref, t, rest, err
}

func (b *Bot) handleBalance(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	ref, name := sender, displayName(msg.From)
	if len(args) > 0 || msg.ReplyToMessage != nil {
		r, t, _, err := b.resolveTarget(ctx, msg, args)
		if err == nil {
			ref, name = r, t.display
		} else if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
			b.fail(ctx, msg, "balance", err)
			return
		}
	}
	m, err := b.svc.Ledger.Member(ctx, ref)
	if err != nil {
		b.fail(ctx, msg, "balance", err)
		return
	}
	b.reply(msg, b.text.Balance(name, m.Points, b.pointsName(ctx, ref.GroupID)))
}

func (b *Bot) handleRewards(ctx context.Context, msg *tgbotapi.Message) {
	gid := groupID(msg.Chat)
	rewards, err := b.svc.Economy.Rewards(ctx, gid, true)
	if err != nil {
		b.fail(ctx, msg, "rewards", err)
		return
	}
	b.reply(msg, b.text.Rewards(rewards, b.pointsName(ctx, gid)))
}

func (b *Bot) handleRedeem(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	if len(args) == 0 {
		b.reply(msg, b.text.Usage("/redeem <reward> [notes]"))
		return
	}
	res, err := b.svc.Economy.RequestRedemption(ctx, sender, args[0], strings.Join(args[1:], " "))
	if err != nil {
		b.fail(ctx, msg, "redeem", err)
		return
	}
	b.reply(msg, b.text.RedemptionRequested(res))
	b.notifyAdmins(b.text.RedemptionCard(res.Redemption, displayName(msg.From), res.PointsName))
}

func (b *Bot) handleShop(ctx context.Context, msg *tgbotapi.Message) {
	gid := groupID(msg.Chat)
	commands, err := b.svc.Economy.PremiumCommands(ctx, gid)
	if err != nil {
		b.fail(ctx, msg, "shop", err)
		return
	}
	b.reply(msg, b.text.Shop(commands, b.pointsName(ctx, gid)))
}

func (b *Bot) handleBuy(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	if len(args) == 0 {
		b.reply(msg, b.text.Usage("/buy <command>"))
		return
	}
	res, err := b.svc.Economy.PurchaseCapability(ctx, sender, args[0])
	if err != nil {
		b.fail(ctx, msg, "buy", err)
		return
	}
	b.reply(msg, b.text.Purchased(res))
}

func (b *Bot) handlePending(ctx context.Context, msg *tgbotapi.Message) {
	gid := groupID(msg.Chat)
	list, err := b.svc.Economy.PendingRedemptions(ctx, gid, pendingListLimit)
	if err != nil {
		b.fail(ctx, msg, "pending", err)
		return
	}
	b.reply(msg, b.text.PendingList(list, b.pointsName(ctx, gid)))
}

func (b *Bot) handleApprove(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	if len(args) == 0 {
		b.reply(msg, b.text.Usage("/approve <id>"))
		return
	}
	res, err := b.svc.Economy.ApproveRedemption(ctx, groupID(msg.Chat), args[0], sender.MemberID)
	if err != nil {
		b.fail(ctx, msg, "approve", err)
		return
	}
	text := b.text.RedemptionApproved(res)
	b.reply(msg, text)
	b.notifyMember(res.Redemption.MemberID, text)
}

func (b *Bot) handleReject(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	if len(args) == 0 {
		b.reply(msg, b.text.Usage("/reject <id> [reason]"))
		return
	}
	res, err := b.svc.Economy.RejectRedemption(ctx, groupID(msg.Chat), args[0], sender.MemberID, strings.Join(args[1:], " "))
	if err != nil {
		b.fail(ctx, msg, "reject", err)
		return
	}
	text := b.text.RedemptionRejected(res)
	b.reply(msg, text)
	b.notifyMember(res.Redemption.MemberID, text)
}

func (b *Bot) handleDelivered(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	if len(args) == 0 {
		b.reply(msg, b.text.Usage("/delivered <id> [notes]"))
		return
	}
	res, err := b.svc.Economy.MarkDelivered(ctx, groupID(msg.Chat), args[0], sender.MemberID, strings.Join(args[1:], " "))
	if err != nil {
		b.fail(ctx, msg, "delivered", err)
		return
	}
	text := b.text.RedemptionDelivered(res)
	b.reply(msg, text)
	b.notifyMember(res.Redemption.MemberID, text)
}

// amountAndTarget parses "<n>" plus a member for the points commands.
func (b *Bot) amountAndTarget(ctx context.Context, msg *tgbotapi.Message, args []string, usage string) (models.MemberRef, target, int64, bool) {
	ref, t, rest, err := b.resolveTarget(ctx, msg, args)
	if apperrors.CodeOf(err) == apperrors.CodeInvalidArgument || (err == nil && len(rest) == 0) {
		b.reply(msg, b.text.Usage(usage))
		return models.MemberRef{}, target{}, 0, false
	}
	if err != nil {
		b.fail(ctx, msg, "points", err)
		return models.MemberRef{}, target{}, 0, false
	}
	amount, err := parseAmount(rest[0])
	if err != nil {
		b.reply(msg, b.text.Usage(usage))
		return models.MemberRef{}, target{}, 0, false
	}
	return ref, t, amount, true
}

func (b *Bot) handleAddPoints(ctx context.Context, msg *tgbotapi.Message, args []string) {
	ref, t, amount, ok := b.amountAndTarget(ctx, msg, args, "/addpoints <n> @member")
	if !ok {
		return
	}
	bal, err := b.svc.Ledger.AddPoints(ctx, ref, amount)
	if err != nil {
		b.fail(ctx, msg, "addpoints", err)
		return
	}
	b.reply(msg, b.text.PointsChanged(t.display, bal, b.pointsName(ctx, ref.GroupID)))
}

func (b *Bot) handleSetPoints(ctx context.Context, msg *tgbotapi.Message, args []string) {
	ref, t, amount, ok := b.amountAndTarget(ctx, msg, args, "/setpoints <n> @member")
	if !ok {
		return
	}
	bal, err := b.svc.Ledger.SetPoints(ctx, ref, amount)
	if err != nil {
		b.fail(ctx, msg, "setpoints", err)
		return
	}
	b.reply(msg, b.text.PointsSet(t.display, bal, b.pointsName(ctx, ref.GroupID)))
}

func (b *Bot) handleResetPoints(ctx context.Context, msg *tgbotapi.Message, args []string) {
	ref, t, _, err := b.resolveTarget(ctx, msg, args)
	if apperrors.CodeOf(err) == apperrors.CodeInvalidArgument {
		b.reply(msg, b.text.Usage("/resetpoints @member"))
		return
	}
	if err != nil {
		b.fail(ctx, msg, "resetpoints", err)
		return
	}
	bal, err := b.svc.Ledger.ResetPoints(ctx, ref)
	if err != nil {
		b.fail(ctx, msg, "resetpoints", err)
		return
	}
	b.reply(msg, b.text.PointsSet(t.display, bal, b.pointsName(ctx, ref.GroupID)))
}

func (b *Bot) handleWarn(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	ref, t, rest, err := b.resolveTarget(ctx, msg, args)
	if apperrors.CodeOf(err) == apperrors.CodeInvalidArgument {
		b.reply(msg, b.text.Usage("/warn @member [reason]"))
		return
	}
	if err != nil {
		b.fail(ctx, msg, "warn", err)
		return
	}
	reason := strings.Join(rest, " ")
	res, err := b.svc.Moderation.AddWarning(ctx, ref, sender.MemberID, reason)
	if err != nil {
		b.fail(ctx, msg, "warn", err)
		return
	}
	if !res.ShouldKick {
		b.reply(msg, b.text.Warned(t.display, res))
		return
	}

	userID, ok := userIDOf(ref.MemberID)
	if !ok {
		b.logger.Error("cannot kick member without a user id", "group_id", ref.GroupID, "member_id", ref.MemberID)
		b.reply(msg, b.text.Warned(t.display, res))
		return
	}
	if err := b.kick(msg.Chat.ID, userID); err != nil {
		// The warning stands; staff can remove the member by hand.
		b.logger.Error("kick failed", "group_id", ref.GroupID, "member_id", ref.MemberID, "error", err)
		b.reply(msg, b.text.Warned(t.display, res))
		return
	}
	if _, err := b.svc.Moderation.LogKick(ctx, ref, sender.MemberID, reason); err != nil {
		b.logger.Error("failed to log kick", "group_id", ref.GroupID, "member_id", ref.MemberID, "error", err)
	}
	if err := b.svc.Identity.MarkDeparted(ctx, ref); err != nil {
		b.logger.Warn("failed to mark kicked member departed", "member_id", ref.MemberID, "error", err)
	}
	b.reply(msg, b.text.Kicked(t.display, res))
}

func (b *Bot) handleUnwarn(ctx context.Context, msg *tgbotapi.Message, sender models.MemberRef, args []string) {
	ref, t, _, err := b.resolveTarget(ctx, msg, args)
	if apperrors.CodeOf(err) == apperrors.CodeInvalidArgument {
		b.reply(msg, b.text.Usage("/unwarn @member"))
		return
	}
	if err != nil {
		b.fail(ctx, msg, "unwarn", err)
		return
	}
	res, err := b.svc.Moderation.ResetWarnings(ctx, ref, sender.MemberID)
	if err != nil {
		b.fail(ctx, msg, "unwarn", err)
		return
	}
	b.reply(msg, b.text.WarningsReset(t.display, res))
}
