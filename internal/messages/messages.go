// Package messages renders workflow results and failures as chat text.
package messages

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
	"github.com/PercyTuncar/bot-2026-sub001/internal/economy"
	"github.com/PercyTuncar/bot-2026-sub001/internal/ledger"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
	"github.com/PercyTuncar/bot-2026-sub001/internal/moderation"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

var supported = language.NewMatcher([]language.Tag{language.English, language.Spanish})

// Formatter renders text in one language.
type Formatter struct {
	p *message.Printer
}

// New returns a Formatter for lang, falling back to English.
func New(lang string) *Formatter {
	tag, _ := language.MatchStrings(supported, lang)
	base, _ := tag.Base()
	if base.String() == "es" {
		tag = language.Spanish
	} else {
		tag = language.English
	}
	return &Formatter{p: message.NewPrinter(tag)}
}

func (f *Formatter) Help() string {
	return f.p.Sprintf(keyHelp)
}

func (f *Formatter) StaffOnly() string {
	return f.p.Sprintf(keyStaffOnly)
}

func (f *Formatter) Usage(usage string) string {
	return f.p.Sprintf(keyUsage, usage)
}

func (f *Formatter) UnknownCommand() string {
	return f.p.Sprintf(keyUnknownCommand)
}

func (f *Formatter) Balance(name string, points int64, pointsName string) string {
	return f.p.Sprintf(keyBalance, name, points, pointsName)
}

// PointsChanged renders an add (delta > 0) or remove (delta < 0).
func (f *Formatter) PointsChanged(name string, bal ledger.Balance, pointsName string) string {
	if bal.Delta < 0 {
		return f.p.Sprintf(keyPointsRemoved, -bal.Delta, pointsName, name, bal.Points)
	}
	return f.p.Sprintf(keyPointsAdded, bal.Delta, pointsName, name, bal.Points)
}

func (f *Formatter) PointsSet(name string, bal ledger.Balance, pointsName string) string {
	return f.p.Sprintf(keyPointsSet, name, bal.Points, pointsName)
}

func (f *Formatter) RedemptionRequested(res economy.RedemptionResult) string {
	r := res.Redemption
	return f.p.Sprintf(keyRedeemRequested, ShortID(r.ID), r.RewardName, r.PointsCost, res.PointsName)
}

func (f *Formatter) RedemptionApproved(res economy.RedemptionResult) string {
	r := res.Redemption
	return f.p.Sprintf(keyRedeemApproved, ShortID(r.ID), r.RewardName, r.PointsCost, res.PointsName, res.Points)
}

func (f *Formatter) RedemptionRejected(res economy.RedemptionResult) string {
	reason := res.Redemption.RejectReason
	if reason == "" {
		reason = "-"
	}
	return f.p.Sprintf(keyRedeemRejected, ShortID(res.Redemption.ID), reason)
}

func (f *Formatter) RedemptionDelivered(res economy.RedemptionResult) string {
	return f.p.Sprintf(keyRedeemDelivered, ShortID(res.Redemption.ID), res.Redemption.RewardName)
}

// RedemptionCard is the staff-facing summary of a pending redemption.
func (f *Formatter) RedemptionCard(r models.Redemption, memberName, pointsName string) string {
	var sb strings.Builder
	sb.WriteString(rule + "\n")
	sb.WriteString(f.p.Sprintf(keyCardTitle, ShortID(r.ID), r.RewardName) + "\n")
	sb.WriteString(f.p.Sprintf(keyCardMember, memberName) + "\n")
	sb.WriteString(f.p.Sprintf(keyCardCost, r.PointsCost, pointsName) + "\n")
	if r.Notes != "" {
		sb.WriteString(f.p.Sprintf(keyCardNotes, r.Notes) + "\n")
	}
	sb.WriteString(rule + "\n")
	sb.WriteString(f.p.Sprintf(keyCardActions, ShortID(r.ID)) + "\n")
	sb.WriteString(rule)
	return sb.String()
}

func (f *Formatter) PendingList(list []models.Redemption, pointsName string) string {
	if len(list) == 0 {
		return f.p.Sprintf(keyPendingEmpty)
	}
	var sb strings.Builder
	sb.WriteString(f.p.Sprintf(keyPendingHeader, len(list)) + "\n\n")
	for i, r := range list {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(f.RedemptionCard(r, r.MemberID, pointsName))
	}
	return sb.String()
}

func (f *Formatter) Rewards(rewards []models.Reward, pointsName string) string {
	if len(rewards) == 0 {
		return f.p.Sprintf(keyRewardsEmpty)
	}
	var sb strings.Builder
	sb.WriteString(f.p.Sprintf(keyRewardsHeader, len(rewards)) + "\n\n")
	for i, r := range rewards {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		stock := f.p.Sprintf(keyStockUnlimited)
		if r.Stock != models.UnlimitedStock {
			stock = f.p.Sprintf(keyStockLeft, r.Stock)
		}
		sb.WriteString(f.p.Sprintf(keyRewardLine, r.ID, r.Name, r.Cost, pointsName, stock))
	}
	return sb.String()
}

func (f *Formatter) Shop(commands []models.PremiumCommand, pointsName string) string {
	var available []models.PremiumCommand
	for _, c := range commands {
		if c.IsAvailable {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return f.p.Sprintf(keyShopEmpty)
	}
	var sb strings.Builder
	sb.WriteString(f.p.Sprintf(keyShopHeader, len(available)) + "\n\n")
	for i, c := range available {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimRight(f.p.Sprintf(keyShopLine, c.Name, c.Price, pointsName, c.Description), "\n"))
	}
	return sb.String()
}

func (f *Formatter) Purchased(res economy.PurchaseResult) string {
	return f.p.Sprintf(keyPurchaseDone, res.Capability.Name, res.Purchase.PricePaid, res.PointsName, res.Points)
}

func (f *Formatter) Warned(name string, res moderation.WarningResult) string {
	return f.p.Sprintf(keyWarnAdded, name, res.WarningCount, res.MaxWarnings)
}

func (f *Formatter) Kicked(name string, res moderation.WarningResult) string {
	return f.p.Sprintf(keyWarnKicked, name, res.WarningCount)
}

func (f *Formatter) WarningsReset(name string, res moderation.WarningResult) string {
	return f.p.Sprintf(keyWarnReset, name, res.PreviousCount)
}

// Failure maps a workflow error to a user-facing sentence. Internal errors
// never leak their text.
func (f *Formatter) Failure(err error, pointsName string) string {
	appErr, ok := apperrors.As(err)
	if !ok {
		return f.p.Sprintf(keyErrInternal)
	}
	meta := appErr.Metadata
	switch appErr.Code {
	case apperrors.CodeInsufficientPoints:
		return f.p.Sprintf(keyErrInsufficient, appErr.Int(apperrors.MetaRequired), appErr.Int(apperrors.MetaAvailable), pointsName)
	case apperrors.CodeMemberNotFound:
		return f.p.Sprintf(keyErrMemberNotFound)
	case apperrors.CodeRewardNotFound:
		return f.p.Sprintf(keyErrRewardNotFound, meta[apperrors.MetaRewardID])
	case apperrors.CodeRewardInactive:
		return f.p.Sprintf(keyErrRewardInactive, meta[apperrors.MetaRewardID])
	case apperrors.CodeOutOfStock:
		return f.p.Sprintf(keyErrOutOfStock, meta[apperrors.MetaRewardID])
	case apperrors.CodePendingLimitExceeded:
		return f.p.Sprintf(keyErrPendingLimit, appErr.Int(apperrors.MetaLimit))
	case apperrors.CodeAlreadyOwned:
		return f.p.Sprintf(keyErrAlreadyOwned, meta[apperrors.MetaCommand])
	case apperrors.CodeCommandNotFound:
		return f.p.Sprintf(keyErrCommandNotFound, meta[apperrors.MetaCommand])
	case apperrors.CodeCommandUnavailable:
		return f.p.Sprintf(keyErrCommandUnavailable, meta[apperrors.MetaCommand])
	case apperrors.CodeAlreadyProcessed:
		return f.p.Sprintf(keyErrAlreadyProcessed, meta[apperrors.MetaStatus])
	case apperrors.CodeNotApproved:
		return f.p.Sprintf(keyErrNotApproved, meta[apperrors.MetaStatus])
	case apperrors.CodeRedemptionNotFound:
		return f.p.Sprintf(keyErrRedemptionNotFound, meta[apperrors.MetaRedemptionID])
	case apperrors.CodeInvalidArgument:
		return f.p.Sprintf(keyErrInvalid, appErr.Message)
	case apperrors.CodeContention:
		return f.p.Sprintf(keyErrContention)
	case apperrors.CodeUnresolvable:
		return f.p.Sprintf(keyErrUnresolvable)
	default:
		return f.p.Sprintf(keyErrInternal)
	}
}

// ShortID is the prefix of a record id staff type in commands.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
