package messages

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys.
const (
	keyHelp            = "help"
	keyBalance         = "balance"
	keyPointsAdded     = "points.added"
	keyPointsRemoved   = "points.removed"
	keyPointsSet       = "points.set"
	keyRedeemRequested = "redeem.requested"
	keyRedeemApproved  = "redeem.approved"
	keyRedeemRejected  = "redeem.rejected"
	keyRedeemDelivered = "redeem.delivered"
	keyPurchaseDone    = "purchase.done"
	keyWarnAdded       = "warn.added"
	keyWarnKicked      = "warn.kicked"
	keyWarnReset       = "warn.reset"
	keyRewardsHeader   = "rewards.header"
	keyRewardsEmpty    = "rewards.empty"
	keyRewardLine      = "rewards.line"
	keyStockUnlimited  = "stock.unlimited"
	keyStockLeft       = "stock.left"
	keyShopHeader      = "shop.header"
	keyShopEmpty       = "shop.empty"
	keyShopLine        = "shop.line"
	keyPendingHeader   = "pending.header"
	keyPendingEmpty    = "pending.empty"
	keyCardTitle       = "card.title"
	keyCardMember      = "card.member"
	keyCardCost        = "card.cost"
	keyCardNotes       = "card.notes"
	keyCardActions     = "card.actions"
	keyStaffOnly       = "staff.only"
	keyUsage           = "usage"
	keyUnknownCommand  = "command.unknown"

	keyErrInsufficient       = "err.insufficient"
	keyErrMemberNotFound     = "err.member_not_found"
	keyErrRewardNotFound     = "err.reward_not_found"
	keyErrRewardInactive     = "err.reward_inactive"
	keyErrOutOfStock         = "err.out_of_stock"
	keyErrPendingLimit       = "err.pending_limit"
	keyErrAlreadyOwned       = "err.already_owned"
	keyErrCommandNotFound    = "err.command_not_found"
	keyErrCommandUnavailable = "err.command_unavailable"
	keyErrAlreadyProcessed   = "err.already_processed"
	keyErrNotApproved        = "err.not_approved"
	keyErrRedemptionNotFound = "err.redemption_not_found"
	keyErrInvalid            = "err.invalid"
	keyErrContention         = "err.contention"
	keyErrUnresolvable       = "err.unresolvable"
	keyErrInternal           = "err.internal"
)

type entry struct {
	key string
	en  string
	es  string
}

var entries = []entry{
	{keyHelp,
		"Commands:\n/points - Your balance\n/rewards - Reward catalog\n/redeem <reward> [notes] - Request a reward\n/shop - Premium commands\n/buy <command> - Buy a premium command\n\nStaff:\n/pending - Redemptions waiting for review\n/approve <id>, /reject <id> [reason], /delivered <id> [notes]\n/addpoints <n>, /setpoints <n>, /resetpoints (reply to a member)\n/warn [reason], /unwarn (reply to a member)",
		"Comandos:\n/points - Tu saldo\n/rewards - Catálogo de premios\n/redeem <premio> [notas] - Solicitar un premio\n/shop - Comandos premium\n/buy <comando> - Comprar un comando premium\n\nAdministración:\n/pending - Canjes por revisar\n/approve <id>, /reject <id> [motivo], /delivered <id> [notas]\n/addpoints <n>, /setpoints <n>, /resetpoints (respondiendo a un miembro)\n/warn [motivo], /unwarn (respondiendo a un miembro)"},
	{keyBalance, "%[1]s has %[2]d %[3]s.", "%[1]s tiene %[2]d %[3]s."},
	{keyPointsAdded, "Added %[1]d %[2]s to %[3]s. Balance: %[4]d.", "Se sumaron %[1]d %[2]s a %[3]s. Saldo: %[4]d."},
	{keyPointsRemoved, "Removed %[1]d %[2]s from %[3]s. Balance: %[4]d.", "Se restaron %[1]d %[2]s a %[3]s. Saldo: %[4]d."},
	{keyPointsSet, "%[1]s now has %[2]d %[3]s.", "%[1]s ahora tiene %[2]d %[3]s."},
	{keyRedeemRequested, "✅ Redemption %[1]s filed for %[2]s (%[3]d %[4]s). Staff will review it.", "✅ Canje %[1]s registrado para %[2]s (%[3]d %[4]s). El staff lo revisará."},
	{keyRedeemApproved, "✅ Redemption %[1]s approved: %[2]s. %[3]d %[4]s deducted, balance %[5]d.", "✅ Canje %[1]s aprobado: %[2]s. Se descontaron %[3]d %[4]s, saldo %[5]d."},
	{keyRedeemRejected, "❌ Redemption %[1]s rejected: %[2]s", "❌ Canje %[1]s rechazado: %[2]s"},
	{keyRedeemDelivered, "📦 Redemption %[1]s delivered. Enjoy your %[2]s!", "📦 Canje %[1]s entregado. ¡Disfruta tu %[2]s!"},
	{keyPurchaseDone, "⭐ You now own /%[1]s. %[2]d %[3]s spent, balance %[4]d.", "⭐ Ahora tienes /%[1]s. Gastaste %[2]d %[3]s, saldo %[4]d."},
	{keyWarnAdded, "⚠️ %[1]s has been warned (%[2]d/%[3]d).", "⚠️ %[1]s recibió una advertencia (%[2]d/%[3]d)."},
	{keyWarnKicked, "🚫 %[1]s reached %[2]d warnings and was removed.", "🚫 %[1]s llegó a %[2]d advertencias y fue expulsado."},
	{keyWarnReset, "Warnings for %[1]s reset (was %[2]d).", "Advertencias de %[1]s reiniciadas (tenía %[2]d)."},
	{keyRewardsHeader, "🎁 REWARDS (%[1]d)", "🎁 PREMIOS (%[1]d)"},
	{keyRewardsEmpty, "No rewards available yet.", "Todavía no hay premios."},
	{keyRewardLine, "━━━ %[1]s • %[2]s\n%[3]d %[4]s • %[5]s\n→ /redeem %[1]s", "━━━ %[1]s • %[2]s\n%[3]d %[4]s • %[5]s\n→ /redeem %[1]s"},
	{keyStockUnlimited, "unlimited", "ilimitado"},
	{keyStockLeft, "%[1]d left", "quedan %[1]d"},
	{keyShopHeader, "⭐ PREMIUM COMMANDS (%[1]d)", "⭐ COMANDOS PREMIUM (%[1]d)"},
	{keyShopEmpty, "No premium commands for sale.", "No hay comandos premium a la venta."},
	{keyShopLine, "━━━ /%[1]s • %[2]d %[3]s\n%[4]s\n→ /buy %[1]s", "━━━ /%[1]s • %[2]d %[3]s\n%[4]s\n→ /buy %[1]s"},
	{keyPendingHeader, "📋 PENDING REDEMPTIONS (%[1]d)", "📋 CANJES PENDIENTES (%[1]d)"},
	{keyPendingEmpty, "No redemptions waiting for review.", "No hay canjes por revisar."},
	{keyCardTitle, "📋 REDEMPTION %[1]s • %[2]s", "📋 CANJE %[1]s • %[2]s"},
	{keyCardMember, "👤 %[1]s", "👤 %[1]s"},
	{keyCardCost, "💰 %[1]d %[2]s", "💰 %[1]d %[2]s"},
	{keyCardNotes, "📝 %[1]s", "📝 %[1]s"},
	{keyCardActions, "/approve %[1]s • /reject %[1]s", "/approve %[1]s • /reject %[1]s"},
	{keyStaffOnly, "Only group admins can do that.", "Solo los administradores pueden hacer eso."},
	{keyUsage, "Usage: %[1]s", "Uso: %[1]s"},
	{keyUnknownCommand, "Unknown command. Use /help to see available commands.", "Comando desconocido. Usa /help para ver los comandos."},

	{keyErrInsufficient, "Not enough %[3]s: %[1]d needed, %[2]d available.", "No alcanzan los %[3]s: se necesitan %[1]d, hay %[2]d."},
	{keyErrMemberNotFound, "That member is not registered yet.", "Ese miembro todavía no está registrado."},
	{keyErrRewardNotFound, "Reward %[1]s does not exist.", "El premio %[1]s no existe."},
	{keyErrRewardInactive, "Reward %[1]s is not available right now.", "El premio %[1]s no está disponible."},
	{keyErrOutOfStock, "Reward %[1]s is out of stock.", "El premio %[1]s está agotado."},
	{keyErrPendingLimit, "You already have %[1]d pending redemptions.", "Ya tienes %[1]d canjes pendientes."},
	{keyErrAlreadyOwned, "You already own /%[1]s.", "Ya tienes /%[1]s."},
	{keyErrCommandNotFound, "There is no premium command /%[1]s.", "No existe el comando premium /%[1]s."},
	{keyErrCommandUnavailable, "/%[1]s is not for sale right now.", "/%[1]s no está a la venta."},
	{keyErrAlreadyProcessed, "That redemption is already %[1]s.", "Ese canje ya está %[1]s."},
	{keyErrNotApproved, "That redemption is %[1]s, not approved.", "Ese canje está %[1]s, no aprobado."},
	{keyErrRedemptionNotFound, "Redemption %[1]s not found.", "No se encontró el canje %[1]s."},
	{keyErrInvalid, "Invalid request: %[1]s.", "Solicitud inválida: %[1]s."},
	{keyErrContention, "The bot is busy, please try again.", "El bot está ocupado, intenta de nuevo."},
	{keyErrUnresolvable, "I could not identify that member.", "No pude identificar a ese miembro."},
	{keyErrInternal, "Something went wrong. Please try again later.", "Algo salió mal. Intenta más tarde."},
}

func init() {
	for _, e := range entries {
		if err := message.SetString(language.English, e.key, e.en); err != nil {
			panic(err)
		}
		if err := message.SetString(language.Spanish, e.key, e.es); err != nil {
			panic(err)
		}
	}
}
