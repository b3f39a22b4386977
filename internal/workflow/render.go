package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skyflexible-prog/deltamulti-modular/internal/config"
	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
	"github.com/skyflexible-prog/deltamulti-modular/internal/telegram"
)

const timeLayout = "02 Jan 2006 15:04"

// formatPrice renders a price with thousands separators and two decimals,
// e.g. 95000.5 -> "95,000.50".
func formatPrice(v decimal.Decimal) string {
	s := v.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(intPart[i])
	}
	b.WriteString(frac)
	return b.String()
}

func formatPercent(v decimal.Decimal) string {
	return v.StringFixed(2) + "%"
}

// formatPnL prefixes gains with a check mark and losses with a cross so the
// sign is readable at a glance.
func formatPnL(v decimal.Decimal) string {
	switch v.Sign() {
	case 1:
		return "✅ +" + formatPrice(v)
	case -1:
		return "❌ " + formatPrice(v)
	}
	return formatPrice(v)
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func positionSide(size int) string {
	if size > 0 {
		return "LONG"
	}
	return "SHORT"
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func formatPosition(p delta.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s</b>\n", p.Symbol())
	fmt.Fprintf(&b, "Side: %s | Size: %d\n", positionSide(p.Size), abs(p.Size))
	fmt.Fprintf(&b, "Entry: %s | Mark: %s\n", formatPrice(p.EntryPrice.Decimal), formatPrice(p.MarkPrice.Decimal))
	fmt.Fprintf(&b, "PnL: %s", formatPnL(p.UnrealizedPnL.Decimal))
	return b.String()
}

func formatOrder(o delta.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", o.Symbol())
	fmt.Fprintf(&b, "%s %d | Type: %s\n", strings.ToUpper(string(o.Side)), o.Size, o.OrderType)
	if o.StopOrderType != "" {
		fmt.Fprintf(&b, "Stop Type: %s\n", o.StopOrderType)
		if !o.StopPrice.IsZero() {
			fmt.Fprintf(&b, "Trigger: %s\n", formatPrice(o.StopPrice.Decimal))
		}
	}
	if !o.LimitPrice.IsZero() {
		fmt.Fprintf(&b, "Limit: %s", formatPrice(o.LimitPrice.Decimal))
	}
	return b.String()
}

func formatAccountSummary(name, description string, s delta.AccountSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 <b>%s</b>\n", name)
	fmt.Fprintf(&b, "<i>%s</i>\n\n", description)
	b.WriteString("<b>Account Balance:</b>\n")
	fmt.Fprintf(&b, "Available: %s\n", formatPrice(s.Available))
	fmt.Fprintf(&b, "Margin Used: %s\n", formatPrice(s.MarginUsed))
	fmt.Fprintf(&b, "Total Equity: %s\n", formatPrice(s.Equity))
	fmt.Fprintf(&b, "Unrealized PnL: %s", formatPnL(s.UnrealizedPnL))
	return b.String()
}

func formatStraddleDetails(asset string, expiry time.Time, spot decimal.Decimal, st delta.Straddle) string {
	total := st.Call.MarkPrice.Add(st.Put.MarkPrice)

	var b strings.Builder
	b.WriteString("📊 <b>ATM Straddle Details</b>\n\n")
	fmt.Fprintf(&b, "<b>Underlying:</b> %s\n", asset)
	fmt.Fprintf(&b, "<b>Expiry:</b> %s\n", formatTime(expiry))
	fmt.Fprintf(&b, "<b>Spot Price:</b> %s\n", formatPrice(spot))
	fmt.Fprintf(&b, "<b>ATM Strike:</b> %s\n\n", formatPrice(st.Strike))

	b.WriteString("📞 <b>Call Option (CE):</b>\n")
	fmt.Fprintf(&b, "Symbol: %s\n", st.Call.Symbol)
	fmt.Fprintf(&b, "Mark: %s\n", formatPrice(st.Call.MarkPrice))
	fmt.Fprintf(&b, "Bid: %s | Ask: %s\n\n", formatPrice(st.Call.BestBid), formatPrice(st.Call.BestAsk))

	b.WriteString("📝 <b>Put Option (PE):</b>\n")
	fmt.Fprintf(&b, "Symbol: %s\n", st.Put.Symbol)
	fmt.Fprintf(&b, "Mark: %s\n", formatPrice(st.Put.MarkPrice))
	fmt.Fprintf(&b, "Bid: %s | Ask: %s\n\n", formatPrice(st.Put.BestBid), formatPrice(st.Put.BestAsk))

	b.WriteString("<b>Cost per Lot:</b>\n")
	fmt.Fprintf(&b, "CE: %s | PE: %s\n", formatPrice(st.Call.MarkPrice), formatPrice(st.Put.MarkPrice))
	fmt.Fprintf(&b, "<b>Total: %s</b>", formatPrice(total))
	return b.String()
}

func protectTitle(kind session.ProtectKind) string {
	if kind == session.ProtectTarget {
		return "Target"
	}
	return "Stop-Loss"
}

func protectEmoji(kind session.ProtectKind) string {
	if kind == session.ProtectTarget {
		return "🎯"
	}
	return "🛡️"
}

// Keyboard construction.

func button(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

func row(buttons ...telegram.InlineKeyboardButton) []telegram.InlineKeyboardButton {
	return buttons
}

func keyboard(rows ...[]telegram.InlineKeyboardButton) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func backToMainKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(row(button("🔙 Back to Main Menu", actionMainMenu)))
}

func cancelKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(row(button("❌ Cancel", actionMainMenu)))
}

func mainMenuKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(button("📊 Account Details", actionAccountDetails)),
		row(button("📅 Expiry Selection", actionExpirySelection)),
		row(button("📊 Show Positions", actionShowPositions)),
		row(button("🛡️ Set Stop-Loss", actionSetStopLoss)),
		row(button("🎯 Set Targets", actionSetTarget)),
		row(button("🛡️ Multi-Strike Stop-Loss", actionMultiStop)),
		row(button("🎯 Multi-Strike Targets", actionMultiTarget)),
		row(button("⚠️ Show Orders", actionShowOrders)),
		row(button("🔄 Change Account", actionBackToAccounts)),
	)
}

func accountListKeyboard(accounts []config.Account) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, row(button("🔑 "+a.Name, EncodeCallback(actionSelectAccount, a.Index))))
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
