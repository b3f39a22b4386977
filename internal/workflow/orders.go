package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/journal"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
	"github.com/skyflexible-prog/deltamulti-modular/internal/telegram"
)

// Telegram button labels get unwieldy past this many characters of symbol.
const cancelLabelSymbolLen = 10

// showOrders lists open limit orders and pending stop orders with per-order
// cancel buttons.
func (r *Router) showOrders(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}

	r.edit(ctx, chatID, messageID, "⏳ Fetching orders...", nil)

	client, err := r.client(sess)
	var open, pending []delta.Order
	if err == nil {
		open, err = client.Orders(ctx, delta.OrderStateOpen, 0)
	}
	if err == nil {
		pending, err = client.Orders(ctx, delta.OrderStatePending, 0)
	}
	if err != nil {
		r.log.Error().Err(err).Msg("order fetch failed")
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ Failed to fetch orders.\nError: %s", err), backToMainKeyboard())
		return
	}

	if len(open) == 0 && len(pending) == 0 {
		r.edit(ctx, chatID, messageID, "⚠️ <b>Orders</b>\n\nYou have no open or pending orders.", backToMainKeyboard())
		return
	}

	var b strings.Builder
	b.WriteString("⚠️ <b>Your Orders</b>\n\n")
	if len(open) > 0 {
		fmt.Fprintf(&b, "<b>📋 Open Orders (%d):</b>\n\n", len(open))
		for _, o := range open {
			b.WriteString(formatOrder(o))
			fmt.Fprintf(&b, "\nOrder ID: %d\n\n", o.ID)
		}
	}
	if len(pending) > 0 {
		fmt.Fprintf(&b, "<b>⏳ Pending Stop Orders (%d):</b>\n\n", len(pending))
		for _, o := range pending {
			b.WriteString(formatOrder(o))
			fmt.Fprintf(&b, "\nOrder ID: %d\n\n", o.ID)
		}
	}

	all := make([]delta.Order, 0, len(open)+len(pending))
	all = append(all, open...)
	all = append(all, pending...)

	// Cancel buttons for the first few orders only; the rest go through
	// cancel-all or a refreshed view.
	limit := len(all)
	if limit > 5 {
		limit = 5
	}
	rows := make([][]telegram.InlineKeyboardButton, 0, limit+2)
	for _, o := range all[:limit] {
		symbol := o.Symbol()
		if len(symbol) > cancelLabelSymbolLen {
			symbol = symbol[:cancelLabelSymbolLen]
		}
		label := fmt.Sprintf("❌ Cancel %s", symbol)
		rows = append(rows, row(button(label, EncodeCallback(actionCancelOrder, o.ID))))
	}
	rows = append(rows, row(button("🗑️ Cancel All Orders", actionCancelAllOrders)))
	rows = append(rows, row(button("🔙 Back to Main Menu", actionMainMenu)))

	r.edit(ctx, chatID, messageID, b.String(), &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (r *Router) cancelOrder(ctx context.Context, sess *session.Session, chatID, messageID int64, params []string) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	if len(params) == 0 {
		r.edit(ctx, chatID, messageID, "❌ Missing order ID.", backToMainKeyboard())
		return
	}
	orderID, err := strconv.ParseInt(params[0], 10, 64)
	if err != nil {
		r.edit(ctx, chatID, messageID, "❌ Missing order ID.", backToMainKeyboard())
		return
	}

	r.edit(ctx, chatID, messageID, fmt.Sprintf("⏳ Cancelling order %d...", orderID), nil)

	client, err := r.client(sess)
	if err == nil {
		err = client.CancelOrder(ctx, orderID)
	}
	if err != nil {
		r.log.Error().Err(err).Int64("order_id", orderID).Msg("order cancel failed")
		text := fmt.Sprintf("❌ Failed to cancel order <code>%d</code>.\nError: %s", orderID, err)
		r.edit(ctx, chatID, messageID, text, ordersAfterCancelKeyboard())
		return
	}

	r.record(journal.Event{
		Event:   "order_cancelled",
		UserID:  sess.UserID,
		Account: sess.Account.Name,
		OrderID: int(orderID),
	})
	r.log.Info().Int64("user_id", sess.UserID).Int64("order_id", orderID).Msg("order cancelled")

	text := fmt.Sprintf("✅ <b>Order Cancelled</b>\n\nOrder ID <code>%d</code> has been cancelled successfully.", orderID)
	r.edit(ctx, chatID, messageID, text, ordersAfterCancelKeyboard())
}

func (r *Router) cancelAllOrders(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}

	r.edit(ctx, chatID, messageID, "⏳ Cancelling all orders...", nil)

	client, err := r.client(sess)
	if err == nil {
		err = client.CancelAllOrders(ctx, 0)
	}
	if err != nil {
		r.log.Error().Err(err).Msg("cancel all failed")
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ Failed to cancel all orders.\nError: %s", err), ordersAfterCancelKeyboard())
		return
	}

	r.record(journal.Event{
		Event:   "orders_cancelled_all",
		UserID:  sess.UserID,
		Account: sess.Account.Name,
	})
	r.log.Info().Int64("user_id", sess.UserID).Msg("all orders cancelled")

	r.edit(ctx, chatID, messageID, "✅ <b>All Orders Cancelled</b>\n\nEvery open and pending order has been cancelled.", ordersAfterCancelKeyboard())
}

func ordersAfterCancelKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(button("📋 View Orders", actionShowOrders)),
		row(button("🔙 Back to Main Menu", actionMainMenu)),
	)
}
