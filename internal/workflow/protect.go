package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/journal"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
	"github.com/skyflexible-prog/deltamulti-modular/internal/telegram"
)

const missingProtectText = "❌ Missing order data. Please start over."

// protectStart lists open positions for a single-position stop-loss or
// take-profit order.
func (r *Router) protectStart(ctx context.Context, sess *session.Session, chatID, messageID int64, kind session.ProtectKind) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	sess.ResetWorkflows()

	emoji, title := protectEmoji(kind), protectTitle(kind)
	r.edit(ctx, chatID, messageID, "⏳ Fetching open positions...", nil)

	client, err := r.client(sess)
	var positions []delta.Position
	if err == nil {
		positions, err = client.Positions(ctx)
	}
	if err != nil {
		r.log.Error().Err(err).Msg("position fetch failed")
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ Failed to fetch positions.\nError: %s", err), backToMainKeyboard())
		return
	}
	if len(positions) == 0 {
		text := fmt.Sprintf("%s <b>Set %s</b>\n\nYou have no active positions.", emoji, title)
		r.edit(ctx, chatID, messageID, text, backToMainKeyboard())
		return
	}

	positionAction := actionStopPosition
	if kind == session.ProtectTarget {
		positionAction = actionTargetPosition
	}
	rows := make([][]telegram.InlineKeyboardButton, 0, len(positions)+1)
	for _, p := range positions {
		label := fmt.Sprintf("%s | Size: %d", p.Symbol(), abs(p.Size))
		data := EncodeCallback(positionAction, p.ProductID, p.Size, p.EntryPrice.Decimal)
		rows = append(rows, row(button(label, data)))
	}
	rows = append(rows, row(button("🔙 Back to Main Menu", actionMainMenu)))

	text := fmt.Sprintf("%s <b>Set %s</b>\n\nSelect a position to protect:", emoji, title)
	r.edit(ctx, chatID, messageID, text, &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// protectPosition pins the chosen position and asks how the prices will be
// entered.
func (r *Router) protectPosition(ctx context.Context, sess *session.Session, chatID, messageID int64, kind session.ProtectKind, params []string) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	if len(params) < 3 {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	productID, err := strconv.ParseInt(params[0], 10, 64)
	if err != nil {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	size, err := strconv.Atoi(params[1])
	if err != nil || size == 0 {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	entry, err := decimal.NewFromString(params[2])
	if err != nil {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}

	sess.Protective = &session.ProtectiveDraft{
		Kind:      kind,
		ProductID: productID,
		Size:      size,
		Entry:     entry,
	}

	methodAction, backAction := actionStopMethod, actionSetStopLoss
	if kind == session.ProtectTarget {
		methodAction, backAction = actionTargetMethod, actionSetTarget
	}
	kb := keyboard(
		row(button("📊 Percentage", EncodeCallback(methodAction, methodPercentage))),
		row(button("🔢 Numeral", EncodeCallback(methodAction, methodNumeral))),
		row(button("🔙 Back", backAction)),
	)

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Set %s</b>\n\n", protectEmoji(kind), protectTitle(kind))
	fmt.Fprintf(&b, "<b>Position:</b> %d\n", productID)
	fmt.Fprintf(&b, "<b>Size:</b> %d\n", size)
	fmt.Fprintf(&b, "<b>Entry Price:</b> %s\n\n", formatPrice(entry))
	b.WriteString("Select input method:")
	r.edit(ctx, chatID, messageID, b.String(), kb)
}

// protectMethod arms the first free-text prompt for the chosen input style.
func (r *Router) protectMethod(ctx context.Context, sess *session.Session, chatID, messageID int64, params []string) {
	draft := sess.Protective
	if draft == nil || len(params) == 0 {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	emoji, title := protectEmoji(draft.Kind), protectTitle(draft.Kind)

	switch params[0] {
	case methodPercentage:
		if draft.Kind == session.ProtectTarget {
			sess.State = session.AwaitingTargetTriggerPct{}
		} else {
			sess.State = session.AwaitingStopTriggerPct{}
		}
		text := fmt.Sprintf("%s <b>%s - Trigger Percentage</b>\n\n"+
			"Enter the trigger price percentage from entry price.\n"+
			"<i>Example: 5 (for 5%% from entry)</i>", emoji, title)
		r.edit(ctx, chatID, messageID, text, cancelKeyboard())
	case methodNumeral:
		if draft.Kind == session.ProtectTarget {
			sess.State = session.AwaitingTargetTriggerPrice{}
		} else {
			sess.State = session.AwaitingStopTriggerPrice{}
		}
		text := fmt.Sprintf("%s <b>%s - Trigger Price</b>\n\n"+
			"Enter the trigger price as a numerical value.\n"+
			"<i>Example: 95000</i>", emoji, title)
		r.edit(ctx, chatID, messageID, text, cancelKeyboard())
	default:
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
	}
}

func (r *Router) protectTriggerPctInput(ctx context.Context, sess *session.Session, chatID int64, text string) {
	draft := sess.Protective
	if draft == nil {
		sess.State = nil
		return
	}
	pct, err := session.ParsePercent(text)
	if err != nil {
		r.send(ctx, chatID, fmt.Sprintf("❌ %s\n\nPlease try again:", validationMessage(err)), nil)
		return
	}

	if draft.Kind == session.ProtectTarget {
		sess.State = session.AwaitingTargetLimitPct{TriggerPct: pct}
	} else {
		sess.State = session.AwaitingStopLimitPct{TriggerPct: pct}
	}
	prompt := fmt.Sprintf("%s <b>%s - Limit Percentage</b>\n\n"+
		"Trigger set at %s from entry.\n"+
		"Now enter the limit price percentage from entry price.\n"+
		"<i>Example: 5.5</i>", protectEmoji(draft.Kind), protectTitle(draft.Kind), formatPercent(pct))
	r.send(ctx, chatID, prompt, cancelKeyboard())
}

func (r *Router) protectLimitPctInput(ctx context.Context, sess *session.Session, chatID int64, text string, triggerPct decimal.Decimal) {
	draft := sess.Protective
	if draft == nil {
		sess.State = nil
		return
	}
	limitPct, err := session.ParsePercent(text)
	if err != nil {
		r.send(ctx, chatID, fmt.Sprintf("❌ %s\n\nPlease try again:", validationMessage(err)), nil)
		return
	}

	draft.StopPrice = session.ProtectPriceFromPercent(draft.Kind, draft.Entry, triggerPct, draft.Long())
	draft.LimitPrice = session.ProtectPriceFromPercent(draft.Kind, draft.Entry, limitPct, draft.Long())
	draft.Ready = true
	sess.State = nil

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Confirm %s Order</b>\n\n", protectEmoji(draft.Kind), protectTitle(draft.Kind))
	fmt.Fprintf(&b, "<b>Product ID:</b> %d\n", draft.ProductID)
	fmt.Fprintf(&b, "<b>Size:</b> %d\n", abs(draft.Size))
	fmt.Fprintf(&b, "<b>Entry Price:</b> %s\n\n", formatPrice(draft.Entry))
	fmt.Fprintf(&b, "<b>Trigger:</b> %s (%s)\n", formatPercent(triggerPct), formatPrice(draft.StopPrice))
	fmt.Fprintf(&b, "<b>Limit:</b> %s (%s)\n\n", formatPercent(limitPct), formatPrice(draft.LimitPrice))
	b.WriteString("Place this order?")
	r.send(ctx, chatID, b.String(), protectConfirmKeyboard(draft.Kind))
}

func (r *Router) protectTriggerPriceInput(ctx context.Context, sess *session.Session, chatID int64, text string) {
	draft := sess.Protective
	if draft == nil {
		sess.State = nil
		return
	}
	price, err := session.ParsePrice(text)
	if err != nil {
		r.send(ctx, chatID, fmt.Sprintf("❌ %s\n\nPlease try again:", validationMessage(err)), nil)
		return
	}

	if draft.Kind == session.ProtectTarget {
		sess.State = session.AwaitingTargetLimitPrice{TriggerPrice: price}
	} else {
		sess.State = session.AwaitingStopLimitPrice{TriggerPrice: price}
	}
	prompt := fmt.Sprintf("%s <b>%s - Limit Price</b>\n\n"+
		"Trigger price set at %s.\n"+
		"Now enter the limit price as a numerical value.\n"+
		"<i>Example: 94500</i>", protectEmoji(draft.Kind), protectTitle(draft.Kind), formatPrice(price))
	r.send(ctx, chatID, prompt, cancelKeyboard())
}

func (r *Router) protectLimitPriceInput(ctx context.Context, sess *session.Session, chatID int64, text string, triggerPrice decimal.Decimal) {
	draft := sess.Protective
	if draft == nil {
		sess.State = nil
		return
	}
	limitPrice, err := session.ParsePrice(text)
	if err != nil {
		r.send(ctx, chatID, fmt.Sprintf("❌ %s\n\nPlease try again:", validationMessage(err)), nil)
		return
	}

	draft.StopPrice = triggerPrice
	draft.LimitPrice = limitPrice
	draft.Ready = true
	sess.State = nil

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Confirm %s Order</b>\n\n", protectEmoji(draft.Kind), protectTitle(draft.Kind))
	fmt.Fprintf(&b, "<b>Product ID:</b> %d\n", draft.ProductID)
	fmt.Fprintf(&b, "<b>Size:</b> %d\n", abs(draft.Size))
	fmt.Fprintf(&b, "<b>Entry Price:</b> %s\n\n", formatPrice(draft.Entry))
	fmt.Fprintf(&b, "<b>Trigger Price:</b> %s\n", formatPrice(draft.StopPrice))
	fmt.Fprintf(&b, "<b>Limit Price:</b> %s\n\n", formatPrice(draft.LimitPrice))
	b.WriteString("Place this order?")
	r.send(ctx, chatID, b.String(), protectConfirmKeyboard(draft.Kind))
}

func protectConfirmKeyboard(kind session.ProtectKind) *telegram.InlineKeyboardMarkup {
	confirm := actionConfirmStop
	if kind == session.ProtectTarget {
		confirm = actionConfirmTarget
	}
	return keyboard(
		row(button("✅ Confirm", confirm)),
		row(button("❌ Cancel", actionMainMenu)),
	)
}

// confirmProtect places the reduce-only stop order for the drafted position.
func (r *Router) confirmProtect(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	draft := sess.Protective
	if draft == nil || !draft.Ready {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	emoji, title := protectEmoji(draft.Kind), protectTitle(draft.Kind)

	r.edit(ctx, chatID, messageID, fmt.Sprintf("%s <b>Placing %s Order...</b>\n\nPlease wait...", emoji, title), nil)

	side := delta.SideForPosition(draft.Size)
	client, err := r.client(sess)
	var order delta.Order
	if err == nil {
		if draft.Kind == session.ProtectTarget {
			order, err = client.PlaceTakeProfitOrder(ctx, draft.ProductID, side, abs(draft.Size), draft.StopPrice, draft.LimitPrice, true)
		} else {
			order, err = client.PlaceStopLossOrder(ctx, draft.ProductID, side, abs(draft.Size), draft.StopPrice, draft.LimitPrice, true)
		}
	}
	if err != nil {
		r.log.Error().Err(err).Int64("product_id", draft.ProductID).Str("kind", string(draft.Kind)).Msg("protective order failed")
		text := fmt.Sprintf("❌ Failed to place %s order.\nError: %s", strings.ToLower(title), err)
		r.edit(ctx, chatID, messageID, text, backToMainKeyboard())
		return
	}

	event := "stop_loss_placed"
	if draft.Kind == session.ProtectTarget {
		event = "take_profit_placed"
	}
	r.record(journal.Event{
		Event:        event,
		UserID:       sess.UserID,
		Account:      sess.Account.Name,
		ProductID:    int(draft.ProductID),
		OrderID:      int(order.ID),
		Side:         string(side),
		Size:         abs(draft.Size),
		EntryPrice:   draft.Entry.String(),
		TriggerPrice: draft.StopPrice.String(),
		LimitPrice:   draft.LimitPrice.String(),
	})
	r.log.Info().
		Int64("user_id", sess.UserID).
		Int64("order_id", order.ID).
		Int64("product_id", draft.ProductID).
		Str("kind", string(draft.Kind)).
		Msg("protective order placed")

	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>%s Order Placed!</b>\n\n", title)
	fmt.Fprintf(&b, "<b>Order ID:</b> %d\n", order.ID)
	fmt.Fprintf(&b, "<b>Product ID:</b> %d\n", draft.ProductID)
	fmt.Fprintf(&b, "<b>Size:</b> %d\n", abs(draft.Size))
	fmt.Fprintf(&b, "<b>Side:</b> %s\n", strings.ToUpper(string(side)))
	fmt.Fprintf(&b, "<b>Trigger Price:</b> %s\n", formatPrice(draft.StopPrice))
	fmt.Fprintf(&b, "<b>Limit Price:</b> %s\n\n", formatPrice(draft.LimitPrice))
	fmt.Fprintf(&b, "✅ Your %s order is now active.", strings.ToLower(title))

	r.edit(ctx, chatID, messageID, b.String(), backToMainKeyboard())
	sess.Protective = nil
}
