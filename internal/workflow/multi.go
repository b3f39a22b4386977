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

// multiStart loads the open positions into a batch draft so the user can
// toggle which ones get a shared protective order.
func (r *Router) multiStart(ctx context.Context, sess *session.Session, chatID, messageID int64, kind session.ProtectKind) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	sess.ResetWorkflows()

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
		text := fmt.Sprintf("%s <b>Multi-Strike %s</b>\n\nYou have no active positions.", protectEmoji(kind), protectTitle(kind))
		r.edit(ctx, chatID, messageID, text, backToMainKeyboard())
		return
	}

	legs := make([]session.BatchLeg, 0, len(positions))
	for _, p := range positions {
		legs = append(legs, session.BatchLeg{
			ProductID: p.ProductID,
			Symbol:    p.Symbol(),
			Size:      p.Size,
			Entry:     p.EntryPrice.Decimal,
		})
	}
	sess.Batch = &session.BatchDraft{Kind: kind, Legs: legs}

	text, kb := multiSelectionView(sess.Batch, "")
	r.edit(ctx, chatID, messageID, text, kb)
}

// multiSelectionView renders the toggle list. notice, when set, is shown
// above the list (for example after pressing Done with nothing selected).
func multiSelectionView(draft *session.BatchDraft, notice string) (string, *telegram.InlineKeyboardMarkup) {
	toggleAction, doneAction := actionMultiStopToggle, actionMultiStopDone
	if draft.Kind == session.ProtectTarget {
		toggleAction, doneAction = actionMultiTargetToggle, actionMultiTargetDone
	}

	rows := make([][]telegram.InlineKeyboardButton, 0, len(draft.Legs)+2)
	for _, leg := range draft.Legs {
		box := "☐"
		if leg.Selected {
			box = "☑"
		}
		label := fmt.Sprintf("%s %s | Size: %d", box, leg.Symbol, abs(leg.Size))
		rows = append(rows, row(button(label, EncodeCallback(toggleAction, leg.ProductID))))
	}
	rows = append(rows, row(button("✅ Done", doneAction)))
	rows = append(rows, row(button("🔙 Back to Main Menu", actionMainMenu)))

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Multi-Strike %s</b>\n\n", protectEmoji(draft.Kind), protectTitle(draft.Kind))
	if notice != "" {
		b.WriteString(notice + "\n\n")
	}
	b.WriteString("Toggle the positions to protect, then press Done.\n\n")
	fmt.Fprintf(&b, "<b>Selected:</b> %d of %d", len(draft.SelectedLegs()), len(draft.Legs))
	return b.String(), &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (r *Router) multiToggle(ctx context.Context, sess *session.Session, chatID, messageID int64, params []string) {
	draft := sess.Batch
	if draft == nil || len(params) == 0 {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	productID, err := strconv.ParseInt(params[0], 10, 64)
	if err != nil || !draft.Toggle(productID) {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	text, kb := multiSelectionView(draft, "")
	r.edit(ctx, chatID, messageID, text, kb)
}

// multiDone moves from selection to the shared trigger percentage prompt.
func (r *Router) multiDone(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	draft := sess.Batch
	if draft == nil {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	selected := draft.SelectedLegs()
	if len(selected) == 0 {
		text, kb := multiSelectionView(draft, "❌ Select at least one position first.")
		r.edit(ctx, chatID, messageID, text, kb)
		return
	}

	if draft.Kind == session.ProtectTarget {
		sess.State = session.AwaitingMultiTargetTriggerPct{}
	} else {
		sess.State = session.AwaitingMultiStopTriggerPct{}
	}
	text := fmt.Sprintf("%s <b>Multi-Strike %s - Trigger Percentage</b>\n\n"+
		"%d positions selected.\n"+
		"Enter the trigger price percentage from entry price.\n"+
		"<i>Example: 5 (applied to every selected position)</i>",
		protectEmoji(draft.Kind), protectTitle(draft.Kind), len(selected))
	r.edit(ctx, chatID, messageID, text, cancelKeyboard())
}

func (r *Router) multiTriggerPctInput(ctx context.Context, sess *session.Session, chatID int64, text string) {
	draft := sess.Batch
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
		sess.State = session.AwaitingMultiTargetLimitPct{TriggerPct: pct}
	} else {
		sess.State = session.AwaitingMultiStopLimitPct{TriggerPct: pct}
	}
	prompt := fmt.Sprintf("%s <b>Multi-Strike %s - Limit Percentage</b>\n\n"+
		"Trigger set at %s from entry.\n"+
		"Now enter the limit price percentage from entry price.\n"+
		"<i>Example: 5.5</i>", protectEmoji(draft.Kind), protectTitle(draft.Kind), formatPercent(pct))
	r.send(ctx, chatID, prompt, cancelKeyboard())
}

// multiLimitPctInput derives every selected leg's prices from its own entry
// and shows the batch confirmation.
func (r *Router) multiLimitPctInput(ctx context.Context, sess *session.Session, chatID int64, text string, triggerPct decimal.Decimal) {
	draft := sess.Batch
	if draft == nil {
		sess.State = nil
		return
	}
	limitPct, err := session.ParsePercent(text)
	if err != nil {
		r.send(ctx, chatID, fmt.Sprintf("❌ %s\n\nPlease try again:", validationMessage(err)), nil)
		return
	}

	draft.TriggerPct = triggerPct
	draft.LimitPct = limitPct
	selected := draft.SelectedLegs()
	for _, leg := range selected {
		leg.StopPrice = session.ProtectPriceFromPercent(draft.Kind, leg.Entry, triggerPct, leg.Long())
		leg.LimitPrice = session.ProtectPriceFromPercent(draft.Kind, leg.Entry, limitPct, leg.Long())
	}
	draft.Ready = true
	sess.State = nil

	confirmAction := actionConfirmMultiStop
	if draft.Kind == session.ProtectTarget {
		confirmAction = actionConfirmMultiTarget
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Confirm Multi-Strike %s</b>\n\n", protectEmoji(draft.Kind), protectTitle(draft.Kind))
	fmt.Fprintf(&b, "<b>Trigger:</b> %s from entry\n", formatPercent(triggerPct))
	fmt.Fprintf(&b, "<b>Limit:</b> %s from entry\n\n", formatPercent(limitPct))
	for _, leg := range selected {
		fmt.Fprintf(&b, "<b>%s</b>\n", leg.Symbol)
		fmt.Fprintf(&b, "Size: %d | Entry: %s\n", abs(leg.Size), formatPrice(leg.Entry))
		fmt.Fprintf(&b, "Trigger: %s | Limit: %s\n\n", formatPrice(leg.StopPrice), formatPrice(leg.LimitPrice))
	}
	fmt.Fprintf(&b, "Place %d orders?", len(selected))

	r.send(ctx, chatID, b.String(), keyboard(
		row(button("✅ Confirm", confirmAction)),
		row(button("❌ Cancel", actionMainMenu)),
	))
}

// confirmMulti submits one reduce-only order per selected leg. Legs fail
// independently; the summary names each outcome.
func (r *Router) confirmMulti(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	draft := sess.Batch
	if draft == nil || !draft.Ready {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	selected := draft.SelectedLegs()
	if len(selected) == 0 {
		r.edit(ctx, chatID, messageID, missingProtectText, nil)
		return
	}
	emoji, title := protectEmoji(draft.Kind), protectTitle(draft.Kind)

	r.edit(ctx, chatID, messageID, fmt.Sprintf("%s <b>Placing Multi-Strike %s Orders...</b>\n\nPlease wait...", emoji, title), nil)

	client, err := r.client(sess)
	if err != nil {
		r.log.Error().Err(err).Msg("exchange client unavailable")
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ Failed to place orders.\nError: %s", err), backToMainKeyboard())
		return
	}

	items := make([]delta.BatchStopItem, 0, len(selected))
	legByProduct := make(map[int64]*session.BatchLeg, len(selected))
	for _, leg := range selected {
		legByProduct[leg.ProductID] = leg
		items = append(items, delta.BatchStopItem{
			ProductID:  leg.ProductID,
			Side:       delta.SideForPosition(leg.Size),
			Size:       abs(leg.Size),
			StopPrice:  leg.StopPrice,
			LimitPrice: leg.LimitPrice,
		})
	}
	orderKind := delta.StopLoss
	eventName := "batch_stop_loss_placed"
	if draft.Kind == session.ProtectTarget {
		orderKind = delta.TakeProfit
		eventName = "batch_take_profit_placed"
	}

	outcomes := client.PlaceBatchStopOrders(ctx, orderKind, items)
	placed := outcomes.Succeeded()
	r.log.Info().
		Int64("user_id", sess.UserID).
		Str("kind", string(draft.Kind)).
		Int("placed", placed).
		Int("failed", len(outcomes)-placed).
		Msg("batch protective orders submitted")

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Multi-Strike %s Results</b>\n\n", emoji, title)
	for _, o := range outcomes {
		leg := legByProduct[o.ProductID]
		if o.Err != nil {
			fmt.Fprintf(&b, "❌ <b>%s</b>: %s\n", leg.Symbol, o.Err)
			continue
		}
		fmt.Fprintf(&b, "✅ <b>%s</b>: Order %d @ %s\n", leg.Symbol, o.Order.ID, formatPrice(leg.StopPrice))
		r.record(journal.Event{
			Event:        eventName,
			UserID:       sess.UserID,
			Account:      sess.Account.Name,
			ProductID:    int(o.ProductID),
			Symbol:       leg.Symbol,
			OrderID:      int(o.Order.ID),
			Side:         string(o.Order.Side),
			Size:         abs(leg.Size),
			EntryPrice:   leg.Entry.String(),
			TriggerPrice: leg.StopPrice.String(),
			LimitPrice:   leg.LimitPrice.String(),
		})
	}
	fmt.Fprintf(&b, "\n<b>%d of %d orders placed.</b>", placed, len(outcomes))
	if placed < len(outcomes) {
		b.WriteString("\n⚠️ Failed legs remain unprotected. Retry them individually.")
	}

	r.edit(ctx, chatID, messageID, b.String(), backToMainKeyboard())
	sess.Batch = nil
}
