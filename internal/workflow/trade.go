package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/journal"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
	"github.com/skyflexible-prog/deltamulti-modular/internal/telegram"
)

const missingTradeText = "❌ Missing trade data. Please start over."

var predefinedLots = []int{1, 2, 5, 10}

// expirySelection opens the straddle workflow by asking for the underlying.
func (r *Router) expirySelection(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	sess.ResetWorkflows()

	kb := keyboard(
		row(button("₿ BTCUSD", EncodeCallback(actionSelectAsset, delta.AssetBTC))),
		row(button("Ξ ETHUSD", EncodeCallback(actionSelectAsset, delta.AssetETH))),
		row(button("🔙 Back to Main Menu", actionMainMenu)),
	)
	r.edit(ctx, chatID, messageID, "📊 <b>Select Underlying Asset:</b>\n\nChoose the asset for options trading:", kb)
}

// selectAsset lists the asset's live option expiries, nearest first.
func (r *Router) selectAsset(ctx context.Context, sess *session.Session, chatID, messageID int64, params []string) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	if len(params) == 0 {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}
	asset := params[0]
	sess.Straddle = &session.StraddleDraft{Asset: asset}

	r.edit(ctx, chatID, messageID, fmt.Sprintf("⏳ Fetching available expiries for <b>%s</b>...", asset), nil)

	backKb := keyboard(row(button("🔙 Back", actionExpirySelection)))
	client, err := r.client(sess)
	var expiries []time.Time
	if err == nil {
		expiries, err = client.Expiries(ctx, asset)
	}
	if err != nil {
		r.log.Error().Err(err).Str("asset", asset).Msg("expiry fetch failed")
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ Failed to fetch expiries.\nError: %s", err), backKb)
		return
	}
	if len(expiries) == 0 {
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ No expiries available for %s.", asset), backKb)
		return
	}

	// Cap the keyboard; deep-dated expiries rarely matter for straddles.
	if len(expiries) > 10 {
		expiries = expiries[:10]
	}
	rows := make([][]telegram.InlineKeyboardButton, 0, len(expiries)+1)
	for _, exp := range expiries {
		rows = append(rows, row(button(formatTime(exp), EncodeCallback(actionSelectExpiry, asset, exp.Unix()))))
	}
	rows = append(rows, row(button("🔙 Back", actionExpirySelection)))

	text := fmt.Sprintf("📊 <b>Select Expiry for %s:</b>\n\nAvailable expiries (sorted by date):", asset)
	r.edit(ctx, chatID, messageID, text, &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// selectExpiry resolves the ATM straddle for the chosen expiry and asks for
// the lot size.
func (r *Router) selectExpiry(ctx context.Context, sess *session.Session, chatID, messageID int64, params []string) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	if len(params) < 2 {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}
	asset := params[0]
	ts, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}
	expiry := time.Unix(ts, 0).UTC()

	r.edit(ctx, chatID, messageID, fmt.Sprintf("⏳ Fetching ATM options for <b>%s</b>...", asset), nil)

	backKb := keyboard(row(button("🔙 Back", actionExpirySelection)))
	straddle, spot, err := r.resolveATM(ctx, sess, asset, expiry)
	if err != nil {
		r.log.Error().Err(err).Str("asset", asset).Time("expiry", expiry).Msg("atm resolve failed")
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ Failed to fetch ATM options.\nError: %s", err), backKb)
		return
	}

	sess.Straddle = &session.StraddleDraft{
		Asset:         asset,
		Expiry:        expiry,
		Spot:          spot,
		Strike:        straddle.Strike,
		CallProductID: straddle.Call.ProductID,
		PutProductID:  straddle.Put.ProductID,
		CallSymbol:    straddle.Call.Symbol,
		PutSymbol:     straddle.Put.Symbol,
	}

	text := formatStraddleDetails(asset, expiry, spot, straddle) + "\n\n<b>Select Lot Size:</b>"
	r.edit(ctx, chatID, messageID, text, lotKeyboard())
}

func (r *Router) resolveATM(ctx context.Context, sess *session.Session, asset string, expiry time.Time) (delta.Straddle, decimal.Decimal, error) {
	client, err := r.client(sess)
	if err != nil {
		return delta.Straddle{}, decimal.Decimal{}, err
	}
	spot, err := client.SpotPrice(ctx, asset)
	if err != nil {
		return delta.Straddle{}, decimal.Decimal{}, err
	}
	straddle, err := client.FindATMOptions(ctx, asset, expiry, spot)
	if err != nil {
		return delta.Straddle{}, decimal.Decimal{}, err
	}
	return straddle, spot, nil
}

func lotKeyboard() *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(predefinedLots)+2)
	for _, lot := range predefinedLots {
		label := fmt.Sprintf("%d Lots", lot)
		if lot == 1 {
			label = "1 Lot"
		}
		rows = append(rows, row(button(label, EncodeCallback(actionSelectLot, lot))))
	}
	rows = append(rows, row(button("✏️ Custom Lot", actionCustomLot)))
	rows = append(rows, row(button("🔙 Back", actionExpirySelection)))
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (r *Router) selectLot(ctx context.Context, sess *session.Session, chatID, messageID int64, params []string) {
	draft := sess.Straddle
	if draft == nil || len(params) == 0 {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}
	// Buttons only carry the predefined sizes, so anything out of range here
	// is a forged or stale callback.
	lot, err := session.ParseLotSize(params[0])
	if err != nil {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}
	draft.LotSize = lot
	r.edit(ctx, chatID, messageID, directionText(lot), directionKeyboard())
}

// customLotPrompt switches the session to expect a typed lot size.
func (r *Router) customLotPrompt(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if sess.Straddle == nil {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}
	sess.State = session.AwaitingCustomLot{}

	text := "✏️ <b>Enter Custom Lot Size:</b>\n\n" +
		"Please type the number of lots you want to trade.\n" +
		"<i>Example: 3</i>"
	r.edit(ctx, chatID, messageID, text, cancelKeyboard())
}

func (r *Router) customLotInput(ctx context.Context, sess *session.Session, chatID int64, text string) {
	draft := sess.Straddle
	if draft == nil {
		sess.State = nil
		return
	}
	lot, err := session.ParseLotSize(text)
	if err != nil {
		// Stay in the same state so the user can retry in place.
		r.send(ctx, chatID, fmt.Sprintf("❌ %s\n\nPlease enter a valid lot size:", validationMessage(err)), nil)
		return
	}
	draft.LotSize = lot
	sess.State = nil
	r.send(ctx, chatID, directionText(lot), directionKeyboard())
}

func directionText(lot int) string {
	return fmt.Sprintf("🚀 <b>Select Trade Direction:</b>\n\n<b>Lot Size:</b> %d\n\n"+
		"<b>Long Straddle:</b> Buy both Call and Put (profit from large moves)\n"+
		"<b>Short Straddle:</b> Sell both Call and Put (profit from low volatility)", lot)
}

func directionKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(button("📈 Long Straddle (Buy)", EncodeCallback(actionTradeDirection, session.DirectionLong))),
		row(button("📉 Short Straddle (Sell)", EncodeCallback(actionTradeDirection, session.DirectionShort))),
		row(button("🔙 Back", actionMainMenu)),
	)
}

// tradeDirection stores the direction and shows the confirmation with fresh
// per-leg prices.
func (r *Router) tradeDirection(ctx context.Context, sess *session.Session, chatID, messageID int64, params []string) {
	draft := sess.Straddle
	if draft == nil || draft.LotSize <= 0 || len(params) == 0 {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}
	dir := params[0]
	if dir != session.DirectionLong && dir != session.DirectionShort {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}
	draft.Direction = dir

	client, err := r.client(sess)
	var callQ, putQ delta.OptionQuote
	if err == nil {
		callQ, err = client.OptionPrices(ctx, draft.CallProductID)
	}
	if err == nil {
		putQ, err = client.OptionPrices(ctx, draft.PutProductID)
	}
	if err != nil {
		r.log.Error().Err(err).Msg("confirmation price fetch failed")
		r.edit(ctx, chatID, messageID, fmt.Sprintf("❌ Failed to load trade confirmation.\nError: %s", err), nil)
		return
	}

	r.edit(ctx, chatID, messageID, tradeConfirmText(draft, callQ, putQ), keyboard(
		row(button("✅ Confirm Execution", actionConfirmTrade)),
		row(button("❌ Cancel Trade", actionCancelTrade)),
	))
}

func tradeConfirmText(draft *session.StraddleDraft, callQ, putQ delta.OptionQuote) string {
	lots := decimal.NewFromInt(int64(draft.LotSize))
	callCost := callQ.MarkPrice.Mul(lots)
	putCost := putQ.MarkPrice.Mul(lots)
	total := callCost.Add(putCost)

	long := draft.Direction == session.DirectionLong
	directionLabel, actionLabel, totalLabel := "LONG", "BUY", "Cost"
	if !long {
		directionLabel, actionLabel, totalLabel = "SHORT", "SELL", "Credit"
	}

	var b strings.Builder
	b.WriteString("🚀 <b>Confirm Trade Execution</b>\n\n")
	fmt.Fprintf(&b, "<b>Strategy:</b> %s Straddle\n", directionLabel)
	fmt.Fprintf(&b, "<b>Asset:</b> %s\n", draft.Asset)
	fmt.Fprintf(&b, "<b>Expiry:</b> %s\n", formatTime(draft.Expiry))
	fmt.Fprintf(&b, "<b>Strike:</b> %s\n", formatPrice(draft.Strike))
	fmt.Fprintf(&b, "<b>Lot Size:</b> %d\n\n", draft.LotSize)
	b.WriteString("<b>Call Option:</b>\n")
	fmt.Fprintf(&b, "Mark Price: %s\n", formatPrice(callQ.MarkPrice))
	fmt.Fprintf(&b, "Est. Cost: %s\n\n", formatPrice(callCost))
	b.WriteString("<b>Put Option:</b>\n")
	fmt.Fprintf(&b, "Mark Price: %s\n", formatPrice(putQ.MarkPrice))
	fmt.Fprintf(&b, "Est. Cost: %s\n\n", formatPrice(putCost))
	fmt.Fprintf(&b, "<b>Total Est. %s:</b> %s\n\n", totalLabel, formatPrice(total))
	fmt.Fprintf(&b, "⚠️ This will %s both options at market price.\nAre you sure you want to proceed?", actionLabel)
	return b.String()
}

// confirmTrade sends both market legs. A put-leg failure leaves the call
// order live; the reply says so instead of pretending it rolled back.
func (r *Router) confirmTrade(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}
	draft := sess.Straddle
	if draft == nil || draft.CallProductID == 0 || draft.PutProductID == 0 || draft.LotSize <= 0 || draft.Direction == "" {
		r.edit(ctx, chatID, messageID, missingTradeText, nil)
		return
	}

	r.edit(ctx, chatID, messageID, "🚀 <b>Executing Trade...</b>\n\nPlease wait while we place your orders.", nil)

	side := delta.SideBuy
	if draft.Direction == session.DirectionShort {
		side = delta.SideSell
	}

	client, err := r.client(sess)
	var result delta.StraddleResult
	if err == nil {
		result, err = client.PlaceStraddle(ctx, draft.CallProductID, draft.PutProductID, side, draft.LotSize)
	}
	if err != nil {
		r.straddleFailed(ctx, sess, chatID, messageID, draft, err)
		sess.ResetWorkflows()
		return
	}

	r.record(journal.Event{
		Event:       "straddle_placed",
		UserID:      sess.UserID,
		Account:     sess.Account.Name,
		Asset:       draft.Asset,
		Expiry:      draft.Expiry.Format(time.RFC3339),
		Strike:      draft.Strike.String(),
		Side:        string(side),
		LotSize:     draft.LotSize,
		CallOrderID: int(result.Call.ID),
		PutOrderID:  int(result.Put.ID),
	})
	r.log.Info().
		Int64("user_id", sess.UserID).
		Str("direction", draft.Direction).
		Int64("call_order", result.Call.ID).
		Int64("put_order", result.Put.ID).
		Msg("straddle executed")

	directionLabel := "LONG"
	if draft.Direction == session.DirectionShort {
		directionLabel = "SHORT"
	}
	var b strings.Builder
	b.WriteString("✅ <b>Trade Executed Successfully!</b>\n\n")
	fmt.Fprintf(&b, "<b>Strategy:</b> %s Straddle\n", directionLabel)
	fmt.Fprintf(&b, "<b>Lot Size:</b> %d\n\n", draft.LotSize)
	b.WriteString("<b>Call Order:</b>\n")
	fmt.Fprintf(&b, "Order ID: %d\nProduct ID: %d\nSize: %d\nSide: %s\n\n",
		result.Call.ID, result.Call.ProductID, result.Call.Size, strings.ToUpper(string(result.Call.Side)))
	b.WriteString("<b>Put Order:</b>\n")
	fmt.Fprintf(&b, "Order ID: %d\nProduct ID: %d\nSize: %d\nSide: %s\n\n",
		result.Put.ID, result.Put.ProductID, result.Put.Size, strings.ToUpper(string(result.Put.Side)))
	b.WriteString("✅ Both legs executed at market price.")

	r.edit(ctx, chatID, messageID, b.String(), backToMainKeyboard())
	sess.ResetWorkflows()
}

func (r *Router) straddleFailed(ctx context.Context, sess *session.Session, chatID, messageID int64, draft *session.StraddleDraft, err error) {
	var partial *delta.PartialExecutionError
	if errors.As(err, &partial) && len(partial.Placed) > 0 {
		call := partial.Placed[0]
		r.record(journal.Event{
			Event:       "straddle_partial",
			UserID:      sess.UserID,
			Account:     sess.Account.Name,
			Asset:       draft.Asset,
			CallOrderID: int(call.ID),
			Placed:      1,
			Failed:      1,
			Err:         partial.Err.Error(),
		})
		r.log.Error().Int64("user_id", sess.UserID).Int64("call_order", call.ID).Err(partial.Err).Msg("straddle partially executed")

		var b strings.Builder
		b.WriteString("⚠️ <b>Partial Execution</b>\n\n")
		b.WriteString("The call leg was placed but the put leg failed.\n\n")
		b.WriteString("<b>Call Order:</b>\n")
		fmt.Fprintf(&b, "Order ID: %d\nProduct ID: %d\nSize: %d\nSide: %s\n\n",
			call.ID, call.ProductID, call.Size, strings.ToUpper(string(call.Side)))
		fmt.Fprintf(&b, "<b>Put leg error:</b> %s\n\n", partial.Err)
		b.WriteString("⚠️ The call order remains live on the exchange. Review your positions and manage it manually.")
		r.edit(ctx, chatID, messageID, b.String(), backToMainKeyboard())
		return
	}

	r.record(journal.Event{
		Event:   "straddle_failed",
		UserID:  sess.UserID,
		Account: sess.Account.Name,
		Asset:   draft.Asset,
		Err:     err.Error(),
	})
	r.log.Error().Int64("user_id", sess.UserID).Err(err).Msg("straddle execution failed")

	text := fmt.Sprintf("❌ <b>Trade Execution Failed</b>\n\nError: %s\n\nPlease check your account balance and try again.", err)
	r.edit(ctx, chatID, messageID, text, backToMainKeyboard())
}

func (r *Router) cancelTrade(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	sess.ResetWorkflows()
	r.edit(ctx, chatID, messageID, "❌ Trade cancelled.", backToMainKeyboard())
}

// validationMessage returns the chat-facing text for rejected input, falling
// back to the raw error for anything unexpected.
func validationMessage(err error) string {
	var v *session.ValidationError
	if errors.As(err, &v) {
		return v.Msg
	}
	return err.Error()
}
