package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/skyflexible-prog/deltamulti-modular/internal/delta"
	"github.com/skyflexible-prog/deltamulti-modular/internal/session"
)

// showPositions renders every open position with its live mark price and the
// account's total unrealized PnL.
func (r *Router) showPositions(ctx context.Context, sess *session.Session, chatID, messageID int64) {
	if !r.requireAccount(ctx, sess, chatID, messageID) {
		return
	}

	r.edit(ctx, chatID, messageID, "⏳ Fetching positions...", nil)

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
		r.edit(ctx, chatID, messageID, "📊 <b>Open Positions</b>\n\nYou have no open positions.", backToMainKeyboard())
		return
	}

	// The positions payload can carry stale marks; overlay the bulk option
	// ticker snapshot where available. A failed snapshot is not fatal.
	if tickers, terr := client.Tickers(ctx, delta.ContractTypeCall+","+delta.ContractTypePut); terr == nil {
		markBySymbol := make(map[string]decimal.Decimal, len(tickers))
		for _, t := range tickers {
			markBySymbol[t.Symbol] = t.MarkPrice.Decimal
		}
		for i := range positions {
			if mark, ok := markBySymbol[positions[i].Symbol()]; ok {
				positions[i].MarkPrice.Decimal = mark
			}
		}
	} else {
		r.log.Warn().Err(terr).Msg("ticker snapshot failed, using position marks")
	}

	total := decimal.Zero
	var b strings.Builder
	b.WriteString("📊 <b>Open Positions</b>\n\n")
	for i, p := range positions {
		total = total.Add(p.UnrealizedPnL.Decimal)
		fmt.Fprintf(&b, "<b>Position %d:</b>\n", i+1)
		b.WriteString(formatPosition(p))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "<b>Total Unrealized PnL:</b> %s", formatPnL(total))

	r.edit(ctx, chatID, messageID, b.String(), backToMainKeyboard())
}
