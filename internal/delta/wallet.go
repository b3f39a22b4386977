package delta

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// Balances returns the wallet rows, optionally filtered to one settlement
// asset symbol (empty means all).
func (c *Client) Balances(ctx context.Context, asset string) ([]Balance, error) {
	var params url.Values
	if asset != "" {
		params = url.Values{"asset": []string{asset}}
	}
	var out []Balance
	if err := c.do(ctx, http.MethodGet, "/v2/wallet/balances", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AccountSummary aggregates the wallet across settlement assets.
type AccountSummary struct {
	Available     decimal.Decimal
	MarginUsed    decimal.Decimal
	Equity        decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Summary folds every balance row into one account view: available funds,
// margin locked by orders and positions, total equity and unrealized PnL.
func (c *Client) Summary(ctx context.Context) (AccountSummary, error) {
	balances, err := c.Balances(ctx, "")
	if err != nil {
		return AccountSummary{}, err
	}
	var s AccountSummary
	for _, b := range balances {
		s.Available = s.Available.Add(b.AvailableBalance.Decimal)
		s.MarginUsed = s.MarginUsed.Add(b.OrderMargin.Decimal).Add(b.PositionMargin.Decimal)
		s.Equity = s.Equity.Add(b.Balance.Decimal)
		s.UnrealizedPnL = s.UnrealizedPnL.Add(b.UnrealizedPnL.Decimal)
	}
	return s, nil
}
