package delta

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Products lists products filtered by contract types, underlying asset and
// state. Empty filters are omitted from the query; states defaults to live.
func (c *Client) Products(ctx context.Context, contractTypes, underlying, states string) ([]Product, error) {
	if states == "" {
		states = "live"
	}
	params := url.Values{}
	params.Set("states", states)
	if contractTypes != "" {
		params.Set("contract_types", contractTypes)
	}
	if underlying != "" {
		params.Set("underlying_asset_symbols", underlying)
	}
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/v2/products", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tickers returns the bulk ticker snapshot, optionally filtered by contract
// types.
func (c *Client) Tickers(ctx context.Context, contractTypes string) ([]Ticker, error) {
	var params url.Values
	if contractTypes != "" {
		params = url.Values{"contract_types": []string{contractTypes}}
	}
	var out []Ticker
	if err := c.do(ctx, http.MethodGet, "/v2/tickers", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SpotPrice returns the spot index price from the symbol's ticker.
func (c *Client) SpotPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var t Ticker
	if err := c.do(ctx, http.MethodGet, "/v2/tickers/"+symbol, nil, nil, &t); err != nil {
		return decimal.Decimal{}, err
	}
	if t.SpotPrice.IsZero() {
		return decimal.Decimal{}, &NotFoundError{What: "spot price for " + symbol}
	}
	return t.SpotPrice.Decimal, nil
}

// Expiries returns the distinct option settlement times for an asset,
// truncated to the hour in UTC and sorted ascending. Products with
// unparseable settlement timestamps are logged and skipped.
func (c *Client) Expiries(ctx context.Context, asset string) ([]time.Time, error) {
	underlying, err := underlyingFor(asset)
	if err != nil {
		return nil, err
	}
	products, err := c.Products(ctx, ContractTypeCall+","+ContractTypePut, underlying, "live")
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]time.Time, len(products))
	for _, p := range products {
		t, err := p.settlement()
		if err != nil {
			c.log.Warn().
				Str("symbol", p.Symbol).
				Str("settlement_time", p.SettlementTime).
				Msg("skipping product with bad settlement time")
			continue
		}
		t = t.Truncate(time.Hour)
		seen[t.Unix()] = t
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// Chain is one expiry's option board, each side sorted by strike ascending.
type Chain struct {
	Calls []Product
	Puts  []Product
}

// OptionsChain partitions the asset's options settling at expiry into calls
// and puts. Expiry matching uses the same hour-truncated UTC timestamps that
// Expiries reports.
func (c *Client) OptionsChain(ctx context.Context, asset string, expiry time.Time) (Chain, error) {
	underlying, err := underlyingFor(asset)
	if err != nil {
		return Chain{}, err
	}
	products, err := c.Products(ctx, ContractTypeCall+","+ContractTypePut, underlying, "live")
	if err != nil {
		return Chain{}, err
	}

	expiry = expiry.UTC().Truncate(time.Hour)
	var chain Chain
	for _, p := range products {
		t, err := p.settlement()
		if err != nil {
			continue
		}
		if !t.Truncate(time.Hour).Equal(expiry) {
			continue
		}
		switch p.ContractType {
		case ContractTypeCall:
			chain.Calls = append(chain.Calls, p)
		case ContractTypePut:
			chain.Puts = append(chain.Puts, p)
		}
	}
	byStrike := func(s []Product) {
		sort.Slice(s, func(i, j int) bool {
			return s[i].StrikePrice.Cmp(s[j].StrikePrice.Decimal) < 0
		})
	}
	byStrike(chain.Calls)
	byStrike(chain.Puts)
	return chain, nil
}

// OptionQuote carries one leg's identity and current prices.
type OptionQuote struct {
	ProductID int64
	Symbol    string
	Strike    decimal.Decimal
	MarkPrice decimal.Decimal
	BestBid   decimal.Decimal
	BestAsk   decimal.Decimal
}

// Straddle is the at-the-money call/put pair for one expiry.
type Straddle struct {
	Strike decimal.Decimal
	Call   OptionQuote
	Put    OptionQuote
}

// OptionPrices finds one product's quotes in the bulk option ticker snapshot.
// The tickers endpoint has no per-product filter, so this scans the full
// snapshot.
func (c *Client) OptionPrices(ctx context.Context, productID int64) (OptionQuote, error) {
	tickers, err := c.Tickers(ctx, ContractTypeCall+","+ContractTypePut)
	if err != nil {
		return OptionQuote{}, err
	}
	for _, t := range tickers {
		if t.ProductID != productID {
			continue
		}
		return OptionQuote{
			ProductID: productID,
			Symbol:    t.Symbol,
			Strike:    t.StrikePrice.Decimal,
			MarkPrice: t.MarkPrice.Decimal,
			BestBid:   t.Quotes.BestBid.Decimal,
			BestAsk:   t.Quotes.BestAsk.Decimal,
		}, nil
	}
	return OptionQuote{}, &NotFoundError{What: fmt.Sprintf("ticker for product %d", productID)}
}

// FindATMOptions picks the strike closest to spot from the call side and
// returns both legs with fresh prices. When two strikes are equidistant the
// lower one wins.
func (c *Client) FindATMOptions(ctx context.Context, asset string, expiry time.Time, spot decimal.Decimal) (Straddle, error) {
	chain, err := c.OptionsChain(ctx, asset, expiry)
	if err != nil {
		return Straddle{}, err
	}
	if len(chain.Calls) == 0 || len(chain.Puts) == 0 {
		return Straddle{}, &NotFoundError{
			What: fmt.Sprintf("options for %s settling %s", asset, expiry.Format("2006-01-02 15:04")),
		}
	}

	// The chain is sorted ascending, so a strict < keeps the lower strike
	// when two are equidistant from spot.
	call := chain.Calls[0]
	best := call.StrikePrice.Sub(spot).Abs()
	for _, p := range chain.Calls[1:] {
		d := p.StrikePrice.Sub(spot).Abs()
		if d.Cmp(best) < 0 {
			call, best = p, d
		}
	}

	var put *Product
	for i := range chain.Puts {
		if chain.Puts[i].StrikePrice.Equal(call.StrikePrice.Decimal) {
			put = &chain.Puts[i]
			break
		}
	}
	if put == nil {
		return Straddle{}, &NotFoundError{
			What: fmt.Sprintf("put at strike %s for %s", call.StrikePrice.String(), asset),
		}
	}

	callQuote, err := c.OptionPrices(ctx, call.ID)
	if err != nil {
		return Straddle{}, err
	}
	putQuote, err := c.OptionPrices(ctx, put.ID)
	if err != nil {
		return Straddle{}, err
	}
	callQuote.Strike = call.StrikePrice.Decimal
	putQuote.Strike = put.StrikePrice.Decimal

	return Straddle{Strike: call.StrikePrice.Decimal, Call: callQuote, Put: putQuote}, nil
}
