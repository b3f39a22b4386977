package delta

import (
	"bytes"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SideForPosition derives the closing side for a protective order from the
// signed position size: longs are protected by sells, shorts by buys.
func SideForPosition(size int) Side {
	if size < 0 {
		return SideBuy
	}
	return SideSell
}

type OrderType string

const (
	OrderTypeMarket OrderType = "market_order"
	OrderTypeLimit  OrderType = "limit_order"
)

// StopOrderKind selects which protective trigger a resting limit order
// carries on the exchange.
type StopOrderKind string

const (
	StopLoss   StopOrderKind = "stop_loss_order"
	TakeProfit StopOrderKind = "take_profit_order"
)

type OrderState string

const (
	OrderStateOpen    OrderState = "open"
	OrderStatePending OrderState = "pending"
)

const (
	ContractTypeCall = "call_options"
	ContractTypePut  = "put_options"
)

// Tradeable underlying spot symbols.
const (
	AssetBTC = "BTCUSD"
	AssetETH = "ETHUSD"
)

// underlyings maps the tradeable spot symbols the bot offers to the
// underlying asset symbol the products endpoint filters on.
var underlyings = map[string]string{
	AssetBTC: "BTC",
	AssetETH: "ETH",
}

func underlyingFor(asset string) (string, error) {
	u, ok := underlyings[asset]
	if !ok {
		return "", fmt.Errorf("delta: unknown underlying asset %q", asset)
	}
	return u, nil
}

// Decimal decodes the exchange's price fields, which arrive as JSON strings,
// bare numbers, null, or "" depending on the endpoint. Null and empty both
// decode to zero.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		d.Decimal = decimal.Decimal{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = v
		return nil
	}
	v, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	d.Decimal = v
	return nil
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Decimal.String())
}

// ProductRef is the nested product summary the exchange attaches to orders
// and positions.
type ProductRef struct {
	ID     int64  `json:"id,omitempty"`
	Symbol string `json:"symbol"`
}

type Product struct {
	ID             int64      `json:"id"`
	Symbol         string     `json:"symbol"`
	ContractType   string     `json:"contract_type"`
	StrikePrice    Decimal    `json:"strike_price"`
	SettlementTime string     `json:"settlement_time"`
	State          string     `json:"state"`
	Underlying     ProductRef `json:"underlying_asset"`
}

// settlement parses the product's settlement timestamp (RFC 3339, UTC).
func (p Product) settlement() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, p.SettlementTime)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

type Quotes struct {
	BestBid Decimal `json:"best_bid"`
	BestAsk Decimal `json:"best_ask"`
}

type Ticker struct {
	Symbol       string  `json:"symbol"`
	ProductID    int64   `json:"product_id"`
	ContractType string  `json:"contract_type"`
	StrikePrice  Decimal `json:"strike_price"`
	SpotPrice    Decimal `json:"spot_price"`
	MarkPrice    Decimal `json:"mark_price"`
	Close        Decimal `json:"close"`
	Quotes       Quotes  `json:"quotes"`
}

type Order struct {
	ID            int64      `json:"id"`
	ClientOrderID string     `json:"client_order_id,omitempty"`
	ProductID     int64      `json:"product_id"`
	Product       ProductRef `json:"product"`
	Side          Side       `json:"side"`
	Size          int        `json:"size"`
	UnfilledSize  int        `json:"unfilled_size"`
	OrderType     OrderType  `json:"order_type"`
	LimitPrice    Decimal    `json:"limit_price"`
	StopOrderType string     `json:"stop_order_type,omitempty"`
	StopPrice     Decimal    `json:"stop_price"`
	State         string     `json:"state"`
	CreatedAt     string     `json:"created_at,omitempty"`
}

func (o Order) Symbol() string { return o.Product.Symbol }

type Position struct {
	ProductID     int64      `json:"product_id"`
	Product       ProductRef `json:"product"`
	Size          int        `json:"size"`
	EntryPrice    Decimal    `json:"entry_price"`
	MarkPrice     Decimal    `json:"mark_price"`
	UnrealizedPnL Decimal    `json:"unrealized_profit_loss"`
}

func (p Position) Symbol() string { return p.Product.Symbol }

type Balance struct {
	AssetSymbol      string  `json:"asset_symbol"`
	Balance          Decimal `json:"balance"`
	AvailableBalance Decimal `json:"available_balance"`
	OrderMargin      Decimal `json:"order_margin"`
	PositionMargin   Decimal `json:"position_margin"`
	UnrealizedPnL    Decimal `json:"unrealized_pnl"`
}
