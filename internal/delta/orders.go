package delta

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skyflexible-prog/deltamulti-modular/internal/metrics"
)

// orderRequest is the exact payload for POST /v2/orders. Prices travel as
// strings; the marshalled bytes double as the signing payload.
type orderRequest struct {
	ProductID     int64     `json:"product_id"`
	Side          Side      `json:"side"`
	Size          int       `json:"size"`
	OrderType     OrderType `json:"order_type"`
	LimitPrice    string    `json:"limit_price,omitempty"`
	StopOrderType string    `json:"stop_order_type,omitempty"`
	StopPrice     string    `json:"stop_price,omitempty"`
	ReduceOnly    bool      `json:"reduce_only,omitempty"`
	ClientOrderID string    `json:"client_order_id"`
}

func (c *Client) placeOrder(ctx context.Context, req orderRequest, label string) (Order, error) {
	if req.Size <= 0 {
		return Order{}, ErrSizeNotPositive
	}
	req.ClientOrderID = uuid.New().String()
	var out Order
	if err := c.do(ctx, http.MethodPost, "/v2/orders", nil, req, &out); err != nil {
		metrics.OrdersPlaced.WithLabelValues(label, "error").Inc()
		return Order{}, err
	}
	metrics.OrdersPlaced.WithLabelValues(label, "ok").Inc()
	return out, nil
}

// PlaceMarketOrder submits an immediate-execution order.
func (c *Client) PlaceMarketOrder(ctx context.Context, productID int64, side Side, size int) (Order, error) {
	return c.placeOrder(ctx, orderRequest{
		ProductID: productID,
		Side:      side,
		Size:      size,
		OrderType: OrderTypeMarket,
	}, "market")
}

// PlaceLimitOrder submits a resting order at limitPrice.
func (c *Client) PlaceLimitOrder(ctx context.Context, productID int64, side Side, size int, limitPrice decimal.Decimal) (Order, error) {
	return c.placeOrder(ctx, orderRequest{
		ProductID:  productID,
		Side:       side,
		Size:       size,
		OrderType:  OrderTypeLimit,
		LimitPrice: limitPrice.String(),
	}, "limit")
}

func (c *Client) placeProtective(ctx context.Context, kind StopOrderKind, productID int64, side Side, size int, stopPrice, limitPrice decimal.Decimal, reduceOnly bool) (Order, error) {
	label := "stop_loss"
	if kind == TakeProfit {
		label = "take_profit"
	}
	return c.placeOrder(ctx, orderRequest{
		ProductID:     productID,
		Side:          side,
		Size:          size,
		OrderType:     OrderTypeLimit,
		LimitPrice:    limitPrice.String(),
		StopOrderType: string(kind),
		StopPrice:     stopPrice.String(),
		ReduceOnly:    reduceOnly,
	}, label)
}

// PlaceStopLossOrder rests a reduce-capable limit order that activates when
// the market crosses stopPrice against the position.
func (c *Client) PlaceStopLossOrder(ctx context.Context, productID int64, side Side, size int, stopPrice, limitPrice decimal.Decimal, reduceOnly bool) (Order, error) {
	return c.placeProtective(ctx, StopLoss, productID, side, size, stopPrice, limitPrice, reduceOnly)
}

// PlaceTakeProfitOrder rests a limit order that activates when the market
// crosses stopPrice in the position's favor.
func (c *Client) PlaceTakeProfitOrder(ctx context.Context, productID int64, side Side, size int, stopPrice, limitPrice decimal.Decimal, reduceOnly bool) (Order, error) {
	return c.placeProtective(ctx, TakeProfit, productID, side, size, stopPrice, limitPrice, reduceOnly)
}

// StraddleResult reports both legs of a fully placed straddle.
type StraddleResult struct {
	Call Order
	Put  Order
}

// PlaceStraddle sends the call and put legs as two market orders, call first.
// There is no rollback: if the put leg fails the call order stays live on the
// exchange and the returned PartialExecutionError carries it, leaving the
// decision to the caller.
func (c *Client) PlaceStraddle(ctx context.Context, callProductID, putProductID int64, side Side, size int) (StraddleResult, error) {
	if size <= 0 {
		return StraddleResult{}, ErrSizeNotPositive
	}
	callOrder, err := c.PlaceMarketOrder(ctx, callProductID, side, size)
	if err != nil {
		return StraddleResult{}, fmt.Errorf("call leg: %w", err)
	}
	putOrder, err := c.PlaceMarketOrder(ctx, putProductID, side, size)
	if err != nil {
		metrics.StraddlePartials.Inc()
		return StraddleResult{}, &PartialExecutionError{
			Placed: []Order{callOrder},
			Err:    fmt.Errorf("put leg: %w", err),
		}
	}
	return StraddleResult{Call: callOrder, Put: putOrder}, nil
}

// Orders lists the account's orders in the given state, optionally narrowed
// to one product (0 means all products).
func (c *Client) Orders(ctx context.Context, state OrderState, productID int64) ([]Order, error) {
	params := url.Values{}
	if state != "" {
		params.Set("state", string(state))
	}
	if productID > 0 {
		params.Set("product_id", strconv.FormatInt(productID, 10))
	}
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/v2/orders", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrder cancels one resting order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	path := "/v2/orders/" + strconv.FormatInt(orderID, 10)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

type cancelAllRequest struct {
	ProductID int64 `json:"product_id,omitempty"`
}

// CancelAllOrders cancels every resting order, optionally scoped to one
// product (0 means all).
func (c *Client) CancelAllOrders(ctx context.Context, productID int64) error {
	return c.do(ctx, http.MethodDelete, "/v2/orders/all", nil, cancelAllRequest{ProductID: productID}, nil)
}

// BatchStopItem is one leg of a batched protective submission.
type BatchStopItem struct {
	ProductID  int64
	Side       Side
	Size       int
	StopPrice  decimal.Decimal
	LimitPrice decimal.Decimal
}

// BatchOutcome reports one leg's fate: Order on success, Err on failure.
type BatchOutcome struct {
	ProductID int64
	Order     Order
	Err       error
}

// BatchOutcomes lists per-leg results in submission order.
type BatchOutcomes []BatchOutcome

// Succeeded counts legs that reached the exchange.
func (b BatchOutcomes) Succeeded() int {
	n := 0
	for _, o := range b {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// PlaceBatchStopOrders submits one protective order per item. Failures are
// isolated: a failed leg records its error and the loop continues, so one
// rejected product never blocks protection on the rest.
func (c *Client) PlaceBatchStopOrders(ctx context.Context, kind StopOrderKind, items []BatchStopItem) BatchOutcomes {
	out := make(BatchOutcomes, 0, len(items))
	for _, it := range items {
		order, err := c.placeProtective(ctx, kind, it.ProductID, it.Side, it.Size, it.StopPrice, it.LimitPrice, true)
		if err != nil {
			c.log.Error().Int64("product_id", it.ProductID).Err(err).Msg("batch protective order failed")
			out = append(out, BatchOutcome{ProductID: it.ProductID, Err: err})
			continue
		}
		out = append(out, BatchOutcome{ProductID: it.ProductID, Order: order})
	}
	return out
}
