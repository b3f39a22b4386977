package delta

import (
	"context"
	"net/http"
)

// Positions returns every open position on the account. The endpoint takes no
// query parameters; callers filter client-side.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var out []Position
	if err := c.do(ctx, http.MethodGet, "/v2/positions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type closePositionRequest struct {
	ProductID      int64 `json:"product_id"`
	CloseOnTrigger bool  `json:"close_on_trigger"`
}

// ClosePosition market-closes the full position on one product.
func (c *Client) ClosePosition(ctx context.Context, productID int64) error {
	req := closePositionRequest{ProductID: productID}
	return c.do(ctx, http.MethodPost, "/v2/positions/close_all", nil, req, nil)
}
