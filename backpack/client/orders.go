package client

import (
	"context"
	"net/http"

	"github.com/backfarm/poolbot/backpack/types"
)

// Fallback truncation precision for the convert-all sweep, used only when no
// live order book informs the step. The book stays authoritative everywhere
// else.
var convertPrecision = map[string]int32{
	"SOL": 2,
	"ETH": 4,
	"BTC": 5,
}

const convertDefaultPrecision int32 = 1

// CreateOrder submits one order. Limit orders always carry price,
// timeInForce and the explicit postOnly/reduceOnly booleans; the
// auto-borrow/lend flags are included only when set, so the signed canonical
// string matches the wire payload exactly.
func (c *Client) CreateOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error) {
	params := map[string]any{
		"symbol":    req.Symbol,
		"side":      string(req.Side),
		"orderType": string(req.OrderType),
		"quantity":  req.Quantity,
	}
	if req.OrderType == types.OrderTypeLimit {
		tif := req.TimeInForce
		if tif == "" {
			tif = types.TimeInForceGTC
		}
		params["price"] = req.Price
		params["timeInForce"] = string(tif)
		params["postOnly"] = req.PostOnly
		params["reduceOnly"] = req.ReduceOnly
	}
	if req.AutoBorrow {
		params["autoBorrow"] = true
	}
	if req.AutoBorrowRepay {
		params["autoBorrowRepay"] = true
	}
	if req.AutoLend {
		params["autoLend"] = true
	}
	if req.AutoLendRedeem {
		params["autoLendRedeem"] = true
	}

	var out types.Order
	err := c.signedRequest(ctx, http.MethodPost, "api/v1/order", "orderExecute", params, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenOrders lists resting orders, optionally filtered to one symbol.
func (c *Client) OpenOrders(ctx context.Context, marketType types.MarketType, symbol string) ([]types.Order, error) {
	params := map[string]any{"marketType": string(marketType)}
	if symbol != "" {
		params["symbol"] = symbol
	}

	var out []types.Order
	err := c.signedRequest(ctx, http.MethodGet, "api/v1/orders", "orderQueryAll", params, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OpenPositions lists the account's open perp positions.
func (c *Client) OpenPositions(ctx context.Context) ([]types.FuturesPosition, error) {
	var out []types.FuturesPosition
	err := c.signedRequest(ctx, http.MethodGet, "api/v1/position", "positionQuery", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CloseAllPerpPositions flattens every open perp position with one market
// order each, on the opposite side of the position's sign. A failing symbol
// is recorded and the sweep moves on; it never aborts early.
func (c *Client) CloseAllPerpPositions(ctx context.Context) (types.CloseAllResult, error) {
	positions, err := c.OpenPositions(ctx)
	if err != nil {
		return types.CloseAllResult{}, err
	}

	result := types.CloseAllResult{Total: len(positions)}
	for _, pos := range positions {
		if pos.NetQuantity.IsZero() {
			continue
		}

		order, err := c.CreateOrder(ctx, types.OrderRequest{
			Symbol:    pos.Symbol,
			Side:      pos.ClosingSide(),
			OrderType: types.OrderTypeMarket,
			Quantity:  pos.NetQuantity.Abs().String(),
		})
		if err != nil {
			result.Failed = append(result.Failed, types.CloseFailure{Symbol: pos.Symbol, Err: err})
			continue
		}
		if order.ID == "" {
			result.Failed = append(result.Failed, types.CloseFailure{
				Symbol: pos.Symbol,
				Err:    types.NewError(types.KindAPIError, "close order not booked"),
			})
			continue
		}
		result.Closed++
	}
	return result, nil
}

// ConvertAllToUSDC market-sells every non-USDC holding into USDC, truncating
// each quantity to the fallback precision for its token. Per-symbol outcomes
// are accumulated; one rejected sale does not stop the sweep.
func (c *Client) ConvertAllToUSDC(ctx context.Context) ([]types.MarketSaleResult, error) {
	totals, err := c.TotalTokenQuantities(ctx)
	if err != nil {
		return nil, err
	}

	var results []types.MarketSaleResult
	for symbol, amount := range totals {
		if symbol == "USDC" || !amount.IsPositive() {
			continue
		}
		precision, ok := convertPrecision[symbol]
		if !ok {
			precision = convertDefaultPrecision
		}
		quantity := amount.RoundDown(precision)
		if !quantity.IsPositive() {
			continue
		}

		order, err := c.CreateOrder(ctx, types.OrderRequest{
			Symbol:    symbol + "_USDC",
			Side:      types.SideAsk,
			OrderType: types.OrderTypeMarket,
			Quantity:  quantity.String(),
		})
		if err != nil {
			results = append(results, types.MarketSaleResult{Symbol: symbol, Err: err})
			continue
		}
		results = append(results, types.MarketSaleResult{Symbol: symbol, Success: true, Order: order})
	}
	return results, nil
}
