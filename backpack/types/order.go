package types

import "github.com/shopspring/decimal"

// OrderRequest is the payload for POST /api/v1/order. Quantity and Price are
// decimal strings already truncated to the market's book-implied precision.
type OrderRequest struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	OrderType OrderType `json:"orderType"`
	Quantity  string    `json:"quantity"`

	// Limit-only fields.
	Price       string      `json:"price,omitempty"`
	TimeInForce TimeInForce `json:"timeInForce,omitempty"`

	PostOnly   bool `json:"postOnly,omitempty"`
	ReduceOnly bool `json:"reduceOnly,omitempty"`

	// Auto-leverage flags. Default false for plain orders; the strategy sets
	// all four true for its market orders.
	AutoBorrow      bool `json:"autoBorrow,omitempty"`
	AutoBorrowRepay bool `json:"autoBorrowRepay,omitempty"`
	AutoLend        bool `json:"autoLend,omitempty"`
	AutoLendRedeem  bool `json:"autoLendRedeem,omitempty"`
}

// Order is the exchange's order record. CreatedAt is the acceptance marker:
// a response without it means the order was not booked.
type Order struct {
	ID                    string          `json:"id"`
	ClientID              *int64          `json:"clientId"`
	Symbol                string          `json:"symbol"`
	Side                  Side            `json:"side"`
	OrderType             OrderType       `json:"orderType"`
	Quantity              decimal.Decimal `json:"quantity"`
	ExecutedQuantity      decimal.Decimal `json:"executedQuantity"`
	QuoteQuantity         decimal.Decimal `json:"quoteQuantity"`
	ExecutedQuoteQuantity decimal.Decimal `json:"executedQuoteQuantity"`
	Price                 decimal.Decimal `json:"price"`
	Status                string          `json:"status"`
	TimeInForce           TimeInForce     `json:"timeInForce"`
	SelfTradePrevention   string          `json:"selfTradePrevention"`
	CreatedAt             int64           `json:"createdAt"`
}

// Accepted reports whether the exchange booked the order.
func (o Order) Accepted() bool { return o.CreatedAt != 0 }

// FuturesPosition is one open perp position from GET /api/v1/position.
type FuturesPosition struct {
	Symbol        string          `json:"symbol"`
	NetQuantity   decimal.Decimal `json:"netQuantity"`
	NetCost       decimal.Decimal `json:"netCost"`
	EntryPrice    decimal.Decimal `json:"entryPrice"`
	MarkPrice     decimal.Decimal `json:"markPrice"`
	PnlUnrealized decimal.Decimal `json:"pnlUnrealized"`
	PnlRealized   decimal.Decimal `json:"pnlRealized"`
	PositionID    string          `json:"positionId"`
}

// ClosingSide is the side of the market order that flattens the position:
// buy back shorts, sell off longs.
func (p FuturesPosition) ClosingSide() Side {
	if p.NetQuantity.IsNegative() {
		return SideBid
	}
	return SideAsk
}

// CloseFailure records one position the close-all sweep could not flatten.
type CloseFailure struct {
	Symbol string
	Err    error
}

// CloseAllResult accumulates the per-symbol outcome of a close-all sweep.
type CloseAllResult struct {
	Closed int
	Total  int
	Failed []CloseFailure
}

// MarketSaleResult is one leg of a convert-all-to-USDC sweep.
type MarketSaleResult struct {
	Symbol  string
	Success bool
	Order   *Order
	Err     error
}
