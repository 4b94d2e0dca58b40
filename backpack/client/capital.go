package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/backfarm/poolbot/backpack/types"
)

// Balances fetches the per-token spot balances.
func (c *Client) Balances(ctx context.Context) (types.Balances, error) {
	var out types.Balances
	err := c.signedRequest(ctx, http.MethodGet, "api/v1/capital", "balanceQuery", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BorrowLendPositions fetches the lending/borrowing exposure records.
// Exposure quantities are negative for borrowed positions.
func (c *Client) BorrowLendPositions(ctx context.Context) ([]types.BorrowLendPosition, error) {
	var out []types.BorrowLendPosition
	err := c.signedRequest(ctx, http.MethodGet, "api/v1/borrowLend/positions",
		"borrowLendPositionQuery", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TotalTokenQuantities aggregates spot holdings (available+locked+staked)
// with net borrow/lend exposure per token.
func (c *Client) TotalTokenQuantities(ctx context.Context) (map[string]decimal.Decimal, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := c.BorrowLendPositions(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal, len(balances))
	for symbol, balance := range balances {
		totals[symbol] = balance.Total()
	}
	for _, pos := range positions {
		totals[pos.Symbol] = totals[pos.Symbol].Add(pos.NetExposureQuantity)
	}
	return totals, nil
}

// RequestWithdrawal submits an on-chain withdrawal. A missing ClientID is
// filled with a fresh UUID so the exchange can deduplicate retried submits.
func (c *Client) RequestWithdrawal(ctx context.Context, req types.WithdrawalRequest) (*types.Withdrawal, error) {
	params := map[string]any{
		"address":        req.Address,
		"blockchain":     string(req.Blockchain),
		"symbol":         req.Symbol,
		"quantity":       req.Quantity,
		"autoBorrow":     req.AutoBorrow,
		"autoLendRedeem": req.AutoLendRedeem,
	}
	if req.TwoFactorToken != "" {
		params["twoFactorToken"] = req.TwoFactorToken
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	params["clientId"] = clientID

	var out types.Withdrawal
	err := c.signedRequest(ctx, http.MethodPost, "wapi/v1/capital/withdrawals",
		"withdraw", params, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
