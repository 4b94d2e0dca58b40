package client

import (
	"context"
	"net/http"

	"github.com/backfarm/poolbot/backpack/types"
)

// AccountInfo fetches the account's settings and limits.
func (c *Client) AccountInfo(ctx context.Context) (*types.AccountInfo, error) {
	var out types.AccountInfo
	err := c.signedRequest(ctx, http.MethodGet, "api/v1/account", "accountQuery", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAccountSettings patches the auto-lend/borrow/repay switches and,
// when non-empty, the leverage limit. The endpoint returns no body.
func (c *Client) UpdateAccountSettings(ctx context.Context, update types.AccountSettingsUpdate) error {
	params := map[string]any{
		"autoBorrowSettlements": update.AutoBorrowSettlements,
		"autoLend":              update.AutoLend,
		"autoRepayBorrows":      update.AutoRepayBorrows,
	}
	if update.LeverageLimit != "" {
		params["leverageLimit"] = update.LeverageLimit
	}
	return c.signedRequest(ctx, http.MethodPatch, "api/v1/account", "accountUpdate", params, nil)
}
