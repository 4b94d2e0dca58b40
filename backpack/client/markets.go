package client

import (
	"context"
	"strings"

	"github.com/backfarm/poolbot/backpack/types"
)

// OrderBookDepth fetches the public order book for one symbol. Level values
// stay decimal strings: the best level's quantity string is the source of
// truth for the market's quantity precision.
func (c *Client) OrderBookDepth(ctx context.Context, symbol string) (*types.Depth, error) {
	var out types.Depth
	err := c.publicRequest(ctx, "api/v1/depth", map[string]string{"symbol": symbol}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Tickers fetches the public ticker summary for all markets.
func (c *Client) Tickers(ctx context.Context) ([]types.Ticker, error) {
	var out []types.Ticker
	err := c.publicRequest(ctx, "api/v1/tickers", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ticker fetches the public ticker for one symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (*types.Ticker, error) {
	var out types.Ticker
	err := c.publicRequest(ctx, "api/v1/ticker",
		map[string]string{"symbol": strings.ToUpper(symbol)}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
