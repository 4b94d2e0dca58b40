package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/backfarm/poolbot/backpack/types"
)

// ipInfoURL is the third-party egress check endpoint. Absolute URL: resty
// routes it through the same (proxied) transport but outside the base URL.
const ipInfoURL = "https://ipinfo.io/json"

// CheckProxy verifies that the bound proxy actually routes traffic through
// the expected egress: it asks the IP-info service for the observed IP and
// location and reports the round-trip latency. Unsigned, short timeout.
func (c *Client) CheckProxy(ctx context.Context) (*types.ProxyStatus, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.R().SetContext(probeCtx).Get(ipInfoURL)
	elapsed := time.Since(start)
	if err != nil {
		if isTransportFailure(err) {
			return nil, types.NewError(types.KindProxyFailure, "proxy check: %v", err)
		}
		return nil, types.NewError(types.KindUnexpected, "proxy check: %v", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, types.NewError(types.KindAPIError,
			"proxy check: http %d", resp.StatusCode())
	}

	var status types.ProxyStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return nil, types.NewError(types.KindInvalidJSON, "proxy check: %v", err)
	}
	status.ResponseTime = elapsed.Seconds()
	return &status, nil
}
