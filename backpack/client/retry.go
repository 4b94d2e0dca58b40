package client

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/backfarm/poolbot/backpack/types"
	"github.com/backfarm/poolbot/internal/metrics"
)

// do runs one logical exchange call through the retry policy.
//
// Transport failures of the connection-reset/refused class trigger a proxy
// rotation and another attempt, up to c.attempts total, with c.wait between
// attempts. Exhaustion yields KindProxyFailure. Everything else (API errors,
// bad JSON, unexpected transport errors) is terminal on the first occurrence.
//
// Every attempt is observed by the metrics interceptor with its instruction
// label, method, latency and outcome; operations stay free of that concern.
func (c *Client) do(
	ctx context.Context,
	method, endpoint, instruction string,
	timeout time.Duration,
	attempt func(ctx context.Context) (*resty.Response, error),
) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(c.wait):
			case <-ctx.Done():
				return nil, types.NewError(types.KindUnexpected, "canceled: %v", ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		resp, err := attempt(attemptCtx)
		elapsed := time.Since(start)
		cancel()

		if err != nil {
			if !isTransportFailure(err) {
				metrics.ObserveRequest(instruction, method, elapsed, metrics.OutcomeError)
				return nil, types.NewError(types.KindUnexpected,
					"%s %s: %v", method, endpoint, err)
			}

			metrics.ObserveRequest(instruction, method, elapsed, metrics.OutcomeTransportFailure)
			lastErr = err
			c.log.WithError(err).WithFields(logrus.Fields{
				"method":   method,
				"endpoint": endpoint,
				"attempt":  i + 1,
			}).Error("proxy failure, rotating")
			c.rotateQuietly(ctx)
			continue
		}

		if cerr := classifyResponse(resp.StatusCode(), resp.Body()); cerr != nil {
			metrics.ObserveRequest(instruction, method, elapsed, metrics.OutcomeError)
			return nil, cerr
		}

		metrics.ObserveRequest(instruction, method, elapsed, metrics.OutcomeOK)
		return resp.Body(), nil
	}

	return nil, types.NewError(types.KindProxyFailure,
		"max retries reached for %s %s: %v", method, endpoint, lastErr)
}

// rotateQuietly swaps the proxy between attempts. Rotation problems are
// logged and swallowed; the retry budget, not the rotation, decides when the
// call gives up.
func (c *Client) rotateQuietly(ctx context.Context) {
	if c.rotator == nil {
		return
	}
	if _, err := c.ChangeProxy(ctx); err != nil && types.KindOf(err) != types.KindNoFreeProxy {
		c.log.WithError(err).Error("proxy rotation failed")
	}
}

// isTransportFailure reports whether err is in the connection-reset/refused
// class that merits rotation and retry. Anything else is not retried.
func isTransportFailure(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	// SOCKS dial errors arrive stringified from the proxy dialer.
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}
