package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/backfarm/poolbot/backpack/types"
)

// signedRequest sends one authenticated request through the retry policy and
// decodes the response into out (skipped when out is nil, for fire-and-forget
// endpoints). params double as the signature payload and either the query
// string (GET/DELETE) or the JSON body (POST/PATCH).
func (c *Client) signedRequest(
	ctx context.Context,
	method, endpoint, instruction string,
	params map[string]any,
	out any,
) error {
	body, err := c.do(ctx, method, endpoint, instruction, signedTimeout,
		func(attemptCtx context.Context) (*resty.Response, error) {
			ts := time.Now().UnixMilli()
			req := c.http.R().
				SetContext(attemptCtx).
				SetHeader("X-API-Key", c.apiKey).
				SetHeader("X-Signature", c.signer.Sign(instruction, ts, params)).
				SetHeader("X-Timestamp", strconv.FormatInt(ts, 10)).
				SetHeader("X-Window", strconv.FormatInt(c.signer.window, 10)).
				SetHeader("Content-Type", "application/json; charset=utf-8")

			switch method {
			case http.MethodPost, http.MethodPatch:
				req.SetBody(params)
			default:
				req.SetQueryParams(stringifyParams(params))
			}
			return req.Execute(method, endpoint)
		})
	if err != nil {
		return err
	}
	return decodeResponse(body, out)
}

// publicRequest sends one unauthenticated request. Public-data endpoints must
// not see API-key headers, so this path never touches the signer.
func (c *Client) publicRequest(
	ctx context.Context,
	endpoint string,
	params map[string]string,
	out any,
) error {
	body, err := c.do(ctx, http.MethodGet, endpoint, "public", publicTimeout,
		func(attemptCtx context.Context) (*resty.Response, error) {
			return c.http.R().
				SetContext(attemptCtx).
				SetQueryParams(params).
				Get(endpoint)
		})
	if err != nil {
		return err
	}
	return decodeResponse(body, out)
}

// classifyResponse maps a completed HTTP exchange onto the error taxonomy.
// Returns nil when the body is ordinary JSON the caller may decode.
func classifyResponse(status int, body []byte) *types.Error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		if status >= 400 {
			return types.NewError(types.KindAPIError, "http %d with empty body", status)
		}
		return nil
	}

	if !json.Valid(trimmed) {
		return types.NewError(types.KindInvalidJSON,
			"response is not valid JSON: %s", preview(trimmed))
	}

	// The exchange reports business errors either as {"error": ...} or as a
	// non-2xx {"code": ..., "message": ...} payload.
	if trimmed[0] == '{' {
		var probe struct {
			Error   any    `json:"error"`
			Code    any    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(trimmed, &probe) == nil {
			if probe.Error != nil {
				return types.NewError(types.KindAPIError, "%v: %s", probe.Error, probe.Message)
			}
			if status >= 400 {
				return types.NewError(types.KindAPIError, "http %d %v: %s", status, probe.Code, probe.Message)
			}
		}
	}
	if status >= 400 {
		return types.NewError(types.KindAPIError, "http %d: %s", status, preview(trimmed))
	}
	return nil
}

// decodeResponse unmarshals a classified-OK body into out. Shape mismatches
// surface as KindInvalidResponse, never as a crash deeper in the engine.
func decodeResponse(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.NewError(types.KindInvalidResponse,
			"unexpected response shape: %v (body: %s)", err, preview(body))
	}
	return nil
}

// stringifyParams renders signature params as query-string values using the
// same canonical rendering the signer used, so what is signed is what is sent.
func stringifyParams(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = renderParam(v)
	}
	return out
}

const previewLimit = 200

func preview(body []byte) string {
	if len(body) > previewLimit {
		return fmt.Sprintf("%s... (%d bytes)", body[:previewLimit], len(body))
	}
	return string(body)
}
