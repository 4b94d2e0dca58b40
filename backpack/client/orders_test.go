package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/backfarm/poolbot/backpack/types"
)

// Limit orders must carry price, timeInForce (defaulting to GTC) and the
// explicit maker booleans; market orders must carry none of those. The
// auto-borrow/lend flags appear only when set, keeping the signed canonical
// string identical to the wire payload.
func TestCreateOrderBodyShape(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body = map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding order body: %v", err)
		}
		fmt.Fprint(w, `{"id":"o1","createdAt":1700000000000}`)
	}))
	defer server.Close()
	c := newTestClient(t, server.URL)

	t.Run("limit defaults", func(t *testing.T) {
		_, err := c.CreateOrder(context.Background(), types.OrderRequest{
			Symbol:    "SOL_USDC",
			Side:      types.SideBid,
			OrderType: types.OrderTypeLimit,
			Quantity:  "1.5",
			Price:     "100.25",
		})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		for key, want := range map[string]any{
			"symbol":      "SOL_USDC",
			"side":        "Bid",
			"orderType":   "Limit",
			"quantity":    "1.5",
			"price":       "100.25",
			"timeInForce": "GTC",
			"postOnly":    false,
			"reduceOnly":  false,
		} {
			if body[key] != want {
				t.Errorf("body[%s] = %v, want %v", key, body[key], want)
			}
		}
		for _, absent := range []string{"autoBorrow", "autoBorrowRepay", "autoLend", "autoLendRedeem"} {
			if _, ok := body[absent]; ok {
				t.Errorf("body carries %s on a plain limit order", absent)
			}
		}
	})

	t.Run("market with auto flags", func(t *testing.T) {
		_, err := c.CreateOrder(context.Background(), types.OrderRequest{
			Symbol:         "ETH_USDC_PERP",
			Side:           types.SideAsk,
			OrderType:      types.OrderTypeMarket,
			Quantity:       "0.05",
			AutoBorrow:     true,
			AutoLendRedeem: true,
		})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		if body["autoBorrow"] != true || body["autoLendRedeem"] != true {
			t.Errorf("auto flags missing from body: %v", body)
		}
		for _, absent := range []string{"price", "timeInForce", "postOnly", "reduceOnly", "autoBorrowRepay", "autoLend"} {
			if _, ok := body[absent]; ok {
				t.Errorf("market order body carries %s", absent)
			}
		}
	})
}

// Close-all flattens each position on its opposite side, records per-symbol
// failures and keeps sweeping.
func TestCloseAllPerpPositions(t *testing.T) {
	var orders []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/position", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"symbol":"SOL_USDC_PERP","netQuantity":"-2.5"},
			{"symbol":"ETH_USDC_PERP","netQuantity":"0"},
			{"symbol":"BTC_USDC_PERP","netQuantity":"0.1"},
			{"symbol":"DOGE_USDC_PERP","netQuantity":"100"}
		]`)
	})
	mux.HandleFunc("/api/v1/order", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		orders = append(orders, body)
		if body["symbol"] == "DOGE_USDC_PERP" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":"MARKET_CLOSED","message":"no"}`)
			return
		}
		fmt.Fprintf(w, `{"id":"o%d","createdAt":1700000000000}`, len(orders))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	c := newTestClient(t, server.URL)

	result, err := c.CloseAllPerpPositions(context.Background())
	if err != nil {
		t.Fatalf("CloseAllPerpPositions: %v", err)
	}

	if result.Total != 4 {
		t.Errorf("Total = %d, want 4", result.Total)
	}
	if result.Closed != 2 {
		t.Errorf("Closed = %d, want 2", result.Closed)
	}
	if len(result.Failed) != 1 || result.Failed[0].Symbol != "DOGE_USDC_PERP" {
		t.Errorf("Failed = %+v, want one DOGE_USDC_PERP entry", result.Failed)
	}
	if types.KindOf(result.Failed[0].Err) != types.KindAPIError {
		t.Errorf("failure kind = %s, want %s", types.KindOf(result.Failed[0].Err), types.KindAPIError)
	}

	// Zero positions are skipped, shorts close with a buy, longs with a sell.
	want := []struct {
		symbol, side, quantity string
	}{
		{"SOL_USDC_PERP", "Bid", "2.5"},
		{"BTC_USDC_PERP", "Ask", "0.1"},
		{"DOGE_USDC_PERP", "Ask", "100"},
	}
	if len(orders) != len(want) {
		t.Fatalf("placed %d orders, want %d", len(orders), len(want))
	}
	for i, w := range want {
		if orders[i]["symbol"] != w.symbol || orders[i]["side"] != w.side || orders[i]["quantity"] != w.quantity {
			t.Errorf("order[%d] = %v, want %+v", i, orders[i], w)
		}
		if orders[i]["orderType"] != "Market" {
			t.Errorf("order[%d] type = %v, want Market", i, orders[i]["orderType"])
		}
	}
}

// The convert sweep sells every positive non-USDC total, truncated to the
// token's fallback precision, and records rejected sales without stopping.
func TestConvertAllToUSDC(t *testing.T) {
	var sold []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/capital", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"USDC":{"available":"100","locked":"0","staked":"0"},
			"SOL":{"available":"1.23456","locked":"0","staked":"0"},
			"DUST":{"available":"0.35","locked":"0","staked":"0"}
		}`)
	})
	mux.HandleFunc("/api/v1/borrowLend/positions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/api/v1/order", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		sold = append(sold, body)
		fmt.Fprint(w, `{"id":"o1","createdAt":1}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	c := newTestClient(t, server.URL)

	results, err := c.ConvertAllToUSDC(context.Background())
	if err != nil {
		t.Fatalf("ConvertAllToUSDC: %v", err)
	}

	byToken := map[string]map[string]any{}
	for _, order := range sold {
		byToken[order["symbol"].(string)] = order
	}
	// SOL truncates to 2 places; DUST has no fallback entry so it truncates
	// to the default 1 place.
	if got := byToken["SOL_USDC"]["quantity"]; got != "1.23" {
		t.Errorf("SOL quantity = %v, want 1.23", got)
	}
	if got := byToken["DUST_USDC"]["quantity"]; got != "0.3" {
		t.Errorf("DUST quantity = %v, want 0.3", got)
	}
	if _, ok := byToken["USDC_USDC"]; ok {
		t.Error("USDC must never be sold into itself")
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2 (SOL and DUST)", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("sale of %s failed: %v", r.Symbol, r.Err)
		}
	}
}
