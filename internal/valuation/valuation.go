// Package valuation computes USD-equivalent balances and order quantities.
//
// Quantity precision is never taken from a static table: the decimal
// exponent of a live order-book level's quantity string is the source of
// truth, and quantities are always truncated down to that step so the
// exchange never rejects an over-precise or zero quantity.
package valuation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/backfarm/poolbot/backpack/types"
)

// QuoteSymbol is the stable quote currency everything is valued in.
const QuoteSymbol = "USDC"

// PriceMap indexes tickers by symbol with their last prices. Tickers whose
// price does not parse are skipped.
func PriceMap(tickers []types.Ticker) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		price, err := decimal.NewFromString(t.LastPrice)
		if err != nil {
			continue
		}
		prices[t.Symbol] = price
	}
	return prices
}

// TotalUSDBalance aggregates the USD-equivalent net balance: for every token
// whose available quantity plus net lending exposure is positive, USDC counts
// directly and other tokens are priced via {token}_USDC, falling back to
// {token}_USDC_PERP. Tokens with no discoverable price are skipped; that is
// not an error.
func TotalUSDBalance(
	balances types.Balances,
	positions []types.BorrowLendPosition,
	prices map[string]decimal.Decimal,
) decimal.Decimal {
	exposure := make(map[string]decimal.Decimal, len(positions))
	for _, pos := range positions {
		token := strings.TrimSuffix(pos.Symbol, "_"+QuoteSymbol)
		exposure[token] = exposure[token].Add(pos.NetExposureQuantity)
	}

	total := decimal.Zero
	for token, balance := range balances {
		quantity := balance.Available.Add(exposure[token])
		if !quantity.IsPositive() {
			continue
		}
		if token == QuoteSymbol {
			total = total.Add(quantity)
			continue
		}
		pair := token + "_" + QuoteSymbol
		price, ok := prices[pair]
		if !ok {
			price, ok = prices[pair+"_PERP"]
		}
		if !ok {
			continue
		}
		total = total.Add(quantity.Mul(price))
	}
	return total
}

// Step derives the market's quantity step from a book level's quantity
// string: 10^-(decimal places as written). Trailing zeros are significant,
// so "0.250" yields 0.001 while "0.25" yields 0.01.
func Step(quantity string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(quantity)
	if err != nil {
		return decimal.Zero, types.NewError(types.KindInvalidResponse,
			"book quantity %q: %v", quantity, err)
	}
	places := -d.Exponent()
	if places < 0 {
		places = 0
	}
	return decimal.New(1, -places), nil
}

// SizeOrder converts a quote-currency amount into a base quantity sized
// against the given book side: the best level provides both the reference
// price and (via its quantity string) the truncation step. The result is
// truncated, never rounded up, and a truncation to zero is replaced by
// exactly one step so an intended trade never submits a zero quantity.
func SizeOrder(levels []types.BookLevel, quoteAmount decimal.Decimal) (decimal.Decimal, error) {
	if len(levels) == 0 {
		return decimal.Zero, types.NewError(types.KindInvalidResponse, "empty book side")
	}
	best := levels[0]

	price, err := decimal.NewFromString(best.Price())
	if err != nil {
		return decimal.Zero, types.NewError(types.KindInvalidResponse,
			"book price %q: %v", best.Price(), err)
	}
	if !price.IsPositive() {
		return decimal.Zero, types.NewError(types.KindInvalidResponse,
			"non-positive book price %q", best.Price())
	}

	step, err := Step(best.Quantity())
	if err != nil {
		return decimal.Zero, err
	}

	quantity := quoteAmount.Div(price).RoundDown(-step.Exponent())
	if quantity.IsZero() {
		return step, nil
	}
	return quantity, nil
}
