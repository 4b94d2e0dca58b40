package types

import "github.com/shopspring/decimal"

// TokenBalance is the per-token spot balance from the capital endpoint.
type TokenBalance struct {
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Staked    decimal.Decimal `json:"staked"`
}

// Total is the spot-held quantity: available + locked + staked.
func (b TokenBalance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked).Add(b.Staked)
}

// Balances maps token symbol to its balance.
type Balances map[string]TokenBalance

// BorrowLendPosition is one leveraged/lending exposure record. Net quantities
// are negative when the position is borrowed (short).
type BorrowLendPosition struct {
	Symbol              string          `json:"symbol"`
	NetQuantity         decimal.Decimal `json:"netQuantity"`
	NetExposureQuantity decimal.Decimal `json:"netExposureQuantity"`
	NetExposureNotional decimal.Decimal `json:"netExposureNotional"`
}
