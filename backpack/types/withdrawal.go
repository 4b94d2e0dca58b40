package types

import "github.com/shopspring/decimal"

// WithdrawalRequest is the payload for POST /wapi/v1/capital/withdrawals.
type WithdrawalRequest struct {
	Address        string     `json:"address"`
	Blockchain     Blockchain `json:"blockchain"`
	Symbol         string     `json:"symbol"`
	Quantity       string     `json:"quantity"`
	AutoBorrow     bool       `json:"autoBorrow"`
	AutoLendRedeem bool       `json:"autoLendRedeem"`
	TwoFactorToken string     `json:"twoFactorToken,omitempty"`
	ClientID       string     `json:"clientId,omitempty"`
}

// Withdrawal is the exchange's record of an accepted withdrawal.
type Withdrawal struct {
	ID              int64           `json:"id"`
	Blockchain      Blockchain      `json:"blockchain"`
	ClientID        *string         `json:"clientId"`
	Symbol          string          `json:"symbol"`
	Quantity        decimal.Decimal `json:"quantity"`
	Fee             decimal.Decimal `json:"fee"`
	ToAddress       string          `json:"toAddress"`
	TransactionHash *string         `json:"transactionHash"`
	Status          string          `json:"status"`
	CreatedAt       string          `json:"createdAt"`
}
