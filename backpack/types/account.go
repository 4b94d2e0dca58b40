package types

import "github.com/shopspring/decimal"

// AccountInfo is the response of GET /api/v1/account.
type AccountInfo struct {
	AutoBorrowSettlements bool            `json:"autoBorrowSettlements"`
	AutoLend              bool            `json:"autoLend"`
	AutoRepayBorrows      bool            `json:"autoRepayBorrows"`
	BorrowLimit           decimal.Decimal `json:"borrowLimit"`
	FuturesMakerFee       decimal.Decimal `json:"futuresMakerFee"`
	FuturesTakerFee       decimal.Decimal `json:"futuresTakerFee"`
	LeverageLimit         decimal.Decimal `json:"leverageLimit"`
	LimitOrders           int             `json:"limitOrders"`
	Liquidating           bool            `json:"liquidating"`
	PositionLimit         decimal.Decimal `json:"positionLimit"`
	SpotMakerFee          decimal.Decimal `json:"spotMakerFee"`
	SpotTakerFee          decimal.Decimal `json:"spotTakerFee"`
	TriggerOrders         int             `json:"triggerOrders"`
}

// AccountSettingsUpdate is the payload for PATCH /api/v1/account. The
// endpoint returns no body; the call is fire-and-forget.
type AccountSettingsUpdate struct {
	AutoBorrowSettlements bool   `json:"autoBorrowSettlements"`
	AutoLend              bool   `json:"autoLend"`
	AutoRepayBorrows      bool   `json:"autoRepayBorrows"`
	LeverageLimit         string `json:"leverageLimit,omitempty"`
}

// ProxyStatus is the result of a proxy egress check against the IP-info
// service: the IP and location actually observed plus the round trip.
type ProxyStatus struct {
	IP           string  `json:"ip"`
	City         string  `json:"city"`
	Region       string  `json:"region"`
	Country      string  `json:"country"`
	Org          string  `json:"org"`
	Timezone     string  `json:"timezone"`
	ResponseTime float64 `json:"-"`
}
