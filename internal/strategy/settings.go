package strategy

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Settings is the per-pool trading policy. Pools store overrides as a JSON
// blob in the directory; unset fields fall back to the configured defaults.
type Settings struct {
	// Symbols are the perp markets each sub-account opens one position in.
	Symbols []string

	// Leverage is the target leverage limit applied to every sub-account.
	Leverage int

	// MinDepositUSD triggers a top-up from the main account when a
	// sub-account's total USD balance falls below it.
	MinDepositUSD decimal.Decimal

	// TargetPositions is the open-position count at which a sub-account is
	// considered balanced and skipped for the tick.
	TargetPositions int

	// Ladder is the sequence of notional fractions tried per symbol until an
	// order is accepted.
	Ladder []decimal.Decimal

	// TopUpSymbol/TopUpChain/FundingPair describe the top-up leg: the asset
	// withdrawn, the network it travels on, and the pair that prices it.
	TopUpSymbol string
	TopUpChain  string
	FundingPair string

	// Interval is the pool's scheduling interval.
	Interval time.Duration
}

// DefaultSettings mirrors the historical policy constants.
func DefaultSettings() Settings {
	return Settings{
		Symbols:         []string{"ETH_USDC_PERP", "SOL_USDC_PERP"},
		Leverage:        50,
		MinDepositUSD:   decimal.RequireFromString("0.1"),
		TargetPositions: 2,
		Ladder: []decimal.Decimal{
			decimal.RequireFromString("0.9"),
			decimal.RequireFromString("0.8"),
			decimal.RequireFromString("0.7"),
			decimal.RequireFromString("0.6"),
			decimal.RequireFromString("0.5"),
		},
		TopUpSymbol: "SOL",
		TopUpChain:  "Solana",
		FundingPair: "SOL_USDC",
		Interval:    45 * time.Minute,
	}
}

// settingsJSON is the pool settings blob shape.
type settingsJSON struct {
	Symbols         []string `json:"symbols"`
	Leverage        int      `json:"leverage"`
	MinDepositUSD   string   `json:"min_deposit_usd"`
	TargetPositions int      `json:"target_positions"`
	Ladder          []string `json:"ladder"`
	TopUpSymbol     string   `json:"top_up_symbol"`
	TopUpChain      string   `json:"top_up_chain"`
	FundingPair     string   `json:"funding_pair"`
	IntervalMinutes int      `json:"interval_minutes"`
}

// ParseSettings overlays a pool's JSON settings onto the defaults. An
// invalid blob is an error: a pool with broken settings must be skipped, not
// traded with half-applied policy.
func ParseSettings(raw []byte, defaults Settings) (Settings, error) {
	out := defaults
	if len(raw) == 0 {
		return out, nil
	}

	var blob settingsJSON
	if err := json.Unmarshal(raw, &blob); err != nil {
		return Settings{}, errors.Wrap(err, "pool settings")
	}

	if len(blob.Symbols) > 0 {
		out.Symbols = blob.Symbols
	}
	if blob.Leverage > 0 {
		out.Leverage = blob.Leverage
	}
	if blob.MinDepositUSD != "" {
		min, err := decimal.NewFromString(blob.MinDepositUSD)
		if err != nil {
			return Settings{}, errors.Wrap(err, "pool settings: min_deposit_usd")
		}
		out.MinDepositUSD = min
	}
	if blob.TargetPositions > 0 {
		out.TargetPositions = blob.TargetPositions
	}
	if len(blob.Ladder) > 0 {
		ladder := make([]decimal.Decimal, 0, len(blob.Ladder))
		for _, frac := range blob.Ladder {
			f, err := decimal.NewFromString(frac)
			if err != nil {
				return Settings{}, errors.Wrap(err, "pool settings: ladder")
			}
			ladder = append(ladder, f)
		}
		out.Ladder = ladder
	}
	if blob.TopUpSymbol != "" {
		out.TopUpSymbol = blob.TopUpSymbol
	}
	if blob.TopUpChain != "" {
		out.TopUpChain = blob.TopUpChain
	}
	if blob.FundingPair != "" {
		out.FundingPair = blob.FundingPair
	}
	if blob.IntervalMinutes > 0 {
		out.Interval = time.Duration(blob.IntervalMinutes) * time.Minute
	}
	return out, nil
}
