package types

// Ticker is the public last-trade summary for one symbol.
type Ticker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	High               string `json:"high"`
	Low                string `json:"low"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
}

// BookLevel is one [price, quantity] order-book level. Both values stay
// decimal strings as received: the quantity string's decimal exponent encodes
// the market's required precision and trailing zeros are significant.
type BookLevel [2]string

// Price returns the level's price string.
func (l BookLevel) Price() string { return l[0] }

// Quantity returns the level's quantity string.
func (l BookLevel) Quantity() string { return l[1] }

// Depth is the public order book for one symbol.
type Depth struct {
	Bids         []BookLevel `json:"bids"`
	Asks         []BookLevel `json:"asks"`
	LastUpdateID string      `json:"lastUpdateId"`
	Timestamp    int64       `json:"timestamp"`
}

// SideLevels returns the book side an order of the given direction fills
// against: asks for buys, bids for sells.
func (d Depth) SideLevels(side Side) []BookLevel {
	if side == SideBid {
		return d.Asks
	}
	return d.Bids
}
