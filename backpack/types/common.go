package types

// Side is the order direction in Backpack's terms.
type Side string

const (
	SideBid Side = "Bid" // buy, increases exposure
	SideAsk Side = "Ask" // sell, decreases exposure
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// OrderType is the execution type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// TimeInForce values accepted by the order endpoint.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
)

// Blockchain identifies a withdrawal network.
type Blockchain string

const (
	BlockchainSolana   Blockchain = "Solana"
	BlockchainEthereum Blockchain = "Ethereum"
	BlockchainBitcoin  Blockchain = "Bitcoin"
)

// MarketType filters open-order queries.
type MarketType string

const (
	MarketTypeSpot MarketType = "SPOT"
	MarketTypePerp MarketType = "PERP"
)
