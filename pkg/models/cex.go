package models

// Exchange identifies a centralized venue. VWAP is a synthetic tag produced
// by cross-exchange volume weighting (§4.3), not a real venue.
type Exchange string

const (
	ExchangeBinance  Exchange = "binance"
	ExchangeCoinbase Exchange = "coinbase"
	ExchangeKucoin   Exchange = "kucoin"
	ExchangeOkex     Exchange = "okex"
	ExchangeVWAP     Exchange = "VWAP"
)

// BidAsk is a two-sided price or size quote.
type BidAsk struct {
	Bid Amount
	Ask Amount
}

// CexQuote is a single point-in-time quote for a pair on one exchange.
type CexQuote struct {
	Exchange    Exchange
	TimestampUs int64
	Price       BidAsk
	Amount      BidAsk
	Token0      Address // which side of Price/Amount corresponds to Pair.Token0
}

// FeeAdjustedQuote is the derived, fee-adjusted, possibly intermediary-
// routed quote an inspector actually prices against.
type FeeAdjustedQuote struct {
	Exchange    Exchange
	TimestampUs int64
	Pairs       []Pair // 1 entry for direct, 2 for intermediary routing
	PriceMaker  BidAsk
	PriceTaker  BidAsk
	Amount      BidAsk
}

// TradeSide is the executed direction of a CexTrade.
type TradeSide int

const (
	TradeBuy TradeSide = iota
	TradeSell
)

// CexTrade is a single executed fill on a CEX.
type CexTrade struct {
	Exchange    Exchange
	Pair        Pair
	Side        TradeSide
	Price       Amount
	Amount      Amount
	TimestampUs int64
}

// FeeTable holds the per-(exchange,pair) maker/taker fee overrides,
// falling back to per-exchange defaults (SPEC_FULL §11/§12).
type FeeTable struct {
	Default  map[Exchange]MakerTaker
	PerPair  map[Exchange]map[Pair]MakerTaker
}

// MakerTaker is a pair of fee rates, expressed as fractions (e.g. 0.001).
type MakerTaker struct {
	Maker Amount
	Taker Amount
}

// Lookup returns the fee rates to use for exchange/pair, preferring a
// per-pair override over the exchange default.
func (ft FeeTable) Lookup(exchange Exchange, pair Pair) (MakerTaker, bool) {
	if perPair, ok := ft.PerPair[exchange]; ok {
		if mt, ok := perPair[pair]; ok {
			return mt, true
		}
	}
	mt, ok := ft.Default[exchange]
	return mt, ok
}
