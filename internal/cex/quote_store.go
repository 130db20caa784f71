// Package cex implements the CEX quote and trade stores (spec.md §4.3-§4.4):
// per-exchange, per-pair time-indexed lookup with intermediary routing, fee
// adjustment, volume weighting, and time-window markout pricing.
package cex

import (
	"sort"

	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// identityAmount stands in for "effectively unlimited" depth on the
// identity (X,X) quote, where size is never the limiting factor.
var identityAmount = rational.FromInt64(1 << 32)

// direction records which orientation a quote was matched in, so bid/ask
// can be flipped correctly relative to the caller's requested pair.
type direction int

const (
	dirSell direction = iota // caller's pair matched storage orientation directly
	dirBuy                   // caller's pair matched the flipped storage orientation
)

// QuoteStore holds every CexQuote ingested for a block, indexed for O(log n)
// as-of lookups, plus a liquidity ranking used for most-liquid-exchange
// fallback.
type QuoteStore struct {
	quotes        map[models.Exchange]map[models.Pair][]models.CexQuote // sorted by TimestampUs ascending
	liquidityRank map[models.Pair][]models.Exchange                     // most liquid first, by 30d volume
	fees          models.FeeTable
}

// NewQuoteStore builds a store from raw quotes plus the pre-ranked
// most-liquid-exchange index and fee table (populated by the metadata
// collaborator at block-load time).
func NewQuoteStore(quotes map[models.Exchange]map[models.Pair][]models.CexQuote, liquidityRank map[models.Pair][]models.Exchange, fees models.FeeTable) *QuoteStore {
	qs := &QuoteStore{
		quotes:        make(map[models.Exchange]map[models.Pair][]models.CexQuote, len(quotes)),
		liquidityRank: liquidityRank,
		fees:          fees,
	}
	for ex, byPair := range quotes {
		qs.quotes[ex] = make(map[models.Pair][]models.CexQuote, len(byPair))
		for pair, list := range byPair {
			sorted := append([]models.CexQuote(nil), list...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampUs < sorted[j].TimestampUs })
			qs.quotes[ex][pair] = sorted
		}
	}
	return qs
}

func (s *QuoteStore) lookupOrientation(pair models.Pair, exchange models.Exchange) ([]models.CexQuote, direction, bool) {
	byPair, ok := s.quotes[exchange]
	if !ok {
		return nil, 0, false
	}
	if list, ok := byPair[pair]; ok {
		return list, dirSell, true
	}
	if list, ok := byPair[pair.Flip()]; ok {
		return list, dirBuy, true
	}
	return nil, 0, false
}

// asOf binary-searches list for the latest quote with TimestampUs <= ts,
// honoring an optional maxDtUs staleness bound.
func asOf(list []models.CexQuote, ts int64, maxDtUs *int64) (models.CexQuote, bool) {
	idx := sort.Search(len(list), func(i int) bool { return list[i].TimestampUs > ts }) - 1
	if idx < 0 {
		return models.CexQuote{}, false
	}
	q := list[idx]
	if maxDtUs != nil && ts-q.TimestampUs > *maxDtUs {
		return models.CexQuote{}, false
	}
	return q, true
}

func flipBidAsk(ba models.BidAsk) models.BidAsk {
	bid, okBid := ba.Ask.Recip()
	ask, okAsk := ba.Bid.Recip()
	if !okBid {
		bid = rational.Zero()
	}
	if !okAsk {
		ask = rational.Zero()
	}
	return models.BidAsk{Bid: bid, Ask: ask}
}

func swapBidAsk(ba models.BidAsk) models.BidAsk {
	return models.BidAsk{Bid: ba.Ask, Ask: ba.Bid}
}

func applyFee(ba models.BidAsk, feeRate models.Amount) models.BidAsk {
	one := rational.One()
	mult := one.Sub(feeRate)
	return models.BidAsk{Bid: ba.Bid.Mul(mult), Ask: ba.Ask.Mul(mult)}
}

func (s *QuoteStore) feeAdjust(exchange models.Exchange, pairs []models.Pair, price models.BidAsk) (models.BidAsk, models.BidAsk) {
	mt, ok := s.fees.Lookup(exchange, pairs[0])
	if !ok {
		return price, price
	}
	return applyFee(price, mt.Maker), applyFee(price, mt.Taker)
}

// GetQuoteAt implements §4.3 get_quote_at.
func (s *QuoteStore) GetQuoteAt(pair models.Pair, exchange models.Exchange, tsUs int64, maxDtUs *int64) (*models.FeeAdjustedQuote, bool) {
	if pair.Token0 == pair.Token1 {
		return &models.FeeAdjustedQuote{
			Exchange:    exchange,
			TimestampUs: tsUs,
			Pairs:       []models.Pair{pair},
			PriceMaker:  models.BidAsk{Bid: rational.One(), Ask: rational.One()},
			PriceTaker:  models.BidAsk{Bid: rational.One(), Ask: rational.One()},
			Amount:      models.BidAsk{Bid: identityAmount, Ask: identityAmount},
		}, true
	}

	list, dir, ok := s.lookupOrientation(pair, exchange)
	if !ok {
		return nil, false
	}
	q, ok := asOf(list, tsUs, maxDtUs)
	if !ok {
		return nil, false
	}

	price := q.Price
	amount := q.Amount
	if dir == dirBuy {
		price = flipBidAsk(price)
		amount = swapBidAsk(amount)
	}

	maker, taker := s.feeAdjust(exchange, []models.Pair{pair}, price)
	return &models.FeeAdjustedQuote{
		Exchange:    exchange,
		TimestampUs: q.TimestampUs,
		Pairs:       []models.Pair{pair},
		PriceMaker:  maker,
		PriceTaker:  taker,
		Amount:      amount,
	}, true
}

// GetQuoteAtViaIntermediary implements §4.3
// get_quote_at_via_intermediary: routes pair.0 -> m -> pair.1 through every
// candidate intermediary m that has a direct quote on exchange against
// both legs, and returns the candidate with the largest bid depth.
func (s *QuoteStore) GetQuoteAtViaIntermediary(pair models.Pair, exchange models.Exchange, tsUs int64, maxDtUs *int64) (*models.FeeAdjustedQuote, bool) {
	byPair, ok := s.quotes[exchange]
	if !ok {
		return nil, false
	}

	candidates := intermediaryCandidates(byPair, pair)

	var best *models.FeeAdjustedQuote
	for _, m := range candidates {
		leg1, ok1 := s.GetQuoteAt(models.Pair{Token0: pair.Token0, Token1: m}, exchange, tsUs, maxDtUs)
		if !ok1 {
			continue
		}
		leg2, ok2 := s.GetQuoteAt(models.Pair{Token0: m, Token1: pair.Token1}, exchange, tsUs, maxDtUs)
		if !ok2 {
			continue
		}
		combined := combineLegs(exchange, pair, leg1, leg2)
		if best == nil || combined.Amount.Bid.Cmp(best.Amount.Bid) > 0 {
			best = combined
		}
	}
	return best, best != nil
}

func intermediaryCandidates(byPair map[models.Pair][]models.CexQuote, pair models.Pair) []models.Address {
	withToken0 := map[models.Address]bool{}
	withToken1 := map[models.Address]bool{}
	for p := range byPair {
		if p.Token0 == pair.Token0 {
			withToken0[p.Token1] = true
		}
		if p.Token1 == pair.Token0 {
			withToken0[p.Token0] = true
		}
		if p.Token0 == pair.Token1 {
			withToken1[p.Token1] = true
		}
		if p.Token1 == pair.Token1 {
			withToken1[p.Token0] = true
		}
	}
	var out []models.Address
	for addr := range withToken0 {
		if withToken1[addr] {
			out = append(out, addr)
		}
	}
	return out
}

func combineLegs(exchange models.Exchange, pair models.Pair, leg1, leg2 *models.FeeAdjustedQuote) *models.FeeAdjustedQuote {
	priceMaker := models.BidAsk{
		Bid: leg1.PriceMaker.Bid.Mul(leg2.PriceMaker.Bid),
		Ask: leg1.PriceMaker.Ask.Mul(leg2.PriceMaker.Ask),
	}
	priceTaker := models.BidAsk{
		Bid: leg1.PriceTaker.Bid.Mul(leg2.PriceTaker.Bid),
		Ask: leg1.PriceTaker.Ask.Mul(leg2.PriceTaker.Ask),
	}

	leg2BidInLeg1Units, ok := leg2.Amount.Bid.Div(nonZero(leg2.PriceMaker.Bid))
	if !ok {
		leg2BidInLeg1Units = rational.Zero()
	}
	amountBid := rational.Min(leg1.Amount.Bid, leg2BidInLeg1Units)
	amountAsk := rational.Min(leg1.Amount.Ask.Mul(leg1.PriceMaker.Ask), leg2.Amount.Ask)

	ts := leg1.TimestampUs
	if leg2.TimestampUs > ts {
		ts = leg2.TimestampUs
	}

	return &models.FeeAdjustedQuote{
		Exchange:    exchange,
		TimestampUs: ts,
		Pairs:       []models.Pair{leg1.Pairs[0], leg2.Pairs[0]},
		PriceMaker:  priceMaker,
		PriceTaker:  priceTaker,
		Amount:      models.BidAsk{Bid: amountBid, Ask: amountAsk},
	}
}

func nonZero(a models.Amount) models.Amount {
	if a.IsZero() {
		return rational.One()
	}
	return a
}

// GetQuoteDirectOrViaIntermediary tries a direct quote first, then falls
// back to intermediary routing.
func (s *QuoteStore) GetQuoteDirectOrViaIntermediary(pair models.Pair, exchange models.Exchange, tsUs int64, maxDtUs *int64) (*models.FeeAdjustedQuote, bool) {
	if q, ok := s.GetQuoteAt(pair, exchange, tsUs, maxDtUs); ok {
		return q, true
	}
	return s.GetQuoteAtViaIntermediary(pair, exchange, tsUs, maxDtUs)
}

// GetQuoteFromMostLiquidExchange walks the liquidity-ranked exchange list
// for pair, attempting a direct quote on each, then falling back to
// Binance then Coinbase via intermediary routing (§4.3).
func (s *QuoteStore) GetQuoteFromMostLiquidExchange(pair models.Pair, tsUs int64, maxDtUs *int64) (*models.FeeAdjustedQuote, bool) {
	for _, ex := range s.liquidityRank[pair] {
		if q, ok := s.GetQuoteAt(pair, ex, tsUs, maxDtUs); ok {
			return q, true
		}
	}
	for _, ex := range []models.Exchange{models.ExchangeBinance, models.ExchangeCoinbase} {
		if q, ok := s.GetQuoteAtViaIntermediary(pair, ex, tsUs, maxDtUs); ok {
			return q, true
		}
	}
	return nil, false
}

// GetVolumeWeightedQuote computes the cross-exchange volume-weighted quote
// for a swap given a per-exchange quote set (§4.3), producing the
// synthetic ExchangeVWAP tag. Rejects as an outlier if the DEX rate and
// the VWAP ask diverge by more than 2x in either direction.
func GetVolumeWeightedQuote(quotes []models.FeeAdjustedQuote, dexRate models.Amount) (*models.FeeAdjustedQuote, bool) {
	if len(quotes) == 0 {
		return nil, false
	}

	sumMakerBidWeighted := rational.Zero()
	sumTakerBidWeighted := rational.Zero()
	sumMakerAskWeighted := rational.Zero()
	sumTakerAskWeighted := rational.Zero()
	sumBidSize := rational.Zero()
	sumAskSize := rational.Zero()

	var ts int64
	for _, q := range quotes {
		sumMakerBidWeighted = sumMakerBidWeighted.Add(q.PriceMaker.Bid.Mul(q.Amount.Bid))
		sumTakerBidWeighted = sumTakerBidWeighted.Add(q.PriceTaker.Bid.Mul(q.Amount.Bid))
		sumMakerAskWeighted = sumMakerAskWeighted.Add(q.PriceMaker.Ask.Mul(q.Amount.Ask))
		sumTakerAskWeighted = sumTakerAskWeighted.Add(q.PriceTaker.Ask.Mul(q.Amount.Ask))
		sumBidSize = sumBidSize.Add(q.Amount.Bid)
		sumAskSize = sumAskSize.Add(q.Amount.Ask)
		if q.TimestampUs > ts {
			ts = q.TimestampUs
		}
	}

	makerBid, ok1 := sumMakerBidWeighted.Div(nonZero(sumBidSize))
	takerBid, ok2 := sumTakerBidWeighted.Div(nonZero(sumBidSize))
	makerAsk, ok3 := sumMakerAskWeighted.Div(nonZero(sumAskSize))
	takerAsk, ok4 := sumTakerAskWeighted.Div(nonZero(sumAskSize))
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, false
	}

	if isOutlier(dexRate, makerAsk) {
		return nil, false
	}

	return &models.FeeAdjustedQuote{
		Exchange:    models.ExchangeVWAP,
		TimestampUs: ts,
		PriceMaker:  models.BidAsk{Bid: makerBid, Ask: makerAsk},
		PriceTaker:  models.BidAsk{Bid: takerBid, Ask: takerAsk},
		Amount:      models.BidAsk{Bid: sumBidSize, Ask: sumAskSize},
	}, true
}

// isOutlier applies the x2 divergence guard used throughout §4.8/§4.3:
// min(a,b)*2 < max(a,b).
func isOutlier(a, b models.Amount) bool {
	lo, hi := a, b
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	two := rational.FromInt64(2)
	return lo.Mul(two).Cmp(hi) < 0
}

// IsOutlier exports the x2 divergence guard for reuse by the inspectors.
func IsOutlier(a, b models.Amount) bool { return isOutlier(a, b) }
