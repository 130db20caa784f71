package cex

import (
	"sort"
	"sync/atomic"

	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// WindowConfig is the run_time_window knob from spec.md §9: how far before
// and after the trigger timestamp a trade is eligible for markout pricing.
type WindowConfig struct {
	BeforeUs int64
	AfterUs  int64
}

// DefaultWindowConfig matches the post-trade-style 6-second (in µs) window
// used by the time-window VWAM (§4.4).
var DefaultWindowConfig = WindowConfig{BeforeUs: 6_000_000, AfterUs: 6_000_000}

// pathPrice is one exchange/path's contribution to a VWAM.
type pathPrice struct {
	exchange models.Exchange
	pairs    []models.Pair
	maker    models.Amount
	taker    models.Amount
	volume   models.Amount
}

// WindowExchangePrice is the output of CalculateTimeWindowVWAM: a global
// volume-weighted price plus the per-path breakdown it was built from.
type WindowExchangePrice struct {
	GlobalMaker models.Amount
	GlobalTaker models.Amount
	Paths       []pathPrice
}

// OptimisticPrice is the output of GetOptimisticVMAP: the markout-maximizing
// fill sequence and the resulting price.
type OptimisticPrice struct {
	PriceMaker     models.Amount
	PriceTaker     models.Amount
	ConsumedTrades []models.CexTrade
}

// TradeStore holds every CexTrade ingested for a block, indexed per
// exchange/pair and sorted by timestamp.
type TradeStore struct {
	trades           map[models.Exchange]map[models.Pair][]models.CexTrade
	fees             models.FeeTable
	missingPairCount atomic.Int64
}

// NewTradeStore builds a store from raw per-exchange trade lists, sorting
// each by timestamp.
func NewTradeStore(trades map[models.Exchange]map[models.Pair][]models.CexTrade, fees models.FeeTable) *TradeStore {
	ts := &TradeStore{
		trades: make(map[models.Exchange]map[models.Pair][]models.CexTrade, len(trades)),
		fees:   fees,
	}
	for ex, byPair := range trades {
		ts.trades[ex] = make(map[models.Pair][]models.CexTrade, len(byPair))
		for pair, list := range byPair {
			sorted := append([]models.CexTrade(nil), list...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampUs < sorted[j].TimestampUs })
			ts.trades[ex][pair] = sorted
		}
	}
	return ts
}

// MissingPairCount is the observability counter incremented whenever a
// marked (known CEX-DEX searcher) transaction fails to find any window
// volume (SPEC_FULL §12).
func (ts *TradeStore) MissingPairCount() int64 { return ts.missingPairCount.Load() }

func (ts *TradeStore) window(exchange models.Exchange, pair models.Pair, tsUs int64, cfg WindowConfig) []models.CexTrade {
	list := ts.trades[exchange][pair]
	lo := tsUs - cfg.BeforeUs
	hi := tsUs + cfg.AfterUs
	start := sort.Search(len(list), func(i int) bool { return list[i].TimestampUs >= lo })
	end := sort.Search(len(list), func(i int) bool { return list[i].TimestampUs > hi })
	if start >= end {
		return nil
	}
	return list[start:end]
}

// sideVWAM accumulates trades of the given side, in order, until cumulative
// amount reaches targetVol; returns the fee-adjusted VWAM price and the
// volume actually consumed (which may be less than targetVol if the window
// is thin).
func sideVWAM(trades []models.CexTrade, side models.TradeSide, targetVol, feeRate models.Amount) (price, volume models.Amount) {
	sumPV := rational.Zero()
	sumV := rational.Zero()
	for _, t := range trades {
		if t.Side != side {
			continue
		}
		sumPV = sumPV.Add(t.Price.Mul(t.Amount))
		sumV = sumV.Add(t.Amount)
		if sumV.Cmp(targetVol) >= 0 {
			break
		}
	}
	if sumV.IsZero() {
		return rational.Zero(), rational.Zero()
	}
	vwam, _ := sumPV.Div(sumV)
	one := rational.One()
	return vwam.Mul(one.Sub(feeRate)), sumV
}

func (ts *TradeStore) directPath(exchange models.Exchange, pair models.Pair, targetVol models.Amount, tsUs int64, cfg WindowConfig) (pathPrice, bool) {
	trades := ts.window(exchange, pair, tsUs, cfg)
	if len(trades) == 0 {
		return pathPrice{}, false
	}
	mt, _ := ts.fees.Lookup(exchange, pair)
	makerPrice, makerVol := sideVWAM(trades, models.TradeBuy, targetVol, mt.Maker)
	takerPrice, takerVol := sideVWAM(trades, models.TradeSell, targetVol, mt.Taker)
	vol := rational.Max(makerVol, takerVol)
	if vol.IsZero() {
		return pathPrice{}, false
	}
	return pathPrice{exchange: exchange, pairs: []models.Pair{pair}, maker: makerPrice, taker: takerPrice, volume: vol}, true
}

// indirectPath routes pair through intermediary m, converting the
// secondary leg via the quote store's best mid at tsUs and paying the
// taker fee twice (§4.4). The pair with the smaller normalized window
// volume is treated as "dominant" and drives the base VWAM; the other
// leg supplies only the conversion rate.
func (ts *TradeStore) indirectPath(exchange models.Exchange, pair models.Pair, m models.Address, targetVol models.Amount, tsUs int64, cfg WindowConfig, quotes *QuoteStore) (pathPrice, bool) {
	pairA := models.Pair{Token0: pair.Token0, Token1: m}
	pairB := models.Pair{Token0: m, Token1: pair.Token1}

	tradesA := ts.window(exchange, pairA, tsUs, cfg)
	tradesB := ts.window(exchange, pairB, tsUs, cfg)
	if len(tradesA) == 0 && len(tradesB) == 0 {
		return pathPrice{}, false
	}

	volA := sumAmount(tradesA)
	volB := sumAmount(tradesB)

	dominant, dominantPair, secondaryPair := pairA, pairA, pairB
	if volB.Cmp(volA) < 0 {
		dominant, dominantPair, secondaryPair = pairB, pairB, pairA
	}
	_ = dominant

	mt, _ := ts.fees.Lookup(exchange, dominantPair)
	dominantTrades := ts.window(exchange, dominantPair, tsUs, cfg)
	makerBase, makerVol := sideVWAM(dominantTrades, models.TradeBuy, targetVol, mt.Taker)
	takerBase, takerVol := sideVWAM(dominantTrades, models.TradeSell, targetVol, mt.Taker)
	vol := rational.Max(makerVol, takerVol)
	if vol.IsZero() {
		return pathPrice{}, false
	}

	secondaryMid := rational.One()
	if quotes != nil {
		if q, ok := quotes.GetQuoteAt(secondaryPair, exchange, tsUs, nil); ok {
			mid, _ := q.PriceMaker.Bid.Add(q.PriceMaker.Ask).Div(rational.FromInt64(2))
			secondaryMid = mid
		}
	}

	// The secondary leg pays its own taker fee on top of the dominant leg's.
	mtSecondary, _ := ts.fees.Lookup(exchange, secondaryPair)
	secondaryFee := rational.One().Sub(mtSecondary.Taker)

	return pathPrice{
		exchange: exchange,
		pairs:    []models.Pair{pairA, pairB},
		maker:    makerBase.Mul(secondaryMid).Mul(secondaryFee),
		taker:    takerBase.Mul(secondaryMid).Mul(secondaryFee),
		volume:   vol,
	}, true
}

func sumAmount(trades []models.CexTrade) models.Amount {
	sum := rational.Zero()
	for _, t := range trades {
		sum = sum.Add(t.Amount)
	}
	return sum
}

func (ts *TradeStore) intermediaryTokens(exchange models.Exchange, pair models.Pair) []models.Address {
	byPair := ts.trades[exchange]
	withT0 := map[models.Address]bool{}
	withT1 := map[models.Address]bool{}
	for p := range byPair {
		if p.Token0 == pair.Token0 {
			withT0[p.Token1] = true
		}
		if p.Token1 == pair.Token0 {
			withT0[p.Token0] = true
		}
		if p.Token0 == pair.Token1 {
			withT1[p.Token1] = true
		}
		if p.Token1 == pair.Token1 {
			withT1[p.Token0] = true
		}
	}
	var out []models.Address
	for a := range withT0 {
		if withT1[a] {
			out = append(out, a)
		}
	}
	return out
}

// CalculateTimeWindowVWAM implements §4.4 calculate_time_window_vwam:
// enumerates direct and intermediary paths per exchange within
// [ts-before, ts+after], and combines them into a single volume-weighted
// global price.
func (ts *TradeStore) CalculateTimeWindowVWAM(cfg WindowConfig, quotes *QuoteStore, exchanges []models.Exchange, pair models.Pair, targetVol models.Amount, tsUs int64, marked bool, txHash models.Hash) (*WindowExchangePrice, bool) {
	var paths []pathPrice
	for _, ex := range exchanges {
		if p, ok := ts.directPath(ex, pair, targetVol, tsUs, cfg); ok {
			paths = append(paths, p)
		}
		for _, m := range ts.intermediaryTokens(ex, pair) {
			if p, ok := ts.indirectPath(ex, pair, m, targetVol, tsUs, cfg, quotes); ok {
				paths = append(paths, p)
			}
		}
	}

	if len(paths) == 0 {
		if marked {
			ts.missingPairCount.Add(1)
		}
		return nil, false
	}

	totalVol := rational.Zero()
	makerNum := rational.Zero()
	takerNum := rational.Zero()
	for _, p := range paths {
		totalVol = totalVol.Add(p.volume)
		makerNum = makerNum.Add(p.maker.Mul(p.volume))
		takerNum = takerNum.Add(p.taker.Mul(p.volume))
	}
	gMaker, ok1 := makerNum.Div(nonZero(totalVol))
	gTaker, ok2 := takerNum.Div(nonZero(totalVol))
	if !ok1 || !ok2 {
		return nil, false
	}

	return &WindowExchangePrice{GlobalMaker: gMaker, GlobalTaker: gTaker, Paths: paths}, true
}

// GetOptimisticVMAP implements §4.4 get_optimistic_vmap: sorts eligible
// trades on pair itself, across every requested exchange, by markout
// (price - dexRate) descending and consumes the highest-markout fills first
// until targetVol is reached. Only direct trades on pair are considered;
// intermediary paths are not searched.
func (ts *TradeStore) GetOptimisticVMAP(cfg WindowConfig, exchanges []models.Exchange, pair models.Pair, targetVol models.Amount, tsUs int64, maxDtUs *int64, marked bool, dexRate models.Amount, txHash models.Hash) (*OptimisticPrice, bool) {
	type scored struct {
		trade  models.CexTrade
		markout models.Amount
	}
	var all []scored
	for _, ex := range exchanges {
		for _, t := range ts.window(ex, pair, tsUs, cfg) {
			if maxDtUs != nil {
				dt := t.TimestampUs - tsUs
				if dt < 0 {
					dt = -dt
				}
				if dt > *maxDtUs {
					continue
				}
			}
			all = append(all, scored{trade: t, markout: t.Price.Sub(dexRate)})
		}
	}
	if len(all) == 0 {
		if marked {
			ts.missingPairCount.Add(1)
		}
		return nil, false
	}

	sort.Slice(all, func(i, j int) bool { return all[i].markout.Cmp(all[j].markout) > 0 })

	sumPV := rational.Zero()
	sumV := rational.Zero()
	var consumed []models.CexTrade
	for _, s := range all {
		sumPV = sumPV.Add(s.trade.Price.Mul(s.trade.Amount))
		sumV = sumV.Add(s.trade.Amount)
		consumed = append(consumed, s.trade)
		if sumV.Cmp(targetVol) >= 0 {
			break
		}
	}
	if sumV.IsZero() {
		return nil, false
	}
	price, _ := sumPV.Div(sumV)

	mt, _ := ts.fees.Lookup(consumed[0].Exchange, pair)
	one := rational.One()
	return &OptimisticPrice{
		PriceMaker:     price.Mul(one.Sub(mt.Maker)),
		PriceTaker:     price.Mul(one.Sub(mt.Taker)),
		ConsumedTrades: consumed,
	}, true
}

// PerExchangeTrades returns, for each requested exchange, the trade list
// for pair restricted to that exchange (§4.4), used by the inspector to
// compute per-exchange PnL legs.
func (ts *TradeStore) PerExchangeTrades(exchanges []models.Exchange, pair models.Pair) map[models.Exchange][]models.CexTrade {
	out := make(map[models.Exchange][]models.CexTrade, len(exchanges))
	for _, ex := range exchanges {
		if list, ok := ts.trades[ex][pair]; ok {
			out[ex] = list
		}
	}
	return out
}
