package cexdex

import (
	"github.com/rawblock/mev-inspect-engine/internal/action"
	"github.com/rawblock/mev-inspect-engine/internal/cex"
	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/inspect"
	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// QuoteInspector finds CexDex (quote-based) bundles: a swap priced against
// live order-book quotes on each configured exchange, plus a cross-exchange
// volume-weighted synthetic quote (spec.md §4.8).
type QuoteInspector struct {
	cfg    config.Thresholds
	quotes *cex.QuoteStore
	lookup action.AddressInfoLookup
}

// NewQuoteInspector builds a QuoteInspector.
func NewQuoteInspector(cfg config.Thresholds, quotes *cex.QuoteStore, lookup action.AddressInfoLookup) *QuoteInspector {
	return &QuoteInspector{cfg: cfg, quotes: quotes, lookup: lookup}
}

// Inspect returns every CexDex quote bundle discovered in block. blockTsUs
// is the uniform quote-lookup timestamp (microseconds) used for every tx in
// the block; a real deployment would carry a per-tx mempool-observed
// timestamp, but the classified BlockTree only preserves block-level time.
func (insp *QuoteInspector) Inspect(block models.BlockTree, metadata models.Metadata, blockTsUs int64) []models.Bundle {
	var bundles []models.Bundle
	for _, tx := range block.Txes {
		if tx.IsRevert {
			continue
		}
		// §4.8 pre-filter: only non-solver, non-defi-automation contracts
		// are considered; this is a hard drop, not an LLR penalty.
		if insp.lookup != nil {
			if ct, ok := insp.lookup.ContractTypeOf(tx.ToAddress); ok &&
				(ct == models.ContractTypeSolverSettlement || ct == models.ContractTypeDefiAutomation) {
				continue
			}
		}
		actions := action.Collect(tx, func(*models.Action) bool { return true })
		flat := action.FlattenNestedDefault(actions)
		swaps, transfers := action.SplitSwapsTransfers(flat)
		if len(swaps) == 0 {
			if synth := action.TryCreateSwaps(transfers, []models.Address{tx.EOA, tx.ToAddress}); len(synth) > 0 {
				swaps = synth
			}
		}
		swaps = action.TrySwapsMerged(swaps)
		if len(swaps) == 0 || triangularArb(swaps) {
			continue
		}
		if bundle, ok := insp.buildBundle(tx, swaps, block, metadata, blockTsUs); ok {
			bundles = append(bundles, bundle)
		}
	}
	return bundles
}

func (insp *QuoteInspector) buildBundle(tx models.TxRoot, swaps []models.Swap, block models.BlockTree, metadata models.Metadata, tsUs int64) (models.Bundle, bool) {
	perExchangeLegs := make(map[models.Exchange][]models.ExchangeLeg)
	var globalVmapLegs []models.ExchangeLeg
	var optimalRouteLegs []models.ExchangeLeg
	anyPriced := false

	for _, s := range swaps {
		pair := models.Pair{Token0: s.TokenIn, Token1: s.TokenOut}
		rate, ok := dexRate(s)
		if !ok {
			continue
		}

		var legsForSwap []models.ExchangeLeg
		var quotesForSwap []models.FeeAdjustedQuote
		for _, exName := range insp.cfg.Exchanges {
			q, ok := insp.quotes.GetQuoteDirectOrViaIntermediary(pair, exName, tsUs, nil)
			if !ok {
				continue
			}
			quotesForSwap = append(quotesForSwap, *q)

			makerMid := mid(q.PriceMaker)
			takerMid := mid(q.PriceTaker)
			pnlMid, okMid := legPnl(s, makerMid, metadata, tx.TxIndex)
			pnlAsk, okAsk := legPnl(s, q.PriceMaker.Ask, metadata, tx.TxIndex)
			pnlMaker, okMaker := legPnl(s, makerMid, metadata, tx.TxIndex)
			pnlTaker, okTaker := legPnl(s, takerMid, metadata, tx.TxIndex)
			if !okMid || !okAsk || !okMaker || !okTaker {
				continue
			}
			leg := models.ExchangeLeg{Exchange: exName, Swap: s, PnlMid: pnlMid, PnlAsk: pnlAsk, PnlMaker: pnlMaker, PnlTaker: pnlTaker}
			legsForSwap = append(legsForSwap, leg)
			perExchangeLegs[exName] = append(perExchangeLegs[exName], leg)
			anyPriced = true
		}

		if vwap, ok := cex.GetVolumeWeightedQuote(quotesForSwap, rate); ok {
			vwapMid := mid(vwap.PriceMaker)
			if pnl, ok := legPnl(s, vwapMid, metadata, tx.TxIndex); ok {
				globalVmapLegs = append(globalVmapLegs, models.ExchangeLeg{
					Exchange: models.ExchangeVWAP, Swap: s,
					PnlMid: pnl, PnlAsk: pnl, PnlMaker: pnl, PnlTaker: pnl,
				})
			}
		}

		if best, ok := maxProfitRoute(legsForSwap); ok {
			optimalRouteLegs = append(optimalRouteLegs, best)
		}
	}

	if !anyPriced {
		return models.Bundle{}, false
	}

	var perExchangeAgg []models.ExchangeAggregate
	for exName, legs := range perExchangeLegs {
		agg := models.ExchangeAggregate{Exchange: exName}
		for _, l := range legs {
			agg.PnlMid = agg.PnlMid.Add(l.PnlMid)
			agg.PnlAsk = agg.PnlAsk.Add(l.PnlAsk)
			agg.PnlMaker = agg.PnlMaker.Add(l.PnlMaker)
			agg.PnlTaker = agg.PnlTaker.Add(l.PnlTaker)
		}
		perExchangeAgg = append(perExchangeAgg, agg)
	}

	profit := rational.Zero()
	for _, leg := range optimalRouteLegs {
		profit = profit.Add(leg.PnlAsk)
	}

	// has_outlier_pnl convention (§9 Open Question, quote inspector): quote
	// data is cheap to spoof, so if any route leg's pnl diverges from the
	// matching VWAP leg by more than 2x the bundle is marked no_pricing
	// (its profit is then reported as zero) rather than reported at an
	// inflated profit.
	noPricing := false
	for _, vwapLeg := range globalVmapLegs {
		for _, routeLeg := range optimalRouteLegs {
			if routeLeg.Swap.TraceIndex != vwapLeg.Swap.TraceIndex {
				continue
			}
			if !vwapLeg.PnlMid.IsZero() && cex.IsOutlier(vwapLeg.PnlMid, routeLeg.PnlAsk) {
				noPricing = true
			}
		}
	}
	if profit.Cmp(insp.cfg.MaxProfitUsd) > 0 || profit.Cmp(insp.cfg.MinProfitUsd) < 0 {
		noPricing = true
	}

	txInfo := action.GetTxInfo(tx, insp.lookup, metadata.IsPrivate(tx.TxHash))
	header := inspect.BuildBundleHeader(block.Header.BlockNumber, []models.Hash{tx.TxHash}, txInfo, profit, []models.GasDetails{tx.GasDetails}, metadata, models.MevCexDexQuote, noPricing)

	data := models.CexDexQuoteData{
		Swaps:            swaps,
		GlobalVmapLegs:   globalVmapLegs,
		OptimalRouteLegs: optimalRouteLegs,
		PerExchangeAgg:   perExchangeAgg,
		PerExchangeLegs:  perExchangeLegs,
		GasDetails:       tx.GasDetails,
	}
	return models.Bundle{Header: header, Data: data}, true
}

// maxProfitRoute implements §4.8 construct_max_profit_route: the exchange
// leg with the largest ask-side pnl.
func maxProfitRoute(legs []models.ExchangeLeg) (models.ExchangeLeg, bool) {
	if len(legs) == 0 {
		return models.ExchangeLeg{}, false
	}
	best := legs[0]
	for _, l := range legs[1:] {
		if l.PnlAsk.Cmp(best.PnlAsk) > 0 {
			best = l
		}
	}
	return best, true
}
