package cexdex

import (
	"github.com/rawblock/mev-inspect-engine/internal/action"
	"github.com/rawblock/mev-inspect-engine/internal/cex"
	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/inspect"
	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// TradeInspector finds CexDexTrades/CexDexRfq bundles: a swap priced
// against actually executed CEX fills within a time window (spec.md §4.9).
type TradeInspector struct {
	cfg    config.Thresholds
	trades *cex.TradeStore
	quotes *cex.QuoteStore
	lookup action.AddressInfoLookup
	window cex.WindowConfig
}

// NewTradeInspector builds a TradeInspector.
func NewTradeInspector(cfg config.Thresholds, trades *cex.TradeStore, quotes *cex.QuoteStore, lookup action.AddressInfoLookup) *TradeInspector {
	window := cex.WindowConfig{BeforeUs: cfg.RunWindowBeforeUs, AfterUs: cfg.RunWindowAfterUs}
	return &TradeInspector{cfg: cfg, trades: trades, quotes: quotes, lookup: lookup, window: window}
}

// Inspect returns every CexDex trade-markout bundle discovered in block.
func (insp *TradeInspector) Inspect(block models.BlockTree, metadata models.Metadata, blockTsUs int64) []models.Bundle {
	var bundles []models.Bundle
	for _, tx := range block.Txes {
		if tx.IsRevert {
			continue
		}
		// §4.9 pre-filter: defi_automation contracts are a hard drop, not
		// an LLR penalty.
		if insp.lookup != nil {
			if ct, ok := insp.lookup.ContractTypeOf(tx.ToAddress); ok && ct == models.ContractTypeDefiAutomation {
				continue
			}
		}

		var swaps []models.Swap
		isBatchSourced := false

		// Batch flow: a resolver settlement (CoW, UniswapX) carries its
		// own intent-ordered user_swaps list; use that directly instead
		// of flattening/synthesizing from the settlement's internal trace.
		if batch := findBatch(tx.Root); batch != nil {
			swaps = batch.UserSwaps
			isBatchSourced = true
		} else {
			actions := action.Collect(tx, func(*models.Action) bool { return true })
			flat := action.FlattenNestedDefault(actions)
			var transfers []models.Transfer
			swaps, transfers = action.SplitSwapsTransfers(flat)
			if len(swaps) == 0 {
				if synth := action.TryCreateSwaps(transfers, []models.Address{tx.EOA, tx.ToAddress}); len(synth) > 0 {
					swaps = synth
				}
			}
			swaps = action.TrySwapsMerged(swaps)
		}
		if len(swaps) == 0 || triangularArb(swaps) {
			continue
		}
		if bundle, ok := insp.buildBundle(tx, swaps, block, metadata, blockTsUs, isBatchSourced); ok {
			bundles = append(bundles, bundle)
		}
	}
	return bundles
}

// findBatch returns the first Batch action node in tx's tree, or nil.
func findBatch(n *models.Action) *models.Batch {
	if n == nil {
		return nil
	}
	if n.Kind == models.ActionBatch {
		return n.BatchData
	}
	for _, c := range n.Children {
		if b := findBatch(c); b != nil {
			return b
		}
	}
	return nil
}

func (insp *TradeInspector) buildBundle(tx models.TxRoot, swaps []models.Swap, block models.BlockTree, metadata models.Metadata, tsUs int64, isBatchSourced bool) (models.Bundle, bool) {
	perExchangeLegs := make(map[models.Exchange][]models.CexDexTradeLeg)
	var globalLegs []models.CexDexTradeLeg
	var optimisticLegs []models.CexDexTradeLeg
	anyPriced := false
	// Bundle MEV type is CexDexRfq when the source action was a Batch
	// (§4.9), never inferred from fill shape.
	isRfq := isBatchSourced

	// The trade store's missing-pair counter only counts transactions
	// tagged as a known CEX-DEX searcher.
	txInfo := action.GetTxInfo(tx, insp.lookup, metadata.IsPrivate(tx.TxHash))
	marked := false
	for _, t := range []models.MevType{models.MevCexDexQuote, models.MevCexDexTrades, models.MevCexDexRfq} {
		if txInfo.IsLabelledSearcherOfType(t) || txInfo.IsSearcherOfTypeWithCountThreshold(t, insp.cfg.FilterThreshold) {
			marked = true
		}
	}

	for _, s := range swaps {
		pair := models.Pair{Token0: s.TokenIn, Token1: s.TokenOut}
		rate, ok := dexRate(s)
		if !ok {
			continue
		}
		targetVol := s.AmountIn

		if window, ok := insp.trades.CalculateTimeWindowVWAM(insp.window, insp.quotes, insp.cfg.Exchanges, pair, targetVol, tsUs, marked, tx.TxHash); ok {
			if pnlMaker, ok := legPnl(s, window.GlobalMaker, metadata, tx.TxIndex); ok {
				if pnlTaker, ok := legPnl(s, window.GlobalTaker, metadata, tx.TxIndex); ok {
					globalLegs = append(globalLegs, models.CexDexTradeLeg{
						ExchangeLeg: models.ExchangeLeg{Exchange: models.ExchangeVWAP, Swap: s, PnlMaker: pnlMaker, PnlTaker: pnlTaker, PnlMid: pnlMaker, PnlAsk: pnlTaker},
						TokenPrice:  window.GlobalMaker,
					})
					anyPriced = true
				}
			}
		}

		if optimistic, ok := insp.trades.GetOptimisticVMAP(insp.window, insp.cfg.Exchanges, pair, targetVol, tsUs, nil, marked, rate, tx.TxHash); ok {
			pnlMaker, okMaker := legPnl(s, optimistic.PriceMaker, metadata, tx.TxIndex)
			pnlTaker, okTaker := legPnl(s, optimistic.PriceTaker, metadata, tx.TxIndex)
			if okMaker && okTaker {
				optimisticLegs = append(optimisticLegs, models.CexDexTradeLeg{
					ExchangeLeg:    models.ExchangeLeg{Exchange: models.ExchangeVWAP, Swap: s, PnlMaker: pnlMaker, PnlTaker: pnlTaker, PnlMid: pnlMaker, PnlAsk: pnlTaker},
					CexPath:        []models.Pair{pair},
					ConsumedTrades: optimistic.ConsumedTrades,
					TokenPrice:     optimistic.PriceMaker,
				})
				anyPriced = true
			}
		}

		for _, exName := range insp.cfg.Exchanges {
			exTrades := insp.trades.PerExchangeTrades([]models.Exchange{exName}, pair)[exName]
			if len(exTrades) == 0 {
				continue
			}
			if window, ok := insp.trades.CalculateTimeWindowVWAM(insp.window, insp.quotes, []models.Exchange{exName}, pair, targetVol, tsUs, false, tx.TxHash); ok {
				pnlMaker, okMaker := legPnl(s, window.GlobalMaker, metadata, tx.TxIndex)
				pnlTaker, okTaker := legPnl(s, window.GlobalTaker, metadata, tx.TxIndex)
				if okMaker && okTaker {
					perExchangeLegs[exName] = append(perExchangeLegs[exName], models.CexDexTradeLeg{
						ExchangeLeg: models.ExchangeLeg{Exchange: exName, Swap: s, PnlMaker: pnlMaker, PnlTaker: pnlTaker, PnlMid: pnlMaker, PnlAsk: pnlTaker},
						TokenPrice:  window.GlobalMaker,
					})
				}
			}
		}
	}

	if !anyPriced {
		return models.Bundle{}, false
	}

	var perExchangeAgg []models.ExchangeAggregate
	for exName, legs := range perExchangeLegs {
		agg := models.ExchangeAggregate{Exchange: exName}
		for _, l := range legs {
			agg.PnlMaker = agg.PnlMaker.Add(l.PnlMaker)
			agg.PnlTaker = agg.PnlTaker.Add(l.PnlTaker)
			agg.PnlMid = agg.PnlMid.Add(l.PnlMid)
			agg.PnlAsk = agg.PnlAsk.Add(l.PnlAsk)
		}
		perExchangeAgg = append(perExchangeAgg, agg)
	}

	profit := rational.Zero()
	for _, l := range optimisticLegs {
		profit = profit.Add(l.PnlTaker)
	}

	noPricing := false
	// is_profitable_outlier convention (§9 Open Question, trade inspector):
	// executed fills are harder to spoof than quotes, so the guard here is
	// looser — 5x the configured high-profit threshold, rather than the
	// quote inspector's 2x divergence guard.
	outlierBound := insp.cfg.HighProfitThresholdUsd.Mul(rational.FromInt64(5))
	if profit.Cmp(outlierBound) > 0 {
		noPricing = true
	}
	if profit.Cmp(insp.cfg.MaxProfitUsd) > 0 || profit.Cmp(insp.cfg.MinProfitUsd) < 0 {
		noPricing = true
	}

	mevType := models.MevCexDexTrades
	if isRfq {
		mevType = models.MevCexDexRfq
	}
	header := inspect.BuildBundleHeader(block.Header.BlockNumber, []models.Hash{tx.TxHash}, txInfo, profit, []models.GasDetails{tx.GasDetails}, metadata, mevType, noPricing)

	data := models.CexDexTradesData{
		Swaps:           swaps,
		GlobalVwamLegs:  globalLegs,
		OptimisticLegs:  optimisticLegs,
		PerExchangeAgg:  perExchangeAgg,
		PerExchangeLegs: perExchangeLegs,
		GasDetails:      tx.GasDetails,
		IsRfq:           isRfq,
	}
	return models.Bundle{Header: header, Data: data}, true
}
