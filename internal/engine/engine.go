// Package engine orchestrates one block's worth of MEV classification:
// it runs every strategy inspector (sandwich, JIT, CEX-DEX quote, CEX-DEX
// markout) concurrently over a BlockTree, runs the accept/reject sanity
// filter over the union of their bundles, and persists the surviving set.
package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/rawblock/mev-inspect-engine/internal/action"
	"github.com/rawblock/mev-inspect-engine/internal/cex"
	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/inspect/cexdex"
	"github.com/rawblock/mev-inspect-engine/internal/inspect/jit"
	"github.com/rawblock/mev-inspect-engine/internal/inspect/sandwich"
	"github.com/rawblock/mev-inspect-engine/internal/sanity"
	"github.com/rawblock/mev-inspect-engine/internal/shadow"
	"github.com/rawblock/mev-inspect-engine/internal/storage"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// Alert is emitted for every accepted bundle, for the websocket broadcaster.
type Alert struct {
	BlockNumber uint64
	TxIndex     int
	MevType     models.MevType
	ProfitUsd   models.Amount
	Confidence  float64
}

// Engine wires the four strategy inspectors, the sanity filter, and a
// storage backend into one per-block pipeline.
type Engine struct {
	cfg    config.Thresholds
	store  storage.Store
	quotes *cex.QuoteStore
	trades *cex.TradeStore

	alertFunc func(Alert) // optional broadcast callback

	shadowRunner *shadow.ShadowRunner // optional; compares cfg against an experimental config

	// Progress tracking, mirroring the teacher's atomic scan counters.
	totalBlocks  atomic.Int64
	totalBundles atomic.Int64
	isRunning    atomic.Bool
}

// New builds an Engine. quotes/trades may be nil if the CEX-DEX inspectors
// are not wired for this deployment (e.g. a backfill over blocks with no
// CEX market-data coverage).
func New(cfg config.Thresholds, store storage.Store, quotes *cex.QuoteStore, trades *cex.TradeStore, alertFunc func(Alert)) *Engine {
	return &Engine{cfg: cfg, store: store, quotes: quotes, trades: trades, alertFunc: alertFunc}
}

// SetShadowRunner wires a shadow comparison pass into every ProcessBlock
// call: every candidate bundle (not just accepted ones) is re-evaluated
// under the shadow config and the divergence recorded, without the shadow
// verdict affecting what gets persisted or alerted on.
func (e *Engine) SetShadowRunner(sr *shadow.ShadowRunner) {
	e.shadowRunner = sr
}

// Progress is the engine's current throughput counters, for the API layer.
type Progress struct {
	IsRunning    bool
	TotalBlocks  int64
	TotalBundles int64
}

func (e *Engine) Progress() Progress {
	return Progress{
		IsRunning:    e.isRunning.Load(),
		TotalBlocks:  e.totalBlocks.Load(),
		TotalBundles: e.totalBundles.Load(),
	}
}

// ProcessBlock runs every inspector over block, filters the result through
// the sanity layer, persists the accepted bundles, and emits an Alert per
// bundle. Inspectors run concurrently, one goroutine each; every goroutine
// writes only its own slot of a results slice and none mutate shared state,
// so a WaitGroup is the only synchronization needed. With no store, the
// inspectors run without address-label lookups and nothing is persisted.
func (e *Engine) ProcessBlock(ctx context.Context, block models.BlockTree, metadata models.Metadata) ([]models.Bundle, error) {
	e.totalBlocks.Add(1)

	var lookup action.AddressInfoLookup
	if e.store != nil {
		lookup = storage.NewAddressLookup(ctx, e.store)
	}

	type result struct {
		name    string
		bundles []models.Bundle
	}

	blockTsUs := int64(metadata.BlockTimestampS) * 1_000_000

	jobs := []func() result{
		func() result {
			insp := sandwich.New(e.cfg, lookup)
			return result{"sandwich", insp.Inspect(block, metadata)}
		},
		func() result {
			insp := jit.New(e.cfg, lookup)
			return result{"jit", insp.Inspect(block, metadata)}
		},
	}
	if e.quotes != nil {
		jobs = append(jobs, func() result {
			insp := cexdex.NewQuoteInspector(e.cfg, e.quotes, lookup)
			return result{"cexdex_quote", insp.Inspect(block, metadata, blockTsUs)}
		})
	}
	if e.trades != nil && e.quotes != nil {
		jobs = append(jobs, func() result {
			insp := cexdex.NewTradeInspector(e.cfg, e.trades, e.quotes, lookup)
			return result{"cexdex_trade", insp.Inspect(block, metadata, blockTsUs)}
		})
	}

	results := make([]result, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job func() result) {
			defer wg.Done()
			results[i] = job()
		}(i, job)
	}
	wg.Wait()

	var all []models.Bundle
	for _, r := range results {
		log.Printf("[engine] block %d: %s found %d candidate bundle(s)", block.Header.BlockNumber, r.name, len(r.bundles))
		all = append(all, r.bundles...)
	}

	txInfoByHash := action.GetTxInfoBatch(block.Txes, bundleTxHashes(all), lookup, metadata.PrivateFlow)

	if e.shadowRunner != nil {
		for _, b := range all {
			if _, err := e.shadowRunner.RunShadowAnalysis(ctx, b.Header, txInfoByHash[leadTxHash(b)], involvedTokens(b)); err != nil {
				log.Printf("[engine] shadow analysis failed for block %d tx %d: %v", block.Header.BlockNumber, b.Header.TxIndex, err)
			}
		}
	}

	accepted := sanity.Filter(e.cfg, all,
		func(b models.Bundle) models.TxInfo {
			return txInfoByHash[leadTxHash(b)]
		},
		func(b models.Bundle) []models.Address {
			return involvedTokens(b)
		},
	)

	if e.store != nil {
		if err := e.store.SaveMevBlocks(ctx, block.Header.BlockNumber, accepted); err != nil {
			return accepted, err
		}
		missingPairs := int64(0)
		if e.trades != nil {
			missingPairs = e.trades.MissingPairCount()
		}
		if err := e.store.WriteBlockAnalysis(ctx, block.Header.BlockNumber, len(accepted), missingPairs); err != nil {
			return accepted, err
		}
	}

	e.totalBundles.Add(int64(len(accepted)))

	if e.alertFunc != nil {
		for _, b := range accepted {
			verdict := sanity.Evaluate(e.cfg, b.Header, txInfoByHash[leadTxHash(b)], involvedTokens(b))
			e.alertFunc(Alert{
				BlockNumber: block.Header.BlockNumber,
				TxIndex:     b.Header.TxIndex,
				MevType:     b.Header.MevType,
				ProfitUsd:   b.Header.ProfitUsd,
				Confidence:  verdict.Confidence,
			})
		}
	}

	return accepted, nil
}

// leadTxHash returns the bundle's backrun/trigger tx hash: the last entry
// in TxHashes by convention (inspectors append frontrun/victim hashes
// before the searcher's final leg).
func leadTxHash(b models.Bundle) models.Hash {
	if len(b.Header.TxHashes) == 0 {
		return models.Hash{}
	}
	return b.Header.TxHashes[len(b.Header.TxHashes)-1]
}

func bundleTxHashes(bundles []models.Bundle) []models.Hash {
	var hashes []models.Hash
	for _, b := range bundles {
		hashes = append(hashes, b.Header.TxHashes...)
	}
	return hashes
}

// involvedTokens extracts every token address referenced by a bundle's
// swaps, for the sanity layer's stable-pair suppression signal.
func involvedTokens(b models.Bundle) []models.Address {
	seen := make(map[models.Address]bool)
	add := func(a models.Address) { seen[a] = true }
	addSwap := func(s models.Swap) { add(s.TokenIn); add(s.TokenOut) }

	switch d := b.Data.(type) {
	case models.SandwichData:
		for _, swaps := range d.FrontrunSwaps {
			for _, s := range swaps {
				addSwap(s)
			}
		}
		for _, swaps := range d.VictimSwaps {
			for _, s := range swaps {
				addSwap(s)
			}
		}
		for _, s := range d.BackrunSwaps {
			addSwap(s)
		}
	case models.JitData:
		for _, swaps := range d.VictimSwaps {
			for _, s := range swaps {
				addSwap(s)
			}
		}
	case models.CexDexQuoteData:
		for _, s := range d.Swaps {
			addSwap(s)
		}
	case models.CexDexTradesData:
		for _, s := range d.Swaps {
			addSwap(s)
		}
	}

	tokens := make([]models.Address, 0, len(seen))
	for t := range seen {
		tokens = append(tokens, t)
	}
	return tokens
}
