// Package sandwich implements the sandwich-attack inspector (spec.md
// §4.6): candidate discovery by duplicate sender/contract, recursive
// shrinking against a pool-overlap guard, and profit accounting.
package sandwich

import (
	"sort"

	"github.com/rawblock/mev-inspect-engine/internal/action"
	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/inspect"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// Inspector finds sandwich bundles in one block.
type Inspector struct {
	cfg    config.Thresholds
	lookup action.AddressInfoLookup
}

// New builds a sandwich Inspector.
func New(cfg config.Thresholds, lookup action.AddressInfoLookup) *Inspector {
	return &Inspector{cfg: cfg, lookup: lookup}
}

// candidate is a chain of same-actor tx positions with the victim groups
// sandwiched between consecutive occurrences. len(frontrun) >= 1.
type candidate struct {
	frontrun []int // ascending tx indices, strictly before backrun
	backrun  int
	victims  [][]int // one group per (frontrun[i], frontrun[i+1] or backrun) gap
}

func (c candidate) key() string {
	b := make([]byte, 0, (len(c.frontrun)+1)*4)
	for _, i := range c.frontrun {
		b = appendInt(b, i)
	}
	b = appendInt(b, c.backrun)
	return string(b)
}

func appendInt(b []byte, n int) []byte {
	return append(b, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

// Inspect returns every sandwich bundle discovered in block.
func (insp *Inspector) Inspect(block models.BlockTree, metadata models.Metadata) []models.Bundle {
	candidates := insp.discoverCandidates(block)

	var bundles []models.Bundle
	for _, c := range candidates {
		if bundle, ok := insp.buildBundle(c, block, metadata, 0); ok {
			bundles = append(bundles, bundle)
		}
	}
	return bundles
}

// discoverCandidates runs the duplicate-sender pass and the duplicate-
// contract pass and merges their results uniquely by position signature
// (§4.6 "results are merged uniquely").
func (insp *Inspector) discoverCandidates(block models.BlockTree) []candidate {
	bySender := make(map[models.Address][]int)
	byContract := make(map[models.Address][]int)
	for i, tx := range block.Txes {
		if tx.IsRevert {
			continue
		}
		bySender[tx.EOA] = append(bySender[tx.EOA], i)
		byContract[tx.ToAddress] = append(byContract[tx.ToAddress], i)
	}

	seen := make(map[string]bool)
	var out []candidate
	addFrom := func(byKey map[models.Address][]int) {
		for _, positions := range byKey {
			if len(positions) < 2 {
				continue
			}
			sort.Ints(positions)
			c := candidate{
				frontrun: append([]int(nil), positions[:len(positions)-1]...),
				backrun:  positions[len(positions)-1],
			}
			bounds := append(append([]int(nil), c.frontrun...), c.backrun)
			for i := 0; i+1 < len(bounds); i++ {
				var group []int
				for t := bounds[i] + 1; t < bounds[i+1]; t++ {
					group = append(group, t)
				}
				c.victims = append(c.victims, group)
			}
			if k := c.key(); !seen[k] {
				seen[k] = true
				out = append(out, c)
			}
		}
	}
	addFrom(bySender)
	addFrom(byContract)

	var filtered []candidate
	for _, c := range out {
		totalVictims, nonEmptyGroups := 0, 0
		for _, g := range c.victims {
			if len(g) > 0 {
				nonEmptyGroups++
			}
			totalVictims += len(g)
		}
		if nonEmptyGroups == 0 {
			continue // no victims at all: not a sandwich
		}
		if len(c.victims) > insp.cfg.MaxVictimGroups || totalVictims > insp.cfg.MaxTotalVictims {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// buildBundle attempts to validate and price candidate c, recursively
// shrinking (dropping the outermost frontrun/victim-group pair) when the
// pool-overlap guard fails, up to SandwichMaxRecursion deep.
func (insp *Inspector) buildBundle(c candidate, block models.BlockTree, metadata models.Metadata, depth int) (models.Bundle, bool) {
	if len(c.frontrun) == 0 || depth > insp.cfg.SandwichMaxRecursion {
		return models.Bundle{}, false
	}

	searcherTxes := append(append([]int(nil), c.frontrun...), c.backrun)
	var victimIdx []int
	for _, g := range c.victims {
		victimIdx = append(victimIdx, g...)
	}
	if len(victimIdx) == 0 {
		return models.Bundle{}, false
	}

	frontrunSwaps := make([][]models.Swap, len(c.frontrun))
	var searcherGas []models.GasDetails
	var deltas []inspect.Delta
	searcherPools := make(map[models.Address]bool)
	var backrunSwaps []models.Swap
	var allSearcherSwaps []models.Swap
	mevAddrs := searcherAddresses(block, searcherTxes)

	for slot, txIdx := range searcherTxes {
		tx := block.Txes[txIdx]
		actions := action.Collect(tx, func(*models.Action) bool { return true })
		flat := action.FlattenNestedDefault(actions)
		swaps, transfers := action.SplitSwapsTransfers(flat)
		if len(swaps) == 0 {
			if synth := action.TryCreateSwaps(transfers, mevAddrs); len(synth) > 0 {
				swaps = synth
			}
		}
		swaps = action.TrySwapsMerged(swaps)
		for _, s := range swaps {
			searcherPools[s.Pool] = true
		}
		allSearcherSwaps = append(allSearcherSwaps, swaps...)
		if txIdx == c.backrun {
			backrunSwaps = swaps
		} else {
			frontrunSwaps[slot] = swaps
		}
		deltas = append(deltas, transferDeltas(transfers)...)
		deltas = append(deltas, ethTransferDeltas(action.CollectByKind(flat, models.ActionEthTransfer))...)
		searcherGas = append(searcherGas, tx.GasDetails)
	}

	if len(searcherPools) == 0 {
		return insp.shrink(c, block, metadata, depth)
	}

	// Require at least one pool the backrun shares with some frontrun tx.
	backrunPoolSet := make(map[models.Address]bool)
	for _, s := range backrunSwaps {
		backrunPoolSet[s.Pool] = true
	}
	sharedFrontBack := false
	for _, swaps := range frontrunSwaps {
		for _, s := range swaps {
			if backrunPoolSet[s.Pool] {
				sharedFrontBack = true
			}
		}
	}

	victimSwapsByTx := make(map[int][]models.Swap)
	overlappingGroups, nonEmptyGroups := 0, 0
	var victimTxHashes []models.Hash
	var victimSwapsOrdered [][]models.Swap
	for _, group := range c.victims {
		if len(group) == 0 {
			continue
		}
		nonEmptyGroups++
		groupOverlap := false
		for _, txIdx := range group {
			tx := block.Txes[txIdx]
			if tx.IsRevert {
				continue
			}
			actions := action.Collect(tx, func(*models.Action) bool { return true })
			flat := action.FlattenNestedDefault(actions)
			swaps, _ := action.SplitSwapsTransfers(flat)
			victimSwapsByTx[txIdx] = swaps
			for _, s := range swaps {
				if searcherPools[s.Pool] {
					groupOverlap = true
				}
			}
		}
		if groupOverlap {
			overlappingGroups++
		}
	}
	for _, g := range c.victims {
		for _, txIdx := range g {
			tx := block.Txes[txIdx]
			if tx.IsRevert {
				continue
			}
			if swaps, ok := victimSwapsByTx[txIdx]; ok && len(swaps) > 0 {
				victimTxHashes = append(victimTxHashes, tx.TxHash)
				victimSwapsOrdered = append(victimSwapsOrdered, swaps)
			}
		}
	}

	overlapRatioOK := nonEmptyGroups > 0 && overlappingGroups*4 >= nonEmptyGroups // >= 25%
	if !sharedFrontBack || !overlapRatioOK || len(victimTxHashes) == 0 {
		return insp.shrink(c, block, metadata, depth)
	}

	backrunTx := block.Txes[c.backrun]
	backrunInfo := action.GetTxInfo(backrunTx, insp.lookup, metadata.IsPrivate(backrunTx.TxHash))

	revenue, ok := inspect.GetDeltasUSD(c.backrun, models.PriceAfter, mevAddrs, deltas, metadata, true)
	noPricing := !ok
	gasUsd := inspect.GasPaidUsd(searcherGas, metadata.EthPriceUsd)
	profit := revenue.Sub(gasUsd)

	frontrunSwapCount := 0
	for _, swaps := range frontrunSwaps {
		frontrunSwapCount += len(swaps)
	}
	if frontrunSwapCount == 0 && profit.Cmp(insp.cfg.MaxNonSwapFrontrunUsd) > 0 {
		noPricing = true
	}
	involvedTokens := swapTokens(allSearcherSwaps)
	if !noPricing && !inspect.ValidPricing(metadata, allSearcherSwaps, involvedTokens, c.backrun, insp.cfg.MaxPriceDiff) {
		noPricing = true
	}
	if profit.Cmp(insp.cfg.MaxProfitUsd) > 0 || profit.Cmp(insp.cfg.MinProfitUsd) < 0 {
		noPricing = true
	}

	var frontrunHashes []models.Hash
	for _, txIdx := range c.frontrun {
		frontrunHashes = append(frontrunHashes, block.Txes[txIdx].TxHash)
	}
	allHashes := append(append([]models.Hash(nil), frontrunHashes...), victimTxHashes...)
	allHashes = append(allHashes, backrunTx.TxHash)

	header := inspect.BuildBundleHeader(block.Header.BlockNumber, allHashes, backrunInfo, profit, searcherGas, metadata, models.MevSandwich, noPricing)

	data := models.SandwichData{
		FrontrunTxHashes: frontrunHashes,
		FrontrunSwaps:    frontrunSwaps,
		VictimTxHashes:   victimTxHashes,
		VictimSwaps:      victimSwapsOrdered,
		BackrunTxHash:    backrunTx.TxHash,
		BackrunSwaps:     backrunSwaps,
		GasDetails:       searcherGas,
	}

	return models.Bundle{Header: header, Data: data}, true
}

// shrink drops the outermost frontrun tx and its adjacent victim group and
// retries, bounded by SandwichMaxRecursion (§4.6 recursive shrinking).
func (insp *Inspector) shrink(c candidate, block models.BlockTree, metadata models.Metadata, depth int) (models.Bundle, bool) {
	if len(c.frontrun) <= 1 {
		return models.Bundle{}, false
	}
	shrunk := candidate{
		frontrun: c.frontrun[1:],
		backrun:  c.backrun,
		victims:  c.victims[1:],
	}
	return insp.buildBundle(shrunk, block, metadata, depth+1)
}

func searcherAddresses(block models.BlockTree, txIdx []int) []models.Address {
	seen := make(map[models.Address]bool)
	var out []models.Address
	for _, i := range txIdx {
		tx := block.Txes[i]
		for _, a := range []models.Address{tx.EOA, tx.ToAddress} {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

func transferDeltas(transfers []models.Transfer) []inspect.Delta {
	var out []inspect.Delta
	for _, t := range transfers {
		out = append(out,
			inspect.Delta{Address: t.From, Token: t.Token, Amount: t.Amount.Neg()},
			inspect.Delta{Address: t.To, Token: t.Token, Amount: t.Amount},
		)
	}
	return out
}

func ethTransferDeltas(actions []*models.Action) []inspect.Delta {
	var out []inspect.Delta
	for _, a := range actions {
		e := a.EthTransferData
		out = append(out,
			inspect.Delta{Address: e.From, Token: models.ZeroAddress, Amount: e.Value.Neg()},
			inspect.Delta{Address: e.To, Token: models.ZeroAddress, Amount: e.Value},
		)
	}
	return out
}

func swapTokens(swaps []models.Swap) []models.Address {
	seen := make(map[models.Address]bool)
	var out []models.Address
	for _, s := range swaps {
		for _, t := range []models.Address{s.TokenIn, s.TokenOut} {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
