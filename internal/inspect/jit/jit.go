// Package jit implements the just-in-time liquidity inspector (spec.md
// §4.7): a searcher mints liquidity immediately before a victim swap and
// burns it immediately after, capturing the swap fee without directional
// price exposure.
package jit

import (
	"sort"

	"github.com/rawblock/mev-inspect-engine/internal/action"
	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/inspect"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// Inspector finds JIT-liquidity bundles in one block.
type Inspector struct {
	cfg    config.Thresholds
	lookup action.AddressInfoLookup
}

// New builds a Jit Inspector.
func New(cfg config.Thresholds, lookup action.AddressInfoLookup) *Inspector {
	return &Inspector{cfg: cfg, lookup: lookup}
}

type candidate struct {
	frontrun int
	victims  []int
	backrun  int
}

// Inspect returns every JIT bundle discovered in block.
func (insp *Inspector) Inspect(block models.BlockTree, metadata models.Metadata) []models.Bundle {
	var bundles []models.Bundle
	for _, c := range insp.discoverCandidates(block) {
		if bundle, ok := insp.buildBundle(c, block, metadata, 0); ok {
			bundles = append(bundles, bundle)
		}
	}
	return bundles
}

// discoverCandidates pairs same-actor tx positions (by sender, then by
// contract) where the earlier tx carries a Mint and the later a
// Burn/Collect, with every transaction strictly between them treated as
// the victim group (§4.7, frontrun-eoa == backrun-eoa requirement).
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

	seen := make(map[[2]int]bool)
	var out []candidate
	addFrom := func(byKey map[models.Address][]int) {
		for _, positions := range byKey {
			if len(positions) < 2 {
				continue
			}
			sort.Ints(positions)
			for i := 0; i < len(positions); i++ {
				for j := i + 1; j < len(positions); j++ {
					front, back := positions[i], positions[j]
					if !hasMint(block.Txes[front]) || !hasBurnOrCollect(block.Txes[back]) {
						continue
					}
					key := [2]int{front, back}
					if seen[key] {
						continue
					}
					seen[key] = true
					var victims []int
					for t := front + 1; t < back; t++ {
						victims = append(victims, t)
					}
					if len(victims) == 0 {
						continue
					}
					out = append(out, candidate{frontrun: front, victims: victims, backrun: back})
				}
			}
		}
	}
	addFrom(bySender)
	addFrom(byContract)
	return out
}

func hasMint(tx models.TxRoot) bool {
	return len(action.Collect(tx, func(a *models.Action) bool { return a.Kind == models.ActionMint })) > 0
}

func hasBurnOrCollect(tx models.TxRoot) bool {
	return len(action.Collect(tx, func(a *models.Action) bool {
		return a.Kind == models.ActionBurn || a.Kind == models.ActionCollect
	})) > 0
}

func (insp *Inspector) buildBundle(c candidate, block models.BlockTree, metadata models.Metadata, depth int) (models.Bundle, bool) {
	if depth > insp.cfg.JitMaxRecursion {
		return models.Bundle{}, false
	}

	frontTx := block.Txes[c.frontrun]
	backTx := block.Txes[c.backrun]

	// §4.7: the minter and burner must be the same actor.
	if frontTx.EOA != backTx.EOA {
		return models.Bundle{}, false
	}

	mints := mintsOf(frontTx)
	burns := burnsOf(backTx)
	if len(mints) == 0 || len(burns) == 0 {
		return insp.shrink(c, block, metadata, depth)
	}

	mintPools := poolSet(mintPoolsOf(mints))
	burnPools := poolSet(burnPoolsOf(burns))
	if !setsIntersect(mintPools, burnPools) {
		return insp.shrink(c, block, metadata, depth)
	}

	var victimTxHashes []models.Hash
	var victimSwaps [][]models.Swap
	overlappingVictims := 0
	for _, idx := range c.victims {
		tx := block.Txes[idx]
		if tx.IsRevert {
			continue
		}
		actions := action.Collect(tx, func(*models.Action) bool { return true })
		flat := action.FlattenNestedDefault(actions)
		swaps, _ := action.SplitSwapsTransfers(flat)
		if len(swaps) == 0 {
			continue
		}
		touches := false
		for _, s := range swaps {
			if mintPools[s.Pool] {
				touches = true
			}
		}
		if touches {
			overlappingVictims++
		}
		victimTxHashes = append(victimTxHashes, tx.TxHash)
		victimSwaps = append(victimSwaps, swaps)
	}
	if len(victimTxHashes) == 0 || overlappingVictims == 0 {
		return insp.shrink(c, block, metadata, depth)
	}

	gasDetailsList := []models.GasDetails{frontTx.GasDetails, backTx.GasDetails}
	mevAddrs := []models.Address{frontTx.EOA, frontTx.ToAddress, backTx.ToAddress}

	var deltas []inspect.Delta
	deltas = append(deltas, mintDeltas(mints, frontTx.EOA)...)
	deltas = append(deltas, burnDeltas(burns)...)

	backrunInfo := action.GetTxInfo(backTx, insp.lookup, metadata.IsPrivate(backTx.TxHash))
	revenue, ok := inspect.GetDeltasUSD(c.backrun, models.PriceAfter, mevAddrs, deltas, metadata, true)
	noPricing := !ok
	gasUsd := inspect.GasPaidUsd(gasDetailsList, metadata.EthPriceUsd)
	profit := revenue.Sub(gasUsd)
	if profit.Cmp(insp.cfg.MaxProfitUsd) > 0 || profit.Cmp(insp.cfg.MinProfitUsd) < 0 {
		noPricing = true
	}

	allHashes := []models.Hash{frontTx.TxHash}
	allHashes = append(allHashes, victimTxHashes...)
	allHashes = append(allHashes, backTx.TxHash)

	header := inspect.BuildBundleHeader(block.Header.BlockNumber, allHashes, backrunInfo, profit, gasDetailsList, metadata, models.MevJit, noPricing)

	data := models.JitData{
		FrontrunTxHashes: []models.Hash{frontTx.TxHash},
		Mints:            [][]models.Mint{mints},
		VictimTxHashes:   victimTxHashes,
		VictimSwaps:      victimSwaps,
		BackrunTxHash:    backTx.TxHash,
		Burns:            burns,
		GasDetails:       gasDetailsList,
	}

	return models.Bundle{Header: header, Data: data}, true
}

// shrink drops the outermost victim and retries, bounded by JitMaxRecursion
// (§4.7 recursive shrinking).
func (insp *Inspector) shrink(c candidate, block models.BlockTree, metadata models.Metadata, depth int) (models.Bundle, bool) {
	if len(c.victims) <= 1 {
		return models.Bundle{}, false
	}
	shrunk := candidate{frontrun: c.frontrun, victims: c.victims[1:], backrun: c.backrun}
	return insp.buildBundle(shrunk, block, metadata, depth+1)
}

func mintsOf(tx models.TxRoot) []models.Mint {
	var out []models.Mint
	for _, a := range action.Collect(tx, func(a *models.Action) bool { return a.Kind == models.ActionMint }) {
		out = append(out, *a.MintData)
	}
	return out
}

func burnsOf(tx models.TxRoot) []models.Burn {
	var out []models.Burn
	for _, a := range action.Collect(tx, func(a *models.Action) bool {
		return a.Kind == models.ActionBurn || a.Kind == models.ActionCollect
	}) {
		if a.Kind == models.ActionBurn {
			out = append(out, *a.BurnData)
		} else {
			out = append(out, a.CollectData.AsBurn())
		}
	}
	return out
}

func mintPoolsOf(mints []models.Mint) []models.Address {
	var out []models.Address
	for _, m := range mints {
		out = append(out, m.Pool)
	}
	return out
}

func burnPoolsOf(burns []models.Burn) []models.Address {
	var out []models.Address
	for _, b := range burns {
		out = append(out, b.Pool)
	}
	return out
}

func poolSet(addrs []models.Address) map[models.Address]bool {
	set := make(map[models.Address]bool, len(addrs))
	for _, a := range addrs {
		set[a] = true
	}
	return set
}

func setsIntersect(a, b map[models.Address]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

func mintDeltas(mints []models.Mint, actor models.Address) []inspect.Delta {
	var out []inspect.Delta
	for _, m := range mints {
		for i, tok := range m.Tokens {
			out = append(out, inspect.Delta{Address: actor, Token: tok, Amount: m.Amounts[i].Neg()})
		}
	}
	return out
}

func burnDeltas(burns []models.Burn) []inspect.Delta {
	var out []inspect.Delta
	for _, b := range burns {
		for i, tok := range b.Tokens {
			out = append(out, inspect.Delta{Address: b.Recipient, Token: tok, Amount: b.Amounts[i]})
		}
	}
	return out
}
