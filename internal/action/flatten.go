package action

import "github.com/rawblock/mev-inspect-engine/pkg/models"

// FlattenNested expands Aggregator/Batch children inline, preserving trace
// order, and keeps only nodes for which keep returns true. The wrapper
// node itself is dropped; its children are spliced in its place.
func FlattenNested(actions []*models.Action, keep Predicate) []*models.Action {
	var out []*models.Action
	var walk func(n *models.Action)
	walk = func(n *models.Action) {
		if n == nil {
			return
		}
		switch n.Kind {
		case models.ActionAggregator:
			for _, c := range n.AggregatorData.Children {
				walk(c)
			}
			return
		case models.ActionBatch:
			for _, c := range n.BatchData.Children {
				walk(c)
			}
			return
		}
		if keep(n) {
			out = append(out, n)
		}
	}
	for _, a := range actions {
		walk(a)
	}
	return out
}

// FlattenNestedDefault keeps Swap/Transfer/Mint/Burn/EthTransfer, the
// pre-baked set used throughout the shared inspector utilities (§4.5).
func FlattenNestedDefault(actions []*models.Action) []*models.Action {
	return FlattenNested(actions, func(a *models.Action) bool {
		switch a.Kind {
		case models.ActionSwap, models.ActionTransfer, models.ActionMint, models.ActionBurn, models.ActionEthTransfer:
			return true
		default:
			return false
		}
	})
}

// TrySwapsMerged collapses a contiguous run of swaps with chained tokens
// (out_i == in_i+1) into one logical swap preserving the first leg's
// amount_in and the last leg's amount_out. Pools are not compared: the
// merged swap carries the first leg's Protocol and Pool. Non-contiguous or
// unchained runs are passed through unmerged.
func TrySwapsMerged(swaps []models.Swap) []models.Swap {
	if len(swaps) == 0 {
		return nil
	}
	out := make([]models.Swap, 0, len(swaps))
	i := 0
	for i < len(swaps) {
		run := []models.Swap{swaps[i]}
		j := i + 1
		for j < len(swaps) && swaps[j].TokenIn == run[len(run)-1].TokenOut {
			run = append(run, swaps[j])
			j++
		}
		if len(run) == 1 {
			out = append(out, run[0])
		} else {
			first, last := run[0], run[len(run)-1]
			out = append(out, models.Swap{
				Protocol:   first.Protocol,
				Pool:       first.Pool,
				From:       first.From,
				Recipient:  last.Recipient,
				TokenIn:    first.TokenIn,
				TokenOut:   last.TokenOut,
				AmountIn:   first.AmountIn,
				AmountOut:  last.AmountOut,
				TraceIndex: first.TraceIndex,
			})
		}
		i = j
	}
	return out
}

// SplitSwapsTransfers partitions a flat action list into swaps and
// transfers by down-cast; non-matching actions are dropped (this is the
// two-type specialization of split_actions<(A,B,…)> used throughout the
// inspectors — additional typed partitions are added ad hoc where needed).
func SplitSwapsTransfers(actions []*models.Action) (swaps []models.Swap, transfers []models.Transfer) {
	for _, a := range actions {
		switch a.Kind {
		case models.ActionSwap:
			swaps = append(swaps, *a.SwapData)
		case models.ActionTransfer:
			transfers = append(transfers, *a.TransferData)
		}
	}
	return
}

// CollectByKind returns every node of the given kind in actions (a
// single-type specialization of split_actions used for Mint/Burn/EthTransfer
// collection).
func CollectByKind(actions []*models.Action, kind models.ActionKind) []*models.Action {
	var out []*models.Action
	for _, a := range actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// TryCreateSwaps synthesizes swaps from transfer pairs to/from a pool
// address when no Swap action was emitted (e.g. unclassified DEXes).
// Match rule: for each address in mevAddresses with exactly two transfers
// touching it — one inbound, one outbound, distinct tokens — emit a
// synthetic swap (§4.2).
func TryCreateSwaps(transfers []models.Transfer, mevAddresses []models.Address) []models.Swap {
	var out []models.Swap
	for _, addr := range mevAddresses {
		var in, outgoingList []models.Transfer
		for _, t := range transfers {
			if t.To == addr {
				in = append(in, t)
			}
			if t.From == addr {
				outgoingList = append(outgoingList, t)
			}
		}
		if len(in) != 1 || len(outgoingList) != 1 {
			continue
		}
		incoming, outgoing := in[0], outgoingList[0]
		if incoming.Token == outgoing.Token {
			continue
		}
		traceIdx := incoming.TraceIndex
		if outgoing.TraceIndex > traceIdx {
			traceIdx = outgoing.TraceIndex
		}
		out = append(out, models.Swap{
			Pool:       addr,
			From:       outgoing.From,
			Recipient:  incoming.To,
			TokenIn:    incoming.Token,
			AmountIn:   incoming.Amount,
			TokenOut:   outgoing.Token,
			AmountOut:  outgoing.Amount,
			TraceIndex: traceIdx,
		})
	}
	return out
}
