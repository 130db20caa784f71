// Package cexdex implements the two CEX-DEX arbitrage inspectors: the
// quote-based inspector (spec.md §4.8) prices every swap against live
// order-book quotes; the trade-markout inspector (spec.md §4.9) prices
// against actually executed CEX fills within a time window around the
// swap, optionally restricted to RFQ-style fills.
//
// Convention (Open Question, spec.md §9): a leg's pnl is valued in the
// output token's own units, converted to USD via the DEX price snapshot at
// the swap's tx_index — NOT in the input token's units. This matches
// "what the searcher could have sold the output for" rather than "what the
// input was worth", and keeps every leg comparable regardless of which
// side of the pool the searcher traded into.
package cexdex

import (
	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

func mid(ba models.BidAsk) models.Amount {
	return ba.Bid.Add(ba.Ask).Mul(rational.MustFromDecimalString("0.5"))
}

// dexRate returns the DEX-implied exchange rate of a swap, TokenOut per
// TokenIn, matching the orientation get_quote_at uses for pair{TokenIn,TokenOut}.
func dexRate(s models.Swap) (models.Amount, bool) {
	return s.AmountOut.Div(nonZero(s.AmountIn))
}

func nonZero(a models.Amount) models.Amount {
	if a.IsZero() {
		return rational.One()
	}
	return a
}

// legPnl computes (cexRate - dexRate) * AmountIn, priced in USD via the
// TokenOut DEX snapshot at txIndex. Returns false if pricing is unavailable.
func legPnl(s models.Swap, cexRate models.Amount, metadata models.Metadata, txIndex int) (models.Amount, bool) {
	tokenOutPrice, ok := metadata.PriceAtTxIndex(s.TokenOut, txIndex, models.PriceAverage)
	if !ok {
		return models.Amount{}, false
	}
	rate, ok := dexRate(s)
	if !ok {
		return models.Amount{}, false
	}
	deltaTokenOut := cexRate.Sub(rate).Mul(s.AmountIn)
	return deltaTokenOut.Mul(tokenOutPrice), true
}

// triangularArb reports whether swaps forms a closed token loop (the
// output token of the last swap equals the input token of the first), the
// signature of an atomic-arb route rather than a one-sided CEX-DEX trade;
// such txs are suppressed from the CEX-DEX inspectors (§4.8 Non-goals).
func triangularArb(swaps []models.Swap) bool {
	if len(swaps) < 2 {
		return false
	}
	return swaps[0].TokenIn == swaps[len(swaps)-1].TokenOut
}
