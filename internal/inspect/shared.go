// Package inspect holds the utilities shared by every strategy inspector
// (spec.md §4.5): bundle header assembly, USD delta valuation, DEX-price
// sanity checks, and the transfer-to-synthetic-swap helpers used when no
// Swap action was classified.
package inspect

import (
	"github.com/rawblock/mev-inspect-engine/internal/action"
	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// Delta is a signed per-address, per-token balance change, the input to
// GetDeltasUSD.
type Delta struct {
	Address models.Address
	Token   models.Address
	Amount  models.Amount // signed
}

// BuildBundleHeader assembles the common bundle header (§4.5
// build_bundle_header): sums bribe (coinbase transfer + priority fee *
// gas used) across every searcher gas_details, converts to USD with the
// metadata ETH price, and stamps fund_tag from the address-label table.
func BuildBundleHeader(
	blockNumber uint64,
	txHashes []models.Hash,
	txInfo models.TxInfo,
	profitUsd models.Amount,
	gasDetailsList []models.GasDetails,
	metadata models.Metadata,
	mevType models.MevType,
	noPricing bool,
) models.BundleHeader {
	bribeEth := rational.Zero()
	for _, gd := range gasDetailsList {
		priorityCost := gd.PriorityFee.Mul(gd.GasUsed)
		bribeEth = bribeEth.Add(priorityCost)
		if gd.CoinbaseTransfer != nil {
			bribeEth = bribeEth.Add(*gd.CoinbaseTransfer)
		}
	}
	bribeUsd := bribeEth.Mul(metadata.EthPriceUsd)

	if noPricing {
		profitUsd = rational.Zero()
	}

	return models.BundleHeader{
		BlockNumber:   blockNumber,
		TxIndex:       txInfo.TxIndex,
		TxHashes:      txHashes,
		EOA:           txInfo.EOA,
		MevContract:   txInfo.MevContract,
		ProfitUsd:     profitUsd,
		BribeUsd:      bribeUsd,
		FundTag:       metadata.FundTag(txInfo.EOA),
		MevType:       mevType,
		NoPricingFlag: noPricing,
	}
}

// GasPaidUsd sums gas_used*effective_gas_price + coinbase_transfer across
// gasDetailsList and converts to USD.
func GasPaidUsd(gasDetailsList []models.GasDetails, ethPriceUsd models.Amount) models.Amount {
	total := rational.Zero()
	for _, gd := range gasDetailsList {
		gasCost := gd.GasUsed.Mul(gd.EffectiveGasPrice)
		if gd.CoinbaseTransfer != nil {
			gasCost = gasCost.Add(*gd.CoinbaseTransfer)
		}
		total = total.Add(gasCost)
	}
	return total.Mul(ethPriceUsd)
}

// GetDeltasUSD implements §4.5 get_deltas_usd: for every delta whose
// address is in mevAddresses, values the signed amount in USD using the
// DEX price snapshot at priceAt for txIndex, and sums. Returns false if any
// required token has no price (unless includeEth is set and the token is
// the zero/native-asset sentinel, which is valued directly via
// metadata.EthPriceUsd).
func GetDeltasUSD(txIndex int, priceAt models.PriceAt, mevAddresses []models.Address, deltas []Delta, metadata models.Metadata, includeEth bool) (models.Amount, bool) {
	mevSet := make(map[models.Address]bool, len(mevAddresses))
	for _, a := range mevAddresses {
		mevSet[a] = true
	}

	sum := rational.Zero()
	for _, d := range deltas {
		if !mevSet[d.Address] {
			continue
		}
		if d.Token == models.ZeroAddress {
			if !includeEth {
				continue
			}
			sum = sum.Add(d.Amount.Mul(metadata.EthPriceUsd))
			continue
		}
		price, ok := metadata.PriceAtTxIndex(d.Token, txIndex, priceAt)
		if !ok {
			return models.Amount{}, false
		}
		sum = sum.Add(d.Amount.Mul(price))
	}
	return sum, true
}

// ValidPricing implements §4.5 valid_pricing: for every token in tokens,
// compares the DEX-quote-implied rate against the effective rate realized
// by swaps, rejecting if the ratio falls outside [maxRatio, 1/maxRatio]
// (e.g. maxRatio = 995/1000 per spec.md §9 MAX_PRICE_DIFF).
func ValidPricing(metadata models.Metadata, swaps []models.Swap, tokens []models.Address, txIndex int, maxRatio models.Amount) bool {
	tokenSet := make(map[models.Address]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	for _, s := range swaps {
		if !tokenSet[s.TokenIn] && !tokenSet[s.TokenOut] {
			continue
		}
		effRate, ok := s.AmountOut.Div(nonZero(s.AmountIn))
		if !ok {
			continue
		}
		priceIn, okIn := metadata.PriceAtTxIndex(s.TokenIn, txIndex, models.PriceAverage)
		priceOut, okOut := metadata.PriceAtTxIndex(s.TokenOut, txIndex, models.PriceAverage)
		if !okIn || !okOut || priceOut.IsZero() {
			continue
		}
		dexRate, ok := priceIn.Div(priceOut)
		if !ok {
			continue
		}
		if !withinRatio(effRate, dexRate, maxRatio) {
			return false
		}
	}
	return true
}

func withinRatio(a, b, maxRatio models.Amount) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	ratio, ok := a.Div(b)
	if !ok {
		return true
	}
	if ratio.Sign() < 0 {
		ratio = ratio.Neg()
	}
	recip, _ := maxRatio.Recip()
	return ratio.Cmp(maxRatio) >= 0 && ratio.Cmp(recip) <= 0
}

func nonZero(a models.Amount) models.Amount {
	if a.IsZero() {
		return rational.One()
	}
	return a
}

// FlattenNestedActionsDefault re-exports the pre-baked flatten from
// internal/action for callers that only import the shared-utilities
// package.
func FlattenNestedActionsDefault(actions []*models.Action) []*models.Action {
	return action.FlattenNestedDefault(actions)
}

// CexMergePossibleSwaps coalesces consecutive chained swaps so a multi-hop
// route is measured end-to-end against a CEX quote (§4.5).
func CexMergePossibleSwaps(swaps []models.Swap) []models.Swap {
	return action.TrySwapsMerged(swaps)
}

// CexTryConvertTransferToSwap synthesizes a single swap from transfers when
// no Swap action was detected but the mev contract received tokens and
// sent different tokens (§4.5).
func CexTryConvertTransferToSwap(transfers []models.Transfer, txInfo models.TxInfo) (models.Swap, bool) {
	candidate := txInfo.EOA
	if txInfo.MevContract != nil {
		candidate = *txInfo.MevContract
	}
	swaps := action.TryCreateSwaps(transfers, []models.Address{candidate})
	if len(swaps) == 0 {
		return models.Swap{}, false
	}
	return swaps[0], true
}
