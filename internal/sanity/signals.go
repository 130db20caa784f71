// Package sanity implements the acceptance/filter layer (spec.md §4.10):
// fuses the historical-searcher-tag, labelled-allow-list, private-order-flow,
// contract-type, and stable-pair signals into a single accept/reject
// verdict per bundle, independent of the profit clamp each inspector
// already applies.
package sanity

import (
	"math"

	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// ProbToLLR converts a probability in (0,1) to a log-likelihood ratio,
// log10(p/(1-p)), so independent signals can be fused by addition rather
// than by multiplying raw probabilities.
func ProbToLLR(p float64) float64 {
	if p >= 1.0 {
		return 999.0
	}
	if p <= 0.0 {
		return -999.0
	}
	return math.Log10(p / (1.0 - p))
}

// LLRToProb is the inverse of ProbToLLR.
func LLRToProb(llr float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, -llr))
}

// Signal is one named contribution to a bundle's acceptance score.
type Signal struct {
	Name string
	LLR  float64
}

// Verdict is the fused acceptance decision for one bundle.
type Verdict struct {
	Accept     bool
	Confidence float64 // fused posterior probability
	Signals    []Signal
}

// Evaluate fuses every applicable signal for bundle/txInfo and accepts iff
// the fused posterior crosses 0.5 (net LLR >= 0).
func Evaluate(cfg config.Thresholds, bundle models.BundleHeader, txInfo models.TxInfo, involvedTokens []models.Address) Verdict {
	var signals []Signal

	if txInfo.IsSearcherOfTypeWithCountThreshold(bundle.MevType, cfg.FilterThreshold) {
		signals = append(signals, Signal{"historical_searcher_tag", ProbToLLR(0.97)})
	}
	if txInfo.IsLabelledSearcherOfType(bundle.MevType) {
		signals = append(signals, Signal{"labelled_searcher_allowlist", ProbToLLR(0.999)})
	}
	if txInfo.IsPrivate {
		signals = append(signals, Signal{"private_order_flow", ProbToLLR(0.6)})
	}
	if txInfo.ContractType != nil {
		switch *txInfo.ContractType {
		case models.ContractTypeMevBot:
			signals = append(signals, Signal{"mev_bot_contract", ProbToLLR(0.9)})
		case models.ContractTypeDefiAutomation, models.ContractTypeSolverSettlement:
			signals = append(signals, Signal{"legitimate_automation_contract", -ProbToLLR(0.8)})
		}
	}
	if allStable(involvedTokens, cfg.StableTokens) && len(involvedTokens) > 0 {
		signals = append(signals, Signal{"stable_pair_suppression", -ProbToLLR(0.9)})
	}

	netLLR := 0.0
	for _, s := range signals {
		netLLR += s.LLR
	}

	return Verdict{
		Accept:     netLLR >= 0,
		Confidence: LLRToProb(netLLR),
		Signals:    signals,
	}
}

func allStable(tokens []models.Address, stable map[models.Address]bool) bool {
	for _, t := range tokens {
		if !stable[t] {
			return false
		}
	}
	return true
}
