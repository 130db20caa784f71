package sanity

import (
	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// ClampProfit enforces the [MinProfitUsd, MaxProfitUsd] bound (§4.10
// profit clamp): out-of-range profit is reported as no_pricing with a
// zeroed profit figure rather than silently trusted.
func ClampProfit(cfg config.Thresholds, profitUsd models.Amount) (clamped models.Amount, noPricing bool) {
	if profitUsd.Cmp(cfg.MaxProfitUsd) > 0 || profitUsd.Cmp(cfg.MinProfitUsd) < 0 {
		return models.Amount{}, true
	}
	return profitUsd, false
}

// Filter runs Evaluate over every bundle and returns only the accepted
// ones, unchanged; the verdicts themselves are not returned, so callers
// that need a Verdict call Evaluate directly.
func Filter(cfg config.Thresholds, bundles []models.Bundle, txInfoOf func(models.Bundle) models.TxInfo, tokensOf func(models.Bundle) []models.Address) []models.Bundle {
	var out []models.Bundle
	for _, b := range bundles {
		verdict := Evaluate(cfg, b.Header, txInfoOf(b), tokensOf(b))
		if verdict.Accept {
			out = append(out, b)
		}
	}
	return out
}
