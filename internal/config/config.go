// Package config holds the inspector-wide configuration knobs named in
// spec.md §9, loaded from environment variables the way the teacher's
// cmd/engine/main.go loads optional settings: every knob here falls back to
// a documented default when its variable is unset or unparseable.
package config

import (
	"os"
	"strconv"

	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// Thresholds carries every numeric knob the inspectors and the sanity
// layer read. All are rationals except recursion/count bounds, which are
// plain ints — no inspector ever compares a float threshold directly.
type Thresholds struct {
	// FilterThreshold gates "historical searcher tag count" acceptance
	// (§4.10 is_searcher_of_type_with_count_threshold). Default 20.
	FilterThreshold int

	// HighProfitThreshold flags an "outlier" profitable bundle (§4.8
	// is_profitable_outlier). Default $10,000.
	HighProfitThresholdUsd models.Amount

	// MaxProfit/MinProfit clamp absurd profit computations to no_pricing
	// (§4.10 profit clamp).
	MaxProfitUsd models.Amount
	MinProfitUsd models.Amount

	// MaxNonSwapFrontrunUsd forces no_pricing when a sandwich's frontrun
	// has no detected swaps but profit still exceeds this bound (§4.6).
	MaxNonSwapFrontrunUsd models.Amount

	// MaxPriceDiff is the DEX-vs-reference pricing validity bound, 995/1000
	// (§4.6, §9 MAX_PRICE_DIFF).
	MaxPriceDiff models.Amount

	// Sandwich/JIT recursive-shrinking bounds (§4.6, §4.7, §5).
	MaxVictimGroups      int
	MaxTotalVictims      int
	SandwichMaxRecursion int
	JitMaxRecursion      int

	// RunWindowBeforeUs/AfterUs is the CEX trade markout window (§4.4,
	// §9 run_time_window).
	RunWindowBeforeUs int64
	RunWindowAfterUs  int64

	// QuoteAssetAddress is the token every CEX-DEX leg is priced against
	// (e.g. USDT).
	QuoteAssetAddress models.Address

	// Exchanges is the ordered set of CEX venues to consider.
	Exchanges []models.Exchange

	// StableTokens is the fixed closed enumeration used by the
	// stable-pair suppression heuristic (§4.8, §9). No runtime inference.
	StableTokens map[models.Address]bool
}

// Default returns the documented defaults from spec.md §9.
func Default() Thresholds {
	return Thresholds{
		FilterThreshold:        20,
		HighProfitThresholdUsd: rational.FromInt64(10_000),
		MaxProfitUsd:           rational.FromInt64(10_000_000),
		MinProfitUsd:           rational.FromInt64(-10_000_000),
		MaxNonSwapFrontrunUsd:  rational.FromInt64(5_000),
		MaxPriceDiff:           rational.MustFromDecimalString("0.995"),
		MaxVictimGroups:        10,
		MaxTotalVictims:        30,
		SandwichMaxRecursion:   6,
		JitMaxRecursion:        10,
		RunWindowBeforeUs:      6_000_000,
		RunWindowAfterUs:       6_000_000,
		Exchanges: []models.Exchange{
			models.ExchangeBinance, models.ExchangeCoinbase, models.ExchangeKucoin, models.ExchangeOkex,
		},
		StableTokens: map[models.Address]bool{},
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

// LoadFromEnv overlays environment overrides onto Default(). Only the
// knobs operators actually tune in practice are environment-overridable;
// the rest are fixed per spec.md §9.
func LoadFromEnv() Thresholds {
	t := Default()
	t.FilterThreshold = getEnvIntOrDefault("MEV_FILTER_THRESHOLD", t.FilterThreshold)
	if addrHex := getEnvOrDefault("MEV_QUOTE_ASSET_ADDRESS", ""); addrHex != "" {
		if a, err := models.AddressFromHex(addrHex); err == nil {
			t.QuoteAssetAddress = a
		}
	}
	return t
}
