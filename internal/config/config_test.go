package config

import (
	"os"
	"testing"

	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

func TestDefault_MatchesDocumentedConstants(t *testing.T) {
	cfg := Default()
	if cfg.FilterThreshold != 20 {
		t.Errorf("FilterThreshold = %d, want 20", cfg.FilterThreshold)
	}
	if len(cfg.Exchanges) != 4 {
		t.Errorf("Exchanges = %v, want 4 venues", cfg.Exchanges)
	}
	if cfg.MaxPriceDiff.Cmp(cfg.MaxPriceDiff) != 0 {
		t.Errorf("MaxPriceDiff should compare equal to itself")
	}
}

func TestLoadFromEnv_OverridesFilterThreshold(t *testing.T) {
	os.Setenv("MEV_FILTER_THRESHOLD", "42")
	defer os.Unsetenv("MEV_FILTER_THRESHOLD")

	cfg := LoadFromEnv()
	if cfg.FilterThreshold != 42 {
		t.Errorf("FilterThreshold = %d, want 42 from env override", cfg.FilterThreshold)
	}
}

func TestLoadFromEnv_FallsBackWithoutEnv(t *testing.T) {
	os.Unsetenv("MEV_FILTER_THRESHOLD")
	os.Unsetenv("MEV_QUOTE_ASSET_ADDRESS")

	cfg := LoadFromEnv()
	want := Default()
	if cfg.FilterThreshold != want.FilterThreshold {
		t.Errorf("FilterThreshold = %d, want default %d", cfg.FilterThreshold, want.FilterThreshold)
	}
	if cfg.QuoteAssetAddress != (models.Address{}) {
		t.Errorf("QuoteAssetAddress = %v, want zero value without env override", cfg.QuoteAssetAddress)
	}
}

func TestLoadFromEnv_InvalidQuoteAssetAddressIgnored(t *testing.T) {
	os.Setenv("MEV_QUOTE_ASSET_ADDRESS", "not-a-hex-address")
	defer os.Unsetenv("MEV_QUOTE_ASSET_ADDRESS")

	cfg := LoadFromEnv()
	if cfg.QuoteAssetAddress != (models.Address{}) {
		t.Errorf("expected zero address when env value fails to parse, got %v", cfg.QuoteAssetAddress)
	}
}
