package sanity

import (
	"testing"

	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

func TestProbToLLRRoundTrip(t *testing.T) {
	for _, p := range []float64{0.01, 0.3, 0.5, 0.7, 0.99} {
		llr := ProbToLLR(p)
		got := LLRToProb(llr)
		if diff := got - p; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("round-trip(%.4f) = %.6f", p, got)
		}
	}
}

func TestEvaluate_LabelledSearcherAccepted(t *testing.T) {
	cfg := config.Default()
	txInfo := models.TxInfo{
		LabelledSearcherTypes: map[models.MevType]bool{models.MevSandwich: true},
	}
	verdict := Evaluate(cfg, models.BundleHeader{MevType: models.MevSandwich}, txInfo, nil)
	if !verdict.Accept {
		t.Fatalf("expected allow-listed searcher to be accepted, got %+v", verdict)
	}
}

func TestEvaluate_DefiAutomationSuppressed(t *testing.T) {
	cfg := config.Default()
	ct := models.ContractTypeDefiAutomation
	txInfo := models.TxInfo{ContractType: &ct}
	verdict := Evaluate(cfg, models.BundleHeader{MevType: models.MevSandwich}, txInfo, nil)
	if verdict.Accept {
		t.Fatalf("expected legitimate automation contract to be rejected without other signals, got %+v", verdict)
	}
}

func TestClampProfit(t *testing.T) {
	cfg := config.Default()
	_, noPricing := ClampProfit(cfg, rational.FromInt64(1))
	if noPricing {
		t.Error("small profit should not be clamped")
	}
	_, noPricing = ClampProfit(cfg, rational.FromInt64(100_000_000))
	if !noPricing {
		t.Error("absurd profit should be clamped")
	}
}
