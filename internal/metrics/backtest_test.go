package metrics

import (
	"testing"

	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

func TestPrecisionRecall_PerfectMatch(t *testing.T) {
	rows := []BacktestRow{
		{Predicted: models.MevSandwich, GroundTruth: models.MevSandwich},
		{Predicted: models.MevSandwich, GroundTruth: models.MevSandwich},
		{Predicted: models.MevJit, GroundTruth: models.MevJit},
	}
	precision, recall := PrecisionRecall(rows, models.MevSandwich)
	if precision != 1.0 || recall != 1.0 {
		t.Fatalf("precision=%v recall=%v, want 1.0, 1.0", precision, recall)
	}
}

func TestPrecisionRecall_FalsePositiveLowersPrecision(t *testing.T) {
	rows := []BacktestRow{
		{Predicted: models.MevSandwich, GroundTruth: models.MevSandwich},
		{Predicted: models.MevSandwich, GroundTruth: models.MevJit}, // false positive
		{Predicted: models.MevJit, GroundTruth: models.MevJit},
	}
	precision, recall := PrecisionRecall(rows, models.MevSandwich)
	if precision != 0.5 {
		t.Errorf("precision = %v, want 0.5", precision)
	}
	if recall != 1.0 {
		t.Errorf("recall = %v, want 1.0", recall)
	}
}

func TestPrecisionRecall_NoPredictions(t *testing.T) {
	rows := []BacktestRow{
		{Predicted: models.MevJit, GroundTruth: models.MevSandwich},
	}
	precision, recall := PrecisionRecall(rows, models.MevSandwich)
	if precision != 0 {
		t.Errorf("precision = %v, want 0 when nothing was predicted as the target type", precision)
	}
	if recall != 0 {
		t.Errorf("recall = %v, want 0", recall)
	}
}

func TestClassificationAgreement_PerfectAgreement(t *testing.T) {
	rows := []BacktestRow{
		{Predicted: models.MevSandwich, GroundTruth: models.MevSandwich},
		{Predicted: models.MevJit, GroundTruth: models.MevJit},
		{Predicted: models.MevCexDexQuote, GroundTruth: models.MevCexDexQuote},
		{Predicted: models.MevSandwich, GroundTruth: models.MevSandwich},
	}
	if got := ClassificationAgreement(rows); got < 0.99 {
		t.Errorf("ClassificationAgreement() = %v, want ~1.0 for identical labels", got)
	}
}
