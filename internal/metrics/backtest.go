package metrics

import "github.com/rawblock/mev-inspect-engine/pkg/models"

// BacktestRow pairs one bundle's predicted classification against a
// hand-labeled ground truth, keyed by the bundle's lead transaction.
type BacktestRow struct {
	LeadTxHash models.Hash
	Predicted  models.MevType
	GroundTruth models.MevType
}

// PrecisionRecall computes per-MevType precision and recall across a
// backtest corpus: precision is the share of predicted-as-t bundles that
// were actually t; recall is the share of actually-t bundles that were
// predicted as t.
func PrecisionRecall(rows []BacktestRow, t models.MevType) (precision, recall float64) {
	var truePositive, predictedPositive, actualPositive int
	for _, r := range rows {
		if r.Predicted == t {
			predictedPositive++
		}
		if r.GroundTruth == t {
			actualPositive++
		}
		if r.Predicted == t && r.GroundTruth == t {
			truePositive++
		}
	}
	if predictedPositive > 0 {
		precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		recall = float64(truePositive) / float64(actualPositive)
	}
	return precision, recall
}

// ClassificationAgreement runs AdjustedRandIndex over a backtest corpus's
// predicted vs. ground-truth MevType labels, treating each MevType as a
// cluster label. Used to detect systematic classification drift across
// an engine release rather than per-bundle scoring noise.
func ClassificationAgreement(rows []BacktestRow) float64 {
	predicted := make([]int, len(rows))
	groundTruth := make([]int, len(rows))
	for i, r := range rows {
		predicted[i] = int(r.Predicted)
		groundTruth[i] = int(r.GroundTruth)
	}
	return AdjustedRandIndex(predicted, groundTruth)
}
