package shadow

import (
	"math"

	"github.com/rawblock/mev-inspect-engine/internal/metrics"
)

// Evaluator provides graph-level structual evaluation metrics (ARI, VI)
// to measure the divergence between production clustering inferences
// and experimental (shadow) heuristics over a corpus of Ground Truth labels.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// AdjustedRandIndex computes the ARI between two partitionings.
// Useful for comparing shadow vs production when labels don't perfectly align,
// but we want to measure structural similarity of the clustering.
// Returns a value between -1 and +1 (+1 is identical clustering).
// Only keys present in both maps are compared.
func (e *Evaluator) AdjustedRandIndex(prodClusters map[string]int, shadowClusters map[string]int) float64 {
	var prodLabels, shadowLabels []int
	for key, p := range prodClusters {
		if s, ok := shadowClusters[key]; ok {
			prodLabels = append(prodLabels, p)
			shadowLabels = append(shadowLabels, s)
		}
	}
	return metrics.AdjustedRandIndex(prodLabels, shadowLabels)
}

// VariationOfInformation measures the distance between two clusterings.
// It is an information-theoretic metric (VI = H(P) + H(S) - 2*I(P, S)).
// Lower distances mean the clustering structures are more identical.
// Only keys present in both maps are compared.
func (e *Evaluator) VariationOfInformation(prodClusters map[string]int, shadowClusters map[string]int) float64 {
	var prodLabels, shadowLabels []int
	for key, p := range prodClusters {
		if s, ok := shadowClusters[key]; ok {
			prodLabels = append(prodLabels, p)
			shadowLabels = append(shadowLabels, s)
		}
	}
	return metrics.VariationOfInformation(prodLabels, shadowLabels)
}

// Entropy calculates the Shannon entropy of a partition
func (e *Evaluator) Entropy(clusterCounts map[int]int, total int) float64 {
	var ent float64
	for _, count := range clusterCounts {
		p := float64(count) / float64(total)
		ent -= p * math.Log2(p)
	}
	return ent
}
