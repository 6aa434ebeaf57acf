package forest

import (
	"math"
	"sort"

	"github.com/arvense/batchsight/internal/models"
)

// FeatureWeight pairs a feature name with an attribution weight.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Explanation is the side-channel an investigator uses to see why one
// cause was favored over another. Contributions attribute the predicted
// class's probability to individual input features along the ensemble's
// decision paths; Importances are the model-wide impurity-decrease
// rankings. Both are deterministic under a fixed training seed.
type Explanation struct {
	Prediction     models.CausePrediction `json:"prediction"`
	PredictedCause string                 `json:"predicted_cause"`
	Contributions  []FeatureWeight        `json:"contributions"` // sorted by |weight| descending
	Importances    []FeatureWeight        `json:"importances"`   // sorted descending
}

// Explain predicts and attributes the predicted class probability to each
// input feature. Per tree, walking root to leaf, the change in the
// predicted class's probability at each split is credited to the split
// feature; contributions are averaged across trees, so they sum to
// (predicted confidence − ensemble base rate).
func (m *Model) Explain(features map[string]models.FeatureValue) (Explanation, error) {
	prediction, err := m.Predict(features)
	if err != nil {
		return Explanation{}, err
	}
	top, _ := prediction.Top()
	target := m.Schema.labelIndex(top.Cause)

	vector, err := m.Schema.encode(features)
	if err != nil {
		return Explanation{}, err
	}

	raw := make([]float64, len(m.Schema.Features))
	for _, tree := range m.Trees {
		tree.pathContributions(vector, target, raw)
	}
	for i := range raw {
		raw[i] /= float64(len(m.Trees))
	}

	contributions := make([]FeatureWeight, len(m.Schema.Features))
	for i, spec := range m.Schema.Features {
		contributions[i] = FeatureWeight{Feature: spec.Name, Weight: raw[i]}
	}
	sort.Slice(contributions, func(i, j int) bool {
		ai, aj := math.Abs(contributions[i].Weight), math.Abs(contributions[j].Weight)
		if ai != aj {
			return ai > aj
		}
		return contributions[i].Feature < contributions[j].Feature
	})

	importances := make([]FeatureWeight, 0, len(m.Importances))
	for feature, weight := range m.Importances {
		importances = append(importances, FeatureWeight{Feature: feature, Weight: weight})
	}
	sort.Slice(importances, func(i, j int) bool {
		if importances[i].Weight != importances[j].Weight {
			return importances[i].Weight > importances[j].Weight
		}
		return importances[i].Feature < importances[j].Feature
	})

	return Explanation{
		Prediction:     prediction,
		PredictedCause: top.Cause,
		Contributions:  contributions,
		Importances:    importances,
	}, nil
}
