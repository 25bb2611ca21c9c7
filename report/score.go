// Package report turns analysed clauses and findings into a finished
// AnalysisResult and renders stored results for export.
package report

import (
	"math"

	"github.com/AnTengye/contractlens/model"
)

// Band thresholds on the 0..100 score.
const (
	HighBandAt   = 70
	MediumBandAt = 40
)

// RiskDistribution counts clauses per risk level.
type RiskDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total is the number of clauses counted.
func (d RiskDistribution) Total() int {
	return d.High + d.Medium + d.Low
}

// Distribution tallies clause risk levels.
func Distribution(clauses []model.Clause) RiskDistribution {
	var d RiskDistribution
	for _, c := range clauses {
		switch c.RiskLevel {
		case model.RiskHigh:
			d.High++
		case model.RiskMedium:
			d.Medium++
		case model.RiskLow:
			d.Low++
		}
	}
	return d
}

// Score applies policy to d and clamps the rounded result to [0, 100].
func Score(d RiskDistribution, policy model.ScorePolicy) int {
	raw := policy.Baseline +
		policy.HighWeight*float64(d.High) +
		policy.MediumWeight*float64(d.Medium) +
		policy.LowWeight*float64(d.Low)
	return min(100, max(0, int(math.Round(raw))))
}

// Band maps a score onto a risk level.
func Band(score int) model.RiskLevel {
	switch {
	case score >= HighBandAt:
		return model.RiskHigh
	case score >= MediumBandAt:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}
