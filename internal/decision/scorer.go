package decision

import (
	"math"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

// Score aggregates a matched-rule set into a 0-100 risk score. Each
// match contributes its confidence weighted by priority/100; two or
// more matches earn a 10% compounding bonus per extra match, capped at
// 100. An empty set scores exactly 0.
func Score(matches []*domain.RuleMatch) float64 {
	if len(matches) == 0 {
		return 0.0
	}

	var weightedSum, weightSum float64
	for _, m := range matches {
		weight := float64(m.Priority) / 100
		weightedSum += m.Confidence * 100 * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0.0
	}

	score := weightedSum / weightSum
	if len(matches) >= 2 {
		score *= 1 + 0.1*float64(len(matches)-1)
	}
	if score > 100 {
		score = 100
	}
	return math.Round(score*100) / 100
}

// FinalAction picks the enforcement action for a result: the resolved
// winner when a conflict was arbitrated, otherwise the most severe
// action across the matches. No matches means no action.
func FinalAction(matches []*domain.RuleMatch, resolution *domain.ConflictResolution) domain.Action {
	if resolution != nil {
		return resolution.WinningAction
	}
	if len(matches) == 0 {
		return domain.ActionNone
	}
	actions := make([]domain.Action, len(matches))
	for i, m := range matches {
		actions[i] = m.Action
	}
	return domain.MostSevere(actions)
}
