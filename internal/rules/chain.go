package rules

import (
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

// ProcessChains evaluates every chain whose trigger rule is in the
// matched set. Triggered chains are informational: they are reported in
// the evaluation result but never inject matches into scoring.
func ProcessChains(chains []*domain.RuleChain, matches []*domain.RuleMatch) []*domain.ChainResult {
	if len(chains) == 0 || len(matches) == 0 {
		return nil
	}

	matched := make(map[string]bool, len(matches))
	meanConfidence := 0.0
	for _, m := range matches {
		matched[m.RuleID] = true
		meanConfidence += m.Confidence
	}
	meanConfidence /= float64(len(matches))

	var results []*domain.ChainResult
	for _, chain := range chains {
		if !matched[chain.TriggerRuleID] {
			continue
		}

		result := &domain.ChainResult{
			ChainID:       chain.ID,
			TriggerRuleID: chain.TriggerRuleID,
		}
		for _, link := range chain.Links {
			if !linkHolds(link, matches, meanConfidence) {
				continue
			}
			result.Triggered = true
			result.TriggeredRuleIDs = append(result.TriggeredRuleIDs, link.RuleID)
			if chain.StopOnFirstMatch {
				break
			}
		}
		results = append(results, result)
	}
	return results
}

// linkHolds evaluates one cascading entry's condition against the full
// matched-rule list.
func linkHolds(link domain.ChainLink, matches []*domain.RuleMatch, meanConfidence float64) bool {
	switch link.Condition {
	case domain.ChainConditionAlways:
		return true
	case domain.ChainConditionRiskThreshold:
		return meanConfidence*100 > link.RiskThreshold
	case domain.ChainConditionRuleCount:
		return len(matches) >= link.MinRuleCount
	default:
		return false
	}
}
