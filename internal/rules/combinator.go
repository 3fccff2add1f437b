package rules

import (
	"time"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

// ApplyCombinations evaluates every combination against the current
// matched-rule-id set and returns the virtual matches for those that
// applied. Virtual matches are folded into the working set before
// conflict resolution so combinations can win arbitration themselves.
// Invalid combinations were already dropped at catalog refresh.
func ApplyCombinations(combinations []*domain.RuleCombination, matches []*domain.RuleMatch) []*domain.RuleMatch {
	if len(combinations) == 0 || len(matches) == 0 && !hasNotCombination(combinations) {
		return nil
	}

	byRule := make(map[string]*domain.RuleMatch, len(matches))
	for _, m := range matches {
		// First occurrence wins for duplicate rule ids.
		if _, ok := byRule[m.RuleID]; !ok {
			byRule[m.RuleID] = m
		}
	}

	var virtual []*domain.RuleMatch
	for _, combo := range combinations {
		var constituents []*domain.RuleMatch
		for _, id := range combo.RuleIDs {
			if m, ok := byRule[id]; ok {
				constituents = append(constituents, m)
			}
		}

		applied := false
		switch combo.Operator {
		case domain.OperatorAND:
			applied = len(constituents) == len(combo.RuleIDs)
		case domain.OperatorOR:
			applied = len(constituents) > 0
		case domain.OperatorXOR:
			applied = len(constituents) == 1
		case domain.OperatorNOT:
			applied = len(constituents) == 0
		}
		if !applied {
			continue
		}

		virtual = append(virtual, synthesize(combo, constituents))
	}
	return virtual
}

// synthesize builds the virtual match for an applied combination:
// confidence is the mean of constituent confidences (1.0 for NOT, which
// has none), priority and action come from the overrides or from the
// max-priority / most-severe constituent.
func synthesize(combo *domain.RuleCombination, constituents []*domain.RuleMatch) *domain.RuleMatch {
	confidence := 1.0
	priority := 0
	action := domain.ActionNone
	matchedIDs := make([]string, 0, len(constituents))

	if len(constituents) > 0 {
		sum := 0.0
		actions := make([]domain.Action, 0, len(constituents))
		for _, m := range constituents {
			sum += m.Confidence
			if m.Priority > priority {
				priority = m.Priority
			}
			actions = append(actions, m.Action)
			matchedIDs = append(matchedIDs, m.RuleID)
		}
		confidence = sum / float64(len(constituents))
		action = domain.MostSevere(actions)
	}

	if combo.PriorityOverride != nil {
		priority = *combo.PriorityOverride
	}
	if combo.ActionOverride != nil {
		action = *combo.ActionOverride
	}

	return &domain.RuleMatch{
		RuleID:     combo.ID,
		RuleName:   combo.Name,
		RuleType:   domain.RuleTypeCombination,
		Priority:   priority,
		Action:     action,
		Confidence: confidence,
		Evidence: map[string]any{
			"operator":         string(combo.Operator),
			"constituent_ids":  combo.RuleIDs,
			"matched_rule_ids": matchedIDs,
		},
		TriggeredAt: time.Now().UTC(),
	}
}

func hasNotCombination(combinations []*domain.RuleCombination) bool {
	for _, c := range combinations {
		if c.Operator == domain.OperatorNOT {
			return true
		}
	}
	return false
}
