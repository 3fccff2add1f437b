// Package decision arbitrates between disagreeing rule matches and
// aggregates matches into a single risk score.
package decision

import (
	"fmt"
	"math"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

// HasConflict reports whether the matched set contains at least two
// distinct enforcement actions.
func HasConflict(matches []*domain.RuleMatch) bool {
	if len(matches) < 2 {
		return false
	}
	first := matches[0].Action
	for _, m := range matches[1:] {
		if m.Action != first {
			return true
		}
	}
	return false
}

// Resolve arbitrates a conflicting match set with the given strategy.
// The matched list is taken in received order; strategies that break
// ties do so on first occurrence, so resolution is deterministic for a
// given input. Callers must have checked HasConflict first.
func Resolve(strategy domain.ConflictStrategy, matches []*domain.RuleMatch) (*domain.ConflictResolution, error) {
	if len(matches) < 2 {
		return nil, fmt.Errorf("resolve: need at least 2 matches, got %d", len(matches))
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.RuleID
	}

	var (
		winner     *domain.RuleMatch
		confidence float64
		reasoning  string
	)

	switch strategy {
	case domain.StrategyHighestPriority:
		winner = highestPriority(matches)
		confidence = 0.9
		reasoning = fmt.Sprintf("rule %s has the highest priority (%d)", winner.RuleID, winner.Priority)

	case domain.StrategyMostRestrictive:
		winner = matches[0]
		for _, m := range matches[1:] {
			if m.Action.Severity() > winner.Action.Severity() {
				winner = m
			}
		}
		confidence = 0.95
		reasoning = fmt.Sprintf("action %q is the most restrictive in the set", winner.Action)

	case domain.StrategyWeightedAverage:
		var weightedSum, prioritySum float64
		for _, m := range matches {
			weightedSum += float64(m.Priority) * m.Confidence
			prioritySum += float64(m.Priority)
		}
		avg := weightedSum / prioritySum
		winner = matches[0]
		best := math.Abs(float64(winner.Priority)*winner.Confidence - avg)
		for _, m := range matches[1:] {
			if d := math.Abs(float64(m.Priority)*m.Confidence - avg); d < best {
				winner, best = m, d
			}
		}
		confidence = 0.8
		reasoning = fmt.Sprintf("rule %s is closest to the weighted average %.2f", winner.RuleID, avg)

	case domain.StrategyConsensus:
		groups := make(map[domain.Action][]*domain.RuleMatch)
		for _, m := range matches {
			groups[m.Action] = append(groups[m.Action], m)
		}
		var majority []*domain.RuleMatch
		for _, group := range groups {
			if len(group)*2 > len(matches) {
				majority = group
				break
			}
		}
		if majority != nil {
			winner = highestPriority(majority)
			confidence = float64(len(majority)) / float64(len(matches))
			reasoning = fmt.Sprintf("action %q holds a %d/%d majority", winner.Action, len(majority), len(matches))
		} else {
			winner = highestPriority(matches)
			confidence = 0.6
			reasoning = fmt.Sprintf("no majority action; fell back to highest priority rule %s", winner.RuleID)
		}

	case domain.StrategyFirstMatch:
		winner = matches[0]
		confidence = 0.5
		reasoning = fmt.Sprintf("rule %s was matched first", winner.RuleID)

	default:
		return nil, fmt.Errorf("resolve: unknown strategy %q", strategy)
	}

	return &domain.ConflictResolution{
		ConflictingRuleIDs: ids,
		Strategy:           strategy,
		WinningRuleID:      winner.RuleID,
		WinningAction:      winner.Action,
		Reasoning:          reasoning,
		Confidence:         confidence,
	}, nil
}

// Effective returns the matches sharing the winning action. Scoring uses
// only the winning side once a conflict has been resolved.
func Effective(matches []*domain.RuleMatch, resolution *domain.ConflictResolution) []*domain.RuleMatch {
	if resolution == nil {
		return matches
	}
	var effective []*domain.RuleMatch
	for _, m := range matches {
		if m.Action == resolution.WinningAction {
			effective = append(effective, m)
		}
	}
	return effective
}

func highestPriority(matches []*domain.RuleMatch) *domain.RuleMatch {
	winner := matches[0]
	for _, m := range matches[1:] {
		if m.Priority > winner.Priority {
			winner = m
		}
	}
	return winner
}
