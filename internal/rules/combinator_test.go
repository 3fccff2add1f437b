package rules

import (
	"math"
	"testing"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

func matchFor(ruleID string, priority int, action domain.Action, confidence float64) *domain.RuleMatch {
	return &domain.RuleMatch{
		RuleID:     ruleID,
		RuleName:   ruleID,
		RuleType:   domain.RuleTypeKeyword,
		Priority:   priority,
		Action:     action,
		Confidence: confidence,
	}
}

func intPtr(v int) *int { return &v }

func actionPtr(a domain.Action) *domain.Action { return &a }

func combo(id string, op domain.CombinationOperator, ruleIDs ...string) *domain.RuleCombination {
	return &domain.RuleCombination{
		ID:       id,
		Name:     id,
		Operator: op,
		RuleIDs:  ruleIDs,
		Active:   true,
	}
}

func TestApplyCombinations(t *testing.T) {
	t.Run("ANDFiresWhenAllMatched", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
			matchFor("r2", 800, domain.ActionBlock, 0.8),
		}

		virtual := ApplyCombinations([]*domain.RuleCombination{combo("c1", domain.OperatorAND, "r1", "r2")}, matches)
		if len(virtual) != 1 {
			t.Fatalf("expected 1 virtual match, got %d", len(virtual))
		}

		vm := virtual[0]
		if vm.RuleType != domain.RuleTypeCombination {
			t.Errorf("expected combination type, got %s", vm.RuleType)
		}
		if math.Abs(vm.Confidence-0.7) > 1e-9 {
			t.Errorf("expected mean confidence 0.7, got %f", vm.Confidence)
		}
		if vm.Priority != 800 {
			t.Errorf("expected max priority 800, got %d", vm.Priority)
		}
		if vm.Action != domain.ActionBlock {
			t.Errorf("expected most severe action block, got %s", vm.Action)
		}
	})

	t.Run("ANDUnfiresWhenConstituentMissing", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
		}

		virtual := ApplyCombinations([]*domain.RuleCombination{combo("c1", domain.OperatorAND, "r1", "r2")}, matches)
		if len(virtual) != 0 {
			t.Errorf("expected no virtual matches, got %d", len(virtual))
		}
	})

	t.Run("ORFiresOnAnyConstituent", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			matchFor("r2", 800, domain.ActionBlock, 0.8),
		}

		virtual := ApplyCombinations([]*domain.RuleCombination{combo("c1", domain.OperatorOR, "r1", "r2")}, matches)
		if len(virtual) != 1 {
			t.Fatalf("expected 1 virtual match, got %d", len(virtual))
		}
		if virtual[0].Confidence != 0.8 {
			t.Errorf("expected confidence 0.8, got %f", virtual[0].Confidence)
		}
	})

	t.Run("XORFiresOnExactlyOne", func(t *testing.T) {
		c := combo("c1", domain.OperatorXOR, "r1", "r2")

		none := ApplyCombinations([]*domain.RuleCombination{c}, []*domain.RuleMatch{
			matchFor("r3", 100, domain.ActionMonitor, 0.5),
		})
		if len(none) != 0 {
			t.Errorf("expected no match with zero constituents, got %d", len(none))
		}

		one := ApplyCombinations([]*domain.RuleCombination{c}, []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
		})
		if len(one) != 1 {
			t.Errorf("expected a match with one constituent, got %d", len(one))
		}

		two := ApplyCombinations([]*domain.RuleCombination{c}, []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
			matchFor("r2", 800, domain.ActionBlock, 0.8),
		})
		if len(two) != 0 {
			t.Errorf("expected no match with two constituents, got %d", len(two))
		}
	})

	t.Run("NOTFiresOnAbsence", func(t *testing.T) {
		c := combo("c1", domain.OperatorNOT, "r1", "r2")
		c.PriorityOverride = intPtr(300)
		c.ActionOverride = actionPtr(domain.ActionMonitor)

		virtual := ApplyCombinations([]*domain.RuleCombination{c}, []*domain.RuleMatch{
			matchFor("r3", 100, domain.ActionMonitor, 0.5),
		})
		if len(virtual) != 1 {
			t.Fatalf("expected 1 virtual match, got %d", len(virtual))
		}
		vm := virtual[0]
		if vm.Confidence != 1.0 {
			t.Errorf("expected confidence 1.0, got %f", vm.Confidence)
		}
		if vm.Priority != 300 {
			t.Errorf("expected override priority 300, got %d", vm.Priority)
		}
		if vm.Action != domain.ActionMonitor {
			t.Errorf("expected override action monitor, got %s", vm.Action)
		}
	})

	t.Run("NOTFiresOnEmptyMatchSet", func(t *testing.T) {
		c := combo("c1", domain.OperatorNOT, "r1", "r2")
		c.PriorityOverride = intPtr(300)
		c.ActionOverride = actionPtr(domain.ActionMonitor)

		virtual := ApplyCombinations([]*domain.RuleCombination{c}, nil)
		if len(virtual) != 1 {
			t.Errorf("expected NOT to fire on an empty match set, got %d", len(virtual))
		}
	})

	t.Run("NOTUnfiresWhenConstituentMatched", func(t *testing.T) {
		c := combo("c1", domain.OperatorNOT, "r1", "r2")
		c.PriorityOverride = intPtr(300)
		c.ActionOverride = actionPtr(domain.ActionMonitor)

		virtual := ApplyCombinations([]*domain.RuleCombination{c}, []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
		})
		if len(virtual) != 0 {
			t.Errorf("expected no match, got %d", len(virtual))
		}
	})

	t.Run("OverridesApplyToAND", func(t *testing.T) {
		c := combo("c1", domain.OperatorAND, "r1", "r2")
		c.PriorityOverride = intPtr(950)
		c.ActionOverride = actionPtr(domain.ActionRemove)

		virtual := ApplyCombinations([]*domain.RuleCombination{c}, []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
			matchFor("r2", 800, domain.ActionBlock, 0.8),
		})
		if len(virtual) != 1 {
			t.Fatalf("expected 1 virtual match, got %d", len(virtual))
		}
		if virtual[0].Priority != 950 {
			t.Errorf("expected override priority 950, got %d", virtual[0].Priority)
		}
		if virtual[0].Action != domain.ActionRemove {
			t.Errorf("expected override action remove, got %s", virtual[0].Action)
		}
	})

	t.Run("DuplicateRuleIDsUseFirstOccurrence", func(t *testing.T) {
		virtual := ApplyCombinations([]*domain.RuleCombination{combo("c1", domain.OperatorOR, "r1", "r2")}, []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
			matchFor("r1", 900, domain.ActionRemove, 0.9),
		})
		if len(virtual) != 1 {
			t.Fatalf("expected 1 virtual match, got %d", len(virtual))
		}
		if virtual[0].Confidence != 0.6 {
			t.Errorf("expected first-occurrence confidence 0.6, got %f", virtual[0].Confidence)
		}
	})
}
