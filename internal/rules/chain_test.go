package rules

import (
	"testing"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

func chain(id, trigger string, stopOnFirst bool, links ...domain.ChainLink) *domain.RuleChain {
	return &domain.RuleChain{
		ID:               id,
		Name:             id,
		TriggerRuleID:    trigger,
		Links:            links,
		StopOnFirstMatch: stopOnFirst,
		Active:           true,
	}
}

func TestProcessChains(t *testing.T) {
	t.Run("SkippedWhenTriggerNotMatched", func(t *testing.T) {
		c := chain("ch1", "r9", false, domain.ChainLink{RuleID: "r2", Condition: domain.ChainConditionAlways})
		matches := []*domain.RuleMatch{matchFor("r1", 500, domain.ActionFlag, 0.6)}

		results := ProcessChains([]*domain.RuleChain{c}, matches)
		if len(results) != 0 {
			t.Errorf("expected no chain results, got %d", len(results))
		}
	})

	t.Run("AlwaysLinkTriggers", func(t *testing.T) {
		c := chain("ch1", "r1", false, domain.ChainLink{RuleID: "r2", Condition: domain.ChainConditionAlways})
		matches := []*domain.RuleMatch{matchFor("r1", 500, domain.ActionFlag, 0.6)}

		results := ProcessChains([]*domain.RuleChain{c}, matches)
		if len(results) != 1 {
			t.Fatalf("expected 1 chain result, got %d", len(results))
		}
		if !results[0].Triggered {
			t.Error("expected the chain to trigger")
		}
		if len(results[0].TriggeredRuleIDs) != 1 || results[0].TriggeredRuleIDs[0] != "r2" {
			t.Errorf("expected triggered rule r2, got %v", results[0].TriggeredRuleIDs)
		}
	})

	t.Run("RiskThresholdLink", func(t *testing.T) {
		c := chain("ch1", "r1", false,
			domain.ChainLink{RuleID: "r2", Condition: domain.ChainConditionRiskThreshold, RiskThreshold: 50},
		)

		// Mean confidence 0.7 scales to 70, above the threshold.
		high := []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
			matchFor("r3", 600, domain.ActionFlag, 0.8),
		}
		results := ProcessChains([]*domain.RuleChain{c}, high)
		if len(results) != 1 || !results[0].Triggered {
			t.Error("expected the chain to trigger above the risk threshold")
		}

		// Mean confidence 0.3 scales to 30, below the threshold.
		low := []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.3),
		}
		results = ProcessChains([]*domain.RuleChain{c}, low)
		if len(results) != 1 {
			t.Fatalf("expected 1 chain result, got %d", len(results))
		}
		if results[0].Triggered {
			t.Error("expected the chain not to trigger below the risk threshold")
		}
	})

	t.Run("RuleCountLink", func(t *testing.T) {
		c := chain("ch1", "r1", false,
			domain.ChainLink{RuleID: "r2", Condition: domain.ChainConditionRuleCount, MinRuleCount: 2},
		)

		one := []*domain.RuleMatch{matchFor("r1", 500, domain.ActionFlag, 0.6)}
		results := ProcessChains([]*domain.RuleChain{c}, one)
		if results[0].Triggered {
			t.Error("expected the chain not to trigger with one match")
		}

		two := []*domain.RuleMatch{
			matchFor("r1", 500, domain.ActionFlag, 0.6),
			matchFor("r3", 600, domain.ActionFlag, 0.8),
		}
		results = ProcessChains([]*domain.RuleChain{c}, two)
		if !results[0].Triggered {
			t.Error("expected the chain to trigger with two matches")
		}
	})

	t.Run("StopOnFirstMatch", func(t *testing.T) {
		c := chain("ch1", "r1", true,
			domain.ChainLink{RuleID: "r2", Condition: domain.ChainConditionAlways},
			domain.ChainLink{RuleID: "r3", Condition: domain.ChainConditionAlways},
		)
		matches := []*domain.RuleMatch{matchFor("r1", 500, domain.ActionFlag, 0.6)}

		results := ProcessChains([]*domain.RuleChain{c}, matches)
		if len(results[0].TriggeredRuleIDs) != 1 {
			t.Errorf("expected evaluation to stop after the first link, got %v", results[0].TriggeredRuleIDs)
		}
	})

	t.Run("AllLinksWithoutStop", func(t *testing.T) {
		c := chain("ch1", "r1", false,
			domain.ChainLink{RuleID: "r2", Condition: domain.ChainConditionAlways},
			domain.ChainLink{RuleID: "r3", Condition: domain.ChainConditionAlways},
		)
		matches := []*domain.RuleMatch{matchFor("r1", 500, domain.ActionFlag, 0.6)}

		results := ProcessChains([]*domain.RuleChain{c}, matches)
		if len(results[0].TriggeredRuleIDs) != 2 {
			t.Errorf("expected both links to trigger, got %v", results[0].TriggeredRuleIDs)
		}
	})
}
