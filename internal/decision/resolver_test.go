package decision

import (
	"math"
	"testing"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

func match(ruleID string, priority int, action domain.Action, confidence float64) *domain.RuleMatch {
	return &domain.RuleMatch{
		RuleID:     ruleID,
		RuleName:   ruleID,
		RuleType:   domain.RuleTypeKeyword,
		Priority:   priority,
		Action:     action,
		Confidence: confidence,
	}
}

func TestHasConflict(t *testing.T) {
	t.Run("SingleMatchNeverConflicts", func(t *testing.T) {
		matches := []*domain.RuleMatch{match("r1", 500, domain.ActionBlock, 0.9)}
		if HasConflict(matches) {
			t.Error("expected no conflict for a single match")
		}
	})

	t.Run("SameActionsDoNotConflict", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r1", 500, domain.ActionFlag, 0.9),
			match("r2", 300, domain.ActionFlag, 0.7),
		}
		if HasConflict(matches) {
			t.Error("expected no conflict when all matches agree")
		}
	})

	t.Run("DistinctActionsConflict", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r1", 500, domain.ActionFlag, 0.9),
			match("r2", 300, domain.ActionBlock, 0.7),
		}
		if !HasConflict(matches) {
			t.Error("expected conflict for distinct actions")
		}
	})
}

func TestResolve(t *testing.T) {
	t.Run("MostRestrictivePicksHighestSeverity", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r-flag", 200, domain.ActionFlag, 0.9),
			match("r-block", 800, domain.ActionBlock, 0.7),
		}
		res, err := Resolve(domain.StrategyMostRestrictive, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if res.WinningAction != domain.ActionBlock {
			t.Errorf("expected block to win, got %q", res.WinningAction)
		}
		if res.WinningRuleID != "r-block" {
			t.Errorf("expected r-block to win, got %s", res.WinningRuleID)
		}
		if res.Confidence != 0.95 {
			t.Errorf("expected confidence 0.95, got %v", res.Confidence)
		}
	})

	t.Run("HighestPriorityWins", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r-low", 200, domain.ActionRemove, 0.9),
			match("r-high", 800, domain.ActionFlag, 0.5),
		}
		res, err := Resolve(domain.StrategyHighestPriority, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if res.WinningRuleID != "r-high" {
			t.Errorf("expected r-high to win, got %s", res.WinningRuleID)
		}
		if res.Confidence != 0.9 {
			t.Errorf("expected confidence 0.9, got %v", res.Confidence)
		}
	})

	t.Run("WeightedAveragePicksClosest", func(t *testing.T) {
		// Priority-confidence products are 400 and 180 against a
		// weighted average of 0.58, so r2's product sits closer.
		matches := []*domain.RuleMatch{
			match("r1", 800, domain.ActionBlock, 0.5),
			match("r2", 200, domain.ActionFlag, 0.9),
		}
		res, err := Resolve(domain.StrategyWeightedAverage, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if res.WinningRuleID != "r2" {
			t.Errorf("expected r2 closest to weighted average, got %s", res.WinningRuleID)
		}
		if res.Confidence != 0.8 {
			t.Errorf("expected confidence 0.8, got %v", res.Confidence)
		}
	})

	t.Run("ConsensusMajorityWins", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r1", 500, domain.ActionBlock, 0.8),
			match("r2", 700, domain.ActionBlock, 0.9),
			match("r3", 900, domain.ActionFlag, 0.6),
		}
		res, err := Resolve(domain.StrategyConsensus, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if res.WinningAction != domain.ActionBlock {
			t.Errorf("expected majority action block, got %q", res.WinningAction)
		}
		if res.WinningRuleID != "r2" {
			t.Errorf("expected highest priority member of majority, got %s", res.WinningRuleID)
		}
		want := 2.0 / 3.0
		if math.Abs(res.Confidence-want) > 1e-9 {
			t.Errorf("expected confidence %v, got %v", want, res.Confidence)
		}
	})

	t.Run("ConsensusFallbackWithoutMajority", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r1", 500, domain.ActionBlock, 0.8),
			match("r2", 900, domain.ActionFlag, 0.9),
		}
		res, err := Resolve(domain.StrategyConsensus, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if res.WinningRuleID != "r2" {
			t.Errorf("expected fallback to highest priority, got %s", res.WinningRuleID)
		}
		if res.Confidence != 0.6 {
			t.Errorf("expected fallback confidence 0.6, got %v", res.Confidence)
		}
	})

	t.Run("FirstMatchWins", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r1", 200, domain.ActionFlag, 0.5),
			match("r2", 900, domain.ActionBlock, 0.9),
		}
		res, err := Resolve(domain.StrategyFirstMatch, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if res.WinningRuleID != "r1" {
			t.Errorf("expected first match to win, got %s", res.WinningRuleID)
		}
		if res.Confidence != 0.5 {
			t.Errorf("expected confidence 0.5, got %v", res.Confidence)
		}
	})

	t.Run("DeterministicForSameInput", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r1", 500, domain.ActionBlock, 0.8),
			match("r2", 500, domain.ActionFlag, 0.8),
			match("r3", 500, domain.ActionMonitor, 0.8),
		}
		first, err := Resolve(domain.StrategyHighestPriority, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		for i := 0; i < 10; i++ {
			res, err := Resolve(domain.StrategyHighestPriority, matches)
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			if res.WinningRuleID != first.WinningRuleID {
				t.Fatalf("resolution not deterministic: %s vs %s", res.WinningRuleID, first.WinningRuleID)
			}
		}
	})

	t.Run("RecordsConflictingRuleIDs", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r1", 200, domain.ActionFlag, 0.5),
			match("r2", 900, domain.ActionBlock, 0.9),
		}
		res, err := Resolve(domain.StrategyMostRestrictive, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if len(res.ConflictingRuleIDs) != 2 || res.ConflictingRuleIDs[0] != "r1" || res.ConflictingRuleIDs[1] != "r2" {
			t.Errorf("unexpected conflicting rule ids: %v", res.ConflictingRuleIDs)
		}
		if res.Reasoning == "" {
			t.Error("expected non-empty reasoning")
		}
	})

	t.Run("FewerThanTwoMatchesIsAnError", func(t *testing.T) {
		if _, err := Resolve(domain.StrategyMostRestrictive, []*domain.RuleMatch{match("r1", 500, domain.ActionFlag, 0.5)}); err == nil {
			t.Error("expected error for a single match")
		}
	})

	t.Run("UnknownStrategyIsAnError", func(t *testing.T) {
		matches := []*domain.RuleMatch{
			match("r1", 200, domain.ActionFlag, 0.5),
			match("r2", 900, domain.ActionBlock, 0.9),
		}
		if _, err := Resolve(domain.ConflictStrategy("majority_rules"), matches); err == nil {
			t.Error("expected error for unknown strategy")
		}
	})
}

func TestEffective(t *testing.T) {
	matches := []*domain.RuleMatch{
		match("r1", 200, domain.ActionFlag, 0.5),
		match("r2", 900, domain.ActionBlock, 0.9),
		match("r3", 400, domain.ActionBlock, 0.7),
	}

	t.Run("NilResolutionKeepsAllMatches", func(t *testing.T) {
		if got := Effective(matches, nil); len(got) != 3 {
			t.Errorf("expected all 3 matches, got %d", len(got))
		}
	})

	t.Run("FiltersToWinningAction", func(t *testing.T) {
		res, err := Resolve(domain.StrategyMostRestrictive, matches)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		effective := Effective(matches, res)
		if len(effective) != 2 {
			t.Fatalf("expected 2 effective matches, got %d", len(effective))
		}
		for _, m := range effective {
			if m.Action != domain.ActionBlock {
				t.Errorf("expected only block matches, got %q", m.Action)
			}
		}
	})
}
