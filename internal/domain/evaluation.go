package domain

import "time"

// ConflictStrategy selects the arbitration algorithm used when matched
// rules recommend different enforcement actions.
type ConflictStrategy string

const (
	StrategyHighestPriority ConflictStrategy = "highest_priority"
	StrategyMostRestrictive ConflictStrategy = "most_restrictive"
	StrategyWeightedAverage ConflictStrategy = "weighted_average"
	StrategyConsensus       ConflictStrategy = "consensus"
	StrategyFirstMatch      ConflictStrategy = "first_match"
)

// Valid reports whether s names a known arbitration strategy.
func (s ConflictStrategy) Valid() bool {
	switch s {
	case StrategyHighestPriority, StrategyMostRestrictive,
		StrategyWeightedAverage, StrategyConsensus, StrategyFirstMatch:
		return true
	}
	return false
}

// ConflictResolution records one arbitration between disagreeing rules.
// Confidence reflects certainty of the arbitration itself, not of the
// underlying detection.
type ConflictResolution struct {
	ConflictingRuleIDs []string         `json:"conflictingRuleIds"`
	Strategy           ConflictStrategy `json:"strategy"`
	WinningRuleID      string           `json:"winningRuleId"`
	WinningAction      Action           `json:"winningAction"`
	Reasoning          string           `json:"reasoning"`
	Confidence         float64          `json:"confidence"` // 0-1
}

// ChainResult reports whether a configured rule chain fired. Chains are
// informational signals for downstream consumers; they never alter the
// risk score or final action.
type ChainResult struct {
	ChainID          string   `json:"chainId"`
	TriggerRuleID    string   `json:"triggerRuleId"`
	Triggered        bool     `json:"triggered"`
	TriggeredRuleIDs []string `json:"triggeredRuleIds,omitempty"`
}

// EvaluationResult is the terminal artifact of one product evaluation,
// handed to the enforcement component.
type EvaluationResult struct {
	EvaluationID string `json:"evaluationId"`
	ProductID    string `json:"productId"`

	RulesEvaluated int `json:"rulesEvaluated"`

	// Matches is sorted by priority descending; equal priorities keep
	// evaluation order.
	Matches []RuleMatch `json:"matches"`

	Conflict *ConflictResolution `json:"conflict,omitempty"`
	Chains   []ChainResult       `json:"chains,omitempty"`

	FinalAction Action  `json:"finalAction"`
	RiskScore   float64 `json:"riskScore"` // 0-100

	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}

// EngineStats is the orchestrator's running aggregate, exposed for
// operational dashboards only.
type EngineStats struct {
	TotalEvaluations    int64     `json:"totalEvaluations"`
	AverageEvaluationMs float64   `json:"averageEvaluationMs"`
	CacheSize           int       `json:"cacheSize"`
	CacheRefreshedAt    time.Time `json:"cacheRefreshedAt"`
}
