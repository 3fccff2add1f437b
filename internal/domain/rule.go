package domain

import (
	"fmt"
	"time"
)

// RuleType identifies which evaluator handles a rule.
type RuleType string

const (
	RuleTypeThreshold         RuleType = "threshold"
	RuleTypeKeyword           RuleType = "keyword"
	RuleTypeSupplier          RuleType = "supplier"
	RuleTypePriceAnomaly      RuleType = "price_anomaly"
	RuleTypeBrandVerification RuleType = "brand_verification"

	// RuleTypeCombination marks virtual matches synthesized by the
	// combinator. It is never stored as a rule type.
	RuleTypeCombination RuleType = "combination"
)

// Action is the enforcement action a rule recommends when it fires.
// Ordered by increasing severity.
type Action string

const (
	ActionNone       Action = "none"
	ActionMonitor    Action = "monitor"
	ActionFlag       Action = "flag"
	ActionQuarantine Action = "quarantine"
	ActionBlock      Action = "block"
	ActionRemove     Action = "remove"
)

var actionSeverity = map[Action]int{
	ActionNone:       0,
	ActionMonitor:    1,
	ActionFlag:       2,
	ActionQuarantine: 3,
	ActionBlock:      4,
	ActionRemove:     5,
}

// Severity returns the severity rank of an action. Unknown actions rank 0.
func (a Action) Severity() int {
	return actionSeverity[a]
}

// MostSevere returns the action with the highest severity rank.
// Ties keep the earlier action.
func MostSevere(actions []Action) Action {
	winner := ActionNone
	for _, a := range actions {
		if a.Severity() > winner.Severity() {
			winner = a
		}
	}
	return winner
}

// Rule is a stored detection policy. Exactly one of the typed config
// fields is set, matching Type.
type Rule struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     RuleType `json:"type"`
	Priority int      `json:"priority"` // 1-1000, higher is more authoritative
	Action   Action   `json:"action"`
	Active   bool     `json:"active"`

	// Category scopes the rule; empty applies to all categories.
	Category string `json:"category,omitempty"`

	Threshold    *ThresholdConfig         `json:"threshold,omitempty"`
	Keyword      *KeywordConfig           `json:"keyword,omitempty"`
	Supplier     *SupplierConfig          `json:"supplier,omitempty"`
	PriceAnomaly *PriceAnomalyConfig      `json:"priceAnomaly,omitempty"`
	Brand        *BrandVerificationConfig `json:"brand,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ThresholdConfig triggers when the externally supplied authenticity
// analysis score falls below ScoreThreshold.
type ThresholdConfig struct {
	ScoreThreshold float64 `json:"scoreThreshold"` // 0-100
}

// KeywordConfig triggers on suspicious patterns in the listing text.
type KeywordConfig struct {
	Patterns      []string `json:"patterns"`
	MatchType     string   `json:"matchType"` // "any" or "all"
	CaseSensitive bool     `json:"caseSensitive,omitempty"`
}

const (
	MatchAny = "any"
	MatchAll = "all"
)

// SupplierConfig triggers on supplier identity or reputation. The three
// checks are mutually exclusive: blacklist first, then whitelist absence,
// then reputation threshold.
type SupplierConfig struct {
	Blacklist           []string `json:"blacklist,omitempty"`
	Whitelist           []string `json:"whitelist,omitempty"`
	ReputationThreshold float64  `json:"reputationThreshold,omitempty"` // 0-1
}

// PriceAnomalyConfig triggers on price deviation from the market average.
type PriceAnomalyConfig struct {
	DeviationThreshold float64 `json:"deviationThreshold"`
	MinPriceRatio      float64 `json:"minPriceRatio,omitempty"`
}

// BrandVerificationConfig carries a CEL expression evaluated against the
// product context. The expression must return bool; a true result fires
// with Confidence.
type BrandVerificationConfig struct {
	Expression string  `json:"expression"`
	Confidence float64 `json:"confidence,omitempty"` // default 0.9
}

// Validate checks a rule configuration at authoring time. Evaluators
// assume a validated rule and treat inconsistencies as faults.
func (r *Rule) Validate() error {
	if r.ID == "" || r.Name == "" {
		return fmt.Errorf("%w: rule id and name are required", ErrInvalidInput)
	}
	if r.Priority < 1 || r.Priority > 1000 {
		return fmt.Errorf("%w: priority must be in [1,1000], got %d", ErrInvalidInput, r.Priority)
	}
	if r.Action.Severity() == 0 {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, r.Action)
	}

	switch r.Type {
	case RuleTypeThreshold:
		if r.Threshold == nil {
			return fmt.Errorf("%w: threshold config is required", ErrInvalidInput)
		}
		if r.Threshold.ScoreThreshold <= 0 || r.Threshold.ScoreThreshold > 100 {
			return fmt.Errorf("%w: scoreThreshold must be in (0,100]", ErrInvalidInput)
		}
	case RuleTypeKeyword:
		if r.Keyword == nil || len(r.Keyword.Patterns) == 0 {
			return fmt.Errorf("%w: keyword config requires at least one pattern", ErrInvalidInput)
		}
		if r.Keyword.MatchType != MatchAny && r.Keyword.MatchType != MatchAll {
			return fmt.Errorf("%w: matchType must be %q or %q", ErrInvalidInput, MatchAny, MatchAll)
		}
	case RuleTypeSupplier:
		if r.Supplier == nil {
			return fmt.Errorf("%w: supplier config is required", ErrInvalidInput)
		}
		if len(r.Supplier.Blacklist) == 0 && len(r.Supplier.Whitelist) == 0 && r.Supplier.ReputationThreshold <= 0 {
			return fmt.Errorf("%w: supplier config requires a blacklist, whitelist, or reputation threshold", ErrInvalidInput)
		}
		if r.Supplier.ReputationThreshold < 0 || r.Supplier.ReputationThreshold > 1 {
			return fmt.Errorf("%w: reputationThreshold must be in [0,1]", ErrInvalidInput)
		}
	case RuleTypePriceAnomaly:
		if r.PriceAnomaly == nil {
			return fmt.Errorf("%w: priceAnomaly config is required", ErrInvalidInput)
		}
		if r.PriceAnomaly.DeviationThreshold <= 0 {
			return fmt.Errorf("%w: deviationThreshold must be positive", ErrInvalidInput)
		}
	case RuleTypeBrandVerification:
		if r.Brand == nil || r.Brand.Expression == "" {
			return fmt.Errorf("%w: brand config requires an expression", ErrInvalidInput)
		}
		if r.Brand.Confidence < 0 || r.Brand.Confidence > 1 {
			return fmt.Errorf("%w: brand confidence must be in [0,1]", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidInput, r.Type)
	}

	return nil
}

// RuleMatch is evidence that a rule (or combination) fired against a
// product. Evaluators return nil instead of a zero-confidence match.
type RuleMatch struct {
	RuleID      string         `json:"ruleId"`
	RuleName    string         `json:"ruleName"`
	RuleType    RuleType       `json:"ruleType"`
	Priority    int            `json:"priority"`
	Action      Action         `json:"action"`
	Confidence  float64        `json:"confidence"` // 0-1
	Evidence    map[string]any `json:"evidence,omitempty"`
	TriggeredAt time.Time      `json:"triggeredAt"`
}

// CombinationOperator is the logical operator applied over a
// combination's constituent rule ids.
type CombinationOperator string

const (
	OperatorAND CombinationOperator = "AND"
	OperatorOR  CombinationOperator = "OR"
	OperatorXOR CombinationOperator = "XOR"
	OperatorNOT CombinationOperator = "NOT"
)

// RuleCombination synthesizes a virtual match from the match status of
// several rules.
type RuleCombination struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Operator CombinationOperator `json:"operator"`
	RuleIDs  []string            `json:"ruleIds"` // at least 2

	PriorityOverride *int    `json:"priorityOverride,omitempty"`
	ActionOverride   *Action `json:"actionOverride,omitempty"`
	Active           bool    `json:"active"`
}

// Validate checks a combination at configuration time. Malformed
// combinations are rejected here and never fire during evaluation.
func (c *RuleCombination) Validate() error {
	if c.ID == "" || c.Name == "" {
		return fmt.Errorf("%w: combination id and name are required", ErrInvalidInput)
	}
	if len(c.RuleIDs) < 2 {
		return fmt.Errorf("%w: combination requires at least 2 rule ids", ErrInvalidInput)
	}
	switch c.Operator {
	case OperatorAND, OperatorOR, OperatorXOR:
	case OperatorNOT:
		// A NOT combination fires when none of its constituents matched,
		// so there are no constituent matches to derive priority or
		// action from.
		if c.PriorityOverride == nil || c.ActionOverride == nil {
			return fmt.Errorf("%w: NOT combinations require priorityOverride and actionOverride", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidInput, c.Operator)
	}
	if c.PriorityOverride != nil && (*c.PriorityOverride < 1 || *c.PriorityOverride > 1000) {
		return fmt.Errorf("%w: priorityOverride must be in [1,1000]", ErrInvalidInput)
	}
	if c.ActionOverride != nil && c.ActionOverride.Severity() == 0 {
		return fmt.Errorf("%w: unknown actionOverride %q", ErrInvalidInput, *c.ActionOverride)
	}
	return nil
}

// ChainConditionType selects how a cascading chain entry is evaluated
// against the current match set.
type ChainConditionType string

const (
	ChainConditionAlways        ChainConditionType = "always"
	ChainConditionRiskThreshold ChainConditionType = "risk_threshold"
	ChainConditionRuleCount     ChainConditionType = "rule_count"
)

// ChainLink is one cascading entry of a rule chain.
type ChainLink struct {
	RuleID    string             `json:"ruleId"`
	Condition ChainConditionType `json:"condition"`

	// RiskThreshold applies to risk_threshold conditions: the mean match
	// confidence scaled to 0-100 must exceed it.
	RiskThreshold float64 `json:"riskThreshold,omitempty"`

	// MinRuleCount applies to rule_count conditions.
	MinRuleCount int `json:"minRuleCount,omitempty"`
}

// RuleChain cascades from a trigger rule to dependent entries. Triggered
// chains are reported on the evaluation result but do not feed back into
// scoring or action selection.
type RuleChain struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	TriggerRuleID    string      `json:"triggerRuleId"`
	Links            []ChainLink `json:"links"`
	StopOnFirstMatch bool        `json:"stopOnFirstMatch"`
	Active           bool        `json:"active"`
}

// Validate checks a chain at configuration time.
func (c *RuleChain) Validate() error {
	if c.ID == "" || c.TriggerRuleID == "" {
		return fmt.Errorf("%w: chain id and triggerRuleId are required", ErrInvalidInput)
	}
	if len(c.Links) == 0 {
		return fmt.Errorf("%w: chain requires at least one link", ErrInvalidInput)
	}
	for i, link := range c.Links {
		if link.RuleID == "" {
			return fmt.Errorf("%w: chain link %d missing ruleId", ErrInvalidInput, i)
		}
		switch link.Condition {
		case ChainConditionAlways:
		case ChainConditionRiskThreshold:
			if link.RiskThreshold <= 0 || link.RiskThreshold > 100 {
				return fmt.Errorf("%w: chain link %d riskThreshold must be in (0,100]", ErrInvalidInput, i)
			}
		case ChainConditionRuleCount:
			if link.MinRuleCount < 1 {
				return fmt.Errorf("%w: chain link %d minRuleCount must be at least 1", ErrInvalidInput, i)
			}
		default:
			return fmt.Errorf("%w: chain link %d has unknown condition %q", ErrInvalidInput, i, link.Condition)
		}
	}
	return nil
}
