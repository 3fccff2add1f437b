package rules

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

// ErrUnknownRuleType means no evaluator is registered for a rule's type.
// The orchestrator logs it as a warning and skips the rule.
var ErrUnknownRuleType = errors.New("unknown rule type")

// Evaluator implements one rule type's matching logic. Evaluate returns
// nil, nil when the rule did not fire; a non-nil match always carries a
// positive confidence. Evaluators are pure and order-independent.
type Evaluator interface {
	Type() domain.RuleType
	Evaluate(rule *domain.Rule, product *domain.ProductContext) (*domain.RuleMatch, error)
}

// Registry dispatches rules to evaluators by rule type.
type Registry struct {
	evaluators map[domain.RuleType]Evaluator
}

// NewRegistry creates a registry from the given evaluators.
func NewRegistry(evaluators ...Evaluator) *Registry {
	m := make(map[domain.RuleType]Evaluator, len(evaluators))
	for _, e := range evaluators {
		m[e.Type()] = e
	}
	return &Registry{evaluators: m}
}

// DefaultRegistry returns a registry with all built-in evaluators.
func DefaultRegistry() (*Registry, error) {
	brand, err := NewBrandEvaluator()
	if err != nil {
		return nil, fmt.Errorf("brand evaluator: %w", err)
	}
	return NewRegistry(
		&ThresholdEvaluator{},
		&KeywordEvaluator{},
		&SupplierEvaluator{},
		&PriceAnomalyEvaluator{},
		brand,
	), nil
}

// Evaluate dispatches a rule to its evaluator.
func (r *Registry) Evaluate(rule *domain.Rule, product *domain.ProductContext) (*domain.RuleMatch, error) {
	ev, ok := r.evaluators[rule.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, rule.Type)
	}
	return ev.Evaluate(rule, product)
}

// newMatch builds a RuleMatch from a fired rule.
func newMatch(rule *domain.Rule, confidence float64, evidence map[string]any) *domain.RuleMatch {
	return &domain.RuleMatch{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		RuleType:    rule.Type,
		Priority:    rule.Priority,
		Action:      rule.Action,
		Confidence:  confidence,
		Evidence:    evidence,
		TriggeredAt: time.Now().UTC(),
	}
}

// ThresholdEvaluator fires when the externally supplied authenticity
// analysis score falls below the configured threshold.
type ThresholdEvaluator struct{}

func (e *ThresholdEvaluator) Type() domain.RuleType { return domain.RuleTypeThreshold }

func (e *ThresholdEvaluator) Evaluate(rule *domain.Rule, product *domain.ProductContext) (*domain.RuleMatch, error) {
	cfg := rule.Threshold
	if cfg == nil || cfg.ScoreThreshold <= 0 {
		return nil, fmt.Errorf("rule %s: threshold config missing or invalid", rule.ID)
	}

	if product.AnalysisScore == nil {
		return nil, nil
	}

	score := *product.AnalysisScore
	if score >= cfg.ScoreThreshold {
		return nil, nil
	}

	confidence := math.Min(1, (cfg.ScoreThreshold-score)/cfg.ScoreThreshold)
	return newMatch(rule, confidence, map[string]any{
		"analysis_score": score,
		"threshold":      cfg.ScoreThreshold,
		"difference":     cfg.ScoreThreshold - score,
	}), nil
}

// KeywordEvaluator scans the listing text for suspicious patterns.
type KeywordEvaluator struct{}

func (e *KeywordEvaluator) Type() domain.RuleType { return domain.RuleTypeKeyword }

func (e *KeywordEvaluator) Evaluate(rule *domain.Rule, product *domain.ProductContext) (*domain.RuleMatch, error) {
	cfg := rule.Keyword
	if cfg == nil || len(cfg.Patterns) == 0 {
		return nil, fmt.Errorf("rule %s: keyword config missing or empty", rule.ID)
	}

	text := product.Description + " " + product.Title
	if !cfg.CaseSensitive {
		text = strings.ToLower(text)
	}

	var found []string
	for _, pattern := range cfg.Patterns {
		p := pattern
		if !cfg.CaseSensitive {
			p = strings.ToLower(p)
		}
		if strings.Contains(text, p) {
			found = append(found, pattern)
		}
	}

	switch cfg.MatchType {
	case domain.MatchAll:
		if len(found) != len(cfg.Patterns) {
			return nil, nil
		}
	case domain.MatchAny:
		if len(found) == 0 {
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("rule %s: unknown matchType %q", rule.ID, cfg.MatchType)
	}

	confidence := float64(len(found)) / float64(len(cfg.Patterns))
	return newMatch(rule, confidence, map[string]any{
		"patterns_matched": found,
		"total_patterns":   len(cfg.Patterns),
	}), nil
}

// SupplierEvaluator checks supplier identity and reputation. The three
// checks fire first-match-wins: blacklist, then whitelist absence, then
// reputation threshold. They are never scored independently. Whitelist
// membership is a trust grant: a whitelisted supplier never reaches the
// reputation check, even with reputation below the threshold.
type SupplierEvaluator struct{}

func (e *SupplierEvaluator) Type() domain.RuleType { return domain.RuleTypeSupplier }

func (e *SupplierEvaluator) Evaluate(rule *domain.Rule, product *domain.ProductContext) (*domain.RuleMatch, error) {
	cfg := rule.Supplier
	if cfg == nil {
		return nil, fmt.Errorf("rule %s: supplier config missing", rule.ID)
	}

	for _, id := range cfg.Blacklist {
		if id == product.SupplierID {
			return newMatch(rule, 1.0, map[string]any{
				"supplier_id": product.SupplierID,
				"reason":      "blacklisted",
			}), nil
		}
	}

	if len(cfg.Whitelist) > 0 {
		whitelisted := false
		for _, id := range cfg.Whitelist {
			if id == product.SupplierID {
				whitelisted = true
				break
			}
		}
		if !whitelisted {
			return newMatch(rule, 0.8, map[string]any{
				"supplier_id": product.SupplierID,
				"reason":      "not whitelisted",
			}), nil
		}
		return nil, nil
	}

	if cfg.ReputationThreshold > 0 && product.SupplierReputation < cfg.ReputationThreshold {
		confidence := (cfg.ReputationThreshold - product.SupplierReputation) / cfg.ReputationThreshold
		return newMatch(rule, confidence, map[string]any{
			"supplier_id": product.SupplierID,
			"reputation":  product.SupplierReputation,
			"threshold":   cfg.ReputationThreshold,
			"reason":      "low reputation",
		}), nil
	}

	return nil, nil
}

// luxuryBrands backs the degraded heuristic used when no market data is
// available. Genuine listings for these brands under the cutoff price are
// implausible.
var luxuryBrands = map[string]bool{
	"rolex":         true,
	"omega":         true,
	"cartier":       true,
	"gucci":         true,
	"prada":         true,
	"chanel":        true,
	"hermes":        true,
	"louis vuitton": true,
	"dior":          true,
	"burberry":      true,
}

const (
	luxuryPriceCutoff   = 50.0
	heuristicConfidence = 0.95
)

// PriceAnomalyEvaluator fires when a price deviates from the market
// average. Without market data it degrades to the luxury-brand heuristic:
// a fixed brand list, a fixed price cutoff, and a constant confidence.
type PriceAnomalyEvaluator struct{}

func (e *PriceAnomalyEvaluator) Type() domain.RuleType { return domain.RuleTypePriceAnomaly }

func (e *PriceAnomalyEvaluator) Evaluate(rule *domain.Rule, product *domain.ProductContext) (*domain.RuleMatch, error) {
	cfg := rule.PriceAnomaly
	if cfg == nil || cfg.DeviationThreshold <= 0 {
		return nil, fmt.Errorf("rule %s: priceAnomaly config missing or invalid", rule.ID)
	}

	if product.Market != nil && product.Market.AveragePrice > 0 {
		avg := product.Market.AveragePrice
		deviation := math.Abs(product.Price-avg) / avg
		ratio := product.Price / avg

		if deviation > cfg.DeviationThreshold || (cfg.MinPriceRatio > 0 && ratio < cfg.MinPriceRatio) {
			confidence := math.Min(1, deviation/cfg.DeviationThreshold)
			return newMatch(rule, confidence, map[string]any{
				"price":         product.Price,
				"average_price": avg,
				"deviation":     deviation,
				"price_ratio":   ratio,
			}), nil
		}
		return nil, nil
	}

	// Degraded path without market data.
	if luxuryBrands[strings.ToLower(product.Brand)] && product.Price < luxuryPriceCutoff {
		return newMatch(rule, heuristicConfidence, map[string]any{
			"price":     product.Price,
			"brand":     product.Brand,
			"heuristic": "luxury_brand_low_price",
		}), nil
	}

	return nil, nil
}
