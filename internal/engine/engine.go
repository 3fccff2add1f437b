// Package engine runs the evaluation pipeline for a single product:
// fetch applicable rules, run evaluators, apply combinations, resolve
// conflicts, process chains, and score the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/decision"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/rules"
)

// MarketSource supplies the average observed price for a category.
// A nil MarketData with nil error means no pricing is available and the
// price evaluator should use its degraded heuristic.
type MarketSource interface {
	AveragePrice(ctx context.Context, category string) (*domain.MarketData, error)
}

// Engine orchestrates counterfeit evaluations. It is safe for
// concurrent use; a single Evaluate call runs evaluators sequentially.
type Engine struct {
	repo     domain.Repository
	catalog  *rules.Catalog
	registry *rules.Registry
	market   MarketSource
	cfg      domain.EngineConfig

	mu           sync.Mutex
	totalEvals   int64
	cumulativeMs int64
}

// New creates an evaluation engine. market may be nil when no pricing
// source is configured.
func New(repo domain.Repository, catalog *rules.Catalog, registry *rules.Registry, market MarketSource, cfg domain.EngineConfig) *Engine {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 5
	}
	if cfg.ConflictStrategy == "" {
		cfg.ConflictStrategy = domain.StrategyMostRestrictive
	}
	return &Engine{
		repo:     repo,
		catalog:  catalog,
		registry: registry,
		market:   market,
		cfg:      cfg,
	}
}

// Options tunes a single evaluation.
type Options struct {
	// AnalysisScore is the optional 0-100 authenticity score from the
	// external analyzer.
	AnalysisScore *float64

	// Force refreshes the rule catalog before evaluating, bypassing TTL.
	Force bool

	// Strategy overrides the engine's default conflict strategy.
	Strategy domain.ConflictStrategy
}

// Evaluate runs the full pipeline for one product. A missing product is
// fatal for the evaluation and surfaced as domain.ErrNotFound. Evaluator
// faults are logged per rule and skipped; the remaining rules still run.
func (e *Engine) Evaluate(ctx context.Context, productID string, opts Options) (*domain.EvaluationResult, error) {
	start := time.Now()

	if opts.Force {
		if err := e.catalog.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("catalog refresh: %w", err)
		}
	}
	snap, err := e.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	product, err := e.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}

	if opts.AnalysisScore != nil {
		product.AnalysisScore = opts.AnalysisScore
	}
	if product.Market == nil && e.market != nil {
		md, err := e.market.AveragePrice(ctx, product.Category)
		if err != nil {
			slog.Warn("market data unavailable", "category", product.Category, "error", err)
		} else {
			product.Market = md
		}
	}

	applicable := snap.ApplicableRules(product.Category)
	matches := make([]*domain.RuleMatch, 0, len(applicable))
	for _, rule := range applicable {
		match, err := e.registry.Evaluate(rule, product)
		if err != nil {
			if errors.Is(err, rules.ErrUnknownRuleType) {
				slog.Warn("skipping rule with unknown type", "rule_id", rule.ID, "type", rule.Type)
			} else {
				slog.Error("evaluator fault", "rule_id", rule.ID, "error", err)
			}
			continue
		}
		if match != nil {
			matches = append(matches, match)
		}
	}

	matches = append(matches, rules.ApplyCombinations(snap.Combinations(), matches)...)

	strategy := e.cfg.ConflictStrategy
	if opts.Strategy != "" {
		strategy = opts.Strategy
	}
	var resolution *domain.ConflictResolution
	if decision.HasConflict(matches) {
		resolution, err = decision.Resolve(strategy, matches)
		if err != nil {
			return nil, fmt.Errorf("resolve conflict: %w", err)
		}
	}

	chains := rules.ProcessChains(snap.Chains(), matches)

	score := decision.Score(decision.Effective(matches, resolution))
	finalAction := decision.FinalAction(matches, resolution)

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority > matches[j].Priority
	})

	result := &domain.EvaluationResult{
		EvaluationID:   uuid.New().String(),
		ProductID:      productID,
		RulesEvaluated: len(applicable),
		Matches:        dereference(matches),
		Conflict:       resolution,
		Chains:         dereferenceChains(chains),
		FinalAction:    finalAction,
		RiskScore:      score,
		StartedAt:      start.UTC(),
		DurationMs:     time.Since(start).Milliseconds(),
	}

	e.mu.Lock()
	e.totalEvals++
	e.cumulativeMs += result.DurationMs
	e.mu.Unlock()

	return result, nil
}

// BatchItem is one entry in a batch evaluation result, positionally
// aligned with the input id list. Exactly one of Result and Err is set.
type BatchItem struct {
	ProductID string
	Result    *domain.EvaluationResult
	Err       error
}

// EvaluateBatch fans out evaluations over the id list with bounded
// concurrency. Per-item failures are captured in the corresponding
// BatchItem; the batch call itself only fails on nil input. Cancelling
// ctx marks not-yet-started items with the context error.
func (e *Engine) EvaluateBatch(ctx context.Context, productIDs []string, analysisScores map[string]float64) []BatchItem {
	items := make([]BatchItem, len(productIDs))
	sem := make(chan struct{}, e.cfg.BatchConcurrency)
	var wg sync.WaitGroup

	for i, id := range productIDs {
		items[i].ProductID = id

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			items[i].Err = ctx.Err()
			continue
		}

		wg.Add(1)
		go func(idx int, productID string) {
			defer wg.Done()
			defer func() { <-sem }()

			opts := Options{}
			if score, ok := analysisScores[productID]; ok {
				s := score
				opts.AnalysisScore = &s
			}
			result, err := e.Evaluate(ctx, productID, opts)
			items[idx].Result = result
			items[idx].Err = err
		}(i, id)
	}

	wg.Wait()
	return items
}

// Stats returns the running aggregate for dashboards.
func (e *Engine) Stats() domain.EngineStats {
	e.mu.Lock()
	total, cumulative := e.totalEvals, e.cumulativeMs
	e.mu.Unlock()

	stats := domain.EngineStats{
		TotalEvaluations: total,
		CacheSize:        e.catalog.Size(),
		CacheRefreshedAt: e.catalog.RefreshedAt(),
	}
	if total > 0 {
		stats.AverageEvaluationMs = float64(cumulative) / float64(total)
	}
	return stats
}

func dereference(matches []*domain.RuleMatch) []domain.RuleMatch {
	out := make([]domain.RuleMatch, len(matches))
	for i, m := range matches {
		out[i] = *m
	}
	return out
}

func dereferenceChains(chains []*domain.ChainResult) []domain.ChainResult {
	if len(chains) == 0 {
		return nil
	}
	out := make([]domain.ChainResult, len(chains))
	for i, c := range chains {
		out[i] = *c
	}
	return out
}
