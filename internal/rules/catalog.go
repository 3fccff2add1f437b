// Package rules provides the rule catalog cache, the per-type rule
// evaluators, the logical rule combinator, and the chain processor.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

const (
	categoryKeyPrefix  = "category_"
	categoryKeyGeneral = "category_general"
)

// Catalog caches the active rule set, bucketed by category, together
// with the active combinations and chains. Readers always see a complete
// snapshot; refresh builds a new snapshot and swaps it atomically.
type Catalog struct {
	repo domain.Repository
	ttl  time.Duration

	snap atomic.Pointer[Snapshot]

	// refreshMu serializes refreshes so concurrent stale readers trigger
	// one repository round-trip, not many.
	refreshMu sync.Mutex
}

// Snapshot is an immutable view of the rule catalog at refresh time.
type Snapshot struct {
	buckets      map[string][]*domain.Rule
	combinations []*domain.RuleCombination
	chains       []*domain.RuleChain
	ruleCount    int
	refreshedAt  time.Time
}

// NewCatalog creates a rule catalog backed by the repository. A zero ttl
// defaults to 5 minutes.
func NewCatalog(repo domain.Repository, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{repo: repo, ttl: ttl}
}

// Snapshot returns the current catalog snapshot, refreshing synchronously
// when the cached one has expired. A refresh failure is a hard failure
// for callers that needed it; a still-valid snapshot keeps serving.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.snap.Load(); snap != nil && time.Since(snap.refreshedAt) < c.ttl {
		return snap, nil
	}

	if err := c.refresh(ctx, false); err != nil {
		return nil, err
	}
	return c.snap.Load(), nil
}

// Refresh unconditionally reloads the catalog, bypassing TTL validity.
func (c *Catalog) Refresh(ctx context.Context) error {
	return c.refresh(ctx, true)
}

// refresh reloads the entire active rule set from the repository and
// swaps in a new snapshot. There is no category-granular invalidation.
func (c *Catalog) refresh(ctx context.Context, force bool) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if !force {
		if snap := c.snap.Load(); snap != nil && time.Since(snap.refreshedAt) < c.ttl {
			return nil
		}
	}

	activeRules, err := c.repo.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("catalog refresh: list rules: %w", err)
	}

	combos, err := c.repo.ListActiveCombinations(ctx)
	if err != nil {
		return fmt.Errorf("catalog refresh: list combinations: %w", err)
	}

	chains, err := c.repo.ListActiveChains(ctx)
	if err != nil {
		return fmt.Errorf("catalog refresh: list chains: %w", err)
	}

	buckets := make(map[string][]*domain.Rule)
	for _, rule := range activeRules {
		key := categoryKeyGeneral
		if rule.Category != "" {
			key = categoryKeyPrefix + rule.Category
		}
		buckets[key] = append(buckets[key], rule)
	}

	// Pre-sort each bucket by priority descending so reads concatenate
	// already-ordered slices. Stable keeps repository order for ties.
	for _, bucket := range buckets {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Priority > bucket[j].Priority
		})
	}

	// Malformed combinations and chains never fire; drop them here so
	// evaluation never re-validates.
	validCombos := combos[:0:0]
	for _, combo := range combos {
		if err := combo.Validate(); err != nil {
			slog.Warn("skipping invalid combination", "combination_id", combo.ID, "error", err)
			continue
		}
		validCombos = append(validCombos, combo)
	}

	validChains := chains[:0:0]
	for _, chain := range chains {
		if err := chain.Validate(); err != nil {
			slog.Warn("skipping invalid chain", "chain_id", chain.ID, "error", err)
			continue
		}
		validChains = append(validChains, chain)
	}

	c.snap.Store(&Snapshot{
		buckets:      buckets,
		combinations: validCombos,
		chains:       validChains,
		ruleCount:    len(activeRules),
		refreshedAt:  time.Now(),
	})

	slog.Debug("rule catalog refreshed",
		"rules", len(activeRules),
		"combinations", len(validCombos),
		"chains", len(validChains),
	)

	return nil
}

// ApplicableRules returns the rules for a category concatenated with the
// category-agnostic rules, both sorted by priority descending.
func (s *Snapshot) ApplicableRules(category string) []*domain.Rule {
	var scoped []*domain.Rule
	if category != "" {
		scoped = s.buckets[categoryKeyPrefix+category]
	}
	general := s.buckets[categoryKeyGeneral]

	out := make([]*domain.Rule, 0, len(scoped)+len(general))
	out = append(out, scoped...)
	out = append(out, general...)
	return out
}

// Combinations returns the validated active combinations.
func (s *Snapshot) Combinations() []*domain.RuleCombination {
	return s.combinations
}

// Chains returns the validated active chains.
func (s *Snapshot) Chains() []*domain.RuleChain {
	return s.chains
}

// Rules returns every rule in the snapshot across all buckets.
func (s *Snapshot) Rules() []*domain.Rule {
	out := make([]*domain.Rule, 0, s.ruleCount)
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	return out
}

// RefreshedAt returns when the snapshot was built.
func (s *Snapshot) RefreshedAt() time.Time {
	return s.refreshedAt
}

// Size returns the number of cached rules, or 0 before the first refresh.
func (c *Catalog) Size() int {
	if snap := c.snap.Load(); snap != nil {
		return snap.ruleCount
	}
	return 0
}

// RefreshedAt returns the last refresh time, or the zero time before the
// first refresh.
func (c *Catalog) RefreshedAt() time.Time {
	if snap := c.snap.Load(); snap != nil {
		return snap.refreshedAt
	}
	return time.Time{}
}
