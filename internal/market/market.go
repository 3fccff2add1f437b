// Package market derives category-level pricing data from recent
// listings.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

const (
	defaultWindow     = 30 * 24 * time.Hour
	defaultSampleSize = 200
	defaultCacheTTL   = 15 * time.Minute

	// minSampleSize is the fewest listings an average may be derived
	// from. Below it the price evaluator degrades to its brand heuristic.
	minSampleSize = 3
)

// Service computes the average observed price per category from recent
// listings, memoized through the cache.
type Service struct {
	repo  domain.Repository
	cache domain.Cache

	window     time.Duration
	sampleSize int
	cacheTTL   time.Duration
}

// NewService creates a market pricing service. cache may be nil to
// disable memoization.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:       repo,
		cache:      cache,
		window:     defaultWindow,
		sampleSize: defaultSampleSize,
		cacheTTL:   defaultCacheTTL,
	}
}

// AveragePrice returns the market pricing snapshot for a category, or
// nil when too few listings exist to form one.
func (s *Service) AveragePrice(ctx context.Context, category string) (*domain.MarketData, error) {
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}

	if s.cache != nil {
		data, err := s.cache.GetMarketData(ctx, category)
		if err != nil {
			slog.Warn("market cache read failed", "category", category, "error", err)
		} else if data != nil {
			return data, nil
		}
	}

	since := time.Now().Add(-s.window)
	prices, err := s.repo.ListRecentPrices(ctx, category, since, s.sampleSize)
	if err != nil {
		return nil, fmt.Errorf("list recent prices: %w", err)
	}
	if len(prices) < minSampleSize {
		return nil, nil
	}

	sum := 0.0
	for _, p := range prices {
		sum += p
	}

	data := &domain.MarketData{
		AveragePrice: sum / float64(len(prices)),
		SampleSize:   len(prices),
		ObservedAt:   time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.SetMarketData(ctx, category, data, s.cacheTTL); err != nil {
			slog.Warn("market cache write failed", "category", category, "error", err)
		}
	}

	return data, nil
}
