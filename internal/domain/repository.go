// Package domain defines the core interfaces and types for the
// counterfeit listing detection engine.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means a referenced record does not exist. A missing
	// product is fatal for that single evaluation.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput means a configuration or request failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Product operations
	SaveProduct(ctx context.Context, product *ProductContext) error
	GetProduct(ctx context.Context, productID string) (*ProductContext, error)
	ListRecentPrices(ctx context.Context, category string, since time.Time, limit int) ([]float64, error)

	// Rule operations
	SaveRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, ruleID string) (*Rule, error)
	ListActiveRules(ctx context.Context) ([]*Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error

	// Combination operations
	SaveCombination(ctx context.Context, combo *RuleCombination) error
	ListActiveCombinations(ctx context.Context) ([]*RuleCombination, error)

	// Chain operations
	SaveChain(ctx context.Context, chain *RuleChain) error
	ListActiveChains(ctx context.Context) ([]*RuleChain, error)

	// Evaluation results
	SaveEvaluation(ctx context.Context, eval *EvaluationResult) error
	GetEvaluation(ctx context.Context, evalID string) (*EvaluationResult, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
