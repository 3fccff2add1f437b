// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveProduct stores a product listing, replacing any existing row.
func (r *SQLRepository) SaveProduct(ctx context.Context, product *domain.ProductContext) error {
	if product.ID == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO products (
			id, category, title, description, brand, price,
			supplier_id, supplier_reputation, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			title = excluded.title,
			description = excluded.description,
			brand = excluded.brand,
			price = excluded.price,
			supplier_id = excluded.supplier_id,
			supplier_reputation = excluded.supplier_reputation,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		product.ID, product.Category, product.Title, product.Description,
		product.Brand, product.Price,
		product.SupplierID, product.SupplierReputation,
		product.CreatedAt, product.UpdatedAt,
	)
	return err
}

// GetProduct retrieves a product listing by ID.
func (r *SQLRepository) GetProduct(ctx context.Context, productID string) (*domain.ProductContext, error) {
	query := `
		SELECT id, category, title, description, brand, price,
			   supplier_id, supplier_reputation, created_at, updated_at
		FROM products
		WHERE id = ?
	`

	var p domain.ProductContext
	err := r.db.QueryRowContext(ctx, r.rebind(query), productID).Scan(
		&p.ID, &p.Category, &p.Title, &p.Description, &p.Brand, &p.Price,
		&p.SupplierID, &p.SupplierReputation, &p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// ListRecentPrices returns the most recent listing prices for a category,
// newest first. Used by the market pricing source to compute averages.
func (r *SQLRepository) ListRecentPrices(ctx context.Context, category string, since time.Time, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT price
		FROM products
		WHERE category = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), category, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var price float64
		if err := rows.Scan(&price); err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}

	return prices, rows.Err()
}

// ruleConfig is the JSON shape of the rules.config column. Exactly one
// field is set, matching the rule's type.
type ruleConfig struct {
	Threshold    *domain.ThresholdConfig         `json:"threshold,omitempty"`
	Keyword      *domain.KeywordConfig           `json:"keyword,omitempty"`
	Supplier     *domain.SupplierConfig          `json:"supplier,omitempty"`
	PriceAnomaly *domain.PriceAnomalyConfig      `json:"priceAnomaly,omitempty"`
	Brand        *domain.BrandVerificationConfig `json:"brand,omitempty"`
}

// SaveRule stores a rule definition, replacing any existing row.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	config, err := json.Marshal(ruleConfig{
		Threshold:    rule.Threshold,
		Keyword:      rule.Keyword,
		Supplier:     rule.Supplier,
		PriceAnomaly: rule.PriceAnomaly,
		Brand:        rule.Brand,
	})
	if err != nil {
		return fmt.Errorf("marshal rule config: %w", err)
	}

	active := 0
	if rule.Active {
		active = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rules (
			id, name, type, priority, action, category, config, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			priority = excluded.priority,
			action = excluded.action,
			category = excluded.category,
			config = excluded.config,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Type, rule.Priority, rule.Action,
		rule.Category, string(config), active, now, now,
	)
	return err
}

// GetRule retrieves an active rule by ID. Soft-deleted rules are not
// found.
func (r *SQLRepository) GetRule(ctx context.Context, ruleID string) (*domain.Rule, error) {
	query := `
		SELECT id, name, type, priority, action, category, config, active, created_at, updated_at
		FROM rules
		WHERE id = ? AND active = 1
	`

	rule, err := r.scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rule, err
}

// ListActiveRules retrieves all active rules.
func (r *SQLRepository) ListActiveRules(ctx context.Context) ([]*domain.Rule, error) {
	query := `
		SELECT id, name, type, priority, action, category, config, active, created_at, updated_at
		FROM rules
		WHERE active = 1
		ORDER BY priority DESC, name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Rule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rule)
	}

	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanRule(row rowScanner) (*domain.Rule, error) {
	var rule domain.Rule
	var config string
	var active int

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Type, &rule.Priority, &rule.Action,
		&rule.Category, &config, &active, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Active = active == 1

	var cfg ruleConfig
	if err := json.Unmarshal([]byte(config), &cfg); err != nil {
		return nil, fmt.Errorf("parse rule config for %s: %w", rule.ID, err)
	}
	rule.Threshold = cfg.Threshold
	rule.Keyword = cfg.Keyword
	rule.Supplier = cfg.Supplier
	rule.PriceAnomaly = cfg.PriceAnomaly
	rule.Brand = cfg.Brand

	return &rule, nil
}

// DeleteRule soft-deletes a rule by setting active = 0.
func (r *SQLRepository) DeleteRule(ctx context.Context, ruleID string) error {
	query := `
		UPDATE rules
		SET active = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// SaveCombination stores a rule combination, replacing any existing row.
func (r *SQLRepository) SaveCombination(ctx context.Context, combo *domain.RuleCombination) error {
	if err := combo.Validate(); err != nil {
		return err
	}

	ruleIDs, err := json.Marshal(combo.RuleIDs)
	if err != nil {
		return fmt.Errorf("marshal rule ids: %w", err)
	}

	active := 0
	if combo.Active {
		active = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_combinations (
			id, name, operator, rule_ids, priority_override, action_override, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			operator = excluded.operator,
			rule_ids = excluded.rule_ids,
			priority_override = excluded.priority_override,
			action_override = excluded.action_override,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		combo.ID, combo.Name, combo.Operator, string(ruleIDs),
		combo.PriorityOverride, combo.ActionOverride, active, now, now,
	)
	return err
}

// ListActiveCombinations retrieves all active rule combinations.
func (r *SQLRepository) ListActiveCombinations(ctx context.Context) ([]*domain.RuleCombination, error) {
	query := `
		SELECT id, name, operator, rule_ids, priority_override, action_override, active
		FROM rule_combinations
		WHERE active = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.RuleCombination
	for rows.Next() {
		var combo domain.RuleCombination
		var ruleIDs string
		var priorityOverride sql.NullInt64
		var actionOverride sql.NullString
		var active int

		if err := rows.Scan(
			&combo.ID, &combo.Name, &combo.Operator, &ruleIDs,
			&priorityOverride, &actionOverride, &active,
		); err != nil {
			return nil, err
		}

		combo.Active = active == 1
		if err := json.Unmarshal([]byte(ruleIDs), &combo.RuleIDs); err != nil {
			return nil, fmt.Errorf("parse rule ids for %s: %w", combo.ID, err)
		}
		if priorityOverride.Valid {
			p := int(priorityOverride.Int64)
			combo.PriorityOverride = &p
		}
		if actionOverride.Valid {
			a := domain.Action(actionOverride.String)
			combo.ActionOverride = &a
		}

		result = append(result, &combo)
	}

	return result, rows.Err()
}

// SaveChain stores a rule chain, replacing any existing row.
func (r *SQLRepository) SaveChain(ctx context.Context, chain *domain.RuleChain) error {
	if err := chain.Validate(); err != nil {
		return err
	}

	links, err := json.Marshal(chain.Links)
	if err != nil {
		return fmt.Errorf("marshal chain links: %w", err)
	}

	stop := 0
	if chain.StopOnFirstMatch {
		stop = 1
	}
	active := 0
	if chain.Active {
		active = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_chains (
			id, name, trigger_rule_id, links, stop_on_first_match, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			trigger_rule_id = excluded.trigger_rule_id,
			links = excluded.links,
			stop_on_first_match = excluded.stop_on_first_match,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		chain.ID, chain.Name, chain.TriggerRuleID, string(links), stop, active, now, now,
	)
	return err
}

// ListActiveChains retrieves all active rule chains.
func (r *SQLRepository) ListActiveChains(ctx context.Context) ([]*domain.RuleChain, error) {
	query := `
		SELECT id, name, trigger_rule_id, links, stop_on_first_match, active
		FROM rule_chains
		WHERE active = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.RuleChain
	for rows.Next() {
		var chain domain.RuleChain
		var links string
		var stop, active int

		if err := rows.Scan(
			&chain.ID, &chain.Name, &chain.TriggerRuleID, &links, &stop, &active,
		); err != nil {
			return nil, err
		}

		chain.StopOnFirstMatch = stop == 1
		chain.Active = active == 1
		if err := json.Unmarshal([]byte(links), &chain.Links); err != nil {
			return nil, fmt.Errorf("parse chain links for %s: %w", chain.ID, err)
		}

		result = append(result, &chain)
	}

	return result, rows.Err()
}

// SaveEvaluation stores an evaluation result.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, eval *domain.EvaluationResult) error {
	if eval.EvaluationID == "" {
		return fmt.Errorf("%w: evaluation id is required", domain.ErrInvalidInput)
	}

	matches, _ := json.Marshal(eval.Matches)
	conflict, _ := json.Marshal(eval.Conflict)
	chains, _ := json.Marshal(eval.Chains)

	query := `
		INSERT INTO evaluations (
			id, product_id, rules_evaluated, matches, conflict, chains,
			final_action, risk_score, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		eval.EvaluationID, eval.ProductID, eval.RulesEvaluated,
		string(matches), string(conflict), string(chains),
		eval.FinalAction, eval.RiskScore, eval.StartedAt, eval.DurationMs,
	)
	return err
}

// GetEvaluation retrieves an evaluation result by ID.
func (r *SQLRepository) GetEvaluation(ctx context.Context, evalID string) (*domain.EvaluationResult, error) {
	query := `
		SELECT id, product_id, rules_evaluated, matches, conflict, chains,
			   final_action, risk_score, started_at, duration_ms
		FROM evaluations
		WHERE id = ?
	`

	var eval domain.EvaluationResult
	var matches, conflict, chains string

	err := r.db.QueryRowContext(ctx, r.rebind(query), evalID).Scan(
		&eval.EvaluationID, &eval.ProductID, &eval.RulesEvaluated,
		&matches, &conflict, &chains,
		&eval.FinalAction, &eval.RiskScore, &eval.StartedAt, &eval.DurationMs,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(matches), &eval.Matches)
	if conflict != "" && conflict != "null" {
		json.Unmarshal([]byte(conflict), &eval.Conflict)
	}
	if chains != "" && chains != "null" {
		json.Unmarshal([]byte(chains), &eval.Chains)
	}

	return &eval, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
