package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
)

// BrandEvaluator evaluates brand verification rules expressed as CEL
// predicates over the listing. Expressions are compiled once and cached
// by source text; the cache is never invalidated because a rule's
// expression is immutable once stored.
type BrandEvaluator struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
}

// NewBrandEvaluator creates the evaluator and its CEL environment with
// the listing variables.
func NewBrandEvaluator() (*BrandEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("product", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("title", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("brand", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("supplier_id", cel.StringType),
		cel.Variable("supplier_reputation", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &BrandEvaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

func (e *BrandEvaluator) Type() domain.RuleType { return domain.RuleTypeBrandVerification }

func (e *BrandEvaluator) Evaluate(rule *domain.Rule, product *domain.ProductContext) (*domain.RuleMatch, error) {
	cfg := rule.Brand
	if cfg == nil || cfg.Expression == "" {
		return nil, fmt.Errorf("rule %s: brand config missing or empty expression", rule.ID)
	}

	program, err := e.program(cfg.Expression)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	activation := map[string]any{
		"product": map[string]any{
			"id":          product.ID,
			"title":       product.Title,
			"description": product.Description,
			"brand":       product.Brand,
			"category":    product.Category,
			"price":       product.Price,
		},
		"title":               product.Title,
		"description":         product.Description,
		"brand":               product.Brand,
		"category":            product.Category,
		"price":               product.Price,
		"supplier_id":         product.SupplierID,
		"supplier_reputation": product.SupplierReputation,
	}

	out, _, err := program.Eval(activation)
	if err != nil {
		return nil, fmt.Errorf("rule %s: evaluation error: %w", rule.ID, err)
	}

	fired, ok := out.Value().(bool)
	if !ok {
		return nil, fmt.Errorf("rule %s: expression returned %T, want bool", rule.ID, out.Value())
	}
	if !fired {
		return nil, nil
	}

	confidence := cfg.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.9
	}
	return newMatch(rule, confidence, map[string]any{
		"expression": cfg.Expression,
	}), nil
}

// program returns the compiled program for an expression, compiling and
// caching it on first use.
func (e *BrandEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	p, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.programs[expr]; ok {
		return p, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}

	p, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	e.programs[expr] = p
	return p, nil
}
