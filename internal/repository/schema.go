package repository

// Schema definitions for the detection engine database.
// Compatible with both SQLite and PostgreSQL.

const schemaProducts = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    brand TEXT,
    price REAL NOT NULL,
    supplier_id TEXT NOT NULL,
    supplier_reputation REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
CREATE INDEX IF NOT EXISTS idx_products_supplier ON products(supplier_id);
CREATE INDEX IF NOT EXISTS idx_products_created ON products(category, created_at);
`

const schemaRules = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    priority INTEGER NOT NULL,
    action TEXT NOT NULL,
    category TEXT,
    config TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(active);
CREATE INDEX IF NOT EXISTS idx_rules_category ON rules(category, active);
`

const schemaCombinations = `
CREATE TABLE IF NOT EXISTS rule_combinations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    operator TEXT NOT NULL,
    rule_ids TEXT NOT NULL,
    priority_override INTEGER,
    action_override TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_combinations_active ON rule_combinations(active);
`

const schemaChains = `
CREATE TABLE IF NOT EXISTS rule_chains (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    trigger_rule_id TEXT NOT NULL,
    links TEXT NOT NULL,
    stop_on_first_match INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chains_active ON rule_chains(active);
CREATE INDEX IF NOT EXISTS idx_chains_trigger ON rule_chains(trigger_rule_id, active);
`

const schemaEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    rules_evaluated INTEGER NOT NULL,
    matches TEXT NOT NULL,
    conflict TEXT,
    chains TEXT,
    final_action TEXT NOT NULL,
    risk_score REAL NOT NULL,
    started_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_product ON evaluations(product_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_started ON evaluations(started_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProducts,
		schemaRules,
		schemaCombinations,
		schemaChains,
		schemaEvaluations,
	}
}
