package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/engine"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/rules"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *engine.Engine
	catalog *rules.Catalog
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, catalog *rules.Catalog, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  eng,
		catalog: catalog,
		version: version,
	}
}

// EvaluateRequest is the request body for POST /evaluate.
type EvaluateRequest struct {
	ProductID     string                  `json:"productId"`
	AnalysisScore *float64                `json:"analysisScore,omitempty"`
	Strategy      domain.ConflictStrategy `json:"strategy,omitempty"`
	Force         bool                    `json:"force,omitempty"`
}

// EvaluateResponse is the response for POST /evaluate.
type EvaluateResponse struct {
	Result   *domain.EvaluationResult `json:"result"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "productId is required",
		})
		return
	}
	if req.AnalysisScore != nil && (*req.AnalysisScore < 0 || *req.AnalysisScore > 100) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "analysisScore must be between 0 and 100",
		})
		return
	}
	if req.Strategy != "" && !req.Strategy.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown conflict strategy: " + string(req.Strategy),
		})
		return
	}

	result, err := h.engine.Evaluate(ctx, req.ProductID, engine.Options{
		AnalysisScore: req.AnalysisScore,
		Strategy:      req.Strategy,
		Force:         req.Force,
	})
	if err != nil {
		writeEvaluationError(w, req.ProductID, err)
		return
	}

	if err := h.repo.SaveEvaluation(ctx, result); err != nil {
		slog.Error("failed to save evaluation", "evaluation_id", result.EvaluationID, "error", err)
	}

	resp := EvaluateResponse{Result: result}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// BatchEvaluateRequest is the request body for POST /evaluate/batch.
type BatchEvaluateRequest struct {
	ProductIDs     []string           `json:"productIds"`
	AnalysisScores map[string]float64 `json:"analysisScores,omitempty"`
}

// BatchItemResponse is one entry of a batch evaluation response,
// positionally aligned with the requested product ids.
type BatchItemResponse struct {
	ProductID string                   `json:"productId"`
	Result    *domain.EvaluationResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// EvaluateBatch handles POST /evaluate/batch requests.
func (h *Handler) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.ProductIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "productIds is required",
		})
		return
	}

	items := h.engine.EvaluateBatch(ctx, req.ProductIDs, req.AnalysisScores)

	resp := make([]BatchItemResponse, len(items))
	succeeded := 0
	for i, item := range items {
		resp[i].ProductID = item.ProductID
		if item.Err != nil {
			resp[i].Error = item.Err.Error()
			continue
		}
		resp[i].Result = item.Result
		succeeded++
		if err := h.repo.SaveEvaluation(ctx, item.Result); err != nil {
			slog.Error("failed to save evaluation", "evaluation_id", item.Result.EvaluationID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":     resp,
		"total":     len(items),
		"succeeded": succeeded,
		"failed":    len(items) - succeeded,
	})
}

// GetEvaluation retrieves an evaluation by ID.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evalID := chi.URLParam(r, "id")

	eval, err := h.repo.GetEvaluation(ctx, evalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "evaluation not found",
			})
			return
		}
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get evaluation",
		})
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// CreateProduct registers a product listing.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Title == "" || req.SupplierID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "title and supplierId are required",
		})
		return
	}
	if req.Price < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "price must not be negative",
		})
		return
	}

	product := req.ToProduct(uuid.New().String())
	if err := h.repo.SaveProduct(ctx, product); err != nil {
		slog.Error("failed to save product", "id", product.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save product",
		})
		return
	}

	slog.Info("product registered", "id", product.ID, "category", product.Category, "supplier_id", product.SupplierID)
	writeJSON(w, http.StatusCreated, product)
}

// GetProduct retrieves a product listing by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := chi.URLParam(r, "id")

	product, err := h.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "product not found",
			})
			return
		}
		slog.Error("failed to get product", "id", productID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get product",
		})
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// ListRules returns the rules in the current catalog snapshot.
// Rules are loaded from the database and refreshed on TTL expiry or via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		slog.Error("failed to load rule catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rule catalog",
		})
		return
	}

	loaded := snap.Rules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":       loaded,
		"count":       len(loaded),
		"refreshedAt": snap.RefreshedAt(),
	})
}

// GetRule retrieves a rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	rule, err := h.repo.GetRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to get rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateRule creates or updates a rule. Call POST /rules/reload to apply
// it before the catalog TTL expires.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := rule.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveRule(ctx, &rule); err != nil {
		slog.Error("failed to save rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name, "type", rule.Type)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule deactivates a rule and refreshes the catalog.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if err := h.repo.DeleteRule(ctx, ruleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to delete rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	if err := h.catalog.Refresh(ctx); err != nil {
		slog.Error("failed to refresh catalog after delete", "error", err)
	}

	slog.Info("rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
	})
}

// ReloadRules forces a catalog refresh from the database, bypassing TTL.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.catalog.Refresh(ctx); err != nil {
		slog.Error("failed to reload rule catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rule catalog",
		})
		return
	}

	slog.Info("rule catalog reloaded", "count", h.catalog.Size())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   h.catalog.Size(),
	})
}

// ListCombinations returns the active rule combinations.
func (h *Handler) ListCombinations(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		slog.Error("failed to load rule catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rule catalog",
		})
		return
	}

	combos := snap.Combinations()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"combinations": combos,
		"count":        len(combos),
	})
}

// CreateCombination creates or updates a rule combination.
func (h *Handler) CreateCombination(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var combo domain.RuleCombination
	if err := json.NewDecoder(r.Body).Decode(&combo); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := combo.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveCombination(ctx, &combo); err != nil {
		slog.Error("failed to save combination", "id", combo.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save combination",
		})
		return
	}

	slog.Info("combination created", "id", combo.ID, "operator", combo.Operator)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"combination": combo,
		"message":     "Combination created. Call POST /rules/reload to apply changes.",
	})
}

// ListChains returns the active rule chains.
func (h *Handler) ListChains(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		slog.Error("failed to load rule catalog", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rule catalog",
		})
		return
	}

	chains := snap.Chains()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chains": chains,
		"count":  len(chains),
	})
}

// CreateChain creates or updates a rule chain.
func (h *Handler) CreateChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var chain domain.RuleChain
	if err := json.NewDecoder(r.Body).Decode(&chain); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := chain.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveChain(ctx, &chain); err != nil {
		slog.Error("failed to save chain", "id", chain.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save chain",
		})
		return
	}

	slog.Info("chain created", "id", chain.ID, "trigger", chain.TriggerRuleID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"chain":   chain,
		"message": "Chain created. Call POST /rules/reload to apply changes.",
	})
}

// GetSupplierFlags returns the windowed flag count for a supplier.
func (h *Handler) GetSupplierFlags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	supplierID := chi.URLParam(r, "id")

	count, err := h.cache.GetCounter(ctx, "supplier-flags:"+supplierID)
	if err != nil {
		slog.Error("failed to read supplier flag counter", "supplier_id", supplierID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to read supplier flags",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"supplierId": supplierID,
		"flags":      count,
	})
}

// Stats returns engine aggregates for dashboards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeEvaluationError(w http.ResponseWriter, productID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "product not found: " + productID,
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("evaluation failed", "product_id", productID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
