// Package worker provides async listing evaluation from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/domain"
	"github.com/ZubeidHendricks/AfriChain-tidb-sub000/internal/engine"
)

// flagWindow is the rolling window for per-supplier flag tallies.
const flagWindow = 24 * time.Hour

// Worker evaluates ingested listings asynchronously from the EventBus.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *engine.Engine
	cache  domain.Cache

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker. cache may be nil to disable
// supplier flag counters.
func NewWorker(bus domain.EventBus, repo domain.Repository, eng *engine.Engine, cache domain.Cache) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: eng,
		cache:  cache,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the listing ingestion topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicListingIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicListingIngested,
	)
	return nil
}

// ListingMessage is the message payload for async listing evaluation.
type ListingMessage struct {
	ProductID     string   `json:"productId"`
	SupplierID    string   `json:"supplierId,omitempty"`
	AnalysisScore *float64 `json:"analysisScore,omitempty"`
}

// handleMessage evaluates one ingested listing through the pipeline.
// Stop waits for in-flight handlers before returning.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	start := time.Now()

	var listing ListingMessage
	if err := json.Unmarshal(msg.Payload, &listing); err != nil {
		slog.Error("failed to parse listing message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing listing",
		"product_id", listing.ProductID,
		"message_id", msg.ID,
	)

	// 1. Evaluate
	result, err := w.engine.Evaluate(ctx, listing.ProductID, engine.Options{
		AnalysisScore: listing.AnalysisScore,
	})
	if err != nil {
		slog.Error("listing evaluation failed",
			"product_id", listing.ProductID,
			"error", err,
		)
		return err
	}

	// 2. Save evaluation
	if w.repo != nil {
		if err := w.repo.SaveEvaluation(ctx, result); err != nil {
			slog.Error("failed to save evaluation",
				"product_id", listing.ProductID,
				"error", err,
			)
		}
	}

	// 3. Publish result to decision topic
	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, domain.TopicDecision, resultPayload); err != nil {
		slog.Error("failed to publish decision",
			"product_id", listing.ProductID,
			"error", err,
		)
	}

	// 4. Severe actions raise an alert and bump the supplier flag tally
	if result.FinalAction.Severity() >= domain.ActionQuarantine.Severity() {
		if err := w.bus.Publish(ctx, domain.TopicAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"product_id", listing.ProductID,
				"error", err,
			)
		}

		if w.cache != nil && listing.SupplierID != "" {
			if _, err := w.cache.IncrementCounter(ctx, "supplier-flags:"+listing.SupplierID, flagWindow); err != nil {
				slog.Error("failed to increment supplier flags",
					"supplier_id", listing.SupplierID,
					"error", err,
				)
			}
		}
	}

	slog.Info("listing processed",
		"product_id", listing.ProductID,
		"final_action", result.FinalAction,
		"risk_score", result.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
