package domain

import "time"

// ProductContext is the evaluation subject: a stored product listing plus
// the optional evaluation-time inputs (authenticity analysis score,
// market pricing data) attached by the orchestrator.
type ProductContext struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Brand       string `json:"brand,omitempty"`

	Price float64 `json:"price"`

	SupplierID         string  `json:"supplierId"`
	SupplierReputation float64 `json:"supplierReputation"` // 0-1

	// AnalysisScore is the optional 0-100 authenticity score supplied by
	// the external LLM analyzer. Absent means the threshold evaluator
	// does not fire.
	AnalysisScore *float64 `json:"analysisScore,omitempty"`

	// Market is the optional market pricing snapshot. Absent means the
	// price evaluator falls back to its brand heuristic.
	Market *MarketData `json:"market,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// MarketData is the average observed market price for a product's
// category, supplied by the market pricing source.
type MarketData struct {
	AveragePrice float64   `json:"averagePrice"`
	SampleSize   int       `json:"sampleSize,omitempty"`
	ObservedAt   time.Time `json:"observedAt,omitempty"`
}

// ProductRequest is the API payload for registering a product listing.
type ProductRequest struct {
	Category           string  `json:"category"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Brand              string  `json:"brand,omitempty"`
	Price              float64 `json:"price"`
	SupplierID         string  `json:"supplierId"`
	SupplierReputation float64 `json:"supplierReputation"`
}

// ToProduct converts a request to a ProductContext domain object.
func (r *ProductRequest) ToProduct(id string) *ProductContext {
	now := time.Now().UTC()
	return &ProductContext{
		ID:                 id,
		Category:           r.Category,
		Title:              r.Title,
		Description:        r.Description,
		Brand:              r.Brand,
		Price:              r.Price,
		SupplierID:         r.SupplierID,
		SupplierReputation: r.SupplierReputation,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
