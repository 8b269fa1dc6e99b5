package models

import "time"

const (
	EstimateSourceListing  = "zillow"
	EstimateSourceFallback = "fallback"

	FallbackMessage = "Could not scrape Zillow. Using generic estimates based on square footage."
)

type RepairLineItem struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Amount     int64   `json:"amount"`
	Confidence float64 `json:"confidence"`
}

// RepairBudget is an ordered list of line items ending in the contingency item.
type RepairBudget []RepairLineItem

func (b RepairBudget) Total() int64 {
	var total int64
	for _, item := range b {
		total += item.Amount
	}
	return total
}

// PropertySummary is the facts snapshot echoed back with a listing-based estimate.
type PropertySummary struct {
	Address             string  `json:"address"`
	Sqft                int     `json:"sqft"`
	Bedrooms            int     `json:"bedrooms"`
	Bathrooms           float64 `json:"bathrooms"`
	YearBuilt           int     `json:"yearBuilt"`
	Price               int     `json:"price"`
	Age                 int     `json:"age"`
	ConditionMultiplier float64 `json:"conditionMultiplier"`
}

type EstimateResult struct {
	Items        RepairBudget     `json:"items"`
	ARV          int64            `json:"arv"`
	Source       string           `json:"source"`
	Extractor    FactSource       `json:"extractor,omitempty"`
	PropertyData *PropertySummary `json:"propertyData,omitempty"`
	Message      string           `json:"message,omitempty"`
	Total        int64            `json:"total"`
	Timestamp    time.Time        `json:"-"`
}

// IsFallback reports whether the result came from the sqft-only estimator.
func (r *EstimateResult) IsFallback() bool {
	return r.Source == EstimateSourceFallback
}
