// Package estimator turns property facts into a repair budget and an
// after-repair value. Everything here is pure arithmetic on decimals;
// the only input from outside is the clock.
package estimator

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"sourcer/models"
)

const (
	// FallbackSqft is used when the client gave no usable square footage.
	FallbackSqft = 1500

	arvPerSqft = 180
)

var (
	arvPriceMarkup = decimal.RequireFromString("1.15")
	contingencyPct = decimal.RequireFromString("0.10")
)

type Engine struct {
	now func() time.Time
}

// NewEngine returns an engine reading the current year from now. A nil now uses time.Now.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// ConditionMultiplier scales condition-sensitive costs by property age.
func ConditionMultiplier(age int) decimal.Decimal {
	switch {
	case age > 50:
		return decimal.RequireFromString("1.4")
	case age > 30:
		return decimal.RequireFromString("1.2")
	case age > 15:
		return decimal.NewFromInt(1)
	default:
		return decimal.RequireFromString("0.8")
	}
}

// Estimate builds the listing-based budget. facts.Sqft is used as given;
// callers substitute a usable value before calling. Facts outside the
// models.Max* bounds are replaced by defaults.
func (e *Engine) Estimate(facts models.PropertyFacts) *models.EstimateResult {
	facts = bounded(facts)
	now := e.now()
	age := now.Year() - facts.YearBuilt
	m := ConditionMultiplier(age)

	sqft := decimal.NewFromInt(int64(facts.Sqft))
	beds := decimal.NewFromInt(int64(facts.Bedrooms))
	baths := decimal.NewFromFloat(facts.Bathrooms)

	items := []models.RepairLineItem{
		lineItem("paint", "Interior paint", sqft.Mul(dec("2.2")).Mul(m), 0.85),
		lineItem("flooring", "Flooring (LVP/carpet)", sqft.Mul(dec("3.5")).Mul(m), 0.80),
		lineItem("kitchen", "Kitchen refresh", dec("6000").Add(beds.Mul(dec("1000"))).Mul(m), 0.70),
		lineItem("bathrooms", "Bathroom updates ("+formatBaths(facts.Bathrooms)+" bath)", baths.Mul(dec("2800")).Mul(m), 0.75),
		roofItem(age, m),
		hvacItem(age, m),
		lineItem("electrical", "Electrical/Plumbing", dec("1500").Add(sqft.Mul(dec("0.5"))).Mul(m), 0.70),
		windowsItem(age, m),
		lineItem("cleanup", "Cleanup/landscaping", dec("1200").Add(sqft.Mul(dec("0.2"))), 0.90),
	}
	budget := withContingency(items)

	var arv int64
	if facts.Price > 0 {
		arv = round(decimal.NewFromInt(int64(facts.Price)).Mul(arvPriceMarkup))
	} else {
		arv = round(sqft.Mul(decimal.NewFromInt(arvPerSqft)))
	}

	return &models.EstimateResult{
		Items:     budget,
		ARV:       arv,
		Source:    models.EstimateSourceListing,
		Extractor: facts.Source,
		PropertyData: &models.PropertySummary{
			Address:             facts.Address,
			Sqft:                facts.Sqft,
			Bedrooms:            facts.Bedrooms,
			Bathrooms:           facts.Bathrooms,
			YearBuilt:           facts.YearBuilt,
			Price:               facts.Price,
			Age:                 age,
			ConditionMultiplier: m.InexactFloat64(),
		},
		Total:     budget.Total(),
		Timestamp: now,
	}
}

func bounded(f models.PropertyFacts) models.PropertyFacts {
	if f.Sqft < 0 || f.Sqft > models.MaxSqft {
		f.Sqft = FallbackSqft
	}
	if f.Price < 0 || f.Price > models.MaxPrice {
		f.Price = 0
	}
	if f.Bedrooms < 0 || f.Bedrooms > models.MaxBedrooms {
		f.Bedrooms = models.DefaultBedrooms
	}
	// also catches NaN
	if !(f.Bathrooms >= 0 && f.Bathrooms <= models.MaxBathrooms) {
		f.Bathrooms = models.DefaultBathrooms
	}
	if f.YearBuilt < 0 || f.YearBuilt > models.MaxYearBuilt {
		f.YearBuilt = models.DefaultYearBuilt
	}
	return f
}

func roofItem(age int, m decimal.Decimal) models.RepairLineItem {
	if age > 20 {
		return lineItem("roof", "Roof repair/allowance", dec("3500").Mul(m), 0.80)
	}
	return lineItem("roof", "Roof repair/allowance", dec("1500"), 0.50)
}

func hvacItem(age int, m decimal.Decimal) models.RepairLineItem {
	if age > 15 {
		return lineItem("hvac", "HVAC service/replace", dec("1200").Mul(m), 0.85)
	}
	return lineItem("hvac", "HVAC service/replace", dec("600"), 0.85)
}

func windowsItem(age int, m decimal.Decimal) models.RepairLineItem {
	if age > 30 {
		return lineItem("windows", "Windows/doors", dec("2500").Mul(m), 0.75)
	}
	return lineItem("windows", "Windows/doors", dec("800"), 0.50)
}

// withContingency appends the contingency line: 10% of everything before it.
func withContingency(items []models.RepairLineItem) models.RepairBudget {
	subtotal := models.RepairBudget(items).Total()
	contingency := lineItem("contingency", "Contingency (10%)", decimal.NewFromInt(subtotal).Mul(contingencyPct), 1.0)
	return append(models.RepairBudget(items), contingency)
}

func lineItem(key, label string, raw decimal.Decimal, confidence float64) models.RepairLineItem {
	return models.RepairLineItem{
		Key:        key,
		Label:      label,
		Amount:     round(raw),
		Confidence: confidence,
	}
}

// round is half away from zero; amounts are never negative so this matches half-up.
func round(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func formatBaths(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}
