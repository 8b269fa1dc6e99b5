package estimator

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sourcer/models"
)

// Fallback builds the generic sqft-only budget used when no listing facts
// are available. It accepts any sqft: zero yields an ARV of zero, while
// negative values and values above models.MaxSqft are replaced by FallbackSqft.
func (e *Engine) Fallback(sqft int, zipcode string) *models.EstimateResult {
	if sqft < 0 || sqft > models.MaxSqft {
		sqft = FallbackSqft
	}
	zap.L().Debug("building fallback estimate",
		zap.Int("sqft", sqft),
		zap.String("zipcode", zipcode))

	s := decimal.NewFromInt(int64(sqft))
	items := []models.RepairLineItem{
		lineItem("paint", "Interior paint (estimated)", s.Mul(dec("2.5")), 0.60),
		lineItem("flooring", "Flooring (estimated)", s.Mul(dec("3.8")), 0.60),
		lineItem("kitchen", "Kitchen refresh (estimated)", dec("7500"), 0.50),
		lineItem("bathrooms", "Bathroom updates (estimated)", dec("5200"), 0.50),
		lineItem("roof", "Roof repair (estimated)", dec("3000"), 0.40),
		lineItem("hvac", "HVAC service (estimated)", dec("800"), 0.60),
		lineItem("electrical", "Electrical/Plumbing (estimated)", dec("1800"), 0.50),
		lineItem("cleanup", "Cleanup (estimated)", dec("1200"), 0.70),
	}
	budget := withContingency(items)

	return &models.EstimateResult{
		Items:     budget,
		ARV:       round(s.Mul(decimal.NewFromInt(arvPerSqft))),
		Source:    models.EstimateSourceFallback,
		Message:   models.FallbackMessage,
		Total:     budget.Total(),
		Timestamp: e.now(),
	}
}
