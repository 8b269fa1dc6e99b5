package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sourcer/models"
)

func TestFallback_DefaultSqft(t *testing.T) {
	res := NewEngine(fixedClock(2024)).Fallback(FallbackSqft, "")

	assert.Equal(t, models.EstimateSourceFallback, res.Source)
	assert.Equal(t, models.FallbackMessage, res.Message)
	assert.Nil(t, res.PropertyData)
	assert.Equal(t, int64(270000), res.ARV)
	assert.Len(t, res.Items, 9)

	got := amounts(res.Items)
	assert.Equal(t, int64(3750), got["paint"])
	assert.Equal(t, int64(5700), got["flooring"])
	assert.Equal(t, int64(7500), got["kitchen"])
	assert.Equal(t, int64(2895), got["contingency"])
	assert.Equal(t, int64(31845), res.Total)
	assertContingency(t, res.Items)
}

func TestFallback_ZeroSqft(t *testing.T) {
	res := NewEngine(fixedClock(2024)).Fallback(0, "90210")

	assert.Equal(t, int64(0), res.ARV)
	assert.Len(t, res.Items, 9)
	got := amounts(res.Items)
	assert.Equal(t, int64(0), got["paint"])
	assert.Equal(t, int64(0), got["flooring"])
	assert.Equal(t, int64(1950), got["contingency"])
	assertContingency(t, res.Items)
}

func TestFallback_NegativeSqftUsesDefault(t *testing.T) {
	res := NewEngine(fixedClock(2024)).Fallback(-40, "")
	assert.Equal(t, int64(270000), res.ARV)
}

func TestFallback_HugeSqftUsesDefault(t *testing.T) {
	res := NewEngine(fixedClock(2024)).Fallback(9_000_000_000_000_000_000, "")
	assert.Equal(t, int64(270000), res.ARV)
	assert.Equal(t, int64(31845), res.Total)
	for _, item := range res.Items {
		assert.GreaterOrEqual(t, item.Amount, int64(0), item.Key)
	}

	res = NewEngine(fixedClock(2024)).Fallback(models.MaxSqft, "")
	assert.Equal(t, int64(models.MaxSqft*180), res.ARV)
}

func TestFallback_RoundsHalfUp(t *testing.T) {
	res := NewEngine(fixedClock(2024)).Fallback(1, "")
	got := amounts(res.Items)
	assert.Equal(t, int64(3), got["paint"])    // 2.5
	assert.Equal(t, int64(4), got["flooring"]) // 3.8
	assert.Equal(t, int64(180), res.ARV)
}

func TestFallback_Labels(t *testing.T) {
	res := NewEngine(fixedClock(2024)).Fallback(1200, "")
	for _, item := range res.Items[:len(res.Items)-1] {
		assert.Contains(t, item.Label, "(estimated)")
	}
	assert.Equal(t, "Contingency (10%)", res.Items[len(res.Items)-1].Label)
}
