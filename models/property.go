package models

// FactSource records which path produced a PropertyFacts value.
type FactSource string

const (
	SourceManual   FactSource = "manual"
	SourceStatic   FactSource = "static"
	SourceBrowser  FactSource = "browser"
	SourceFallback FactSource = "fallback"
)

const (
	DefaultBedrooms  = 3
	DefaultBathrooms = 2.0
	DefaultYearBuilt = 1980
	DefaultAddress   = "Address not found"
	ManualAddress    = "Manual Entry"
)

// Upper bounds for believable facts. Larger values are treated as missing.
const (
	MaxSqft      = 1_000_000
	MaxPrice     = 100_000_000_000
	MaxBedrooms  = 100
	MaxBathrooms = 100
	MaxYearBuilt = 9999
)

// PropertyFacts is the canonical set of listing facts the estimator works from.
// Values are fully resolved; zero Price or Sqft means unknown.
type PropertyFacts struct {
	Price     int        `json:"price"`
	Address   string     `json:"address"`
	Sqft      int        `json:"sqft"`
	Bedrooms  int        `json:"bedrooms"`
	Bathrooms float64    `json:"bathrooms"`
	YearBuilt int        `json:"yearBuilt"`
	Source    FactSource `json:"source"`
}

// ExtractionSucceeded reports whether the facts are usable for a listing-based estimate.
func (p PropertyFacts) ExtractionSucceeded() bool {
	if p.Source == SourceManual {
		return true
	}
	return p.Price > 0 || p.Sqft > 0
}

// RawFacts holds the text pulled out of a page before parsing. Empty means not found.
type RawFacts struct {
	Price     string `json:"price,omitempty"`
	Address   string `json:"address,omitempty"`
	Sqft      string `json:"sqft,omitempty"`
	Bedrooms  string `json:"bedrooms,omitempty"`
	Bathrooms string `json:"bathrooms,omitempty"`
	YearBuilt string `json:"yearBuilt,omitempty"`
}
