package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"sourcer/models"
)

var yearRegex = regexp.MustCompile(`\d{4}`)

// parseDigits keeps only the digits of s and converts them. "$1,149,900" -> 1149900.
func parseDigits(s string) (int, bool) {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDecimal keeps digits and periods, then reads the longest numeric prefix.
// "2.5 ba" -> 2.5, "1.5.2" -> 1.5.
func parseDecimal(s string) (float64, bool) {
	var b strings.Builder
	seenDot := false
scan:
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '.':
			if seenDot {
				break scan
			}
			seenDot = true
			b.WriteRune(c)
		}
	}
	cleaned := strings.TrimSuffix(b.String(), ".")
	if cleaned == "" || cleaned == "." {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseCount parses a client-supplied integer such as "2,000" or "3".
func ParseCount(s string) (int, bool) {
	return parseDigits(s)
}

// parseSqft is ParseCount limited to models.MaxSqft.
func parseSqft(s string) (int, bool) {
	v, ok := parseDigits(s)
	if !ok || v > models.MaxSqft {
		return 0, false
	}
	return v, true
}

// ParseBaths parses a client-supplied bathroom count such as "2.5".
func ParseBaths(s string) (float64, bool) {
	return parseDecimal(s)
}

func findYear(s string) string {
	return yearRegex.FindString(s)
}

// ResolveFacts turns raw extracted text into a fully populated PropertyFacts,
// substituting defaults for anything missing or non-numeric.
func ResolveFacts(raw models.RawFacts, source models.FactSource) models.PropertyFacts {
	facts := models.PropertyFacts{
		Address:   strings.TrimSpace(raw.Address),
		Bedrooms:  models.DefaultBedrooms,
		Bathrooms: models.DefaultBathrooms,
		YearBuilt: models.DefaultYearBuilt,
		Source:    source,
	}
	if facts.Address == "" {
		facts.Address = models.DefaultAddress
	}

	// Values past the models.Max* bounds count as missing.
	if v, ok := parseDigits(raw.Price); ok && v <= models.MaxPrice {
		facts.Price = v
	}
	if v, ok := parseDigits(raw.Sqft); ok && v <= models.MaxSqft {
		facts.Sqft = v
	}
	// Zero counts as missing for the remaining fields.
	if v, ok := parseDigits(raw.Bedrooms); ok && v > 0 && v <= models.MaxBedrooms {
		facts.Bedrooms = v
	}
	if v, ok := parseDecimal(raw.Bathrooms); ok && v > 0 && v <= models.MaxBathrooms {
		facts.Bathrooms = v
	}
	if v, ok := parseDigits(raw.YearBuilt); ok && v > 0 && v <= models.MaxYearBuilt {
		facts.YearBuilt = v
	}

	return facts
}
