package scraper

import "github.com/rotisserie/eris"

// Extraction failure kinds. The orchestrator absorbs all of them into the
// fallback estimate; they exist for logs and run telemetry.
var (
	ErrNetwork    = eris.New("network failure")
	ErrParse      = eris.New("parse failure")
	ErrAutomation = eris.New("automation failure")
	ErrValidation = eris.New("validation failure")
)

// FailureKind names the category of err for telemetry.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case eris.Is(err, ErrNetwork):
		return "network"
	case eris.Is(err, ErrParse):
		return "parse"
	case eris.Is(err, ErrAutomation):
		return "automation"
	case eris.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}
