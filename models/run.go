package models

import "time"

type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCached    RunStatus = "cached"
	RunStatusManual    RunStatus = "manual"
)

// ExtractionRun is one telemetry row per estimate request.
type ExtractionRun struct {
	ID             string     `json:"id" db:"id"`
	URLFingerprint string     `json:"url_fingerprint" db:"url_fingerprint"`
	URL            string     `json:"url" db:"url"`
	Strategy       FactSource `json:"strategy" db:"strategy"`
	Status         RunStatus  `json:"status" db:"status"`
	Error          string     `json:"error" db:"error"`
	Zipcode        string     `json:"zipcode" db:"zipcode"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	DurationMS     int64      `json:"duration_ms" db:"duration_ms"`
}

// CachedFacts is a successful extraction kept for reuse until ExpiresAt.
type CachedFacts struct {
	URLFingerprint string        `json:"url_fingerprint" db:"url_fingerprint"`
	URL            string        `json:"url" db:"url"`
	Facts          PropertyFacts `json:"facts" db:"facts"`
	FetchedAt      time.Time     `json:"fetched_at" db:"fetched_at"`
	ExpiresAt      time.Time     `json:"expires_at" db:"expires_at"`
}

type RunStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cached    int `json:"cached"`
	Manual    int `json:"manual"`
}
