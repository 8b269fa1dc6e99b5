package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"apartment": "apt",
		"suite":     "ste",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// CanonicalURL reduces a listing URL to scheme-less host+path so that
// tracking parameters, fragments and trailing slashes do not split cache entries.
// Unparseable input is returned trimmed and lowercased.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")
	return host + path
}

// URLFingerprint is a short stable key for a listing URL.
func URLFingerprint(raw string) string {
	hash := sha256.Sum256([]byte(CanonicalURL(raw)))
	return hex.EncodeToString(hash[:8])
}

// NormalizeAddress lowercases, strips punctuation and abbreviates street words
// token by token, so "123 Main Street, Apt 4" and "123 main st apt 4" agree.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	tokens := strings.Fields(multiSpaceRegex.ReplaceAllString(addr, " "))
	for i, tok := range tokens {
		if abbrev, ok := streetReplacements[tok]; ok {
			tokens[i] = abbrev
		}
	}
	return strings.Join(tokens, " ")
}
