package scraper

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot page a listing site served.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockPerimeterX BlockType = "perimeterx"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock checks a listing response for signs of bot protection. It only
// classifies; a blocked page still goes through normal parsing.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	// Zillow fronts listings with PerimeterX ("press & hold").
	if strings.Contains(lower, "px-captcha") || strings.Contains(lower, "perimeterx") {
		return true, BlockPerimeterX
	}

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "captcha") {
		return true, BlockCaptcha
	}

	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
