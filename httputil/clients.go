package httputil

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/rotisserie/eris"

	"sourcer/config"
)

const maxBodySize = 8 << 20

// Browser-like headers sent with every listing fetch.
var ListingHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Accept-Encoding":           "gzip, deflate, br",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// NewScrapingClient returns the client used against listing sites, routed
// through cfg.ProxyURL when one is set.
func NewScrapingClient(cfg config.ExtractorConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, eris.Wrap(err, "httputil: parse proxy url")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := cfg.StaticTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// SetListingHeaders applies ListingHeaders to req.
func SetListingHeaders(req *http.Request) {
	for k, v := range ListingHeaders {
		req.Header.Set(k, v)
	}
}

// ReadBody reads resp.Body, undoing any Content-Encoding the server applied.
// Bodies are capped at 8MB.
func ReadBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "httputil: gzip reader")
		}
		defer gz.Close()
		r = gz
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "httputil: deflate reader")
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(resp.Body)
	default:
		return nil, eris.Errorf("httputil: unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}

	body, err := io.ReadAll(io.LimitReader(r, maxBodySize))
	if err != nil {
		return nil, eris.Wrap(err, "httputil: read body")
	}
	return body, nil
}
