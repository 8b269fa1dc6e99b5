package httputil

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sourcer/config"
)

func response(encoding string, body []byte) *http.Response {
	h := http.Header{}
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
	}
	return &http.Response{Header: h, Body: io.NopCloser(bytes.NewReader(body))}
}

func TestReadBody_Plain(t *testing.T) {
	body, err := ReadBody(response("", []byte("<html></html>")))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))
}

func TestReadBody_Gzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write([]byte("<h1>gz</h1>"))
	require.NoError(t, w.Close())

	body, err := ReadBody(response("gzip", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "<h1>gz</h1>", string(body))
}

func TestReadBody_Brotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, _ = w.Write([]byte("<h1>br</h1>"))
	require.NoError(t, w.Close())

	body, err := ReadBody(response("br", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "<h1>br</h1>", string(body))
}

func TestReadBody_UnknownEncoding(t *testing.T) {
	_, err := ReadBody(response("zstd", []byte("x")))
	assert.Error(t, err)
}

func TestNewScrapingClient(t *testing.T) {
	c, err := NewScrapingClient(config.ExtractorConfig{StaticTimeout: 3 * time.Second, ProxyURL: "http://proxy.local:8080"})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.Timeout)

	tr := c.Transport.(*http.Transport)
	req, _ := http.NewRequest(http.MethodGet, "https://www.zillow.com/", nil)
	proxy, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy.local:8080", proxy.Host)
}

func TestSetListingHeaders(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://www.zillow.com/", nil)
	SetListingHeaders(req)
	assert.Contains(t, req.Header.Get("User-Agent"), "Chrome/120")
	assert.Equal(t, "gzip, deflate, br", req.Header.Get("Accept-Encoding"))
}
