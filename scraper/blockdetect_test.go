package scraper

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	cfHeaders := http.Header{}
	cfHeaders.Set("cf-ray", "8a1b2c3d4e5f")

	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare header", http.StatusForbidden, cfHeaders, "denied", BlockCloudflare},
		{"perimeterx", http.StatusForbidden, http.Header{}, `<div id="px-captcha"></div>`, BlockPerimeterX},
		{"cloudflare challenge", http.StatusOK, http.Header{}, "Checking your browser before accessing", BlockCloudflare},
		{"generic captcha", http.StatusOK, http.Header{}, `<form class="g-recaptcha">`, BlockCaptcha},
		{"js shell", http.StatusOK, http.Header{}, `<noscript>Please enable JavaScript</noscript>`, BlockJSShell},
		{"real page", http.StatusOK, http.Header{}, "<html>" + strings.Repeat("<span>3 bd</span>", 200) + "</html>", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: tt.header}
			blocked, kind := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestDetectBlock_NilResponse(t *testing.T) {
	blocked, kind := DetectBlock(nil, []byte("captcha"))
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, kind)
}
