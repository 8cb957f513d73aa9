package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteAddrExtractor(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
		wantErr    bool
	}{
		{name: "ipv4 with port", remoteAddr: "203.0.113.7:41000", want: "203.0.113.7"},
		{name: "ipv4 without port", remoteAddr: "203.0.113.7", want: "203.0.113.7"},
		{name: "ipv6 with port", remoteAddr: "[2001:db8::1]:41000", want: "2001:db8::1"},
		{name: "garbage", remoteAddr: "not-an-address", wantErr: true},
	}
	extractor := &RemoteAddrExtractor{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := analyzeRequest(tt.remoteAddr)
			ip, err := extractor.ExtractIP(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ip)
		})
	}
}

func TestRemoteAddrExtractor_IgnoresForwardingHeaders(t *testing.T) {
	req := analyzeRequest("203.0.113.7:41000")
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	req.Header.Set("X-Real-IP", "198.51.100.9")

	ip, err := (&RemoteAddrExtractor{}).ExtractIP(req)

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip, "headers must never override the peer address")
}

func trustedProxyConfig(t *testing.T, cidrs ...string) TrustedProxyConfig {
	t.Helper()
	config := TrustedProxyConfig{Enabled: true}
	for _, c := range cidrs {
		prefix, err := netip.ParsePrefix(c)
		require.NoError(t, err)
		config.AllowedCIDRs = append(config.AllowedCIDRs, prefix)
	}
	return config
}

func TestTrustedProxyExtractor_TrustedProxyUsesForwardedFor(t *testing.T) {
	extractor := NewTrustedProxyExtractor(trustedProxyConfig(t, "10.0.0.0/8"))

	req := analyzeRequest("10.0.0.5:41000")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")

	ip, err := extractor.ExtractIP(req)

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip, "first hop of X-Forwarded-For is the client")
}

func TestTrustedProxyExtractor_TrustedProxyFallsBackToRealIP(t *testing.T) {
	extractor := NewTrustedProxyExtractor(trustedProxyConfig(t, "10.0.0.0/8"))

	req := analyzeRequest("10.0.0.5:41000")
	req.Header.Set("X-Real-IP", "203.0.113.7")

	ip, err := extractor.ExtractIP(req)

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestTrustedProxyExtractor_UntrustedPeerKeepsRemoteAddr(t *testing.T) {
	extractor := NewTrustedProxyExtractor(trustedProxyConfig(t, "10.0.0.0/8"))

	// A client outside the proxy range tries to spoof its way past the limiter.
	req := analyzeRequest("203.0.113.7:41000")
	req.Header.Set("X-Forwarded-For", "198.51.100.9")

	ip, err := extractor.ExtractIP(req)

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestTrustedProxyExtractor_DisabledIgnoresHeaders(t *testing.T) {
	extractor := NewTrustedProxyExtractor(TrustedProxyConfig{Enabled: false})

	req := analyzeRequest("203.0.113.7:41000")
	req.Header.Set("X-Forwarded-For", "198.51.100.9")

	ip, err := extractor.ExtractIP(req)

	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestTrustedProxyExtractor_MissingHeadersFallBackToRemoteAddr(t *testing.T) {
	extractor := NewTrustedProxyExtractor(trustedProxyConfig(t, "10.0.0.0/8"))

	ip, err := extractor.ExtractIP(analyzeRequest("10.0.0.5:41000"))

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ip)
}

func TestTrustedProxyExtractor_InvalidForwardedForFallsBack(t *testing.T) {
	extractor := NewTrustedProxyExtractor(trustedProxyConfig(t, "10.0.0.0/8"))

	req := analyzeRequest("10.0.0.5:41000")
	req.Header.Set("X-Forwarded-For", "bogus-value")

	ip, err := extractor.ExtractIP(req)

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ip)
}

func TestParseFirstIP(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"203.0.113.7", "203.0.113.7"},
		{"2001:db8::1, 10.0.0.1", "2001:db8::1"},
		{"bogus, 10.0.0.1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseFirstIP(tt.input), "input %q", tt.input)
	}
}

func TestTrustedProxyExtractor_ImplementsIPExtractor(t *testing.T) {
	var _ IPExtractor = &RemoteAddrExtractor{}
	var _ IPExtractor = &TrustedProxyExtractor{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyze", nil)
	req.RemoteAddr = "203.0.113.7:41000"
	_, err := NewTrustedProxyExtractor(TrustedProxyConfig{}).ExtractIP(req)
	assert.NoError(t, err)
}
