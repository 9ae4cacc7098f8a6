package utils

import (
	"crypto/tls"
	"net/http"
	"time"
)

// NewHTTPClient builds the pooled client used for outbound generation calls.
// A zero timeout leaves requests bounded only by their context. wrap, when
// non-nil, decorates the transport (request logging).
func NewHTTPClient(timeout time.Duration, wrap func(http.RoundTripper) http.RoundTripper) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if wrap != nil {
		transport = wrap(transport)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
