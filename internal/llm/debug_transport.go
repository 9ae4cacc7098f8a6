package llm

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"weboptimizer-backend/pkg/logger"
)

var sensitiveHeaders = []string{
	"authorization",
	"x-api-key",
	"x-goog-api-key",
	"x-auth-token",
	"cookie",
}

var sensitiveJSONField = regexp.MustCompile(`"(api_key|apiKey|password|secret|token)"\s*:\s*"[^"]*"`)

// DebugTransport logs outgoing provider requests with credentials redacted.
type DebugTransport struct {
	base     http.RoundTripper
	provider string
	enabled  bool
}

func NewDebugTransport(base http.RoundTripper, provider string, enabled bool) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base, provider: provider, enabled: enabled}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.enabled && req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil && t.enabled {
		logger.WithFields(logrus.Fields{"provider": t.provider}).Errorf("request failed: %v", err)
	}
	return resp, err
}

func (t *DebugTransport) logRequest(req *http.Request) {
	fields := logrus.Fields{
		"provider": t.provider,
		"method":   req.Method,
		"url":      req.URL.Redacted(),
	}
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			fields["header."+name] = "[REDACTED]"
		} else {
			fields["header."+name] = strings.Join(values, ", ")
		}
	}

	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			logger.WithFields(fields).Errorf("read request body: %v", err)
			return
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		fields["body"] = redactBody(string(body))
		fields["body_bytes"] = len(body)
	}

	logger.WithFields(fields).Debug("provider request")
}

func redactBody(body string) string {
	return sensitiveJSONField.ReplaceAllString(body, `"$1": "[REDACTED]"`)
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range sensitiveHeaders {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
