package log

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID carries the per-request trace id.
const HeaderRequestID = "X-Request-ID"

// Transport is an http.RoundTripper that stamps every outbound request with
// a request id and logs its start and completion.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = Discard()
	}
	return &Transport{Base: base, Logger: logger.WithComponent(ComponentHTTP)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		req = req.Clone(req.Context())
		req.Header.Set(HeaderRequestID, requestID)
	}

	ctx := req.Context()
	start := time.Now()
	t.Logger.DebugContext(ctx, "HTTP request started",
		NewFields().WithHTTPRequest(req.Method, redact(req)).WithRequestID(requestID).ToSlice()...)

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		t.Logger.WarnContext(ctx, "HTTP request failed",
			NewFields().
				WithHTTPRequest(req.Method, redact(req)).
				WithRequestID(requestID).
				WithError(err).
				ToSlice()...)
		return nil, err
	}

	level := slog.LevelDebug
	switch {
	case resp.StatusCode >= 500:
		level = slog.LevelError
	case resp.StatusCode >= 400:
		level = slog.LevelInfo
	}
	t.Logger.Log(ctx, level, "HTTP request completed",
		NewFields().
			WithHTTPRequest(req.Method, redact(req)).
			WithRequestID(requestID).
			WithHTTPResponse(resp.StatusCode, duration, resp.StatusCode < 400).
			ToSlice()...)
	return resp, nil
}

// redact drops user info from the logged URL.
func redact(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	return req.URL.Redacted()
}
