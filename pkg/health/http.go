package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker probes a placement's declared health path over HTTP. A probe
// passes when the response status lands inside the expected range.
type HTTPChecker struct {
	// URL is the resolved probe URL, e.g. "http://placement-addr:8080/health".
	URL string

	// Headers are sent with every probe request.
	Headers map[string]string

	// ExpectedStatusMin and ExpectedStatusMax bound the passing status codes.
	// Defaults cover 200-399 so redirects count as alive.
	ExpectedStatusMin int
	ExpectedStatusMax int

	// Client performs the probe requests.
	Client *http.Client
}

// NewHTTPChecker creates a checker for the given probe URL.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		Headers:           make(map[string]string),
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Client:            &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHeader adds a header to every probe request.
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithStatusRange overrides the passing status code range.
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the probe request timeout.
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}

// Check runs one probe. Transport failures and out-of-range statuses both
// count as unhealthy; the message says which.
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return h.result(start, false, fmt.Sprintf("failed to create request: %v", err))
	}
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return h.result(start, false, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= h.ExpectedStatusMin && resp.StatusCode <= h.ExpectedStatusMax
	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		message = fmt.Sprintf("%s (expected %d-%d)", message, h.ExpectedStatusMin, h.ExpectedStatusMax)
	}
	return h.result(start, healthy, message)
}

// Type returns the probe mechanism.
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

func (h *HTTPChecker) result(start time.Time, healthy bool, message string) Result {
	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
