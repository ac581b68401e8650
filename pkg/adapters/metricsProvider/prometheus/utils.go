package prometheus

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BearerTokenRoundTripper implements http.RoundTripper to add Authorization header
type BearerTokenRoundTripper struct {
	BearerToken string
	Proxied     http.RoundTripper
}

func (rt *BearerTokenRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+rt.BearerToken)
	}
	resp, err := rt.Proxied.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute round trip: %w", err)
	}
	return resp, nil
}

// GetPrometheusClientConfig returns optimized default configuration
func GetPrometheusClientConfig(prometheusURL string) *PrometheusClientConfig {
	return &PrometheusClientConfig{
		PrometheusURL:       prometheusURL,
		BearerToken:         "",
		QueryTimeout:        1 * time.Minute,
		MaxConnsPerHost:     20,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		ResponseTimeout:     1 * time.Minute,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,

		// For Provider
		MaxQueryRetries:      3,
		RetryBackoffBase:     2 * time.Second,
		MaxConcurrentQueries: 4,
	}
}

func CompressQueryForLogging(query string) string {
	compressed := strings.Fields(query)
	return strings.Join(compressed, " ")
}
