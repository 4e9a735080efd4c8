package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HealthStatus represents the health status of a service endpoint
type HealthStatus string

const (
	HealthGreen  HealthStatus = "green"
	HealthYellow HealthStatus = "yellow"
	HealthRed    HealthStatus = "red"
)

// HealthChecker is an interface for performing health checks
type HealthChecker interface {
	Check(ctx context.Context) (HealthStatus, error)
}

// HealthCheck represents an HTTP reachability check
type HealthCheck struct {
	URL            string
	Timeout        time.Duration
	ExpectedStatus int
}

// DefaultHealthCheck returns a default health check configuration
func DefaultHealthCheck(url string) HealthCheck {
	return HealthCheck{
		URL:            url,
		Timeout:        10 * time.Second,
		ExpectedStatus: http.StatusOK,
	}
}

// OllamaTagsCheck checks the Ollama model listing endpoint under baseURL
func OllamaTagsCheck(baseURL string) HealthCheck {
	return DefaultHealthCheck(strings.TrimRight(baseURL, "/") + "/api/tags")
}

// Check performs a single GET against the endpoint
func (hc HealthCheck) Check(ctx context.Context) (HealthStatus, error) {
	client := &http.Client{
		Timeout: hc.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.URL, nil)
	if err != nil {
		return HealthRed, fmt.Errorf("invalid health check url: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return HealthRed, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != hc.ExpectedStatus {
		return HealthYellow, fmt.Errorf("unexpected status code: got %d, want %d", resp.StatusCode, hc.ExpectedStatus)
	}

	return HealthGreen, nil
}
