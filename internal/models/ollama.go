package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gpustack/internal/logging"
)

const (
	// OllamaAPIBase is the default base URL for the Ollama API
	OllamaAPIBase = "http://localhost:11434"
)

// OllamaClient reads model information from the Ollama HTTP API
type OllamaClient struct {
	logger     *logging.Logger
	apiBase    string
	httpClient *http.Client
}

// NewOllamaClient creates a client for apiBase (OllamaAPIBase when empty)
func NewOllamaClient(apiBase string, logger *logging.Logger) *OllamaClient {
	if apiBase == "" {
		apiBase = OllamaAPIBase
	}
	return &OllamaClient{
		logger:     logger,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ollamaListResponse represents the response from Ollama API /api/tags
type ollamaListResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		ModifiedAt time.Time `json:"modified_at"`
		Size       int64     `json:"size"`
		Digest     string    `json:"digest"`
	} `json:"models"`
}

// List returns all installed Ollama models
func (c *OllamaClient) List(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API returned status %d", resp.StatusCode)
	}

	var listResp ollamaListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	models := make([]ModelInfo, len(listResp.Models))
	for i, model := range listResp.Models {
		models[i] = ModelInfo{
			Name:       model.Name,
			Size:       model.Size,
			Digest:     model.Digest,
			ModifiedAt: model.ModifiedAt,
		}
	}

	c.logger.Debug("model.list", "Listed models from API", map[string]interface{}{
		"count": len(models),
	})
	return models, nil
}

// Names returns just the model names from List
func (c *OllamaClient) Names(ctx context.Context) ([]string, error) {
	infos, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, m := range infos {
		names[i] = m.Name
	}
	return names, nil
}
