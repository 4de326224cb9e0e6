package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/linkcard/linkcard/internal/card"
)

// AIClient calls the AI-backed search/summarization service. The service is
// a black box: input is an absolute URL, output is structured metadata. Any
// shape violation is reported as an error so the chain can fall through.
type AIClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// AIConfig configures the summarization service boundary.
type AIConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewAIClient builds a client, or nil when no endpoint is configured.
func NewAIClient(cfg AIConfig) *AIClient {
	if cfg.Endpoint == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &AIClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

type aiRequest struct {
	URL string `json:"url"`
}

type aiResponse struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Author        string   `json:"author"`
	PublishedTime string   `json:"published_time"`
	Keywords      []string `json:"keywords"`
}

// Summarize asks the service for metadata about rawURL.
func (c *AIClient) Summarize(ctx context.Context, rawURL string) (card.Metadata, error) {
	payload, err := json.Marshal(aiRequest{URL: rawURL})
	if err != nil {
		return card.Metadata{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return card.Metadata{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return card.Metadata{}, fmt.Errorf("call summarizer: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return card.Metadata{}, fmt.Errorf("summarizer status %d", resp.StatusCode)
	}

	var body aiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return card.Metadata{}, fmt.Errorf("decode summarizer response: %w", err)
	}
	if strings.TrimSpace(body.Title) == "" {
		return card.Metadata{}, fmt.Errorf("summarizer returned empty title")
	}

	return card.Metadata{
		Title:         strings.TrimSpace(body.Title),
		Description:   strings.TrimSpace(body.Description),
		Author:        strings.TrimSpace(body.Author),
		PublishedTime: strings.TrimSpace(body.PublishedTime),
		Keywords:      body.Keywords,
	}, nil
}
