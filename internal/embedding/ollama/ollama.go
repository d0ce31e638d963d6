// Package ollama is an embeddings client for Ollama and other servers that
// speak a loose OpenAI-compatible /embeddings dialect. Transient failures are
// retried with exponential backoff.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/logger"
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434/api"
	DefaultModel   = "nomic-embed-text:v1.5"
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 5
)

// Config configures the embeddings client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client is an embeddings client implementing domain.Embedder.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	sleep      func(context.Context, time.Duration) error

	mu  sync.Mutex
	dim embedding.Dimension
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultRetries
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		sleep:      sleepContext,
	}
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "ollama" }

// Dimension returns the dimensionality of the produced vectors. It is 0 until the first call.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dim.Value()
}

type embedRequest struct {
	Input  string `json:"input,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model"`
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	url := c.baseURL + "/embeddings"
	data, err := json.Marshal(embedRequest{Input: text, Prompt: text, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, retryDelay(attempt-1)); err != nil {
				return nil, err
			}
		}
		vec, retry, err := c.do(ctx, url, data)
		if err == nil {
			c.mu.Lock()
			err = c.dim.Check(vec)
			c.mu.Unlock()
			if err != nil {
				return nil, fmt.Errorf("ollama: %w", err)
			}
			return vec, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		logger.Debug("ollama: attempt %d failed: %v", attempt+1, err)
	}
	return nil, lastErr
}

// do performs one request. The bool result reports whether the failure is transient.
func (c *Client) do(ctx context.Context, url string, body []byte) ([]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("ollama: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				if err := c.sleep(ctx, time.Duration(secs)*time.Second); err != nil {
					return nil, false, err
				}
			}
		}
		return nil, true, fmt.Errorf("ollama: embeddings failed: %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("ollama: embeddings failed: %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("ollama: read response: %w", err)
	}
	vec, err := decode(payload)
	if err != nil {
		return nil, true, err
	}
	return vec, false, nil
}

// decode accepts both the OpenAI shape {"data":[{"embedding":[...]}]} and the
// Ollama shape {"embedding":[...]}.
func decode(payload []byte) ([]float32, error) {
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if len(out.Data) > 0 && len(out.Data[0].Embedding) > 0 {
		return embedding.Float32s(out.Data[0].Embedding), nil
	}
	if len(out.Embedding) > 0 {
		return embedding.Float32s(out.Embedding), nil
	}
	return nil, errors.New("ollama: no embedding returned")
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ domain.Embedder = (*Client)(nil)
