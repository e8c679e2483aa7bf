package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/nykw2002/elements/config"
)

// Client implements Provider against an OpenAI-compatible chat/embeddings API.
// Authentication is either a static API key or an OAuth2 client-credentials
// token source when a token URL is configured.
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	tokens     *tokenSource
	logger     *log.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new gateway client from config.
func NewClient(cfg config.LLMConfig, logger *log.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleepCtx,
	}
	if cfg.TokenURL != "" {
		c.tokens = newTokenSource(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, httpClient)
	}
	return c
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteChat sends a chat completion request. Rate limits and network
// errors are retried with exponential backoff up to MaxRetries attempts; any
// other non-200 surfaces immediately as a permanent error.
func (c *Client) CompleteChat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := c.postWithRetry(ctx, c.cfg.BaseURL+"/chat/completions", body)
	if err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

// Embed generates embeddings for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := c.postWithRetry(ctx, c.cfg.BaseURL+"/embeddings", body)
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// postWithRetry issues a POST and retries transient failures. Backoff grows
// as 2^attempt plus a fixed offset, matching the upstream rate-limit guidance.
func (c *Client) postWithRetry(ctx context.Context, url string, body []byte) ([]byte, error) {
	retries := c.cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		raw, retryable, err := c.post(ctx, url, body)
		if err == nil {
			return raw, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		if attempt < retries-1 {
			retriesTotal.Inc()
			wait := time.Duration(1<<attempt)*time.Second + 3*time.Second
			c.logger.Printf("transient upstream failure, waiting %s: %v", wait, err)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", retries, lastErr)
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) post(ctx context.Context, url string, body []byte) (raw []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	auth := c.cfg.APIKey
	if c.tokens != nil {
		auth, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, false, err
		}
	}
	req.Header.Set("Authorization", "Bearer "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read response body: %w", err)
		}
		return raw, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, ErrRateLimited
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, false, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(b))
	}
}
