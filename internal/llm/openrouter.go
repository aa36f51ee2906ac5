package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "openai/gpt-4o-mini"
	defaultTimeout         = 30 * time.Second
)

// RateLimitError is returned on HTTP 429. The relay does not retry.
type RateLimitError struct {
	Status int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.Status)
}

// IsRateLimit reports whether err is a provider rate-limit response.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// OpenRouter calls the OpenRouter chat completions API.
type OpenRouter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	referer    string
	title      string
}

// NewOpenRouter creates an OpenRouter client. Empty model and non-positive
// timeout select defaults.
func NewOpenRouter(apiKey, model string, timeout time.Duration) *OpenRouter {
	if model == "" {
		model = defaultOpenRouterModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenRouter{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultOpenRouterURL,
		httpClient: &http.Client{Timeout: timeout},
		referer:    "https://github.com/reliabledashboard/partsrelay",
		title:      "partsrelay",
	}
}

// WithBaseURL points the client at a custom base URL (for testing).
func (c *OpenRouter) WithBaseURL(baseURL string) *OpenRouter {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one chat completion request and returns the first choice.
func (c *OpenRouter) Complete(ctx context.Context, p Prompt) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: 0.2,
	}
	if p.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: p.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: p.User})
	if p.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("provider error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenRouter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}
