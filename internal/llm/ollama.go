package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// Ollama calls a local Ollama server. It needs no API key.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama creates an Ollama completer targeting baseURL.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ollamaChatRequest is the JSON body for POST /api/chat.
type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

// ollamaChatResponse is the JSON returned by POST /api/chat (non-streaming).
type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
}

// Complete sends a non-streaming chat request. When p.JSON is set, format is
// "json" to request structured output.
func (o *Ollama) Complete(ctx context.Context, p Prompt) (string, error) {
	cr := ollamaChatRequest{Model: o.model}
	if p.System != "" {
		cr.Messages = append(cr.Messages, chatMessage{Role: "system", Content: p.System})
	}
	cr.Messages = append(cr.Messages, chatMessage{Role: "user", Content: p.User})
	if p.JSON {
		cr.Format = "json"
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}

	return result.Message.Content, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Model is the configured model name.
func (o *Ollama) Model() string {
	return o.model
}

// ListModels returns the names of the models available locally.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting model list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// CheckReady verifies the server is up and the configured model is present.
// Ollama reports "llama3.1:latest" for "llama3.1", so a tag suffix matches.
func (o *Ollama) CheckReady(ctx context.Context) error {
	models, err := o.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s (start it with: ollama serve): %w", o.baseURL, err)
	}
	for _, m := range models {
		if m == o.model || strings.HasPrefix(m, o.model+":") {
			return nil
		}
	}
	return fmt.Errorf("ollama model %s not found (pull it with: ollama pull %s)", o.model, o.model)
}
