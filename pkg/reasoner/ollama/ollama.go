// Package ollama implements the reasoner contract against Ollama's chat
// API, for fully local deployments.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/parchmentco/engram/pkg/reasoner"
)

const (
	// DefaultModel is the default chat model.
	DefaultModel = "llama3.1"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Reasoner wraps Ollama's chat API.
type Reasoner struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama reasoner.
type Config struct {
	// BaseURL defaults to DefaultBaseURL when empty.
	BaseURL string

	// Model defaults to DefaultModel when empty.
	Model string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// NewReasoner creates a reasoner backed by Ollama.
func NewReasoner(cfg Config) (*Reasoner, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Reasoner{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}, nil
}

// Generate sends a non-streaming chat request.
func (r *Reasoner) Generate(ctx context.Context, msgs []reasoner.Message, opts *reasoner.Options) (string, error) {
	req := chatRequest{
		Model:    r.model,
		Messages: make([]chatMessage, 0, len(msgs)),
		Stream:   false,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	if opts != nil {
		if opts.JSONMode {
			req.Format = "json"
		}
		if opts.Temperature != nil {
			req.Options = map[string]any{"temperature": *opts.Temperature}
		}
		if opts.MaxTokens > 0 {
			if req.Options == nil {
				req.Options = map[string]any{}
			}
			req.Options["num_predict"] = opts.MaxTokens
		}
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", reasoner.ErrReasoner, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", reasoner.ErrReasoner, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %v", reasoner.ErrReasoner, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama returned status %d: %s", reasoner.ErrReasoner, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", reasoner.ErrReasoner, err)
	}

	return chatResp.Message.Content, nil
}

// Close releases resources held by the reasoner.
func (r *Reasoner) Close() error {
	return nil
}

var _ reasoner.Reasoner = (*Reasoner)(nil)
