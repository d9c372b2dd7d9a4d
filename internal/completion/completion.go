// Package completion generates assistant replies and conversation titles.
// The gateway only depends on the Engine interface; the HTTP client talks to
// an OpenAI-compatible chat completions endpoint, and the static engine keeps
// the gateway functional when no endpoint is configured.
package completion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// Request carries the user input the engine should answer.
type Request struct {
	// Prompt is the user's message body.
	Prompt string
	// History holds prior conversation turns, oldest first, for context.
	History []Turn
	// MaxTokens caps the reply length when positive.
	MaxTokens int
	// Temperature overrides the endpoint default when positive.
	Temperature float64
}

// Turn is one prior utterance.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the generated reply.
type Result struct {
	Text   string
	Tokens int
}

// Engine produces completions. Implementations must honor ctx cancellation.
type Engine interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// HTTPEngine calls an OpenAI-compatible /chat/completions endpoint.
type HTTPEngine struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

// NewHTTPEngine builds an engine for the given endpoint. The model name is
// sent verbatim in each request.
func NewHTTPEngine(url, apiKey, model string) *HTTPEngine {
	return &HTTPEngine{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Turn `json:"message"`
	} `json:"choices"`
	Usage struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (e *HTTPEngine) Generate(ctx context.Context, req Request) (*Result, error) {
	messages := make([]Turn, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, Turn{Role: "user", Content: req.Prompt})

	body, err := sonic.ConfigStd.Marshal(chatRequest{
		Model:       e.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call completion endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := sonic.ConfigStd.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion endpoint returned no choices")
	}
	return &Result{
		Text:   parsed.Choices[0].Message.Content,
		Tokens: parsed.Usage.CompletionTokens,
	}, nil
}

// StaticEngine echoes a fixed acknowledgement. It stands in when no
// completion endpoint is configured so message flow stays testable.
type StaticEngine struct{}

func (StaticEngine) Generate(_ context.Context, req Request) (*Result, error) {
	return &Result{Text: "Received: " + req.Prompt}, nil
}
