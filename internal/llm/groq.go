package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/voice-assistant/internal/config"
)

// Message is one role-tagged chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single non-streaming generation request
type Request struct {
	Model       string
	Temperature float64
	System      string
	Messages    []Message
}

// Completer generates one reply for a request
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("groq: unexpected status %d: %s", e.StatusCode, e.Body)
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		FinishReason string  `json:"finish_reason"`
		Message      Message `json:"message"`
	} `json:"choices"`
}

// GroqClient calls Groq's OpenAI-compatible chat completions endpoint
type GroqClient struct {
	HTTPClient *http.Client
	APIKey     string
	BaseURL    string
}

// NewGroqClient creates a Groq client from configuration
func NewGroqClient(cfg *config.Config) *GroqClient {
	return &GroqClient{
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.GroqTimeout) * time.Second},
		APIKey:     cfg.GroqAPIKey,
		BaseURL:    cfg.GroqBaseURL,
	}
}

func (c *GroqClient) chatURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = "https://api.groq.com/openai/v1"
	}
	return base + "/chat/completions"
}

// Complete sends the system prompt followed by req.Messages and returns the first choice
func (c *GroqClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("groq api key missing")
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	temperature := req.Temperature
	body, err := json.Marshal(chatRequest{Model: req.Model, Messages: messages, Temperature: &temperature})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("groq: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
