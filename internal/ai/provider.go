package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// Completion error categories. The extractor rotates models on
// ErrRateLimited and ErrModelNotFound, rotates credentials on
// ErrQuotaExhausted and ErrAuth, and gives up immediately on anything else.
var (
	ErrNotConfigured  = errors.New("no API credentials configured")
	ErrRateLimited    = errors.New("rate limited")
	ErrModelNotFound  = errors.New("model not found")
	ErrQuotaExhausted = errors.New("quota exhausted")
	ErrAuth           = errors.New("authentication failed")
)

// Provider is a chat-completion backend.
type Provider interface {
	Complete(ctx context.Context, apiKey, model, system, user string, temperature float64, maxTokens int) (string, error)
}

// OpenRouterProvider talks to the OpenRouter chat-completions endpoint.
type OpenRouterProvider struct {
	client *http.Client
}

func NewOpenRouterProvider() *OpenRouterProvider {
	return &OpenRouterProvider{client: &http.Client{Timeout: 60 * time.Second}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (p *OpenRouterProvider) Complete(ctx context.Context, apiKey, model, system, user string, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", fmt.Errorf("%w: %s", err, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if parsed.Error != nil {
		if err := classifyStatus(parsed.Error.Code); err != nil {
			return "", fmt.Errorf("%w: %s", err, parsed.Error.Message)
		}
		return "", fmt.Errorf("completion error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusOK, 0:
		return nil
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusPaymentRequired:
		return ErrQuotaExhausted
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	default:
		return fmt.Errorf("completion failed with status %d", code)
	}
}
