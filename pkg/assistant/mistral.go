package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultMistralEndpoint is the Mistral chat completions URL.
const DefaultMistralEndpoint = "https://api.mistral.ai/v1/chat/completions"

// MistralProvider talks to the Mistral chat completions API.
type MistralProvider struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Client      *http.Client
}

type mistralRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type mistralResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts msgs and returns the first choice's content.
func (p *MistralProvider) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	if p.APIKey == "" {
		return "", ErrNoAPIKey
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = DefaultMistralEndpoint
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(mistralRequest{
		Model:       p.Model,
		Messages:    msgs,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API Error: %d - %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out mistralResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}
	return out.Choices[0].Message.Content, nil
}
