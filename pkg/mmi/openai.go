package mmi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIProvider calls an OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client    *http.Client
	apiKey    string
	apiURL    string
	model     string
	maxTokens int
}

// NewOpenAIProvider creates an OpenAI provider. An empty apiURL targets api.openai.com.
func NewOpenAIProvider(apiKey, apiURL, model string, maxTokens int) *OpenAIProvider {
	apiURL = strings.TrimRight(apiURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		client:    &http.Client{},
		apiKey:    apiKey,
		apiURL:    apiURL,
		model:     model,
		maxTokens: maxTokens,
	}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []openAIPart with an image
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt and returns the first choice's content.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, pic *Picture) (string, error) {
	if p.model == "" {
		return "", errors.New("openai: model is required")
	}
	msg := openAIMessage{Role: "user", Content: prompt}
	if pic != nil {
		dataURL := "data:" + pic.MediaType + ";base64," + base64.StdEncoding.EncodeToString(pic.Data)
		msg.Content = []openAIPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL}},
		}
	}
	payload, err := json.Marshal(openAIRequest{
		Model:       p.model,
		Messages:    []openAIMessage{msg},
		Temperature: 0,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("openai: %w", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai: %w", errEmptyResponse)
	}
	return out.Choices[0].Message.Content, nil
}
