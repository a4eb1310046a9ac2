package mmi

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider calls the Anthropic messages API.
type ClaudeProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewClaudeProvider creates a Claude provider. The SDK's own retries are disabled;
// the Caller owns the retry policy.
func NewClaudeProvider(apiKey, baseURL, model string, maxTokens int) *ClaudeProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &ClaudeProvider{client: &client, model: model, maxTokens: maxTokens}
}

// Complete sends the prompt and returns the concatenated text blocks of the reply.
func (c *ClaudeProvider) Complete(ctx context.Context, prompt string, pic *Picture) (string, error) {
	var blocks []anthropic.ContentBlockParamUnion
	if pic != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(pic.MediaType, base64.StdEncoding.EncodeToString(pic.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("claude: %w", errEmptyResponse)
	}
	return sb.String(), nil
}
