package mmi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/perpetuallyhorni/quakefilter/pkg/config"
)

// ErrRetriesExhausted is returned when every attempt of a call failed transiently.
var ErrRetriesExhausted = errors.New("model call retries exhausted")

// Keys holds the API credentials of each backend.
type Keys struct {
	OpenAI    string
	Anthropic string
}

// Caller dispatches prompts to a model with bounded retry.
type Caller struct {
	providers map[Model]Provider
	retries   int
	timeout   time.Duration
	retry     retrypolicy.RetryPolicy[string]
}

// NewCaller creates a Caller over the configured backends. A backend whose key is
// missing is left out and calling it fails.
func NewCaller(cfg config.ModelsConfig, keys Keys) *Caller {
	providers := make(map[Model]Provider)
	if keys.OpenAI != "" {
		providers[GPT] = NewOpenAIProvider(keys.OpenAI, cfg.OpenAIURL, cfg.GPTModel, cfg.MaxTokens)
	}
	if keys.Anthropic != "" {
		providers[Claude] = NewClaudeProvider(keys.Anthropic, cfg.ClaudeURL, cfg.ClaudeModel, cfg.MaxTokens)
	}
	return NewCallerWithProviders(providers, cfg.Retries, cfg.RetryDelay, cfg.Timeout)
}

// NewCallerWithProviders creates a Caller over explicit providers.
func NewCallerWithProviders(providers map[Model]Provider, retries int, delay, timeout time.Duration) *Caller {
	if retries < 0 {
		retries = 0
	}
	builder := retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool { return isRetryable(err) }).
		WithMaxRetries(retries)
	if delay > 0 {
		builder = builder.WithDelay(delay)
	}
	return &Caller{
		providers: providers,
		retries:   retries,
		timeout:   timeout,
		retry:     builder.Build(),
	}
}

// Call sends prompt to model. For the image modality the file at imagePath is attached.
// Transient failures are retried; when the attempts run out the error wraps
// ErrRetriesExhausted.
func (c *Caller) Call(ctx context.Context, model Model, modality Modality, prompt, imagePath string) (string, error) {
	provider, ok := c.providers[model]
	if !ok {
		return "", fmt.Errorf("model %q is not configured", model)
	}
	var pic *Picture
	switch modality {
	case Text:
	case Image:
		if imagePath == "" {
			return "", errors.New("image input requires an image path")
		}
		var err error
		if pic, err = LoadPicture(imagePath); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown input type %q", modality)
	}

	var lastErr error
	out, err := failsafe.With(c.retry).WithContext(ctx).Get(func() (string, error) {
		attemptCtx, cancel := c.attemptContext(ctx)
		defer cancel()
		out, err := provider.Complete(attemptCtx, prompt, pic)
		lastErr = err
		return out, err
	})
	if err != nil {
		if ctx.Err() == nil && isRetryable(lastErr) {
			return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, c.retries+1, lastErr)
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", err
	}
	return out, nil
}

func (c *Caller) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}
