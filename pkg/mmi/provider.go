package mmi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Model names a rating backend.
type Model string

const (
	// GPT is the OpenAI chat completions backend.
	GPT Model = "gpt"
	// Claude is the Anthropic messages backend.
	Claude Model = "claude"
)

// ParseModel validates a model name.
func ParseModel(s string) (Model, error) {
	switch Model(strings.ToLower(strings.TrimSpace(s))) {
	case GPT:
		return GPT, nil
	case Claude:
		return Claude, nil
	default:
		return "", fmt.Errorf("invalid model %q, must be 'gpt' or 'claude'", s)
	}
}

// Modality is the kind of content being rated.
type Modality string

const (
	// Text rates the post text.
	Text Modality = "text"
	// Image rates an attached image.
	Image Modality = "image"
)

// ParseModality validates a modality name.
func ParseModality(s string) (Modality, error) {
	switch Modality(strings.ToLower(strings.TrimSpace(s))) {
	case Text:
		return Text, nil
	case Image:
		return Image, nil
	default:
		return "", fmt.Errorf("invalid input type %q, must be 'text' or 'image'", s)
	}
}

// Picture is an encoded image sent alongside a prompt.
type Picture struct {
	MediaType string
	Data      []byte
}

// LoadPicture reads an image file and sniffs its media type.
func LoadPicture(path string) (*Picture, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%s is not an image (%s)", path, mediaType)
	}
	return &Picture{MediaType: mediaType, Data: data}, nil
}

// Provider sends one prompt, optionally with an image, and returns the model's reply.
type Provider interface {
	Complete(ctx context.Context, prompt string, pic *Picture) (string, error)
}

// StatusError is a non-2xx reply from a model API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

var errEmptyResponse = errors.New("model returned an empty response")

// isRetryable reports whether a failed call may succeed when repeated.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, errEmptyResponse) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return retryableStatus(status.Code)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
