package mmi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])
		assert.Equal(t, 0.0, req["temperature"])
		messages := req["messages"].([]any)
		content := messages[0].(map[string]any)["content"].([]any)
		assert.Len(t, content, 2)
		image := content[1].(map[string]any)["image_url"].(map[string]any)
		assert.True(t, strings.HasPrefix(image["url"].(string), "data:image/png;base64,"))

		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{'MMI': 'VII'}"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL+"/v1/", "gpt-4o", 100)
	out, err := p.Complete(context.Background(), "rate this", &Picture{MediaType: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "{'MMI': 'VII'}", out)
}

func replyWith(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProviderErrors(t *testing.T) {
	ctx := context.Background()

	p := NewOpenAIProvider("", replyWith(t, http.StatusServiceUnavailable, `{"error":"overloaded"}`).URL, "gpt-4o", 0)
	_, err := p.Complete(ctx, "x", nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.True(t, isRetryable(err))

	p = NewOpenAIProvider("", replyWith(t, http.StatusBadRequest, `{"error":"bad"}`).URL, "gpt-4o", 0)
	_, err = p.Complete(ctx, "x", nil)
	require.Error(t, err)
	assert.False(t, isRetryable(err))

	p = NewOpenAIProvider("", replyWith(t, http.StatusOK, `{"choices":[]}`).URL, "gpt-4o", 0)
	_, err = p.Complete(ctx, "x", nil)
	assert.ErrorIs(t, err, errEmptyResponse)
	assert.True(t, isRetryable(err))

	_, err = NewOpenAIProvider("", "http://unused", "", 0).Complete(ctx, "x", nil)
	assert.Error(t, err)
}

func TestClaudeProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		assert.Equal(t, "ant-test", r.Header.Get("X-Api-Key"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req["model"])
		assert.Equal(t, 0.0, req["temperature"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"{'MMI': "},{"type":"text","text":"'IV'}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`)
	}))
	defer srv.Close()

	p := NewClaudeProvider("ant-test", srv.URL, "claude-test", 100)
	out, err := p.Complete(context.Background(), "rate this", &Picture{MediaType: "image/jpeg", Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, "{'MMI': 'IV'}", out)
}

func TestClaudeProviderOverloaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer srv.Close()

	p := NewClaudeProvider("ant-test", srv.URL, "claude-test", 100)
	_, err := p.Complete(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, isRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(context.Canceled))
	assert.True(t, isRetryable(context.DeadlineExceeded))
	assert.True(t, isRetryable(&StatusError{Code: http.StatusTooManyRequests}))
	assert.False(t, isRetryable(&StatusError{Code: http.StatusUnauthorized}))
	assert.False(t, isRetryable(errors.New("bad input")))
}

func TestParseModelAndModality(t *testing.T) {
	m, err := ParseModel("Claude")
	require.NoError(t, err)
	assert.Equal(t, Claude, m)
	_, err = ParseModel("gemini")
	assert.Error(t, err)

	mod, err := ParseModality(" IMAGE ")
	require.NoError(t, err)
	assert.Equal(t, Image, mod)
	_, err = ParseModality("video")
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	p := TextPrompt("Noto Peninsula", "the wall fell")
	assert.Contains(t, p, "located at Noto Peninsula.")
	assert.Contains(t, p, "the wall fell")
	assert.Contains(t, p, "any Noto Peninsula earthquake-caused damage")
	assert.Contains(t, ImagePrompt(), "'MMI'")
}
