package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(model.LLMConfig{
		BaseURL:   server.URL,
		Model:     "test-model",
		MaxTokens: 100,
	}, "test-key")
}

func TestCompleteReturnsTrimmedText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(apiResponse{
			Choices: []struct {
				Message      apiMessage `json:"message"`
				FinishReason string     `json:"finish_reason"`
			}{
				{Message: apiMessage{Role: "assistant", Content: "  hello  \n"}},
			},
		})
	})

	got, err := client.Complete(context.Background(), "sys", "user")

	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestCompleteAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit","message":"slow down"}}`))
	})

	_, err := client.Complete(context.Background(), "sys", "user")

	require.Error(t, err)
	assert.ErrorContains(t, err, "429")
	assert.ErrorContains(t, err, "slow down")
}

func TestCompleteEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), "sys", "user")

	assert.Error(t, err)
}

func TestCompleteContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "sys", "user")

	assert.Error(t, err)
}
