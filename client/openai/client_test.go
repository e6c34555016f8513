package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\n\n", ev)
		}
	}))
}

func chunk(text, finish string) string {
	b, _ := json.Marshal(streamChunk{Choices: []Choice{{Text: text, FinishReason: finish}}})
	return "data: " + string(b)
}

func TestDoCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "a < b", req.Prompt)

		json.NewEncoder(w).Encode(CompletionResponse{
			ID:      "cmpl-1",
			Model:   req.Model,
			Choices: []Choice{{Text: " && c", FinishReason: "stop"}},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "secret", 0)
	resp, err := c.DoCompletion(context.Background(), &CompletionRequest{Model: "m", Prompt: "a < b"})
	require.NoError(t, err)
	assert.Equal(t, "cmpl-1", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, " && c", resp.Choices[0].Text)
}

func TestDoCompletion_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model overloaded"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", 0).DoCompletion(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestDoCompletion_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", 0).DoCompletion(context.Background(), &CompletionRequest{})
	assert.ErrorContains(t, err, "decode completion response")
}

func TestDoStreamingCompletion(t *testing.T) {
	server := sseServer(t,
		": keep-alive",
		chunk("foo", ""),
		"data: {broken",
		chunk("bar", "stop"),
		"data: [DONE]",
	)
	defer server.Close()

	res, err := NewClient(server.URL, "", 0).DoStreamingCompletion(context.Background(), &CompletionRequest{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "foobar", res.Text)
	assert.Equal(t, "stop", res.FinishReason)
	assert.False(t, res.StoppedEarly)
}

func TestDoStreamingCompletion_MaxLines(t *testing.T) {
	server := sseServer(t,
		chunk("first", ""),
		chunk(" line\nsecond", ""),
		chunk(" never read", ""),
	)
	defer server.Close()

	res, err := NewClient(server.URL, "", 0).DoStreamingCompletion(context.Background(), &CompletionRequest{}, 1)
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond", res.Text)
	assert.True(t, res.StoppedEarly)
}

func TestDoStreamingCompletion_Cancelled(t *testing.T) {
	server := sseServer(t, chunk("x", ""))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(server.URL, "", 0).DoStreamingCompletion(ctx, &CompletionRequest{}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
