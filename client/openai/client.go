package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"suggestd/logger"

	"github.com/cockroachdb/errors"
)

// CompletionRequest is the body of POST /v1/completions
type CompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Suffix      string   `json:"suffix,omitempty"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop,omitempty"`
	N           int      `json:"n"`
	Stream      bool     `json:"stream"`
}

type Choice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

type CompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// streamChunk is one "data:" event of a streamed response
type streamChunk struct {
	Choices []Choice `json:"choices"`
}

// StreamResult is the text collected from a streamed completion
type StreamResult struct {
	Text         string
	FinishReason string
	StoppedEarly bool
}

// Client talks to any OpenAI-compatible completions endpoint
type Client struct {
	HTTPClient *http.Client
	URL        string
	APIKey     string
}

// NewClient returns a client for the server at url. A zero timeout leaves
// deadlines to the request context.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		URL:        strings.TrimSuffix(url, "/"),
		APIKey:     apiKey,
	}
}

// DoCompletion sends a non-streaming completion request
func (c *Client) DoCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	defer logger.Trace("openai.DoCompletion")()

	req.Stream = false
	resp, err := c.post(ctx, req, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode completion response")
	}
	return &out, nil
}

// DoStreamingCompletion streams a completion and stops reading once maxLines
// newlines arrived (0 means no limit).
func (c *Client) DoStreamingCompletion(ctx context.Context, req *CompletionRequest, maxLines int) (*StreamResult, error) {
	defer logger.Trace("openai.DoStreamingCompletion")()

	req.Stream = true
	resp, err := c.post(ctx, req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := readStream(resp.Body, maxLines)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, req *CompletionRequest, accept string) (*http.Response, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return nil, errors.Wrap(err, "encode completion request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/v1/completions", &body)
	if err != nil {
		return nil, errors.Wrap(err, "create completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send completion request")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, errors.Newf("completion request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func readStream(body io.Reader, maxLines int) *StreamResult {
	var text strings.Builder
	result := &StreamResult{}
	lines := 0

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Debug("openai: skipping malformed chunk: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		text.WriteString(choice.Text)
		if choice.FinishReason != "" {
			result.FinishReason = choice.FinishReason
		}
		lines += strings.Count(choice.Text, "\n")
		if maxLines > 0 && lines >= maxLines {
			result.StoppedEarly = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("openai: stream read error: %v", err)
	}

	result.Text = text.String()
	return result
}
