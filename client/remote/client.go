package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"suggestd/logger"

	"github.com/andybalholm/brotli"
	"github.com/cockroachdb/errors"
)

// Request describes the cursor context sent to a completion server
type Request struct {
	Filetype         string `json:"filetype"`
	Bufnr            int    `json:"bufnr"`
	Linenr           int    `json:"linenr"`
	Col              int    `json:"col"`
	Line             string `json:"line"`
	Input            string `json:"input"`
	TriggerCharacter string `json:"trigger_character,omitempty"`
	Contents         string `json:"contents"`
	CursorOffset     int    `json:"cursor_offset"`
}

// Item is one candidate returned by the server
type Item struct {
	Word       string  `json:"word"`
	Abbr       string  `json:"abbr,omitempty"`
	FilterText string  `json:"filter_text,omitempty"`
	SortText   string  `json:"sort_text,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	Menu       string  `json:"menu,omitempty"`
	Info       string  `json:"info,omitempty"`
	Snippet    bool    `json:"snippet,omitempty"`
	Preselect  bool    `json:"preselect,omitempty"`
	Deprecated bool    `json:"deprecated,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// Response carries the candidates. StartCol overrides the word start when
// the server completes a wider range than the keyword before the cursor.
type Response struct {
	Items      []Item `json:"items"`
	Incomplete bool   `json:"incomplete"`
	StartCol   *int   `json:"start_col,omitempty"`
}

type Client struct {
	HTTPClient *http.Client
	URL        string
	AuthToken  string
}

func NewClient(url, authToken string, timeout time.Duration) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		URL:        url,
		AuthToken:  authToken,
	}
}

// DoCompletion posts a brotli-compressed JSON request. Responses may come
// back plain or brotli-encoded.
func (c *Client) DoCompletion(ctx context.Context, req *Request) (*Response, error) {
	defer logger.Trace("remote.DoCompletion")()

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, 1)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return nil, errors.Wrap(err, "compress request")
	}
	if err := bw.Close(); err != nil {
		return nil, errors.Wrap(err, "close brotli writer")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &compressed)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Content-Encoding", "br")
	httpReq.Header.Set("Accept-Encoding", "br")
	if c.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "br" {
		body = brotli.NewReader(resp.Body)
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(body)
		return nil, errors.Newf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out Response
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "parse response")
	}
	return &out, nil
}

// CursorToByteOffset converts a cursor (1-indexed row, 0-indexed byte col)
// into an offset within the newline-joined lines.
func CursorToByteOffset(lines []string, row, col int) int {
	offset := 0
	for i := 0; i < row-1 && i < len(lines); i++ {
		offset += len(lines[i]) + 1
	}
	if row >= 1 && row <= len(lines) {
		offset += min(max(col, 0), len(lines[row-1]))
	}
	return offset
}
