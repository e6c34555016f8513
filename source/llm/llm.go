// Package llm suggests the rest of the current line from an
// OpenAI-compatible completions endpoint.
package llm

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"suggestd/client/openai"
	"suggestd/logger"
	"suggestd/types"
	"suggestd/utils"

	"golang.org/x/time/rate"
)

const Name = "llm"

type Config struct {
	URL           string
	APIKey        string
	Model         string
	Temperature   float64
	MaxTokens     int
	ContextTokens int
	SendSuffix    bool
	// RequestsPerSecond and Burst bound how often the endpoint is hit;
	// requests over budget are declined, not queued.
	RequestsPerSecond float64
	Burst             int
	MinInputLength    int
	Timeout           time.Duration
	Priority          int
	Shortcut          string
}

func DefaultConfig() Config {
	return Config{
		URL:               "http://localhost:8000",
		MaxTokens:         48,
		ContextTokens:     1024,
		RequestsPerSecond: 2,
		Burst:             1,
		MinInputLength:    2,
		Priority:          5,
		Shortcut:          "AI",
	}
}

type LineReader interface {
	Lines() []string
}

type Source struct {
	doc     LineReader
	client  *openai.Client
	limiter *rate.Limiter
	config  Config
}

func New(doc LineReader, config Config) *Source {
	def := DefaultConfig()
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.Shortcut == "" {
		config.Shortcut = def.Shortcut
	}
	return &Source{
		doc:     doc,
		client:  openai.NewClient(config.URL, config.APIKey, config.Timeout),
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		config:  config,
	}
}

func (s *Source) Name() string     { return Name }
func (s *Source) Priority() int    { return s.config.Priority }
func (s *Source) Shortcut() string { return s.config.Shortcut }

// ShouldComplete declines short inputs, blank lines and requests over the
// rate budget.
func (s *Source) ShouldComplete(ctx context.Context, opt types.CompleteOption) (bool, error) {
	if utf8.RuneCountInString(opt.Input) < s.config.MinInputLength {
		return false, nil
	}
	if strings.TrimSpace(opt.Line[:min(opt.Cursor(), len(opt.Line))]) == "" {
		return false, nil
	}
	if !s.limiter.Allow() {
		logger.Debug("llm: over request budget, skipping")
		return false, nil
	}
	return true, nil
}

func (s *Source) DoComplete(ctx context.Context, opt types.CompleteOption) (*types.CompleteResult, error) {
	defer logger.Trace("llm.DoComplete")()

	cursor := min(opt.Cursor(), len(opt.Line))
	w := s.window(opt)

	req := &openai.CompletionRequest{
		Model:       s.config.Model,
		Prompt:      w.Before(cursor),
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
		Stop:        []string{"\n"},
		N:           1,
	}
	if s.config.SendSuffix {
		req.Suffix = w.After(cursor)
	}

	res, err := s.client.DoStreamingCompletion(ctx, req, 1)
	if err != nil {
		return nil, err
	}

	rest, _, _ := strings.Cut(res.Text, "\n")
	rest = strings.TrimRight(rest, " \t\r")
	if rest == "" {
		return nil, nil
	}

	word := opt.Input + rest
	return &types.CompleteResult{Items: []*types.CompleteItem{{
		Word: word,
		Kind: "AI",
		Info: opt.Line[:cursor] + rest,
	}}}, nil
}

// window trims the buffer around the cursor line, with the cursor line taken
// from opt since the buffer may be one keystroke behind.
func (s *Source) window(opt types.CompleteOption) utils.Window {
	lines := s.doc.Lines()
	w := utils.TrimAroundCursor(lines, opt.Linenr-1, s.config.ContextTokens)
	if len(w.Lines) == 0 {
		return utils.Window{Lines: []string{opt.Line}}
	}
	own := append([]string(nil), w.Lines...)
	own[w.Row] = opt.Line
	w.Lines = own
	return w
}
