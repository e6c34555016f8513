// Package remote bridges completion to an HTTP server speaking the
// client/remote protocol.
package remote

import (
	"context"
	"slices"
	"strings"
	"time"

	remoteapi "suggestd/client/remote"
	"suggestd/types"
)

type Config struct {
	Name      string
	URL       string
	AuthToken string
	Timeout   time.Duration
	Filetypes []string
	Priority  int
	Shortcut  string
}

func DefaultConfig() Config {
	return Config{Name: "remote", Priority: 10, Shortcut: "R"}
}

type LineReader interface {
	Lines() []string
}

type Source struct {
	doc    LineReader
	client *remoteapi.Client
	config Config
}

func New(doc LineReader, config Config) *Source {
	def := DefaultConfig()
	if config.Name == "" {
		config.Name = def.Name
	}
	if config.Shortcut == "" {
		config.Shortcut = def.Shortcut
	}
	return &Source{
		doc:    doc,
		client: remoteapi.NewClient(config.URL, config.AuthToken, config.Timeout),
		config: config,
	}
}

func (s *Source) Name() string     { return s.config.Name }
func (s *Source) Priority() int    { return s.config.Priority }
func (s *Source) Shortcut() string { return s.config.Shortcut }

// ShouldComplete limits the source to its filetypes, when any are configured
func (s *Source) ShouldComplete(ctx context.Context, opt types.CompleteOption) (bool, error) {
	return len(s.config.Filetypes) == 0 || slices.Contains(s.config.Filetypes, opt.Filetype), nil
}

func (s *Source) DoComplete(ctx context.Context, opt types.CompleteOption) (*types.CompleteResult, error) {
	lines := s.doc.Lines()
	cursor := opt.Cursor()

	resp, err := s.client.DoCompletion(ctx, &remoteapi.Request{
		Bufnr:            opt.Bufnr,
		Filetype:         opt.Filetype,
		Linenr:           opt.Linenr,
		Col:              opt.Col,
		Line:             opt.Line,
		Input:            opt.Input,
		TriggerCharacter: opt.TriggerCharacter,
		Contents:         strings.Join(lines, "\n"),
		CursorOffset:     remoteapi.CursorToByteOffset(lines, opt.Linenr, cursor),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	items := make([]*types.CompleteItem, len(resp.Items))
	for i, it := range resp.Items {
		items[i] = &types.CompleteItem{
			Word:        it.Word,
			Abbr:        it.Abbr,
			FilterText:  it.FilterText,
			SortText:    it.SortText,
			Kind:        it.Kind,
			Menu:        it.Menu,
			Info:        it.Info,
			IsSnippet:   it.Snippet,
			Preselect:   it.Preselect,
			Deprecated:  it.Deprecated,
			SourceScore: it.Score,
		}
	}
	return &types.CompleteResult{
		Items:      items,
		Incomplete: resp.Incomplete,
		StartCol:   resp.StartCol,
	}, nil
}
