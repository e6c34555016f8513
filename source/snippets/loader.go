package snippets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// GlobalStem names files whose snippets apply to every filetype
const GlobalStem = "all"

// Snippet is one definition. Without Filetypes it applies to the filetype
// named by its file (go.toml holds Go snippets; all.yaml applies everywhere).
type Snippet struct {
	Prefix      string   `toml:"prefix" yaml:"prefix"`
	Body        string   `toml:"body" yaml:"body"`
	Description string   `toml:"description" yaml:"description"`
	Filetypes   []string `toml:"filetypes" yaml:"filetypes"`
}

type snippetFile struct {
	Snippets []Snippet `toml:"snippet" yaml:"snippets"`
}

func (s *Snippet) appliesTo(filetype string) bool {
	for _, ft := range s.Filetypes {
		if ft == "*" || ft == filetype {
			return true
		}
	}
	return false
}

func isSnippetFile(path string) bool {
	switch filepath.Ext(path) {
	case ".toml", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile parses a TOML or YAML snippet file
func LoadFile(path string) ([]Snippet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var f snippetFile
	switch filepath.Ext(path) {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		return nil, errors.Newf("unsupported snippet file %s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := f.Snippets[:0]
	for _, s := range f.Snippets {
		if s.Prefix == "" {
			continue
		}
		if len(s.Filetypes) == 0 {
			if stem == GlobalStem {
				s.Filetypes = []string{"*"}
			} else {
				s.Filetypes = []string{stem}
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// LoadPaths reads every snippet file in paths. A path may be a file or a
// directory; missing paths are skipped. Files that fail to parse are
// returned in the joined error while the rest still load.
func LoadPaths(paths []string) ([]Snippet, error) {
	var all []Snippet
	var errs error
	for _, p := range paths {
		files, err := snippetFiles(p)
		if err != nil {
			errs = errors.CombineErrors(errs, err)
			continue
		}
		for _, f := range files {
			snips, err := LoadFile(f)
			if err != nil {
				errs = errors.CombineErrors(errs, err)
				continue
			}
			all = append(all, snips...)
		}
	}
	return all, errs
}

func snippetFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", path)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isSnippetFile(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
