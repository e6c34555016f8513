package main

import (
	"os"
	"strings"
	"time"

	"suggestd/buffer"
	"suggestd/engine"
	"suggestd/mru"
	"suggestd/popup"
	"suggestd/session"
	"suggestd/source/around"
	"suggestd/source/llm"
	"suggestd/source/remote"
	"suggestd/source/snippets"
	"suggestd/types"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// configEnv carries the JSON config the Lua side passes to the daemon
const configEnv = "SUGGESTD_CONFIG"

type Config struct {
	LogLevel               string `mapstructure:"log_level"` // debug, info, warn, error
	DataDir                string `mapstructure:"data_dir"`
	DebugImmediateShutdown bool   `mapstructure:"debug_immediate_shutdown"`

	AutoTrigger       bool     `mapstructure:"auto_trigger"`
	MinInputLength    int      `mapstructure:"min_input_length"`
	TriggerCharacters []string `mapstructure:"trigger_characters"`
	NotifyInterval    int      `mapstructure:"notify_interval"` // in milliseconds

	Timeout                 int    `mapstructure:"timeout"`                 // in milliseconds
	TriggerCompletionWait   int    `mapstructure:"trigger_completion_wait"` // in milliseconds
	MaxItemCount            int    `mapstructure:"max_item_count"`
	HighPrioritySourceLimit int    `mapstructure:"high_priority_source_limit"`
	LowPrioritySourceLimit  int    `mapstructure:"low_priority_source_limit"`
	RemoveDuplicateItems    bool   `mapstructure:"remove_duplicate_items"`
	DefaultSortMethod       string `mapstructure:"default_sort_method"`
	LocalityBonus           bool   `mapstructure:"locality_bonus"`
	LocalityRadius          int    `mapstructure:"locality_radius"`
	SnippetIndicator        string `mapstructure:"snippet_indicator"`
	FixInsertedWord         bool   `mapstructure:"fix_inserted_word"`

	NoSelect        bool        `mapstructure:"noselect"`
	EnablePreselect bool        `mapstructure:"enable_preselect"`
	Selection       string      `mapstructure:"selection"`
	LabelMaxLength  int         `mapstructure:"label_max_length"`
	AmbiguousIsWide bool        `mapstructure:"ambiguous_is_wide"`
	Popup           PopupConfig `mapstructure:"popup"`

	MruMaxEntries int `mapstructure:"mru_max_entries"`

	Sources SourcesConfig `mapstructure:"sources"`
}

type PopupConfig struct {
	Border    bool   `mapstructure:"border"`
	MaxHeight int    `mapstructure:"max_height"`
	Winblend  int    `mapstructure:"winblend"`
	Highlight string `mapstructure:"highlight"`
}

type SourcesConfig struct {
	Around   AroundConfig   `mapstructure:"around"`
	Snippets SnippetsConfig `mapstructure:"snippets"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Remote   []RemoteConfig `mapstructure:"remote"`
}

type AroundConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Priority int  `mapstructure:"priority"`
	MaxItems int  `mapstructure:"max_items"`
}

type SnippetsConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Priority int      `mapstructure:"priority"`
	Paths    []string `mapstructure:"paths"`
	Watch    bool     `mapstructure:"watch"`
}

type LLMConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	URL               string  `mapstructure:"url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	ContextTokens     int     `mapstructure:"context_tokens"`
	SendSuffix        bool    `mapstructure:"send_suffix"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MinInputLength    int     `mapstructure:"min_input_length"`
	Timeout           int     `mapstructure:"timeout"` // in milliseconds
	Priority          int     `mapstructure:"priority"`
}

type RemoteConfig struct {
	Name      string   `mapstructure:"name"`
	URL       string   `mapstructure:"url"`
	AuthToken string   `mapstructure:"auth_token"`
	Timeout   int      `mapstructure:"timeout"` // in milliseconds
	Filetypes []string `mapstructure:"filetypes"`
	Priority  int      `mapstructure:"priority"`
	Shortcut  string   `mapstructure:"shortcut"`
}

// SetDefaults registers every key so env overrides reach Unmarshal
func SetDefaults(v *viper.Viper) {
	eng := engine.DefaultConfig()
	sess := session.DefaultConfig()

	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", "")
	v.SetDefault("debug_immediate_shutdown", false)

	v.SetDefault("auto_trigger", eng.AutoTrigger)
	v.SetDefault("min_input_length", eng.MinInputLength)
	v.SetDefault("trigger_characters", eng.TriggerCharacters)
	v.SetDefault("notify_interval", int(eng.NotifyInterval/time.Millisecond))

	v.SetDefault("timeout", int(sess.Timeout/time.Millisecond))
	v.SetDefault("trigger_completion_wait", int(sess.TriggerWait/time.Millisecond))
	v.SetDefault("max_item_count", sess.MaxItemCount)
	v.SetDefault("high_priority_source_limit", sess.HighPrioritySourceLimit)
	v.SetDefault("low_priority_source_limit", sess.LowPrioritySourceLimit)
	v.SetDefault("remove_duplicate_items", sess.RemoveDuplicateItems)
	v.SetDefault("default_sort_method", string(sess.DefaultSortMethod))
	v.SetDefault("locality_bonus", sess.LocalityBonus)
	v.SetDefault("locality_radius", buffer.LocalityRadius)
	v.SetDefault("snippet_indicator", sess.SnippetIndicator)
	v.SetDefault("fix_inserted_word", sess.FixInsertedWord)

	v.SetDefault("noselect", false)
	v.SetDefault("enable_preselect", true)
	v.SetDefault("selection", string(types.SelectionFirst))
	v.SetDefault("label_max_length", 40)
	v.SetDefault("ambiguous_is_wide", false)
	v.SetDefault("popup.border", false)
	v.SetDefault("popup.max_height", 12)
	v.SetDefault("popup.winblend", 0)
	v.SetDefault("popup.highlight", "Pmenu")

	v.SetDefault("mru_max_entries", mru.DefaultMaxEntries)

	ar := around.DefaultConfig()
	v.SetDefault("sources.around.enabled", true)
	v.SetDefault("sources.around.priority", ar.Priority)
	v.SetDefault("sources.around.max_items", ar.MaxItems)

	sn := snippets.DefaultConfig()
	v.SetDefault("sources.snippets.enabled", true)
	v.SetDefault("sources.snippets.priority", sn.Priority)
	v.SetDefault("sources.snippets.paths", []string{})
	v.SetDefault("sources.snippets.watch", sn.Watch)

	lm := llm.DefaultConfig()
	v.SetDefault("sources.llm.enabled", false)
	v.SetDefault("sources.llm.url", lm.URL)
	v.SetDefault("sources.llm.api_key", "")
	v.SetDefault("sources.llm.model", "")
	v.SetDefault("sources.llm.temperature", lm.Temperature)
	v.SetDefault("sources.llm.max_tokens", lm.MaxTokens)
	v.SetDefault("sources.llm.context_tokens", lm.ContextTokens)
	v.SetDefault("sources.llm.send_suffix", lm.SendSuffix)
	v.SetDefault("sources.llm.requests_per_second", lm.RequestsPerSecond)
	v.SetDefault("sources.llm.burst", lm.Burst)
	v.SetDefault("sources.llm.min_input_length", lm.MinInputLength)
	v.SetDefault("sources.llm.timeout", 2000)
	v.SetDefault("sources.llm.priority", lm.Priority)

	v.SetDefault("sources.remote", []any{})
}

// LoadConfig merges defaults, the optional config file, the JSON passed by
// the editor and SUGGESTD_* env overrides, in increasing precedence.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("SUGGESTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	if raw := strings.TrimSpace(os.Getenv(configEnv)); raw != "" {
		v.SetConfigType("json")
		if err := v.MergeConfig(strings.NewReader(raw)); err != nil {
			return nil, errors.Wrapf(err, "invalid %s", configEnv)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (c *Config) sessionConfig() session.Config {
	return session.Config{
		Timeout:                 millis(c.Timeout),
		TriggerWait:             millis(c.TriggerCompletionWait),
		MaxItemCount:            c.MaxItemCount,
		HighPrioritySourceLimit: c.HighPrioritySourceLimit,
		LowPrioritySourceLimit:  c.LowPrioritySourceLimit,
		RemoveDuplicateItems:    c.RemoveDuplicateItems,
		DefaultSortMethod:       types.SortMethod(c.DefaultSortMethod),
		LocalityBonus:           c.LocalityBonus,
		SnippetIndicator:        c.SnippetIndicator,
		FixInsertedWord:         c.FixInsertedWord,
	}
}

func (c *Config) engineConfig() engine.Config {
	return engine.Config{
		Session:           c.sessionConfig(),
		AutoTrigger:       c.AutoTrigger,
		MinInputLength:    c.MinInputLength,
		TriggerCharacters: c.TriggerCharacters,
		NotifyInterval:    millis(c.NotifyInterval),
	}
}

func (c *Config) popupConfig() popup.Config {
	return popup.Config{
		NoSelect:        c.NoSelect,
		EnablePreselect: c.EnablePreselect,
		Selection:       types.Selection(c.Selection),
		LabelMaxLength:  c.LabelMaxLength,
		AmbiguousIsWide: c.AmbiguousIsWide,
		Style: popup.Style{
			Border:    c.Popup.Border,
			MaxHeight: c.Popup.MaxHeight,
			Winblend:  c.Popup.Winblend,
			Highlight: c.Popup.Highlight,
		},
	}
}

func (c *Config) aroundConfig() around.Config {
	cfg := around.DefaultConfig()
	cfg.Priority = c.Sources.Around.Priority
	cfg.MaxItems = c.Sources.Around.MaxItems
	return cfg
}

func (c *Config) snippetsConfig() snippets.Config {
	cfg := snippets.DefaultConfig()
	cfg.Priority = c.Sources.Snippets.Priority
	cfg.Paths = c.Sources.Snippets.Paths
	cfg.Watch = c.Sources.Snippets.Watch
	return cfg
}

func (c *Config) llmConfig() llm.Config {
	s := c.Sources.LLM
	cfg := llm.DefaultConfig()
	cfg.URL = s.URL
	cfg.APIKey = s.APIKey
	cfg.Model = s.Model
	cfg.Temperature = s.Temperature
	cfg.MaxTokens = s.MaxTokens
	cfg.ContextTokens = s.ContextTokens
	cfg.SendSuffix = s.SendSuffix
	cfg.RequestsPerSecond = s.RequestsPerSecond
	cfg.Burst = s.Burst
	cfg.MinInputLength = s.MinInputLength
	cfg.Timeout = millis(s.Timeout)
	cfg.Priority = s.Priority
	return cfg
}

func (c *Config) remoteConfigs() []remote.Config {
	configs := make([]remote.Config, 0, len(c.Sources.Remote))
	for _, r := range c.Sources.Remote {
		cfg := remote.DefaultConfig()
		if r.Name != "" {
			cfg.Name = r.Name
		}
		if r.Priority != 0 {
			cfg.Priority = r.Priority
		}
		if r.Shortcut != "" {
			cfg.Shortcut = r.Shortcut
		}
		cfg.URL = r.URL
		cfg.AuthToken = r.AuthToken
		cfg.Timeout = millis(r.Timeout)
		cfg.Filetypes = r.Filetypes
		configs = append(configs, cfg)
	}
	return configs
}
