package session

import (
	"time"

	"suggestd/types"
)

const (
	// DefaultTimeout bounds the fan-out to all sources
	DefaultTimeout = 500 * time.Millisecond
	// MaxTriggerWait caps the keystroke coalescing wait
	MaxTriggerWait = 50 * time.Millisecond
	// RefreshDelay is the debounce applied when a source contributes while others are pending
	RefreshDelay = 20 * time.Millisecond
	// HighPriority is the lowest priority counted against the high priority item cap
	HighPriority = 90
)

// Config holds the ranking and fan-out options a session consumes
type Config struct {
	Timeout                 time.Duration
	TriggerWait             time.Duration
	MaxItemCount            int
	HighPrioritySourceLimit int // 0 = unlimited
	LowPrioritySourceLimit  int // 0 = unlimited
	RemoveDuplicateItems    bool
	DefaultSortMethod       types.SortMethod
	LocalityBonus           bool
	SnippetIndicator        string
	FixInsertedWord         bool
}

func DefaultConfig() Config {
	return Config{
		Timeout:              DefaultTimeout,
		TriggerWait:          10 * time.Millisecond,
		MaxItemCount:         50,
		RemoveDuplicateItems: false,
		DefaultSortMethod:    types.SortLength,
		LocalityBonus:        true,
		SnippetIndicator:     "~",
		FixInsertedWord:      true,
	}
}

func (c Config) normalized() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.TriggerWait = min(max(c.TriggerWait, 0), MaxTriggerWait)
	switch c.DefaultSortMethod {
	case types.SortNone, types.SortAlphabetical, types.SortLength:
	default:
		c.DefaultSortMethod = types.SortLength
	}
	return c
}
