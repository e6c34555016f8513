package engine

import (
	"context"
	"sync"
	"time"

	"suggestd/logger"
	"suggestd/metrics"
	"suggestd/session"
	"suggestd/types"

	"github.com/neovim/go-client/nvim"
)

type state int

const (
	stateIdle state = iota
	stateCompleting
	stateShowing
)

type Config struct {
	Session session.Config
	// AutoTrigger starts sessions while typing; manual trigger always works
	AutoTrigger       bool
	MinInputLength    int
	TriggerCharacters []string
	// NotifyInterval throttles failure notifications per source
	NotifyInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Session:           session.DefaultConfig(),
		AutoTrigger:       true,
		MinInputLength:    1,
		TriggerCharacters: []string{"."},
		NotifyInterval:    time.Minute,
	}
}

// Deps are the collaborators of the engine
type Deps struct {
	Document session.Document
	Sources  []types.Source
	Renderer Renderer
	History  History
	Notifier Notifier
	Tracker  *metrics.Tracker
	Clock    session.Clock
}

type Engine struct {
	config   Config
	doc      session.Document
	sources  []types.Source
	renderer Renderer
	history  History
	tracker  *metrics.Tracker
	clock    session.Clock
	reporter *reporter

	n         *nvim.Nvim
	state     state
	mu        sync.RWMutex
	eventChan chan Event

	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once

	// Active session state
	session       *session.Session
	currentCtx    context.Context
	currentCancel context.CancelFunc
	option        types.CompleteOption
	triggerCol    int
	emptyStart    bool
	inFlight      bool
	shown         []*types.CompleteItem
}

func NewEngine(deps Deps, config Config) *Engine {
	if deps.Clock == nil {
		deps.Clock = session.SystemClock{}
	}
	if deps.Tracker == nil {
		deps.Tracker = metrics.NewTracker("")
	}
	if config.NotifyInterval <= 0 {
		config.NotifyInterval = DefaultConfig().NotifyInterval
	}
	return &Engine{
		config:    config,
		doc:       deps.Document,
		sources:   deps.Sources,
		renderer:  deps.Renderer,
		history:   deps.History,
		tracker:   deps.Tracker,
		clock:     deps.Clock,
		reporter:  newReporter(deps.Tracker, deps.Notifier, deps.Clock, config.NotifyInterval),
		state:     stateIdle,
		eventChan: make(chan Event, 100),
	}
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.mainCtx, e.mainCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.eventLoop(e.mainCtx)
	logger.Info("engine started with %d sources", len(e.sources))
}

// Stop cancels the active session, releases sources and persists history
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		logger.Info("stopping engine...")
		e.stopped = true
		if e.mainCancel != nil {
			e.mainCancel()
		}
		e.cancelSession()
		e.mu.Unlock()

		for _, src := range e.sources {
			if d, ok := src.(types.Disposer); ok {
				d.Dispose()
			}
		}
		if e.history != nil {
			if err := e.history.Save(); err != nil {
				logger.Error("error saving history: %v", err)
			}
		}
		e.tracker.LogSummary()
		logger.Info("engine stopped")
	})
}

// Post queues an event for the event loop
func (e *Engine) Post(ev Event) {
	e.mu.RLock()
	ctx, stopped := e.mainCtx, e.stopped
	e.mu.RUnlock()
	if stopped || ctx == nil {
		return
	}
	select {
	case e.eventChan <- ev:
	case <-ctx.Done():
	}
}

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event loop panic recovered: %v", r)
			e.eventLoop(ctx)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-e.eventChan:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	logger.Debug("handle event: state=%s event=%s", e.state, event.Type)
	e.dispatch(event)
}

// Stats returns the metrics snapshot served to the editor
func (e *Engine) Stats() metrics.Stats {
	return e.tracker.Snapshot()
}

// SetNvim installs the RPC handlers on a new connection
func (e *Engine) SetNvim(n *nvim.Nvim) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.n = n

	if err := n.RegisterHandler("suggest_event", func(n *nvim.Nvim, name, payload string) {
		ev, err := parseEvent(name, payload)
		if err != nil {
			logger.Warn("dropping event: %v", err)
			return
		}
		e.Post(ev)
	}); err != nil {
		logger.Error("error registering event handler: %v", err)
	}

	if err := n.RegisterHandler("suggestd_stats", func() (metrics.Stats, error) {
		return e.Stats(), nil
	}); err != nil {
		logger.Error("error registering stats handler: %v", err)
	}
}
