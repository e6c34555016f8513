package engine

import (
	"suggestd/logger"
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateCompleting:
		return "Completing"
	case stateShowing:
		return "Showing"
	default:
		return "Unknown"
	}
}

// Transition represents a valid state transition in the engine's state machine
type Transition struct {
	From   state
	Event  EventType
	Action func(*Engine, Event)
}

// transitions defines every event the engine reacts to per state.
//
//	stateIdle
//	├─[TextChangedI + trigger rule]──► stateCompleting
//	└─[Trigger]──────────────────────► stateCompleting
//	                                     │
//	                                     ├─[Refresh/CompletionReady + items]──► stateShowing
//	                                     └─[CompletionReady, nothing left]────► stateIdle
//	stateShowing
//	├─[TextChangedI]──► filter, or resume incomplete sources
//	└─[CompleteDone]──► record history ──► stateIdle
//
// Esc and InsertLeave cancel from any state.
var transitions = []Transition{
	{stateIdle, EventTextChangedI, (*Engine).doTextChanged},
	{stateIdle, EventTrigger, (*Engine).doTrigger},
	{stateIdle, EventEsc, (*Engine).doCancel},
	{stateIdle, EventInsertLeave, (*Engine).doCancel},

	{stateCompleting, EventTextChangedI, (*Engine).doTextChangedActive},
	{stateCompleting, EventTrigger, (*Engine).doTrigger},
	{stateCompleting, EventRefresh, (*Engine).doRefresh},
	{stateCompleting, EventCompletionReady, (*Engine).doCompletionReady},
	{stateCompleting, EventEsc, (*Engine).doCancel},
	{stateCompleting, EventInsertLeave, (*Engine).doCancel},

	{stateShowing, EventTextChangedI, (*Engine).doTextChangedActive},
	{stateShowing, EventTrigger, (*Engine).doTrigger},
	{stateShowing, EventRefresh, (*Engine).doRefresh},
	{stateShowing, EventCompletionReady, (*Engine).doCompletionReady},
	{stateShowing, EventCompleteDone, (*Engine).doAccept},
	{stateShowing, EventEsc, (*Engine).doCancel},
	{stateShowing, EventInsertLeave, (*Engine).doCancel},
}

var transitionMap map[transitionKey]*Transition

type transitionKey struct {
	from  state
	event EventType
}

func init() {
	transitionMap = make(map[transitionKey]*Transition)
	for i := range transitions {
		t := &transitions[i]
		transitionMap[transitionKey{from: t.From, event: t.Event}] = t
	}
}

func findTransition(from state, event EventType) *Transition {
	return transitionMap[transitionKey{from: from, event: event}]
}

// dispatch runs the action registered for the current state and event.
// Actions set the next state themselves.
func (e *Engine) dispatch(event Event) bool {
	t := findTransition(e.state, event.Type)
	if t == nil {
		logger.Debug("no handler: state=%s event=%s", e.state, event.Type)
		return false
	}
	t.Action(e, event)
	return true
}
