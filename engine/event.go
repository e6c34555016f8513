package engine

import (
	"encoding/json"
	"strings"

	"suggestd/session"

	"github.com/cockroachdb/errors"
)

type EventType string

const (
	EventTextChangedI    EventType = "text_changed_i"
	EventTrigger         EventType = "trigger"
	EventInsertLeave     EventType = "insert_leave"
	EventEsc             EventType = "esc"
	EventCompleteDone    EventType = "complete_done"
	EventRefresh         EventType = "refresh"
	EventCompletionReady EventType = "completion_ready"
)

// editorEvents are the events the Lua side may send
var editorEvents = map[string]EventType{
	string(EventTextChangedI): EventTextChangedI,
	string(EventTrigger):      EventTrigger,
	string(EventInsertLeave):  EventInsertLeave,
	string(EventEsc):          EventEsc,
	string(EventCompleteDone): EventCompleteDone,
}

func EventTypeFromString(s string) EventType {
	return editorEvents[s]
}

type Event struct {
	Type EventType
	Data any
}

// CursorPayload is sent with text_changed_i and trigger. Col is the 0-indexed
// byte offset of the cursor in Line.
type CursorPayload struct {
	Bufnr    int    `json:"bufnr"`
	Linenr   int    `json:"linenr"`
	Line     string `json:"line"`
	Col      int    `json:"col"`
	Filetype string `json:"filetype"`
}

// AcceptPayload is sent with complete_done. Index points into the last popup;
// Word is used when the index is stale.
type AcceptPayload struct {
	Index int    `json:"index"`
	Word  string `json:"word"`
}

// completionResult is posted by the goroutine driving a session
type completionResult struct {
	session *session.Session
	ok      bool
	err     error
}

// parseEvent decodes the JSON payload sent along with an editor event
func parseEvent(name, payload string) (Event, error) {
	t := EventTypeFromString(name)
	if t == "" {
		return Event{}, errors.Newf("unknown event %q", name)
	}
	ev := Event{Type: t}
	if strings.TrimSpace(payload) == "" {
		return ev, nil
	}

	switch t {
	case EventTextChangedI, EventTrigger:
		var p CursorPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Event{}, errors.Wrapf(err, "decode %s payload", name)
		}
		ev.Data = p
	case EventCompleteDone:
		var p AcceptPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Event{}, errors.Wrapf(err, "decode %s payload", name)
		}
		ev.Data = p
	}
	return ev, nil
}
