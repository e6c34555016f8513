package engine

import (
	"context"
	"slices"
	"unicode/utf8"

	"suggestd/buffer"
	"suggestd/logger"
	"suggestd/session"
	"suggestd/types"

	"github.com/cockroachdb/errors"
)

func optionFrom(p CursorPayload) types.CompleteOption {
	return buffer.NewOption(p.Bufnr, p.Linenr, p.Line, p.Col, p.Filetype)
}

// shouldTrigger applies the typing rules: enough keyword characters, or a
// trigger character right before the cursor.
func (e *Engine) shouldTrigger(opt types.CompleteOption) bool {
	if !e.config.AutoTrigger {
		return false
	}
	if opt.Input != "" {
		return utf8.RuneCountInString(opt.Input) >= e.config.MinInputLength
	}
	return opt.TriggerCharacter != "" && slices.Contains(e.config.TriggerCharacters, opt.TriggerCharacter)
}

func (e *Engine) doTextChanged(event Event) {
	p, ok := event.Data.(CursorPayload)
	if !ok {
		return
	}
	opt := optionFrom(p)
	if !e.shouldTrigger(opt) {
		return
	}
	e.startSession(opt)
}

func (e *Engine) doTrigger(event Event) {
	p, ok := event.Data.(CursorPayload)
	if !ok {
		return
	}
	e.startSession(optionFrom(p))
}

// doTextChangedActive narrows the active session to the new input. Edits
// that leave the session's word start a new trigger decision.
func (e *Engine) doTextChangedActive(event Event) {
	p, ok := event.Data.(CursorPayload)
	if !ok {
		return
	}
	opt := optionFrom(p)
	e.syncColumn()
	if !e.continues(opt) {
		e.cancelSession()
		e.doTextChanged(event)
		return
	}

	cursor := opt.Colnr - 1
	e.option.Line = opt.Line
	e.option.Input = opt.Line[e.option.Col:cursor]
	e.option.Colnr = opt.Colnr
	e.option.TriggerCharacter = opt.TriggerCharacter
	e.option.FollowWord = opt.FollowWord

	if !e.inFlight && len(e.session.IncompleteSources()) > 0 {
		e.resume(e.option.Input)
	}
	e.showFiltered(false)
}

// continues reports whether opt still edits the word the session started on.
// The cursor is checked against the session column, which a source may have
// moved away from the trigger column.
func (e *Engine) continues(opt types.CompleteOption) bool {
	if e.session == nil {
		return false
	}
	if opt.Bufnr != e.option.Bufnr || opt.Linenr != e.option.Linenr || opt.Col != e.triggerCol {
		return false
	}
	cursor := opt.Colnr - 1
	if cursor < e.option.Col || (cursor == e.option.Col && !e.emptyStart) {
		return false
	}
	return true
}

func (e *Engine) startSession(opt types.CompleteOption) {
	e.cancelSession()

	sess := session.New(e.doc, e.sources, opt, e.config.Session, e.clock, e.reporter)
	ctx, cancel := context.WithCancel(e.mainCtx)

	e.session = sess
	e.currentCtx = ctx
	e.currentCancel = cancel
	e.option = opt
	e.triggerCol = opt.Col
	e.emptyStart = opt.Input == ""
	e.inFlight = true
	e.state = stateCompleting
	e.tracker.SessionStarted()

	logger.Debug("session %s: start at %d:%d input=%q", sess.ID, opt.Linenr, opt.Col, opt.Input)

	go func() {
		ok, err := sess.DoComplete(ctx)
		e.Post(Event{Type: EventCompletionReady, Data: completionResult{session: sess, ok: ok, err: err}})
	}()
	go e.watchRefresh(ctx, sess)
}

// resume re-queries the incomplete sources of the active session
func (e *Engine) resume(input string) {
	sess, ctx := e.session, e.currentCtx
	e.inFlight = true
	go func() {
		_, err := sess.Resume(ctx, input)
		e.Post(Event{Type: EventCompletionReady, Data: completionResult{session: sess, ok: true, err: err}})
	}()
}

// watchRefresh forwards the session's refresh notifications to the event loop
func (e *Engine) watchRefresh(ctx context.Context, sess *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Refreshed():
			e.Post(Event{Type: EventRefresh, Data: sess})
		}
	}
}

func (e *Engine) doRefresh(event Event) {
	if sess, ok := event.Data.(*session.Session); !ok || sess != e.session {
		return
	}
	e.showFiltered(false)
}

func (e *Engine) doCompletionReady(event Event) {
	r, ok := event.Data.(completionResult)
	if !ok || r.session != e.session {
		return
	}
	e.inFlight = false
	e.syncColumn()

	if r.err != nil {
		switch {
		case errors.Is(r.err, session.ErrDisabled), errors.Is(r.err, session.ErrBlacklisted):
			logger.Debug("session %s: %v", r.session.ID, r.err)
		case errors.Is(r.err, context.Canceled):
		default:
			logger.Error("session %s: %v", r.session.ID, r.err)
		}
		e.cancelSession()
		return
	}
	e.showFiltered(true)

	// keystrokes typed while the query ran were filtered locally only
	if sess := e.session; sess != nil && !e.inFlight &&
		sess.Option().Input != e.option.Input && len(sess.IncompleteSources()) > 0 {
		e.resume(e.option.Input)
	}
}

// syncColumn adopts the session column when a source moved the start of the
// completed range, in either direction.
func (e *Engine) syncColumn() {
	if e.session == nil {
		return
	}
	sessCol := e.session.Option().Col
	if sessCol == e.option.Col {
		return
	}
	cursor := e.option.Cursor()
	if sessCol < 0 || sessCol > cursor || cursor > len(e.option.Line) {
		return
	}
	e.option.Col = sessCol
	e.option.Input = e.option.Line[sessCol:cursor]
}

// showFiltered ranks the session results against the current input and
// renders them. With final set, a session with nothing left to show or
// resume is closed.
func (e *Engine) showFiltered(final bool) {
	sess := e.session
	if sess == nil {
		return
	}
	e.syncColumn()

	items := sess.FilterItems(e.option.Input)
	if len(items) == 0 {
		if e.state == stateShowing {
			e.hide()
			e.state = stateCompleting
		}
		if final && len(sess.IncompleteSources()) == 0 {
			e.cancelSession()
		}
		return
	}

	if _, err := e.renderer.Show(items, e.option.Input, e.option); err != nil {
		logger.Error("error showing popup: %v", err)
	}
	e.shown = items
	e.state = stateShowing
}

func (e *Engine) doAccept(event Event) {
	p, _ := event.Data.(AcceptPayload)
	item := e.acceptedItem(p)
	if item != nil {
		logger.Debug("accepted %q from %s", item.Word, item.Source)
		if e.history != nil {
			e.history.Add(e.option.Input, item)
		}
		e.tracker.Accepted()
	}
	e.cancelSession()
}

func (e *Engine) acceptedItem(p AcceptPayload) *types.CompleteItem {
	if p.Index >= 0 && p.Index < len(e.shown) && (p.Word == "" || e.shown[p.Index].Word == p.Word) {
		return e.shown[p.Index]
	}
	for _, it := range e.shown {
		if it.Word == p.Word {
			return it
		}
	}
	return nil
}

func (e *Engine) doCancel(event Event) {
	e.cancelSession()
}

// cancelSession drops the active session and hides the popup
func (e *Engine) cancelSession() {
	if e.currentCancel != nil {
		e.currentCancel()
		e.currentCancel = nil
	}
	if e.session != nil {
		e.session.Dispose()
		e.session = nil
	}
	if e.state == stateShowing {
		e.hide()
	}
	e.currentCtx = nil
	e.shown = nil
	e.inFlight = false
	e.state = stateIdle
}

func (e *Engine) hide() {
	if err := e.renderer.Hide(); err != nil {
		logger.Error("error hiding popup: %v", err)
	}
	e.shown = nil
}
