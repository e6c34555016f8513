package buffer

import (
	"suggestd/popup"

	"github.com/neovim/go-client/nvim"
)

// Screen renders popups through the plugin's Lua side. Each transaction is
// one nvim batch, so Neovim applies the popup and the redraw together.
type Screen struct {
	buf *NvimBuffer
}

func NewScreen(buf *NvimBuffer) *Screen {
	return &Screen{buf: buf}
}

func (s *Screen) Begin() popup.Transaction {
	s.buf.mu.RLock()
	client := s.buf.client
	s.buf.mu.RUnlock()
	if client == nil {
		return noopTx{}
	}
	return &screenTx{batch: client.NewBatch()}
}

type screenTx struct {
	batch *nvim.Batch
}

func (t *screenTx) ShowPopup(p *popup.Popup) {
	t.batch.ExecLua("require('suggest').show_popup(...)", nil, p)
}

func (t *screenTx) HidePopup() {
	t.batch.ExecLua("require('suggest').hide_popup()", nil, nil)
}

func (t *screenTx) Redraw() {
	t.batch.Command("redraw")
}

func (t *screenTx) Commit() error {
	return t.batch.Execute()
}

// noopTx is used before a client is attached
type noopTx struct{}

func (noopTx) ShowPopup(*popup.Popup) {}
func (noopTx) HidePopup()             {}
func (noopTx) Redraw()                {}
func (noopTx) Commit() error          { return nil }
