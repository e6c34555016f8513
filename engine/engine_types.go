package engine

import (
	"suggestd/buffer"
	"suggestd/popup"
	"suggestd/types"
)

// Renderer shows and hides the completion popup.
// Implemented by popup.Renderer.
type Renderer interface {
	Show(items []*types.CompleteItem, search string, option types.CompleteOption) (*popup.Popup, error)
	Hide() error
}

// History records accepted items. Implemented by mru.Model.
type History interface {
	Add(prefix string, item *types.CompleteItem)
	Save() error
}

// Notifier surfaces messages to the user. Implemented by buffer.NvimBuffer.
type Notifier interface {
	Notify(msg string, level buffer.LogLevel)
}
