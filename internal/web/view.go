package web

import (
	"github.com/kuitang/blockcheck/internal/blocks"
)

// BlockView is the render model of one block.
type BlockView struct {
	Index    int
	ClientID string
	Type     string
	Name     string
	Title    string
	IsText   bool

	// Content split at the caret; After is empty when the block has no caret.
	Before string
	After  string

	Selected bool
	HasCaret bool
	// IsAppender marks the untouched default block of a new post, rendered
	// as the "Type / to choose a block" appender.
	IsAppender bool
	Toolbar    bool
	MenuOpen   bool
}

// EditorView is the render model of the editor fragment.
type EditorView struct {
	PostID       string
	Title        string
	TitleFocused bool
	Typing       bool
	Selection    string
	Blocks       []BlockView
	Menu         []blocks.MenuEntry
}

// NewEditorView builds the render model for an editor state.
func NewEditorView(postID string, st blocks.State) EditorView {
	v := EditorView{
		PostID:       postID,
		Title:        st.Title,
		TitleFocused: st.TitleFocused,
		Typing:       st.Typing,
		Selection:    st.Selection.String(),
		Blocks:       make([]BlockView, len(st.Blocks)),
		Menu:         blocks.SettingsMenu,
	}
	toolbar, hasToolbar := st.ToolbarIndex()
	appender := len(st.Blocks) == 1 && st.Blocks[0].IsUnmodifiedDefault() && st.Selection.Kind == blocks.SelectionNone

	for i, b := range st.Blocks {
		bv := BlockView{
			Index:      i,
			ClientID:   b.ClientID,
			Type:       string(b.Type),
			Name:       b.Type.Name(),
			Title:      b.Type.Title(),
			IsText:     b.Type.IsText(),
			Before:     b.Content,
			Selected:   st.Selection.Contains(i),
			IsAppender: appender,
			Toolbar:    hasToolbar && toolbar == i,
		}
		bv.MenuOpen = bv.Toolbar && st.MenuOpen
		if st.Selection.Kind == blocks.SelectionCaret && st.Selection.Anchor == i {
			r := []rune(b.Content)
			off := min(max(st.Selection.Offset, 0), len(r))
			bv.Before, bv.After = string(r[:off]), string(r[off:])
			bv.HasCaret = true
		}
		v.Blocks[i] = bv
	}
	return v
}
