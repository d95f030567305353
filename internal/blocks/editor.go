package blocks

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kuitang/blockcheck/internal/errs"
)

// Editor holds a document, its selection and the UI flags that decide which
// controls are exposed (block toolbar, settings menu, post title focus).
type Editor struct {
	doc   *Document
	sel   Selection
	title string

	typing       bool
	menuOpen     bool
	titleFocused bool

	apple bool
	newID func() string
}

// Option configures an Editor.
type Option func(*Editor)

// WithApple makes the keymap use Apple modifier conventions.
func WithApple(apple bool) Option {
	return func(e *Editor) {
		e.apple = apple
	}
}

// WithIDGenerator overrides client ID generation (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(e *Editor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEditor creates an editor for a new post: a document holding only the
// default block, with nothing selected.
func NewEditor(opts ...Option) *Editor {
	e := &Editor{
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.doc = NewDocument(e.newBlock(DefaultType, ""))
	return e
}

// State is a read-only copy of the editor state.
type State struct {
	Title        string
	Blocks       []Block
	Selection    Selection
	Typing       bool
	MenuOpen     bool
	TitleFocused bool
}

// ToolbarIndex returns the block whose toolbar is exposed. The toolbar shows
// for a single selected block while the user is not typing.
func (s State) ToolbarIndex() (int, bool) {
	if s.Typing || s.TitleFocused {
		return 0, false
	}
	switch s.Selection.Kind {
	case SelectionCaret, SelectionBlock:
		return s.Selection.Anchor, true
	default:
		return 0, false
	}
}

// State returns a snapshot of the current editor state.
func (e *Editor) State() State {
	return State{
		Title:        e.title,
		Blocks:       e.doc.Blocks(),
		Selection:    e.sel,
		Typing:       e.typing,
		MenuOpen:     e.menuOpen,
		TitleFocused: e.titleFocused,
	}
}

// Document returns the edited document.
func (e *Editor) Document() *Document {
	return e.doc
}

// Selection returns the active selection.
func (e *Editor) Selection() Selection {
	return e.sel
}

// Serialize returns the edited post content.
func (e *Editor) Serialize() string {
	return e.doc.Serialize()
}

// IsDefaultBlockFocused reports whether the caret sits in an empty block of the default type.
func (e *Editor) IsDefaultBlockFocused() bool {
	if e.titleFocused || e.sel.Kind != SelectionCaret {
		return false
	}
	b, ok := e.doc.Block(e.sel.Anchor)
	return ok && b.IsUnmodifiedDefault()
}

func (e *Editor) newBlock(t Type, content string) Block {
	return Block{ClientID: e.newID(), Type: t, Content: content}
}

func (e *Editor) checkIndex(i int) error {
	if i < 0 || i >= e.doc.Len() {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("block index %d out of range [0,%d)", i, e.doc.Len()))
	}
	return nil
}

func (e *Editor) placeCaret(i, offset int) {
	b, _ := e.doc.Block(i)
	e.sel = Selection{Kind: SelectionCaret, Anchor: i, Focus: i, Offset: clamp(offset, 0, b.Len())}
	e.titleFocused = false
}

func (e *Editor) selectWrapper(i int) {
	e.sel = Selection{Kind: SelectionBlock, Anchor: i, Focus: i}
	e.titleFocused = false
}

func (e *Editor) clearSelection() {
	e.sel = Selection{}
}

// land moves the selection onto block i: a caret at its start or end for
// text blocks, a wrapper selection otherwise.
func (e *Editor) land(i int, atEnd bool) {
	b, ok := e.doc.Block(i)
	if !ok {
		return
	}
	if !b.Type.IsText() {
		e.selectWrapper(i)
		return
	}
	offset := 0
	if atEnd {
		offset = b.Len()
	}
	e.placeCaret(i, offset)
}

// removeRange deletes blocks from..to and re-establishes exactly one selection:
// the end of the preceding block, else the start of the first remaining
// block, else a freshly inserted default block.
func (e *Editor) removeRange(from, to int) {
	e.doc.Remove(from, to)
	e.menuOpen = false
	if e.doc.Len() == 0 {
		e.doc.Insert(0, e.newBlock(DefaultType, ""))
		e.placeCaret(0, 0)
		return
	}
	if from > 0 {
		e.land(from-1, true)
		return
	}
	e.land(0, false)
}

func (e *Editor) selectedBounds() (int, int, error) {
	from, to, ok := e.sel.Bounds()
	if !ok {
		return 0, 0, errs.New(errs.FailedPrecondition, "no block selected")
	}
	return from, to, nil
}

// RemoveSelected removes every selected block.
func (e *Editor) RemoveSelected() error {
	from, to, err := e.selectedBounds()
	if err != nil {
		return err
	}
	e.removeRange(from, to)
	return nil
}

// DuplicateSelected inserts copies of the selected blocks after them and
// selects the last copy.
func (e *Editor) DuplicateSelected() error {
	from, to, err := e.selectedBounds()
	if err != nil {
		return err
	}
	copies := make([]Block, 0, to-from+1)
	for i := from; i <= to; i++ {
		b, _ := e.doc.Block(i)
		copies = append(copies, e.newBlock(b.Type, b.Content))
	}
	e.doc.Insert(to+1, copies...)
	e.menuOpen = false
	e.land(to+len(copies), true)
	return nil
}

// InsertDefaultBefore inserts a default block before the selection and focuses it.
func (e *Editor) InsertDefaultBefore() error {
	from, _, err := e.selectedBounds()
	if err != nil {
		return err
	}
	e.doc.Insert(from, e.newBlock(DefaultType, ""))
	e.menuOpen = false
	e.placeCaret(from, 0)
	return nil
}

// InsertDefaultAfter inserts a default block after the selection and focuses it.
func (e *Editor) InsertDefaultAfter() error {
	_, to, err := e.selectedBounds()
	if err != nil {
		return err
	}
	e.doc.Insert(to+1, e.newBlock(DefaultType, ""))
	e.menuOpen = false
	e.placeCaret(to+1, 0)
	return nil
}

// replaceRange swaps blocks from..to for b and puts the caret at the end of b.
func (e *Editor) replaceRange(from, to int, b Block) {
	e.doc.Remove(from, to)
	e.doc.Insert(from, b)
	e.land(from, true)
}
