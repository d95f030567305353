package blocks

import (
	"strings"
	"unicode/utf8"

	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/keycodes"
)

// Key is a single key press with its held modifiers. Name follows the DOM
// KeyboardEvent.key naming ("Backspace", "ArrowUp", "a").
type Key struct {
	Name  string
	Shift bool
	Alt   bool
	Ctrl  bool
	Meta  bool
}

// ParseKey parses "Shift+Alt+z" style chords. The last segment is the key.
func ParseKey(s string) Key {
	if s == "+" {
		return Key{Name: s}
	}
	parts := strings.Split(s, "+")
	// "Shift++" names the plus key itself.
	if strings.HasSuffix(s, "++") {
		parts = append(parts[:len(parts)-2], "+")
	}
	k := Key{Name: parts[len(parts)-1]}
	for _, mod := range parts[:len(parts)-1] {
		switch strings.ToLower(mod) {
		case "shift":
			k.Shift = true
		case "alt", "option":
			k.Alt = true
		case "control", "ctrl":
			k.Ctrl = true
		case "meta", "cmd", "command":
			k.Meta = true
		}
	}
	return k
}

func (k Key) modifiers() map[string]bool {
	mods := make(map[string]bool, 4)
	if k.Shift {
		mods[keycodes.Shift] = true
	}
	if k.Alt {
		mods[keycodes.Alt] = true
	}
	if k.Ctrl {
		mods[keycodes.Control] = true
	}
	if k.Meta {
		mods[keycodes.Meta] = true
	}
	return mods
}

// Matches reports whether k is the shortcut alias+name on the given platform.
func (k Key) Matches(alias, name string, apple bool) bool {
	if !strings.EqualFold(k.Name, name) {
		return false
	}
	want, err := keycodes.Resolve(alias, apple)
	if err != nil {
		return false
	}
	have := k.modifiers()
	if len(have) != len(want) {
		return false
	}
	for _, m := range want {
		if !have[m] {
			return false
		}
	}
	return true
}

func (k Key) printable() bool {
	return utf8.RuneCountInString(k.Name) == 1 && !k.Ctrl && !k.Meta && !k.Alt
}

// HandleKey applies one key press. A shortcut with nothing to act on does
// nothing, the same as in a browser.
func (e *Editor) HandleKey(k Key) error {
	if shortcut := e.shortcut(k); shortcut != nil {
		if err := shortcut(); err != nil && errs.CodeOf(err) != errs.FailedPrecondition {
			return err
		}
		return nil
	}

	if k.printable() {
		return e.InsertText(k.Name)
	}
	if k.Ctrl || k.Meta || k.Alt {
		return nil
	}

	switch k.Name {
	case "Escape":
		e.escape()
	case "Enter":
		e.enter()
	case "Backspace":
		e.backspace()
	case "Delete":
		e.deleteForward()
	case "ArrowUp":
		if k.Shift {
			e.extend(-1)
		} else {
			e.moveVertical(-1)
		}
	case "ArrowDown":
		if k.Shift {
			e.extend(1)
		} else {
			e.moveVertical(1)
		}
	case "ArrowLeft":
		e.moveHorizontal(-1)
	case "ArrowRight":
		e.moveHorizontal(1)
	case "Home":
		if e.sel.Kind == SelectionCaret {
			e.placeCaret(e.sel.Anchor, 0)
		}
	case "End":
		if e.sel.Kind == SelectionCaret {
			b, _ := e.doc.Block(e.sel.Anchor)
			e.placeCaret(e.sel.Anchor, b.Len())
		}
	}
	return nil
}

// InsertText types s at the current selection.
func (e *Editor) InsertText(s string) error {
	if s == "" {
		return nil
	}
	if e.titleFocused {
		e.title += s
		e.typing = true
		return nil
	}

	switch e.sel.Kind {
	case SelectionNone:
		return nil
	case SelectionRange:
		from, to, _ := e.sel.Bounds()
		e.replaceRange(from, to, e.newBlock(DefaultType, s))
	case SelectionBlock:
		i := e.sel.Anchor
		b, _ := e.doc.Block(i)
		if b.Type.IsText() {
			b.Content += s
			e.doc.set(i, b)
			e.placeCaret(i, b.Len())
		} else {
			e.doc.Insert(i+1, e.newBlock(DefaultType, s))
			e.land(i+1, true)
		}
	case SelectionCaret:
		i := e.sel.Anchor
		b, _ := e.doc.Block(i)
		b.Content = insertRunes(b.Content, e.sel.Offset, s)
		e.doc.set(i, b)
		e.placeCaret(i, e.sel.Offset+utf8.RuneCountInString(s))
	}
	e.typing = true
	e.menuOpen = false
	return nil
}

func (e *Editor) escape() {
	e.typing = false
	e.menuOpen = false
}

func (e *Editor) enter() {
	e.menuOpen = false
	if e.titleFocused {
		e.land(0, false)
		return
	}

	switch e.sel.Kind {
	case SelectionNone:
		return
	case SelectionRange:
		from, to, _ := e.sel.Bounds()
		e.replaceRange(from, to, e.newBlock(DefaultType, ""))
	case SelectionBlock:
		i := e.sel.Anchor
		e.doc.Insert(i+1, e.newBlock(DefaultType, ""))
		e.placeCaret(i+1, 0)
	case SelectionCaret:
		i := e.sel.Anchor
		b, _ := e.doc.Block(i)
		if item, ok := matchInserter(b.Content); ok {
			e.insertFromInserter(i, item)
			return
		}
		left, right := splitRunes(b.Content, e.sel.Offset)
		b.Content = left
		e.doc.set(i, b)
		e.doc.Insert(i+1, e.newBlock(DefaultType, right))
		e.placeCaret(i+1, 0)
	}
	e.typing = true
}

// insertFromInserter completes a "/name" command typed into block i. Text
// types transform the host in place; object types leave the host as an empty
// paragraph and are inserted after it with a wrapper selection.
func (e *Editor) insertFromInserter(i int, item InserterItem) {
	host, _ := e.doc.Block(i)
	host.Content = ""
	if item.Type.IsText() {
		host.Type = item.Type
		e.doc.set(i, host)
		e.placeCaret(i, 0)
		e.typing = true
		return
	}
	e.doc.set(i, host)
	e.doc.Insert(i+1, e.newBlock(item.Type, ""))
	e.selectWrapper(i + 1)
	e.typing = false
}

func (e *Editor) backspace() {
	e.menuOpen = false
	if e.titleFocused {
		if n := utf8.RuneCountInString(e.title); n > 0 {
			e.title = deleteRune(e.title, n-1)
		}
		return
	}

	switch e.sel.Kind {
	case SelectionNone:
		return
	case SelectionRange, SelectionBlock:
		from, to, _ := e.sel.Bounds()
		e.removeRange(from, to)
	case SelectionCaret:
		i, offset := e.sel.Anchor, e.sel.Offset
		b, _ := e.doc.Block(i)
		switch {
		case offset > 0:
			b.Content = deleteRune(b.Content, offset-1)
			e.doc.set(i, b)
			e.placeCaret(i, offset-1)
		case b.Content == "":
			if e.doc.Len() > 1 {
				e.removeRange(i, i)
			}
		case i > 0:
			prev, _ := e.doc.Block(i - 1)
			if !prev.Type.IsText() {
				e.selectWrapper(i - 1)
				break
			}
			joint := prev.Len()
			prev.Content += b.Content
			e.doc.set(i-1, prev)
			e.doc.Remove(i, i)
			e.placeCaret(i-1, joint)
		}
	}
	e.typing = true
}

func (e *Editor) deleteForward() {
	e.menuOpen = false
	switch e.sel.Kind {
	case SelectionNone:
		return
	case SelectionRange, SelectionBlock:
		from, to, _ := e.sel.Bounds()
		e.removeRange(from, to)
	case SelectionCaret:
		i, offset := e.sel.Anchor, e.sel.Offset
		b, _ := e.doc.Block(i)
		if offset < b.Len() {
			b.Content = deleteRune(b.Content, offset)
			e.doc.set(i, b)
			break
		}
		next, ok := e.doc.Block(i + 1)
		if !ok {
			break
		}
		if !next.Type.IsText() {
			e.selectWrapper(i + 1)
			break
		}
		b.Content += next.Content
		e.doc.set(i, b)
		e.doc.Remove(i+1, i+1)
		e.placeCaret(i, offset)
	}
	e.typing = true
}

func (e *Editor) moveVertical(dir int) {
	e.menuOpen = false
	if e.titleFocused {
		if dir > 0 {
			e.land(0, false)
		}
		return
	}

	switch e.sel.Kind {
	case SelectionCaret:
		i, offset := e.sel.Anchor, e.sel.Offset
		j := i + dir
		if j < 0 {
			e.clearSelection()
			e.titleFocused = true
			return
		}
		next, ok := e.doc.Block(j)
		if !ok {
			return
		}
		if next.Type.IsText() {
			e.placeCaret(j, offset)
		} else {
			e.selectWrapper(j)
		}
	case SelectionBlock:
		e.land(e.sel.Anchor+dir, dir < 0)
	case SelectionRange:
		e.land(e.sel.Focus, true)
	}
}

func (e *Editor) moveHorizontal(dir int) {
	e.menuOpen = false
	switch e.sel.Kind {
	case SelectionCaret:
		i, offset := e.sel.Anchor, e.sel.Offset
		b, _ := e.doc.Block(i)
		if target := offset + dir; target >= 0 && target <= b.Len() {
			e.placeCaret(i, target)
			return
		}
		e.land(i+dir, dir < 0)
	case SelectionBlock:
		e.land(e.sel.Anchor+dir, dir < 0)
	case SelectionRange:
		e.land(e.sel.Focus, dir > 0)
	}
}

// extend grows or shrinks a block range by one block in direction dir.
func (e *Editor) extend(dir int) {
	e.menuOpen = false
	e.typing = false
	switch e.sel.Kind {
	case SelectionCaret, SelectionBlock:
		j := e.sel.Anchor + dir
		if j < 0 || j >= e.doc.Len() {
			return
		}
		e.sel = Selection{Kind: SelectionRange, Anchor: e.sel.Anchor, Focus: j}
	case SelectionRange:
		j := e.sel.Focus + dir
		if j < 0 || j >= e.doc.Len() {
			return
		}
		if j == e.sel.Anchor {
			e.selectWrapper(j)
			return
		}
		e.sel.Focus = j
	}
}

func (e *Editor) shortcut(k Key) func() error {
	switch {
	case k.Matches(keycodes.Access, "z", e.apple):
		return e.RemoveSelected
	case k.Matches(keycodes.PrimaryShift, "d", e.apple):
		return e.DuplicateSelected
	case k.Matches(keycodes.PrimaryAlt, "t", e.apple):
		return e.InsertDefaultBefore
	case k.Matches(keycodes.PrimaryAlt, "y", e.apple):
		return e.InsertDefaultAfter
	}
	return nil
}
