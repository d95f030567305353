// Package blocks implements the block editor content model: an ordered
// document of blocks, a single active selection, and the editing operations
// (typing, keyboard handling, settings-menu actions) that mutate them.
//
// The model is the reference editor behind the local editor server and the
// in-process driver. It is not safe for concurrent use; callers serialize access.
package blocks

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Type identifies a block type by its registered name.
type Type string

const (
	Paragraph Type = "core/paragraph"
	Image     Type = "core/image"
	Separator Type = "core/separator"
)

// DefaultType is the type of the sentinel block inserted into an empty document.
const DefaultType = Paragraph

// IsText reports whether blocks of this type hold editable text and can take a caret.
func (t Type) IsText() bool {
	return t == Paragraph
}

// Name returns the type name without its namespace ("paragraph").
func (t Type) Name() string {
	if i := strings.IndexByte(string(t), '/'); i >= 0 {
		return string(t)[i+1:]
	}
	return string(t)
}

// Title is the human-readable block name shown in the UI.
func (t Type) Title() string {
	switch t {
	case Paragraph:
		return "Paragraph"
	case Image:
		return "Image"
	case Separator:
		return "Separator"
	default:
		return t.Name()
	}
}

// Block is an atomic content unit of a document.
type Block struct {
	ClientID string
	Type     Type
	Content  string
}

// IsUnmodifiedDefault reports whether the block is an untouched default block.
func (b Block) IsUnmodifiedDefault() bool {
	return b.Type == DefaultType && b.Content == ""
}

// Len returns the content length in runes.
func (b Block) Len() int {
	return utf8.RuneCountInString(b.Content)
}

// SelectionKind enumerates the selection modes.
type SelectionKind int

const (
	SelectionNone  SelectionKind = iota
	SelectionCaret               // caret inside one block's text
	SelectionBlock               // whole block selected as a unit (wrapper selection)
	SelectionRange               // contiguous run of blocks
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionCaret:
		return "caret"
	case SelectionBlock:
		return "block"
	case SelectionRange:
		return "range"
	default:
		return "none"
	}
}

// Selection is the single active selection of an editor.
// Anchor is the selected block for caret and block selections; a range spans
// Anchor..Focus in either order. Offset is the caret position in runes.
type Selection struct {
	Kind   SelectionKind
	Anchor int
	Focus  int
	Offset int
}

// Bounds returns the ordered block indices covered by the selection.
// ok is false when nothing is selected.
func (s Selection) Bounds() (from, to int, ok bool) {
	switch s.Kind {
	case SelectionCaret, SelectionBlock:
		return s.Anchor, s.Anchor, true
	case SelectionRange:
		if s.Anchor <= s.Focus {
			return s.Anchor, s.Focus, true
		}
		return s.Focus, s.Anchor, true
	default:
		return 0, 0, false
	}
}

// Contains reports whether block i is covered by the selection.
func (s Selection) Contains(i int) bool {
	from, to, ok := s.Bounds()
	return ok && i >= from && i <= to
}

func (s Selection) String() string {
	switch s.Kind {
	case SelectionCaret:
		return fmt.Sprintf("caret(%d@%d)", s.Anchor, s.Offset)
	case SelectionBlock:
		return fmt.Sprintf("block(%d)", s.Anchor)
	case SelectionRange:
		from, to, _ := s.Bounds()
		return fmt.Sprintf("range(%d..%d)", from, to)
	default:
		return "none"
	}
}

// InserterItem is an entry of the slash inserter.
type InserterItem struct {
	Name string
	Type Type
}

// Inserter lists the block types reachable through "/name" + Enter, in match order.
var Inserter = []InserterItem{
	{Name: "paragraph", Type: Paragraph},
	{Name: "image", Type: Image},
	{Name: "separator", Type: Separator},
}

func matchInserter(content string) (InserterItem, bool) {
	if !strings.HasPrefix(content, "/") {
		return InserterItem{}, false
	}
	query := strings.ToLower(strings.TrimSpace(content[1:]))
	if query == "" {
		return InserterItem{}, false
	}
	for _, item := range Inserter {
		if strings.HasPrefix(item.Name, query) {
			return item, true
		}
	}
	return InserterItem{}, false
}

func insertRunes(s string, offset int, text string) string {
	r := []rune(s)
	offset = clamp(offset, 0, len(r))
	return string(r[:offset]) + text + string(r[offset:])
}

func deleteRune(s string, offset int) string {
	r := []rune(s)
	if offset < 0 || offset >= len(r) {
		return s
	}
	return string(r[:offset]) + string(r[offset+1:])
}

func splitRunes(s string, offset int) (string, string) {
	r := []rune(s)
	offset = clamp(offset, 0, len(r))
	return string(r[:offset]), string(r[offset:])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
