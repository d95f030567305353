package blocks

import (
	"strings"
)

// Document is an ordered sequence of blocks.
type Document struct {
	blocks []Block
}

// NewDocument returns a document holding the given blocks in order.
func NewDocument(blocks ...Block) *Document {
	d := &Document{}
	d.blocks = append(d.blocks, blocks...)
	return d
}

// Len returns the number of blocks.
func (d *Document) Len() int {
	return len(d.blocks)
}

// Block returns the block at index i.
func (d *Document) Block(i int) (Block, bool) {
	if i < 0 || i >= len(d.blocks) {
		return Block{}, false
	}
	return d.blocks[i], true
}

// Blocks returns a copy of the block list.
func (d *Document) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// Insert places blocks at index i, shifting later blocks down.
func (d *Document) Insert(i int, blocks ...Block) {
	i = clamp(i, 0, len(d.blocks))
	tail := append([]Block(nil), d.blocks[i:]...)
	d.blocks = append(append(d.blocks[:i], blocks...), tail...)
}

// Remove deletes blocks from..to inclusive and returns them.
func (d *Document) Remove(from, to int) []Block {
	if from > to {
		from, to = to, from
	}
	from = clamp(from, 0, len(d.blocks))
	to = clamp(to+1, from, len(d.blocks))
	removed := append([]Block(nil), d.blocks[from:to]...)
	d.blocks = append(d.blocks[:from], d.blocks[to:]...)
	return removed
}

func (d *Document) set(i int, b Block) {
	d.blocks[i] = b
}

// IsEmpty reports whether the document carries no content: no blocks, or a
// single unmodified default block.
func (d *Document) IsEmpty() bool {
	switch len(d.blocks) {
	case 0:
		return true
	case 1:
		return d.blocks[0].IsUnmodifiedDefault()
	default:
		return false
	}
}

// Serialize renders the document in comment-delimited block markup.
// An empty document serializes to the empty string.
func (d *Document) Serialize() string {
	if d.IsEmpty() {
		return ""
	}
	parts := make([]string, len(d.blocks))
	for i, b := range d.blocks {
		parts[i] = SerializeBlock(b)
	}
	return strings.Join(parts, "\n\n")
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// SerializeBlock renders a single block with its delimiting comments.
func SerializeBlock(b Block) string {
	name := b.Type.Name()
	var inner string
	switch b.Type {
	case Paragraph:
		inner = "<p>" + textEscaper.Replace(b.Content) + "</p>"
	case Image:
		inner = `<figure class="wp-block-image"><img alt=""/></figure>`
	case Separator:
		inner = `<hr class="wp-block-separator"/>`
	default:
		inner = textEscaper.Replace(b.Content)
	}
	return "<!-- wp:" + name + " -->\n" + inner + "\n<!-- /wp:" + name + " -->"
}
