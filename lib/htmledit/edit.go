package htmledit

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrOverlappingEdits = errors.New("htmledit: overlapping edits")
	ErrNoContent        = errors.New("htmledit: node has no content to replace")
)

type splice struct {
	start, end int
	text       string
	seq        int
}

// Batch collects edits against one version of a document, they are applied together
// by Commit. Positions always refer to the source the batch was created from, so edits
// never have to account for the shifts caused by each other.
type Batch struct {
	doc     *Document
	gen     uint64
	splices []splice
	err     error
}

func (d *Document) Batch() *Batch {
	return &Batch{doc: d, gen: d.gen}
}

// Edit runs fn against a new batch and commits it.
func (d *Document) Edit(fn func(b *Batch)) error {
	b := d.Batch()
	fn(b)
	return b.Commit()
}

func (b *Batch) usable(n *Node) bool {
	if b.err != nil {
		return false
	}
	if n == nil || n.doc != b.doc || n.gen != b.gen {
		b.err = ErrStaleNode
		return false
	}
	return true
}

func (b *Batch) replace(start, end int, text string) {
	b.splices = append(b.splices, splice{
		start: start,
		end:   end,
		text:  text,
		seq:   len(b.splices),
	})
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\u00a0", "&nbsp;")

// SetText replaces the contents of an element with text, escaped the way a browser
// serializes text content.
func (b *Batch) SetText(n *Node, text string) {
	b.SetInnerHTML(n, textEscaper.Replace(text))
}

// SetInnerHTML replaces the contents of an element with raw markup.
func (b *Batch) SetInnerHTML(n *Node, markup string) {
	if !b.usable(n) {
		return
	}
	if n.Type != ElementNode || voidElements[n.Tag] || strings.HasSuffix(n.doc.src[n.Start:n.OpenEnd], "/>") {
		b.err = fmt.Errorf("%w: <%s>", ErrNoContent, n.Tag)
		return
	}
	b.replace(n.OpenEnd, n.CloseStart, markup)
}

var (
	doubleQuoteEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;")
	singleQuoteEscaper = strings.NewReplacer("&", "&amp;", "'", "&#39;")
)

// SetAttr sets an attribute value keeping the quoting style of an existing attribute.
// New attributes are added after the last existing one with double quotes.
func (b *Batch) SetAttr(n *Node, key, val string) {
	if !b.usable(n) {
		return
	}
	if n.Type != ElementNode {
		b.err = fmt.Errorf("%w: attribute on non element", ErrNoContent)
		return
	}

	key = strings.ToLower(key)
	for _, a := range n.Attrs {
		if a.Key != key {
			continue
		}
		switch {
		case a.valStart < 0:
			b.replace(a.end, a.end, `="`+doubleQuoteEscaper.Replace(val)+`"`)
		case a.quote == '\'':
			b.replace(a.valStart, a.valEnd, singleQuoteEscaper.Replace(val))
		case a.quote == '"':
			b.replace(a.valStart, a.valEnd, doubleQuoteEscaper.Replace(val))
		default:
			b.replace(a.valStart, a.valEnd, `"`+doubleQuoteEscaper.Replace(val)+`"`)
		}
		return
	}

	pos := n.Start + 1 + len(n.Tag)
	if len(n.Attrs) > 0 {
		pos = n.Attrs[len(n.Attrs)-1].end
	}
	b.replace(pos, pos, " "+key+`="`+doubleQuoteEscaper.Replace(val)+`"`)
}

// Remove deletes the node and everything inside it.
func (b *Batch) Remove(n *Node) {
	if !b.usable(n) {
		return
	}
	b.replace(n.Start, n.End, "")
}

// RemoveWithIndent deletes the node together with the whitespace-only text node right
// before it, so removing an entry of an indented list leaves no empty line behind.
func (b *Batch) RemoveWithIndent(n *Node) {
	if !b.usable(n) {
		return
	}
	start := n.Start
	if prev := n.PrevSibling(); prev != nil && prev.IsWhitespace() {
		start = prev.Start
	}
	b.replace(start, n.End, "")
}

func (b *Batch) InsertBefore(n *Node, markup string) {
	if !b.usable(n) {
		return
	}
	b.replace(n.Start, n.Start, markup)
}

func (b *Batch) InsertAfter(n *Node, markup string) {
	if !b.usable(n) {
		return
	}
	b.replace(n.End, n.End, markup)
}

// Prepend inserts markup as the first content of an element.
func (b *Batch) Prepend(n *Node, markup string) {
	if !b.usable(n) {
		return
	}
	b.replace(n.OpenEnd, n.OpenEnd, markup)
}

// Append inserts markup as the last content of an element.
func (b *Batch) Append(n *Node, markup string) {
	if !b.usable(n) {
		return
	}
	b.replace(n.CloseStart, n.CloseStart, markup)
}

// Err returns the first error recorded while queueing edits.
func (b *Batch) Err() error {
	return b.err
}

// Commit applies the queued edits to the document. Insertions at the same position
// land in the order they were queued. On error the document is left unchanged.
func (b *Batch) Commit() error {
	if b.err != nil {
		return b.err
	}
	if b.gen != b.doc.gen {
		return ErrStaleNode
	}
	if len(b.splices) == 0 {
		return nil
	}

	splices := slices.Clone(b.splices)
	slices.SortStableFunc(splices, func(x, y splice) int {
		if x.start != y.start {
			return x.start - y.start
		}
		// zero width insertions go before a replacement starting at the same byte
		xw, yw := x.end-x.start, y.end-y.start
		if (xw == 0) != (yw == 0) {
			if xw == 0 {
				return -1
			}
			return 1
		}
		return x.seq - y.seq
	})

	for i := 1; i < len(splices); i++ {
		prev, cur := splices[i-1], splices[i]
		if prev.end > cur.start {
			return fmt.Errorf("%w: [%d,%d) and [%d,%d)", ErrOverlappingEdits, prev.start, prev.end, cur.start, cur.end)
		}
	}

	src := b.doc.src
	var sb strings.Builder
	sb.Grow(len(src))
	cursor := 0
	for _, s := range splices {
		sb.WriteString(src[cursor:s.start])
		sb.WriteString(s.text)
		cursor = s.end
	}
	sb.WriteString(src[cursor:])

	return b.doc.load(sb.String())
}
