// Package htmledit parses HTML into a tree whose nodes remember the byte ranges they
// were read from, and edits documents by splicing those ranges.
//
// Unlike a parse/render round trip through golang.org/x/net/html, the output of an edit
// is byte-for-byte identical to the input everywhere outside the ranges that were edited:
// attribute order, quoting, entity spelling and whitespace are never normalized.
//
// Every committed edit re-parses the document, nodes obtained before the commit are
// stale afterwards and must be looked up again.
package htmledit

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var ErrStaleNode = errors.New("htmledit: node belongs to an older version of the document")

type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
	DoctypeNode
)

type Attr struct {
	Key string
	Val string

	// byte offsets into the source, start/end cover the whole attribute,
	// valStart/valEnd cover the value without quotes and are -1 for bare attributes.
	start, end       int
	valStart, valEnd int
	quote            byte
}

type Node struct {
	Type NodeType
	// Tag is the lowercased tag name of element nodes.
	Tag   string
	Attrs []Attr
	// Data is the unescaped contents of text and comment nodes.
	Data string

	Parent   *Node
	Children []*Node

	// Start and End delimit the whole node. OpenEnd is the first byte after the start
	// tag and CloseStart the first byte of the end tag, CloseStart == End when the element
	// has no end tag of its own.
	Start, OpenEnd, CloseStart, End int

	doc *Document
	gen uint64
}

type Document struct {
	src  string
	root *Node
	gen  uint64
}

// Parse builds a Document out of an HTML document or fragment.
func Parse(src string) (*Document, error) {
	d := &Document{}
	err := d.load(src)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Root returns the synthetic node spanning the whole source.
func (d *Document) Root() *Node {
	return d.root
}

// Source returns the current HTML.
func (d *Document) Source() string {
	return d.src
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// block level start tags that implicitly close an open <p>
var closesParagraph = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"details": true, "div": true, "dl": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hgroup": true, "hr": true, "main": true, "menu": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "ul": true,
}

func (d *Document) load(src string) error {
	gen := d.gen + 1

	root := &Node{
		Type:       DocumentNode,
		End:        len(src),
		CloseStart: len(src),
		doc:        d,
		gen:        gen,
	}
	stack := []*Node{root}

	z := html.NewTokenizer(strings.NewReader(src))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return fmt.Errorf("htmledit: tokenize: %w", z.Err())
		}

		start := offset
		end := offset + len(z.Raw())
		offset = end
		top := stack[len(stack)-1]

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)

			if top.Tag == "p" && closesParagraph[tag] ||
				top.Tag == "li" && tag == "li" {
				top.CloseStart, top.End = start, start
				stack = stack[:len(stack)-1]
				top = stack[len(stack)-1]
			}

			n := &Node{
				Type:    ElementNode,
				Tag:     tag,
				Attrs:   scanAttrs(src, start, end),
				Parent:  top,
				Start:   start,
				OpenEnd: end,
				doc:     d,
				gen:     gen,
			}
			top.Children = append(top.Children, n)
			if tt == html.SelfClosingTagToken || voidElements[tag] {
				n.CloseStart, n.End = end, end
				continue
			}
			stack = append(stack, n)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)

			idx := -1
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Tag == tag {
					idx = i
					break
				}
			}
			// stray end tags stay in the source, they just don't belong to any node
			if idx < 0 {
				continue
			}
			for i := len(stack) - 1; i > idx; i-- {
				stack[i].CloseStart, stack[i].End = start, start
			}
			stack[idx].CloseStart, stack[idx].End = start, end
			stack = stack[:idx]

		case html.TextToken, html.CommentToken, html.DoctypeToken:
			n := &Node{
				Type:       TextNode,
				Data:       string(z.Text()),
				Parent:     top,
				Start:      start,
				OpenEnd:    end,
				CloseStart: end,
				End:        end,
				doc:        d,
				gen:        gen,
			}
			switch tt {
			case html.CommentToken:
				n.Type = CommentNode
			case html.DoctypeToken:
				n.Type = DoctypeNode
			}
			top.Children = append(top.Children, n)
		}
	}

	if offset != len(src) {
		return fmt.Errorf("htmledit: tokenizer consumed %d of %d bytes", offset, len(src))
	}
	for i := len(stack) - 1; i > 0; i-- {
		stack[i].CloseStart, stack[i].End = len(src), len(src)
	}

	d.src = src
	d.root = root
	d.gen = gen
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// scanAttrs reads the attributes of the start tag at src[start:end] keeping their offsets.
func scanAttrs(src string, start, end int) []Attr {
	raw := src[start:end]
	var attrs []Attr

	i := 1
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' && raw[i] != '/' {
		i++
	}

	for i < len(raw) {
		for i < len(raw) && (isSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			break
		}

		nameStart := i
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		// a lone '=' before any name is treated as part of the name by the tokenizer
		if i == nameStart {
			i++
		}
		attr := Attr{
			Key:      strings.ToLower(raw[nameStart:i]),
			start:    start + nameStart,
			end:      start + i,
			valStart: -1,
			valEnd:   -1,
		}

		j := i
		for j < len(raw) && isSpace(raw[j]) {
			j++
		}
		if j < len(raw) && raw[j] == '=' {
			j++
			for j < len(raw) && isSpace(raw[j]) {
				j++
			}
			if j < len(raw) && (raw[j] == '"' || raw[j] == '\'') {
				q := raw[j]
				closing := strings.IndexByte(raw[j+1:], q)
				if closing < 0 {
					closing = len(raw) - j - 1
				}
				attr.quote = q
				attr.valStart = start + j + 1
				attr.valEnd = start + j + 1 + closing
				i = j + 1 + closing + 1
			} else {
				valStart := j
				for j < len(raw) && !isSpace(raw[j]) && raw[j] != '>' {
					j++
				}
				attr.valStart = start + valStart
				attr.valEnd = start + j
				i = j
			}
			if i > len(raw) {
				i = len(raw)
			}
			attr.end = start + i
			attr.Val = html.UnescapeString(src[attr.valStart:attr.valEnd])
		}

		attrs = append(attrs, attr)
	}

	return attrs
}
