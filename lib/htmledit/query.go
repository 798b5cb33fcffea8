package htmledit

import (
	"strings"
)

// Matcher selects nodes during a search.
type Matcher func(n *Node) bool

func Tag(tag string) Matcher {
	return func(n *Node) bool {
		return n.Type == ElementNode && n.Tag == tag
	}
}

func HasAttr(key string) Matcher {
	return func(n *Node) bool {
		_, ok := n.Attr(key)
		return ok
	}
}

func AttrEquals(key, val string) Matcher {
	return func(n *Node) bool {
		v, ok := n.Attr(key)
		return ok && v == val
	}
}

func AttrContains(key, substr string) Matcher {
	return func(n *Node) bool {
		v, ok := n.Attr(key)
		return ok && strings.Contains(v, substr)
	}
}

func And(matchers ...Matcher) Matcher {
	return func(n *Node) bool {
		for _, m := range matchers {
			if !m(n) {
				return false
			}
		}
		return true
	}
}

func Not(m Matcher) Matcher {
	return func(n *Node) bool {
		return !m(n)
	}
}

// Find returns every descendant of n (excluding n) that matches, in document order.
func (n *Node) Find(match Matcher) []*Node {
	var out []*Node
	n.walk(func(c *Node) bool {
		if match(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// FindFirst returns the first descendant of n that matches in document order or nil.
func (n *Node) FindFirst(match Matcher) *Node {
	var found *Node
	n.walk(func(c *Node) bool {
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

func (n *Node) walk(visit func(*Node) bool) bool {
	for _, c := range n.Children {
		if !visit(c) {
			return false
		}
		if !c.walk(visit) {
			return false
		}
	}
	return true
}

// Closest returns n or its nearest ancestor that matches.
func (n *Node) Closest(match Matcher) *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if match(cur) {
			return cur
		}
	}
	return nil
}

// HasAncestor reports whether a strict ancestor of n matches.
func (n *Node) HasAncestor(match Matcher) bool {
	if n.Parent == nil {
		return false
	}
	return n.Parent.Closest(match) != nil
}

func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (n *Node) AttrOr(key, fallback string) string {
	v, ok := n.Attr(key)
	if !ok {
		return fallback
	}
	return v
}

// Text concatenates the text of every descendant text node.
func (n *Node) Text() string {
	if n.Type == TextNode {
		return n.Data
	}
	var sb strings.Builder
	n.walk(func(c *Node) bool {
		if c.Type == TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// ElementChildren returns the direct children of n that are elements.
func (n *Node) ElementChildren() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Type == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func (n *Node) index() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// PrevSibling returns the node right before n in its parent, text nodes included.
func (n *Node) PrevSibling() *Node {
	i := n.index()
	if i <= 0 {
		return nil
	}
	return n.Parent.Children[i-1]
}

// NextElementSiblings returns the element siblings after n.
func (n *Node) NextElementSiblings() []*Node {
	i := n.index()
	if i < 0 {
		return nil
	}
	var out []*Node
	for _, c := range n.Parent.Children[i+1:] {
		if c.Type == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// IsWhitespace reports whether n is a text node made only of whitespace.
func (n *Node) IsWhitespace() bool {
	return n.Type == TextNode && strings.TrimSpace(n.Data) == ""
}

// OuterHTML returns the exact source of n.
func (n *Node) OuterHTML() string {
	return n.doc.src[n.Start:n.End]
}

// InnerHTML returns the exact source between the start and end tag of n.
func (n *Node) InnerHTML() string {
	return n.doc.src[n.OpenEnd:n.CloseStart]
}
