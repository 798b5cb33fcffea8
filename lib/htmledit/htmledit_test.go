package htmledit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<!-- members -->
<section aria-label='Board Members 2024' class=wide>
  <h2 id="board-2024-heading" >Board 2024</h2>
  <p style="position:absolute; clip: rect(0 0 0 0)">hidden &amp; description</p>
  <div role="list">
    <article role='listitem' tabindex='0'><h3>Mario Rossi</h3><img src="./a/mario.jpg"/><p>President</p></article>
    <article role='listitem' tabindex='0'><h3>Anna Bianchi</h3><img src='./a/anna.jpg'><p>Treasurer</p></article>
  </div>
</section>
<p>trailing</span> text`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestRoundTrip(t *testing.T) {
	testCases := []string{
		page,
		"",
		"plain text",
		"<p>unterminated <b>bold",
		"<div><p>one<div>two</div></div>",
		"<ul><li>a<li>b</ul>",
		`<img src=x/><br><input disabled value = "a">`,
		"<script>if (a < b && c > d) {}</script><style>p > a {}</style>",
		"<textarea>&lt;p&gt;escaped&lt;/p&gt;</textarea>",
	}
	for _, src := range testCases {
		doc := mustParse(t, src)
		require.Equal(t, src, doc.Source())
		require.Equal(t, src, doc.Root().InnerHTML())
	}
}

func TestStructure(t *testing.T) {
	doc := mustParse(t, page)
	root := doc.Root()

	section := root.FindFirst(Tag("section"))
	require.NotNil(t, section)
	label, ok := section.Attr("aria-label")
	require.True(t, ok)
	require.Equal(t, "Board Members 2024", label)
	require.Equal(t, "wide", section.AttrOr("class", ""))

	h2 := section.FindFirst(Tag("h2"))
	require.Equal(t, "Board 2024", h2.Text())
	require.Equal(t, "board-2024-heading", h2.AttrOr("id", ""))
	require.Equal(t, section, h2.Closest(Tag("section")))

	hidden := section.FindFirst(And(Tag("p"), AttrContains("style", "clip: rect")))
	require.NotNil(t, hidden)
	require.Equal(t, "hidden & description", hidden.Text())
	require.Equal(t, "hidden &amp; description", hidden.InnerHTML())

	list := section.FindFirst(AttrEquals("role", "list"))
	cards := list.Find(And(Tag("article"), AttrEquals("role", "listitem")))
	require.Len(t, cards, 2)
	require.Equal(t, "Mario Rossi", cards[0].FindFirst(Tag("h3")).Text())
	require.Equal(t, "./a/anna.jpg", cards[1].FindFirst(Tag("img")).AttrOr("src", ""))
	require.Len(t, cards[1].ElementChildren(), 3)
	require.True(t, cards[1].PrevSibling().IsWhitespace())
	require.True(t, cards[0].FindFirst(Tag("p")).HasAncestor(Tag("article")))
	require.False(t, hidden.HasAncestor(Tag("article")))

	require.Equal(t,
		`<article role='listitem' tabindex='0'><h3>Mario Rossi</h3><img src="./a/mario.jpg"/><p>President</p></article>`,
		cards[0].OuterHTML(),
	)
}

func TestImpliedEndTags(t *testing.T) {
	doc := mustParse(t, "<div><p>one<div>two</div><ul><li>a<li>b</ul></div>")
	div := doc.Root().FindFirst(Tag("div"))
	children := div.ElementChildren()
	require.Len(t, children, 3)
	require.Equal(t, "p", children[0].Tag)
	require.Equal(t, "<p>one", children[0].OuterHTML())
	require.Equal(t, "div", children[1].Tag)

	items := children[2].Find(Tag("li"))
	require.Len(t, items, 2)
	require.Equal(t, "<li>a", items[0].OuterHTML())
	require.Equal(t, "<li>b", items[1].OuterHTML())
}

func TestEditsOnlyTouchTargets(t *testing.T) {
	doc := mustParse(t, page)
	root := doc.Root()
	h2 := root.FindFirst(Tag("h2"))
	section := root.FindFirst(Tag("section"))
	article := root.FindFirst(Tag("article"))

	err := doc.Edit(func(b *Batch) {
		b.SetText(h2, "Board 2025")
		b.SetAttr(h2, "id", "board-2025-heading")
		b.SetAttr(section, "aria-label", "Board members 2025")
		b.SetAttr(section, "class", "a \"b\"")
		b.SetAttr(section, "aria-labelledby", "board-2025-heading")
		b.SetAttr(article, "role", "it's")
	})
	require.NoError(t, err)

	expect := `<!DOCTYPE html>
<!-- members -->
<section aria-label='Board members 2025' class="a &quot;b&quot;" aria-labelledby="board-2025-heading">
  <h2 id="board-2025-heading" >Board 2025</h2>
  <p style="position:absolute; clip: rect(0 0 0 0)">hidden &amp; description</p>
  <div role="list">
    <article role='it&#39;s' tabindex='0'><h3>Mario Rossi</h3><img src="./a/mario.jpg"/><p>President</p></article>
    <article role='listitem' tabindex='0'><h3>Anna Bianchi</h3><img src='./a/anna.jpg'><p>Treasurer</p></article>
  </div>
</section>
<p>trailing</span> text`
	require.Equal(t, expect, doc.Source())

	// the tree is rebuilt after the commit
	require.Equal(t, "it's", doc.Root().FindFirst(Tag("article")).AttrOr("role", ""))
}

func TestRemoveWithIndent(t *testing.T) {
	doc := mustParse(t, page)
	cards := doc.Root().Find(Tag("article"))

	err := doc.Edit(func(b *Batch) {
		b.RemoveWithIndent(cards[0])
	})
	require.NoError(t, err)

	cards = doc.Root().Find(Tag("article"))
	require.Len(t, cards, 1)
	require.Contains(t, doc.Source(), `<div role="list">
    <article role='listitem' tabindex='0'><h3>Anna Bianchi</h3>`)
}

func TestInsertionOrder(t *testing.T) {
	doc := mustParse(t, `<ul><li>a</li></ul>`)
	li := doc.Root().FindFirst(Tag("li"))
	ul := doc.Root().FindFirst(Tag("ul"))

	err := doc.Edit(func(b *Batch) {
		b.InsertAfter(li, "<li>b</li>")
		b.InsertAfter(li, "<li>c</li>")
		b.Append(ul, "<li>z</li>")
		b.Prepend(ul, "<li>0</li>")
		b.InsertBefore(li, "<li>1</li>")
	})
	require.NoError(t, err)
	require.Equal(t, `<ul><li>0</li><li>1</li><li>a</li><li>b</li><li>c</li><li>z</li></ul>`, doc.Source())
}

func TestInsertNextToReplacement(t *testing.T) {
	doc := mustParse(t, `<div><p>a</p></div>`)
	p := doc.Root().FindFirst(Tag("p"))

	err := doc.Edit(func(b *Batch) {
		b.Remove(p)
		b.InsertBefore(p, "<h3>x</h3>")
		b.InsertAfter(p, "<h3>y</h3>")
	})
	require.NoError(t, err)
	require.Equal(t, `<div><h3>x</h3><h3>y</h3></div>`, doc.Source())
}

func TestOverlappingEdits(t *testing.T) {
	doc := mustParse(t, page)
	section := doc.Root().FindFirst(Tag("section"))
	h2 := section.FindFirst(Tag("h2"))

	err := doc.Edit(func(b *Batch) {
		b.SetText(h2, "Board 2025")
		b.SetInnerHTML(section, "")
	})
	require.ErrorIs(t, err, ErrOverlappingEdits)
	require.Equal(t, page, doc.Source())
}

func TestStaleNode(t *testing.T) {
	doc := mustParse(t, page)
	h2 := doc.Root().FindFirst(Tag("h2"))

	require.NoError(t, doc.Edit(func(b *Batch) {
		b.SetText(h2, "Board 2025")
	}))

	err := doc.Edit(func(b *Batch) {
		b.SetText(h2, "Board 2026")
	})
	require.ErrorIs(t, err, ErrStaleNode)
	require.Contains(t, doc.Source(), ">Board 2025</h2>")
}

func TestNoContent(t *testing.T) {
	doc := mustParse(t, `<p><img src="a"><br/></p>`)
	img := doc.Root().FindFirst(Tag("img"))

	err := doc.Edit(func(b *Batch) {
		b.SetText(img, "x")
	})
	require.ErrorIs(t, err, ErrNoContent)
}

func TestSetTextEscaping(t *testing.T) {
	doc := mustParse(t, `<h3>old</h3>`)
	h3 := doc.Root().FindFirst(Tag("h3"))

	require.NoError(t, doc.Edit(func(b *Batch) {
		b.SetText(h3, `Responsabile corso d'italiano <&>`)
	}))
	require.Equal(t, `<h3>Responsabile corso d'italiano &lt;&amp;&gt;</h3>`, doc.Source())
	require.Equal(t, `Responsabile corso d'italiano <&>`, doc.Root().FindFirst(Tag("h3")).Text())
}

func TestBareAttribute(t *testing.T) {
	doc := mustParse(t, `<input disabled><input value=plain>`)
	inputs := doc.Root().Find(Tag("input"))

	require.NoError(t, doc.Edit(func(b *Batch) {
		b.SetAttr(inputs[0], "disabled", "disabled")
		b.SetAttr(inputs[1], "value", "two words")
	}))
	require.Equal(t, `<input disabled="disabled"><input value="two words">`, doc.Source())
}
