package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/antchfx/htmlquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("members-manager/lib/htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText drops non printable characters and trims and collapses whitespace.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

// Parse parses an HTML document or fragment.
func Parse(src string) (*html.Node, error) {
	return htmlquery.Parse(strings.NewReader(src))
}

// QueryTexts returns the cleaned text of every node matching an XPath expression.
func QueryTexts(ctx context.Context, root *html.Node, expr string) ([]string, error) {
	_, span := tracer.Start(ctx, "QueryTexts")
	defer span.End()

	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid xpath expression")
		return nil, err
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CleanText(GetText(n)))
	}
	span.SetAttributes(attribute.Int("matches", len(out)))
	return out, nil
}

// QueryAttrs returns the value of attr on every node matching an XPath expression,
// nodes without the attribute are skipped.
func QueryAttrs(ctx context.Context, root *html.Node, expr, attr string) ([]string, error) {
	_, span := tracer.Start(ctx, "QueryAttrs")
	defer span.End()

	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid xpath expression")
		return nil, err
	}
	out := []string{}
	for _, n := range nodes {
		if !hasAttr(n, attr) {
			continue
		}
		val := htmlquery.SelectAttr(n, attr)
		out = append(out, val)
		span.AddEvent("match", trace.WithAttributes(
			attribute.String(attr, val),
		))
	}
	return out, nil
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
