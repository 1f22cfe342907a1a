// file: internal/scrape/document.go
// version: 1.0.0
// guid: 482bd42d-4aa3-44ee-84a9-08789ae9b798

package scrape

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Node is a queryable element of a parsed document.
type Node struct {
	n *html.Node
}

// Document is a parsed HTML page.
type Document struct {
	Node
}

// Parse reads and parses an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{Node{n: root}}, nil
}

// ParseString parses an HTML string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// FindFirst tries each selector in order and returns the first non-empty
// value. Malformed selectors are skipped.
func (nd Node) FindFirst(selectors []string) (string, bool) {
	for _, raw := range selectors {
		sel, err := Compile(raw)
		if err != nil {
			continue
		}
		for _, m := range nd.all(sel, 0) {
			if v := m.value(sel.attr); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// FindAllValues returns every non-empty value matched by selector.
func (nd Node) FindAllValues(selector string) []string {
	sel, err := Compile(selector)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range nd.all(sel, 0) {
		if v := m.value(sel.attr); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FindAll returns the nodes matched by the first selector that matches
// anything, in document order.
func (nd Node) FindAll(selectors []string, limit int) []Node {
	for _, raw := range selectors {
		sel, err := Compile(raw)
		if err != nil {
			continue
		}
		if found := nd.all(sel, limit); len(found) > 0 {
			return found
		}
	}
	return nil
}

func (nd Node) all(sel Selector, limit int) []Node {
	if nd.n == nil {
		return nil
	}
	var out []Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if sel.matches(c, nd.n) {
				out = append(out, Node{n: c})
				if limit > 0 && len(out) >= limit {
					return false
				}
			}
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(nd.n)
	return out
}

func (nd Node) value(attr string) string {
	if attr != "" {
		return strings.TrimSpace(attrValue(nd.n, attr))
	}
	return nd.Text()
}

// Text returns the whitespace-collapsed text content of the node.
func (nd Node) Text() string {
	if nd.n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(nd.n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// RawText returns the unmodified text of the node's children, as needed for
// embedded JSON in script elements.
func (nd Node) RawText() string {
	if nd.n == nil {
		return ""
	}
	var b strings.Builder
	for c := nd.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// Attr returns an attribute of the node.
func (nd Node) Attr(name string) string {
	if nd.n == nil {
		return ""
	}
	return attrValue(nd.n, name)
}

// Scripts returns the raw bodies of script elements matched by selector.
func (nd Node) Scripts(selector string) []string {
	sel, err := Compile(selector)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range nd.all(sel, 0) {
		if body := strings.TrimSpace(m.RawText()); body != "" {
			out = append(out, body)
		}
	}
	return out
}
