// file: internal/scrape/selector.go
// version: 1.0.0
// guid: 2f7f457a-5bfa-4b99-9325-bbda291295a5

package scrape

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Selector is a compiled subset of CSS: descendant chains of compound
// selectors built from tag, #id, .class, [attr] and [attr=value], with an
// optional trailing @attr that selects an attribute instead of text.
type Selector struct {
	raw   string
	parts []compound
	attr  string
}

type attrMatch struct {
	name  string
	value string
	exact bool
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

func (s Selector) String() string { return s.raw }

// Compile parses a selector string.
func Compile(raw string) (Selector, error) {
	sel := Selector{raw: raw}
	body := strings.TrimSpace(raw)
	if i := strings.LastIndex(body, "@"); i >= 0 && !strings.Contains(body[i:], "]") {
		sel.attr = strings.TrimSpace(body[i+1:])
		body = strings.TrimSpace(body[:i])
		if sel.attr == "" {
			return sel, fmt.Errorf("selector %q: empty attribute after @", raw)
		}
	}
	tokens, err := splitOutsideBrackets(body)
	if err != nil {
		return sel, fmt.Errorf("selector %q: %w", raw, err)
	}
	if len(tokens) == 0 {
		return sel, fmt.Errorf("selector %q: empty", raw)
	}
	for _, tok := range tokens {
		c, err := parseCompound(tok)
		if err != nil {
			return sel, fmt.Errorf("selector %q: %w", raw, err)
		}
		sel.parts = append(sel.parts, c)
	}
	return sel, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(raw string) Selector {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func splitOutsideBrackets(s string) ([]string, error) {
	var out []string
	var cur strings.Builder
	depth := 0
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == '[':
			depth++
			cur.WriteRune(r)
		case r == ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ]")
			}
			cur.WriteRune(r)
		case (r == ' ' || r == '\t' || r == '\n') && depth == 0:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if depth != 0 || quote != 0 {
		return nil, fmt.Errorf("unterminated attribute or quote")
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out, nil
}

func parseCompound(tok string) (compound, error) {
	var c compound
	i := 0
	readIdent := func() string {
		start := i
		for i < len(tok) && tok[i] != '.' && tok[i] != '#' && tok[i] != '[' {
			i++
		}
		return tok[start:i]
	}
	c.tag = strings.ToLower(readIdent())
	if c.tag == "*" {
		c.tag = ""
	}
	for i < len(tok) {
		switch tok[i] {
		case '#':
			i++
			c.id = readIdent()
		case '.':
			i++
			c.classes = append(c.classes, readIdent())
		case '[':
			end := strings.IndexByte(tok[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute in %q", tok)
			}
			inner := tok[i+1 : i+end]
			i += end + 1
			name, value, exact := strings.Cut(inner, "=")
			value = strings.Trim(strings.TrimSpace(value), `"'`)
			c.attrs = append(c.attrs, attrMatch{name: strings.ToLower(strings.TrimSpace(name)), value: value, exact: exact})
		default:
			return c, fmt.Errorf("unexpected %q in %q", tok[i], tok)
		}
	}
	return c, nil
}

func (c compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" && attrValue(n, "id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(attrValue(n, "class"))
		for _, want := range c.classes {
			found := false
			for _, h := range have {
				if h == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		v, ok := lookupAttr(n, a.name)
		if !ok || (a.exact && v != a.value) {
			return false
		}
	}
	return true
}

func (s Selector) matches(n *html.Node, scope *html.Node) bool {
	return matchFrom(n, s.parts, len(s.parts)-1, scope)
}

func matchFrom(n *html.Node, parts []compound, i int, scope *html.Node) bool {
	if !parts[i].matches(n) {
		return false
	}
	if i == 0 {
		return true
	}
	for a := n.Parent; a != nil && a != scope; a = a.Parent {
		if matchFrom(a, parts, i-1, scope) {
			return true
		}
	}
	return false
}

func lookupAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func attrValue(n *html.Node, name string) string {
	v, _ := lookupAttr(n, name)
	return v
}
