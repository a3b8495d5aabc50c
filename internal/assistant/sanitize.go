package assistant

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SanitizeFunc rewrites an HTML fragment into markup that is safe to render.
type SanitizeFunc func(fragment string) (string, error)

// Sanitize parses fragment as the body of a <div> and forces every anchor
// to open in a new browsing context without an opener or referrer.
// Unterminated elements are closed by the parser.
func Sanitize(fragment string) (string, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return "", fmt.Errorf("assistant: parse fragment: %w", err)
	}

	var sb strings.Builder
	for _, n := range nodes {
		hardenLinks(n)
		if err := html.Render(&sb, n); err != nil {
			return "", fmt.Errorf("assistant: render fragment: %w", err)
		}
	}
	return sb.String(), nil
}

func hardenLinks(n *html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		setAttr(n, "target", "_blank")
		setAttr(n, "rel", "noopener noreferrer")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		hardenLinks(c)
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
