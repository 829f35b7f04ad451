// Package extractortext derives the plain-text fields the pipeline's
// ExtractedDoc needs (title, visible body text) directly from a parsed
// DOM, the same way internal/extractor/dom.go walks *html.Node to score
// content rather than pulling in a second HTML parsing library.
package extractortext

import (
	"strings"

	"golang.org/x/net/html"
)

// Title returns the document's <title> text, or the first <h1> found
// under root if no <title> element exists.
func Title(root *html.Node) string {
	if root == nil {
		return ""
	}
	if t := findFirst(root, "title"); t != nil {
		if text := strings.TrimSpace(collectText(t)); text != "" {
			return text
		}
	}
	if h1 := findFirst(root, "h1"); h1 != nil {
		return strings.TrimSpace(collectText(h1))
	}
	return ""
}

// VisibleText concatenates every text node under root, collapsing
// whitespace, skipping <script> and <style> content.
func VisibleText(root *html.Node) string {
	if root == nil {
		return ""
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String()
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
