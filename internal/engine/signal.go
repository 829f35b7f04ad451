package engine

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// placeholderMarkers are substrings seen in app-shell / skeleton-UI
// responses: an empty mount point, a noscript nudge, or a generic
// loading spinner container. Detecting any of them is a strong signal
// that the fast-path HTML carries no real content yet.
var placeholderMarkers = []string{
	`id="root"`,
	`id="app"`,
	`id="__next"`,
	"skeleton",
	"app-shell",
	"please enable javascript",
	"loading...",
}

// visibleTextDensity computes visible-text-bytes / HTML-bytes: the
// ratio of text a reader would actually see
// (excluding script/style/noscript contents and markup) to the total
// response size.
func visibleTextDensity(htmlBytes []byte) float64 {
	if len(htmlBytes) == 0 {
		return 0
	}
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return 0
	}
	var visible int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			visible += len(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return float64(visible) / float64(len(htmlBytes))
}

// detectPlaceholder looks for skeleton-UI / app-shell / noscript hints
// that the body markup is a client-rendering mount point rather than
// real content.
func detectPlaceholder(htmlBytes []byte) bool {
	lower := strings.ToLower(string(htmlBytes))
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
