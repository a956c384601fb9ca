// Package artifact post-processes exported page markup before it is written
// into a step's exports/ directory.
package artifact

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Sanitized is a cleaned export with its extracted metadata.
type Sanitized struct {
	HTML  string
	Title string
}

// Sanitize strips executable and generator-watermark noise out of exported
// markup while keeping everything a re-render needs: script and noscript
// subtrees are dropped, as are the "made with" badge elements the generators
// inject. The document structure, styles and inline assets stay intact.
func Sanitize(rawHTML string) (*Sanitized, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	prune(doc)

	var builder strings.Builder
	if err := html.Render(&builder, doc); err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	return &Sanitized{
		HTML:  builder.String(),
		Title: extractTitle(doc),
	}, nil
}

// prune removes unwanted nodes in place.
func prune(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if shouldDrop(c) {
			n.RemoveChild(c)
			continue
		}
		prune(c)
	}
}

// shouldDrop reports whether a node and its subtree are removed.
func shouldDrop(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}
	switch strings.ToLower(n.Data) {
	case "script", "noscript":
		return true
	}
	return isBadge(n)
}

// isBadge detects the floating attribution badges generator platforms append
// to exports, by id or class.
func isBadge(n *html.Node) bool {
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" {
			continue
		}
		if strings.Contains(strings.ToLower(attr.Val), "badge") {
			return true
		}
	}
	return false
}

// extractTitle returns the first <title> text in the document.
func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if title != "" {
				return
			}
		}
	}
	traverse(doc)
	return title
}
