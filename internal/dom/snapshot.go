package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// strippedTags are removed with their whole subtree from snapshots.
var strippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// SanitizeSnapshot parses a document and renders it back without scripts,
// stylesheets, comments and the click-target marker. Inline style attributes
// are kept because offline visibility checks rely on them.
func SanitizeSnapshot(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	prune(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && strippedTags[c.Data]:
			n.RemoveChild(c)
		default:
			if c.Type == html.ElementNode {
				c.Attr = dropAttr(c.Attr, TargetAttr)
			}
			prune(c)
		}
		c = next
	}
}

func dropAttr(attrs []html.Attribute, key string) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		if a.Key != key {
			out = append(out, a)
		}
	}
	return out
}
