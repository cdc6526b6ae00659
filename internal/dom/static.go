package dom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StaticPage answers attribute and visibility queries against a parsed DOM
// snapshot, with no browser involved. Visibility is approximate: an element
// is hidden when it or an ancestor carries the hidden attribute, is a
// hidden input, or has an inline display:none or visibility:hidden style.
type StaticPage struct {
	doc *goquery.Document
}

func NewStaticPage(r io.Reader) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &StaticPage{doc: doc}, nil
}

// first returns the first match. goquery treats selectors it cannot
// compile as matching nothing.
func (p *StaticPage) first(selector string) (*goquery.Selection, error) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoNode, selector)
	}
	return sel, nil
}

// Attribute returns the named attribute of the first match. ErrNoNode is
// returned when nothing matches.
func (p *StaticPage) Attribute(_ context.Context, selector, name string) (string, bool, error) {
	sel, err := p.first(selector)
	if err != nil {
		return "", false, err
	}
	val, ok := sel.Attr(name)
	return val, ok, nil
}

// Visible reports whether the first match would be rendered. A missing
// element is simply not visible.
func (p *StaticPage) Visible(_ context.Context, selector string) (bool, error) {
	sel, err := p.first(selector)
	if err != nil {
		if errors.Is(err, ErrNoNode) {
			return false, nil
		}
		return false, err
	}
	if isHiddenInput(sel) {
		return false, nil
	}
	for s := sel; s.Length() > 0; s = s.Parent() {
		if hiddenByMarkup(s) {
			return false, nil
		}
	}
	return true, nil
}

func isHiddenInput(s *goquery.Selection) bool {
	if goquery.NodeName(s) != "input" {
		return false
	}
	t, _ := s.Attr("type")
	return strings.EqualFold(t, "hidden")
}

func hiddenByMarkup(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style, ok := s.Attr("style")
	if !ok {
		return false
	}
	compact := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden")
}
