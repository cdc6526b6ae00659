package dom

import (
	"errors"
	"fmt"
	"strings"
)

// ButtonRole matches every element exposed with the ARIA button role.
const ButtonRole = `button, [role='button'], input[type='button'], input[type='submit'], input[type='reset']`

// TargetAttr is set on an element right before it is clicked so the click
// can be dispatched through a plain CSS query.
const TargetAttr = "data-uiprobe-target"

// ErrNoNode is returned when a selector matches no element at all.
var ErrNoNode = errors.New("no element matches selector")

// Locator describes how to find elements on a page.
type Locator struct {
	// CSS is the base selector.
	CSS string
	// Name, when set, keeps only elements whose accessible name contains
	// it, ignoring case.
	Name string
	// SkipHidden drops elements that are not rendered or are aria-hidden,
	// the way role queries ignore them.
	SkipHidden bool
}

// ByCSS locates elements by selector only.
func ByCSS(selector string) Locator {
	return Locator{CSS: selector}
}

// ByRole locates rendered buttons, optionally filtered by accessible name.
func ByRole(name string) Locator {
	return Locator{CSS: ButtonRole, Name: name, SkipHidden: true}
}

func (l Locator) String() string {
	if l.Name != "" {
		return fmt.Sprintf("%s [name=%q]", l.CSS, l.Name)
	}
	return l.CSS
}

// TargetSelector returns the selector of an element marked with token.
func TargetSelector(token string) string {
	return fmt.Sprintf("[%s=%q]", TargetAttr, token)
}

// Within scopes sel to descendants of scope. A selector list in scope is
// distributed over its alternatives, since "a, b c" would otherwise match
// a itself.
func Within(scope, sel string) string {
	alts := SplitSelectorList(scope)
	for i, alt := range alts {
		alts[i] = alt + " " + sel
	}
	return strings.Join(alts, ", ")
}

// SplitSelectorList splits a CSS selector list on its top-level commas.
// Commas inside brackets, parentheses or quotes are kept.
func SplitSelectorList(list string) []string {
	var (
		out   []string
		depth int
		quote rune
		start int
	)
	for i, r := range list {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
		case r == ',' && depth == 0:
			out = append(out, strings.TrimSpace(list[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(list[start:]))
}
