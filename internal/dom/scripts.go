package dom

import (
	"encoding/json"
	"fmt"
)

// resolveFn returns, in document order, the elements matching a locator.
// Accessible names follow the usual precedence: aria-label, aria-labelledby,
// input value, text content, title. A name matches when it contains the
// wanted one, ignoring case.
const resolveFn = `function(css, name, skipHidden) {
	var accessibleName = function(el) {
		var label = el.getAttribute('aria-label');
		if (label && label.trim() !== '') return label.trim();
		var by = el.getAttribute('aria-labelledby');
		if (by) {
			var parts = by.split(/\s+/).map(function(id) {
				var ref = document.getElementById(id);
				return ref ? ref.textContent : '';
			});
			var joined = parts.join(' ').replace(/\s+/g, ' ').trim();
			if (joined !== '') return joined;
		}
		if (el.tagName === 'INPUT') return (el.value || '').trim();
		var text = (el.textContent || '').replace(/\s+/g, ' ').trim();
		if (text !== '') return text;
		return (el.getAttribute('title') || '').trim();
	};
	var rendered = function(el) {
		if (el.closest('[aria-hidden="true"]')) return false;
		if (window.getComputedStyle(el).visibility === 'hidden') return false;
		return el.getClientRects().length > 0;
	};
	var needle = name.toLowerCase();
	var matches = [];
	var nodes = document.querySelectorAll(css);
	for (var i = 0; i < nodes.length; i++) {
		var el = nodes[i];
		if (skipHidden && !rendered(el)) continue;
		if (needle !== '' && accessibleName(el).toLowerCase().indexOf(needle) === -1) continue;
		matches.push(el);
	}
	return matches;
}`

// inspectFn reports presence, visibility and one attribute of the first
// element matching css. Visible means a non-empty box and not
// visibility:hidden.
const inspectFn = `function(css, attr) {
	var el = document.querySelector(css);
	if (!el) return {found: false, visible: false, present: false, value: ''};
	var style = window.getComputedStyle(el);
	var rect = el.getBoundingClientRect();
	var visible = style.visibility !== 'hidden' && rect.width > 0 && rect.height > 0;
	var present = attr !== '' && el.hasAttribute(attr);
	return {found: true, visible: visible, present: present, value: present ? el.getAttribute(attr) : ''};
}`

// NodeState is the decoded result of InspectScript.
type NodeState struct {
	Found   bool   `json:"found"`
	Visible bool   `json:"visible"`
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshalling a string cannot fail.
		panic(err)
	}
	return string(b)
}

func resolveCall(loc Locator) string {
	return fmt.Sprintf("(%s)(%s, %s, %t)", resolveFn, jsString(loc.CSS), jsString(loc.Name), loc.SkipHidden)
}

// CountScript evaluates to the number of elements matching loc.
func CountScript(loc Locator) string {
	return resolveCall(loc) + ".length"
}

// MarkScript tags the index-th match of loc with token and evaluates to
// whether such a match existed.
func MarkScript(loc Locator, index int, token string) string {
	return fmt.Sprintf(`(function() {
	var el = %s[%d];
	if (!el) return false;
	el.setAttribute(%s, %s);
	return true;
})()`, resolveCall(loc), index, jsString(TargetAttr), jsString(token))
}

// UnmarkScript removes the tag set by MarkScript.
func UnmarkScript(token string) string {
	return fmt.Sprintf(`(function() {
	var el = document.querySelector(%s);
	if (el) el.removeAttribute(%s);
	return true;
})()`, jsString(TargetSelector(token)), jsString(TargetAttr))
}

// InspectScript evaluates to a NodeState for the first element matching
// selector. attr may be empty when only visibility matters.
func InspectScript(selector, attr string) string {
	return fmt.Sprintf("(%s)(%s, %s)", inspectFn, jsString(selector), jsString(attr))
}
