package dom

import (
	"context"

	"github.com/chromedp/chromedp"
)

func NavigateAction(url string) chromedp.Action {
	return chromedp.Navigate(url)
}

// WaitAttachedAction waits until selector matches a node in the DOM,
// regardless of visibility.
func WaitAttachedAction(selector string) chromedp.Action {
	return chromedp.WaitReady(selector, chromedp.ByQuery)
}

func WaitVisibleAction(selector string) chromedp.Action {
	return chromedp.WaitVisible(selector, chromedp.ByQuery)
}

func CountAction(loc Locator, n *int) chromedp.Action {
	return chromedp.Evaluate(CountScript(loc), n)
}

func InspectAction(selector, attr string, res *NodeState) chromedp.Action {
	return chromedp.Evaluate(InspectScript(selector, attr), res)
}

// ClickNthAction clicks the index-th element matching loc. found reports
// whether that element existed; nothing is clicked when it did not.
func ClickNthAction(loc Locator, index int, token string, found *bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := chromedp.Evaluate(MarkScript(loc, index, token), found).Do(ctx); err != nil {
			return err
		}
		if !*found {
			return nil
		}
		if err := chromedp.Click(TargetSelector(token), chromedp.ByQuery).Do(ctx); err != nil {
			return err
		}
		// The click may have removed the node; a failed unmark is harmless.
		var ok bool
		_ = chromedp.Evaluate(UnmarkScript(token), &ok).Do(ctx)
		return nil
	})
}

// ScreenshotAction captures the full page as PNG.
func ScreenshotAction(res *[]byte) chromedp.Action {
	return chromedp.FullScreenshot(res, 100)
}

func DocumentHTMLAction(res *string) chromedp.Action {
	return chromedp.OuterHTML("html", res, chromedp.ByQuery)
}
