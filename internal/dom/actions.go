package dom

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ElementState is a one-shot reading of the first visible match of a
// selector, falling back to the first match when none is visible.
type ElementState struct {
	Found   bool   `json:"found"`
	Visible bool   `json:"visible"`
	Value   string `json:"value"`
	Checked bool   `json:"checked"`
	Text    string `json:"text"`
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

const visibleFn = `function(el) {
	const r = el.getBoundingClientRect();
	const s = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
}`

func stateScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const visible = %s;
	const all = Array.from(document.querySelectorAll(%s));
	if (all.length === 0) return {found: false};
	const el = all.find(visible) || all[0];
	return {
		found: true,
		visible: visible(el),
		value: el.value === undefined || el.value === null ? "" : String(el.value),
		checked: !!el.checked,
		text: el.innerText || el.textContent || ""
	};
})()`, visibleFn, jsString(selector))
}

// ElementStateAction reads the state of selector without waiting for it.
func ElementStateAction(selector string, res *ElementState) chromedp.Action {
	return chromedp.Evaluate(stateScript(selector), res)
}

func GetTextContentAction(res *string) chromedp.Action {
	return chromedp.Evaluate(`document.body ? document.body.innerText : ""`, res)
}

func GetFullHTMLAction(res *string) chromedp.Action {
	return chromedp.Evaluate(`document.documentElement.outerHTML`, res)
}

func NavigateAction(url string) chromedp.Action {
	return chromedp.Navigate(url)
}

func LocationAction(url *string) chromedp.Action {
	return chromedp.Location(url)
}

func ClickAction(selector string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	}
}

// FillAction replaces the value of a text input. Keys are sent rather than
// the value assigned so framework input handlers fire.
func FillAction(selector, value string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	}
}

// SelectAction picks the option of a <select> whose value or label equals
// value and dispatches input and change events.
func SelectAction(selector, value string) chromedp.Action {
	script := fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el || !el.options) return false;
	const want = %s;
	const opt = Array.from(el.options).find(o => o.value === want || o.label === want || o.text.trim() === want);
	if (!opt) return false;
	const setter = Object.getOwnPropertyDescriptor(HTMLSelectElement.prototype, 'value').set;
	setter.call(el, opt.value);
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
})()`, jsString(selector), jsString(value))

	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var ok bool
			if err := chromedp.Evaluate(script, &ok).Do(ctx); err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no option %q in %s", value, selector)
			}
			return nil
		}),
	}
}

// SetCheckedAction clicks a checkbox until its checked state equals want.
// Clicking rather than assigning keeps framework state in step.
func SetCheckedAction(selector string, want bool) chromedp.Action {
	script := fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return "missing";
	if (el.checked !== %t) el.click();
	return el.checked === %t ? "ok" : "unchanged";
})()`, jsString(selector), want, want)

	return chromedp.Tasks{
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var outcome string
			if err := chromedp.Evaluate(script, &outcome).Do(ctx); err != nil {
				return err
			}
			if outcome != "ok" {
				return fmt.Errorf("checkbox %s: %s", selector, outcome)
			}
			return nil
		}),
	}
}

// IsElementPresentAction checks if an element exists without waiting for it.
func IsElementPresentAction(selector string, isPresent *bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			*isPresent = false
			return nil
		}
		*isPresent = len(nodes) > 0
		return nil
	})
}
