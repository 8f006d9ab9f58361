package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/authscry/internal/dom"
	"github.com/copyleftdev/authscry/internal/page"
)

var _ page.Page = (*Page)(nil)

// errActionTimeout marks an action that ran out of its own time budget, as
// opposed to the caller's context ending.
var errActionTimeout = errors.New("timed out")

const presenceTimeout = time.Second

// InteractionError reports an action that could not be performed on an
// element: missing, hidden, disabled or otherwise not interactable within
// the action timeout.
type InteractionError struct {
	Action   string
	Selector string
	Err      error
}

func (e *InteractionError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Action, e.Selector, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// SelectorQuery returns the selector the action targeted.
func (e *InteractionError) SelectorQuery() string { return e.Selector }

// Page is a chromedp tab in its own browser context.
type Page struct {
	ctx           context.Context
	actionTimeout time.Duration
}

// run executes actions on the tab, bounded by both the caller's ctx and the
// action timeout.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s", errActionTimeout, timeout)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Page) interact(ctx context.Context, action, selector string, a chromedp.Action) error {
	if err := p.run(ctx, p.actionTimeout, a); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		if selector != "" && errors.Is(err, errActionTimeout) {
			err = p.explainTimeout(ctx, selector, err)
		}
		return &InteractionError{Action: action, Selector: selector, Err: err}
	}
	return nil
}

// explainTimeout tells a missing element apart from one that exists but
// never became interactable.
func (p *Page) explainTimeout(ctx context.Context, selector string, err error) error {
	var present bool
	if p.run(ctx, presenceTimeout, dom.IsElementPresentAction(selector, &present)) != nil {
		return err
	}
	if present {
		return fmt.Errorf("present but not interactable within %s: %w", p.actionTimeout, err)
	}
	return fmt.Errorf("not found within %s: %w", p.actionTimeout, err)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.interact(ctx, "navigate", "", dom.NavigateAction(url))
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	return p.interact(ctx, "fill", selector, dom.FillAction(selector, value))
}

func (p *Page) SelectOption(ctx context.Context, selector, value string) error {
	return p.interact(ctx, "select", selector, dom.SelectAction(selector, value))
}

func (p *Page) SetChecked(ctx context.Context, selector string, checked bool) error {
	return p.interact(ctx, "check", selector, dom.SetCheckedAction(selector, checked))
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return p.interact(ctx, "click", selector, dom.ClickAction(selector))
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, p.actionTimeout, dom.LocationAction(&url))
	return url, err
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, p.actionTimeout, chromedp.Title(&title))
	return title, err
}

func (p *Page) elementState(ctx context.Context, selector string) (dom.ElementState, error) {
	var state dom.ElementState
	err := p.run(ctx, p.actionTimeout, dom.ElementStateAction(selector, &state))
	return state, err
}

func (p *Page) Value(ctx context.Context, selector string) (string, bool, error) {
	state, err := p.elementState(ctx, selector)
	return state.Value, state.Found, err
}

func (p *Page) Checked(ctx context.Context, selector string) (bool, bool, error) {
	state, err := p.elementState(ctx, selector)
	return state.Checked, state.Found, err
}

func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	state, err := p.elementState(ctx, selector)
	return state.Found && state.Visible, err
}

func (p *Page) Text(ctx context.Context, selector string) (string, bool, error) {
	state, err := p.elementState(ctx, selector)
	if err != nil || !state.Found || !state.Visible {
		return "", false, err
	}
	return state.Text, true, nil
}

func (p *Page) BodyText(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, p.actionTimeout, dom.GetTextContentAction(&text))
	return text, err
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	var markup string
	err := p.run(ctx, p.actionTimeout, dom.GetFullHTMLAction(&markup))
	return markup, err
}

// combineContext derives from the tab context (which carries the chromedp
// target) a context that is also cancelled when opCtx is done.
func combineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(tabCtx)
	if deadline, ok := opCtx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		ctx, cancelDeadline = context.WithDeadline(ctx, deadline)
		inner := cancel
		cancel = func() {
			cancelDeadline()
			inner()
		}
	}

	stop := context.AfterFunc(opCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
