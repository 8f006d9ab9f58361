package mocks

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/copyleftdev/authscry/internal/page"
)

var _ page.Page = (*FakePage)(nil)

// Element is one addressable node of a FakePage.
type Element struct {
	Value    string
	Checked  bool
	Hidden   bool
	Text     string
	Options  []string // allowed values for a select; empty means any
	Disabled bool
}

// FakePage is an in-memory page. Routes populate the element set on
// navigation and click handlers mutate it, which is enough to model a form
// application without a browser.
type FakePage struct {
	mu       sync.Mutex
	url      string
	title    string
	elements map[string]*Element
	order    []string
	banners  []string

	// Routes maps an absolute URL to a loader called on navigation.
	Routes map[string]func(p *FakePage)
	// OnClick maps a selector to the behaviour of clicking it.
	OnClick map[string]func(p *FakePage)
	// FailOn forces interactions against a selector to fail.
	FailOn map[string]error

	actions []string
	closed  bool
}

func NewFakePage() *FakePage {
	return &FakePage{
		elements: make(map[string]*Element),
		Routes:   make(map[string]func(p *FakePage)),
		OnClick:  make(map[string]func(p *FakePage)),
		FailOn:   make(map[string]error),
	}
}

// Helpers for route loaders and click handlers. Callers already hold the
// page lock when invoked from Navigate or Click, so these do not lock.

// Reset clears the document.
func (p *FakePage) Reset() {
	p.elements = make(map[string]*Element)
	p.order = nil
	p.banners = nil
	p.title = ""
}

// Add places an element on the page.
func (p *FakePage) Add(selector string, el *Element) {
	if _, ok := p.elements[selector]; !ok {
		p.order = append(p.order, selector)
	}
	p.elements[selector] = el
}

// Element returns the element for selector, or nil.
func (p *FakePage) Element(selector string) *Element {
	return p.elements[selector]
}

// Location returns the current URL.
func (p *FakePage) Location() string {
	return p.url
}

// SetTitle sets the document title.
func (p *FakePage) SetTitle(title string) {
	p.title = title
}

// SetURL changes the location without running a route.
func (p *FakePage) SetURL(url string) {
	p.url = url
}

// Banner adds free-standing visible text, like a greeting.
func (p *FakePage) Banner(text string) {
	p.banners = append(p.banners, text)
}

// Actions lists the interactions performed, in order.
func (p *FakePage) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// Close marks the page discarded.
func (p *FakePage) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakePage) record(format string, args ...interface{}) {
	p.actions = append(p.actions, fmt.Sprintf(format, args...))
}

func (p *FakePage) interactable(selector string) (*Element, error) {
	if err := p.FailOn[selector]; err != nil {
		return nil, err
	}
	el, ok := p.elements[selector]
	if !ok || el.Hidden {
		return nil, fmt.Errorf("element %q not found or not visible", selector)
	}
	if el.Disabled {
		return nil, fmt.Errorf("element %q is disabled", selector)
	}
	return el, nil
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record("navigate %s", url)
	route, ok := p.Routes[url]
	if !ok {
		return fmt.Errorf("no route for %s", url)
	}
	p.url = url
	p.Reset()
	route(p)
	return nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	el, err := p.interactable(selector)
	if err != nil {
		return err
	}
	p.record("fill %s", selector)
	el.Value = value
	return nil
}

func (p *FakePage) SelectOption(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	el, err := p.interactable(selector)
	if err != nil {
		return err
	}
	if len(el.Options) > 0 {
		allowed := false
		for _, o := range el.Options {
			if o == value {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("option %q not available in %q", value, selector)
		}
	}
	p.record("select %s", selector)
	el.Value = value
	return nil
}

func (p *FakePage) SetChecked(ctx context.Context, selector string, checked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	el, err := p.interactable(selector)
	if err != nil {
		return err
	}
	p.record("check %s=%t", selector, checked)
	el.Checked = checked
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.interactable(selector); err != nil {
		return err
	}
	p.record("click %s", selector)
	if handler, ok := p.OnClick[selector]; ok {
		handler(p)
	}
	return nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, ctx.Err()
}

func (p *FakePage) Value(ctx context.Context, selector string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return "", false, ctx.Err()
	}
	return el.Value, true, ctx.Err()
}

func (p *FakePage) Checked(ctx context.Context, selector string) (bool, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return false, false, ctx.Err()
	}
	return el.Checked, true, ctx.Err()
}

func (p *FakePage) Visible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	return ok && !el.Hidden, ctx.Err()
}

func (p *FakePage) Text(ctx context.Context, selector string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok || el.Hidden {
		return "", false, ctx.Err()
	}
	return el.Text, true, ctx.Err()
}

func (p *FakePage) BodyText(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var parts []string
	for _, sel := range p.order {
		el := p.elements[sel]
		if !el.Hidden && el.Text != "" {
			parts = append(parts, el.Text)
		}
	}
	parts = append(parts, p.banners...)
	return strings.Join(parts, "\n"), ctx.Err()
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>", html.EscapeString(p.title))
	for _, sel := range p.order {
		el := p.elements[sel]
		fmt.Fprintf(&b, `<div data-selector="%s">%s</div>`, html.EscapeString(sel), html.EscapeString(el.Text))
	}
	for _, text := range p.banners {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(text))
	}
	b.WriteString("</body></html>")
	return b.String(), ctx.Err()
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, ctx.Err()
}

// FakeOpener hands out pages built by New and remembers them.
type FakeOpener struct {
	mu    sync.Mutex
	New   func() *FakePage
	Err   error
	pages []*FakePage
}

var _ page.Opener = (*FakeOpener)(nil)

func (o *FakeOpener) OpenPage(ctx context.Context) (page.Page, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, nil, o.Err
	}
	p := o.New()
	o.pages = append(o.pages, p)
	return p, p.Close, nil
}

// Pages returns every page handed out so far.
func (o *FakeOpener) Pages() []*FakePage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*FakePage(nil), o.pages...)
}
