// Package page defines the browser surface scenarios act on.
package page

import "context"

// Page is one isolated browser tab. Interactions wait for their element up to
// the implementation's action timeout; state reads are one-shot and never
// wait and report absence instead of failing.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	Click(ctx context.Context, selector string) error

	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Value returns the current value of the first match, or found=false.
	Value(ctx context.Context, selector string) (value string, found bool, err error)
	Checked(ctx context.Context, selector string) (checked bool, found bool, err error)
	Visible(ctx context.Context, selector string) (bool, error)
	// Text returns the rendered text of the first visible match.
	Text(ctx context.Context, selector string) (text string, found bool, err error)
	// BodyText returns the rendered text of the whole document.
	BodyText(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
}

// Opener hands out isolated pages. The returned close func discards the page
// and its browsing context.
type Opener interface {
	OpenPage(ctx context.Context) (Page, func(), error)
}
