package expect

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/copyleftdev/authscry/internal/page"
)

// Expect binds a Poller to a page.
type Expect struct {
	page   page.Page
	poller Poller
}

func New(p page.Page, poller Poller) *Expect {
	return &Expect{page: p, poller: poller}
}

// URL waits for the location to match re.
func (e *Expect) URL(ctx context.Context, re *regexp.Regexp) error {
	return e.poller.Eventually(ctx, e.urlCondition(re))
}

// URLEquals waits for the location to be exactly want.
func (e *Expect) URLEquals(ctx context.Context, want string) error {
	return e.URL(ctx, regexp.MustCompile(`^`+regexp.QuoteMeta(want)+`$`))
}

// StaysOnURL requires the location to keep matching re for window.
func (e *Expect) StaysOnURL(ctx context.Context, re *regexp.Regexp, window time.Duration) error {
	return e.poller.Consistently(ctx, e.urlCondition(re), window)
}

func (e *Expect) urlCondition(re *regexp.Regexp) Condition {
	return Condition{
		Expected: fmt.Sprintf("URL matching /%s/", re),
		Check: func(ctx context.Context) (bool, string, error) {
			u, err := e.page.URL(ctx)
			if err != nil {
				return false, "", err
			}
			return re.MatchString(u), "URL " + u, nil
		},
	}
}

// Visible waits for selector to be rendered and visible.
func (e *Expect) Visible(ctx context.Context, selector string) error {
	return e.poller.Eventually(ctx, Condition{
		Expected: fmt.Sprintf("%s to be visible", selector),
		Check: func(ctx context.Context) (bool, string, error) {
			ok, err := e.page.Visible(ctx, selector)
			if err != nil {
				return false, "", err
			}
			return ok, fmt.Sprintf("%s not visible", selector), nil
		},
	})
}

// Text waits for the whitespace-trimmed text of selector to match re.
// Anchor re for an exact match.
func (e *Expect) Text(ctx context.Context, selector string, re *regexp.Regexp) error {
	return e.poller.Eventually(ctx, Condition{
		Expected: fmt.Sprintf("%s to have text matching /%s/", selector, re),
		Check: func(ctx context.Context) (bool, string, error) {
			text, found, err := e.page.Text(ctx, selector)
			if err != nil {
				return false, "", err
			}
			if !found {
				return false, fmt.Sprintf("%s not visible", selector), nil
			}
			return re.MatchString(strings.TrimSpace(text)), fmt.Sprintf("text %q", text), nil
		},
	})
}

// TextVisible waits for substring to appear in the rendered document text,
// ignoring case.
func (e *Expect) TextVisible(ctx context.Context, substring string) error {
	return e.poller.Eventually(ctx, Condition{
		Expected: fmt.Sprintf("text %q to be visible", substring),
		Check: func(ctx context.Context) (bool, string, error) {
			body, err := e.page.BodyText(ctx)
			if err != nil {
				return false, "", err
			}
			return strings.Contains(strings.ToLower(body), strings.ToLower(substring)), fmt.Sprintf("page text %q", clip(body, 200)), nil
		},
	})
}

// Value waits for the value of selector to equal want.
func (e *Expect) Value(ctx context.Context, selector, want string) error {
	return e.poller.Eventually(ctx, Condition{
		Expected: fmt.Sprintf("%s to have value %q", selector, want),
		Check: func(ctx context.Context) (bool, string, error) {
			v, found, err := e.page.Value(ctx, selector)
			if err != nil {
				return false, "", err
			}
			if !found {
				return false, fmt.Sprintf("%s not found", selector), nil
			}
			return v == want, fmt.Sprintf("value %q", v), nil
		},
	})
}

// Checked waits for the checked state of selector to equal want.
func (e *Expect) Checked(ctx context.Context, selector string, want bool) error {
	return e.poller.Eventually(ctx, Condition{
		Expected: fmt.Sprintf("%s checked=%t", selector, want),
		Check: func(ctx context.Context) (bool, string, error) {
			c, found, err := e.page.Checked(ctx, selector)
			if err != nil {
				return false, "", err
			}
			if !found {
				return false, fmt.Sprintf("%s not found", selector), nil
			}
			return c == want, fmt.Sprintf("checked=%t", c), nil
		},
	})
}

// clip collapses whitespace and cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
