package script

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/copyleftdev/authscry/internal/auth"
	"github.com/copyleftdev/authscry/internal/form"
	"github.com/copyleftdev/authscry/internal/scenario"
	"github.com/copyleftdev/authscry/internal/userdata"
)

// bindings are the values a running script can reference as {{name}}.
type bindings struct {
	user     userdata.UserRecord
	existing userdata.UserRecord
	secret   string
}

func (b bindings) resolve(value string) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}
	totp := ""
	if strings.Contains(value, "{{totp}}") {
		code, err := auth.GenerateTOTP(b.secret)
		if err != nil {
			return "", fmt.Errorf("resolving {{totp}}: %w", err)
		}
		totp = code
	}
	r := strings.NewReplacer(
		"{{user.firstName}}", b.user.FirstName,
		"{{user.lastName}}", b.user.LastName,
		"{{user.email}}", b.user.Email,
		"{{user.password}}", b.user.Password,
		"{{user.phone}}", b.user.Phone,
		"{{user.countryCode}}", b.user.CountryCode,
		"{{existing.firstName}}", b.existing.FirstName,
		"{{existing.lastName}}", b.existing.LastName,
		"{{existing.email}}", b.existing.Email,
		"{{existing.password}}", b.existing.Password,
		"{{existing.phone}}", b.existing.Phone,
		"{{existing.countryCode}}", b.existing.CountryCode,
		"{{totp}}", totp,
	)
	return r.Replace(value), nil
}

// stepFunc is a compiled action.
type stepFunc func(ctx context.Context, s *scenario.Session, b *bindings) error

type compiled struct {
	name string
	run  stepFunc
}

// Scenario validates the script and turns it into a runnable scenario.
func (sc Script) Scenario() (scenario.Scenario, error) {
	if len(sc.Steps) == 0 {
		return scenario.Scenario{}, fmt.Errorf("script %s: no steps", sc.Label)
	}

	var steps []compiled
	names := map[string]bool{}
	for i, a := range sc.Steps {
		run, err := compileAction(a)
		if err != nil {
			return scenario.Scenario{}, fmt.Errorf("script %s: step %d (%s): %w", sc.Label, i+1, a.Type, err)
		}
		if a.Selector != "" {
			names[a.Selector] = true
		}
		steps = append(steps, compiled{name: stepName(a), run: run})
	}

	var selectorNames []string
	for name := range names {
		selectorNames = append(selectorNames, name)
	}
	sort.Strings(selectorNames)

	tags := append([]string{"script"}, sc.Tags...)
	return scenario.Scenario{
		Label:         sc.Label,
		Title:         sc.Title,
		Tags:          tags,
		Selectors:     selectorNames,
		ConflictsWith: sc.ConflictsWith,
		Run: func(ctx context.Context, s *scenario.Session) error {
			b := &bindings{
				user:     s.NewUser(),
				existing: s.ExistingUser(),
				secret:   s.Fixtures.ExistingUser.TOTPSecret,
			}
			for _, step := range steps {
				err := s.Do(ctx, step.name, func(ctx context.Context) error {
					return step.run(ctx, s, b)
				})
				if err != nil {
					return err
				}
			}
			return nil
		},
	}, nil
}

func stepName(a Action) string {
	if a.Name != "" {
		return a.Name
	}
	target := a.Selector
	if target == "" {
		target = a.Query
	}
	if target == "" {
		target = a.Value
	}
	if target == "" {
		return string(a.Type)
	}
	return string(a.Type) + " " + target
}

// query resolves the action's element query at run time.
func query(a Action, s *scenario.Session) string {
	if a.Query != "" {
		return a.Query
	}
	return s.Sel(a.Selector)
}

func needsElement(a Action) error {
	if a.Selector == "" && a.Query == "" {
		return fmt.Errorf("%s action requires a selector or query", a.Type)
	}
	if a.Selector != "" && a.Query != "" {
		return fmt.Errorf("%s action takes a selector or a query, not both", a.Type)
	}
	return nil
}

func boolValue(a Action, def bool) (bool, error) {
	if a.Value == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(a.Value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean value %q", a.Value)
	}
	return v, nil
}

func pickUser(a Action, b *bindings) (userdata.UserRecord, error) {
	switch a.User {
	case "", "new":
		return b.user, nil
	case "existing":
		return b.existing, nil
	default:
		return userdata.UserRecord{}, fmt.Errorf("unknown user %q", a.User)
	}
}

// compileAction checks a and returns the function that performs it.
func compileAction(a Action) (stepFunc, error) {
	switch a.Type {
	case ActionNavigate:
		if a.Value == "" {
			return nil, fmt.Errorf("navigate action requires a path or URL value")
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			target := a.Value
			if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
				target = s.Target.URL(target)
			}
			return s.Page.Navigate(ctx, target)
		}, nil

	case ActionWaitDelay:
		dur, err := time.ParseDuration(a.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid duration value for wait_delay '%s': %w", a.Value, err)
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			t := time.NewTimer(dur)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}, nil

	case ActionClick:
		if err := needsElement(a); err != nil {
			return nil, err
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			return s.Page.Click(ctx, query(a, s))
		}, nil

	case ActionFill, ActionSelect:
		if err := needsElement(a); err != nil {
			return nil, err
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			value, err := b.resolve(a.Value)
			if err != nil {
				return err
			}
			if a.Type == ActionSelect {
				return s.Page.SelectOption(ctx, query(a, s), value)
			}
			return s.Page.Fill(ctx, query(a, s), value)
		}, nil

	case ActionCheck:
		if err := needsElement(a); err != nil {
			return nil, err
		}
		checked, err := boolValue(a, true)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			return s.Page.SetChecked(ctx, query(a, s), checked)
		}, nil

	case ActionFillSignup:
		if _, err := pickUser(a, &bindings{}); err != nil {
			return nil, err
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			u, _ := pickUser(a, b)
			var opts []form.Option
			if a.Terms != nil {
				opts = append(opts, form.WithTerms(*a.Terms))
			}
			return s.FillSignup(ctx, u, opts...)
		}, nil

	case ActionLogin:
		if a.User != "" && a.User != "existing" {
			return nil, fmt.Errorf("login action only supports the existing user")
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			if err := s.FillLogin(ctx, b.existing.Email, b.existing.Password); err != nil {
				return err
			}
			if err := s.Submit(ctx); err != nil {
				return err
			}
			if b.secret != "" {
				return form.CompleteTwoFactor(ctx, s.Page, s.Selectors, b.secret)
			}
			return nil
		}, nil

	case ActionExpectURL, ActionStayOnURL:
		re, err := regexp.Compile(a.Value)
		if err != nil || a.Value == "" {
			return nil, fmt.Errorf("%s requires a valid pattern value", a.Type)
		}
		if a.Type == ActionStayOnURL {
			return func(ctx context.Context, s *scenario.Session, b *bindings) error {
				window := a.Window
				if window == 0 {
					window = s.StayWindow
				}
				return s.Expect.StaysOnURL(ctx, re, window)
			}, nil
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			return s.Expect.URL(ctx, re)
		}, nil

	case ActionExpectVisible:
		if err := needsElement(a); err != nil {
			return nil, err
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			return s.Expect.Visible(ctx, query(a, s))
		}, nil

	case ActionExpectText:
		if a.Value == "" {
			return nil, fmt.Errorf("expect_text action requires a value")
		}
		if a.Selector == "" && a.Query == "" {
			// No element: the text must appear anywhere on the page.
			return func(ctx context.Context, s *scenario.Session, b *bindings) error {
				text, err := b.resolve(a.Value)
				if err != nil {
					return err
				}
				return s.Expect.TextVisible(ctx, text)
			}, nil
		}
		if err := needsElement(a); err != nil {
			return nil, err
		}
		re, err := regexp.Compile(a.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid text pattern: %w", err)
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			return s.Expect.Text(ctx, query(a, s), re)
		}, nil

	case ActionExpectValue:
		if err := needsElement(a); err != nil {
			return nil, err
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			want, err := b.resolve(a.Value)
			if err != nil {
				return err
			}
			return s.Expect.Value(ctx, query(a, s), want)
		}, nil

	case ActionExpectChecked:
		if err := needsElement(a); err != nil {
			return nil, err
		}
		want, err := boolValue(a, true)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			return s.Expect.Checked(ctx, query(a, s), want)
		}, nil

	case ActionClarify:
		if a.Value == "" {
			return nil, fmt.Errorf("clarify action requires a reason value")
		}
		return func(ctx context.Context, s *scenario.Session, b *bindings) error {
			url, err := s.URL(ctx)
			if err == nil {
				s.Observe("url", url)
			}
			return scenario.NeedsClarification(a.Value)
		}, nil

	default:
		return nil, fmt.Errorf("unknown action type: %s", a.Type)
	}
}
