package suite

import (
	"context"
	"fmt"

	"github.com/copyleftdev/authscry/internal/form"
	"github.com/copyleftdev/authscry/internal/scenario"
	"github.com/copyleftdev/authscry/internal/selectors"
)

// Login returns the login scenarios.
func Login() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Label:     "LOGIN-001",
			Title:     "ensure homepage shows user's name after successful login",
			Tags:      []string{"login", "TS54.1"},
			Selectors: []string{selectors.Email, selectors.Password, selectors.Submit},
			Run:       loginGreets,
		},
	}
}

func loginGreets(ctx context.Context, s *scenario.Session) error {
	account := s.Fixtures.ExistingUser
	name := account.GreetingName
	if name == "" {
		name = account.FirstName
	}
	steps := []scenario.Step{
		openPage(s, "open login page", s.Target.LoginPath),
		{Name: "fill credentials", Do: func(ctx context.Context) error {
			return s.FillLogin(ctx, account.Email, account.Password)
		}},
		{Name: "submit", Do: s.Submit},
	}
	if account.TOTPSecret != "" {
		steps = append(steps, scenario.Step{Name: "enter one-time code", Do: func(ctx context.Context) error {
			return form.CompleteTwoFactor(ctx, s.Page, s.Selectors, account.TOTPSecret)
		}})
	}
	steps = append(steps,
		scenario.Step{Name: "expect home page", Do: func(ctx context.Context) error {
			return s.Expect.URLEquals(ctx, s.Target.URL(s.Target.HomePath))
		}},
		scenario.Step{Name: "expect greeting", Do: func(ctx context.Context) error {
			return s.Expect.TextVisible(ctx, fmt.Sprintf(s.Messages.Greeting, name))
		}},
	)
	return s.Run(ctx, steps...)
}
