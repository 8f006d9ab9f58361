// Package suite holds the login and signup scenarios of the application.
package suite

import (
	"context"
	"regexp"

	"github.com/copyleftdev/authscry/internal/scenario"
)

// Register adds every built-in scenario to c.
func Register(c *scenario.Catalog) error {
	for _, sc := range append(Signup(), Login()...) {
		if err := c.Register(sc); err != nil {
			return err
		}
	}
	return nil
}

// NewCatalog returns a catalog holding the built-in scenarios.
func NewCatalog() *scenario.Catalog {
	c := scenario.NewCatalog()
	c.MustRegister(append(Signup(), Login()...)...)
	return c
}

func openPage(s *scenario.Session, name, path string) scenario.Step {
	return scenario.Step{Name: name, Do: func(ctx context.Context) error {
		return s.Goto(ctx, path)
	}}
}

func expectVisible(s *scenario.Session, selectorName string) scenario.Step {
	return scenario.Step{Name: "expect " + selectorName + " visible", Do: func(ctx context.Context) error {
		return s.Expect.Visible(ctx, s.Sel(selectorName))
	}}
}

// pathPattern matches any URL whose path contains path.
func pathPattern(path string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(path))
}
