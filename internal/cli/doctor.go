package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/copyleftdev/authscry/internal/selectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrLoginFormMissing is returned by doctor when the login page lacks a field.
var ErrLoginFormMissing = errors.New("login form not found")

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that Chrome starts and the application is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			reg, err := selectors.FromConfig(a.cfg)
			if err != nil {
				return err
			}

			b := a.newBrowser(&a.cfg.Browser, a.logger)
			defer a.shutdownBrowser(b)

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Runner.ScenarioTimeout)
			defer cancel()

			p, closePage, err := b.OpenPage(ctx)
			if err != nil {
				return fmt.Errorf("browser: %w", err)
			}
			defer closePage()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()
			fmt.Fprintf(tw, "browser\tok\n")

			if err := p.Navigate(ctx, a.cfg.Target.BaseURL); err != nil {
				fmt.Fprintf(tw, "base url\t%s\tunreachable\n", a.cfg.Target.BaseURL)
				return fmt.Errorf("opening %s: %w", a.cfg.Target.BaseURL, err)
			}
			title, err := p.Title(ctx)
			if err != nil {
				a.logger.Warn("Reading page title", zap.Error(err))
			}
			fmt.Fprintf(tw, "base url\t%s\tok\n", a.cfg.Target.BaseURL)
			fmt.Fprintf(tw, "title\t%s\n", title)

			loginURL := a.cfg.Target.URL(a.cfg.Target.LoginPath)
			if err := p.Navigate(ctx, loginURL); err != nil {
				return fmt.Errorf("opening %s: %w", loginURL, err)
			}
			var missing []string
			for _, name := range []string{selectors.Email, selectors.Password, selectors.Submit} {
				visible, err := p.Visible(ctx, reg.MustGet(name))
				if err != nil {
					return fmt.Errorf("probing %s: %w", name, err)
				}
				state := "ok"
				if !visible {
					state = "missing"
					missing = append(missing, name)
				}
				fmt.Fprintf(tw, "login %s\t%s\t%s\n", name, reg.MustGet(name), state)
			}
			if len(missing) > 0 {
				return fmt.Errorf("%w at %s: %v", ErrLoginFormMissing, loginURL, missing)
			}
			return nil
		},
	}
}
