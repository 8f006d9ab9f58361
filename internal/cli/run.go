package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/mcp"
	"github.com/copyleftdev/authscry/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type renderFunc func(w io.Writer, r *report.Report) error

func renderer(format string) (renderFunc, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return report.WriteText, nil
	case "json":
		return report.WriteJSON, nil
	case "mcp":
		return writeMCP, nil
	default:
		return nil, &config.ConfigError{Key: "format", Reason: fmt.Sprintf("unknown output format %q (want text, json or mcp)", format)}
	}
}

func writeMCP(w io.Writer, r *report.Report) error {
	data, err := mcp.FormatReport(r)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func newRunCmd(a *app) *cobra.Command {
	var (
		format   string
		strict   bool
		parallel int
	)

	runCmd := &cobra.Command{
		Use:   "run [labels|@tags|files.yaml...]",
		Short: "Run scenarios against the configured application",
		Long: `Run executes the selected scenarios, each in its own browser context,
and prints a report keyed by scenario label. With no arguments every
scenario runs. Arguments ending in .yaml or .yml are script files whose
scenarios are added to the catalog and selected.

The exit code is 0 when every selected scenario passed, 1 when any failed
(or needs clarification under --strict) and 2 on a configuration error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("strict") {
				a.cfg.Runner.Strict = strict
			}
			if cmd.Flags().Changed("parallel") {
				a.cfg.Runner.Parallelism = parallel
			}
			render, err := renderer(format)
			if err != nil {
				return err
			}

			selection, files := splitArgs(args)
			catalog, fileLabels, err := a.buildCatalog(files)
			if err != nil {
				return err
			}
			selection = append(selection, fileLabels...)

			runner, b, err := a.newRunner(catalog)
			if err != nil {
				return err
			}
			defer a.shutdownBrowser(b)

			rep, err := runner.Run(cmd.Context(), selection)
			if err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), rep); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}

			counts := rep.Counts()
			a.logger.Info("Run finished",
				zap.String("run_id", rep.RunID.String()),
				zap.Int("passed", counts[report.StatusPassed]),
				zap.Int("failed", counts[report.StatusFailed]),
				zap.Int("needs_clarification", counts[report.StatusNeedsClarification]),
			)
			if !rep.Passed() {
				return ErrScenariosFailed
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&format, "format", "f", "text", "report format: text, json or mcp")
	runCmd.Flags().BoolVar(&strict, "strict", false, "count scenarios that need clarification as failures")
	runCmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "override runner.parallelism")
	return runCmd
}
