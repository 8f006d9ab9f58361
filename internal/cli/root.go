// Package cli implements the authscry command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/copyleftdev/authscry/internal/browser"
	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/observability"
	"github.com/copyleftdev/authscry/internal/page"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// ErrScenariosFailed is returned by run when the report does not pass.
var ErrScenariosFailed = errors.New("one or more scenarios failed")

// Browser is the page source commands drive.
type Browser interface {
	page.Opener
	Shutdown(ctx context.Context) error
}

// BrowserFactory builds the browser for a command.
type BrowserFactory func(cfg *config.BrowserConfig, logger *zap.Logger) Browser

func chromeBrowser(cfg *config.BrowserConfig, logger *zap.Logger) Browser {
	return browser.NewManager(cfg, logger)
}

// Option customizes the root command.
type Option func(*app)

// WithBrowser replaces Chrome with another page source.
func WithBrowser(f BrowserFactory) Option {
	return func(a *app) { a.newBrowser = f }
}

// app is the state shared by subcommands once the root has loaded config.
type app struct {
	configFile string
	logLevel   string
	newBrowser BrowserFactory

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{newBrowser: chromeBrowser}
	for _, opt := range opts {
		opt(a)
	}

	rootCmd := &cobra.Command{
		Use:           "authscry",
		Short:         "Browser-driven login and signup checks",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync(a.logger)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default ./authscry.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &config.ConfigError{Key: "flags", Reason: err.Error()}
	})

	rootCmd.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newDoctorCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return &config.ConfigError{Key: "config", Reason: err.Error()}
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := observability.NewLogger(cfg.Log, zapcore.Lock(zapcore.AddSync(stderr)))
	if err != nil {
		return &config.ConfigError{Key: "log.level", Reason: err.Error()}
	}
	a.cfg = cfg
	a.logger = logger
	a.logger.Debug("Configuration loaded", zap.String("version", Version), zap.String("base_url", cfg.Target.BaseURL))
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) int {
	rootCmd := NewRootCmd(opts...)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var cfgErr *config.ConfigError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfig
	default:
		return ExitFailed
	}
}
