package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/scenario"
	"github.com/copyleftdev/authscry/internal/script"
	"github.com/copyleftdev/authscry/internal/selectors"
	"github.com/copyleftdev/authscry/internal/suite"
	"github.com/copyleftdev/authscry/internal/userdata"
	"go.uber.org/zap"
)

// splitArgs separates script file arguments from labels and @tags.
func splitArgs(args []string) (selection, files []string) {
	for _, arg := range args {
		if script.IsScriptPath(arg) {
			files = append(files, arg)
		} else {
			selection = append(selection, arg)
		}
	}
	return selection, files
}

// buildCatalog returns the built-in scenarios plus the scripts from
// runner.scripts and files. The labels of the scripts in files are
// returned so a run can select them.
func (a *app) buildCatalog(files []string) (*scenario.Catalog, []string, error) {
	catalog := suite.NewCatalog()

	var scripts []script.Script
	if len(a.cfg.Runner.Scripts) > 0 {
		loaded, err := script.Load(a.cfg.Runner.Scripts...)
		if err != nil {
			return nil, nil, &config.ConfigError{Key: "runner.scripts", Reason: err.Error()}
		}
		scripts = loaded
	}

	seen := make(map[string]bool)
	for _, sc := range scripts {
		seen[filepath.Clean(sc.Source)] = true
	}

	var labels []string
	if len(files) > 0 {
		loaded, err := script.Load(files...)
		if err != nil {
			return nil, nil, &config.ConfigError{Key: "scripts", Reason: err.Error()}
		}
		for _, sc := range loaded {
			labels = append(labels, strings.ToUpper(sc.Label))
			if !seen[filepath.Clean(sc.Source)] {
				scripts = append(scripts, sc)
			}
		}
	}

	if err := script.Register(catalog, scripts); err != nil {
		return nil, nil, &config.ConfigError{Key: "scripts", Reason: err.Error()}
	}
	return catalog, labels, nil
}

// newRunner validates the configuration and wires a runner over a fresh
// browser. The caller must shut the browser down.
func (a *app) newRunner(catalog *scenario.Catalog) (*scenario.Runner, Browser, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	reg, err := selectors.FromConfig(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	users, err := userdata.NewGenerator(a.cfg.Generator)
	if err != nil {
		return nil, nil, err
	}
	b := a.newBrowser(&a.cfg.Browser, a.logger)
	return scenario.NewRunner(a.cfg, catalog, b, reg, users, a.logger), b, nil
}

func (a *app) shutdownBrowser(b Browser) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Browser.ShutdownTimeout)
	defer cancel()
	if err := b.Shutdown(ctx); err != nil {
		a.logger.Warn("Browser shutdown incomplete", zap.Error(err))
	}
}
