package scenario

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/dom"
	"github.com/copyleftdev/authscry/internal/expect"
	"github.com/copyleftdev/authscry/internal/form"
	"github.com/copyleftdev/authscry/internal/page"
	"github.com/copyleftdev/authscry/internal/report"
	"github.com/copyleftdev/authscry/internal/selectors"
	"github.com/copyleftdev/authscry/internal/userdata"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	snapshotBytes   = 8 << 10
	diagnoseTimeout = 5 * time.Second
	setupStep       = "open isolated page"
)

// Runner executes scenarios from a catalog against pages from an opener.
type Runner struct {
	cfg      config.RunnerConfig
	target   config.TargetConfig
	fixtures config.FixturesConfig
	messages config.MessagesConfig
	catalog  *Catalog
	opener   page.Opener
	reg      *selectors.Registry
	users    *userdata.Generator
	logger   *zap.Logger
}

func NewRunner(cfg *config.Config, catalog *Catalog, opener page.Opener, reg *selectors.Registry, users *userdata.Generator, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg.Runner,
		target:   cfg.Target,
		fixtures: cfg.Fixtures,
		messages: cfg.Messages,
		catalog:  catalog,
		opener:   opener,
		reg:      reg,
		users:    users,
		logger:   logger.Named("runner"),
	}
}

func (r *Runner) Catalog() *Catalog { return r.catalog }

// Run executes the selected scenarios, at most runner.parallelism at a time.
// A non-nil error is a configuration error and means nothing ran; scenario
// failures are reported in the returned report only.
func (r *Runner) Run(ctx context.Context, selection []string) (*report.Report, error) {
	scenarios, err := r.resolve(selection)
	if err != nil {
		return nil, err
	}
	return r.RunScenarios(ctx, scenarios), nil
}

// Check reports the configuration error Run would return for selection.
func (r *Runner) Check(selection []string) error {
	_, err := r.resolve(selection)
	return err
}

func (r *Runner) resolve(selection []string) ([]Scenario, error) {
	scenarios, err := r.catalog.Select(selection)
	if err != nil {
		return nil, err
	}
	for _, sc := range scenarios {
		if err := r.reg.Require(sc.Selectors...); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Label, err)
		}
	}
	return scenarios, nil
}

// RunScenarios executes scenarios that are already resolved.
func (r *Runner) RunScenarios(ctx context.Context, scenarios []Scenario) *report.Report {
	rep := report.New(r.target.BaseURL, r.cfg.Strict)
	r.logger.Info("Starting run",
		zap.String("run_id", rep.RunID.String()),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("parallelism", r.parallelism()))

	results := make([]report.Result, len(scenarios))
	// Scenario failures are recorded, never returned, so one failure
	// cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(r.parallelism())
	for i, sc := range scenarios {
		g.Go(func() error {
			results[i] = r.runOne(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	rep.Results = results
	rep.FinishedAt = time.Now()

	counts := rep.Counts()
	r.logger.Info("Run finished",
		zap.String("run_id", rep.RunID.String()),
		zap.Int("passed", counts[report.StatusPassed]),
		zap.Int("failed", counts[report.StatusFailed]),
		zap.Int("needs_clarification", counts[report.StatusNeedsClarification]),
		zap.Duration("duration", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep
}

func (r *Runner) parallelism() int {
	if r.cfg.Parallelism < 1 {
		return 1
	}
	return r.cfg.Parallelism
}

func (r *Runner) runOne(runCtx context.Context, sc Scenario) (res report.Result) {
	start := time.Now()
	log := r.logger.With(zap.String("label", sc.Label))
	res = report.Result{Label: sc.Label, Title: sc.Title, Tags: sc.Tags, Status: report.StatusRunning}
	defer func() {
		res.Duration = time.Since(start)
		log.Info("Scenario finished", zap.String("status", string(res.Status)), zap.Duration("duration", res.Duration))
	}()

	ctx := runCtx
	if r.cfg.ScenarioTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(runCtx, r.cfg.ScenarioTimeout)
		defer cancel()
	}

	log.Debug("Scenario starting")
	p, closePage, err := r.opener.OpenPage(ctx)
	if err != nil {
		res.Status = report.StatusFailed
		res.FailedStep = setupStep
		res.Error = err.Error()
		res.Steps = []report.Step{{Name: setupStep, Status: report.StatusFailed, Error: err.Error()}}
		return res
	}
	defer closePage()

	sess := &Session{
		Page:       p,
		Expect:     expect.New(p, expect.Poller{Timeout: r.cfg.AssertTimeout, Interval: r.cfg.PollInterval}),
		Selectors:  r.reg,
		Users:      r.users,
		Target:     r.target,
		Fixtures:   r.fixtures,
		Messages:   r.messages,
		StayWindow: r.cfg.StayWindow,
		Logger:     log,
	}

	err = r.execute(ctx, sc, sess, log)
	res.Steps, res.Observations = sess.recorded()

	if err == nil {
		res.Status = report.StatusPassed
		return res
	}

	var clarification *ClarificationError
	if errors.As(err, &clarification) {
		res.Status = report.StatusNeedsClarification
		res.Clarification = clarification.Reason
		res.ConflictsWith = mergeLabels(sc.ConflictsWith, clarification.ConflictsWith)
		res.FinalURL = r.currentURL(runCtx, p)
		return res
	}

	res.Status = report.StatusFailed
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil && runCtx.Err() == nil {
		err = fmt.Errorf("scenario timed out after %s: %w", r.cfg.ScenarioTimeout, err)
	}
	classify(err, &res)
	if res.FailedStep == "" {
		res.FailedStep = sess.currentStep()
	}
	r.diagnose(runCtx, p, &res, log)
	return res
}

// execute runs the body, turning a panic into a failure of this scenario.
func (r *Runner) execute(ctx context.Context, sc Scenario, sess *Session, log *zap.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Scenario panicked", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			step := sess.currentStep()
			sess.mu.Lock()
			sess.steps = append(sess.steps, report.Step{Name: step, Status: report.StatusFailed, Error: fmt.Sprint(rec)})
			sess.mu.Unlock()
			err = &StepError{Step: step, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	return sc.Run(ctx, sess)
}

type selectorQuerier interface {
	SelectorQuery() string
}

// classify copies what the error chain knows about the failure into res.
func classify(err error, res *report.Result) {
	res.Error = err.Error()

	var stepErr *StepError
	if errors.As(err, &stepErr) {
		res.FailedStep = stepErr.Step
	}

	var assertErr *expect.AssertionError
	if errors.As(err, &assertErr) {
		res.Expected = assertErr.Expected
		res.Observed = assertErr.Observed
	}

	var fieldErr *form.FieldError
	var querier selectorQuerier
	switch {
	case errors.As(err, &fieldErr):
		res.Selector = fieldErr.Selector
	case errors.As(err, &querier):
		res.Selector = querier.SelectorQuery()
	}
}

func (r *Runner) currentURL(runCtx context.Context, p page.Page) string {
	if runCtx.Err() != nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(runCtx, diagnoseTimeout)
	defer cancel()
	url, err := p.URL(ctx)
	if err != nil {
		return ""
	}
	return url
}

// diagnose attaches the final URL and a simplified DOM snapshot.
func (r *Runner) diagnose(runCtx context.Context, p page.Page, res *report.Result, log *zap.Logger) {
	if runCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(runCtx, diagnoseTimeout)
	defer cancel()

	res.FinalURL = r.currentURL(runCtx, p)

	markup, err := p.HTML(ctx)
	if err != nil {
		log.Debug("Could not capture page HTML", zap.Error(err))
		return
	}
	snapshot, err := dom.Simplify(markup, snapshotBytes)
	if err != nil {
		log.Debug("Could not simplify page HTML", zap.Error(err))
		return
	}
	res.Snapshot = snapshot
}

func mergeLabels(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, label := range append(append([]string(nil), a...), b...) {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}
