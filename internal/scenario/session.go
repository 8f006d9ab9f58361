package scenario

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/expect"
	"github.com/copyleftdev/authscry/internal/form"
	"github.com/copyleftdev/authscry/internal/page"
	"github.com/copyleftdev/authscry/internal/report"
	"github.com/copyleftdev/authscry/internal/selectors"
	"github.com/copyleftdev/authscry/internal/userdata"
	"go.uber.org/zap"
)

// Step is a named unit of a scenario body.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
}

// Session is everything a scenario body may touch. A session belongs to
// exactly one scenario execution and one isolated page.
type Session struct {
	Page       page.Page
	Expect     *expect.Expect
	Selectors  *selectors.Registry
	Users      *userdata.Generator
	Target     config.TargetConfig
	Fixtures   config.FixturesConfig
	Messages   config.MessagesConfig
	StayWindow time.Duration
	Logger     *zap.Logger

	mu           sync.Mutex
	current      string
	steps        []report.Step
	observations map[string]string
}

// Do runs fn as the step called name and records its outcome.
func (s *Session) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()

	start := time.Now()
	err := fn(ctx)
	step := report.Step{Name: name, Status: report.StatusPassed, Duration: time.Since(start)}

	var clarification *ClarificationError
	switch {
	case err == nil:
	case errors.As(err, &clarification):
		step.Status = report.StatusNeedsClarification
	default:
		step.Status = report.StatusFailed
		step.Error = err.Error()
	}

	s.mu.Lock()
	s.steps = append(s.steps, step)
	s.mu.Unlock()

	s.Logger.Debug("Step finished",
		zap.String("step", name),
		zap.String("status", string(step.Status)),
		zap.Duration("duration", step.Duration))

	if err != nil {
		return &StepError{Step: name, Err: err}
	}
	return nil
}

// Run executes steps in order and stops at the first failure.
func (s *Session) Run(ctx context.Context, steps ...Step) error {
	for _, step := range steps {
		if err := s.Do(ctx, step.Name, step.Do); err != nil {
			return err
		}
	}
	return nil
}

// Sel resolves a logical selector name. Names are checked before the
// scenario starts, so a miss here is a programming error.
func (s *Session) Sel(name string) string {
	return s.Selectors.MustGet(name)
}

// Goto navigates to path under the target base URL.
func (s *Session) Goto(ctx context.Context, path string) error {
	return s.Page.Navigate(ctx, s.Target.URL(path))
}

func (s *Session) URL(ctx context.Context) (string, error) {
	return s.Page.URL(ctx)
}

// NewUser returns a fresh, unique user record.
func (s *Session) NewUser() userdata.UserRecord {
	return s.Users.Generate()
}

// ExistingUser returns the fixture account known to the application.
func (s *Session) ExistingUser() userdata.UserRecord {
	return userdata.FromFixture(s.Fixtures.ExistingUser)
}

func (s *Session) FillSignup(ctx context.Context, u userdata.UserRecord, opts ...form.Option) error {
	return form.FillSignup(ctx, s.Page, s.Selectors, u, opts...)
}

func (s *Session) FillLogin(ctx context.Context, email, password string) error {
	return form.FillLogin(ctx, s.Page, s.Selectors, email, password)
}

// Observe records a fact about the run for the report.
func (s *Session) Observe(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observations == nil {
		s.observations = make(map[string]string)
	}
	s.observations[key] = value
}

func (s *Session) currentStep() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) recorded() ([]report.Step, map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.Step(nil), s.steps...), s.observations
}

// Continue clicks the signup continue button.
func (s *Session) Continue(ctx context.Context) error {
	return form.Continue(ctx, s.Page, s.Selectors)
}

func (s *Session) Submit(ctx context.Context) error {
	return form.Submit(ctx, s.Page, s.Selectors)
}
