package suite

import (
	"context"
	"testing"
	"time"

	"github.com/copyleftdev/authscry/internal/auth"
	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/page/mocks"
	"github.com/copyleftdev/authscry/internal/report"
	"github.com/copyleftdev/authscry/internal/scenario"
	"github.com/copyleftdev/authscry/internal/selectors"
	"github.com/copyleftdev/authscry/internal/userdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	baseURL    = "http://app.test"
	totpSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
)

var q = selectors.Defaults()

// app models the signup and login pages of the application.
type app struct {
	// conflictBlocks keeps a known account on the signup page on every
	// submit. Otherwise the second submit goes through.
	conflictBlocks bool
	termsToast     bool
	twoFactor      bool
	// termsLeaves shows the terms toast and then navigates home anyway.
	termsLeaves bool
	// conflictChanges answers a resubmitted known account with a
	// different message while staying on signup.
	conflictChanges bool
}

func (a app) page() *mocks.FakePage {
	p := mocks.NewFakePage()
	p.Routes[baseURL+"/auth/signup"] = a.signup
	p.Routes[baseURL+"/auth/login"] = a.login
	p.OnClick[q[selectors.Submit]] = a.submit
	return p
}

func (a app) signup(p *mocks.FakePage) {
	p.Add("h2", &mocks.Element{Text: "Create your account"})
	for _, name := range []string{selectors.FirstName, selectors.LastName, selectors.Email, selectors.Password, selectors.Phone} {
		p.Add(q[name], &mocks.Element{})
	}
	p.Add(q[selectors.CountryCode], &mocks.Element{Value: "+1", Options: []string{"+1", "+91"}})
	p.Add(q[selectors.AgreeToTerms], &mocks.Element{})
	p.Add(q[selectors.ContinueButton], &mocks.Element{Text: "Accept and Continue"})
	p.Add(q[selectors.Toast], &mocks.Element{Hidden: true})
}

func (a app) login(p *mocks.FakePage) {
	p.Add(q[selectors.Email], &mocks.Element{})
	p.Add(q[selectors.Password], &mocks.Element{})
	p.Add(q[selectors.Submit], &mocks.Element{Text: "Sign in"})
}

func (a app) home(p *mocks.FakePage) {
	p.SetURL(baseURL + "/")
	p.Reset()
	p.Banner("Welcome, Existing")
}

func toast(p *mocks.FakePage, text string) {
	el := p.Element(q[selectors.Toast])
	el.Hidden = false
	el.Text = text
}

func (a app) submit(p *mocks.FakePage) {
	switch p.Location() {
	case baseURL + "/auth/login":
		if otp := p.Element(q[selectors.OTP]); otp != nil {
			if ok, _ := auth.ValidateTOTP(otp.Value, totpSecret); ok {
				a.home(p)
			}
			return
		}
		if p.Element(q[selectors.Email]).Value != "existing.user@example.com" || p.Element(q[selectors.Password]).Value != "Test@1234" {
			return
		}
		if a.twoFactor {
			p.Add(q[selectors.OTP], &mocks.Element{})
			return
		}
		a.home(p)

	case baseURL + "/auth/signup":
		value := func(name string) string { return p.Element(q[name]).Value }
		if !p.Element(q[selectors.AgreeToTerms]).Checked {
			if a.termsToast || a.termsLeaves {
				toast(p, "Please agree to the Terms of Service and Privacy Policy")
			}
			if a.termsLeaves {
				p.SetURL(baseURL + "/")
			}
			return
		}
		if value(selectors.FirstName) == "" || value(selectors.Email) == "" {
			return
		}
		if value(selectors.Email) == "existing.user@example.com" || value(selectors.Phone) == "9876543210" {
			shown := !p.Element(q[selectors.Toast]).Hidden
			if shown && a.conflictChanges {
				toast(p, "Account created, check your inbox")
				return
			}
			if shown && !a.conflictBlocks {
				p.SetURL(baseURL + "/onboarding")
				return
			}
			toast(p, "Email/phone in use")
			return
		}
		p.SetURL(baseURL + "/auth/verify")
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Target: config.TargetConfig{BaseURL: baseURL, SignupPath: "/auth/signup", LoginPath: "/auth/login", HomePath: "/"},
		Runner: config.RunnerConfig{
			AssertTimeout:   150 * time.Millisecond,
			PollInterval:    10 * time.Millisecond,
			ScenarioTimeout: 5 * time.Second,
			StayWindow:      40 * time.Millisecond,
			Parallelism:     4,
		},
		Generator: config.GeneratorConfig{
			EmailPrefix: "test.user", EmailDomain: "example.com", Password: "Test@1234",
			CountryCode: "+91", PhoneDigits: 10,
		},
		Fixtures: config.FixturesConfig{ExistingUser: config.ExistingUser{
			FirstName: "Existing", LastName: "User", Email: "existing.user@example.com",
			Password: "Test@1234", Phone: "9876543210", CountryCode: "+91", GreetingName: "Existing",
		}},
		Messages: config.MessagesConfig{
			SignupHeading: "(?i)create your account",
			TermsToast:    "Please agree to the Terms of Service and Privacy Policy",
			ConflictToast: "(?i)email/phone in use",
			Greeting:      "Welcome, %s",
		},
	}
}

func run(t *testing.T, cfg *config.Config, a app, selection ...string) *report.Report {
	t.Helper()
	reg, err := selectors.New(nil)
	require.NoError(t, err)
	users, err := userdata.NewGenerator(cfg.Generator)
	require.NoError(t, err)

	opener := &mocks.FakeOpener{New: a.page}
	r := scenario.NewRunner(cfg, NewCatalog(), opener, reg, users, zap.NewNop())
	rep, err := r.Run(context.Background(), selection)
	require.NoError(t, err)
	return rep
}

func status(t *testing.T, rep *report.Report, label string) report.Result {
	t.Helper()
	res, ok := rep.Result(label)
	require.True(t, ok, "no result for %s", label)
	return res
}

func TestCatalogLabels(t *testing.T) {
	var got []string
	for _, sc := range NewCatalog().All() {
		got = append(got, sc.Label)
	}
	assert.Equal(t, []string{
		"SIGNUP-000", "SIGNUP-001", "SIGNUP-002", "SIGNUP-003", "SIGNUP-004",
		"SIGNUP-005", "SIGNUP-006", "SIGNUP-007", "FIELDS-001", "LOGIN-001",
	}, got)

	assert.Error(t, Register(NewCatalog()), "registering twice must collide")
	assert.NoError(t, Register(scenario.NewCatalog()))
}

func TestSuite_ConformingApplication(t *testing.T) {
	rep := run(t, testConfig(), app{conflictBlocks: true, termsToast: true})

	for _, res := range rep.Results {
		if res.Label == "SIGNUP-006" {
			continue
		}
		assert.Equal(t, report.StatusPassed, res.Status, "%s failed at %q: %s", res.Label, res.FailedStep, res.Error)
	}

	unclear := status(t, rep, "SIGNUP-006")
	assert.Equal(t, report.StatusNeedsClarification, unclear.Status)
	assert.Equal(t, []string{"SIGNUP-004"}, unclear.ConflictsWith)
	assert.Equal(t, "false", unclear.Observations["left_signup"])
	assert.Equal(t, baseURL+"/auth/signup", unclear.Observations["resubmit_url"])
	assert.Equal(t, "true", unclear.Observations["resubmit_toast_visible"])

	assert.True(t, rep.Passed())
	rep.Strict = true
	assert.False(t, rep.Passed())
}

func TestSuite_ConflictOnlyWarns(t *testing.T) {
	rep := run(t, testConfig(), app{conflictBlocks: false, termsToast: true}, "@conflict")
	require.Len(t, rep.Results, 2)

	blocked := status(t, rep, "SIGNUP-004")
	assert.Equal(t, report.StatusFailed, blocked.Status)
	assert.Equal(t, "expect to still be on signup", blocked.FailedStep)
	assert.Contains(t, blocked.Observed, "/onboarding")
	assert.Equal(t, baseURL+"/onboarding", blocked.FinalURL)

	unclear := status(t, rep, "SIGNUP-006")
	assert.Equal(t, report.StatusNeedsClarification, unclear.Status)
	assert.Equal(t, "true", unclear.Observations["left_signup"])
}

func TestSuite_MissingTermsToast(t *testing.T) {
	rep := run(t, testConfig(), app{conflictBlocks: true}, "SIGNUP-003", "SIGNUP-007")

	res := status(t, rep, "SIGNUP-003")
	assert.Equal(t, report.StatusFailed, res.Status)
	assert.Equal(t, "expect terms toast", res.FailedStep)
	assert.Contains(t, res.Expected, "Please agree to the Terms")
	assert.Contains(t, res.Snapshot, "Accept and Continue")

	assert.Equal(t, report.StatusPassed, status(t, rep, "SIGNUP-007").Status)
	assert.False(t, rep.Passed())
}

func TestSuite_TermsToastThenRedirect(t *testing.T) {
	rep := run(t, testConfig(), app{conflictBlocks: true, termsLeaves: true}, "SIGNUP-003")

	res := status(t, rep, "SIGNUP-003")
	assert.Equal(t, report.StatusFailed, res.Status)
	assert.Equal(t, "expect to stay on signup", res.FailedStep)
	assert.Contains(t, res.Observed, baseURL+"/")
	assert.Equal(t, baseURL+"/", res.FinalURL)
}

func TestSuite_ConflictResubmitChangesMessage(t *testing.T) {
	rep := run(t, testConfig(), app{conflictBlocks: true, termsToast: true, conflictChanges: true}, "SIGNUP-004")

	res := status(t, rep, "SIGNUP-004")
	assert.Equal(t, report.StatusFailed, res.Status)
	assert.Equal(t, "expect in-use toast again", res.FailedStep)
	assert.Contains(t, res.Observed, "Account created")
}

func TestSuite_LoginWithTwoFactor(t *testing.T) {
	cfg := testConfig()
	cfg.Fixtures.ExistingUser.TOTPSecret = totpSecret
	rep := run(t, cfg, app{twoFactor: true}, "@login")

	res := status(t, rep, "LOGIN-001")
	assert.Equal(t, report.StatusPassed, res.Status, "failed at %q: %s", res.FailedStep, res.Error)
	var names []string
	for _, step := range res.Steps {
		names = append(names, step.Name)
	}
	assert.Contains(t, names, "enter one-time code")
}

func TestSuite_LoginWrongGreeting(t *testing.T) {
	cfg := testConfig()
	cfg.Fixtures.ExistingUser.GreetingName = "Somebody"
	rep := run(t, cfg, app{}, "LOGIN-001")

	res := status(t, rep, "LOGIN-001")
	assert.Equal(t, report.StatusFailed, res.Status)
	assert.Equal(t, "expect greeting", res.FailedStep)
	assert.Contains(t, res.Expected, "Welcome, Somebody")
	assert.Contains(t, res.Observed, "Welcome, Existing")
}

func TestSuite_SelectorOverrideBreaksOnlyRegistryScenarios(t *testing.T) {
	cfg := testConfig()
	reg, err := selectors.New(map[string]string{"agreetoterms": "#terms"})
	require.NoError(t, err)
	users, err := userdata.NewGenerator(cfg.Generator)
	require.NoError(t, err)

	r := scenario.NewRunner(cfg, NewCatalog(), &mocks.FakeOpener{New: app{conflictBlocks: true, termsToast: true}.page}, reg, users, zap.NewNop())
	rep, err := r.Run(context.Background(), []string{"SIGNUP-001", "FIELDS-001"})
	require.NoError(t, err)

	overridden := status(t, rep, "SIGNUP-001")
	assert.Equal(t, report.StatusFailed, overridden.Status)
	assert.Contains(t, overridden.Expected, "#terms")

	assert.Equal(t, report.StatusPassed, status(t, rep, "FIELDS-001").Status)
}
