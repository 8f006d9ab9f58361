package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/page/mocks"
	"github.com/copyleftdev/authscry/internal/report"
	"github.com/copyleftdev/authscry/internal/scenario"
	"github.com/copyleftdev/authscry/internal/selectors"
	"github.com/copyleftdev/authscry/internal/userdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const baseURL = "http://app.test"

const scripts = `
label: SCRIPT-001
title: signup keeps a generated email
tags: [signup]
steps:
  - type: navigate
    value: /auth/signup
  - type: fill_signup
    terms: true
  - type: expect_value
    selector: email
    value: "{{user.email}}"
  - type: expect_checked
    selector: agreeToTerms
  - name: stays put
    type: stay_on_url
    value: /auth/signup
    window: 20ms
---
label: SCRIPT-002
title: banner text
conflicts_with: [SIGNUP-004]
steps:
  - type: navigate
    value: /auth/signup
  - type: expect_text
    value: Create your account
  - type: expect_text
    query: h2
    value: (?i)^create
  - type: clarify
    value: is the banner final copy?
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParse(t *testing.T) {
	parsed, err := Parse([]byte(scripts), "inline.yaml")
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	assert.Equal(t, "SCRIPT-001", parsed[0].Label)
	assert.Equal(t, "inline.yaml", parsed[0].Source)
	require.Len(t, parsed[0].Steps, 5)
	assert.Equal(t, ActionFillSignup, parsed[0].Steps[1].Type)
	require.NotNil(t, parsed[0].Steps[1].Terms)
	assert.True(t, *parsed[0].Steps[1].Terms)
	assert.Equal(t, 20*time.Millisecond, parsed[0].Steps[4].Window)
	assert.Equal(t, []string{"SIGNUP-004"}, parsed[1].ConflictsWith)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("label: X-001\nsteeps: []\n"), "typo.yaml")
	assert.Error(t, err)
}

func TestScenario_CompileErrors(t *testing.T) {
	testCases := []struct {
		name   string
		action Action
	}{
		{"navigate without value", Action{Type: ActionNavigate}},
		{"bad delay", Action{Type: ActionWaitDelay, Value: "soon"}},
		{"click without target", Action{Type: ActionClick}},
		{"fill with selector and query", Action{Type: ActionFill, Selector: "email", Query: "#email", Value: "x"}},
		{"bad checked value", Action{Type: ActionCheck, Selector: "agreeToTerms", Value: "maybe"}},
		{"unknown user", Action{Type: ActionFillSignup, User: "admin"}},
		{"bad url pattern", Action{Type: ActionExpectURL, Value: "("}},
		{"clarify without reason", Action{Type: ActionClarify}},
		{"unknown type", Action{Type: "hover", Selector: "email"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Script{Label: "X-001", Steps: []Action{tc.action}}.Scenario()
			assert.Error(t, err)
		})
	}

	_, err := Script{Label: "X-001"}.Scenario()
	assert.Error(t, err)
}

func TestScenario_CollectsSelectors(t *testing.T) {
	sc, err := Script{Label: "X-001", Steps: []Action{
		{Type: ActionFill, Selector: "password", Value: "x"},
		{Type: ActionClick, Query: "#go"},
		{Type: ActionFill, Selector: "email", Value: "{{existing.email}}"},
		{Type: ActionExpectValue, Selector: "email", Value: "x"},
	}}.Scenario()
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "password"}, sc.Selectors)
	assert.Contains(t, sc.Tags, "script")
}

func TestBindings(t *testing.T) {
	b := bindings{
		user:     userdata.UserRecord{Email: "new@example.com"},
		existing: userdata.UserRecord{Email: "old@example.com", Phone: "9876543210"},
		secret:   "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
	}
	got, err := b.resolve("{{user.email}} / {{existing.phone}}")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com / 9876543210", got)

	code, err := b.resolve("{{totp}}")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	_, err = bindings{}.resolve("{{totp}}")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b.yaml", scripts)
	writeScript(t, dir, "a.yml", "label: AAA-001\nsteps:\n  - type: navigate\n    value: /\n")

	loaded, err := Load(filepath.Join(dir, "*.y*ml"))
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "AAA-001", loaded[0].Label)

	_, err = Load(filepath.Join(dir, "missing-*.yaml"))
	assert.Error(t, err)

	assert.True(t, IsScriptPath("checks/signup.YAML"))
	assert.False(t, IsScriptPath("SIGNUP-003"))
}

func TestRegister_RunsAgainstPage(t *testing.T) {
	parsed, err := Parse([]byte(scripts), "inline.yaml")
	require.NoError(t, err)

	catalog := scenario.NewCatalog()
	require.NoError(t, Register(catalog, parsed))
	assert.Error(t, Register(catalog, parsed), "labels collide on second registration")

	q := selectors.Defaults()
	opener := &mocks.FakeOpener{New: func() *mocks.FakePage {
		p := mocks.NewFakePage()
		p.Routes[baseURL+"/auth/signup"] = func(p *mocks.FakePage) {
			p.Add("h2", &mocks.Element{Text: "Create your account"})
			for _, name := range []string{selectors.FirstName, selectors.LastName, selectors.Email, selectors.Password, selectors.Phone, selectors.AgreeToTerms} {
				p.Add(q[name], &mocks.Element{})
			}
			p.Add(q[selectors.CountryCode], &mocks.Element{Options: []string{"+91"}})
		}
		return p
	}}

	cfg := &config.Config{
		Target: config.TargetConfig{BaseURL: baseURL},
		Runner: config.RunnerConfig{AssertTimeout: 100 * time.Millisecond, PollInterval: 5 * time.Millisecond, ScenarioTimeout: 5 * time.Second, Parallelism: 2},
		Generator: config.GeneratorConfig{
			EmailPrefix: "test.user", EmailDomain: "example.com", Password: "Test@1234", CountryCode: "+91", PhoneDigits: 10,
		},
	}
	reg, err := selectors.New(nil)
	require.NoError(t, err)
	users, err := userdata.NewGenerator(cfg.Generator)
	require.NoError(t, err)

	rep, err := scenario.NewRunner(cfg, catalog, opener, reg, users, zap.NewNop()).Run(context.Background(), []string{"@script"})
	require.NoError(t, err)

	first, _ := rep.Result("SCRIPT-001")
	assert.Equal(t, report.StatusPassed, first.Status, "failed at %q: %s", first.FailedStep, first.Error)
	assert.Equal(t, "stays put", first.Steps[len(first.Steps)-1].Name)

	second, _ := rep.Result("SCRIPT-002")
	assert.Equal(t, report.StatusNeedsClarification, second.Status, second.Error)
	assert.Equal(t, []string{"SIGNUP-004"}, second.ConflictsWith)
	assert.Equal(t, baseURL+"/auth/signup", second.Observations["url"])
}
