package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authscry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "target:\n  baseURL: http://localhost:3001\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3001", cfg.Target.BaseURL)
	assert.Equal(t, "/auth/signup", cfg.Target.SignupPath)
	assert.Equal(t, 5*time.Second, cfg.Runner.AssertTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Runner.PollInterval)
	assert.Equal(t, "Test@1234", cfg.Generator.Password)
	assert.Equal(t, "existing.user@skysecure.ai", cfg.Fixtures.ExistingUser.Email)
	assert.True(t, cfg.Generator.PasswordPolicy.RequireSpecial)
	assert.Equal(t, "Welcome, %s", cfg.Messages.Greeting)
	assert.Empty(t, cfg.Runner.Scripts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_SelectorOverrides(t *testing.T) {
	body := `
target:
  baseURL: https://staging.example.com
selectors:
  agreeToTerms: "#terms"
`
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)

	// viper lower-cases map keys
	assert.Equal(t, "#terms", cfg.Selectors["agreetoterms"])
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("AUTHSCRY_TARGET_BASEURL", "http://env.example.com")
	t.Setenv("AUTHSCRY_RUNNER_PARALLELISM", "2")

	cfg, err := LoadConfig(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://env.example.com", cfg.Target.BaseURL)
	assert.Equal(t, 2, cfg.Runner.Parallelism)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "authscry.example.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:3001", cfg.Target.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Runner.StayWindow)
	assert.Equal(t, "+91", cfg.Generator.CountryCode)
	assert.Equal(t, "9876543210", cfg.Fixtures.ExistingUser.Phone)
	assert.Equal(t, "Please agree to the Terms of Service and Privacy Policy", cfg.Messages.TermsToast)
	assert.Equal(t, `input[type="checkbox"]`, cfg.Selectors["agreetoterms"])
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "target: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := LoadConfig(writeConfig(t, "target:\n  baseURL: http://localhost:3001\n"))
		require.NoError(t, err)
		return cfg
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{name: "missing base URL", mutate: func(c *Config) { c.Target.BaseURL = "" }, key: "target.baseURL"},
		{name: "relative base URL", mutate: func(c *Config) { c.Target.BaseURL = "/auth" }, key: "target.baseURL"},
		{name: "ftp base URL", mutate: func(c *Config) { c.Target.BaseURL = "ftp://host" }, key: "target.baseURL"},
		{name: "zero assert timeout", mutate: func(c *Config) { c.Runner.AssertTimeout = 0 }, key: "runner.assertTimeout"},
		{name: "poll slower than timeout", mutate: func(c *Config) { c.Runner.PollInterval = time.Minute }, key: "runner.pollInterval"},
		{name: "no parallelism", mutate: func(c *Config) { c.Runner.Parallelism = 0 }, key: "runner.parallelism"},
		{name: "no sessions", mutate: func(c *Config) { c.Browser.MaxSessions = 0 }, key: "browser.maxSessions"},
		{name: "bad conflict pattern", mutate: func(c *Config) { c.Messages.ConflictToast = "(unclosed" }, key: "messages.conflictToast"},
		{name: "greeting without name", mutate: func(c *Config) { c.Messages.Greeting = "Welcome back" }, key: "messages.greeting"},
		{name: "no fixture password", mutate: func(c *Config) { c.Fixtures.ExistingUser.Password = "" }, key: "fixtures.existingUser"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base(t)
			tc.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tc.key, cfgErr.Key)
		})
	}
}

func TestTargetConfig_URL(t *testing.T) {
	target := TargetConfig{BaseURL: "http://localhost:3001/"}
	assert.Equal(t, "http://localhost:3001/auth/login", target.URL("/auth/login"))
	assert.Equal(t, "http://localhost:3001/", target.URL("/"))
}
