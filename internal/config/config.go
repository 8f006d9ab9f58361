package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Target    TargetConfig      `mapstructure:"target"`
	Browser   BrowserConfig     `mapstructure:"browser"`
	Runner    RunnerConfig      `mapstructure:"runner"`
	Generator GeneratorConfig   `mapstructure:"generator"`
	Fixtures  FixturesConfig    `mapstructure:"fixtures"`
	Messages  MessagesConfig    `mapstructure:"messages"`
	Selectors map[string]string `mapstructure:"selectors"` // logical name -> CSS query, merged over defaults
	Log       LogConfig         `mapstructure:"log"`
	Server    ServerConfig      `mapstructure:"server"`
	Security  SecurityConfig    `mapstructure:"security"`
}

// TargetConfig locates the application under test.
type TargetConfig struct {
	BaseURL    string `mapstructure:"baseURL"`
	LoginPath  string `mapstructure:"loginPath"`
	SignupPath string `mapstructure:"signupPath"`
	HomePath   string `mapstructure:"homePath"`
}

// URL joins path onto the base URL.
func (t TargetConfig) URL(path string) string {
	return strings.TrimRight(t.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

type BrowserConfig struct {
	ExecutablePath  string        `mapstructure:"executablePath"`
	Headless        bool          `mapstructure:"headless"`
	UserDataDir     string        `mapstructure:"userDataDir"`
	ActionTimeout   time.Duration `mapstructure:"actionTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	MaxSessions     int           `mapstructure:"maxSessions"`
}

type RunnerConfig struct {
	AssertTimeout   time.Duration `mapstructure:"assertTimeout"`
	PollInterval    time.Duration `mapstructure:"pollInterval"`
	ScenarioTimeout time.Duration `mapstructure:"scenarioTimeout"`
	StayWindow      time.Duration `mapstructure:"stayWindow"` // how long "stays on page" checks must hold
	Parallelism     int           `mapstructure:"parallelism"`
	Strict          bool          `mapstructure:"strict"` // treat needs_clarification as failure
	Scripts         []string      `mapstructure:"scripts"` // globs of YAML scenario files
}

type GeneratorConfig struct {
	EmailPrefix    string         `mapstructure:"emailPrefix"`
	EmailDomain    string         `mapstructure:"emailDomain"`
	Password       string         `mapstructure:"password"`
	CountryCode    string         `mapstructure:"countryCode"`
	PhoneDigits    int            `mapstructure:"phoneDigits"`
	PasswordPolicy PasswordPolicy `mapstructure:"passwordPolicy"`
}

// PasswordPolicy mirrors the complexity rules the application enforces.
type PasswordPolicy struct {
	MinLength      int  `mapstructure:"minLength"`
	RequireUpper   bool `mapstructure:"requireUpper"`
	RequireLower   bool `mapstructure:"requireLower"`
	RequireDigit   bool `mapstructure:"requireDigit"`
	RequireSpecial bool `mapstructure:"requireSpecial"`
}

type FixturesConfig struct {
	ExistingUser ExistingUser `mapstructure:"existingUser"`
}

// ExistingUser is an account the application already knows about.
type ExistingUser struct {
	FirstName    string `mapstructure:"firstName"`
	LastName     string `mapstructure:"lastName"`
	Email        string `mapstructure:"email"`
	Password     string `mapstructure:"password"`
	Phone        string `mapstructure:"phone"`
	CountryCode  string `mapstructure:"countryCode"`
	GreetingName string `mapstructure:"greetingName"` // name shown in "Welcome, <name>"
	TOTPSecret   string `mapstructure:"totpSecret"`
}

// MessagesConfig is the feedback the application is expected to show.
type MessagesConfig struct {
	SignupHeading string `mapstructure:"signupHeading"` // regexp
	TermsToast    string `mapstructure:"termsToast"`    // substring of the page text
	ConflictToast string `mapstructure:"conflictToast"` // regexp
	Greeting      string `mapstructure:"greeting"`      // format verb %s takes the greeting name
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // console, json
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	ApiKey         string   `mapstructure:"apiKey"`
}

// ConfigError reports a setting that makes the run impossible. It is fatal
// and is raised before any scenario executes.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.baseURL", "") // Required, set via file or AUTHSCRY_TARGET_BASEURL
	v.SetDefault("target.loginPath", "/auth/login")
	v.SetDefault("target.signupPath", "/auth/signup")
	v.SetDefault("target.homePath", "/")

	v.SetDefault("browser.executablePath", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.userDataDir", "")
	v.SetDefault("browser.actionTimeout", "10s")
	v.SetDefault("browser.shutdownTimeout", "10s")
	v.SetDefault("browser.maxSessions", 4)

	v.SetDefault("runner.assertTimeout", "5s")
	v.SetDefault("runner.pollInterval", "100ms")
	v.SetDefault("runner.scenarioTimeout", "60s")
	v.SetDefault("runner.stayWindow", "2s")
	v.SetDefault("runner.parallelism", 4)
	v.SetDefault("runner.strict", false)
	v.SetDefault("runner.scripts", []string{})

	v.SetDefault("generator.emailPrefix", "test.user")
	v.SetDefault("generator.emailDomain", "skysecure.ai")
	v.SetDefault("generator.password", "Test@1234")
	v.SetDefault("generator.countryCode", "+91")
	v.SetDefault("generator.phoneDigits", 10)
	v.SetDefault("generator.passwordPolicy.minLength", 8)
	v.SetDefault("generator.passwordPolicy.requireUpper", true)
	v.SetDefault("generator.passwordPolicy.requireLower", true)
	v.SetDefault("generator.passwordPolicy.requireDigit", true)
	v.SetDefault("generator.passwordPolicy.requireSpecial", true)

	v.SetDefault("fixtures.existingUser.firstName", "Existing")
	v.SetDefault("fixtures.existingUser.lastName", "User")
	v.SetDefault("fixtures.existingUser.email", "existing.user@skysecure.ai")
	v.SetDefault("fixtures.existingUser.password", "Test@1234")
	v.SetDefault("fixtures.existingUser.phone", "9876543210")
	v.SetDefault("fixtures.existingUser.countryCode", "+91")
	v.SetDefault("fixtures.existingUser.greetingName", "Existing")
	v.SetDefault("fixtures.existingUser.totpSecret", "")

	v.SetDefault("messages.signupHeading", "(?i)create your account")
	// Some application builds misspell this as "Pleas to the Terms of Service
	// and Privacy Policy"; see authscry.example.yaml.
	v.SetDefault("messages.termsToast", "Please agree to the Terms of Service and Privacy Policy")
	v.SetDefault("messages.conflictToast", "(?i)email/phone in use")
	v.SetDefault("messages.greeting", "Welcome, %s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSize", 50)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAge", 14)
	v.SetDefault("log.compress", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "15s")
	v.SetDefault("server.idleTimeout", "60s")

	v.SetDefault("security.allowedOrigins", []string{"*"})
	v.SetDefault("security.apiKey", "")
}

// LoadConfig reads configuration from path (or the default search paths),
// layering AUTHSCRY_* environment variables on top. The result is not
// validated; call Validate before starting a run.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("authscry")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.authscry")
		v.AddConfigPath("/etc/authscry")
	}

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTHSCRY")

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings a run cannot do without.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return &ConfigError{Key: "target.baseURL", Reason: "base URL of the application under test is required"}
	}
	u, err := url.Parse(c.Target.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ConfigError{Key: "target.baseURL", Reason: fmt.Sprintf("%q is not an absolute http(s) URL", c.Target.BaseURL)}
	}

	durations := map[string]time.Duration{
		"browser.actionTimeout":  c.Browser.ActionTimeout,
		"runner.assertTimeout":   c.Runner.AssertTimeout,
		"runner.pollInterval":    c.Runner.PollInterval,
		"runner.scenarioTimeout": c.Runner.ScenarioTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return &ConfigError{Key: key, Reason: "must be a positive duration"}
		}
	}
	if c.Runner.PollInterval > c.Runner.AssertTimeout {
		return &ConfigError{Key: "runner.pollInterval", Reason: "must not exceed runner.assertTimeout"}
	}
	if c.Runner.StayWindow < 0 {
		return &ConfigError{Key: "runner.stayWindow", Reason: "must not be negative"}
	}
	if c.Runner.Parallelism < 1 {
		return &ConfigError{Key: "runner.parallelism", Reason: "must be at least 1"}
	}
	if c.Browser.MaxSessions < 1 {
		return &ConfigError{Key: "browser.maxSessions", Reason: "must be at least 1"}
	}
	for key, pattern := range map[string]string{
		"messages.signupHeading": c.Messages.SignupHeading,
		"messages.conflictToast": c.Messages.ConflictToast,
	} {
		if _, err := regexp.Compile(pattern); err != nil {
			return &ConfigError{Key: key, Reason: err.Error()}
		}
	}
	if strings.Count(c.Messages.Greeting, "%s") != 1 {
		return &ConfigError{Key: "messages.greeting", Reason: "must contain exactly one %s"}
	}
	if c.Messages.TermsToast == "" {
		return &ConfigError{Key: "messages.termsToast", Reason: "must not be empty"}
	}
	if c.Fixtures.ExistingUser.Email == "" || c.Fixtures.ExistingUser.Password == "" {
		return &ConfigError{Key: "fixtures.existingUser", Reason: "email and password are required"}
	}
	return nil
}
