// Package selectors maps logical field names to the CSS queries that locate
// them in the application's rendered markup.
package selectors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/copyleftdev/authscry/internal/config"
)

// Logical names used by the form helper and the scenario suite.
const (
	FirstName      = "firstName"
	LastName       = "lastName"
	Email          = "email"
	Password       = "password"
	Phone          = "phone"
	CountryCode    = "countryCode"
	AgreeToTerms   = "agreeToTerms"
	ContinueButton = "continueButton"
	Submit         = "submit"
	Toast          = "toast"
	Heading        = "heading"
	OTP            = "otp"
)

// ErrUnknownSelector is returned for a logical name with no mapping. It is a
// program or configuration defect, not something a scenario can recover from.
var ErrUnknownSelector = errors.New("unknown selector")

// Defaults match the markup of the signup and login pages.
func Defaults() map[string]string {
	return map[string]string{
		FirstName:      `input[name="firstName"]`,
		LastName:       `input[name="lastName"]`,
		Email:          `input[name="email"]`,
		Password:       `input[name="password"]`,
		Phone:          `input[name="phoneNumber"]`,
		CountryCode:    `select[name="countryCode"]`,
		AgreeToTerms:   `input[name="agreeToTerms"]`,
		ContinueButton: `button[type="submit"]`,
		Submit:         `button[type="submit"]`,
		Toast:          `[role="status"], .Toastify__toast, [data-sonner-toast]`,
		Heading:        `h2`,
		OTP:            `input[autocomplete="one-time-code"], input[name="otp"]`,
	}
}

// Registry is immutable once built and safe for concurrent use.
type Registry struct {
	queries map[string]string
}

// New merges overrides over Defaults. Names are matched case-insensitively
// because viper lower-cases map keys. Every default name must still resolve
// to a non-empty query afterwards.
func New(overrides map[string]string) (*Registry, error) {
	queries := make(map[string]string)
	for name, q := range Defaults() {
		queries[normalize(name)] = q
	}
	for name, q := range overrides {
		queries[normalize(name)] = strings.TrimSpace(q)
	}

	var empty []string
	for name := range Defaults() {
		if queries[normalize(name)] == "" {
			empty = append(empty, name)
		}
	}
	if len(empty) > 0 {
		sort.Strings(empty)
		return nil, &config.ConfigError{
			Key:    "selectors",
			Reason: fmt.Sprintf("no query for %s", strings.Join(empty, ", ")),
		}
	}

	return &Registry{queries: queries}, nil
}

// FromConfig builds the registry from the selectors section.
func FromConfig(cfg *config.Config) (*Registry, error) {
	return New(cfg.Selectors)
}

// Get resolves a logical name.
func (r *Registry) Get(name string) (string, error) {
	q, ok := r.queries[normalize(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSelector, name)
	}
	return q, nil
}

// MustGet is Get for names known at compile time. It panics on a miss.
func (r *Registry) MustGet(name string) string {
	q, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return q
}

// Require reports every name in names that has no mapping.
func (r *Registry) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := r.queries[normalize(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &config.ConfigError{
			Key:    "selectors",
			Reason: fmt.Sprintf("%v: %s", ErrUnknownSelector, strings.Join(missing, ", ")),
		}
	}
	return nil
}

// Names lists the registered logical names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.queries))
	for name := range r.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
