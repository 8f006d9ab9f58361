// Package userdata produces synthetic signup records.
package userdata

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/oklog/ulid/v2"
)

// UserRecord is the data a signup form is filled with.
type UserRecord struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"-"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

// FromFixture converts a configured existing account into a record.
func FromFixture(u config.ExistingUser) UserRecord {
	return UserRecord{
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Password:    u.Password,
		Phone:       u.Phone,
		CountryCode: u.CountryCode,
	}
}

var (
	firstNames = []string{"Asha", "Ravi", "Meera", "Karan", "Nisha", "Arjun", "Priya", "Vikram"}
	lastNames  = []string{"Sharma", "Iyer", "Patel", "Reddy", "Menon", "Gupta", "Nair", "Kapoor"}
)

// Generator hands out records whose email and phone do not repeat within a
// process. It keeps no state across runs. Safe for concurrent use.
type Generator struct {
	cfg config.GeneratorConfig

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy

	phoneSeed uint64
	phoneMod  uint64
	counter   atomic.Uint64
}

// NewGenerator validates the configured password against the policy before
// any record is produced.
func NewGenerator(cfg config.GeneratorConfig) (*Generator, error) {
	if cfg.PhoneDigits == 0 {
		cfg.PhoneDigits = 10
	}
	if cfg.PhoneDigits < 4 || cfg.PhoneDigits > 15 {
		return nil, &config.ConfigError{Key: "generator.phoneDigits", Reason: "must be between 4 and 15"}
	}
	if cfg.EmailDomain == "" {
		return nil, &config.ConfigError{Key: "generator.emailDomain", Reason: "required"}
	}
	if cfg.CountryCode == "" || !strings.HasPrefix(cfg.CountryCode, "+") {
		return nil, &config.ConfigError{Key: "generator.countryCode", Reason: fmt.Sprintf("%q is not a +<digits> dialling code", cfg.CountryCode)}
	}
	if err := CheckPassword(cfg.Password, cfg.PasswordPolicy); err != nil {
		return nil, &config.ConfigError{Key: "generator.password", Reason: err.Error()}
	}

	mod := uint64(1)
	for i := 1; i < cfg.PhoneDigits; i++ {
		mod *= 10
	}

	return &Generator{
		cfg:       cfg,
		entropy:   ulid.Monotonic(rand.Reader, 0),
		phoneSeed: uint64(time.Now().UnixMicro()) % mod,
		phoneMod:  mod,
	}, nil
}

// Generate returns a fresh record.
func (g *Generator) Generate() UserRecord {
	n := g.counter.Add(1)

	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy)
	g.mu.Unlock()

	prefix := g.cfg.EmailPrefix
	if prefix == "" {
		prefix = "test.user"
	}

	// Leading 9 keeps the number in the mobile range the form accepts.
	phone := fmt.Sprintf("9%0*d", g.cfg.PhoneDigits-1, (g.phoneSeed+n)%g.phoneMod)

	return UserRecord{
		FirstName:   firstNames[mrand.IntN(len(firstNames))],
		LastName:    lastNames[mrand.IntN(len(lastNames))],
		Email:       fmt.Sprintf("%s+%s@%s", prefix, strings.ToLower(id.String()), g.cfg.EmailDomain),
		Password:    g.cfg.Password,
		Phone:       phone,
		CountryCode: g.cfg.CountryCode,
	}
}

// CheckPassword reports the first policy rule password breaks.
func CheckPassword(password string, policy config.PasswordPolicy) error {
	if len(password) < policy.MinLength {
		return fmt.Errorf("password shorter than %d characters", policy.MinLength)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	switch {
	case policy.RequireUpper && !upper:
		return fmt.Errorf("password needs an upper-case letter")
	case policy.RequireLower && !lower:
		return fmt.Errorf("password needs a lower-case letter")
	case policy.RequireDigit && !digit:
		return fmt.Errorf("password needs a digit")
	case policy.RequireSpecial && !special:
		return fmt.Errorf("password needs a special character")
	}
	return nil
}
