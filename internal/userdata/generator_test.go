package userdata

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		EmailPrefix: "test.user",
		EmailDomain: "skysecure.ai",
		Password:    "Test@1234",
		CountryCode: "+91",
		PhoneDigits: 10,
		PasswordPolicy: config.PasswordPolicy{
			MinLength:      8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireDigit:   true,
			RequireSpecial: true,
		},
	}
}

func TestGenerate_Shape(t *testing.T) {
	gen, err := NewGenerator(testConfig())
	require.NoError(t, err)

	u := gen.Generate()
	assert.NotEmpty(t, u.FirstName)
	assert.NotEmpty(t, u.LastName)
	assert.True(t, strings.HasPrefix(u.Email, "test.user+"))
	assert.True(t, strings.HasSuffix(u.Email, "@skysecure.ai"))
	assert.Len(t, u.Phone, 10)
	assert.Equal(t, byte('9'), u.Phone[0])
	assert.Equal(t, "Test@1234", u.Password)
	assert.Equal(t, "+91", u.CountryCode)
}

func TestGenerate_ConsecutiveRecordsDiffer(t *testing.T) {
	gen, err := NewGenerator(testConfig())
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		a, b := gen.Generate(), gen.Generate()
		require.NotEqual(t, a.Email, b.Email)
		require.NotEqual(t, a.Phone, b.Phone)
	}
}

func TestGenerate_ConcurrentUnique(t *testing.T) {
	gen, err := NewGenerator(testConfig())
	require.NoError(t, err)

	var mu sync.Mutex
	emails := make(map[string]bool)
	phones := make(map[string]bool)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				u := gen.Generate()
				mu.Lock()
				emails[u.Email] = true
				phones[u.Phone] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, emails, 1600)
	assert.Len(t, phones, 1600)
}

func TestNewGenerator_RejectsWeakPassword(t *testing.T) {
	cfg := testConfig()
	cfg.Password = "test1234"

	_, err := NewGenerator(cfg)
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "generator.password", cfgErr.Key)
}

func TestNewGenerator_RejectsBadCountryCode(t *testing.T) {
	cfg := testConfig()
	cfg.CountryCode = "91"

	_, err := NewGenerator(cfg)
	assert.Error(t, err)
}

func TestCheckPassword(t *testing.T) {
	policy := testConfig().PasswordPolicy

	testCases := []struct {
		password string
		valid    bool
	}{
		{"Test@1234", true},
		{"T@1a", false},
		{"test@1234", false},
		{"TEST@1234", false},
		{"Test@abcd", false},
		{"Test12345", false},
	}
	for _, tc := range testCases {
		t.Run(tc.password, func(t *testing.T) {
			err := CheckPassword(tc.password, policy)
			assert.Equal(t, tc.valid, err == nil, "err: %v", err)
		})
	}

	assert.NoError(t, CheckPassword("abc", config.PasswordPolicy{}))
}

func TestFromFixture(t *testing.T) {
	u := FromFixture(config.ExistingUser{
		FirstName:   "Existing",
		LastName:    "User",
		Email:       "existing.user@skysecure.ai",
		Password:    "Test@1234",
		Phone:       "9876543210",
		CountryCode: "+91",
	})
	assert.Equal(t, "existing.user@skysecure.ai", u.Email)
	assert.Equal(t, "9876543210", u.Phone)
}
