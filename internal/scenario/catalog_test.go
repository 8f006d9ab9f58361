package scenario

import (
	"context"
	"testing"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *Session) error { return nil }

func labels(scenarios []Scenario) []string {
	out := make([]string, len(scenarios))
	for i, sc := range scenarios {
		out[i] = sc.Label
	}
	return out
}

func testCatalog() *Catalog {
	c := NewCatalog()
	c.MustRegister(
		Scenario{Label: "SIGNUP-000", Tags: []string{"signup"}, Run: noop},
		Scenario{Label: "SIGNUP-001", Tags: []string{"signup", "smoke"}, Run: noop},
		Scenario{Label: "LOGIN-001", Tags: []string{"login", "smoke"}, Run: noop},
	)
	return c
}

func TestCatalog_Register(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Scenario{Label: "signup-003", Run: noop}))

	sc, ok := c.Lookup("SIGNUP-003")
	require.True(t, ok)
	assert.Equal(t, "SIGNUP-003", sc.Label)

	err := c.Register(Scenario{Label: "SIGNUP-003", Run: noop})
	assert.ErrorIs(t, err, ErrDuplicateLabel)

	for _, bad := range []string{"", "SIGNUP", "SIGNUP-3", "-001", "SIGN UP-001"} {
		assert.ErrorIs(t, c.Register(Scenario{Label: bad, Run: noop}), ErrInvalidLabel, bad)
	}
	assert.Error(t, c.Register(Scenario{Label: "SIGNUP-009"}))

	assert.Panics(t, func() { c.MustRegister(Scenario{Label: "SIGNUP-003", Run: noop}) })
}

func TestCatalog_Select(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name  string
		terms []string
		want  []string
	}{
		{"empty selects all", nil, []string{"SIGNUP-000", "SIGNUP-001", "LOGIN-001"}},
		{"label", []string{"login-001"}, []string{"LOGIN-001"}},
		{"tag", []string{"@signup"}, []string{"SIGNUP-000", "SIGNUP-001"}},
		{"label tag", []string{"@signup-001"}, []string{"SIGNUP-001"}},
		{"catalog order and dedup", []string{"LOGIN-001", "@smoke", "SIGNUP-000"}, []string{"SIGNUP-000", "SIGNUP-001", "LOGIN-001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Select(tt.terms)
			require.NoError(t, err)
			assert.Equal(t, tt.want, labels(got))
		})
	}
}

func TestCatalog_SelectUnknown(t *testing.T) {
	_, err := testCatalog().Select([]string{"SIGNUP-000", "@nightly", "SIGNUP-999"})

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "@nightly")
	assert.Contains(t, cfgErr.Reason, "SIGNUP-999")
	assert.NotContains(t, cfgErr.Reason, "SIGNUP-000")
}
