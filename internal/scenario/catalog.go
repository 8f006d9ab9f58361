package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/copyleftdev/authscry/internal/config"
)

var (
	ErrDuplicateLabel = errors.New("duplicate scenario label")
	ErrInvalidLabel   = errors.New("invalid scenario label")
)

// Labels look like SIGNUP-003 or LOGIN-001.
var labelPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*-[0-9]{3}$`)

// Catalog maps labels one-to-one to scenarios and keeps registration order.
type Catalog struct {
	mu      sync.RWMutex
	order   []string
	byLabel map[string]Scenario
}

func NewCatalog() *Catalog {
	return &Catalog{byLabel: make(map[string]Scenario)}
}

// Register adds sc. Labels are unique and case-insensitive.
func (c *Catalog) Register(sc Scenario) error {
	label := strings.ToUpper(strings.TrimSpace(sc.Label))
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, sc.Label)
	}
	if sc.Run == nil {
		return fmt.Errorf("scenario %s has no body", label)
	}
	sc.Label = label

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byLabel[label]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
	}
	c.byLabel[label] = sc
	c.order = append(c.order, label)
	return nil
}

// MustRegister registers scenarios known at compile time and panics on error.
func (c *Catalog) MustRegister(scenarios ...Scenario) {
	for _, sc := range scenarios {
		if err := c.Register(sc); err != nil {
			panic(err)
		}
	}
}

func (c *Catalog) Lookup(label string) (Scenario, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.byLabel[strings.ToUpper(strings.TrimSpace(label))]
	return sc, ok
}

// All returns every scenario in registration order.
func (c *Catalog) All() []Scenario {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Scenario, 0, len(c.order))
	for _, label := range c.order {
		out = append(out, c.byLabel[label])
	}
	return out
}

// Select resolves labels and @tags to scenarios in catalog order. An empty
// selection means every scenario. A term matching nothing is a
// configuration error.
func (c *Catalog) Select(terms []string) ([]Scenario, error) {
	all := c.All()
	if len(terms) == 0 {
		return all, nil
	}

	chosen := make(map[string]bool)
	var unknown []string
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		matched := false
		if strings.HasPrefix(term, "@") {
			for _, sc := range all {
				if sc.HasTag(term) {
					chosen[sc.Label] = true
					matched = true
				}
			}
		} else if sc, ok := c.Lookup(term); ok {
			chosen[sc.Label] = true
			matched = true
		}
		if !matched {
			unknown = append(unknown, term)
		}
	}

	if len(unknown) > 0 {
		return nil, &config.ConfigError{
			Key:    "selection",
			Reason: "no scenario matches " + strings.Join(unknown, ", "),
		}
	}

	out := make([]Scenario, 0, len(chosen))
	for _, sc := range all {
		if chosen[sc.Label] {
			out = append(out, sc)
		}
	}
	return out, nil
}
