// Package scenario runs labelled browser scenarios, each in its own browser
// context, and collects their outcomes into a report.
package scenario

import (
	"context"
	"fmt"
	"strings"
)

// Func is a scenario body. It acts on the session's page through named steps.
type Func func(ctx context.Context, s *Session) error

// Scenario is one executable check addressable by a stable label.
type Scenario struct {
	Label string
	Title string
	Tags  []string
	// Selectors lists the logical selector names the body uses. They are
	// resolved before any scenario starts.
	Selectors []string
	// ConflictsWith names scenarios whose expectations contradict this one.
	ConflictsWith []string
	Run           Func
}

// HasTag reports whether tag (without the leading @) applies. Every scenario
// is implicitly tagged with its lower-cased label.
func (s Scenario) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimPrefix(tag, "@"))
	if tag == strings.ToLower(s.Label) {
		return true
	}
	for _, t := range s.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

// StepError wraps the failure of a named step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ClarificationError ends a scenario whose intended outcome is undecided.
// The scenario reports what it observed instead of passing or failing.
type ClarificationError struct {
	Reason        string
	ConflictsWith []string
}

func (e *ClarificationError) Error() string {
	if len(e.ConflictsWith) == 0 {
		return "needs clarification: " + e.Reason
	}
	return fmt.Sprintf("needs clarification: %s (conflicts with %s)", e.Reason, strings.Join(e.ConflictsWith, ", "))
}

// NeedsClarification returns a ClarificationError.
func NeedsClarification(reason string, conflictsWith ...string) error {
	return &ClarificationError{Reason: reason, ConflictsWith: conflictsWith}
}
