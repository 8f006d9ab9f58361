// Package report holds scenario outcomes and renders them.
package report

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending            Status = "pending"
	StatusRunning            Status = "running"
	StatusPassed             Status = "passed"
	StatusFailed             Status = "failed"
	StatusNeedsClarification Status = "needs_clarification"
)

// Step is one named action or assertion inside a scenario.
type Step struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Result is the outcome of one scenario, keyed by its label.
type Result struct {
	Label    string        `json:"label"`
	Title    string        `json:"title"`
	Tags     []string      `json:"tags,omitempty"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Steps    []Step        `json:"steps,omitempty"`

	// Failure detail.
	FailedStep string `json:"failed_step,omitempty"`
	Selector   string `json:"selector,omitempty"`
	Expected   string `json:"expected,omitempty"`
	Observed   string `json:"observed,omitempty"`
	Error      string `json:"error,omitempty"`
	FinalURL   string `json:"final_url,omitempty"`
	Snapshot   string `json:"dom_snapshot,omitempty"`

	// Set for scenarios whose intended outcome is undecided.
	Clarification string            `json:"clarification,omitempty"`
	ConflictsWith []string          `json:"conflicts_with,omitempty"`
	Observations  map[string]string `json:"observations,omitempty"`
}

// Report is one run over a selection of scenarios.
type Report struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	BaseURL    string    `json:"base_url"`
	Strict     bool      `json:"strict"`
	Results    []Result  `json:"results"`
}

func New(baseURL string, strict bool) *Report {
	return &Report{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		BaseURL:   baseURL,
		Strict:    strict,
	}
}

// Counts tallies results by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Passed reports whether the run should exit zero. Scenarios needing
// clarification only count against the run in strict mode.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPassed:
		case StatusNeedsClarification:
			if r.Strict {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Result returns the result for label.
func (r *Report) Result(label string) (Result, bool) {
	for _, res := range r.Results {
		if res.Label == label {
			return res, true
		}
	}
	return Result{}, false
}
