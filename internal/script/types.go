// Package script loads scenarios declared as YAML action lists, so new
// checks can be added against the same selector registry without
// recompiling.
package script

import "time"

// Action type constants
type ActionType string

const (
	ActionNavigate  ActionType = "navigate"
	ActionWaitDelay ActionType = "wait_delay"
	ActionClick     ActionType = "click"
	ActionFill      ActionType = "fill"
	ActionSelect    ActionType = "select"
	ActionCheck     ActionType = "check"

	// Compound actions over the form helper.
	ActionFillSignup ActionType = "fill_signup"
	ActionLogin      ActionType = "login"

	ActionExpectURL     ActionType = "expect_url"
	ActionStayOnURL     ActionType = "stay_on_url"
	ActionExpectVisible ActionType = "expect_visible"
	ActionExpectText    ActionType = "expect_text"
	ActionExpectValue   ActionType = "expect_value"
	ActionExpectChecked ActionType = "expect_checked"

	// ActionClarify ends the scenario as needing product clarification.
	ActionClarify ActionType = "clarify"
)

// Action is one declared step. Selector is a logical selector name; Query is
// a raw CSS query for markup the registry does not cover. At most one of the
// two is set.
type Action struct {
	Type     ActionType    `yaml:"type" json:"type"`
	Name     string        `yaml:"name,omitempty" json:"name,omitempty"`
	Selector string        `yaml:"selector,omitempty" json:"selector,omitempty"`
	Query    string        `yaml:"query,omitempty" json:"query,omitempty"`
	Value    string        `yaml:"value,omitempty" json:"value,omitempty"`
	User     string        `yaml:"user,omitempty" json:"user,omitempty"` // "new" or "existing"
	Terms    *bool         `yaml:"terms,omitempty" json:"terms,omitempty"`
	Window   time.Duration `yaml:"window,omitempty" json:"window,omitempty"`
}

// Script is a scenario declared in a file.
type Script struct {
	Label         string   `yaml:"label" json:"label"`
	Title         string   `yaml:"title" json:"title"`
	Tags          []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	ConflictsWith []string `yaml:"conflicts_with,omitempty" json:"conflicts_with,omitempty"`
	Steps         []Action `yaml:"steps" json:"steps"`

	// Source is the file the script was read from.
	Source string `yaml:"-" json:"source,omitempty"`
}
