// Package mcp wraps run reports in model-context messages so agents can
// consume them alongside page content.
package mcp

import (
	"time"
)

const MCPVersion = "2025-03-26"

type Message struct {
	MCPVersion string  `json:"mcp_version"`
	Context    Context `json:"context"`
	RequestID  string  `json:"request_id,omitempty"`
	RunID      string  `json:"run_id,omitempty"`
}

type Context struct {
	Metadata Metadata `json:"metadata"`
	Actors   []Actor  `json:"actors,omitempty"`
	Content  Content  `json:"content"`
	ParentID string   `json:"parent_id,omitempty"`
	Schema   string   `json:"schema,omitempty"`
}

type Metadata struct {
	SourceURI string         `json:"source_uri,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Custom    map[string]any `json:"custom,omitempty"`
}

type Actor struct {
	ID     string         `json:"id"`
	Role   string         `json:"role"`
	Custom map[string]any `json:"custom,omitempty"`
}

type Content struct {
	MIMEType string         `json:"mime_type"`
	Data     any            `json:"data"`
	Encoding string         `json:"encoding,omitempty"`
	Custom   map[string]any `json:"custom,omitempty"`
}

func NewBaseMessage(runID string) Message {
	return Message{
		MCPVersion: MCPVersion,
		RunID:      runID,
		Context: Context{
			Metadata: Metadata{
				Timestamp: time.Now().UTC(),
			},
			Actors: []Actor{
				{ID: "authscry-runner", Role: "e2e_scenario_runner"},
			},
		},
	}
}
