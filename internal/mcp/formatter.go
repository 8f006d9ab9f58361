package mcp

import (
	"encoding/json"

	"github.com/copyleftdev/authscry/internal/report"
)

// ReportSchema identifies report payloads in Context.Schema.
const ReportSchema = "authscry/report/v1"

func marshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// FormatReport wraps a finished report. Scenarios needing clarification are
// flagged in the metadata so an agent knows a human decision is pending.
func FormatReport(r *report.Report) ([]byte, error) {
	msg := NewBaseMessage(r.RunID.String())
	msg.Context.Schema = ReportSchema
	msg.Context.Metadata.SourceURI = r.BaseURL

	counts := r.Counts()
	custom := map[string]any{
		"passed":              r.Passed(),
		"strict":              r.Strict,
		"passed_count":        counts[report.StatusPassed],
		"failed_count":        counts[report.StatusFailed],
		"clarification_count": counts[report.StatusNeedsClarification],
	}
	var pending []string
	for _, res := range r.Results {
		if res.Status == report.StatusNeedsClarification {
			pending = append(pending, res.Label)
		}
	}
	if len(pending) > 0 {
		custom["interaction_required"] = "clarification"
		custom["clarification_labels"] = pending
	}
	msg.Context.Metadata.Custom = custom

	msg.Context.Content = Content{
		MIMEType: "application/json",
		Data:     r,
	}
	return marshalMessage(msg)
}

func FormatStatus(runID, statusMsg string, sourceURI string) ([]byte, error) {
	msg := NewBaseMessage(runID)
	msg.Context.Metadata.SourceURI = sourceURI
	msg.Context.Content = Content{
		MIMEType: "text/plain",
		Data:     statusMsg,
	}
	return marshalMessage(msg)
}

func FormatError(runID string, err error, sourceURI string) ([]byte, error) {
	msg := NewBaseMessage(runID)
	msg.Context.Metadata.SourceURI = sourceURI
	msg.Context.Content = Content{
		MIMEType: "application/json",
		Data:     map[string]string{"error": err.Error()},
	}
	return marshalMessage(msg)
}

// FormatSnapshot wraps the simplified DOM captured for a failed scenario.
func FormatSnapshot(runID string, res report.Result) ([]byte, error) {
	msg := NewBaseMessage(runID)
	msg.Context.Metadata.SourceURI = res.FinalURL
	msg.Context.Metadata.Custom = map[string]any{"label": res.Label}
	msg.Context.Content = Content{
		MIMEType: "text/plain",
		Data:     res.Snapshot,
	}
	return marshalMessage(msg)
}
