package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteText renders a per-scenario summary followed by failure details.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "LABEL\tSTATUS\tDURATION\tTITLE\n")
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Label, strings.ToUpper(string(res.Status)), res.Duration.Round(time.Millisecond), res.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, res := range r.Results {
		switch res.Status {
		case StatusFailed:
			fmt.Fprintf(w, "\n--- FAIL %s: %s\n", res.Label, res.Title)
			writeField(w, "step", res.FailedStep)
			writeField(w, "selector", res.Selector)
			writeField(w, "expected", res.Expected)
			writeField(w, "observed", res.Observed)
			writeField(w, "error", res.Error)
			writeField(w, "url", res.FinalURL)
		case StatusNeedsClarification:
			fmt.Fprintf(w, "\n--- NEEDS CLARIFICATION %s: %s\n", res.Label, res.Title)
			writeField(w, "question", res.Clarification)
			if len(res.ConflictsWith) > 0 {
				writeField(w, "conflicts with", strings.Join(res.ConflictsWith, ", "))
			}
			for _, k := range sortedKeys(res.Observations) {
				writeField(w, "observed "+k, res.Observations[k])
			}
		}
	}

	counts := r.Counts()
	verdict := "PASS"
	if !r.Passed() {
		verdict = "FAIL"
	}
	_, err := fmt.Fprintf(w, "\n%s run %s: %d passed, %d failed, %d need clarification (%s)\n",
		verdict, r.RunID, counts[StatusPassed], counts[StatusFailed], counts[StatusNeedsClarification],
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return err
}

// WriteJSON renders the report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeField(w io.Writer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "    %-15s %s\n", name+":", value)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
