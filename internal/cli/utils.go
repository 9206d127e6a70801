// Package cli formats concierge results for the command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/concierge/internal/pipeline"
	"github.com/hyperjump/concierge/pkg/utils"
)

// OutputFormat is the format for chat result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// Source is a knowledge chunk that informed a reply.
type Source struct {
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// ChatResult is the printable outcome of one run. Response is empty for failed runs.
type ChatResult struct {
	RunID        string   `json:"run_id"`
	State        string   `json:"state"`
	Response     string   `json:"response,omitempty"`
	Error        string   `json:"error,omitempty"`
	Stage        string   `json:"stage,omitempty"`
	Retryable    bool     `json:"retryable,omitempty"`
	DurationMS   int64    `json:"duration_ms"`
	Tokens       int      `json:"tokens"`
	Sources      []Source `json:"sources,omitempty"`
	Degradations []string `json:"degradations,omitempty"`
	Unresolved   []string `json:"unresolved,omitempty"`
}

// NewChatResult summarizes run and the error Handle returned with it.
func NewChatResult(run *pipeline.Run, err error) ChatResult {
	var res ChatResult
	if run != nil {
		res.RunID = run.ID
		res.State = string(run.State)
		res.Response = run.Response
		res.Degradations = run.Degradations
		res.Unresolved = run.Unresolved
		if run.Vault != nil {
			res.Tokens = run.Vault.Len()
		}
		if n := len(run.Transitions); n > 1 {
			res.DurationMS = run.Transitions[n-1].At.Sub(run.Transitions[0].At).Milliseconds()
		}
		for _, c := range run.Chunks {
			res.Sources = append(res.Sources, Source{SourceID: c.SourceID, Score: c.Score})
		}
	}
	if err != nil {
		res.Response = ""
		res.Error = err.Error()
		var se *pipeline.StageError
		if errors.As(err, &se) {
			res.Stage = string(se.Stage)
			res.Retryable = se.Retryable
		}
	}
	return res
}

// WriteChatResult writes res to w in the given format. Unknown formats are written as text.
func WriteChatResult(w io.Writer, res ChatResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return writeChatResultText(w, res)
	}
}

func writeChatResultText(w io.Writer, res ChatResult) error {
	var b strings.Builder
	if res.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", res.Error)
		if res.Stage != "" {
			fmt.Fprintf(&b, "stage: %s (retryable: %t)\n", res.Stage, res.Retryable)
		}
	} else {
		fmt.Fprintf(&b, "\n%s\n\n", res.Response)
	}
	fmt.Fprintf(&b, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(&b, "run: %s | state: %s | %dms | masked values: %d\n", res.RunID, res.State, res.DurationMS, res.Tokens)
	for _, s := range res.Sources {
		fmt.Fprintf(&b, "source: %s (%.4f)\n", utils.Truncate(s.SourceID, 48), s.Score)
	}
	if len(res.Degradations) > 0 {
		fmt.Fprintf(&b, "degraded: %s\n", strings.Join(res.Degradations, ", "))
	}
	if len(res.Unresolved) > 0 {
		fmt.Fprintf(&b, "unresolved tokens: %s\n", strings.Join(res.Unresolved, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
