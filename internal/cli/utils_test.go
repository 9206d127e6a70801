package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/pii"
	"github.com/hyperjump/concierge/internal/pipeline"
)

func completedRun() *pipeline.Run {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	v := pii.NewVault()
	v.Reserve(pii.KindPhone, "555-123-4567")
	return &pipeline.Run{
		ID:       "run-1",
		State:    pipeline.StateCompleted,
		Vault:    v,
		Response: "Call me at 555-123-4567",
		Chunks: []models.RetrievedChunk{
			{SourceID: "store:s1", Text: "Store: Bean There.", Score: 0.8125},
		},
		Degradations: []string{"enrich:stores"},
		Transitions: []pipeline.Transition{
			{To: pipeline.StateReceived, At: start},
			{From: pipeline.StateUnmasked, To: pipeline.StateCompleted, At: start.Add(42 * time.Millisecond)},
		},
	}
}

func TestNewChatResult_Completed(t *testing.T) {
	res := NewChatResult(completedRun(), nil)
	if res.RunID != "run-1" || res.State != "COMPLETED" {
		t.Errorf("run_id=%q state=%q", res.RunID, res.State)
	}
	if res.DurationMS != 42 {
		t.Errorf("duration_ms = %d, want 42", res.DurationMS)
	}
	if res.Tokens != 1 {
		t.Errorf("tokens = %d, want 1", res.Tokens)
	}
	if len(res.Sources) != 1 || res.Sources[0].SourceID != "store:s1" {
		t.Errorf("sources = %+v", res.Sources)
	}
}

func TestNewChatResult_Failed(t *testing.T) {
	run := &pipeline.Run{ID: "run-2", State: pipeline.StateFailed, Response: "should not leak"}
	err := &pipeline.StageError{Stage: pipeline.StageGenerate, Cause: fmt.Errorf("%w: slow", pipeline.ErrGenerationTimeout), Retryable: true}
	res := NewChatResult(run, err)
	if res.Response != "" {
		t.Errorf("failed run response = %q, want empty", res.Response)
	}
	if res.Stage != "generate" || !res.Retryable {
		t.Errorf("stage=%q retryable=%t", res.Stage, res.Retryable)
	}
	if !strings.Contains(res.Error, "generation timed out") {
		t.Errorf("error = %q", res.Error)
	}
}

func TestWriteChatResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChatResult(&buf, NewChatResult(completedRun(), nil), OutputJSON); err != nil {
		t.Fatalf("WriteChatResult(json): %v", err)
	}
	var decoded ChatResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Response != "Call me at 555-123-4567" || decoded.RunID != "run-1" {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Degradations) != 1 || decoded.Degradations[0] != "enrich:stores" {
		t.Errorf("degradations = %v", decoded.Degradations)
	}
}

func TestWriteChatResult_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChatResult(&buf, NewChatResult(completedRun(), nil), OutputText); err != nil {
		t.Fatalf("WriteChatResult(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Call me at 555-123-4567", "run: run-1", "COMPLETED", "42ms", "store:s1 (0.8125)", "degraded: enrich:stores"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteChatResult_textFailure(t *testing.T) {
	err := &pipeline.StageError{Stage: pipeline.StageMask, Cause: pii.ErrMalformedInput}
	var buf bytes.Buffer
	if werr := WriteChatResult(&buf, NewChatResult(&pipeline.Run{ID: "run-3", State: pipeline.StateFailed}, err), OutputText); werr != nil {
		t.Fatal(werr)
	}
	out := buf.String()
	if !strings.Contains(out, "error: mask stage") || !strings.Contains(out, "stage: mask (retryable: false)") {
		t.Errorf("unexpected failure output:\n%s", out)
	}
}

func TestWriteChatResult_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChatResult(&buf, NewChatResult(completedRun(), nil), OutputFormat("yaml")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "run: run-1") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"compact", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
