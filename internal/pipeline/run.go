package pipeline

import (
	"time"

	"github.com/hyperjump/concierge/internal/generation"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/pii"
)

// Request is one customer utterance to handle.
type Request struct {
	UserID    string
	Utterance string
	Location  *models.Location
}

// Degradation sources recorded on a Run.
const (
	DegradedContextMask = "context_mask"
	DegradedChunkMask   = "chunk_mask"
	DegradedRetrieval   = "retrieval"
)

// Run is the record of handling one request. It is owned by a single goroutine and
// its Vault is never shared with another run.
type Run struct {
	ID        string
	UserID    string
	Utterance string
	Location  *models.Location
	Vault     *pii.Vault

	MaskedUtterance string
	Context         models.ContextBundle
	MaskedContext   string
	Chunks          []models.RetrievedChunk
	Prompt          generation.Prompt
	Generated       string
	Response        string

	State        State
	Transitions  []Transition
	Degradations []string
	Unresolved   []string
	Err          error
}

func newRun(id string, req Request, now time.Time) *Run {
	return &Run{
		ID:          id,
		UserID:      req.UserID,
		Utterance:   req.Utterance,
		Location:    req.Location,
		Vault:       pii.NewVault(),
		State:       StateReceived,
		Transitions: []Transition{{To: StateReceived, At: now}},
	}
}

func (r *Run) moveTo(s State, now time.Time) {
	r.Transitions = append(r.Transitions, Transition{From: r.State, To: s, At: now})
	r.State = s
}

// States returns the states the run passed through, in order.
func (r *Run) States() []State {
	out := make([]State, len(r.Transitions))
	for i, t := range r.Transitions {
		out[i] = t.To
	}
	return out
}
