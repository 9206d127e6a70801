// Package pipeline runs a customer request through mask, enrich, retrieve, generate
// and unmask as an explicit state machine. Personal data in the utterance and in the
// enrichment context is replaced with vault tokens before anything reaches retrieval
// or the generator, and restored only in the final reply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/concierge/internal/enrich"
	"github.com/hyperjump/concierge/internal/generation"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/pii"
	"github.com/hyperjump/concierge/internal/retrieval"
	"github.com/hyperjump/concierge/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultTopK              = 3
	defaultGenerationTimeout = 30 * time.Second
)

// Enricher gathers structured context for a request.
type Enricher interface {
	Enrich(ctx context.Context, userID string, loc *models.Location) enrich.Result
}

// Retriever finds knowledge chunks for a masked query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) retrieval.Result
}

// Orchestrator handles requests. It is safe for concurrent use; each request gets its
// own Run and vault.
type Orchestrator struct {
	masker            *pii.Masker
	enricher          Enricher
	retriever         Retriever
	generator         generation.Generator
	topK              int
	generationTimeout time.Duration
	now               func() time.Time
	newID             func() string
	logger            *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = utils.OrNop(l) }
}

// WithTopK sets how many knowledge chunks are retrieved.
func WithTopK(k int) Option {
	return func(o *Orchestrator) { o.topK = k }
}

// WithGenerationTimeout bounds each generator call.
func WithGenerationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.generationTimeout = d
		}
	}
}

// WithClock sets the clock used for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. enricher and retriever may be nil, in which case runs
// have no structured context or no knowledge chunks respectively.
func New(masker *pii.Masker, enricher Enricher, retriever Retriever, generator generation.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		masker:            masker,
		enricher:          enricher,
		retriever:         retriever,
		generator:         generator,
		topK:              defaultTopK,
		generationTimeout: defaultGenerationTimeout,
		now:               time.Now,
		newID:             func() string { return uuid.New().String() },
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type step struct {
	stage Stage
	next  State
	run   func(ctx context.Context, r *Run) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{StageMask, StateMasked, o.mask},
		{StageEnrich, StateEnriched, o.enrich},
		{StageRetrieve, StateRetrieved, o.retrieve},
		{StageGenerate, StateGenerated, o.generate},
		{StageUnmask, StateUnmasked, o.unmask},
		{StageComplete, StateCompleted, o.complete},
	}
}

// Handle runs req through every stage and returns the finished run. On failure the run
// is returned in state FAILED, without a response, together with a *StageError.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Run, error) {
	start := o.now()
	r := newRun(o.newID(), req, start)
	log := o.logger.With(zap.String("run_id", r.ID))

	for _, s := range o.steps() {
		if err := s.run(ctx, r); err != nil {
			var se *StageError
			if !errors.As(err, &se) {
				se = &StageError{Stage: s.stage, Cause: err}
			}
			r.Err = se
			r.Response = ""
			r.moveTo(StateFailed, o.now())
			log.Warn("run failed",
				zap.String("stage", string(se.Stage)),
				zap.Bool("retryable", se.Retryable),
				zap.Error(se.Cause))
			return r, se
		}
		r.moveTo(s.next, o.now())
		log.Debug("stage finished", zap.String("stage", string(s.stage)), zap.String("state", string(r.State)))
	}

	log.Info("run completed",
		zap.Duration("duration", o.now().Sub(start)),
		zap.Int("tokens", r.Vault.Len()),
		zap.Int("chunks", len(r.Chunks)),
		zap.Strings("degraded", r.Degradations))
	return r, nil
}

func (o *Orchestrator) mask(_ context.Context, r *Run) error {
	if strings.TrimSpace(r.Utterance) == "" {
		return &StageError{Stage: StageMask, Cause: fmt.Errorf("%w: %w", pii.ErrMalformedInput, ErrEmptyUtterance)}
	}
	masked, err := o.masker.Mask(r.Vault, r.Utterance)
	if err != nil {
		return &StageError{Stage: StageMask, Cause: err}
	}
	r.MaskedUtterance = masked
	return nil
}

// enrich gathers context with the raw user id and location, then masks the rendered
// context with the run's vault. If the context cannot be masked it is dropped.
func (o *Orchestrator) enrich(ctx context.Context, r *Run) error {
	if o.enricher != nil {
		res := o.enricher.Enrich(ctx, r.UserID, r.Location)
		r.Context = res.Bundle
		for _, field := range res.Degraded {
			r.Degradations = append(r.Degradations, "enrich:"+field)
		}
	}
	masked, err := o.masker.Mask(r.Vault, generation.RenderContext(r.Context))
	if err != nil {
		o.logger.Warn("context dropped", zap.String("run_id", r.ID), zap.Error(err))
		r.Degradations = append(r.Degradations, DegradedContextMask)
		return nil
	}
	r.MaskedContext = masked
	return nil
}

func (o *Orchestrator) retrieve(ctx context.Context, r *Run) error {
	r.Chunks = []models.RetrievedChunk{}
	if o.retriever == nil || o.topK <= 0 {
		return nil
	}
	res := o.retriever.Retrieve(ctx, r.MaskedUtterance, o.topK)
	if res.Degraded != nil {
		r.Degradations = append(r.Degradations, DegradedRetrieval)
	}
	r.Chunks = o.maskChunks(r, res.Chunks)
	return nil
}

// maskChunks masks chunk text with the run's vault. Chunks that cannot be masked are
// dropped and recorded once as a degradation.
func (o *Orchestrator) maskChunks(r *Run, chunks []models.RetrievedChunk) []models.RetrievedChunk {
	masked := make([]models.RetrievedChunk, 0, len(chunks))
	dropped := 0
	for _, c := range chunks {
		text, err := o.masker.Mask(r.Vault, c.Text)
		if err != nil {
			dropped++
			o.logger.Warn("knowledge chunk dropped",
				zap.String("run_id", r.ID),
				zap.String("chunk_id", c.ChunkID),
				zap.Error(err))
			continue
		}
		c.Text = text
		masked = append(masked, c)
	}
	if dropped > 0 {
		r.Degradations = append(r.Degradations, DegradedChunkMask)
	}
	return masked
}

type generated struct {
	text string
	err  error
}

// generate calls the generator under the generation timeout. A generator that ignores
// its context is abandoned when the timeout elapses; its goroutine exits once the call
// returns.
func (o *Orchestrator) generate(ctx context.Context, r *Run) error {
	r.Prompt = generation.BuildPrompt(r.MaskedContext, r.Chunks, r.MaskedUtterance)

	gctx, cancel := context.WithTimeout(ctx, o.generationTimeout)
	defer cancel()
	done := make(chan generated, 1)
	go func() {
		text, err := o.generator.Generate(gctx, r.Prompt)
		done <- generated{text: text, err: err}
	}()

	var out generated
	select {
	case out = <-done:
	case <-gctx.Done():
		out.err = gctx.Err()
	}
	switch {
	case out.err == nil && strings.TrimSpace(out.text) == "":
		return generationError(ErrGenerationFailure, generation.ErrEmptyResponse)
	case out.err == nil:
		r.Generated = out.text
		return nil
	case ctx.Err() == nil && errors.Is(gctx.Err(), context.DeadlineExceeded):
		return generationError(ErrGenerationTimeout, fmt.Errorf("no reply within %s", o.generationTimeout))
	default:
		return generationError(ErrGenerationFailure, out.err)
	}
}

func generationError(kind, cause error) *StageError {
	return &StageError{Stage: StageGenerate, Cause: fmt.Errorf("%w: %w", kind, cause), Retryable: true}
}

// unmask restores vault tokens in the generated text. Tokens the vault does not know
// are left as they are and logged.
func (o *Orchestrator) unmask(_ context.Context, r *Run) error {
	text, unresolved := o.masker.Unmask(r.Vault, r.Generated)
	if len(unresolved) > 0 {
		r.Unresolved = unresolved
		o.logger.Debug("unmasking skipped unknown tokens",
			zap.String("run_id", r.ID),
			zap.Strings("tokens", unresolved))
	}
	r.Response = text
	return nil
}

func (o *Orchestrator) complete(_ context.Context, _ *Run) error {
	return nil
}
