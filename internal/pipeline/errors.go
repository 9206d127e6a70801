package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a pipeline step.
type Stage string

// Pipeline stages.
const (
	StageMask     Stage = "mask"
	StageEnrich   Stage = "enrich"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
	StageUnmask   Stage = "unmask"
	StageComplete Stage = "complete"
)

var (
	// ErrEmptyUtterance is returned for a request without text.
	ErrEmptyUtterance = errors.New("empty utterance")
	// ErrGenerationTimeout is returned when the generator does not answer in time.
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrGenerationFailure is returned when the generator errors or returns no text.
	ErrGenerationFailure = errors.New("generation failed")
)

// StageError is a fatal run error, tagged with the stage that raised it.
type StageError struct {
	Stage     Stage
	Cause     error
	Retryable bool
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
