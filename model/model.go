package model

import (
	"context"
	"errors"
)

// Note is a single note of a quantized sequence. Steps are the model's
// discrete time unit; field names follow the magenta wire format.
type Note struct {
	Pitch     int `json:"pitch"`
	StartStep int `json:"quantizedStartStep"`
	EndStep   int `json:"quantizedEndStep"`
	Velocity  int `json:"velocity,omitempty"`
}

// Sequence is an ordered set of quantized notes.
type Sequence struct {
	Notes      []Note `json:"notes"`
	TotalSteps int    `json:"totalQuantizedSteps,omitempty"`
}

// Empty reports whether the sequence contains no notes.
func (s Sequence) Empty() bool {
	return len(s.Notes) == 0
}

// ErrNotReady is returned by ContinueSequence before Initialize has succeeded.
var ErrNotReady = errors.New("model: not initialized")

// Model produces continuations of quantized note sequences. Both methods
// may block and both may fail; callers own retry policy (there is none -
// a failed continuation is reported once and the next silence gets a
// fresh attempt).
type Model interface {
	// Initialize prepares the model. Must be called once before
	// ContinueSequence.
	Initialize(ctx context.Context) error

	// ContinueSequence returns a continuation of seed, at most steps
	// quantized steps long. temperature controls randomness.
	ContinueSequence(ctx context.Context, seed Sequence, steps int, temperature float64) (Sequence, error)
}
