package duet

import "time"

// Policy constants for the call-and-response exchange. These are fixed
// choices, not tunables: the request discretization, response grid, and
// generation parameters all assume them.
const (
	// RecordStepSeconds is the slot width given to each recorded note in
	// the request sequence, regardless of how fast it was actually
	// played. Real timing is deliberately discarded.
	RecordStepSeconds = 0.5

	// StepMs is the response grid: 4 steps per quarter note at 120 BPM.
	StepMs = 125

	// ResponseSteps is the continuation length requested from the model.
	ResponseSteps = 50

	// Temperature is the model randomness parameter.
	Temperature = 1.1

	// RecordVelocity is assigned to every request note.
	RecordVelocity = 100

	// InactivityThreshold is the silence after the last note-off that
	// hands the turn to the AI.
	InactivityThreshold = 2 * time.Second

	// SettleBuffer pads the end of AI playback so the last sound and
	// highlight finish before input is restored.
	SettleBuffer = 500 * time.Millisecond

	// TapHold is the synthetic note length for terminal key presses,
	// which have no release event.
	TapHold = 300 * time.Millisecond
)

// NoteEvent is one human-played note. Start and End are seconds on the
// session clock; End is zero until the key is released.
type NoteEvent struct {
	Pitch uint8
	Start float64
	End   float64
}

// TurnState says who is in control: the human playing, or the AI
// responding. Exactly one of the two at any time.
type TurnState int

const (
	HumanTurn TurnState = iota
	AiTurn
)

func (t TurnState) String() string {
	if t == AiTurn {
		return "ai"
	}
	return "human"
}

// Status is the state shown to the presentation layer.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusListening
	StatusYourTurn
	StatusError
	StatusOff
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusListening:
		return "listening"
	case StatusYourTurn:
		return "your turn"
	case StatusError:
		return "error"
	case StatusOff:
		return "off"
	}
	return "unknown"
}
