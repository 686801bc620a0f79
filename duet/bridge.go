package duet

import (
	"time"

	"go-duet/model"
)

// BuildRequest discretizes a drained note buffer into a model request.
// Note i occupies exactly step [i, i+1): one fixed slot per note in
// arrival order, velocity constant. The human's real rhythm is not
// preserved; only the pitch line survives discretization.
func BuildRequest(events []NoteEvent) model.Sequence {
	notes := make([]model.Note, len(events))
	for i, ev := range events {
		notes[i] = model.Note{
			Pitch:     int(ev.Pitch),
			StartStep: i,
			EndStep:   i + 1,
			Velocity:  RecordVelocity,
		}
	}
	return model.Sequence{Notes: notes, TotalSteps: len(events)}
}

// PlaybackEvent is one scheduled response note: when to start relative
// to playback begin, and for how long to sound.
type PlaybackEvent struct {
	Pitch    int
	OffsetMs int
	Duration time.Duration
}

// ConvertResponse maps the model's step-indexed notes onto the wall
// clock at StepMs per step. Notes with non-positive duration are
// dropped; negative start steps clamp to zero.
func ConvertResponse(seq model.Sequence) []PlaybackEvent {
	events := make([]PlaybackEvent, 0, len(seq.Notes))
	for _, n := range seq.Notes {
		steps := n.EndStep - n.StartStep
		if steps <= 0 {
			continue
		}
		start := n.StartStep
		if start < 0 {
			start = 0
		}
		events = append(events, PlaybackEvent{
			Pitch:    n.Pitch,
			OffsetMs: start * StepMs,
			Duration: time.Duration(steps) * StepMs * time.Millisecond,
		})
	}
	return events
}
