// Package synth is the sound capability boundary. The duet core never
// generates audio itself; it asks a Synth to attack and release pitches.
package synth

import "time"

// Synth plays named pitches. Implementations swallow port errors rather
// than propagating them: a dropped note is not worth aborting a turn.
type Synth interface {
	// Attack starts sounding a pitch until Release.
	Attack(pitch uint8)

	// Release stops a sounding pitch. Releasing a silent pitch is a
	// no-op.
	Release(pitch uint8)

	// AttackRelease sounds a pitch for a fixed duration.
	AttackRelease(pitch uint8, d time.Duration)

	Close() error
}

// Null is a Synth that makes no sound. Used when no MIDI output port is
// configured, so the app still runs.
type Null struct{}

func (Null) Attack(pitch uint8)                         {}
func (Null) Release(pitch uint8)                        {}
func (Null) AttackRelease(pitch uint8, d time.Duration) {}
func (Null) Close() error                               { return nil }
