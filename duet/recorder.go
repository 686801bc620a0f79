package duet

import "sort"

// Recorder captures human note events in arrival order. It also tracks
// the set of currently held pitches, so the gate can force-release
// everything when the AI takes over mid-hold.
//
// Recorder is not safe for concurrent use; the owning Session serializes
// access.
type Recorder struct {
	buf  []NoteEvent
	open map[uint8]int // held pitch -> index of its open event in buf
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{open: make(map[uint8]int)}
}

// NoteOn appends a new event and marks the pitch held. A retrigger of an
// already-held pitch closes the previous event first.
func (r *Recorder) NoteOn(pitch uint8, t float64) {
	if i, ok := r.open[pitch]; ok {
		r.buf[i].End = t
	}
	r.open[pitch] = len(r.buf)
	r.buf = append(r.buf, NoteEvent{Pitch: pitch, Start: t})
}

// NoteOff closes the open event for pitch. Reports whether the pitch was
// actually held.
func (r *Recorder) NoteOff(pitch uint8, t float64) bool {
	i, ok := r.open[pitch]
	if !ok {
		return false
	}
	r.buf[i].End = t
	delete(r.open, pitch)
	return true
}

// ForceReleaseAll closes every held note and returns the released
// pitches, sorted. Used on the human-to-AI transition: the timer can
// fire while keys are still down.
func (r *Recorder) ForceReleaseAll(t float64) []uint8 {
	if len(r.open) == 0 {
		return nil
	}
	pitches := make([]uint8, 0, len(r.open))
	for p, i := range r.open {
		r.buf[i].End = t
		pitches = append(pitches, p)
	}
	r.open = make(map[uint8]int)
	sort.Slice(pitches, func(a, b int) bool { return pitches[a] < pitches[b] })
	return pitches
}

// Held returns the currently held pitches, sorted.
func (r *Recorder) Held() []uint8 {
	if len(r.open) == 0 {
		return nil
	}
	pitches := make([]uint8, 0, len(r.open))
	for p := range r.open {
		pitches = append(pitches, p)
	}
	sort.Slice(pitches, func(a, b int) bool { return pitches[a] < pitches[b] })
	return pitches
}

// IsEmpty reports whether nothing has been recorded.
func (r *Recorder) IsEmpty() bool {
	return len(r.buf) == 0
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	return len(r.buf)
}

// Drain returns the buffer and resets the recorder. Called exactly once
// per AI turn, before the model call goes out, so later notes can never
// leak into a request already in flight.
func (r *Recorder) Drain() []NoteEvent {
	out := r.buf
	r.buf = nil
	r.open = make(map[uint8]int)
	return out
}

// Reset discards everything, held notes included. Used on the error
// path so stale notes never leak into the next turn.
func (r *Recorder) Reset() {
	r.buf = nil
	r.open = make(map[uint8]int)
}
