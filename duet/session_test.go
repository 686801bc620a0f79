package duet

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-duet/model"
)

func newTestSession(t *testing.T, fm *fakeModel, cfg Config) (*Session, *fakeClock, *fakeSynth) {
	t.Helper()
	c := newFakeClock()
	syn := newFakeSynth(c)
	s := NewSession(c, fm, syn, cfg)
	s.Start(context.Background())
	if fm.initErr == nil {
		waitFor(t, func() bool {
			st := s.Snapshot().Status
			return st != StatusLoading
		})
	} else {
		waitFor(t, func() bool { return s.Snapshot().Status == StatusError })
	}
	return s, c, syn
}

// tapAll plays each pitch as a short press/release, 100ms apart.
func tapAll(s *Session, c *fakeClock, pitches []uint8) {
	for _, p := range pitches {
		s.KeyDown(p)
		c.Advance(100 * time.Millisecond)
		s.KeyUp(p)
		c.Advance(100 * time.Millisecond)
	}
}

func (s *Session) bufferEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.IsEmpty()
}

func TestExchangeScenario(t *testing.T) {
	// Record [60 64 67] -> silence -> 3-step request -> model answers
	// two notes -> playback at 0ms and 500ms -> human turn restored at
	// 1500ms after playback start.
	fm := &fakeModel{resp: model.Sequence{Notes: []model.Note{
		{Pitch: 62, StartStep: 0, EndStep: 4},
		{Pitch: 65, StartStep: 4, EndStep: 8},
	}}}
	s, c, syn := newTestSession(t, fm, Config{Enabled: true})

	if got := s.Snapshot().Status; got != StatusReady {
		t.Fatalf("initial status = %v, want ready", got)
	}

	tapAll(s, c, []uint8{60, 64, 67})
	if got := s.Snapshot().Status; got != StatusListening {
		t.Errorf("status while playing = %v, want listening", got)
	}

	// Last note-off at 500ms; the threshold runs from there.
	c.Advance(1899 * time.Millisecond)
	if s.Snapshot().Turn != HumanTurn {
		t.Fatal("turn flipped before inactivity threshold")
	}
	if fm.callCount() != 0 {
		t.Fatal("model called before inactivity threshold")
	}

	c.Advance(time.Millisecond) // 2000ms after last note-off
	if s.Snapshot().Turn != AiTurn {
		t.Fatal("turn did not flip at inactivity threshold")
	}
	waitFor(t, func() bool { return s.player.batchCount() == 1 })

	// The request: one 0.5s slot per note, arrival order.
	if fm.callCount() != 1 {
		t.Fatalf("model calls = %d, want 1", fm.callCount())
	}
	req := fm.calls[0]
	if len(req.Notes) != 3 || req.TotalSteps != 3 {
		t.Fatalf("request = %+v, want 3 notes / 3 steps", req)
	}
	for i, want := range []int{60, 64, 67} {
		n := req.Notes[i]
		if n.Pitch != want || n.StartStep != i || n.EndStep != i+1 {
			t.Errorf("request note %d = %+v, want pitch %d steps [%d,%d)", i, n, want, i, i+1)
		}
	}
	if fm.steps[0] != ResponseSteps {
		t.Errorf("requested steps = %d, want %d", fm.steps[0], ResponseSteps)
	}
	if fm.temps[0] != Temperature {
		t.Errorf("requested temperature = %v, want %v", fm.temps[0], Temperature)
	}

	// Playback: offsets 0ms and 500ms from turn start (clock 2500ms).
	turnStart := 2500 * time.Millisecond
	c.Advance(0)
	c.Advance(500 * time.Millisecond)
	plays := syn.playCalls()
	if len(plays) != 2 {
		t.Fatalf("plays = %+v, want 2", plays)
	}
	if plays[0].pitch != 62 || plays[0].at != turnStart || plays[0].dur != 500*time.Millisecond {
		t.Errorf("first play = %+v, want 62 at +0ms for 500ms", plays[0])
	}
	if plays[1].pitch != 65 || plays[1].at != turnStart+500*time.Millisecond {
		t.Errorf("second play = %+v, want 65 at +500ms", plays[1])
	}

	// Input stays revoked until maxEnd(1000ms) + settle(500ms).
	s.KeyDown(61)
	if len(s.Snapshot().Held) != 0 {
		t.Error("KeyDown during AI turn reached the recorder")
	}

	c.Advance(999 * time.Millisecond) // 1499ms into playback
	if s.Snapshot().Turn != AiTurn {
		t.Fatal("turn restored before settle buffer")
	}
	c.Advance(time.Millisecond) // 1500ms: maxEnd(1000) + settle(500)

	snap := s.Snapshot()
	if snap.Turn != HumanTurn {
		t.Fatal("turn not restored at maxEnd+settle")
	}
	if snap.Status != StatusYourTurn {
		t.Errorf("status = %v, want your turn", snap.Status)
	}
	if !s.bufferEmpty() {
		t.Error("recorder buffer not cleared after AI turn")
	}
}

func TestSecondFireWhileAiTurnIsNoop(t *testing.T) {
	fm := &fakeModel{resp: model.Sequence{Notes: []model.Note{
		{Pitch: 64, StartStep: 0, EndStep: 8},
	}}}
	s, c, _ := newTestSession(t, fm, Config{Enabled: true})

	tapAll(s, c, []uint8{60})
	c.Advance(2 * time.Second)
	waitFor(t, func() bool { return s.player.batchCount() == 1 })

	// A stray fire while the turn is in flight must do nothing.
	s.onSilence()
	s.onSilence()
	if fm.callCount() != 1 {
		t.Fatalf("model calls = %d after re-entrant fires, want 1", fm.callCount())
	}
	if s.player.batchCount() != 1 {
		t.Fatalf("batches = %d, want 1", s.player.batchCount())
	}
}

func TestGenerationFailureRecovers(t *testing.T) {
	fm := &fakeModel{err: errors.New("model exploded")}
	s, c, _ := newTestSession(t, fm, Config{Enabled: true})

	tapAll(s, c, []uint8{60, 62})
	c.Advance(2 * time.Second)

	// No playback, no settle buffer: control returns immediately.
	waitFor(t, func() bool { return s.Snapshot().Turn == HumanTurn })

	snap := s.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("status = %v, want error", snap.Status)
	}
	if !s.bufferEmpty() {
		t.Error("buffer not cleared on failure path")
	}

	// The next phrase works as if nothing happened.
	fm.mu.Lock()
	fm.err = nil
	fm.resp = model.Sequence{Notes: []model.Note{{Pitch: 70, StartStep: 0, EndStep: 2}}}
	fm.mu.Unlock()

	tapAll(s, c, []uint8{65})
	if got := s.Snapshot().Status; got != StatusListening {
		t.Errorf("status after error + new note = %v, want listening", got)
	}
	c.Advance(2 * time.Second)
	waitFor(t, func() bool { return fm.callCount() == 2 })
}

func TestBurstCollapsesToSingleTrigger(t *testing.T) {
	fm := &fakeModel{}
	s, c, _ := newTestSession(t, fm, Config{Enabled: true})

	tapAll(s, c, []uint8{60})
	c.Advance(1500 * time.Millisecond) // not yet
	tapAll(s, c, []uint8{62})          // re-arms; note-off 100ms into the taps
	c.Advance(1899 * time.Millisecond)
	if fm.callCount() != 0 {
		t.Fatal("fired before the re-armed threshold")
	}
	c.Advance(time.Millisecond)
	waitFor(t, func() bool { return fm.callCount() == 1 })

	req := fm.calls[0]
	if len(req.Notes) != 2 {
		t.Errorf("request has %d notes, want both notes of the burst", len(req.Notes))
	}
}

func TestHeldKeysForceReleasedOnTurnEntry(t *testing.T) {
	fm := &fakeModel{}
	s, c, syn := newTestSession(t, fm, Config{Enabled: true})

	s.KeyDown(64) // held through the threshold
	c.Advance(50 * time.Millisecond)
	s.KeyDown(60)
	c.Advance(50 * time.Millisecond)
	s.KeyUp(60) // arms the timer while 64 is still down

	c.Advance(2 * time.Second)
	if s.Snapshot().Turn != AiTurn {
		t.Fatal("turn did not start with a key held")
	}

	// The gate released 64 on the way in.
	var found bool
	for _, r := range syn.releaseCalls() {
		if r.pitch == 64 {
			found = true
		}
	}
	if !found {
		t.Error("held key 64 not force-released on AI turn entry")
	}
	if len(s.Snapshot().Held) != 0 {
		t.Error("ActiveNoteSet not drained on AI turn entry")
	}

	// Its real release arriving late is harmless.
	s.KeyUp(64)
}

func TestDisableDuringAiTurnFinishesThenStops(t *testing.T) {
	fm := &fakeModel{resp: model.Sequence{Notes: []model.Note{
		{Pitch: 62, StartStep: 0, EndStep: 4},
		{Pitch: 65, StartStep: 4, EndStep: 8},
	}}}
	s, c, syn := newTestSession(t, fm, Config{Enabled: true})

	tapAll(s, c, []uint8{60})
	c.Advance(2 * time.Second)
	waitFor(t, func() bool { return s.player.batchCount() == 1 })

	s.SetEnabled(false)

	// The in-flight turn still plays out in full.
	c.Advance(1500 * time.Millisecond)
	if got := len(syn.playCalls()); got != 2 {
		t.Fatalf("plays after disable = %d, want 2 (turn must finish)", got)
	}
	snap := s.Snapshot()
	if snap.Turn != HumanTurn {
		t.Fatal("turn did not complete after disable")
	}
	if snap.Status != StatusOff {
		t.Errorf("status = %v, want off", snap.Status)
	}

	// But no new turn starts, however long the silence.
	tapAll(s, c, []uint8{67})
	c.Advance(5 * time.Second)
	if fm.callCount() != 1 {
		t.Fatalf("model calls = %d after disable, want 1", fm.callCount())
	}

	// Re-enabling arms on the next note-off.
	s.SetEnabled(true)
	tapAll(s, c, []uint8{69})
	c.Advance(2 * time.Second)
	waitFor(t, func() bool { return fm.callCount() == 2 })
}

func TestDisabledNeverTriggers(t *testing.T) {
	fm := &fakeModel{}
	s, c, _ := newTestSession(t, fm, Config{Enabled: false})

	if got := s.Snapshot().Status; got != StatusOff {
		t.Fatalf("status = %v, want off", got)
	}

	tapAll(s, c, []uint8{60, 64, 67})
	c.Advance(10 * time.Second)
	if fm.callCount() != 0 {
		t.Fatal("model called while feature disabled")
	}
}

func TestInitFailureLeavesPianoPlayable(t *testing.T) {
	fm := &fakeModel{initErr: errors.New("no model for you")}
	s, c, syn := newTestSession(t, fm, Config{Enabled: true})

	// Keys still sound; silence never triggers.
	tapAll(s, c, []uint8{60})
	if len(syn.attacks) != 1 {
		t.Error("piano not playable after init failure")
	}
	c.Advance(10 * time.Second)
	if fm.callCount() != 0 {
		t.Fatal("model called despite failed init")
	}
}

func TestEmptyResponseCompletesWithoutPlayback(t *testing.T) {
	fm := &fakeModel{} // zero-value resp: no notes
	s, c, syn := newTestSession(t, fm, Config{Enabled: true})

	tapAll(s, c, []uint8{60})
	c.Advance(2 * time.Second)
	waitFor(t, func() bool { return s.player.batchCount() == 1 })

	c.Advance(0)
	snap := s.Snapshot()
	if snap.Turn != HumanTurn || snap.Status != StatusYourTurn {
		t.Errorf("empty response: turn=%v status=%v, want immediate human turn", snap.Turn, snap.Status)
	}
	if len(syn.playCalls()) != 0 {
		t.Error("empty response produced playback")
	}
}
