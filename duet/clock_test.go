package duet

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-duet/model"
)

// fakeClock drives scheduled actions from a virtual clock so timing
// properties check deterministically, without wall-clock waits.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeEntry
}

type fakeEntry struct {
	at      time.Time
	fn      func()
	fired   bool
	stopped bool
}

type fakeTimer struct {
	c *fakeClock
	e *fakeEntry
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.e.fired || t.e.stopped {
		return false
	}
	t.e.stopped = true
	return true
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &fakeEntry{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, e)
	return &fakeTimer{c: c, e: e}
}

// Advance runs due actions in deadline order. Actions may schedule
// further actions; anything due within the window runs in this call.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeEntry
		for _, e := range c.timers {
			if e.fired || e.stopped || e.at.After(target) {
				continue
			}
			if next == nil || e.at.Before(next.at) {
				next = e
			}
		}
		if next == nil {
			break
		}
		if c.now.Before(next.at) {
			c.now = next.at
		}
		next.fired = true
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// synthCall records one synth invocation and when it happened on the
// virtual clock, as an offset from the clock's start.
type synthCall struct {
	pitch uint8
	dur   time.Duration
	at    time.Duration
}

type fakeSynth struct {
	mu       sync.Mutex
	clock    *fakeClock
	epoch    time.Time
	attacks  []synthCall
	releases []synthCall
	plays    []synthCall // AttackRelease calls
}

func newFakeSynth(c *fakeClock) *fakeSynth {
	return &fakeSynth{clock: c, epoch: c.Now()}
}

func (s *fakeSynth) at() time.Duration {
	return s.clock.Now().Sub(s.epoch)
}

func (s *fakeSynth) Attack(pitch uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attacks = append(s.attacks, synthCall{pitch: pitch, at: s.at()})
}

func (s *fakeSynth) Release(pitch uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases = append(s.releases, synthCall{pitch: pitch, at: s.at()})
}

func (s *fakeSynth) AttackRelease(pitch uint8, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, synthCall{pitch: pitch, dur: d, at: s.at()})
}

func (s *fakeSynth) Close() error { return nil }

func (s *fakeSynth) playCalls() []synthCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]synthCall(nil), s.plays...)
}

func (s *fakeSynth) releaseCalls() []synthCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]synthCall(nil), s.releases...)
}

// fakeModel returns a canned continuation (or error) and records what it
// was asked for.
type fakeModel struct {
	mu      sync.Mutex
	initErr error
	resp    model.Sequence
	err     error
	calls   []model.Sequence
	steps   []int
	temps   []float64
}

func (f *fakeModel) Initialize(ctx context.Context) error {
	return f.initErr
}

func (f *fakeModel) ContinueSequence(ctx context.Context, seed model.Sequence, steps int, temperature float64) (model.Sequence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, seed)
	f.steps = append(f.steps, steps)
	f.temps = append(f.temps, temperature)
	return f.resp, f.err
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// waitFor polls cond until it holds or the (real) deadline passes. Used
// to join the model-call goroutine back into deterministic clock time.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestFakeClockOrdering(t *testing.T) {
	c := newFakeClock()
	var order []int
	c.AfterFunc(30*time.Millisecond, func() { order = append(order, 3) })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, 1) })
	c.AfterFunc(20*time.Millisecond, func() { order = append(order, 2) })

	c.Advance(25 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order after 25ms = %v, want [1 2]", order)
	}

	c.Advance(5 * time.Millisecond)
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("order after 30ms = %v, want [1 2 3]", order)
	}
}

func TestFakeClockStop(t *testing.T) {
	c := newFakeClock()
	fired := false
	tm := c.AfterFunc(10*time.Millisecond, func() { fired = true })

	if !tm.Stop() {
		t.Fatal("Stop() = false on pending timer")
	}
	c.Advance(20 * time.Millisecond)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if tm.Stop() {
		t.Fatal("Stop() = true on already-stopped timer")
	}
}
