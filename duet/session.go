package duet

import (
	"context"
	"sync"
	"time"

	"go-duet/debug"
	"go-duet/model"
	"go-duet/synth"
)

// Config holds the session's runtime knobs. Zero values fall back to
// the package defaults.
type Config struct {
	Inactivity time.Duration
	Settle     time.Duration
	Range      PlayableRange
	Enabled    bool
}

// Session owns all shared state of the exchange: the recorder, the turn
// gate, the inactivity timer, the feature toggle, and the status shown
// to the UI. Every entry point - key events, timer firings, the model
// callback - serializes through one mutex, so component state never
// interleaves.
type Session struct {
	mu     sync.Mutex
	clock  Clock
	model  model.Model
	synth  synth.Synth
	rec    *Recorder
	player *Player
	ctx    context.Context

	cfg        Config
	epoch      time.Time
	turn       TurnState
	status     Status
	enabled    bool
	modelReady bool
	inactivity Timer
	lastErr    error

	// UpdateChan notifies the TUI that the snapshot changed. Buffered,
	// non-blocking sends.
	UpdateChan chan struct{}
}

// Snapshot is what the presentation layer renders from.
type Snapshot struct {
	Status  Status
	Turn    TurnState
	Enabled bool
	Held    []uint8 // human-held keys
	Lit     []uint8 // AI-highlighted keys
	Range   PlayableRange
	Err     error
}

// NewSession wires the pipeline together.
func NewSession(clock Clock, m model.Model, s synth.Synth, cfg Config) *Session {
	if cfg.Inactivity == 0 {
		cfg.Inactivity = InactivityThreshold
	}
	if cfg.Settle == 0 {
		cfg.Settle = SettleBuffer
	}
	if cfg.Range == (PlayableRange{}) {
		cfg.Range = DefaultRange
	}

	sess := &Session{
		clock:      clock,
		model:      m,
		synth:      s,
		rec:        NewRecorder(),
		cfg:        cfg,
		epoch:      clock.Now(),
		turn:       HumanTurn,
		status:     StatusLoading,
		enabled:    cfg.Enabled,
		UpdateChan: make(chan struct{}, 1),
	}
	sess.player = NewPlayer(clock, s, cfg.Range, cfg.Settle, sess.notify)
	return sess
}

// Start kicks off model initialization in the background. The piano is
// playable immediately; the AI joins once the model is ready.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	go func() {
		err := s.model.Initialize(ctx)

		s.mu.Lock()
		if err != nil {
			// Playable-but-AI-disabled: never fatal.
			debug.Error("session", "model init failed: %v", err)
			s.lastErr = err
			s.status = StatusError
		} else {
			s.modelReady = true
			debug.Log("session", "model ready")
			if !s.enabled {
				s.status = StatusOff
			} else if s.turn == HumanTurn && s.rec.IsEmpty() {
				s.status = StatusReady
			}
		}
		s.mu.Unlock()
		s.notify()
	}()
}

// KeyDown handles a human note-on. During the AI's turn input capture is
// revoked, so this is a defensive no-op rather than state corruption.
func (s *Session) KeyDown(pitch uint8) {
	s.mu.Lock()
	if s.turn != HumanTurn {
		s.mu.Unlock()
		return
	}
	s.cancelInactivityLocked()
	s.rec.NoteOn(pitch, s.nowLocked())
	if s.modelReady && s.enabled {
		s.status = StatusListening
	}
	s.mu.Unlock()

	s.synth.Attack(pitch)
	s.notify()
}

// KeyUp handles a human note-off and re-arms the inactivity timer:
// every release pushes the AI trigger back, collapsing a burst of play
// into a single trailing fire.
func (s *Session) KeyUp(pitch uint8) {
	s.mu.Lock()
	if s.turn != HumanTurn {
		// The gate already force-released this note on turn entry.
		s.mu.Unlock()
		return
	}
	released := s.rec.NoteOff(pitch, s.nowLocked())
	if s.enabled && s.modelReady && !s.rec.IsEmpty() {
		s.armInactivityLocked()
	}
	s.mu.Unlock()

	if released {
		s.synth.Release(pitch)
	}
	s.notify()
}

// Tap is the terminal-key input path: terminals deliver no key release,
// so a press becomes a fixed-length note.
func (s *Session) Tap(pitch uint8) {
	s.KeyDown(pitch)
	s.clock.AfterFunc(TapHold, func() {
		s.KeyUp(pitch)
	})
}

// SetEnabled flips the AI-response feature. Disabling during an active
// AI turn lets that turn finish; it only prevents new turns from
// starting.
func (s *Session) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	if !on {
		s.cancelInactivityLocked()
		if s.turn == HumanTurn {
			s.status = StatusOff
		}
	} else if s.modelReady && s.turn == HumanTurn {
		if s.rec.IsEmpty() {
			s.status = StatusReady
		} else {
			s.status = StatusListening
		}
	}
	s.mu.Unlock()
	s.notify()
}

// Toggle flips the feature and returns the new state.
func (s *Session) Toggle() bool {
	s.mu.Lock()
	on := !s.enabled
	s.mu.Unlock()
	s.SetEnabled(on)
	return on
}

// Snapshot returns the current render state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Status:  s.status,
		Turn:    s.turn,
		Enabled: s.enabled,
		Held:    s.rec.Held(),
		Range:   s.cfg.Range,
		Err:     s.lastErr,
	}
	s.mu.Unlock()
	snap.Lit = s.player.Lit()
	return snap
}

// onSilence fires when the inactivity timer elapses. All gate entry
// conditions are re-checked here: the timer firing alone proves nothing,
// since state may have moved while it was pending.
func (s *Session) onSilence() {
	s.mu.Lock()
	if s.turn != HumanTurn || !s.enabled || !s.modelReady || s.rec.IsEmpty() {
		s.mu.Unlock()
		return
	}

	// Enter the AI turn: revoke input, force-release anything still
	// held (the human can't be trusted to have let go), drain the
	// buffer before the model call goes out.
	s.turn = AiTurn
	s.cancelInactivityLocked()
	forced := s.rec.ForceReleaseAll(s.nowLocked())
	events := s.rec.Drain()
	req := BuildRequest(events)
	ctx := s.ctx
	s.mu.Unlock()

	for _, p := range forced {
		s.synth.Release(p)
	}
	s.notify()
	debug.Log("session", "ai turn: %d notes recorded", len(events))

	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		resp, err := s.model.ContinueSequence(ctx, req, ResponseSteps, Temperature)
		s.onGenerated(resp, err)
	}()
}

// onGenerated is the single async re-entry point from the model call.
func (s *Session) onGenerated(resp model.Sequence, err error) {
	if err != nil {
		// Recoverable: hand control back immediately, no settle buffer.
		debug.Error("session", "generation failed: %v", err)
		s.mu.Lock()
		s.turn = HumanTurn
		s.rec.Reset()
		s.lastErr = err
		s.status = StatusError
		s.mu.Unlock()
		s.notify()
		return
	}

	events := ConvertResponse(resp)
	debug.Log("session", "generation returned %d notes", len(events))
	s.player.Play(events, s.onPlaybackDone)
}

// onPlaybackDone restores the human turn after the settle buffer.
func (s *Session) onPlaybackDone() {
	s.mu.Lock()
	s.turn = HumanTurn
	s.rec.Reset()
	if !s.enabled {
		s.status = StatusOff
	} else {
		s.status = StatusYourTurn
	}
	s.mu.Unlock()
	s.notify()
}

// armInactivityLocked debounces: at most one timer outstanding, arming
// cancels any prior pending fire.
func (s *Session) armInactivityLocked() {
	s.cancelInactivityLocked()
	s.inactivity = s.clock.AfterFunc(s.cfg.Inactivity, s.onSilence)
}

func (s *Session) cancelInactivityLocked() {
	if s.inactivity != nil {
		s.inactivity.Stop()
		s.inactivity = nil
	}
}

func (s *Session) nowLocked() float64 {
	return s.clock.Now().Sub(s.epoch).Seconds()
}

func (s *Session) notify() {
	select {
	case s.UpdateChan <- struct{}{}:
	default:
	}
}
