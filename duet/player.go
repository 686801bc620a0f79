package duet

import (
	"sync"
	"time"

	"go-duet/debug"
	"go-duet/synth"
)

// PlayableRange is the contiguous chromatic span the instrument covers.
type PlayableRange struct {
	Low, High uint8
}

// DefaultRange matches the on-screen keyboard: C4 through F5.
var DefaultRange = PlayableRange{Low: 60, High: 77}

// Contains reports whether pitch falls inside the span.
func (r PlayableRange) Contains(pitch int) bool {
	return pitch >= int(r.Low) && pitch <= int(r.High)
}

// Snap maps any pitch onto the closest playable one. Candidates are
// scanned in ascending order with a strict less-than comparison, so an
// equidistant tie keeps the first (lower) candidate.
func (r PlayableRange) Snap(pitch int) uint8 {
	candidates := make([]int, 0, int(r.High)-int(r.Low)+1)
	for p := int(r.Low); p <= int(r.High); p++ {
		candidates = append(candidates, p)
	}
	return uint8(nearest(pitch, candidates))
}

func nearest(pitch int, candidates []int) int {
	best := candidates[0]
	bestDist := abs(pitch - best)
	for _, c := range candidates[1:] {
		if d := abs(pitch - c); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Player schedules one AI turn's worth of playback: per-note deferred
// triggers for sound and key highlight, and a completion signal after
// the last note plus the settle buffer.
//
// Highlights use cancel-and-restart per key slot: each trigger bumps the
// slot's generation, and a clear only lands if no newer trigger has
// taken the slot since. Rapid repeats on one pitch neither stick nor
// flicker off early.
type Player struct {
	clock  Clock
	synth  synth.Synth
	rng    PlayableRange
	settle time.Duration

	mu       sync.Mutex
	gen      map[uint8]int // highlight generation per key slot
	lit      map[uint8]bool
	batches  int // AI turns scheduled so far
	onChange func()
}

// NewPlayer creates a player. onChange is poked (never blocked on) when
// the highlight set changes.
func NewPlayer(clock Clock, s synth.Synth, rng PlayableRange, settle time.Duration, onChange func()) *Player {
	if settle == 0 {
		settle = SettleBuffer
	}
	return &Player{
		clock:    clock,
		synth:    s,
		rng:      rng,
		settle:   settle,
		gen:      make(map[uint8]int),
		lit:      make(map[uint8]bool),
		onChange: onChange,
	}
}

// Play schedules every event against the clock and arranges for done to
// run once the last event has sounded out, plus the settle buffer. An
// empty batch completes at offset zero. The batch cannot be cancelled:
// a turn in flight always finishes.
func (p *Player) Play(events []PlaybackEvent, done func()) {
	p.mu.Lock()
	p.batches++
	p.mu.Unlock()

	if len(events) == 0 {
		p.clock.AfterFunc(0, done)
		return
	}

	maxEndMs := 0
	for _, ev := range events {
		end := ev.OffsetMs + int(ev.Duration.Milliseconds())
		if end > maxEndMs {
			maxEndMs = end
		}
		e := ev
		p.clock.AfterFunc(msToDuration(e.OffsetMs), func() {
			p.fire(e)
		})
	}

	debug.Log("player", "scheduled %d events, last ends at %dms", len(events), maxEndMs)
	p.clock.AfterFunc(msToDuration(maxEndMs)+p.settle, done)
}

// Lit returns the currently highlighted key slots.
func (p *Player) Lit() []uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint8, 0, len(p.lit))
	for pitch, on := range p.lit {
		if on {
			out = append(out, pitch)
		}
	}
	return out
}

func (p *Player) fire(ev PlaybackEvent) {
	key := p.rng.Snap(ev.Pitch)
	p.synth.AttackRelease(key, ev.Duration)

	p.mu.Lock()
	p.gen[key]++
	gen := p.gen[key]
	p.lit[key] = true
	p.mu.Unlock()
	p.notify()

	p.clock.AfterFunc(ev.Duration, func() {
		p.clearSlot(key, gen)
	})
}

// clearSlot unlights a key only if it still belongs to the generation
// that lit it.
func (p *Player) clearSlot(key uint8, gen int) {
	p.mu.Lock()
	if p.gen[key] != gen {
		p.mu.Unlock()
		return
	}
	delete(p.lit, key)
	p.mu.Unlock()
	p.notify()
}

func (p *Player) notify() {
	if p.onChange != nil {
		p.onChange()
	}
}

func (p *Player) batchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batches
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
