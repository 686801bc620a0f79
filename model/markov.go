package model

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
)

// Markov is the built-in continuation model: a first-order Markov chain
// over pitch intervals, learned from the seed phrase itself. It is not
// deep and it is not clever, but it answers instantly and needs no
// server.
type Markov struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	ready bool
}

// NewMarkov creates a Markov model with a random walk seeded from entropy.
func NewMarkov() *Markov {
	return &Markov{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewMarkovSeeded creates a deterministic Markov model for tests.
func NewMarkovSeeded(seed uint64) *Markov {
	return &Markov{rnd: rand.New(rand.NewPCG(seed, seed))}
}

// Initialize marks the model ready. There is nothing to load.
func (m *Markov) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	return nil
}

// ContinueSequence walks the interval transition table built from seed
// until the step budget is spent. An empty seed yields an empty response.
func (m *Markov) ContinueSequence(ctx context.Context, seed Sequence, steps int, temperature float64) (Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return Sequence{}, ErrNotReady
	}
	if seed.Empty() || steps <= 0 {
		return Sequence{}, nil
	}
	if temperature <= 0 {
		temperature = 1
	}

	// Transition table: pitch interval -> next interval -> count.
	// With short seeds most rows are empty, so intervals from the seed
	// itself double as the fallback vocabulary.
	transitions := make(map[int]map[int]float64)
	var vocab []int
	prev := 0
	for i := 1; i < len(seed.Notes); i++ {
		iv := seed.Notes[i].Pitch - seed.Notes[i-1].Pitch
		vocab = append(vocab, iv)
		if i > 1 {
			row := transitions[prev]
			if row == nil {
				row = make(map[int]float64)
				transitions[prev] = row
			}
			row[iv]++
		}
		prev = iv
	}
	if len(vocab) == 0 {
		// Single-note seed: noodle around it.
		vocab = []int{-2, -1, 1, 2, 3, -3}
	}

	pitch := seed.Notes[len(seed.Notes)-1].Pitch
	interval := prev
	cursor := 0

	var out Sequence
	for cursor < steps {
		interval = m.nextInterval(transitions[interval], vocab, temperature)
		pitch += interval

		dur := 1 + m.rnd.IntN(4) // 1-4 steps
		end := cursor + dur
		if end > steps {
			end = steps
		}
		out.Notes = append(out.Notes, Note{
			Pitch:     pitch,
			StartStep: cursor,
			EndStep:   end,
		})
		cursor = end

		// Occasional rest, one step, so phrases breathe.
		if m.rnd.IntN(4) == 0 {
			cursor++
		}
	}
	out.TotalSteps = steps
	return out, nil
}

// nextInterval samples the learned row, flattened by temperature, or
// falls back to the seed vocabulary when the row is empty.
func (m *Markov) nextInterval(row map[int]float64, vocab []int, temperature float64) int {
	if len(row) == 0 {
		return vocab[m.rnd.IntN(len(vocab))]
	}

	// Deterministic iteration order so seeded runs reproduce.
	keys := make([]int, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	total := 0.0
	weights := make([]float64, len(keys))
	for i, k := range keys {
		w := math.Pow(row[k], 1/temperature)
		weights[i] = w
		total += w
	}

	target := m.rnd.Float64() * total
	for i, w := range weights {
		target -= w
		if target <= 0 {
			return keys[i]
		}
	}
	return keys[len(keys)-1]
}
