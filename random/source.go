// Package random provides the injectable randomness used to build patient
// cases.
//
// Every draw made while generating a case or resolving an intervention goes
// through a Source, so a seeded Source replays an entire exam exactly.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
)

// Source is a uniform random source.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntRange returns a value in [min, max], both inclusive.
	IntRange(min, max int) int
}

// Rand is a Source backed by math/rand. It is not safe for concurrent use;
// each exam session owns its own.
type Rand struct {
	rng *rand.Rand
}

// NewSeeded returns a deterministic Source for the given seed.
func NewSeeded(seed int64) *Rand {
	return &Rand{rng: rand.New(rand.NewSource(seed))}
}

// New returns a Source seeded from crypto/rand.
func New() (*Rand, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeeded(seed), nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func (r *Rand) Float64() float64 {
	return r.rng.Float64()
}

func (r *Rand) IntRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + r.rng.Intn(max-min+1)
}

// Chance reports whether a draw from src falls under p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Uniform returns a value in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// RoundTenths rounds v to one decimal place.
func RoundTenths(v float64) float64 {
	return math.Round(v*10) / 10
}

// Reader adapts src to an io.Reader so byte-oriented consumers (UUID
// generation) stay on the same replayable stream.
func Reader(src Source) io.Reader {
	return sourceReader{src: src}
}

type sourceReader struct {
	src Source
}

func (r sourceReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.src.IntRange(0, 255))
	}
	return len(p), nil
}
