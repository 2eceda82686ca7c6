// Package random provides seed generation and seeded generators for the
// game's reproducible shuffles.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Source returns seeds on demand. Tests inject a deterministic sequence.
type Source func() int64

// CryptoSource draws seeds from crypto/rand. A failed read falls back to a
// time-independent math/rand value so seed generation never blocks the game.
func CryptoSource() Source {
	return func() int64 {
		seed, err := NewSeed()
		if err != nil {
			return rand.Int63()
		}
		return seed
	}
}

// Sequence returns a Source yielding start, start+1, start+2, ...
func Sequence(start int64) Source {
	next := start
	return func() int64 {
		s := next
		next++
		return s
	}
}

// New returns a pseudo-random generator seeded with seed.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
