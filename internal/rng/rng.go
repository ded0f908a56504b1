// Package rng isolates all randomness behind a seedable source so the
// weighted draws and trend regeneration in the game engine are reproducible.
package rng

import (
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/rand"
)

// Source is the random source consumed by the game engine.
type Source interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
}

type seeded struct {
	r *rand.Rand
}

// New returns a deterministic Source for the given seed.
func New(seed int64) Source {
	return &seeded{r: rand.New(rand.NewSource(seed))}
}

func (s *seeded) Float64() float64 { return s.r.Float64() }
func (s *seeded) IntN(n int) int   { return s.r.Intn(n) }

// NewSeed returns 32 cryptographically random bytes.
func NewSeed() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := crand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// HashHex returns the hex SHA-256 commitment for a seed.
func HashHex(seed []byte) string {
	sum := sha256.Sum256(seed)
	return hex.EncodeToString(sum[:])
}

// FromSeedHex derives a deterministic Source from a hex seed string. The
// derivation hashes the seed so short or structured inputs still spread over
// the full 64-bit state.
func FromSeedHex(seedHex string) Source {
	sum := sha256.Sum256([]byte(seedHex))
	return New(int64(binary.BigEndian.Uint64(sum[:8])))
}

// Range returns a value uniformly drawn from [min, max).
func Range(src Source, min, max float64) float64 {
	return min + src.Float64()*(max-min)
}

// IntRange returns a value uniformly drawn from [min, max], inclusive.
func IntRange(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return min + src.IntN(max-min+1)
}

// Weighted selects an index from the given weights, proportionally. Falls
// back to the last index if rounding leaves the draw past the final bucket.
func Weighted(src Source, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}

	target := src.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return i
		}
	}
	return len(weights) - 1
}
