// Package shuffle provides the deterministic pseudo-random generator used to permute session
// questions and options. Output for a given seed is fixed by Version and must never change;
// introduce a new version instead.
package shuffle

import (
	"crypto/sha256"
	"encoding/binary"
)

// Version identifies the generator (SplitMix64) and permutation (Fisher–Yates, last index down).
const Version = "splitmix64-fy/v1"

// SeedFromID derives a seed from the first 8 bytes (big endian) of SHA-256(id).
func SeedFromID(id string) int64 {
	sum := sha256.Sum256([]byte(id))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// Rand is a SplitMix64 generator. It is not safe for concurrent use.
type Rand struct {
	state uint64
}

func New(seed int64) *Rand {
	return &Rand{state: uint64(seed)}
}

func (r *Rand) Uint64() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Intn returns a value in [0, n) using the high 32 bits of the next output. n must be in (0, 2^32).
func (r *Rand) Intn(n int) int {
	if n <= 0 {
		panic("shuffle: invalid argument to Intn")
	}
	return int(((r.Uint64() >> 32) * uint64(n)) >> 32)
}

// Shuffle permutes n elements through swap, from the last index down.
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		swap(i, j)
	}
}

// Perm returns a permutation of [0, n).
func (r *Rand) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	r.Shuffle(n, func(i, j int) { p[i], p[j] = p[j], p[i] })
	return p
}
