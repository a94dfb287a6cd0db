// Package randutil derives reproducible random sources from one int64 seed,
// so a shuffle, a bot and a whole simulation can be replayed.
package randutil

import rand "math/rand/v2"

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a PCG source seeded from seed. The same seed always yields
// the same sequence.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Seed picks a fresh seed. Callers log it so a game can be replayed.
func Seed() int64 {
	return rand.Int64()
}

// Derive returns the seed for the n-th independent stream under seed. A
// simulation gives each round and each bot its own stream this way.
func Derive(seed int64, n int) int64 {
	return int64(mix(uint64(seed) ^ mix(uint64(n)+goldenRatio64)))
}

// mix is the splitmix64 finaliser
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
