package utils

import (
	"math/rand"
	"sync"
	"time"
)

// RandSource is a goroutine-safe random number generator. Grid points evaluated
// by parallel workers share one source, so every draw takes the lock.
type RandSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed. A zero seed
// seeds from the clock.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// NormPair draws two independent normal variates under a single lock.
func (r *RandSource) NormPair(mean, stddev float64) (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.NormFloat64()*stddev + mean, r.rng.NormFloat64()*stddev + mean
}

var defaultRand = NewRandSource(0)

// Float64 returns a random float64 in [0.0, 1.0) from the process-wide source.
func Float64() float64 {
	return defaultRand.Float64()
}
