// rng.go - deterministic per-behavior RNG (spec.md §4.3, §9)

package behaviors

import "hash/fnv"

// RNG is a small deterministic generator: behaviors that need randomness
// derive one from (project seed, key, tick) and must never touch a
// process-global source (spec.md §4.3 "Deterministic RNG", §9 "Per-frame
// RNG"). It is a splitmix64-style generator, chosen for speed. The emitted
// firmware does not use it: the template's fire and sparkle draw from its
// own modulo_hash1/modulo_noise1 functions instead.
type RNG struct{ state uint64 }

// NewRNG derives a seed from the triple (projectSeed, layerUID, tick), so
// the same key on the same tick always draws the same values, regardless
// of evaluation order. The catalog behaviors (fire, sparkle, swarm) pass
// their behavior key as layerUID, not the layer's uid, so two layers with
// the same behavior and seed draw the same values on the same tick.
func NewRNG(projectSeed uint64, layerUID string, tick uint64) *RNG {
	h := fnv.New64a()
	_, _ = h.Write([]byte(layerUID))
	mixed := projectSeed ^ h.Sum64()*0x9E3779B97F4A7C15 ^ (tick * 0xBF58476D1CE4E5B9)
	if mixed == 0 {
		mixed = 0x9E3779B97F4A7C15
	}
	return &RNG{state: mixed}
}

func (r *RNG) Uint64() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Float64 returns a value in [0,1).
func (r *RNG) Float64() float64 {
	return float64(r.Uint64()>>11) / (1 << 53)
}

// Range returns a value in [lo, hi).
func (r *RNG) Range(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

// IntN returns a value in [0, n).
func (r *RNG) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Uint64() % uint64(n))
}
