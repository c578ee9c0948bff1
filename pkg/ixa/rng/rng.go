// Package rng provides the deterministic random-stream plugin: every
// stream requested by name is fully determined by the run's --seed, so two
// runs with the same seed draw identical sequences regardless of which
// other streams were requested first.
package rng

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"
)

// ID names a random stream. Distinct ids never collide: the stream's seed
// is derived from the master seed XOR'd with a fingerprint of the id, the
// same fingerprinting primitive the property store uses for secondary
// indexes.
type ID string

// Stream is a single named random source. It wraps math/rand/v2's PCG
// generator behind the *rand.Rand convenience API.
type Stream = rand.Rand

// Manager lazily creates and caches one Stream per ID, every stream seeded
// deterministically from the manager's master seed.
type Manager struct {
	mu      sync.Mutex
	seed    uint64
	streams map[ID]*Stream
}

// NewManager creates a Manager whose streams all derive from seed.
func NewManager(seed uint64) *Manager {
	return &Manager{seed: seed, streams: make(map[ID]*Stream)}
}

// GetRng returns the stream for id, creating it (seeded deterministically
// from the manager's seed and id's fingerprint) on first request.
func (m *Manager) GetRng(id ID) *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.streams[id]; ok {
		return s
	}
	seed1, seed2 := deriveSeed(m.seed, id)
	s := rand.New(rand.NewPCG(seed1, seed2))
	m.streams[id] = s
	return s
}

// fingerprint hashes id's name into a 64-bit value via FNV-1a, used only
// to derive a stream seed — not a security-sensitive hash.
func fingerprint(id ID) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func deriveSeed(master uint64, id ID) (uint64, uint64) {
	fp := fingerprint(id)
	return master ^ fp, fp ^ 0x9E3779B97F4A7C15
}
