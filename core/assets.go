package core

import (
	"context"
	"sync"

	"github.com/BewareOfTheRocks/rockviz/internal/logging"
)

// Assets maps resource keys to mesh handles. Hosts register hand-authored
// meshes ahead of time; anything unregistered falls back to deterministic
// procedural generation, so a missing asset degrades the look of one rock
// and nothing else.
//
// The registry is passed by handle to whoever needs it. There is no
// process-wide instance.
type Assets struct {
	mu     sync.RWMutex
	meshes map[string]*Mesh
	log    logging.Logger
}

// NewAssets constructs an empty registry. A nil logger is replaced with a
// no-op one.
func NewAssets(log logging.Logger) *Assets {
	if log == nil {
		log = logging.Noop()
	}
	return &Assets{
		meshes: make(map[string]*Mesh),
		log:    log,
	}
}

// RegisterMesh binds a mesh to a resource key, replacing any previous
// binding.
func (a *Assets) RegisterMesh(key string, m *Mesh) {
	if m == nil {
		return
	}
	a.mu.Lock()
	a.meshes[key] = m
	a.mu.Unlock()
}

// Mesh looks a mesh up by key.
func (a *Assets) Mesh(key string) (*Mesh, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.meshes[key]
	return m, ok
}

// RockMesh resolves the mesh for a rock: a registered mesh wins, otherwise
// a procedural one is generated from the rock's parameters and cached under
// the key. The procedural path errors only for invalid parameters, which
// callers treat like any other malformed record.
func (a *Assets) RockMesh(key string, radius float64, segments int, seed int64) (*Mesh, error) {
	a.mu.RLock()
	m, ok := a.meshes[key]
	a.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := GenerateRockMesh(radius, segments, seed)
	if err != nil {
		return nil, err
	}
	a.log.Debug(context.Background(), "no registered mesh, generated procedural rock",
		logging.String("key", key),
		logging.Int("segments", segments))

	a.mu.Lock()
	a.meshes[key] = m
	a.mu.Unlock()
	return m, nil
}
