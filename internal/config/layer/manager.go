package layer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Errors returned by Manager.
var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrReadOnly      = errors.New("layer is read-only")
)

// Manager holds the layers of one configuration and caches their merge.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer // ascending priority
	merged map[string]any
	dirty  bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{dirty: true}
}

// Add inserts a layer, replacing any layer with the same name.
func (m *Manager) Add(l *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.index(l.Name); i >= 0 {
		m.layers[i] = l
	} else {
		m.layers = append(m.layers, l)
	}
	sort.SliceStable(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
	m.dirty = true
}

// Remove deletes the named layer and reports whether it existed.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(name)
	if i < 0 {
		return false
	}
	m.layers = append(m.layers[:i], m.layers[i+1:]...)
	m.dirty = true
	return true
}

// Layer returns the named layer or nil.
func (m *Manager) Layer(name string) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.index(name); i >= 0 {
		return m.layers[i]
	}
	return nil
}

// Layers returns the layers in ascending priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Layer, len(m.layers))
	copy(out, m.layers)
	return out
}

// Merge returns a copy of all layers merged in priority order.
func (m *Manager) Merge() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dirty || m.merged == nil {
		merged := make(map[string]any)
		for _, l := range m.layers {
			merged = DeepMerge(merged, l.Data)
		}
		m.merged = merged
		m.dirty = false
	}
	return cloneMap(m.merged)
}

// Get returns the effective value at path and the layer that supplied it.
func (m *Manager) Get(path string) (any, *Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		if v, ok := GetByPath(m.layers[i].Data, path); ok {
			return v, m.layers[i], true
		}
	}
	return nil, nil, false
}

// Set stores value at path in the named layer.
func (m *Manager) Set(name, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writable(name)
	if err != nil {
		return err
	}
	SetByPath(l.Data, path, value)
	m.dirty = true
	return nil
}

// Replace swaps the data of the named layer for a copy of data.
func (m *Manager) Replace(name string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writable(name)
	if err != nil {
		return err
	}
	l.Data = cloneMap(data)
	if l.Data == nil {
		l.Data = make(map[string]any)
	}
	l.LoadedAt = time.Now()
	m.dirty = true
	return nil
}

// WhichLayer returns the name of the layer supplying path, or "".
func (m *Manager) WhichLayer(path string) string {
	if _, l, ok := m.Get(path); ok {
		return l.Name
	}
	return ""
}

func (m *Manager) writable(name string) (*Layer, error) {
	i := m.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, name)
	}
	l := m.layers[i]
	if l.ReadOnly {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	if l.Data == nil {
		l.Data = make(map[string]any)
	}
	return l, nil
}

func (m *Manager) index(name string) int {
	for i, l := range m.layers {
		if l.Name == name {
			return i
		}
	}
	return -1
}
