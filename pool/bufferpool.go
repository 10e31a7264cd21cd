package pool

import "sync"

// BufferPoolManager lazily creates one slabPool per (size class, NUMA
// node) pair and routes requests to it.
type BufferPoolManager struct {
	mu    sync.RWMutex
	nodes map[int]map[int]*slabPool // node -> class -> pool
}

// NewBufferPoolManager creates an empty manager; pools are created on
// first use.
func NewBufferPoolManager() *BufferPoolManager {
	return &BufferPoolManager{nodes: make(map[int]map[int]*slabPool)}
}

// Get returns a buffer of exactly size bytes, preferring node-local
// memory. node may be -1 to mean "no preference".
func (m *BufferPoolManager) Get(size, node int) []byte {
	return m.poolFor(size, node).Get(size)
}

// Put returns buf to the pool matching its capacity's size class.
func (m *BufferPoolManager) Put(buf []byte, node int) {
	m.poolFor(cap(buf), node).Put(buf)
}

func (m *BufferPoolManager) poolFor(size, node int) *slabPool {
	class := sizeClassUpperBound(size)

	m.mu.RLock()
	classes, ok := m.nodes[node]
	if ok {
		if p, ok := classes[class]; ok {
			m.mu.RUnlock()
			return p
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	classes, ok = m.nodes[node]
	if !ok {
		classes = make(map[int]*slabPool)
		m.nodes[node] = classes
	}
	if p, ok := classes[class]; ok {
		return p
	}
	p := newSlabPool(class, node)
	classes[class] = p
	return p
}
