package pool

import (
	"sync"
	"sync/atomic"

	"github.com/fenwick-systems/connectproxy/internal/concurrency"
)

const slabPoolCapacity = 4096

// slabPool recycles fixed-size byte slices for one size class on one
// NUMA node.
type slabPool struct {
	class int
	node  int

	recycled *concurrency.RingBuffer[[]byte]

	totalAlloc atomic.Int64
	totalFree  atomic.Int64

	mu sync.Mutex // serializes Alloc/Free against numaAllocator on miss
}

func newSlabPool(class, node int) *slabPool {
	return &slabPool{
		class:    class,
		node:     node,
		recycled: concurrency.NewRingBuffer[[]byte](slabPoolCapacity),
	}
}

// Get returns a buffer of at least size bytes; size is ignored beyond
// rounding since every buffer in this pool belongs to the same class.
func (p *slabPool) Get(size int) []byte {
	if size > p.class {
		// Larger than the largest size class: no slab can hold it.
		return make([]byte, size)
	}
	if buf, ok := p.recycled.Dequeue(); ok {
		return buf[:size]
	}
	p.mu.Lock()
	buf, err := numaAllocator.Alloc(p.class, p.node)
	p.mu.Unlock()
	if err != nil {
		buf = make([]byte, p.class)
	}
	p.totalAlloc.Add(1)
	return buf[:size]
}

func (p *slabPool) Put(buf []byte) {
	buf = buf[:cap(buf)]
	if p.recycled.Enqueue(buf) {
		p.totalFree.Add(1)
		return
	}
	p.mu.Lock()
	numaAllocator.Free(buf)
	p.mu.Unlock()
}

// Stats reports allocation/free counters for diagnostics.
func (p *slabPool) Stats() (class, node int, allocs, frees int64) {
	return p.class, p.node, p.totalAlloc.Load(), p.totalFree.Load()
}
