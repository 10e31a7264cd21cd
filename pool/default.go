package pool

import "github.com/fenwick-systems/connectproxy/api"

// defaultNode is used by DefaultPool, which has no NUMA preference.
const defaultNode = -1

var defaultManager = NewBufferPoolManager()

// DefaultManager returns the process-wide BufferPoolManager.
func DefaultManager() *BufferPoolManager { return defaultManager }

// defaultPool adapts BufferPoolManager to the single-argument
// api.BufferPool contract for callers that don't need NUMA placement.
type defaultPool struct{}

func (defaultPool) Get(size int) []byte { return defaultManager.Get(size, defaultNode) }
func (defaultPool) Put(buf []byte)      { defaultManager.Put(buf, defaultNode) }

var _ api.BufferPool = defaultPool{}

// DefaultPool is the process-wide buffer pool with no NUMA preference.
func DefaultPool() api.BufferPool { return defaultPool{} }
