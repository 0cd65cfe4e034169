package chunk

import "sync"

// classPool is one size class of a sync.Pool-backed byte-buffer cache.
type classPool struct {
	size int
	pool *sync.Pool
}

// bufPool is sized to this package's own needs: a small class for the 2-byte length header plus
// short control replies, one matching DefaultChunkSize, and one matching the protocol's
// MaxChunkSize. It backs the scratch buffers Writer.flush and Parser.Feed allocate on every
// chunk, to reduce GC churn under sustained pipelining.
var bufPool = newBufPool()

func newBufPool() []classPool {
	sizes := []int{256, DefaultChunkSize, MaxChunkSize}
	pools := make([]classPool, len(sizes))
	for i, size := range sizes {
		size := size
		pools[i] = classPool{
			size: size,
			pool: &sync.Pool{New: func() any { return make([]byte, size) }},
		}
	}
	return pools
}

// getBuf returns a byte slice whose length is size and whose capacity is the nearest size class
// that fits it. Requests larger than the largest class allocate a fresh, unpooled slice.
func getBuf(size int) []byte {
	if size <= 0 {
		return nil
	}
	for i := range bufPool {
		class := &bufPool[i]
		if size <= class.size {
			buf := class.pool.Get().([]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// putBuf returns buf to the pool if its capacity matches a size class; buffers that don't are
// discarded. The buffer is zeroed before reuse so no chunk payload leaks across callers.
func putBuf(buf []byte) {
	if buf == nil {
		return
	}
	capBuf := cap(buf)
	for i := range bufPool {
		class := &bufPool[i]
		if capBuf == class.size {
			full := buf[:class.size]
			clear(full)
			class.pool.Put(full)
			return
		}
	}
}
