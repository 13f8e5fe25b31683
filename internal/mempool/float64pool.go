package mempool

import (
	"sync"
)

// A simple sized pool for []float64 row buffers used by the rolling DP passes.

var float64Pools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of 256 to reduce churn.
func sizeClass(n int) int {
	const step = 256
	if n <= step {
		return step
	}
	r := (n + step - 1) / step
	return r * step
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return nil
	}
	return p
}

// GetFloat64 retrieves a zeroed []float64 of length n from the pool.
// The caller must return it via PutFloat64 when done.
func GetFloat64(n int) []float64 {
	cls := sizeClass(n)
	p := poolFor(cls)
	if p == nil {
		return make([]float64, n)
	}
	buf, ok := p.Get().([]float64)
	if !ok || cap(buf) < cls {
		buf = make([]float64, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// PutFloat64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat64(buf []float64) {
	if buf == nil {
		return
	}
	// Only buffers that came from GetFloat64 have a capacity equal to a size class.
	cls := cap(buf)
	if sizeClass(cls) != cls {
		return
	}
	if p := poolFor(cls); p != nil {
		p.Put(buf[:cls]) //nolint:staticcheck
	}
}
