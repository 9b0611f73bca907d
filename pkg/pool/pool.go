// Object pools for the bin accumulator arrays
//
// Spectrum computations allocate three arrays of length k²_max+1 per
// field. The pools below hand out zeroed slices keyed by length so that
// repeated spectra of one run reuse the same backing storage.
//
// Usage:
//
//	power := pool.GetFloat64s(k2Max + 1)
//	defer pool.PutFloat64s(power)
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"sync"
	"sync/atomic"
)

// sizedPool holds one sync.Pool per slice length
type sizedPool[T any] struct {
	pools sync.Map // int -> *sync.Pool
	hits  atomic.Uint64
	miss  atomic.Uint64
}

func (p *sizedPool[T]) get(n int) []T {
	v, _ := p.pools.LoadOrStore(n, &sync.Pool{})
	sp := v.(*sync.Pool)
	if s, ok := sp.Get().(*[]T); ok {
		p.hits.Add(1)
		clear(*s)
		return *s
	}
	p.miss.Add(1)
	return make([]T, n)
}

func (p *sizedPool[T]) put(s []T) {
	if len(s) == 0 {
		return
	}
	// Slices resliced below their capacity are not pooled
	if len(s) != cap(s) {
		return
	}
	v, _ := p.pools.LoadOrStore(len(s), &sync.Pool{})
	v.(*sync.Pool).Put(&s)
}

var (
	float64Pool sizedPool[float64]
	int64Pool   sizedPool[int64]
)

// GetFloat64s gets a zeroed float64 slice of length n from the pool
func GetFloat64s(n int) []float64 {
	return float64Pool.get(n)
}

// PutFloat64s returns a float64 slice to the pool
func PutFloat64s(s []float64) {
	float64Pool.put(s)
}

// GetInt64s gets a zeroed int64 slice of length n from the pool
func GetInt64s(n int) []int64 {
	return int64Pool.get(n)
}

// PutInt64s returns an int64 slice to the pool
func PutInt64s(s []int64) {
	int64Pool.put(s)
}

// PoolStats holds statistics about pool usage
type PoolStats struct {
	Float64Hits   uint64
	Float64Allocs uint64
	Int64Hits     uint64
	Int64Allocs   uint64
}

// Stats returns the current pool hit and allocation counts
func Stats() PoolStats {
	return PoolStats{
		Float64Hits:   float64Pool.hits.Load(),
		Float64Allocs: float64Pool.miss.Load(),
		Int64Hits:     int64Pool.hits.Load(),
		Int64Allocs:   int64Pool.miss.Load(),
	}
}
