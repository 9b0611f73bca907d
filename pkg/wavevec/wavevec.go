// Wave-vector indexing for slab-distributed Fourier grids
//
// Maps local slab coordinates to integer wave-vector components using
// the FFT frequency convention: an index n along an axis of size G maps
// to n when n <= G/2 and to n-G otherwise. The contiguous axis of an
// r2c transform holds only the non-negative half, stored as interleaved
// real/imaginary pairs, so its frequency is the raw pair index halved.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package wavevec

import (
	"cosmo-powerspec/pkg/errors"
)

// Vector is an integer wave vector in grid units
type Vector struct {
	Ki, Kj, Kk int
	K2         int // Ki² + Kj² + Kk²
}

// Fold maps a grid index to its signed frequency
func Fold(n, gridSize int) int {
	if n > gridSize/2 {
		return n - gridSize
	}
	return n
}

// K2Max returns the largest k² reachable on a grid of the given size
func K2Max(gridSize int) int {
	half := gridSize / 2
	return 3 * half * half
}

// Indexer converts slab coordinates of one process into wave vectors.
type Indexer struct {
	GridSize int // global linear grid size G
	StartJ   int // global offset of the slab along the distributed axis
	K2Limit  int // largest k² the caller has bins for
}

// NewIndexer creates an indexer whose bin range covers the whole grid
func NewIndexer(gridSize, startJ int) *Indexer {
	return &Indexer{
		GridSize: gridSize,
		StartJ:   startJ,
		K2Limit:  K2Max(gridSize),
	}
}

// Vector returns the wave vector of slab element (jLocal, i, kPair),
// where kPair is the raw float64 offset of the real part within a row.
func (ix *Indexer) Vector(jLocal, i, kPair int) (Vector, error) {
	g := ix.GridSize
	jGlobal := ix.StartJ + jLocal
	if jGlobal < 0 || jGlobal >= g {
		return Vector{}, errors.IndexOverflowError("j", jGlobal, g)
	}
	if i < 0 || i >= g {
		return Vector{}, errors.IndexOverflowError("i", i, g)
	}
	kk := kPair / 2
	if kPair < 0 || kk > g/2 {
		return Vector{}, errors.IndexOverflowError("k", kk, g/2+1)
	}

	v := Vector{
		Ki: Fold(i, g),
		Kj: Fold(jGlobal, g),
		Kk: kk,
	}
	v.K2 = v.Ki*v.Ki + v.Kj*v.Kj + v.Kk*v.Kk
	if v.K2 > ix.K2Limit {
		return Vector{}, errors.BinOverflowError(v.K2, ix.K2Limit)
	}
	return v, nil
}

// Row caches the j and i components of one slab row so the inner loop
// over the contiguous axis only adds Kk².
type Row struct {
	Ki, Kj   int
	KiKj2    int
	gridSize int
	k2Limit  int
}

// Row returns the row descriptor for (jLocal, i)
func (ix *Indexer) Row(jLocal, i int) (Row, error) {
	v, err := ix.Vector(jLocal, i, 0)
	if err != nil {
		return Row{}, err
	}
	return Row{
		Ki:       v.Ki,
		Kj:       v.Kj,
		KiKj2:    v.K2,
		gridSize: ix.GridSize,
		k2Limit:  ix.K2Limit,
	}, nil
}

// At returns kk and k² for pair offset kPair within the row
func (r Row) At(kPair int) (kk, k2 int, err error) {
	kk = kPair / 2
	if kPair < 0 || kk > r.gridSize/2 {
		return 0, 0, errors.IndexOverflowError("k", kk, r.gridSize/2+1)
	}
	k2 = r.KiKj2 + kk*kk
	if k2 > r.k2Limit {
		return 0, 0, errors.BinOverflowError(k2, r.k2Limit)
	}
	return kk, k2, nil
}
