// Slab-distributed Fourier grids
//
// A global G×G×G grid of Fourier coefficients is split along its first
// stored axis (j, transposed by the FFT) into contiguous slabs, one per
// process. Within a slab the layout is [j][i][k] where k runs over the
// r2c half spectrum stored as real/imaginary float64 pairs padded to a
// row length of 2*(G/2+1).
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package grid

import (
	"fmt"
	"math"

	"cosmo-powerspec/pkg/errors"
)

// Slab is the local part of a distributed Fourier grid.
type Slab struct {
	GridSize int       // global linear size G
	StartJ   int       // global offset along the distributed axis
	SizeJ    int       // extent of this slab along the distributed axis
	Padding  int       // row length in float64 values along the contiguous axis
	Data     []float64 // SizeJ*G*Padding values
}

// PaddedRow returns the row length an r2c transform of size g needs
func PaddedRow(gridSize int) int {
	return 2 * (gridSize/2 + 1)
}

// NewSlab allocates a zeroed slab covering [startJ, startJ+sizeJ)
func NewSlab(gridSize, startJ, sizeJ int) *Slab {
	padding := PaddedRow(gridSize)
	return &Slab{
		GridSize: gridSize,
		StartJ:   startJ,
		SizeJ:    sizeJ,
		Padding:  padding,
		Data:     make([]float64, sizeJ*gridSize*padding),
	}
}

// Validate checks that the slab geometry is self-consistent
func (s *Slab) Validate() error {
	if s.GridSize <= 0 {
		return errors.ConfigValidationError("grid_size", fmt.Sprintf("must be positive, got %d", s.GridSize))
	}
	if s.StartJ < 0 || s.SizeJ < 0 || s.StartJ+s.SizeJ > s.GridSize {
		return errors.IndexOverflowError("j", s.StartJ+s.SizeJ, s.GridSize+1)
	}
	if s.Padding < PaddedRow(s.GridSize) || s.Padding%2 != 0 {
		return errors.ConfigValidationError("padding",
			fmt.Sprintf("row length %d cannot hold %d complex values", s.Padding, s.GridSize/2+1))
	}
	if len(s.Data) != s.SizeJ*s.GridSize*s.Padding {
		return errors.ConfigValidationError("slab",
			fmt.Sprintf("buffer holds %d values, geometry needs %d", len(s.Data), s.SizeJ*s.GridSize*s.Padding))
	}
	return nil
}

// Offset returns the float64 index of the real part of (j, i, kk)
func (s *Slab) Offset(j, i, kk int) int {
	return (j*s.GridSize+i)*s.Padding + 2*kk
}

// At returns coefficient (j, i, kk)
func (s *Slab) At(j, i, kk int) complex128 {
	o := s.Offset(j, i, kk)
	return complex(s.Data[o], s.Data[o+1])
}

// Set stores coefficient (j, i, kk)
func (s *Slab) Set(j, i, kk int, c complex128) {
	o := s.Offset(j, i, kk)
	s.Data[o] = real(c)
	s.Data[o+1] = imag(c)
}

// Clone returns a deep copy of the slab
func (s *Slab) Clone() *Slab {
	c := *s
	c.Data = append([]float64(nil), s.Data...)
	return &c
}

// Range is a contiguous span of the distributed axis
type Range struct {
	Start int
	Size  int
}

// Decompose splits gridSize planes over n processes as evenly as possible.
// Lower ranks receive the extra planes.
func Decompose(gridSize, n int) ([]Range, error) {
	if n < 1 {
		return nil, errors.ConfigValidationError("processes", fmt.Sprintf("must be at least 1, got %d", n))
	}
	if n > gridSize {
		return nil, errors.ConfigValidationError("processes",
			fmt.Sprintf("%d processes cannot share %d planes", n, gridSize))
	}
	ranges := make([]Range, n)
	base, extra := gridSize/n, gridSize%n
	start := 0
	for r := range ranges {
		size := base
		if r < extra {
			size++
		}
		ranges[r] = Range{Start: start, Size: size}
		start += size
	}
	return ranges, nil
}

// Sub copies the planes of r out of a slab into a new slab
func (s *Slab) Sub(r Range) (*Slab, error) {
	if r.Start < s.StartJ || r.Start+r.Size > s.StartJ+s.SizeJ || r.Size < 0 {
		return nil, errors.IndexOverflowError("j", r.Start+r.Size, s.StartJ+s.SizeJ+1)
	}
	sub := &Slab{
		GridSize: s.GridSize,
		StartJ:   r.Start,
		SizeJ:    r.Size,
		Padding:  s.Padding,
	}
	plane := s.GridSize * s.Padding
	lo := (r.Start - s.StartJ) * plane
	sub.Data = append([]float64(nil), s.Data[lo:lo+r.Size*plane]...)
	return sub, nil
}

// Split distributes a slab over the given ranges
func (s *Slab) Split(ranges []Range) ([]*Slab, error) {
	out := make([]*Slab, len(ranges))
	for i, r := range ranges {
		sub, err := s.Sub(r)
		if err != nil {
			return nil, err
		}
		out[i] = sub
	}
	return out, nil
}

// FluidFactor converts the conserved fluid density ϱ = a^(3(1+w))ρ to the
// comoving density a³ρ that is assigned to the grid.
func FluidFactor(a, w float64) float64 {
	return math.Pow(a, -3*w)
}
