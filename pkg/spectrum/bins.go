// Deconvolution and k² binning of a Fourier slab
//
// Every coefficient of the local slab is divided by the Fourier
// transform of the mass assignment kernel and its power is accumulated
// into the bin of its integer k². Accumulation is local; the per-rank
// bins are summed afterwards by Reduce.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package spectrum

import (
	"fmt"
	"math"

	"cosmo-powerspec/pkg/errors"
	"cosmo-powerspec/pkg/grid"
	"cosmo-powerspec/pkg/pool"
	"cosmo-powerspec/pkg/wavevec"
)

const machineEpsilon = 2.220446049250313e-16

// Bins accumulates power per integer k². All arrays have length K2Max+1.
type Bins struct {
	PowerSum   []float64
	Count      []int64
	PowerSqSum []float64
}

// NewBins returns zeroed bins for k² in [0, k2Max]
func NewBins(k2Max int) *Bins {
	n := k2Max + 1
	return &Bins{
		PowerSum:   pool.GetFloat64s(n),
		Count:      pool.GetInt64s(n),
		PowerSqSum: pool.GetFloat64s(n),
	}
}

// K2Max returns the largest k² the bins hold
func (b *Bins) K2Max() int {
	return len(b.PowerSum) - 1
}

// Release returns the arrays to the buffer pool. b must not be used after.
func (b *Bins) Release() {
	pool.PutFloat64s(b.PowerSum)
	pool.PutInt64s(b.Count)
	pool.PutFloat64s(b.PowerSqSum)
	b.PowerSum, b.Count, b.PowerSqSum = nil, nil, nil
}

// Add records one coefficient of power p at k2
func (b *Bins) Add(k2 int, p float64) {
	b.PowerSum[k2] += p
	b.Count[k2]++
	b.PowerSqSum[k2] += p * p
}

// Populated returns the number of bins with a non-zero count
func (b *Bins) Populated() int {
	n := 0
	for _, c := range b.Count {
		if c != 0 {
			n++
		}
	}
	return n
}

// DeconvOptions controls the kernel correction
type DeconvOptions struct {
	// Order is the number of CIC passes the field was assigned with.
	// The sinc product is removed to the power 2·Order. Zero means 1.
	Order int
}

func (o DeconvOptions) exponent() int {
	if o.Order <= 0 {
		return 2
	}
	return 2 * o.Order
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(x) / x
}

// sincTable returns sinc(k·π/G) for k in [0, G/2]
func sincTable(gridSize int) []float64 {
	t := make([]float64, gridSize/2+1)
	for k := range t {
		t[k] = sinc(float64(k) * math.Pi / float64(gridSize))
	}
	return t
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// KernelFactor returns the product over the three axes of sinc(k·π/G)
func KernelFactor(v wavevec.Vector, gridSize int) float64 {
	g := float64(gridSize)
	return sinc(float64(v.Ki)*math.Pi/g) *
		sinc(float64(v.Kj)*math.Pi/g) *
		sinc(float64(v.Kk)*math.Pi/g)
}

// Deconvolve corrects every coefficient of slab in place and adds its
// power to bins. It returns the number of coefficients whose kernel
// factor was too small to divide by; those are binned uncorrected.
func Deconvolve(slab *grid.Slab, bins *Bins, opts DeconvOptions) (guarded int, err error) {
	if err := slab.Validate(); err != nil {
		return 0, err
	}
	g := slab.GridSize
	if want := wavevec.K2Max(g); bins.K2Max() != want {
		return 0, errors.ConfigValidationError("bins",
			fmt.Sprintf("bins cover k² <= %d, grid of size %d needs %d", bins.K2Max(), g, want))
	}

	ix := &wavevec.Indexer{GridSize: g, StartJ: slab.StartJ, K2Limit: bins.K2Max()}
	table := sincTable(g)
	exp := opts.exponent()
	// Only the first G/2+1 pairs of a row hold coefficients
	rowPairs := 2 * (g/2 + 1)

	for j := 0; j < slab.SizeJ; j++ {
		for i := 0; i < g; i++ {
			row, err := ix.Row(j, i)
			if err != nil {
				return guarded, err
			}
			sij := table[abs(row.Ki)] * table[abs(row.Kj)]
			base := slab.Offset(j, i, 0)
			for kp := 0; kp < rowPairs; kp += 2 {
				kk, k2, err := row.At(kp)
				if err != nil {
					return guarded, err
				}
				d := sij * table[kk]
				dn := math.Pow(d, float64(exp))

				re, im := slab.Data[base+kp], slab.Data[base+kp+1]
				if dn < machineEpsilon {
					guarded++
				} else {
					re /= dn
					im /= dn
					slab.Data[base+kp] = re
					slab.Data[base+kp+1] = im
				}
				bins.Add(k2, re*re+im*im)
			}
		}
	}
	return guarded, nil
}
