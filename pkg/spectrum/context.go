// Run context for power spectrum computations
//
// Holds the geometry of a run, the physical wave number of every k² bin
// and the set of populated bins. The set is fixed by the first spectrum
// normalized in the run; every later spectrum must populate the same bins.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package spectrum

import (
	"fmt"
	"iter"
	"math"
	"sync"

	"cosmo-powerspec/pkg/errors"
	"cosmo-powerspec/pkg/tophat"
	"cosmo-powerspec/pkg/wavevec"
)

// Geometry describes the global grid
type Geometry struct {
	GridSize int     // linear grid size G
	BoxSize  float64 // comoving box side length
}

// CellVolume returns boxsize³/G³
func (g Geometry) CellVolume() float64 {
	cell := g.BoxSize / float64(g.GridSize)
	return cell * cell * cell
}

// Context is shared by every spectrum computed during a run. It is safe
// for concurrent readers once the mask has been built.
type Context struct {
	Geometry
	RTophat float64

	// K2Max is the largest k² on the grid; bins run from 0 to K2Max
	K2Max int

	// KMagnitudes[k2] = 2π/boxsize·√k2
	KMagnitudes []float64

	mu      sync.RWMutex
	mask    []bool
	validK2 []int
	maskedK []float64
}

// NewContext validates the geometry and builds the wave-number table
func NewContext(geo Geometry, rTophat float64) (*Context, error) {
	if geo.GridSize < 2 || geo.GridSize%2 != 0 {
		return nil, errors.ConfigValidationError("grid_size",
			fmt.Sprintf("must be an even number >= 2, got %d", geo.GridSize))
	}
	if !(geo.BoxSize > 0) {
		return nil, errors.ConfigValidationError("boxsize",
			fmt.Sprintf("must be positive, got %g", geo.BoxSize))
	}
	if rTophat < 0 || math.IsNaN(rTophat) {
		return nil, errors.ConfigValidationError("r_tophat",
			fmt.Sprintf("must not be negative, got %g", rTophat))
	}

	k2Max := wavevec.K2Max(geo.GridSize)
	fac := 2 * math.Pi / geo.BoxSize
	kmag := make([]float64, k2Max+1)
	for k2 := range kmag {
		kmag[k2] = fac * math.Sqrt(float64(k2))
	}

	return &Context{
		Geometry:    geo,
		RTophat:     rTophat,
		K2Max:       k2Max,
		KMagnitudes: kmag,
	}, nil
}

// HasMask reports whether the populated-bin set has been fixed
func (c *Context) HasMask() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mask != nil
}

// ValidK2 returns the populated k² values in ascending order, or nil
// before the first spectrum has been normalized.
func (c *Context) ValidK2() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int(nil), c.validK2...)
}

// MaskedK returns the physical wave numbers of the populated bins
func (c *Context) MaskedK() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]float64(nil), c.maskedK...)
}

// Valid reports whether bin k2 is populated
func (c *Context) Valid(k2 int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return k2 >= 0 && k2 < len(c.mask) && c.mask[k2]
}

// adoptMask builds the mask from count on the first call and checks
// count against it afterwards. Bins 0 and K2Max must already be zeroed.
func (c *Context) adoptMask(count []int64) error {
	if len(count) != c.K2Max+1 {
		return errors.BinOverflowError(len(count)-1, c.K2Max)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mask != nil {
		for k2, n := range count {
			if (n != 0) != c.mask[k2] {
				return errors.GeometryMismatchError(k2)
			}
		}
		return nil
	}

	mask := make([]bool, len(count))
	var valid []int
	var masked []float64
	for k2, n := range count {
		if n == 0 {
			continue
		}
		mask[k2] = true
		valid = append(valid, k2)
		masked = append(masked, c.KMagnitudes[k2])
	}
	c.mask = mask
	c.validK2 = valid
	c.maskedK = masked
	return nil
}

// Points yields the populated bins of a normalized spectrum in
// ascending k² order, as consumed by the top-hat integrator.
func (c *Context) Points(n *Normalized) iter.Seq[tophat.Point] {
	valid := c.ValidK2()
	return func(yield func(tophat.Point) bool) {
		for _, k2 := range valid {
			p := tophat.Point{
				K2:       k2,
				K:        c.KMagnitudes[k2],
				Power:    n.Power[k2],
				Variance: n.Variance[k2],
			}
			if !yield(p) {
				return
			}
		}
	}
}
