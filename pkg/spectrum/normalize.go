// Normalization of reduced bins
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package spectrum

import (
	"fmt"

	"cosmo-powerspec/pkg/errors"
)

// Normalized holds the power and its variance for every k² bin.
// Bins outside the run mask are zero.
type Normalized struct {
	Power    []float64
	Variance []float64

	// Clamped counts bins whose variance came out negative from
	// round-off and was set to 0
	Clamped int
}

// Norm returns boxsize³/(Σmass/Vcell)², the factor that converts the
// squared transform of the mass grid into a power spectrum.
func (c *Context) Norm(totalMass float64) (float64, error) {
	if !(totalMass > 0) {
		return 0, errors.ConfigValidationError("mass",
			fmt.Sprintf("total mass must be positive, got %g", totalMass))
	}
	cells := totalMass / c.CellVolume()
	vol := c.BoxSize * c.BoxSize * c.BoxSize
	return vol / (cells * cells), nil
}

// Normalize turns reduced bins into power and variance. It runs on the
// coordinator only. Bins 0 and K2Max are discarded first; the first call
// of a run fixes the mask, later calls must populate the same bins.
func Normalize(c *Context, bins *Bins, totalMass float64) (*Normalized, error) {
	if bins.K2Max() != c.K2Max {
		return nil, errors.BinOverflowError(bins.K2Max(), c.K2Max)
	}
	for _, k2 := range []int{0, c.K2Max} {
		bins.PowerSum[k2] = 0
		bins.Count[k2] = 0
		bins.PowerSqSum[k2] = 0
	}
	if err := c.adoptMask(bins.Count); err != nil {
		return nil, err
	}
	norm, err := c.Norm(totalMass)
	if err != nil {
		return nil, err
	}

	n := &Normalized{
		Power:    make([]float64, c.K2Max+1),
		Variance: make([]float64, c.K2Max+1),
	}
	norm2 := norm * norm
	for _, k2 := range c.ValidK2() {
		count := float64(bins.Count[k2])
		p := bins.PowerSum[k2] * norm / count
		v := (bins.PowerSqSum[k2]*norm2/count - p*p) / count
		if v < 0 {
			v = 0
			n.Clamped++
		}
		n.Power[k2] = p
		n.Variance[k2] = v
	}
	return n, nil
}
