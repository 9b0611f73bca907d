// Reference forward transform of a real density cube
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package grid

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"cosmo-powerspec/pkg/errors"
)

// Transform computes the unnormalized forward 3-D DFT of a real cube
// indexed cube[(x*G+y)*G+z] and returns it as a single slab covering the
// whole grid, transposed to [y][x][z] so the distributed axis comes first.
// Only the non-negative half of the z frequencies is kept.
func Transform(cube []float64, gridSize int) (*Slab, error) {
	g := gridSize
	if g <= 0 || len(cube) != g*g*g {
		return nil, errors.ConfigValidationError("cube",
			fmt.Sprintf("expected %d values for grid size %d, got %d", g*g*g, g, len(cube)))
	}
	half := g/2 + 1

	realFFT := fourier.NewFFT(g)
	cmplxFFT := fourier.NewCmplxFFT(g)

	// First axis: real FFT along z for every (x, y) row
	freq := make([]complex128, g*g*half) // [x][y][kz]
	for x := 0; x < g; x++ {
		for y := 0; y < g; y++ {
			row := x*g + y
			realFFT.Coefficients(freq[row*half:(row+1)*half], cube[row*g:(row+1)*g])
		}
	}

	// Second and third axes: complex FFT along y, then x
	line := make([]complex128, g)
	for x := 0; x < g; x++ {
		for kz := 0; kz < half; kz++ {
			for y := 0; y < g; y++ {
				line[y] = freq[(x*g+y)*half+kz]
			}
			cmplxFFT.Coefficients(line, line)
			for y := 0; y < g; y++ {
				freq[(x*g+y)*half+kz] = line[y]
			}
		}
	}
	for y := 0; y < g; y++ {
		for kz := 0; kz < half; kz++ {
			for x := 0; x < g; x++ {
				line[x] = freq[(x*g+y)*half+kz]
			}
			cmplxFFT.Coefficients(line, line)
			for x := 0; x < g; x++ {
				freq[(x*g+y)*half+kz] = line[x]
			}
		}
	}

	slab := NewSlab(g, 0, g)
	for y := 0; y < g; y++ {
		for x := 0; x < g; x++ {
			for kz := 0; kz < half; kz++ {
				slab.Set(y, x, kz, freq[(x*g+y)*half+kz])
			}
		}
	}
	return slab, nil
}

// CubeMass returns the total mass of a density cube of the given physical
// box size, Σρ·Vcell.
func CubeMass(cube []float64, gridSize int, boxSize float64) float64 {
	n := float64(gridSize)
	vcell := boxSize * boxSize * boxSize / (n * n * n)
	return floats.Sum(cube) * vcell
}
