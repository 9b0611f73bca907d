// Top-hat smoothed rms density variation
//
// σ_R² = ∫d³k/(2π)³ P(k) W(kR)², with W(x) = 3(sin x − x cos x)/x³ the
// Fourier transform of a ball of radius R. Writing the integral over the
// grid-unit k² gives
//
//	σ_R² = 1/(2π)² ∫ dk²_phys k P W² = 1/boxsize² ∫ dk² k P W²
//
// which is evaluated with the composite trapezoid rule over the populated
// k² bins only. The integrand below uses W²/9, and the factor 9 together
// with the trapezoid ½ is applied at the end as 4.5/boxsize².
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package tophat

import (
	"iter"
	"math"

	"cosmo-powerspec/pkg/errors"
)

const machineEpsilon = 2.220446049250313e-16

// Point is one populated bin of a normalized spectrum
type Point struct {
	K2       int     // squared wave number in grid units
	K        float64 // physical wave number
	Power    float64
	Variance float64
}

// Result is σ_R and its standard deviation
type Result struct {
	Sigma    float64
	SigmaErr float64
}

// W2 returns W(x)²/9 = (sin x − x cos x)²/x⁶, using the analytic limit
// 1/9 where x⁶ is too small for the difference to be resolved.
func W2(x float64) float64 {
	x6 := math.Pow(x, 6)
	if x6 <= 10*machineEpsilon {
		return 1.0 / 9
	}
	d := math.Sin(x) - x*math.Cos(x)
	return d * d / x6
}

// sample is a point together with its integrand k·P·W²/9 and the
// power-independent part k·W²/9 used for error propagation
type sample struct {
	k2        int
	integrand float64
	weight    float64 // k·W²/9, so integrand = weight·power
	variance  float64
}

// ring holds the last three samples of the fold
type ring struct {
	buf [3]sample
	n   int
}

func (r *ring) push(s sample) {
	r.buf[r.n%3] = s
	r.n++
}

// back returns the i'th most recent sample (0 is the newest)
func (r *ring) back(i int) sample {
	return r.buf[(r.n-1-i)%3]
}

// Integrator evaluates σ_R for a fixed box and radius
type Integrator struct {
	BoxSize float64
	Radius  float64
}

// New creates an integrator
func New(boxSize, radius float64) *Integrator {
	return &Integrator{BoxSize: boxSize, Radius: radius}
}

// Integrate folds over points in ascending k² order. Every segment
// contributes (segment/power)²·variance to the variance of the integral.
func (it *Integrator) Integrate(points iter.Seq[Point]) (Result, error) {
	var (
		r      ring
		sigma2 float64
		var2   float64
	)
	add := func(width int, s sample) {
		w := float64(width)
		sigma2 += w * s.integrand
		// (w·integrand/power)² without dividing by a possibly zero power
		rel := w * s.weight
		var2 += rel * rel * s.variance
	}

	for p := range points {
		wk := p.K * W2(p.K*it.Radius)
		s := sample{
			k2:        p.K2,
			integrand: wk * p.Power,
			weight:    wk,
			variance:  p.Variance,
		}
		r.push(s)
		switch {
		case r.n == 2:
			first, second := r.back(1), r.back(0)
			add(second.k2-first.k2, first)
		case r.n > 2:
			left, center, right := r.back(2), r.back(1), r.back(0)
			add(right.k2-left.k2, center)
		}
	}
	if r.n < 3 {
		return Result{}, errors.InsufficientBinsError(r.n)
	}
	last, prev := r.back(0), r.back(1)
	add(last.k2-prev.k2, last)

	fac := 4.5 / (it.BoxSize * it.BoxSize)
	sigma2 *= fac
	var2 *= fac * fac

	res := Result{Sigma: math.Sqrt(sigma2)}
	if sigma2 > 0 {
		res.SigmaErr = math.Sqrt(var2 / (4 * sigma2))
	}
	return res, nil
}

// Slice adapts a slice of points to the sequence Integrate consumes
func Slice(points []Point) iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for _, p := range points {
			if !yield(p) {
				return
			}
		}
	}
}
