// Top-hat integrator tests
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package tophat

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"cosmo-powerspec/pkg/errors"
)

// points returns one point per k² in k2s with k = fac·√k²
func points(k2s []int, fac float64, power, variance func(k2 int) float64) []Point {
	out := make([]Point, len(k2s))
	for i, k2 := range k2s {
		out[i] = Point{
			K2:       k2,
			K:        fac * math.Sqrt(float64(k2)),
			Power:    power(k2),
			Variance: variance(k2),
		}
	}
	return out
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func TestW2(t *testing.T) {
	if got := W2(0); got != 1.0/9 {
		t.Errorf("W2(0) = %g, want 1/9", got)
	}
	if got := W2(1e-4); got != 1.0/9 {
		t.Errorf("W2(1e-4) = %g, want the 1/9 limit", got)
	}
	// series: (1/9)(1 - x²/5) near 0
	x := 0.05
	want := (1 - x*x/5) / 9
	if got := W2(x); math.Abs(got-want) > 1e-6 {
		t.Errorf("W2(%g) = %g, want %g", x, got, want)
	}
	// first zero of sin x - x cos x, i.e. tan x = x
	if got := W2(4.493409457909064); got > 1e-20 {
		t.Errorf("W2 at the first zero = %g, want ~0", got)
	}
	x = 2.0
	d := math.Sin(x) - x*math.Cos(x)
	if got := W2(x); math.Abs(got-d*d/64) > 1e-15 {
		t.Errorf("W2(2) = %g, want %g", got, d*d/64)
	}
}

func TestInsufficientBins(t *testing.T) {
	it := New(1, 1)
	for n := 0; n < 3; n++ {
		pts := points([]int{1, 2, 3}[:n], 1, constant(1), constant(0))
		_, err := it.Integrate(Slice(pts))
		if !errors.Is(err, errors.ErrInsufficientBins) {
			t.Errorf("%d points: expected INSUFFICIENT_BINS, got %v", n, err)
		}
	}
	pts := points([]int{1, 2, 3}, 1, constant(1), constant(0))
	if _, err := it.Integrate(Slice(pts)); err != nil {
		t.Errorf("3 points: unexpected error %v", err)
	}
}

// TestTrapezoid compares against a direct composite trapezoid on an
// irregular grid.
func TestTrapezoid(t *testing.T) {
	const box = 10.0
	fac := 2 * math.Pi / box
	k2s := []int{1, 2, 3, 5, 6, 8, 9, 12, 14}
	power := func(k2 int) float64 { return 1 / (1 + float64(k2)) }
	pts := points(k2s, fac, power, constant(0))

	for _, radius := range []float64{0, 0.5, 3} {
		res, err := New(box, radius).Integrate(Slice(pts))
		if err != nil {
			t.Fatal(err)
		}

		f := make([]float64, len(pts))
		for i, p := range pts {
			f[i] = p.K * p.Power * W2(p.K*radius)
		}
		var integral float64
		for i := 1; i < len(pts); i++ {
			integral += 0.5 * float64(pts[i].K2-pts[i-1].K2) * (f[i] + f[i-1])
		}
		want := math.Sqrt(9 * integral / (box * box))
		if math.Abs(res.Sigma-want) > 1e-12*want {
			t.Errorf("R=%g: sigma = %.15g, want %.15g", radius, res.Sigma, want)
		}
		if res.SigmaErr != 0 {
			t.Errorf("R=%g: zero variance gave sigma error %g", radius, res.SigmaErr)
		}
	}
}

// TestFlatSpectrumLimit checks a unit spectrum at R=0 against the
// analytic integral σ² = 1/L²·(2π/L)·(2/3)(b^{3/2} − a^{3/2}).
func TestFlatSpectrumLimit(t *testing.T) {
	const box = 1.0
	fac := 2 * math.Pi / box
	k2s := make([]int, 0, 400)
	for k2 := 1; k2 <= 400; k2++ {
		k2s = append(k2s, k2)
	}
	pts := points(k2s, fac, constant(1), constant(0))
	res, err := New(box, 0).Integrate(Slice(pts))
	if err != nil {
		t.Fatal(err)
	}
	a, b := 1.0, 400.0
	want2 := fac * (2.0 / 3) * (math.Pow(b, 1.5) - math.Pow(a, 1.5)) / (box * box)
	if math.Abs(res.Sigma*res.Sigma-want2) > 1e-3*want2 {
		t.Errorf("sigma² = %g, want %g", res.Sigma*res.Sigma, want2)
	}
}

func TestVariancePropagation(t *testing.T) {
	const box = 2.0
	fac := 2 * math.Pi / box
	k2s := []int{1, 2, 4, 5}
	pts := points(k2s, fac, constant(2), constant(0.25))
	radius := 0.4

	res, err := New(box, radius).Integrate(Slice(pts))
	if err != nil {
		t.Fatal(err)
	}

	widths := []float64{1, 3, 3, 1}
	seg := make([]float64, len(pts))
	rel := make([]float64, len(pts))
	for i, p := range pts {
		wk := p.K * W2(p.K*radius)
		seg[i] = widths[i] * wk * p.Power
		rel[i] = widths[i] * wk
		rel[i] = rel[i] * rel[i] * p.Variance
	}
	fac2 := 4.5 / (box * box)
	sigma2 := fac2 * floats.Sum(seg)
	var2 := fac2 * fac2 * floats.Sum(rel)

	if math.Abs(res.Sigma-math.Sqrt(sigma2)) > 1e-12 {
		t.Errorf("sigma = %g, want %g", res.Sigma, math.Sqrt(sigma2))
	}
	wantErr := math.Sqrt(var2 / (4 * sigma2))
	if math.Abs(res.SigmaErr-wantErr) > 1e-12*wantErr {
		t.Errorf("sigma error = %g, want %g", res.SigmaErr, wantErr)
	}
}

func TestZeroPowerBin(t *testing.T) {
	pts := points([]int{1, 2, 3, 4}, 1, func(k2 int) float64 {
		if k2 == 2 {
			return 0
		}
		return 1
	}, constant(0.1))
	res, err := New(1, 0).Integrate(Slice(pts))
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(res.Sigma) || math.IsNaN(res.SigmaErr) {
		t.Errorf("zero power produced NaN: %+v", res)
	}
}

func TestIdempotent(t *testing.T) {
	pts := points([]int{1, 2, 3, 4, 5, 6}, 0.7, func(k2 int) float64 { return float64(k2) }, constant(0.3))
	it := New(3, 1.2)
	first, err := it.Integrate(Slice(pts))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := it.Integrate(Slice(pts))
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Errorf("call %d: %+v, want %+v", i+2, again, first)
		}
	}
}

func TestEarlyStop(t *testing.T) {
	pts := points([]int{1, 2, 3, 4, 5}, 1, constant(1), constant(0))
	seen := 0
	for range Slice(pts) {
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Errorf("iterated %d points after break, want 2", seen)
	}
}
