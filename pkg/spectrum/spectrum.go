// Power spectrum pipeline
//
// Computer runs deconvolution, reduction, normalization and top-hat
// integration for a list of fields, one field at a time. Every rank
// calls Compute with its own communicator and slabs; results exist only
// on the coordinator.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package spectrum

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"cosmo-powerspec/pkg/errors"
	"cosmo-powerspec/pkg/grid"
	"cosmo-powerspec/pkg/log"
	"cosmo-powerspec/pkg/metrics"
	"cosmo-powerspec/pkg/reduce"
	"cosmo-powerspec/pkg/tophat"
)

// Field is a component whose power spectrum can be computed
type Field interface {
	// Name is the component name used for selection and output
	Name() string

	// Slab returns this rank's Fourier slab of the comoving density.
	// The slab is deconvolved in place.
	Slab() (*grid.Slab, error)

	// TotalMass is the mass of the component summed over all ranks
	TotalMass() float64
}

// SlabField is a Field backed by an in-memory slab. Slab returns a copy
// so the field can be computed more than once.
type SlabField struct {
	FieldName string
	Local     *grid.Slab
	Mass      float64
}

func (f *SlabField) Name() string       { return f.FieldName }
func (f *SlabField) TotalMass() float64 { return f.Mass }

func (f *SlabField) Slab() (*grid.Slab, error) {
	if f.Local == nil {
		return nil, errors.RuntimeError("field has no slab").SetField(f.FieldName)
	}
	return f.Local.Clone(), nil
}

// Result is the spectrum of one field restricted to the populated bins.
// Slices are not shared with the Context or other results.
type Result struct {
	Field    string
	K2       []int
	K        []float64
	Count    []int64
	Power    []float64
	Variance []float64
	StdDev   []float64
	Sigma    float64
	SigmaErr float64
}

// Results holds the spectra of a Compute call in field order
type Results struct {
	Names  []string
	ByName map[string]*Result
}

// Get returns the result for name or nil
func (r *Results) Get(name string) *Result {
	return r.ByName[name]
}

// Ordered returns the results in field order
func (r *Results) Ordered() []*Result {
	out := make([]*Result, 0, len(r.Names))
	for _, n := range r.Names {
		out = append(out, r.ByName[n])
	}
	return out
}

// Computer computes spectra for one rank of a run
type Computer struct {
	Context *Context
	Comm    reduce.Communicator
	Metrics *metrics.SpectrumMetrics
	Logger  *log.Logger
	Deconv  DeconvOptions
}

// NewComputer creates a computer with the package logger and no metrics
func NewComputer(c *Context, comm reduce.Communicator) *Computer {
	return &Computer{
		Context: c,
		Comm:    comm,
		Logger:  log.GetLogger("spectrum"),
	}
}

func (pc *Computer) logger() *log.Logger {
	l := pc.Logger
	if l == nil {
		l = log.GetLogger("spectrum")
	}
	return l.ForRank(pc.Comm.Rank())
}

// Compute processes the selected fields in order. Each field is fully
// reduced and normalized before the next one starts. On non-coordinator
// ranks the returned Results is empty.
func (pc *Computer) Compute(ctx context.Context, fields []Field, sel Selection) (*Results, error) {
	res := &Results{ByName: make(map[string]*Result)}
	if !sel.Any() {
		return res, nil
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}
	if err := sel.Check(names); err != nil {
		return nil, err
	}

	logger := pc.logger()
	for _, f := range fields {
		if !sel.Wants(f.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Info("Computing power spectrum of %s ...", f.Name())
		r, err := pc.computeField(ctx, f)
		if err != nil {
			return nil, withField(err, f.Name())
		}
		if r == nil {
			continue
		}
		logger.WithFields(log.Fields{
			"field":      f.Name(),
			"sigma":      r.Sigma,
			"sigma_err":  r.SigmaErr,
			"valid_bins": len(r.K2),
		}).Info("done")
		res.Names = append(res.Names, f.Name())
		res.ByName[f.Name()] = r
	}
	return res, nil
}

func (pc *Computer) computeField(ctx context.Context, f Field) (*Result, error) {
	c := pc.Context
	slab, err := f.Slab()
	if err != nil {
		return nil, err
	}
	if slab.GridSize != c.GridSize {
		return nil, errors.New(errors.ErrGeometryMismatch,
			fmt.Sprintf("slab grid size %d differs from run grid size %d", slab.GridSize, c.GridSize))
	}

	bins := NewBins(c.K2Max)
	defer bins.Release()

	start := time.Now()
	guarded, err := Deconvolve(slab, bins, pc.Deconv)
	if err != nil {
		return nil, err
	}
	pc.Metrics.DeconvGuard(guarded)
	if guarded > 0 {
		pc.logger().WithFields(log.Fields{"field": f.Name(), "coefficients": guarded}).
			Debug("kernel factor below epsilon, correction skipped")
	}
	if err := Reduce(ctx, pc.Comm, bins, pc.Metrics); err != nil {
		return nil, err
	}
	if !pc.Comm.Coordinator() {
		return nil, nil
	}

	norm, err := Normalize(c, bins, f.TotalMass())
	if err != nil {
		return nil, err
	}
	sigma, err := tophat.New(c.BoxSize, c.RTophat).Integrate(c.Points(norm))
	if err != nil {
		return nil, err
	}

	r := pc.result(f.Name(), bins, norm, sigma)
	pc.Metrics.SetValidBins(len(r.K2))
	pc.Metrics.SpectrumDone(f.Name(), r.Sigma, norm.Clamped)
	pc.logger().WithFields(log.Fields{
		"field":   f.Name(),
		"elapsed": time.Since(start).String(),
		"clamped": norm.Clamped,
	}).Debug("spectrum normalized")
	return r, nil
}

func (pc *Computer) result(name string, bins *Bins, norm *Normalized, sigma tophat.Result) *Result {
	valid := pc.Context.ValidK2()
	r := &Result{
		Field:    name,
		K2:       valid,
		K:        pc.Context.MaskedK(),
		Count:    make([]int64, len(valid)),
		Power:    make([]float64, len(valid)),
		Variance: make([]float64, len(valid)),
		StdDev:   make([]float64, len(valid)),
		Sigma:    sigma.Sigma,
		SigmaErr: sigma.SigmaErr,
	}
	for i, k2 := range valid {
		r.Count[i] = bins.Count[k2]
		r.Power[i] = norm.Power[k2]
		r.Variance[i] = norm.Variance[k2]
		r.StdDev[i] = math.Sqrt(norm.Variance[k2])
	}
	return r
}

func withField(err error, name string) error {
	var se *errors.SpectrumError
	if stderrors.As(err, &se) && se.Field == "" {
		se.SetField(name)
	}
	return err
}
