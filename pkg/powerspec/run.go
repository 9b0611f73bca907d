// Power spectrum runs
//
// Runner ties a parameter set to the spectrum engine: it splits the grid
// over the configured number of in-process ranks, computes the selected
// spectra and writes them to the result file from the coordinator.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package powerspec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmo-powerspec/pkg/config"
	"cosmo-powerspec/pkg/errors"
	"cosmo-powerspec/pkg/grid"
	"cosmo-powerspec/pkg/log"
	"cosmo-powerspec/pkg/metrics"
	"cosmo-powerspec/pkg/reduce"
	"cosmo-powerspec/pkg/sink"
	"cosmo-powerspec/pkg/spectrum"
)

// Provider supplies the fields owned by one rank
type Provider interface {
	Fields(rank int, r grid.Range) ([]spectrum.Field, error)
}

// Cube is a real-space density grid of one component in [x][y][z] order
type Cube struct {
	Name string
	Data []float64

	// W is the equation of state of a fluid component. A non-zero W
	// converts the conserved density with grid.FluidFactor(ScaleFactor, W).
	W           float64
	ScaleFactor float64
}

// CubeProvider transforms whole cubes once and hands out slabs of the
// result to each rank.
type CubeProvider struct {
	names  []string
	slabs  map[string]*grid.Slab
	masses map[string]float64
}

// NewCubeProvider Fourier transforms every cube
func NewCubeProvider(gridSize int, boxSize float64, cubes []Cube) (*CubeProvider, error) {
	p := &CubeProvider{
		slabs:  make(map[string]*grid.Slab, len(cubes)),
		masses: make(map[string]float64, len(cubes)),
	}
	for _, c := range cubes {
		if _, dup := p.slabs[c.Name]; dup {
			return nil, errors.ConfigValidationError("cubes", fmt.Sprintf("duplicate component %q", c.Name))
		}
		data := c.Data
		if c.W != 0 {
			fac := grid.FluidFactor(c.ScaleFactor, c.W)
			data = make([]float64, len(c.Data))
			for i, v := range c.Data {
				data[i] = fac * v
			}
		}
		slab, err := grid.Transform(data, gridSize)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrRuntime, "forward transform failed").SetField(c.Name)
		}
		p.names = append(p.names, c.Name)
		p.slabs[c.Name] = slab
		p.masses[c.Name] = grid.CubeMass(data, gridSize, boxSize)
	}
	return p, nil
}

// Fields returns the slab of every component restricted to r
func (p *CubeProvider) Fields(rank int, r grid.Range) ([]spectrum.Field, error) {
	fields := make([]spectrum.Field, 0, len(p.names))
	for _, name := range p.names {
		sub, err := p.slabs[name].Sub(r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, &spectrum.SlabField{FieldName: name, Local: sub, Mass: p.masses[name]})
	}
	return fields, nil
}

// Runner computes spectra according to a parameter set
type Runner struct {
	Params  *config.Params
	Metrics *metrics.SpectrumMetrics
	Logger  *log.Logger
}

// NewRunner creates a runner whose logger follows the log parameters,
// with environment settings taking precedence.
func NewRunner(p *config.Params) *Runner {
	l := log.New("powerspec")
	l.SetLevel(log.ParseLevel(p.Log.Level))
	l.SetFormat(log.ParseFormat(p.Log.Format))
	log.ConfigureFromEnv(l)
	return &Runner{Params: p, Logger: l}
}

// MetricsServer returns a server for Params.Metrics, or nil when no
// address is configured. Runner metrics are created on first use.
func (rn *Runner) MetricsServer() *metrics.MetricsServer {
	mp := rn.Params.Metrics
	if mp.Addr == "" {
		return nil
	}
	if rn.Metrics == nil {
		rn.Metrics = metrics.NewSpectrumMetrics()
	}
	cfg := metrics.DefaultMetricsServerConfig()
	cfg.Address = mp.Addr
	cfg.Username = mp.Username
	cfg.Password = mp.Password
	return metrics.NewMetricsServerWithConfig(rn.Metrics, cfg)
}

// ServeMetrics runs the metrics server until ctx is done. It returns
// immediately when metrics are disabled.
func (rn *Runner) ServeMetrics(ctx context.Context) error {
	ms := rn.MetricsServer()
	if ms == nil {
		return nil
	}
	errc := make(chan error, 1)
	go func() { errc <- ms.Start() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ms.Shutdown(shutdownCtx)
	}
}

// Run computes the selected spectra over Params.Processes ranks and
// returns the coordinator's results.
func (rn *Runner) Run(ctx context.Context, prov Provider) (*spectrum.Results, error) {
	p := rn.Params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ranges, err := grid.Decompose(p.GridSize, p.Processes)
	if err != nil {
		return nil, err
	}
	geo := spectrum.Geometry{GridSize: p.GridSize, BoxSize: p.BoxSize}
	sel := spectrum.NewSelection(p.Select)

	var (
		mu  sync.Mutex
		out *spectrum.Results
	)
	err = reduce.Run(ctx, p.Processes, func(ctx context.Context, comm reduce.Communicator) error {
		// every rank owns its context, as separate processes would
		c, err := spectrum.NewContext(geo, p.RTophat)
		if err != nil {
			return err
		}
		fields, err := prov.Fields(comm.Rank(), ranges[comm.Rank()])
		if err != nil {
			return err
		}
		pc := &spectrum.Computer{
			Context: c,
			Comm:    comm,
			Metrics: rn.Metrics,
			Logger:  rn.Logger,
		}
		res, err := pc.Compute(ctx, fields, sel)
		if err != nil {
			return err
		}
		if comm.Coordinator() {
			mu.Lock()
			out = res
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		if rn.Logger != nil {
			rn.Logger.WithError(err).Error("power spectrum computation aborted")
		}
		return nil, err
	}
	return out, nil
}

// Save writes results to Params.Output. Unset header fields are taken
// from the parameters.
func (rn *Runner) Save(hdr sink.Header, res *spectrum.Results) (string, error) {
	p := rn.Params
	if hdr.GridSize == 0 {
		hdr.GridSize = p.GridSize
	}
	if hdr.UnitLength == "" {
		hdr.UnitLength = p.Units.Length
	}
	if hdr.UnitTime == "" {
		hdr.UnitTime = p.Units.Time
	}
	if hdr.RTophat == 0 {
		hdr.RTophat = p.RTophat
	}
	return sink.SaveFile(p.Output.Path, hdr, res.Ordered(), sink.Options{
		Compress: p.Output.Compress,
		Logger:   rn.Logger,
	})
}
