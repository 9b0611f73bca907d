// Runner tests
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package powerspec

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cosmo-powerspec/pkg/config"
	"cosmo-powerspec/pkg/errors"
	"cosmo-powerspec/pkg/log"
	"cosmo-powerspec/pkg/metrics"
	"cosmo-powerspec/pkg/sink"
)

func cube(g int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 1))
	c := make([]float64, g*g*g)
	for i := range c {
		c[i] = 0.5 + rng.Float64()
	}
	return c
}

func testParams(t *testing.T, yaml string) *config.Params {
	t.Helper()
	p, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func quietRunner(p *config.Params) *Runner {
	rn := NewRunner(p)
	rn.Logger = log.New("test")
	rn.Logger.SetWriter(io.Discard)
	return rn
}

func TestRunMatchesAcrossProcessCounts(t *testing.T) {
	const g = 8
	prov, err := NewCubeProvider(g, 20, []Cube{
		{Name: "matter", Data: cube(g, 3)},
		{Name: "neutrinos", Data: cube(g, 4), W: 1.0 / 3, ScaleFactor: 0.5},
	})
	if err != nil {
		t.Fatalf("NewCubeProvider: %v", err)
	}

	var sigmas []float64
	for _, procs := range []int{1, 2, 4} {
		p := config.Default()
		p.GridSize = g
		p.BoxSize = 20
		p.RTophat = 2
		p.Processes = procs
		rn := quietRunner(p)
		res, err := rn.Run(context.Background(), prov)
		if err != nil {
			t.Fatalf("%d processes: %v", procs, err)
		}
		if len(res.Names) != 2 || res.Names[0] != "matter" || res.Names[1] != "neutrinos" {
			t.Fatalf("%d processes: names = %v", procs, res.Names)
		}
		sigmas = append(sigmas, res.Get("matter").Sigma)
	}
	for i := 1; i < len(sigmas); i++ {
		if math.Abs(sigmas[i]-sigmas[0]) > 1e-9*sigmas[0] {
			t.Errorf("sigma differs between runs: %v", sigmas)
		}
	}
}

func TestRunSelection(t *testing.T) {
	const g = 8
	prov, err := NewCubeProvider(g, 10, []Cube{
		{Name: "matter", Data: cube(g, 1)},
		{Name: "baryons", Data: cube(g, 2)},
	})
	if err != nil {
		t.Fatal(err)
	}

	p := testParams(t, `
grid_size: 8
boxsize: 10
r_tophat: 1
processes: 2
select:
  all: true
  Baryons: false
`)
	m := metrics.NewSpectrumMetrics()
	rn := quietRunner(p)
	rn.Metrics = m
	res, err := rn.Run(context.Background(), prov)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Names) != 1 || res.Names[0] != "matter" {
		t.Errorf("names = %v, want [matter]", res.Names)
	}
	if got := testutil.ToFloat64(m.SpectraTotal.WithLabelValues("matter")); got != 1 {
		t.Errorf("spectra_total{matter} = %g, want 1", got)
	}

	p.Select = map[string]bool{"dark energy": true}
	if _, err := rn.Run(context.Background(), prov); !errors.Is(err, errors.ErrConfigField) {
		t.Errorf("expected CONFIG_FIELD, got %v", err)
	}
}

func TestRunInvalidParams(t *testing.T) {
	p := config.Default()
	p.GridSize = 8
	p.Processes = 9
	rn := quietRunner(p)
	_, err := rn.Run(context.Background(), &CubeProvider{})
	if !errors.IsConfig(err) {
		t.Errorf("expected a config error, got %v", err)
	}
}

func TestDuplicateCube(t *testing.T) {
	c := cube(4, 1)
	_, err := NewCubeProvider(4, 1, []Cube{{Name: "a", Data: c}, {Name: "a", Data: c}})
	if !errors.Is(err, errors.ErrConfigValidation) {
		t.Errorf("expected CONFIG_VALIDATION, got %v", err)
	}
}

func TestRunAndSave(t *testing.T) {
	const g = 8
	prov, err := NewCubeProvider(g, 10, []Cube{{Name: "matter", Data: cube(g, 9)}})
	if err != nil {
		t.Fatal(err)
	}
	p := config.Default()
	p.GridSize = g
	p.BoxSize = 10
	p.RTophat = 1
	p.Output.Path = filepath.Join(t.TempDir(), "powerspec")
	p.Output.Compress = true

	rn := quietRunner(p)
	res, err := rn.Run(context.Background(), prov)
	if err != nil {
		t.Fatal(err)
	}
	path, err := rn.Save(sink.Header{Time: 1.5}, res)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	rc, err := sink.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "# Power spectrum at t = 1.5 Gyr computed with a grid of linear size 8") {
		t.Errorf("unexpected header: %q", strings.SplitN(text, "\n", 2)[0])
	}
	rows := strings.Count(text, "\n") - 5
	if want := len(res.Get("matter").K); rows != want {
		t.Errorf("%d data rows, want %d", rows, want)
	}
}

func TestMetricsServer(t *testing.T) {
	p := config.Default()
	rn := quietRunner(p)
	if rn.MetricsServer() != nil {
		t.Fatal("metrics server without an address")
	}
	if err := rn.ServeMetrics(context.Background()); err != nil {
		t.Errorf("disabled ServeMetrics: %v", err)
	}

	p.Metrics.Addr = "127.0.0.1:0"
	ms := rn.MetricsServer()
	if ms == nil || rn.Metrics == nil {
		t.Fatal("expected a server and runner metrics")
	}
	rn.Metrics.SpectrumDone("matter", 0.8, 0)

	srv := httptest.NewServer(ms.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `powerspec_sigma_tophat{field="matter"} 0.8`) {
		t.Errorf("sigma gauge missing from /metrics:\n%s", body)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rn.ServeMetrics(ctx); err != nil {
		t.Errorf("ServeMetrics after cancel: %v", err)
	}
}
