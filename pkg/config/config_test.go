// Parameter loading tests
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cosmo-powerspec/pkg/errors"
)

func writeParams(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadBasic(t *testing.T) {
	path := writeParams(t, `
grid_size: 32
boxsize: 256.0
r_tophat: 8
processes: 4
select:
  Matter: true
  baryons: false
output:
  path: out/powerspec
  compress: true
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.GridSize != 32 || p.BoxSize != 256 || p.RTophat != 8 || p.Processes != 4 {
		t.Errorf("unexpected scalars: %+v", p)
	}
	if !p.Select["matter"] || p.Select["baryons"] {
		t.Errorf("unexpected selection: %v", p.Select)
	}
	if _, ok := p.Select["all"]; ok {
		t.Error("explicit selection should not gain an 'all' entry")
	}
	if p.Output.Path != "out/powerspec" || !p.Output.Compress {
		t.Errorf("unexpected output: %+v", p.Output)
	}
	// Untouched options fall back to defaults
	if p.Log.Level != "info" || p.Units.Length != "Mpc" {
		t.Errorf("expected defaults for log/units, got %+v %+v", p.Log, p.Units)
	}
}

func TestLoadDefaultsSelectAll(t *testing.T) {
	p, err := Parse([]byte("grid_size: 16\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !p.Select["all"] {
		t.Errorf("expected default selection {all: true}, got %v", p.Select)
	}
	if p.BoxSize != 100 {
		t.Errorf("expected default boxsize 100, got %g", p.BoxSize)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("POWERSPEC_GRID_SIZE", "128")
	t.Setenv("POWERSPEC_OUTPUT_PATH", "/tmp/spec")

	p, err := Parse([]byte("grid_size: 32\nprocesses: 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if p.GridSize != 128 {
		t.Errorf("expected env grid size 128, got %d", p.GridSize)
	}
	if p.Output.Path != "/tmp/spec" {
		t.Errorf("expected env output path, got %q", p.Output.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		option string
	}{
		{"odd grid", func(p *Params) { p.GridSize = 7 }, "grid_size"},
		{"zero box", func(p *Params) { p.BoxSize = 0 }, "boxsize"},
		{"negative radius", func(p *Params) { p.RTophat = -1 }, "r_tophat"},
		{"too many processes", func(p *Params) { p.Processes = 65 }, "processes"},
		{"bad format", func(p *Params) { p.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			err := p.Validate()
			if !errors.Is(err, errors.ErrConfigValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var ce *ConfigError
			if !stderrors.As(err, &ce) || ce.Option != tt.option {
				t.Errorf("expected ConfigError for %s, got %v", tt.option, err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, errors.ErrConfigLoad) {
		t.Errorf("expected load error, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	p := Default()
	p.GridSize = 48
	p.Select = map[string]bool{"matter": true}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := Save(path, p); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "grid_size: 48") {
		t.Errorf("saved YAML missing grid_size:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.GridSize != 48 || !loaded.Select["matter"] {
		t.Errorf("reloaded params differ: %+v", loaded)
	}
}

func TestSelectedNames(t *testing.T) {
	p := Default()
	p.Select = map[string]bool{"all": true, "dark matter": false, "baryons": true}
	names := p.SelectedNames()
	if len(names) != 2 || names[0] != "baryons" || names[1] != "dark matter" {
		t.Errorf("SelectedNames = %v", names)
	}
}
