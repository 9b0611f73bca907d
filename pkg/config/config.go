// Run parameters
//
// Parameters are read from a YAML file with viper. Every scalar option
// can be overridden from the environment with the POWERSPEC_ prefix and
// dots replaced by underscores (POWERSPEC_OUTPUT_PATH).
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"bytes"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"cosmo-powerspec/pkg/errors"
)

// Params holds every option of a spectrum run
type Params struct {
	GridSize  int             `yaml:"grid_size" mapstructure:"grid_size"`
	BoxSize   float64         `yaml:"boxsize" mapstructure:"boxsize"`
	RTophat   float64         `yaml:"r_tophat" mapstructure:"r_tophat"`
	Select    map[string]bool `yaml:"select" mapstructure:"select"`
	Processes int             `yaml:"processes" mapstructure:"processes"`
	Output    OutputParams    `yaml:"output" mapstructure:"output"`
	Log       LogParams       `yaml:"log" mapstructure:"log"`
	Units     UnitParams      `yaml:"units" mapstructure:"units"`
	Metrics   MetricsParams   `yaml:"metrics" mapstructure:"metrics"`
}

// OutputParams controls the result sink
type OutputParams struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Compress bool   `yaml:"compress" mapstructure:"compress"`
}

// LogParams controls logging
type LogParams struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// UnitParams names the units quoted in output headers
type UnitParams struct {
	Length string `yaml:"length" mapstructure:"length"`
	Time   string `yaml:"time" mapstructure:"time"`
}

// MetricsParams controls the Prometheus endpoint. An empty Addr
// disables it.
type MetricsParams struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
}

// Defaults describe a small test run
var defaults = map[string]interface{}{
	"grid_size":       64,
	"boxsize":         100.0,
	"r_tophat":        8.0,
	"processes":       1,
	"output.path":     "powerspec",
	"output.compress": false,
	"log.level":       "info",
	"log.format":      "text",
	"units.length":    "Mpc",
	"units.time":      "Gyr",
	"metrics.addr":    "",
}

// Default returns the default parameters
func Default() *Params {
	p := &Params{
		GridSize:  defaults["grid_size"].(int),
		BoxSize:   defaults["boxsize"].(float64),
		RTophat:   defaults["r_tophat"].(float64),
		Processes: defaults["processes"].(int),
		Select:    map[string]bool{"all": true},
		Output:    OutputParams{Path: defaults["output.path"].(string)},
		Log: LogParams{
			Level:  defaults["log.level"].(string),
			Format: defaults["log.format"].(string),
		},
		Units: UnitParams{
			Length: defaults["units.length"].(string),
			Time:   defaults["units.time"].(string),
		},
	}
	return p
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("POWERSPEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// Load reads a parameter file, applies environment overrides and validates
func Load(path string) (*Params, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.ConfigLoadError(path, err)
	}
	return decode(v, path)
}

// Parse reads parameters from YAML bytes, applies environment overrides
// and validates
func Parse(data []byte) (*Params, error) {
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.ConfigLoadError("<memory>", err)
	}
	return decode(v, "<memory>")
}

func decode(v *viper.Viper, source string) (*Params, error) {
	var p Params
	if err := v.Unmarshal(&p); err != nil {
		return nil, errors.ConfigLoadError(source, err)
	}
	p.Select = normalizeSelect(p.Select)
	if len(p.Select) == 0 {
		p.Select = map[string]bool{"all": true}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func normalizeSelect(sel map[string]bool) map[string]bool {
	out := make(map[string]bool, len(sel))
	for k, v := range sel {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Validate checks the parameters for consistency
func (p *Params) Validate() error {
	if p.GridSize < 2 || p.GridSize%2 != 0 {
		return invalid("grid_size", "must be an even number >= 2, got %d", p.GridSize)
	}
	if p.BoxSize <= 0 {
		return invalid("boxsize", "must be positive, got %g", p.BoxSize)
	}
	if p.RTophat < 0 {
		return invalid("r_tophat", "must not be negative, got %g", p.RTophat)
	}
	if p.Processes < 1 || p.Processes > p.GridSize {
		return invalid("processes", "must be in [1, %d], got %d", p.GridSize, p.Processes)
	}
	switch strings.ToLower(p.Log.Format) {
	case "", "text", "json":
	default:
		return invalid("log.format", "must be text or json, got %q", p.Log.Format)
	}
	return nil
}

// SelectedNames returns the explicitly named fields in sorted order,
// excluding the "all" wildcard
func (p *Params) SelectedNames() []string {
	names := make([]string, 0, len(p.Select))
	for k := range p.Select {
		if k != "all" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Marshal renders parameters as YAML
func Marshal(p *Params) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes parameters as YAML so a run can be reproduced
func Save(path string, p *Params) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
