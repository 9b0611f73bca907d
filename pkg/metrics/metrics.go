// Metrics collection for the power spectrum pipeline
//
// Prometheus collectors describing spectrum runs:
// - spectra computed and variance clamps per field
// - deconvolution guard hits
// - populated bin count and the latest σ_R per field
// - reduction latency and process CPU time
//
// A nil *SpectrumMetrics is valid and records nothing.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "powerspec"

// SpectrumMetrics holds all pipeline metrics
type SpectrumMetrics struct {
	SpectraTotal         *prometheus.CounterVec
	VarianceClampedTotal *prometheus.CounterVec
	DeconvGuardTotal     prometheus.Counter
	ValidBins            prometheus.Gauge
	SigmaTophat          *prometheus.GaugeVec
	ReduceSeconds        prometheus.Histogram
	CPUSeconds           prometheus.GaugeFunc

	registry *prometheus.Registry
}

// NewSpectrumMetrics creates the pipeline metrics on a fresh registry
func NewSpectrumMetrics() *SpectrumMetrics {
	reg := prometheus.NewRegistry()
	m := newSpectrumMetrics(reg)
	m.registry = reg
	return m
}

// NewSpectrumMetricsWith registers the pipeline metrics on reg
func NewSpectrumMetricsWith(reg prometheus.Registerer) *SpectrumMetrics {
	return newSpectrumMetrics(reg)
}

func newSpectrumMetrics(reg prometheus.Registerer) *SpectrumMetrics {
	m := &SpectrumMetrics{
		SpectraTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spectra_total",
			Help:      "Power spectra computed, by field.",
		}, []string{"field"}),
		VarianceClampedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variance_clamped_total",
			Help:      "Bins whose negative round-off variance was clamped to zero, by field.",
		}, []string{"field"}),
		DeconvGuardTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deconvolution_guard_total",
			Help:      "Modes whose deconvolution factor fell below machine epsilon.",
		}),
		ValidBins: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "valid_bins",
			Help:      "Populated k² bins in the run mask.",
		}),
		SigmaTophat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sigma_tophat",
			Help:      "Latest top-hat smoothed rms density variation, by field.",
		}, []string{"field"}),
		ReduceSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reduce_seconds",
			Help:      "Time spent in the bin reduction collective.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		CPUSeconds: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_seconds",
			Help:      "User plus system CPU time consumed by this process.",
		}, processCPUSeconds),
	}
	if reg != nil {
		reg.MustRegister(
			m.SpectraTotal,
			m.VarianceClampedTotal,
			m.DeconvGuardTotal,
			m.ValidBins,
			m.SigmaTophat,
			m.ReduceSeconds,
			m.CPUSeconds,
		)
	}
	return m
}

// Registry returns the registry created by NewSpectrumMetrics, or nil
func (m *SpectrumMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SpectrumDone records a finished spectrum
func (m *SpectrumMetrics) SpectrumDone(field string, sigma float64, clamped int) {
	if m == nil {
		return
	}
	m.SpectraTotal.WithLabelValues(field).Inc()
	m.SigmaTophat.WithLabelValues(field).Set(sigma)
	if clamped > 0 {
		m.VarianceClampedTotal.WithLabelValues(field).Add(float64(clamped))
	}
}

// DeconvGuard records modes that skipped deconvolution
func (m *SpectrumMetrics) DeconvGuard(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DeconvGuardTotal.Add(float64(n))
}

// SetValidBins records the size of the run mask
func (m *SpectrumMetrics) SetValidBins(n int) {
	if m == nil {
		return
	}
	m.ValidBins.Set(float64(n))
}

// ObserveReduce records the duration of one bin reduction
func (m *SpectrumMetrics) ObserveReduce(d time.Duration) {
	if m == nil {
		return
	}
	m.ReduceSeconds.Observe(d.Seconds())
}
