// Reduction of per-rank bins onto the coordinator
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package spectrum

import (
	"context"
	"time"

	"cosmo-powerspec/pkg/metrics"
	"cosmo-powerspec/pkg/reduce"
)

// Reduce sums power, count and sum-of-squares of every rank into the
// coordinator's bins, in that order. Non-coordinator bins are left in an
// unspecified state. m may be nil.
func Reduce(ctx context.Context, comm reduce.Communicator, bins *Bins, m *metrics.SpectrumMetrics) error {
	start := time.Now()
	if err := comm.SumFloat64(ctx, bins.PowerSum); err != nil {
		return err
	}
	if err := comm.SumInt64(ctx, bins.Count); err != nil {
		return err
	}
	if err := comm.SumFloat64(ctx, bins.PowerSqSum); err != nil {
		return err
	}
	m.ObserveReduce(time.Since(start))
	return nil
}
