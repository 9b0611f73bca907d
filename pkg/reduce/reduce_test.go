// Collective reduction tests
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package reduce

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cosmo-powerspec/pkg/errors"
)

func TestSingleIsNoop(t *testing.T) {
	comm := Single()
	if !comm.Coordinator() || comm.Size() != 1 || comm.Rank() != 0 {
		t.Fatalf("unexpected single communicator %d/%d", comm.Rank(), comm.Size())
	}
	buf := []float64{1, 2, 3}
	if err := comm.SumFloat64(context.Background(), buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 1 || buf[2] != 3 {
		t.Errorf("single rank reduction must leave buffer unchanged, got %v", buf)
	}
}

func TestRunSumsIntoCoordinator(t *testing.T) {
	const n = 4
	var mu sync.Mutex
	var power []float64
	var counts []int64

	err := Run(context.Background(), n, func(ctx context.Context, comm Communicator) error {
		r := float64(comm.Rank())
		p := []float64{r, 2 * r, 0.5}
		c := []int64{1, int64(comm.Rank()), 0}
		if err := comm.SumFloat64(ctx, p); err != nil {
			return err
		}
		if err := comm.SumInt64(ctx, c); err != nil {
			return err
		}
		if comm.Coordinator() {
			mu.Lock()
			power, counts = p, c
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	wantP := []float64{6, 12, 2}
	wantC := []int64{4, 6, 0}
	for i := range wantP {
		if power[i] != wantP[i] {
			t.Errorf("power[%d] = %f, want %f", i, power[i], wantP[i])
		}
		if counts[i] != wantC[i] {
			t.Errorf("counts[%d] = %d, want %d", i, counts[i], wantC[i])
		}
	}
}

func TestRepeatedReductionsStayOrdered(t *testing.T) {
	const n = 3
	results := make([][]float64, 0)
	var mu sync.Mutex

	err := Run(context.Background(), n, func(ctx context.Context, comm Communicator) error {
		for round := 0; round < 5; round++ {
			buf := []float64{float64(round)}
			if err := comm.SumFloat64(ctx, buf); err != nil {
				return err
			}
			if comm.Coordinator() {
				mu.Lock()
				results = append(results, buf)
				mu.Unlock()
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for round, buf := range results {
		if buf[0] != float64(n*round) {
			t.Errorf("round %d: sum %f, want %d", round, buf[0], n*round)
		}
	}
}

func TestFailingRankAbortsCollective(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, 3, func(ctx context.Context, comm Communicator) error {
		if comm.Rank() == 2 {
			return fmt.Errorf("slab unavailable")
		}
		return comm.SumFloat64(ctx, []float64{1})
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	if ctx.Err() != nil {
		t.Fatal("collective should abort well before the test timeout")
	}
}

func TestMismatchedLengthsFail(t *testing.T) {
	err := Run(context.Background(), 2, func(ctx context.Context, comm Communicator) error {
		n := 3
		if comm.Rank() == 1 {
			n = 4
		}
		return comm.SumFloat64(ctx, make([]float64, n))
	})
	if !errors.Is(err, errors.ErrCollective) {
		t.Errorf("expected collective error, got %v", err)
	}
}

func TestMismatchedKindsFail(t *testing.T) {
	err := Run(context.Background(), 2, func(ctx context.Context, comm Communicator) error {
		if comm.Rank() == 1 {
			return comm.SumInt64(ctx, make([]int64, 2))
		}
		return comm.SumFloat64(ctx, make([]float64, 2))
	})
	if !errors.Is(err, errors.ErrCollective) {
		t.Errorf("expected collective error, got %v", err)
	}
}
