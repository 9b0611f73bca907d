// One-way sum reduction onto a coordinator process
//
// Every participant contributes a buffer; the element-wise sum lands in
// the coordinator's buffer (rank 0). Non-coordinator buffers are left as
// they were and must be discarded by the caller. The collective blocks
// until all ranks have contributed. There is no retry: a participant
// that fails or never arrives is fatal for the whole run.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package reduce

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cosmo-powerspec/pkg/errors"
)

// Coordinator is the rank that receives the reduced totals
const Coordinator = 0

// Communicator is the collective substrate seen by one process.
type Communicator interface {
	Rank() int
	Size() int
	Coordinator() bool
	SumFloat64(ctx context.Context, buf []float64) error
	SumInt64(ctx context.Context, buf []int64) error
}

type kind int

const (
	kindFloat64 kind = iota
	kindInt64
)

func (k kind) String() string {
	if k == kindInt64 {
		return "int64"
	}
	return "float64"
}

type payload struct {
	kind kind
	f    []float64
	i    []int64
}

// Group is an in-process collective where each rank is a goroutine.
type Group struct {
	size  int
	links []chan payload // links[r] carries rank r's contributions
}

// Member is one rank's view of a Group
type Member struct {
	g    *Group
	rank int
}

// NewGroup creates a group of n ranks and returns its members in rank order
func NewGroup(n int) (*Group, []*Member) {
	if n < 1 {
		n = 1
	}
	g := &Group{
		size:  n,
		links: make([]chan payload, n),
	}
	members := make([]*Member, n)
	for r := range members {
		g.links[r] = make(chan payload, 1)
		members[r] = &Member{g: g, rank: r}
	}
	return g, members
}

// Single returns the communicator of a one-process run
func Single() Communicator {
	_, m := NewGroup(1)
	return m[0]
}

// Rank returns this member's rank
func (m *Member) Rank() int { return m.rank }

// Size returns the number of ranks in the group
func (m *Member) Size() int { return m.g.size }

// Coordinator reports whether this member receives the totals
func (m *Member) Coordinator() bool { return m.rank == Coordinator }

// SumFloat64 sums buf element-wise into the coordinator's buf
func (m *Member) SumFloat64(ctx context.Context, buf []float64) error {
	return m.reduce(ctx, payload{kind: kindFloat64, f: buf})
}

// SumInt64 sums buf element-wise into the coordinator's buf
func (m *Member) SumInt64(ctx context.Context, buf []int64) error {
	return m.reduce(ctx, payload{kind: kindInt64, i: buf})
}

func (m *Member) reduce(ctx context.Context, p payload) error {
	if m.g.size == 1 {
		return nil
	}
	if !m.Coordinator() {
		// Contributions are copied so the sender may reuse its buffer
		out := payload{kind: p.kind}
		switch p.kind {
		case kindFloat64:
			out.f = append([]float64(nil), p.f...)
		case kindInt64:
			out.i = append([]int64(nil), p.i...)
		}
		select {
		case m.g.links[m.rank] <- out:
			return nil
		case <-ctx.Done():
			return errors.CollectiveError(fmt.Sprintf("send from rank %d", m.rank), ctx.Err())
		}
	}

	// Ranks are summed in order so the result does not depend on arrival
	for r := 1; r < m.g.size; r++ {
		var in payload
		select {
		case in = <-m.g.links[r]:
		case <-ctx.Done():
			return errors.CollectiveError(fmt.Sprintf("receive from rank %d", r), ctx.Err())
		}
		if in.kind != p.kind {
			return errors.CollectiveError("sum",
				fmt.Errorf("rank %d sent %s, coordinator expects %s", r, in.kind, p.kind))
		}
		switch p.kind {
		case kindFloat64:
			if len(in.f) != len(p.f) {
				return errors.CollectiveError("sum",
					fmt.Errorf("rank %d sent %d values, coordinator has %d", r, len(in.f), len(p.f)))
			}
			for k, v := range in.f {
				p.f[k] += v
			}
		case kindInt64:
			if len(in.i) != len(p.i) {
				return errors.CollectiveError("sum",
					fmt.Errorf("rank %d sent %d values, coordinator has %d", r, len(in.i), len(p.i)))
			}
			for k, v := range in.i {
				p.i[k] += v
			}
		}
	}
	return nil
}

// Run starts one goroutine per rank and waits for all of them. The first
// rank to fail cancels the shared context, so ranks blocked in a
// collective return instead of waiting forever.
func Run(ctx context.Context, n int, fn func(ctx context.Context, comm Communicator) error) error {
	_, members := NewGroup(n)
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range members {
		g.Go(func() error {
			if err := fn(gctx, m); err != nil {
				return fmt.Errorf("rank %d: %w", m.rank, err)
			}
			return nil
		})
	}
	return g.Wait()
}
