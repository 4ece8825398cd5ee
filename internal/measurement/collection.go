package measurement

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/features"
)

// Collection is an ordered set of sweeps. Slicing operations return a new
// collection with its own backing slice; the sweeps themselves are shared,
// so features already computed are not computed again.
type Collection struct {
	sweeps []*features.Sweep
}

// NewCollection creates a collection over sweeps in the given order
func NewCollection(sweeps []*features.Sweep) *Collection {
	return &Collection{sweeps: append([]*features.Sweep(nil), sweeps...)}
}

// Len returns the number of sweeps
func (c *Collection) Len() int { return len(c.sweeps) }

// At returns the i-th sweep
func (c *Collection) At(i int) (*features.Sweep, error) {
	if i < 0 || i >= len(c.sweeps) {
		return nil, indexError(i, len(c.sweeps))
	}
	return c.sweeps[i], nil
}

// Sweeps returns a copy of the sweep list
func (c *Collection) Sweeps() []*features.Sweep {
	return append([]*features.Sweep(nil), c.sweeps...)
}

// Slice returns the sweeps in [lo, hi)
func (c *Collection) Slice(lo, hi int) (*Collection, error) {
	if lo < 0 || hi > len(c.sweeps) || lo > hi {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("slice [%d:%d] out of range for %d sweeps", lo, hi, len(c.sweeps)))
	}
	return NewCollection(c.sweeps[lo:hi]), nil
}

// Mask returns the sweeps whose mask entry is true. The mask must have one
// entry per sweep.
func (c *Collection) Mask(mask []bool) (*Collection, error) {
	if len(mask) != len(c.sweeps) {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("mask has %d entries for %d sweeps", len(mask), len(c.sweeps)))
	}
	var out []*features.Sweep
	for i, keep := range mask {
		if keep {
			out = append(out, c.sweeps[i])
		}
	}
	return &Collection{sweeps: out}, nil
}

// Take returns the sweeps at the given indices in the given order.
// Negative indices count from the end.
func (c *Collection) Take(indices []int) (*Collection, error) {
	out := make([]*features.Sweep, 0, len(indices))
	for _, i := range indices {
		k := i
		if k < 0 {
			k += len(c.sweeps)
		}
		if k < 0 || k >= len(c.sweeps) {
			return nil, indexError(i, len(c.sweeps))
		}
		out = append(out, c.sweeps[k])
	}
	return &Collection{sweeps: out}, nil
}

// Filter returns the sweeps for which keep returns true
func (c *Collection) Filter(keep func(*features.Sweep) bool) *Collection {
	var out []*features.Sweep
	for _, s := range c.sweeps {
		if keep(s) {
			out = append(out, s)
		}
	}
	return &Collection{sweeps: out}
}

// Precompute evaluates every feature of every sweep on at most workers
// goroutines. Zero workers means GOMAXPROCS.
func (c *Collection) Precompute(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, s := range c.sweeps {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.Precompute()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func indexError(i, n int) error {
	return apperrors.NewAppValidationError(fmt.Sprintf("index %d out of range for %d sweeps", i, n))
}
