// Package poll waits for a condition by re-evaluating it at a fixed interval
// until it holds, fails or the deadline passes.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/vmindtech/vdb/pkg/errs"
)

var errNotYet = errors.New("condition not met")

// Condition reports whether the wait is over. A non-nil error stops polling
// and is returned to the caller unchanged.
type Condition func(ctx context.Context) (bool, error)

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
}

// Until evaluates cond every Interval. It returns nil once cond is true, the
// first error cond returns, a Deadline error once Timeout has elapsed, or the
// context error when ctx is done first.
func Until(ctx context.Context, opts Options, cond Condition) error {
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}

	var condErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			done, err := cond(ctx)
			if err != nil {
				condErr = err
				return err
			}
			if !done {
				return errNotYet
			}

			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errNotYet)
		},
		Attempts:    -1,
		Delay:       interval,
		MaxDuration: opts.Timeout,
		Clock:       clk,
		Stop:        ctx.Done(),
	})

	switch {
	case err == nil:
		return nil
	case retry.IsDurationExceeded(err):
		return errs.Wrap(errs.KindDeadline, ctx.Err(), "condition not met within %s", opts.Timeout)
	case retry.IsRetryStopped(err):
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errs.Wrap(errs.KindDeadline, ctx.Err(), "workflow deadline exceeded")
		}

		return ctx.Err()
	case condErr != nil:
		return condErr
	default:
		return err
	}
}
