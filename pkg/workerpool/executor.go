// Package workerpool runs detached workflows that outlive the request that
// started them.
package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/vmindtech/vdb/pkg/metrics"
)

const defaultSize = 64

// ErrDropped is handed to abort for a workflow that Shutdown cancelled
// before it got a slot.
var ErrDropped = errors.New("workflow dropped on shutdown")

type Executor struct {
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     *conc.WaitGroup
	slots  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewExecutor returns an executor running at most size workflows at once.
// Submissions beyond that wait for a free slot without blocking the caller.
func NewExecutor(logger *logrus.Logger, size int) *Executor {
	if size <= 0 {
		size = defaultSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Executor{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		wg:     conc.NewWaitGroup(),
		slots:  make(chan struct{}, size),
	}
}

// Go schedules fn. The context handed to fn is cancelled on Shutdown. A panic
// inside fn does not take the process down. abort, when set, is called with
// the panic as an error, or with ErrDropped when fn never started.
func (e *Executor) Go(name string, fields logrus.Fields, fn func(ctx context.Context), abort func(err error)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	logger := e.logger.WithFields(fields).WithField("workflow", name)
	if e.closed {
		logger.Error("executor closed, dropping workflow")
		return false
	}

	e.wg.Go(func() {
		select {
		case e.slots <- struct{}{}:
			defer func() { <-e.slots }()
		case <-e.ctx.Done():
		}
		// A slot freed by Shutdown must not start queued work.
		if e.ctx.Err() != nil {
			logger.Warn("workflow dropped on shutdown")
			e.abort(logger, abort, ErrDropped)
			return
		}

		metrics.WorkflowsRunning.Inc()
		defer metrics.WorkflowsRunning.Dec()

		var pc panics.Catcher
		pc.Try(func() { fn(e.ctx) })

		if r := pc.Recovered(); r != nil {
			logger.Errorf("workflow panicked: %s", r.String())
			e.abort(logger, abort, r.AsError())
		}
	})

	return true
}

func (e *Executor) abort(logger *logrus.Entry, abort func(error), err error) {
	if abort == nil {
		return
	}

	var pc panics.Catcher
	pc.Try(func() { abort(err) })
	if r := pc.Recovered(); r != nil {
		logger.Errorf("workflow abort panicked: %s", r.String())
	}
}

// Wait blocks until every submitted workflow has returned.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown stops accepting work, cancels running workflows and waits for them.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}
