package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/notification"
	"github.com/vmindtech/vdb/internal/strategy"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/metrics"
	"github.com/vmindtech/vdb/pkg/poll"
)

// clusterWorkflow is the view of a running action a strategy works against.
// It also tracks the instances the action touched so that a failure can be
// pinned on them.
type clusterWorkflow struct {
	s      *clusterService
	cc     *clusterContext
	key    string
	logger *logrus.Entry

	mu       sync.Mutex
	affected []string
}

var _ strategy.Workflow = (*clusterWorkflow)(nil)

func (s *clusterService) newWorkflow(cc *clusterContext, action task.Action, key string) *clusterWorkflow {
	return &clusterWorkflow{
		s:   s,
		cc:  cc,
		key: key,
		logger: s.logger.WithFields(logrus.Fields{
			"cluster_id": cc.cluster.ID,
			"action":     action.Name,
			"datastore":  cc.datastore.Name,
		}),
	}
}

func (w *clusterWorkflow) Options() topology.Options {
	return w.cc.options
}

func (w *clusterWorkflow) ClusterKey() string {
	return w.key
}

func (w *clusterWorkflow) Logger() *logrus.Entry {
	return w.logger
}

func (w *clusterWorkflow) affect(ids ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, id := range ids {
		seen := false
		for _, a := range w.affected {
			if a == id {
				seen = true
				break
			}
		}
		if !seen {
			w.affected = append(w.affected, id)
		}
	}
}

func (w *clusterWorkflow) affectNodes(nodes ...strategy.Node) {
	for _, n := range nodes {
		w.affect(n.ID())
	}
}

// focus replaces the touched set, for actions that move through the cluster
// one node at a time.
func (w *clusterWorkflow) focus(ids ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.affected = append([]string(nil), ids...)
}

func (w *clusterWorkflow) affectedIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]string(nil), w.affected...)
}

func (w *clusterWorkflow) stateChange(timeout time.Duration) poll.Options {
	return poll.Options{Interval: w.s.opts.StateChangePollTime, Timeout: timeout}
}

func (w *clusterWorkflow) WaitForRunning(ctx context.Context, nodes ...strategy.Node) error {
	return w.waitReady(ctx, w.s.opts.StateChangeWaitTime, nodes...)
}

// waitReady waits until every node has left BUILDING and reports a running
// datastore through a fresh heartbeat. A zero timeout leaves the bound to ctx.
func (w *clusterWorkflow) waitReady(ctx context.Context, timeout time.Duration, nodes ...strategy.Node) error {
	done := make(map[string]bool, len(nodes))

	return poll.Until(ctx, w.stateChange(timeout), func(ctx context.Context) (bool, error) {
		for _, n := range nodes {
			if done[n.ID()] {
				continue
			}
			ready, err := w.ready(ctx, n)
			if err != nil {
				return false, err
			}
			done[n.ID()] = ready
		}

		for _, n := range nodes {
			if !done[n.ID()] {
				return false, nil
			}
		}

		return true, nil
	})
}

func (w *clusterWorkflow) ready(ctx context.Context, n strategy.Node) (bool, error) {
	repo := w.s.repository

	fresh, err := repo.Instance().GetInstance(ctx, n.ID())
	if err != nil {
		return false, err
	}
	if fresh.Task().Equal(task.Building) {
		if err := w.s.poller.checkBuilding(ctx, fresh); err != nil {
			w.logger.WithError(err).WithField("instance_id", n.ID()).Warn("instance poll failed")
		}
		if fresh, err = repo.Instance().GetInstance(ctx, n.ID()); err != nil {
			return false, err
		}
	}

	current := fresh.Task()
	if current.IsError {
		return false, errs.Infrastructure(nil, "instance %s failed: %s", fresh.ID, current.Description)
	}
	*n.Instance = *fresh
	if current.Equal(task.Building) {
		return false, nil
	}

	heartbeat, err := repo.Heartbeat().GetHeartbeat(ctx, n.ID())
	if errs.Is(err, errs.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return heartbeat.IsFresh(time.Now().UTC(), w.s.opts.HeartbeatExpiry) && isReadyStatus(heartbeat.ServiceStatus), nil
}

// WaitForShutdown waits for the datastore of every node to be stopped. An
// unreachable guest counts as stopped.
func (w *clusterWorkflow) WaitForShutdown(ctx context.Context, nodes ...strategy.Node) error {
	done := make(map[string]bool, len(nodes))

	return poll.Until(ctx, w.stateChange(w.s.opts.StateChangeWaitTime), func(ctx context.Context) (bool, error) {
		for _, n := range nodes {
			if done[n.ID()] {
				continue
			}

			heartbeat, err := w.s.repository.Heartbeat().GetHeartbeat(ctx, n.ID())
			if err == nil && heartbeat.IsFresh(time.Now().UTC(), w.s.opts.HeartbeatExpiry) &&
				heartbeat.ServiceStatus == constants.ServiceStatusShutdown {
				done[n.ID()] = true
				continue
			}

			status, err := n.Guest.GetStatus(ctx)
			switch {
			case errs.Is(err, errs.KindGuestUnreachable):
				done[n.ID()] = true
			case err != nil:
				return false, err
			default:
				done[n.ID()] = status == constants.ServiceStatusShutdown
			}
		}

		for _, n := range nodes {
			if !done[n.ID()] {
				return false, nil
			}
		}

		return true, nil
	})
}

func (w *clusterWorkflow) Poll(ctx context.Context, cond poll.Condition) error {
	return poll.Until(ctx, w.stateChange(w.s.opts.StateChangeWaitTime), cond)
}

// workflowRun is one detached cluster action.
type workflowRun struct {
	action task.Action
	cc     *clusterContext
	span   *notification.Span
	key    string
	// fault is the message recorded on the cluster if run fails.
	fault string
	run   func(ctx context.Context, w *clusterWorkflow) error
}

// launch hands r to the executor. The request that started the action has
// already returned by the time run executes. A run that panics, or that
// shutdown drops before it starts, fails like any other.
func (s *clusterService) launch(r workflowRun) {
	w := s.newWorkflow(r.cc, r.action, r.key)

	fields := logrus.Fields{"cluster_id": r.cc.cluster.ID, "action": r.action.Name}
	ok := s.executor.Go(r.action.Name, fields, func(ctx context.Context) {
		if s.opts.UsageTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.UsageTimeout)
			defer cancel()
		}
		s.execute(ctx, r, w)
	}, func(err error) {
		s.fail(context.Background(), r, w, errs.Infrastructure(err, "workflow %s aborted", r.action.Name))
	})
	if !ok {
		s.fail(context.Background(), r, w, errs.Infrastructure(nil, "workflow executor is shut down"))
	}
}

func (s *clusterService) execute(ctx context.Context, r workflowRun, w *clusterWorkflow) {
	timer := metrics.NewTimer()
	err := r.run(ctx, w)
	elapsed := timer.ObserveDuration(metrics.WorkflowDuration.WithLabelValues(r.action.Name, r.cc.datastore.Name))

	if err != nil {
		s.fail(ctx, r, w, err)
		return
	}

	if !r.action.Working.Equal(task.ClusterDeleting) {
		if err := s.repository.Cluster().SetTask(ctx, r.cc.cluster.ID, task.ClusterNone); err != nil {
			w.logger.WithError(err).Error(constants.ErrDatabaseQueryFailed)
		}
	}
	r.span.End(ctx, nil)
	metrics.WorkflowsTotal.WithLabelValues(r.action.Name, r.cc.datastore.Name, "success").Inc()

	w.logger.WithField("elapsed", elapsed.String()).Info("cluster action finished")
}

// fail records err against the cluster: the touched instances take the
// error task of the action, a fault is stored and the cluster task is reset
// when the action allows it.
func (s *clusterService) fail(ctx context.Context, r workflowRun, w *clusterWorkflow, err error) {
	ctx = context.WithoutCancel(ctx)

	outcome := "error"
	if errs.Is(err, errs.KindDeadline) || errors.Is(err, context.DeadlineExceeded) {
		outcome = "deadline"
	}
	metrics.WorkflowsTotal.WithLabelValues(r.action.Name, r.cc.datastore.Name, outcome).Inc()

	w.logger.WithError(err).Error(r.fault)

	mark := r.action.InstanceError
	if outcome == "deadline" && r.action.DeadlineError.Code != 0 {
		mark = r.action.DeadlineError
	}
	if mark.Code != 0 {
		for _, id := range w.affectedIDs() {
			if err := s.repository.Instance().SetTask(ctx, id, mark); err != nil {
				w.logger.WithError(err).WithField("instance_id", id).Error("failed to mark instance")
			}
		}
	}

	s.recordFault(ctx, r.cc.cluster.ID, r.fault, err)

	if r.action.ResetOnFailure {
		if err := s.repository.Cluster().SetTask(ctx, r.cc.cluster.ID, task.ClusterNone); err != nil {
			w.logger.WithError(err).Error(constants.ErrDatabaseQueryFailed)
		}
	}

	if r.span != nil {
		r.span.Fail(ctx, err)
	}
}

func (s *clusterService) recordFault(ctx context.Context, clusterID, message string, cause error) {
	fault := &model.Fault{
		ClusterID: clusterID,
		Message:   message,
		Details:   cause.Error(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repository.Fault().CreateFault(context.WithoutCancel(ctx), fault); err != nil {
		s.logger.WithError(err).WithField("cluster_id", clusterID).Error("failed to record cluster fault")
	}
}
