// Package notification emits the dbaas.<action>.start|end|error events that
// bracket every cluster action. Events go to the log, the audit_log table and
// the in-process broker.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/pkg/errs"
)

const eventPrefix = "dbaas"

const (
	PhaseStart = "start"
	PhaseEnd   = "end"
	PhaseError = "error"
)

// Meta identifies what an action runs against.
type Meta struct {
	TenantID         string `json:"tenant_id"`
	RequestID        string `json:"request_id"`
	ClusterID        string `json:"cluster_id"`
	Datastore        string `json:"datastore"`
	DatastoreVersion string `json:"datastore_version"`
}

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      Meta                   `json:"meta"`
	Traits    map[string]interface{} `json:"traits,omitempty"`
}

func EventType(action, phase string) string {
	return fmt.Sprintf("%s.%s.%s", eventPrefix, action, phase)
}

type INotifier interface {
	// Start records the start event of action through repo and returns the
	// span that closes it. Passing a transaction-bound repository makes the
	// start record part of the caller's transaction.
	Start(ctx context.Context, repo repository.IRepository, action string, meta Meta, traits map[string]interface{}) (*Span, error)
}

type notifier struct {
	logger     *logrus.Logger
	repository repository.IRepository
	broker     *Broker
}

func NewNotifier(l *logrus.Logger, r repository.IRepository, b *Broker) INotifier {
	return &notifier{
		logger:     l,
		repository: r,
		broker:     b,
	}
}

func (n *notifier) Start(ctx context.Context, repo repository.IRepository, action string, meta Meta, traits map[string]interface{}) (*Span, error) {
	ev := n.event(action, PhaseStart, meta, traits)
	if err := n.record(ctx, repo, ev); err != nil {
		return nil, err
	}
	n.publish(ev)

	return &Span{notifier: n, action: action, meta: meta}, nil
}

func (n *notifier) event(action, phase string, meta Meta, traits map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventType(action, phase),
		Timestamp: time.Now().UTC(),
		Meta:      meta,
		Traits:    traits,
	}
}

func (n *notifier) record(ctx context.Context, repo repository.IRepository, ev *Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return repo.AuditLog().CreateAuditLog(ctx, &model.AuditLog{
		TenantID:   ev.Meta.TenantID,
		ClusterID:  ev.Meta.ClusterID,
		EventType:  ev.Type,
		RequestID:  ev.Meta.RequestID,
		Payload:    payload,
		CreateDate: ev.Timestamp,
	})
}

func (n *notifier) publish(ev *Event) {
	entry := n.logger.WithFields(logrus.Fields{
		"event_type": ev.Type,
		"tenant_id":  ev.Meta.TenantID,
		"request_id": ev.Meta.RequestID,
		"cluster_id": ev.Meta.ClusterID,
		"datastore":  ev.Meta.Datastore,
	})
	if reason, ok := ev.Traits["reason"]; ok {
		entry = entry.WithField("reason", reason)
	}
	entry.Info("notification")

	if n.broker != nil {
		n.broker.Publish(ev)
	}
}

// Span is an action in flight. Exactly one of End or Fail takes effect.
type Span struct {
	notifier *notifier
	action   string
	meta     Meta
	once     sync.Once
}

func (s *Span) End(ctx context.Context, traits map[string]interface{}) {
	s.close(ctx, PhaseEnd, traits)
}

func (s *Span) Fail(ctx context.Context, err error) {
	s.close(ctx, PhaseError, map[string]interface{}{
		"kind":    string(errs.KindOf(err)),
		"reason":  errs.ReasonOf(err),
		"message": err.Error(),
	})
}

// Finish ends the span with the outcome err points at. Meant for defer.
func (s *Span) Finish(ctx context.Context, err *error) {
	if err != nil && *err != nil {
		s.Fail(ctx, *err)
		return
	}
	s.End(ctx, nil)
}

func (s *Span) close(ctx context.Context, phase string, traits map[string]interface{}) {
	s.once.Do(func() {
		n := s.notifier
		ev := n.event(s.action, phase, s.meta, traits)
		if err := n.record(context.WithoutCancel(ctx), n.repository, ev); err != nil {
			n.logger.WithError(err).WithField("event_type", ev.Type).Error("failed to record notification")
		}
		n.publish(ev)
	})
}

type requestIDKey struct{}

// WithRequestID tags ctx with the id of the API request that started an
// action.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
