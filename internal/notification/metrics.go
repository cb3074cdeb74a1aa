package notification

import (
	"context"

	"github.com/vmindtech/vdb/pkg/metrics"
)

// CountEvents counts every event published on b until ctx is done.
func CountEvents(ctx context.Context, b *Broker) {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			metrics.NotificationsTotal.WithLabelValues(ev.Type).Inc()
		}
	}
}
