package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/queue"
)

// publish sends ev after the owning transaction committed.  Delivery is
// best effort: a broker outage must not fail a request whose writes are
// already durable.
func publish(ctx context.Context, pub queue.Publisher, log *zap.Logger, ev queue.Event) {
	if pub == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if err := pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn("event publish failed", zap.String("type", ev.Type), zap.Error(err))
	}
}
