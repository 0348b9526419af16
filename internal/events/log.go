package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher records events in the application log. Used when Kafka is
// disabled.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("order event",
		zap.String("event_id", event.ID.String()),
		zap.String("type", string(event.Type)),
		zap.String("order_id", event.OrderID.String()),
		zap.String("user_id", event.UserID.String()),
		zap.String("status", event.Status.String()),
		zap.String("previous_status", event.PreviousStatus.String()),
		zap.String("total", event.Total.StringFixed(2)),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
