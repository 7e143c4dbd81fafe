package events

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to the application log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events ...Event) error {
	for _, event := range events {
		p.logger.Info("loan event",
			zap.String("event_type", string(event.Type)),
			zap.String("loan_id", event.LoanID.String()),
			zap.String("owner_id", event.OwnerID),
			zap.String("amount", event.Amount),
			zap.String("balance", event.Balance),
			zap.String("status", event.Status),
		)
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
