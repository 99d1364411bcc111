package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes events to a zap logger.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.String("event", string(ev.Type)),
		zap.String("call_id", ev.CallID),
		zap.String("flow", ev.Flow),
		zap.String("state", string(ev.State)),
		zap.Bool("complete", ev.Complete),
	}
	for k, v := range ev.Data {
		fields = append(fields, zap.String("data."+string(k), v))
	}
	p.logger.Info("📣 Call event", fields...)
	return nil
}
