package events

import (
	"context"
	"fmt"

	"github.com/oceanvince/mangxia/config"
)

// NewPublisher picks the events backend named by EVENTS_BACKEND.
func NewPublisher(ctx context.Context, cfg *config.Config) (Publisher, error) {
	switch cfg.EventsBackend {
	case "", "none":
		return NopPublisher{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case "sqs":
		awsCfg, err := config.LoadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewSQSPublisher(ctx, NewSQSClient(awsCfg), cfg.SQSQueueName)
	default:
		return nil, fmt.Errorf("unsupported EVENTS_BACKEND %q", cfg.EventsBackend)
	}
}
