package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"crosplit/internal/logger"
	"crosplit/internal/services/notify"
)

// EventProcessor delivers notification events taken off the queue.
type EventProcessor struct {
	sender notify.Sender
	logger *logger.Logger
}

func NewEventProcessor(sender notify.Sender, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		sender: sender,
		logger: logger,
	}
}

// Process decodes one event and mails it. Unknown kinds are dropped.
func (ep *EventProcessor) Process(ctx context.Context, payload []byte) error {
	var msg notify.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}

	switch msg.Kind {
	case notify.KindExperienceCreated, notify.KindWinnerFound:
	default:
		ep.logger.Warn("Dropping event of unknown type %q", msg.Kind)
		return nil
	}

	ep.logger.Debug("Processing %s event for %v", msg.Kind, msg.To)
	if err := ep.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to deliver %s: %w", msg.Kind, err)
	}

	ep.logger.Info("Delivered %s to %d recipients", msg.Kind, len(msg.To))
	return nil
}
