package gateway

import (
	"log/slog"
	"time"

	"botline/pkg/bus"
)

func logEvent(log *slog.Logger, event bus.Event) {
	attrs := []any{
		"event_type", event.Type,
		"source", event.Source,
		"timestamp", event.At.UTC().Format(time.RFC3339Nano),
	}
	if event.Key != "" {
		attrs = append(attrs, "key", event.Key)
	}
	if event.Method != "" {
		attrs = append(attrs, "method", event.Method)
	}
	if event.UpdateID != 0 {
		attrs = append(attrs, "update_id", event.UpdateID)
	}
	if len(event.Payload) > 0 {
		attrs = append(attrs, "payload", event.Payload)
	}

	switch event.Type {
	case bus.EventActionFailed, bus.EventTransportFault, bus.EventHandlerFailed:
		log.Error("Bot event", append(attrs, "error", event.Error)...)
	case bus.EventUpdateRejected:
		log.Warn("Bot event", append(attrs, "error", event.Error)...)
	default:
		log.Debug("Bot event", attrs...)
	}
}
