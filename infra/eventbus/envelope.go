package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/travelagency/backoffice/pkg/domain/events"
	"github.com/travelagency/backoffice/pkg/eventbus"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encodeEnvelope(event events.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return json.Marshal(envelope{Type: event.Type(), Payload: data})
}

func decodeEnvelope(raw []byte) (events.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	constructor, ok := events.EventTypes[events.EventType(env.Type)]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	evt := constructor()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return evt, nil
}

// executeHandlers runs every handler, recovering panics, and reports whether
// all of them succeeded.
func executeHandlers(
	ctx context.Context,
	logger *slog.Logger,
	eventType events.EventType,
	event events.Event,
	handlers []eventbus.HandlerFunc,
	origin string,
) bool {
	ok := true
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					ok = false
					logger.Error("handler panic recovered", "event_type", eventType, "origin", origin, "panic", r)
				}
			}()
			if err := handler(ctx, event); err != nil {
				ok = false
				logger.Error("handler error", "event_type", eventType, "origin", origin, "error", err)
			}
		}()
	}
	return ok
}
