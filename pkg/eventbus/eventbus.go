// Package eventbus defines the contract settlement notifications are
// published through.
package eventbus

import (
	"context"

	"github.com/travelagency/backoffice/pkg/domain/events"
)

// HandlerFunc handles one event. A returned error is logged by the bus and,
// for durable buses, sends the message to the dead-letter stream.
type HandlerFunc func(ctx context.Context, e events.Event) error

// Bus publishes and dispatches domain events.
type Bus interface {
	Emit(ctx context.Context, event events.Event) error
	Register(eventType events.EventType, handler HandlerFunc)
}
