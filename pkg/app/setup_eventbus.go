// Package app wires the accounting services together and registers the
// event handlers that consume settlement notifications.
package app

import (
	"context"
	"fmt"

	"github.com/travelagency/backoffice/pkg/domain/events"
)

// setupEventBus registers the settlement notification consumer.
func (a *App) setupEventBus() {
	a.Deps.EventBus.Register(events.EventTypePaymentSettled, a.handlePaymentSettled)
}

// handlePaymentSettled is the in-process end of the notification
// collaborator: it records the settlement for whoever tails the logs.
// External consumers subscribe to the same event through redis or kafka.
func (a *App) handlePaymentSettled(_ context.Context, e events.Event) error {
	evt, ok := e.(*events.PaymentSettled)
	if !ok {
		return fmt.Errorf("unexpected event type %T", e)
	}
	a.Deps.Logger.Info("Payment settled notification",
		"payment_id", evt.PaymentID,
		"operation_id", evt.OperationID,
		"amount", evt.Amount.String(),
		"currency", evt.Currency,
		"date_paid", evt.DatePaid.Format("2006-01-02"),
		"reference", evt.Reference,
	)
	return nil
}
