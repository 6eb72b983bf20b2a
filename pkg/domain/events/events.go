// Package events holds the domain events emitted after settlement.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
)

// EventType names an event on the wire.
type EventType string

func (t EventType) String() string { return string(t) }

const (
	// EventTypePaymentSettled is emitted when an income payment settles.
	EventTypePaymentSettled EventType = "Payment.Settled"
)

// Event is anything the bus can carry.
type Event interface {
	Type() string
}

// EventTypes maps each type to a constructor used when decoding envelopes.
var EventTypes = map[EventType]func() Event{
	EventTypePaymentSettled: func() Event { return &PaymentSettled{} },
}

// PaymentSettled notifies that a payment was settled and its result movement
// posted.
type PaymentSettled struct {
	PaymentID   uuid.UUID        `json:"payment_id"`
	OperationID *uuid.UUID       `json:"operation_id,omitempty"`
	MovementID  uuid.UUID        `json:"movement_id"`
	AccountID   uuid.UUID        `json:"account_id"`
	PayerType   ledger.PayerType `json:"payer_type"`
	Direction   ledger.Direction `json:"direction"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    ledger.Currency  `json:"currency"`
	DatePaid    time.Time        `json:"date_paid"`
	Reference   string           `json:"reference,omitempty"`
	SettledBy   uuid.UUID        `json:"settled_by"`
}

func (PaymentSettled) Type() string { return EventTypePaymentSettled.String() }
