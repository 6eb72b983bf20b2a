package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChartAccount is a node of the chart of accounts. Only leaves are linked to
// financial accounts.
type ChartAccount struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Category    Category
	Subcategory Subcategory
	ParentCode  string
	Leaf        bool
	Active      bool
}

// FinancialAccount is where money is kept track of: a cash box, a bank
// account, a card, or the lazily created account behind a RESULTADO leaf.
type FinancialAccount struct {
	ID             uuid.UUID
	Name           string
	Type           AccountType
	Currency       Currency
	ChartAccountID uuid.UUID
	AgencyID       *uuid.UUID
	OpeningBalance decimal.Decimal
	Active         bool
	CreatedAt      time.Time
}

// LedgerMovement is an immutable signed posting against one financial account.
// Corrections are new offsetting movements.
type LedgerMovement struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	OperationID *uuid.UUID
	PaymentID   *uuid.UUID
	Kind        MovementKind
	Currency    Currency
	Amount      decimal.Decimal
	// ExchangeRate is set only for movements in the ConvertedCurrency.
	ExchangeRate   *decimal.Decimal
	BaseEquivalent decimal.Decimal
	Method         string
	SellerID       *uuid.UUID
	OperatorID     *uuid.UUID
	Notes          string
	CreatedAt      time.Time
	CreatedBy      uuid.UUID
}

// Payment is a scheduled customer collection or operator/expense disbursement.
type Payment struct {
	ID          uuid.UUID
	OperationID *uuid.UUID
	PayerType   PayerType
	Direction   Direction
	Amount      decimal.Decimal
	Currency    Currency
	Status      PaymentStatus
	DateDue     time.Time
	DatePaid    *time.Time
	AccountID   *uuid.UUID
	OperatorID  *uuid.UUID
	Method      string
	Reference   string
	// LedgerMovementID points at the result-recognition movement. Set at most once.
	LedgerMovementID *uuid.UUID
	CreatedAt        time.Time
}

// IsOperatorPayment reports whether p settles an operator cost.
func (p *Payment) IsOperatorPayment() bool {
	return p.PayerType == PayerOperator && p.Direction == DirectionExpense
}

// IsCustomerCollection reports whether p is money received from a customer.
func (p *Payment) IsCustomerCollection() bool {
	return p.PayerType == PayerCustomer && p.Direction == DirectionIncome
}

// MovementKind is the kind posted to the result and settlement accounts.
func (p *Payment) MovementKind() MovementKind {
	switch {
	case p.Direction == DirectionIncome:
		return KindIncome
	case p.PayerType == PayerOperator:
		return KindOperatorPayment
	default:
		return KindExpense
	}
}

// OperatorPayment mirrors an operator Payment on the operator-cost side and
// is settled in lockstep with it.
type OperatorPayment struct {
	ID               uuid.UUID
	OperationID      uuid.UUID
	OperatorID       uuid.UUID
	PaymentID        *uuid.UUID
	Amount           decimal.Decimal
	Currency         Currency
	DueDate          time.Time
	Status           PaymentStatus
	PaidAt           *time.Time
	LedgerMovementID *uuid.UUID
}

// Operation is a booked travel file: what was sold to the customer and what
// is owed to the operator.
type Operation struct {
	ID           uuid.UUID
	AgencyID     uuid.UUID
	FileCode     string
	SellerID     *uuid.UUID
	OperatorID   *uuid.UUID
	SaleAmount   decimal.Decimal
	SaleCurrency Currency
	OperatorCost decimal.Decimal
	CostCurrency Currency
	// ExchangeRate is the ARS per USD rate agreed when the file was booked.
	ExchangeRate *decimal.Decimal
	BookedAt     time.Time
}

// HomeCurrency is the currency the operation was priced in for a payment of
// the given payer type.
func (o *Operation) HomeCurrency(payer PayerType) Currency {
	if payer == PayerOperator {
		return o.CostCurrency
	}
	return o.SaleCurrency
}

// ExchangeRate is one point of the append-only ARS per USD series.
type ExchangeRate struct {
	ID            uuid.UUID
	EffectiveDate time.Time
	Rate          decimal.Decimal
	Source        string
	CreatedAt     time.Time
}

// RecurringPayment is a standing obligation (rent, subscriptions, salaries)
// due periodically.
type RecurringPayment struct {
	ID          uuid.UUID
	AgencyID    *uuid.UUID
	Provider    string
	Description string
	Amount      decimal.Decimal
	Currency    Currency
	NextDueDate time.Time
	Active      bool
}

// LegacyCashMovement is the row older cash reports still read.
type LegacyCashMovement struct {
	ID           uuid.UUID
	PaymentID    uuid.UUID
	OperationID  *uuid.UUID
	AccountID    uuid.UUID
	Type         Direction
	Amount       decimal.Decimal
	Currency     Currency
	MovementDate time.Time
	CreatedBy    uuid.UUID
}
