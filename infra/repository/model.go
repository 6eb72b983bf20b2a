package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"gorm.io/gorm"
)

// ChartAccount represents a chart_accounts row.
type ChartAccount struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code        string    `gorm:"size:32;uniqueIndex;not null"`
	Name        string    `gorm:"size:128;not null"`
	Category    string    `gorm:"size:16;not null;index"`
	Subcategory string    `gorm:"size:16"`
	ParentCode  string    `gorm:"size:32"`
	Leaf        bool      `gorm:"not null"`
	Active      bool      `gorm:"not null"`
}

func (ChartAccount) TableName() string { return "chart_accounts" }

// FinancialAccount represents a financial_accounts row.
type FinancialAccount struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name           string          `gorm:"size:128;not null"`
	Type           string          `gorm:"size:16;not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	ChartAccountID uuid.UUID       `gorm:"type:uuid;not null;index:idx_fin_account_leaf"`
	AgencyID       *uuid.UUID      `gorm:"type:uuid;index:idx_fin_account_leaf"`
	OpeningBalance decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Active         bool            `gorm:"not null"`
	CreatedAt      time.Time
}

func (FinancialAccount) TableName() string { return "financial_accounts" }

// LedgerMovement represents a ledger_movements row. Rows are insert-only.
type LedgerMovement struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey"`
	AccountID      uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_account_created"`
	OperationID    *uuid.UUID       `gorm:"type:uuid;index"`
	PaymentID      *uuid.UUID       `gorm:"type:uuid;index"`
	Kind           string           `gorm:"size:20;not null"`
	Currency       string           `gorm:"type:varchar(3);not null"`
	AmountOriginal decimal.Decimal  `gorm:"type:numeric(20,6);not null"`
	ExchangeRate   *decimal.Decimal `gorm:"type:numeric(20,6)"`
	AmountBase     decimal.Decimal  `gorm:"column:amount_base_equivalent;type:numeric(20,6);not null"`
	Method         string           `gorm:"size:32"`
	SellerID       *uuid.UUID       `gorm:"type:uuid"`
	OperatorID     *uuid.UUID       `gorm:"type:uuid"`
	Notes          string           `gorm:"size:255"`
	CreatedAt      time.Time        `gorm:"not null;index:idx_movement_account_created"`
	CreatedBy      uuid.UUID        `gorm:"type:uuid"`
}

func (LedgerMovement) TableName() string { return "ledger_movements" }

// BeforeUpdate keeps the movement log append-only.
func (*LedgerMovement) BeforeUpdate(*gorm.DB) error { return ledger.ErrImmutableMovement }

// BeforeDelete keeps the movement log append-only.
func (*LedgerMovement) BeforeDelete(*gorm.DB) error { return ledger.ErrImmutableMovement }

// Payment represents a payments row.
type Payment struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OperationID      *uuid.UUID      `gorm:"type:uuid;index"`
	PayerType        string          `gorm:"size:16;not null"`
	Direction        string          `gorm:"size:16;not null"`
	Amount           decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Currency         string          `gorm:"type:varchar(3);not null"`
	Status           string          `gorm:"size:16;not null;index"`
	DateDue          time.Time       `gorm:"not null"`
	DatePaid         *time.Time      `gorm:"index"`
	AccountID        *uuid.UUID      `gorm:"type:uuid"`
	OperatorID       *uuid.UUID      `gorm:"type:uuid"`
	Method           string          `gorm:"size:32"`
	Reference        string          `gorm:"size:128"`
	LedgerMovementID *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Payment) TableName() string { return "payments" }

// OperatorPayment represents an operator_payments row.
type OperatorPayment struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OperationID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	OperatorID       uuid.UUID       `gorm:"type:uuid;not null"`
	PaymentID        *uuid.UUID      `gorm:"type:uuid;index"`
	Amount           decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Currency         string          `gorm:"type:varchar(3);not null"`
	DueDate          time.Time       `gorm:"not null"`
	Status           string          `gorm:"size:16;not null;index"`
	PaidAt           *time.Time
	LedgerMovementID *uuid.UUID `gorm:"type:uuid"`
	UpdatedAt        time.Time
}

func (OperatorPayment) TableName() string { return "operator_payments" }

// Operation represents an operations row.
type Operation struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey"`
	AgencyID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	FileCode     string           `gorm:"size:32"`
	SellerID     *uuid.UUID       `gorm:"type:uuid"`
	OperatorID   *uuid.UUID       `gorm:"type:uuid"`
	SaleAmount   decimal.Decimal  `gorm:"type:numeric(20,6);not null"`
	SaleCurrency string           `gorm:"type:varchar(3);not null"`
	OperatorCost decimal.Decimal  `gorm:"type:numeric(20,6);not null"`
	CostCurrency string           `gorm:"type:varchar(3);not null"`
	ExchangeRate *decimal.Decimal `gorm:"type:numeric(20,6)"`
	BookedAt     time.Time        `gorm:"not null"`
}

func (Operation) TableName() string { return "operations" }

// ExchangeRate represents an exchange_rates row.
type ExchangeRate struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EffectiveDate time.Time       `gorm:"not null;index"`
	Rate          decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Source        string          `gorm:"size:64"`
	CreatedAt     time.Time
}

func (ExchangeRate) TableName() string { return "exchange_rates" }

// RecurringPayment represents a recurring_payments row.
type RecurringPayment struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AgencyID    *uuid.UUID      `gorm:"type:uuid;index"`
	Provider    string          `gorm:"size:128"`
	Description string          `gorm:"size:255"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Currency    string          `gorm:"type:varchar(3);not null"`
	NextDueDate time.Time       `gorm:"not null;index"`
	Active      bool            `gorm:"not null"`
}

func (RecurringPayment) TableName() string { return "recurring_payments" }

// LegacyCashMovement represents a cash_movements row.
type LegacyCashMovement struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PaymentID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	OperationID  *uuid.UUID      `gorm:"type:uuid"`
	AccountID    uuid.UUID       `gorm:"type:uuid;not null"`
	Type         string          `gorm:"size:16;not null"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Currency     string          `gorm:"type:varchar(3);not null"`
	MovementDate time.Time       `gorm:"not null"`
	CreatedBy    uuid.UUID       `gorm:"type:uuid"`
}

func (LegacyCashMovement) TableName() string { return "cash_movements" }

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&ChartAccount{},
		&FinancialAccount{},
		&Operation{},
		&Payment{},
		&OperatorPayment{},
		&LedgerMovement{},
		&ExchangeRate{},
		&RecurringPayment{},
		&LegacyCashMovement{},
	}
}
