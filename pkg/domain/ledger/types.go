// Package ledger holds the accounting domain of the back-office: the chart of
// accounts taxonomy, financial accounts, immutable ledger movements, scheduled
// payments and the exchange-rate series they are settled against.
package ledger

import (
	"fmt"
	"strings"
)

// Currency is one of the two currencies the agency operates in.
type Currency string

const (
	ARS Currency = "ARS"
	USD Currency = "USD"
)

// BaseCurrency is the ledger's unit of account. Movements in it carry no
// exchange rate and their base equivalent is the original amount.
const BaseCurrency = USD

// ConvertedCurrency always requires a resolved rate (ARS per 1 USD).
const ConvertedCurrency = ARS

// ParseCurrency validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", NewValidationError("currency", fmt.Sprintf("unsupported currency %q", s))
	}
	return c, nil
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool { return c == ARS || c == USD }

// RequiresConversion reports whether movements in c need an exchange rate.
func (c Currency) RequiresConversion() bool { return c == ConvertedCurrency }

func (c Currency) String() string { return string(c) }

// AccountType is the physical nature of a FinancialAccount.
type AccountType string

const (
	AccountTypeCash  AccountType = "CASH"
	AccountTypeBank  AccountType = "BANK"
	AccountTypeCard  AccountType = "CARD"
	AccountTypeAsset AccountType = "ASSET"
	// AccountTypeResult backs a RESULTADO chart leaf; created lazily by the poster.
	AccountTypeResult AccountType = "RESULT"
)

// Settlement reports whether accounts of this type can be selected to settle
// payments, which is what the balance validator guards. Only the lazily
// created result-leaf accounts are excluded.
func (t AccountType) Settlement() bool {
	return t != AccountTypeResult
}

// MovementKind classifies a LedgerMovement.
type MovementKind string

const (
	KindIncome          MovementKind = "INCOME"
	KindExpense         MovementKind = "EXPENSE"
	KindOperatorPayment MovementKind = "OPERATOR_PAYMENT"
	KindFXGain          MovementKind = "FX_GAIN"
	KindFXLoss          MovementKind = "FX_LOSS"
)

// Valid reports whether k is a known movement kind.
func (k MovementKind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindOperatorPayment, KindFXGain, KindFXLoss:
		return true
	}
	return false
}

// increases reports whether k adds to a normal-balance account.
func (k MovementKind) increases() bool {
	return k == KindIncome || k == KindFXGain
}

// PayerType identifies the counterparty of a Payment.
type PayerType string

const (
	PayerCustomer PayerType = "CUSTOMER"
	PayerOperator PayerType = "OPERATOR"
)

// Direction is whether a Payment brings money in or sends it out.
type Direction string

const (
	DirectionIncome  Direction = "INCOME"
	DirectionExpense Direction = "EXPENSE"
)

// PaymentStatus is the lifecycle of a scheduled payment. The only transition
// is PENDING to PAID.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "PENDING"
	StatusPaid    PaymentStatus = "PAID"
)
