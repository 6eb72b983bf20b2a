package repository

import (
	"fmt"

	"github.com/travelagency/backoffice/pkg/domain/ledger"
)

func mapChartToDomain(m *ChartAccount) (*ledger.ChartAccount, error) {
	category, err := ledger.ParseCategory(m.Category)
	if err != nil {
		return nil, fmt.Errorf("chart account %s: %w", m.Code, err)
	}
	return &ledger.ChartAccount{
		ID:          m.ID,
		Code:        m.Code,
		Name:        m.Name,
		Category:    category,
		Subcategory: ledger.ParseSubcategory(m.Subcategory),
		ParentCode:  m.ParentCode,
		Leaf:        m.Leaf,
		Active:      m.Active,
	}, nil
}

func mapChartToModel(c *ledger.ChartAccount) ChartAccount {
	return ChartAccount{
		ID:          c.ID,
		Code:        c.Code,
		Name:        c.Name,
		Category:    c.Category.String(),
		Subcategory: string(c.Subcategory),
		ParentCode:  c.ParentCode,
		Leaf:        c.Leaf,
		Active:      c.Active,
	}
}

func mapAccountToDomain(m *FinancialAccount) *ledger.FinancialAccount {
	return &ledger.FinancialAccount{
		ID:             m.ID,
		Name:           m.Name,
		Type:           ledger.AccountType(m.Type),
		Currency:       ledger.Currency(m.Currency),
		ChartAccountID: m.ChartAccountID,
		AgencyID:       m.AgencyID,
		OpeningBalance: m.OpeningBalance,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
	}
}

func mapAccountToModel(a *ledger.FinancialAccount) FinancialAccount {
	return FinancialAccount{
		ID:             a.ID,
		Name:           a.Name,
		Type:           string(a.Type),
		Currency:       string(a.Currency),
		ChartAccountID: a.ChartAccountID,
		AgencyID:       a.AgencyID,
		OpeningBalance: a.OpeningBalance,
		Active:         a.Active,
		CreatedAt:      a.CreatedAt.UTC(),
	}
}

func mapMovementToDomain(m *LedgerMovement) *ledger.LedgerMovement {
	return &ledger.LedgerMovement{
		ID:             m.ID,
		AccountID:      m.AccountID,
		OperationID:    m.OperationID,
		PaymentID:      m.PaymentID,
		Kind:           ledger.MovementKind(m.Kind),
		Currency:       ledger.Currency(m.Currency),
		Amount:         m.AmountOriginal,
		ExchangeRate:   m.ExchangeRate,
		BaseEquivalent: m.AmountBase,
		Method:         m.Method,
		SellerID:       m.SellerID,
		OperatorID:     m.OperatorID,
		Notes:          m.Notes,
		CreatedAt:      m.CreatedAt,
		CreatedBy:      m.CreatedBy,
	}
}

func mapMovementToModel(m *ledger.LedgerMovement) LedgerMovement {
	return LedgerMovement{
		ID:             m.ID,
		AccountID:      m.AccountID,
		OperationID:    m.OperationID,
		PaymentID:      m.PaymentID,
		Kind:           string(m.Kind),
		Currency:       string(m.Currency),
		AmountOriginal: m.Amount,
		ExchangeRate:   m.ExchangeRate,
		AmountBase:     m.BaseEquivalent,
		Method:         m.Method,
		SellerID:       m.SellerID,
		OperatorID:     m.OperatorID,
		Notes:          m.Notes,
		CreatedAt:      m.CreatedAt.UTC(),
		CreatedBy:      m.CreatedBy,
	}
}

func mapPaymentToDomain(m *Payment) *ledger.Payment {
	return &ledger.Payment{
		ID:               m.ID,
		OperationID:      m.OperationID,
		PayerType:        ledger.PayerType(m.PayerType),
		Direction:        ledger.Direction(m.Direction),
		Amount:           m.Amount,
		Currency:         ledger.Currency(m.Currency),
		Status:           ledger.PaymentStatus(m.Status),
		DateDue:          m.DateDue,
		DatePaid:         m.DatePaid,
		AccountID:        m.AccountID,
		OperatorID:       m.OperatorID,
		Method:           m.Method,
		Reference:        m.Reference,
		LedgerMovementID: m.LedgerMovementID,
		CreatedAt:        m.CreatedAt,
	}
}

func mapPaymentToModel(p *ledger.Payment) Payment {
	status := p.Status
	if status == "" {
		status = ledger.StatusPending
	}
	return Payment{
		ID:               p.ID,
		OperationID:      p.OperationID,
		PayerType:        string(p.PayerType),
		Direction:        string(p.Direction),
		Amount:           p.Amount,
		Currency:         string(p.Currency),
		Status:           string(status),
		DateDue:          p.DateDue.UTC(),
		DatePaid:         utcPtr(p.DatePaid),
		AccountID:        p.AccountID,
		OperatorID:       p.OperatorID,
		Method:           p.Method,
		Reference:        p.Reference,
		LedgerMovementID: p.LedgerMovementID,
		CreatedAt:        p.CreatedAt.UTC(),
	}
}

func mapOperatorPaymentToDomain(m *OperatorPayment) *ledger.OperatorPayment {
	return &ledger.OperatorPayment{
		ID:               m.ID,
		OperationID:      m.OperationID,
		OperatorID:       m.OperatorID,
		PaymentID:        m.PaymentID,
		Amount:           m.Amount,
		Currency:         ledger.Currency(m.Currency),
		DueDate:          m.DueDate,
		Status:           ledger.PaymentStatus(m.Status),
		PaidAt:           m.PaidAt,
		LedgerMovementID: m.LedgerMovementID,
	}
}

func mapOperatorPaymentToModel(o *ledger.OperatorPayment) OperatorPayment {
	status := o.Status
	if status == "" {
		status = ledger.StatusPending
	}
	return OperatorPayment{
		ID:               o.ID,
		OperationID:      o.OperationID,
		OperatorID:       o.OperatorID,
		PaymentID:        o.PaymentID,
		Amount:           o.Amount,
		Currency:         string(o.Currency),
		DueDate:          o.DueDate.UTC(),
		Status:           string(status),
		PaidAt:           utcPtr(o.PaidAt),
		LedgerMovementID: o.LedgerMovementID,
	}
}

func mapOperationToDomain(m *Operation) *ledger.Operation {
	return &ledger.Operation{
		ID:           m.ID,
		AgencyID:     m.AgencyID,
		FileCode:     m.FileCode,
		SellerID:     m.SellerID,
		OperatorID:   m.OperatorID,
		SaleAmount:   m.SaleAmount,
		SaleCurrency: ledger.Currency(m.SaleCurrency),
		OperatorCost: m.OperatorCost,
		CostCurrency: ledger.Currency(m.CostCurrency),
		ExchangeRate: m.ExchangeRate,
		BookedAt:     m.BookedAt,
	}
}

func mapOperationToModel(o *ledger.Operation) Operation {
	return Operation{
		ID:           o.ID,
		AgencyID:     o.AgencyID,
		FileCode:     o.FileCode,
		SellerID:     o.SellerID,
		OperatorID:   o.OperatorID,
		SaleAmount:   o.SaleAmount,
		SaleCurrency: string(o.SaleCurrency),
		OperatorCost: o.OperatorCost,
		CostCurrency: string(o.CostCurrency),
		ExchangeRate: o.ExchangeRate,
		BookedAt:     o.BookedAt.UTC(),
	}
}

func mapRateToDomain(m *ExchangeRate) *ledger.ExchangeRate {
	return &ledger.ExchangeRate{
		ID:            m.ID,
		EffectiveDate: m.EffectiveDate,
		Rate:          m.Rate,
		Source:        m.Source,
		CreatedAt:     m.CreatedAt,
	}
}

func mapRecurringToDomain(m *RecurringPayment) *ledger.RecurringPayment {
	return &ledger.RecurringPayment{
		ID:          m.ID,
		AgencyID:    m.AgencyID,
		Provider:    m.Provider,
		Description: m.Description,
		Amount:      m.Amount,
		Currency:    ledger.Currency(m.Currency),
		NextDueDate: m.NextDueDate,
		Active:      m.Active,
	}
}

func mapLegacyToDomain(m *LegacyCashMovement) *ledger.LegacyCashMovement {
	return &ledger.LegacyCashMovement{
		ID:           m.ID,
		PaymentID:    m.PaymentID,
		OperationID:  m.OperationID,
		AccountID:    m.AccountID,
		Type:         ledger.Direction(m.Type),
		Amount:       m.Amount,
		Currency:     ledger.Currency(m.Currency),
		MovementDate: m.MovementDate,
		CreatedBy:    m.CreatedBy,
	}
}
