// Package posting is the only writer of ledger movements. It enforces the
// currency rules every movement must satisfy and finds or creates the
// financial accounts that back chart leaves.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
)

// Entry describes one movement to post.
type Entry struct {
	Account  *ledger.FinancialAccount
	Kind     ledger.MovementKind
	Currency ledger.Currency
	Amount   decimal.Decimal
	// Rate is the ARS per USD rate. Required for the converted currency and
	// dropped for the base currency.
	Rate        *decimal.Decimal
	OperationID *uuid.UUID
	PaymentID   *uuid.UUID
	Method      string
	SellerID    *uuid.UUID
	OperatorID  *uuid.UUID
	Notes       string
	CreatedBy   uuid.UUID
	// CreatedAt defaults to now.
	CreatedAt time.Time
}

// Poster writes movements.
type Poster struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Poster.
func New(uow repository.UnitOfWork, logger *slog.Logger) *Poster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poster{uow: uow, logger: logger.With("service", "poster"), now: time.Now}
}

// Post validates e and appends it to the movement log.
func (p *Poster) Post(ctx context.Context, e Entry) (*ledger.LedgerMovement, error) {
	m, err := p.build(e)
	if err != nil {
		return nil, err
	}
	repo, err := p.uow.MovementRepository()
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, m); err != nil {
		p.logger.Error("Post movement failed",
			"account_id", m.AccountID, "kind", m.Kind, "amount", m.Amount.String(), "error", err)
		return nil, fmt.Errorf("post %s movement on account %s: %w", m.Kind, m.AccountID, err)
	}
	p.logger.Info("Movement posted",
		"movement_id", m.ID,
		"account_id", m.AccountID,
		"kind", m.Kind,
		"currency", m.Currency,
		"amount", m.Amount.String(),
		"base_equivalent", m.BaseEquivalent.String(),
	)
	return m, nil
}

func (p *Poster) build(e Entry) (*ledger.LedgerMovement, error) {
	if e.Account == nil {
		return nil, ledger.NewValidationError("account", "is required")
	}
	if !e.Kind.Valid() {
		return nil, ledger.NewValidationError("kind", fmt.Sprintf("unknown movement kind %q", e.Kind))
	}
	if !e.Currency.Valid() {
		return nil, ledger.NewValidationError("currency", fmt.Sprintf("unsupported currency %q", e.Currency))
	}
	if e.Currency != e.Account.Currency {
		return nil, ledger.NewValidationError("currency",
			fmt.Sprintf("movement in %s on %s account %s", e.Currency, e.Account.Currency, e.Account.ID))
	}
	if !e.Amount.IsPositive() {
		return nil, ledger.NewValidationError("amount", "must be positive")
	}

	rate := e.Rate
	if !e.Currency.RequiresConversion() {
		rate = nil
	}
	base, err := ledger.BaseEquivalent(e.Currency, e.Amount, rate)
	if err != nil {
		return nil, err
	}
	var ratePtr *decimal.Decimal
	if rate != nil {
		r := *rate
		ratePtr = &r
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = p.now()
	}
	return &ledger.LedgerMovement{
		ID:             uuid.New(),
		AccountID:      e.Account.ID,
		OperationID:    e.OperationID,
		PaymentID:      e.PaymentID,
		Kind:           e.Kind,
		Currency:       e.Currency,
		Amount:         e.Amount,
		ExchangeRate:   ratePtr,
		BaseEquivalent: base,
		Method:         e.Method,
		SellerID:       e.SellerID,
		OperatorID:     e.OperatorID,
		Notes:          e.Notes,
		CreatedAt:      createdAt.UTC(),
		CreatedBy:      e.CreatedBy,
	}, nil
}

// LeafAccount returns the financial account backing the chart leaf code in
// currency for the agency, creating it when absent. Shared accounts (no
// agency) are used when the agency has none of its own.
func (p *Poster) LeafAccount(ctx context.Context, code string, currency ledger.Currency, agencyID *uuid.UUID) (*ledger.FinancialAccount, error) {
	charts, err := p.uow.ChartAccountRepository()
	if err != nil {
		return nil, err
	}
	chart, err := charts.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !chart.Leaf || !chart.Active {
		return nil, ledger.NewValidationError("chart_account", code+" is not an active leaf")
	}

	accounts, err := p.uow.FinancialAccountRepository()
	if err != nil {
		return nil, err
	}
	account, err := accounts.FindForLeaf(ctx, chart.ID, currency, agencyID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}
	if agencyID != nil {
		if shared, err := accounts.FindForLeaf(ctx, chart.ID, currency, nil); err == nil {
			return shared, nil
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
	}

	typ := ledger.AccountTypeAsset
	if chart.Category.IsResult() {
		typ = ledger.AccountTypeResult
	}
	account = &ledger.FinancialAccount{
		Name:           fmt.Sprintf("%s %s", chart.Name, currency),
		Type:           typ,
		Currency:       currency,
		ChartAccountID: chart.ID,
		AgencyID:       agencyID,
		OpeningBalance: decimal.Zero,
		Active:         true,
		CreatedAt:      p.now().UTC(),
	}
	if err := accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account for leaf %s: %w", code, err)
	}
	p.logger.Info("Leaf account created",
		"account_id", account.ID, "chart_code", code, "currency", currency, "agency_id", agencyID)
	// Concurrent creators converge on the oldest row.
	if oldest, err := accounts.FindForLeaf(ctx, chart.ID, currency, agencyID); err == nil {
		return oldest, nil
	}
	return account, nil
}
