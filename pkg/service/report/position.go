// Package report builds the monthly position: the month-end balance sheet,
// projected current liabilities and the period profit and loss.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"github.com/travelagency/backoffice/pkg/service/balance"
	"github.com/travelagency/backoffice/pkg/service/exchange"
)

const (
	minYear = 2000
	maxYear = 2100
)

// Amounts is a figure split by currency. Both currencies are always present.
type Amounts map[ledger.Currency]decimal.Decimal

func newAmounts() Amounts {
	return Amounts{ledger.ARS: decimal.Zero, ledger.USD: decimal.Zero}
}

func (a Amounts) add(c ledger.Currency, d decimal.Decimal) {
	a[c] = a[c].Add(d)
}

func (a Amounts) sub(b Amounts) Amounts {
	out := newAmounts()
	for c, v := range a {
		out[c] = v
	}
	for c, v := range b {
		out[c] = out[c].Sub(v)
	}
	return out
}

func (a Amounts) plus(b Amounts) Amounts {
	return a.sub(b.neg())
}

func (a Amounts) neg() Amounts {
	out := newAmounts()
	for c, v := range a {
		out[c] = v.Neg()
	}
	return out
}

// Rounded returns a copy rounded to cents.
func (a Amounts) Rounded() Amounts {
	out := make(Amounts, len(a))
	for c, v := range a {
		out[c] = ledger.Round2(v)
	}
	return out
}

// Section is one side of the balance sheet.
type Section struct {
	Current Amounts
	// CurrentPosted is Current restricted to ledger balances. It differs from
	// Current only on the liability side, where projections are included.
	CurrentPosted Amounts
	NonCurrent    Amounts
}

func newSection() Section {
	return Section{Current: newAmounts(), NonCurrent: newAmounts()}
}

func (s Section) rounded() Section {
	return Section{
		Current:       s.Current.Rounded(),
		CurrentPosted: s.CurrentPosted.Rounded(),
		NonCurrent:    s.NonCurrent.Rounded(),
	}
}

func (s Section) add(sub ledger.Subcategory, c ledger.Currency, d decimal.Decimal) {
	if sub == ledger.SubcategoryNonCurrent {
		s.NonCurrent.add(c, d)
		return
	}
	s.Current.add(c, d)
}

// BalanceSheet holds balances at the cutoff. Current liabilities include the
// projected liabilities; everything else is posted.
type BalanceSheet struct {
	Assets      Section
	Liabilities Section
	Equity      Amounts
}

// includeProjected adds projected totals to current liabilities and keeps the
// posted figure alongside.
func (b *BalanceSheet) includeProjected(totals Amounts) {
	b.Liabilities.CurrentPosted = b.Liabilities.Current
	b.Liabilities.Current = b.Liabilities.Current.plus(totals)
}

// ProjectionSource says where a projected liability came from.
type ProjectionSource string

const (
	ProjectionRecurring       ProjectionSource = "RECURRING"
	ProjectionOperatorPayment ProjectionSource = "OPERATOR_PAYMENT"
	ProjectionPayment         ProjectionSource = "PAYMENT"
)

// Projection is an obligation due by the cutoff with no movement yet.
type Projection struct {
	Source      ProjectionSource
	ID          uuid.UUID
	Description string
	Currency    ledger.Currency
	Amount      decimal.Decimal
	DueDate     time.Time
}

// ProjectedLiabilities are current liabilities that are not ledger facts.
type ProjectedLiabilities struct {
	Items  []Projection
	Totals Amounts
}

// ProfitAndLoss is the period result per currency.
type ProfitAndLoss struct {
	Revenue   Amounts
	Cost      Amounts
	Expense   Amounts
	FXGain    Amounts
	FXLoss    Amounts
	Operating Amounts
	Net       Amounts
	// Blended is nil when no month-end rate could be resolved.
	Blended *Blended
	// MovementCount is the size of the deduplicated movement set.
	MovementCount int
}

// Blended expresses the period result in USD at the month-end rate.
type Blended struct {
	Rate      decimal.Decimal
	Revenue   decimal.Decimal
	Cost      decimal.Decimal
	Expense   decimal.Decimal
	FXGain    decimal.Decimal
	FXLoss    decimal.Decimal
	Operating decimal.Decimal
	Net       decimal.Decimal
}

// Position is the monthly position report.
type Position struct {
	Year        int
	Month       time.Month
	AgencyID    *uuid.UUID
	PeriodStart time.Time
	Cutoff      time.Time
	Sheet       BalanceSheet
	Projected   ProjectedLiabilities
	PnL         ProfitAndLoss
	Chart       []*ledger.ChartAccount
}

// Query selects a month and optionally an agency.
type Query struct {
	Year     int
	Month    int
	AgencyID *uuid.UUID
}

// Period returns the first instant of the month and the month-end cutoff
// (the last instant of its last day).
func Period(year int, month time.Month) (start, cutoff time.Time) {
	start = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// Service aggregates positions. It only reads.
type Service struct {
	uow    repository.UnitOfWork
	calc   *balance.Calculator
	rates  exchange.Resolver
	logger *slog.Logger
}

// New creates a report Service.
func New(uow repository.UnitOfWork, calc *balance.Calculator, rates exchange.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uow: uow, calc: calc, rates: rates, logger: logger.With("service", "report")}
}

// MonthlyPosition builds the report for q.
func (s *Service) MonthlyPosition(ctx context.Context, q Query) (*Position, error) {
	if q.Month < 1 || q.Month > 12 {
		return nil, ledger.NewValidationError("month", fmt.Sprintf("%d is not between 1 and 12", q.Month))
	}
	if q.Year < minYear || q.Year > maxYear {
		return nil, ledger.NewValidationError("year", fmt.Sprintf("%d is out of range", q.Year))
	}
	logger := s.logger.With("year", q.Year, "month", q.Month, "agency_id", q.AgencyID)
	logger.Info("Monthly position started")

	start, cutoff := Period(q.Year, time.Month(q.Month))
	pos := &Position{
		Year:        q.Year,
		Month:       time.Month(q.Month),
		AgencyID:    q.AgencyID,
		PeriodStart: start,
		Cutoff:      cutoff,
	}

	charts, err := s.uow.ChartAccountRepository()
	if err != nil {
		return nil, err
	}
	if pos.Chart, err = charts.ListActiveLeaves(ctx); err != nil {
		return nil, err
	}
	all, err := charts.List(ctx)
	if err != nil {
		return nil, err
	}
	categoryOf := make(map[uuid.UUID]ledger.Category, len(all))
	for _, c := range all {
		categoryOf[c.ID] = c.Category
	}

	accountRepo, err := s.uow.FinancialAccountRepository()
	if err != nil {
		return nil, err
	}
	accounts, err := accountRepo.List(ctx, repository.AccountFilter{AgencyID: q.AgencyID})
	if err != nil {
		return nil, err
	}

	if pos.Sheet, err = s.balanceSheet(ctx, accounts, cutoff); err != nil {
		logger.Error("Monthly position failed: balance sheet", "error", err)
		return nil, err
	}
	if pos.Projected, err = s.projected(ctx, cutoff, q.AgencyID); err != nil {
		logger.Error("Monthly position failed: projected liabilities", "error", err)
		return nil, err
	}
	pos.Sheet.includeProjected(pos.Projected.Totals)

	var resultAccounts []*ledger.FinancialAccount
	for _, a := range accounts {
		if categoryOf[a.ChartAccountID].IsResult() {
			resultAccounts = append(resultAccounts, a)
		}
	}
	movements, err := s.PeriodMovements(ctx, resultAccounts, start, cutoff)
	if err != nil {
		logger.Error("Monthly position failed: period movements", "error", err)
		return nil, err
	}
	accountCategory := make(map[uuid.UUID]ledger.Category, len(resultAccounts))
	for _, a := range resultAccounts {
		accountCategory[a.ID] = categoryOf[a.ChartAccountID]
	}
	pos.PnL = ProfitAndLossOf(movements, accountCategory)

	res, err := s.rates.Resolve(ctx, cutoff)
	switch {
	case err == nil:
		pos.PnL.Blended = blend(pos.PnL, res.Rate)
	case errors.Is(err, ledger.ErrUnresolvedExchangeRate):
		logger.Warn("Blended result omitted: no month-end rate", "error", err)
	default:
		return nil, err
	}

	logger.Info("Monthly position successful",
		"accounts", len(accounts),
		"movements", pos.PnL.MovementCount,
		"projections", len(pos.Projected.Items),
	)
	return pos, nil
}

func (s *Service) balanceSheet(ctx context.Context, accounts []*ledger.FinancialAccount, cutoff time.Time) (BalanceSheet, error) {
	sheet := BalanceSheet{Assets: newSection(), Liabilities: newSection(), Equity: newAmounts()}
	balances, err := s.calc.BalancesOf(ctx, accounts, cutoff)
	if err != nil {
		return sheet, err
	}
	for _, b := range balances {
		switch b.Category {
		case ledger.CategoryAsset:
			sheet.Assets.add(b.Subcategory, b.Currency, b.Amount)
		case ledger.CategoryLiability:
			sheet.Liabilities.add(b.Subcategory, b.Currency, b.Amount)
		case ledger.CategoryEquity:
			sheet.Equity.add(b.Currency, b.Amount)
		}
	}
	sheet.Assets.CurrentPosted = sheet.Assets.Current
	sheet.Liabilities.CurrentPosted = sheet.Liabilities.Current
	return sheet, nil
}

func (s *Service) projected(ctx context.Context, cutoff time.Time, agencyID *uuid.UUID) (ProjectedLiabilities, error) {
	out := ProjectedLiabilities{Totals: newAmounts()}
	push := func(p Projection) {
		out.Items = append(out.Items, p)
		out.Totals.add(p.Currency, p.Amount)
	}

	recurring, err := s.uow.RecurringPaymentRepository()
	if err != nil {
		return out, err
	}
	due, err := recurring.ListDue(ctx, cutoff, agencyID)
	if err != nil {
		return out, err
	}
	for _, r := range due {
		push(Projection{
			Source:      ProjectionRecurring,
			ID:          r.ID,
			Description: r.Provider + " " + r.Description,
			Currency:    r.Currency,
			Amount:      r.Amount,
			DueDate:     r.NextDueDate,
		})
	}

	operatorPayments, err := s.uow.OperatorPaymentRepository()
	if err != nil {
		return out, err
	}
	pendingOps, err := operatorPayments.ListPending(ctx, cutoff, agencyID)
	if err != nil {
		return out, err
	}
	for _, op := range pendingOps {
		push(Projection{
			Source:      ProjectionOperatorPayment,
			ID:          op.ID,
			Description: "operator " + op.OperatorID.String(),
			Currency:    op.Currency,
			Amount:      op.Amount,
			DueDate:     op.DueDate,
		})
	}

	// Operator payments are already counted through their mirror rows.
	payments, err := s.uow.PaymentRepository()
	if err != nil {
		return out, err
	}
	pending, err := payments.Find(ctx, repository.PaymentFilter{
		AgencyID:  agencyID,
		Status:    ledger.StatusPending,
		Direction: ledger.DirectionExpense,
		DueUntil:  &cutoff,
	})
	if err != nil {
		return out, err
	}
	for _, p := range pending {
		if p.PayerType == ledger.PayerOperator {
			continue
		}
		push(Projection{
			Source:      ProjectionPayment,
			ID:          p.ID,
			Description: "payment " + p.Reference,
			Currency:    p.Currency,
			Amount:      p.Amount,
			DueDate:     p.DateDue,
		})
	}
	return out, nil
}

// PeriodMovements returns the movements on resultAccounts created in the
// period or linked to a payment paid in it, deduplicated by id.
func (s *Service) PeriodMovements(ctx context.Context, resultAccounts []*ledger.FinancialAccount, start, cutoff time.Time) ([]*ledger.LedgerMovement, error) {
	if len(resultAccounts) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(resultAccounts))
	for _, a := range resultAccounts {
		ids = append(ids, a.ID)
	}

	movements, err := s.uow.MovementRepository()
	if err != nil {
		return nil, err
	}
	after := start.Add(-time.Nanosecond)
	created, err := movements.Find(ctx, repository.MovementFilter{
		AccountIDs:   ids,
		CreatedAfter: &after,
		CreatedUntil: &cutoff,
	})
	if err != nil {
		return nil, err
	}

	payments, err := s.uow.PaymentRepository()
	if err != nil {
		return nil, err
	}
	end := cutoff.Add(time.Nanosecond)
	paid, err := payments.Find(ctx, repository.PaymentFilter{
		Status:     ledger.StatusPaid,
		PaidFrom:   &start,
		PaidBefore: &end,
	})
	if err != nil {
		return nil, err
	}

	var linked []*ledger.LedgerMovement
	if len(paid) > 0 {
		paymentIDs := make([]uuid.UUID, 0, len(paid))
		for _, p := range paid {
			paymentIDs = append(paymentIDs, p.ID)
		}
		byPayment, err := movements.Find(ctx, repository.MovementFilter{AccountIDs: ids, PaymentIDs: paymentIDs})
		if err != nil {
			return nil, err
		}
		linked = append(linked, byPayment...)

		var movementIDs []uuid.UUID
		for _, p := range paid {
			if p.LedgerMovementID != nil {
				movementIDs = append(movementIDs, *p.LedgerMovementID)
			}
		}
		if len(movementIDs) > 0 {
			byID, err := movements.Find(ctx, repository.MovementFilter{AccountIDs: ids, IDs: movementIDs})
			if err != nil {
				return nil, err
			}
			linked = append(linked, byID...)
		}
	}
	return union(created, linked), nil
}

func union(sets ...[]*ledger.LedgerMovement) []*ledger.LedgerMovement {
	seen := make(map[uuid.UUID]struct{})
	var out []*ledger.LedgerMovement
	for _, set := range sets {
		for _, m := range set {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ProfitAndLossOf classifies movements by the category of the account they
// were posted on. Amounts are original amounts in the movement currency.
func ProfitAndLossOf(movements []*ledger.LedgerMovement, categoryOf map[uuid.UUID]ledger.Category) ProfitAndLoss {
	pnl := ProfitAndLoss{
		Revenue: newAmounts(),
		Cost:    newAmounts(),
		Expense: newAmounts(),
		FXGain:  newAmounts(),
		FXLoss:  newAmounts(),
	}
	for _, m := range movements {
		category := categoryOf[m.AccountID]
		switch {
		case m.Kind == ledger.KindFXGain:
			pnl.FXGain.add(m.Currency, m.Amount)
		case m.Kind == ledger.KindFXLoss:
			pnl.FXLoss.add(m.Currency, m.Amount)
		case category == ledger.CategoryIncome:
			pnl.Revenue.add(m.Currency, ledger.SignedDelta(category, m.Kind, m.Amount))
		case category == ledger.CategoryCost:
			pnl.Cost.add(m.Currency, ledger.SignedDelta(category, m.Kind, m.Amount).Neg())
		case category == ledger.CategoryExpense:
			pnl.Expense.add(m.Currency, ledger.SignedDelta(category, m.Kind, m.Amount).Neg())
		default:
			continue
		}
		pnl.MovementCount++
	}
	pnl.Operating = pnl.Revenue.sub(pnl.Cost).sub(pnl.Expense)
	pnl.Net = pnl.Operating.plus(pnl.FXGain).sub(pnl.FXLoss)
	return pnl
}

func blend(p ProfitAndLoss, rate decimal.Decimal) *Blended {
	usd := func(a Amounts) decimal.Decimal {
		total := a[ledger.USD]
		if ars := a[ledger.ARS]; !ars.IsZero() {
			total = total.Add(ars.Div(rate))
		}
		return total
	}
	return &Blended{
		Rate:      rate,
		Revenue:   usd(p.Revenue),
		Cost:      usd(p.Cost),
		Expense:   usd(p.Expense),
		FXGain:    usd(p.FXGain),
		FXLoss:    usd(p.FXLoss),
		Operating: usd(p.Operating),
		Net:       usd(p.Net),
	}
}

// Rounded returns a copy of the position with every figure rounded to cents.
func (p *Position) Rounded() *Position {
	out := *p
	out.Sheet = BalanceSheet{
		Assets:      p.Sheet.Assets.rounded(),
		Liabilities: p.Sheet.Liabilities.rounded(),
		Equity:      p.Sheet.Equity.Rounded(),
	}
	out.Projected = ProjectedLiabilities{Totals: p.Projected.Totals.Rounded()}
	for _, item := range p.Projected.Items {
		item.Amount = ledger.Round2(item.Amount)
		out.Projected.Items = append(out.Projected.Items, item)
	}
	pnl := p.PnL
	pnl.Revenue = p.PnL.Revenue.Rounded()
	pnl.Cost = p.PnL.Cost.Rounded()
	pnl.Expense = p.PnL.Expense.Rounded()
	pnl.FXGain = p.PnL.FXGain.Rounded()
	pnl.FXLoss = p.PnL.FXLoss.Rounded()
	pnl.Operating = p.PnL.Operating.Rounded()
	pnl.Net = p.PnL.Net.Rounded()
	if p.PnL.Blended != nil {
		b := *p.PnL.Blended
		b.Revenue = ledger.Round2(b.Revenue)
		b.Cost = ledger.Round2(b.Cost)
		b.Expense = ledger.Round2(b.Expense)
		b.FXGain = ledger.Round2(b.FXGain)
		b.FXLoss = ledger.Round2(b.FXLoss)
		b.Operating = ledger.Round2(b.Operating)
		b.Net = ledger.Round2(b.Net)
		pnl.Blended = &b
	}
	out.PnL = pnl
	return &out
}
