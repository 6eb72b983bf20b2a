package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"github.com/travelagency/backoffice/pkg/service/balance"
	"github.com/travelagency/backoffice/pkg/service/exchange"
	"github.com/travelagency/backoffice/pkg/service/report"
	"github.com/travelagency/backoffice/pkg/testutils"
)

func newReport(t *testing.T) (*report.Service, *testutils.Fixtures, repository.UnitOfWork) {
	uow, _ := testutils.NewTestUoW(t)
	logger := testutils.DiscardLogger()
	svc := report.New(uow, balance.NewCalculator(uow, logger), exchange.New(uow, logger), logger)
	return svc, testutils.NewFixtures(t, uow), uow
}

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2024, month, day, hour, 0, 0, 0, time.UTC)
}

func assertAmounts(t *testing.T, want map[ledger.Currency]string, got report.Amounts, label string) {
	t.Helper()
	for _, c := range []ledger.Currency{ledger.ARS, ledger.USD} {
		w := "0"
		if v, ok := want[c]; ok {
			w = v
		}
		assert.True(t, testutils.D(w).Equal(got[c]), "%s %s: want %s got %s", label, c, w, got[c])
	}
}

func activeLeaves() int {
	n := 0
	for _, c := range ledger.DefaultChart {
		if c.Leaf && c.Active {
			n++
		}
	}
	return n
}

func TestMonthlyPosition_EmptyMonth(t *testing.T) {
	svc, _, _ := newReport(t)

	pos, err := svc.MonthlyPosition(context.Background(), report.Query{Year: 2024, Month: 2})
	require.NoError(t, err)

	assert.Equal(t, time.February, pos.Month)
	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC), pos.Cutoff)
	for label, a := range map[string]report.Amounts{
		"assets current":          pos.Sheet.Assets.Current,
		"assets non-current":      pos.Sheet.Assets.NonCurrent,
		"liabilities current":     pos.Sheet.Liabilities.Current,
		"liabilities posted":      pos.Sheet.Liabilities.CurrentPosted,
		"liabilities non-current": pos.Sheet.Liabilities.NonCurrent,
		"projected":               pos.Projected.Totals,
		"revenue":                 pos.PnL.Revenue,
		"net":                     pos.PnL.Net,
	} {
		assertAmounts(t, nil, a, label)
	}
	assert.Empty(t, pos.Projected.Items)
	assert.Zero(t, pos.PnL.MovementCount)
	assert.Nil(t, pos.PnL.Blended)
	assert.Len(t, pos.Chart, activeLeaves())
}

func TestMonthlyPosition_Validation(t *testing.T) {
	svc, _, _ := newReport(t)
	for _, q := range []report.Query{
		{Year: 2024, Month: 0},
		{Year: 2024, Month: 13},
		{Year: 1850, Month: 1},
		{Year: 3000, Month: 1},
	} {
		_, err := svc.MonthlyPosition(context.Background(), q)
		assert.ErrorIs(t, err, ledger.ErrValidation, "%+v", q)
	}
}

type month struct {
	fx       *testutils.Fixtures
	uow      repository.UnitOfWork
	svc      *report.Service
	accounts map[string]*ledger.FinancialAccount
}

// seedMarch builds a March 2024 with movements on both sides of the month
// boundary and payments whose paid date diverges from movement creation.
func seedMarch(t *testing.T) *month {
	svc, f, uow := newReport(t)
	ctx := context.Background()
	f.Rate(at(time.March, 1, 0), "1000")

	m := &month{fx: f, uow: uow, svc: svc, accounts: map[string]*ledger.FinancialAccount{
		"bank":      f.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "1000", nil),
		"fixed":     f.Account("Building", ledger.AccountTypeAsset, "1.2.01", ledger.ARS, "200000", nil),
		"loan":      f.Account("Loan", ledger.AccountTypeAsset, "2.2.01", ledger.USD, "3000", nil),
		"ap":        f.Account("AP USD", ledger.AccountTypeAsset, ledger.CodeAccountsPayable, ledger.USD, "0", nil),
		"sales":     f.Account("Sales USD", ledger.AccountTypeResult, ledger.CodeSalesIncome, ledger.USD, "0", nil),
		"salesARS":  f.Account("Sales ARS", ledger.AccountTypeResult, ledger.CodeSalesIncome, ledger.ARS, "0", nil),
		"cost":      f.Account("Operator cost USD", ledger.AccountTypeResult, ledger.CodeOperatorCost, ledger.USD, "0", nil),
		"expense":   f.Account("Expenses USD", ledger.AccountTypeResult, ledger.CodeGeneralExpense, ledger.USD, "0", nil),
		"fxLoss":    f.Account("FX loss USD", ledger.AccountTypeResult, ledger.CodeFXLoss, ledger.USD, "0", nil),
		"fxGainARS": f.Account("FX gain ARS", ledger.AccountTypeResult, ledger.CodeFXGain, ledger.ARS, "0", nil),
	}}
	a := m.accounts

	paidMarch10 := at(time.March, 10, 0)
	p1 := f.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer, Direction: ledger.DirectionIncome,
		Amount: testutils.D("500"), Currency: ledger.USD,
		Status: ledger.StatusPaid, DatePaid: &paidMarch10,
	})

	f.Movement(&ledger.LedgerMovement{AccountID: a["bank"].ID, Kind: ledger.KindIncome, Currency: ledger.USD, Amount: testutils.D("500"), PaymentID: &p1.ID, CreatedAt: at(time.March, 10, 9)})
	f.Movement(&ledger.LedgerMovement{AccountID: a["bank"].ID, Kind: ledger.KindIncome, Currency: ledger.USD, Amount: testutils.D("100"), CreatedAt: at(time.April, 1, 9)})
	f.Movement(&ledger.LedgerMovement{AccountID: a["ap"].ID, Kind: ledger.KindOperatorPayment, Currency: ledger.USD, Amount: testutils.D("700"), CreatedAt: at(time.March, 5, 9)})

	f.Movement(&ledger.LedgerMovement{AccountID: a["sales"].ID, Kind: ledger.KindIncome, Currency: ledger.USD, Amount: testutils.D("500"), PaymentID: &p1.ID, CreatedAt: at(time.March, 10, 9)})
	f.Movement(&ledger.LedgerMovement{AccountID: a["salesARS"].ID, Kind: ledger.KindIncome, Currency: ledger.ARS, Amount: testutils.D("100000"), ExchangeRate: testutils.DP("1000"), CreatedAt: at(time.March, 20, 9)})
	f.Movement(&ledger.LedgerMovement{AccountID: a["fxLoss"].ID, Kind: ledger.KindFXLoss, Currency: ledger.USD, Amount: testutils.D("20"), PaymentID: &p1.ID, CreatedAt: at(time.March, 10, 9)})
	f.Movement(&ledger.LedgerMovement{AccountID: a["expense"].ID, Kind: ledger.KindExpense, Currency: ledger.USD, Amount: testutils.D("50"), CreatedAt: at(time.March, 15, 9)})
	f.Movement(&ledger.LedgerMovement{AccountID: a["expense"].ID, Kind: ledger.KindExpense, Currency: ledger.USD, Amount: testutils.D("999"), CreatedAt: at(time.February, 20, 9)})

	// Paid on March 31, posted on April 2.
	late := f.Movement(&ledger.LedgerMovement{AccountID: a["cost"].ID, Kind: ledger.KindOperatorPayment, Currency: ledger.USD, Amount: testutils.D("300"), CreatedAt: at(time.April, 2, 9)})
	paidMarch31 := at(time.March, 31, 0)
	f.Payment(&ledger.Payment{
		PayerType: ledger.PayerOperator, Direction: ledger.DirectionExpense,
		Amount: testutils.D("300"), Currency: ledger.USD,
		Status: ledger.StatusPaid, DatePaid: &paidMarch31, LedgerMovementID: &late.ID,
	})
	f.Movement(&ledger.LedgerMovement{AccountID: a["cost"].ID, Kind: ledger.KindOperatorPayment, Currency: ledger.USD, Amount: testutils.D("444"), CreatedAt: at(time.April, 3, 9)})

	// Paid in February, posted in March.
	paidFeb := at(time.February, 28, 0)
	early := f.Movement(&ledger.LedgerMovement{AccountID: a["expense"].ID, Kind: ledger.KindExpense, Currency: ledger.USD, Amount: testutils.D("80"), CreatedAt: at(time.March, 3, 9)})
	f.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer, Direction: ledger.DirectionExpense,
		Amount: testutils.D("80"), Currency: ledger.USD,
		Status: ledger.StatusPaid, DatePaid: &paidFeb, LedgerMovementID: &early.ID,
	})

	recurring, err := uow.RecurringPaymentRepository()
	require.NoError(t, err)
	require.NoError(t, recurring.Create(ctx, &ledger.RecurringPayment{Provider: "Landlord", Description: "rent", Amount: testutils.D("400"), Currency: ledger.USD, NextDueDate: at(time.March, 25, 0), Active: true}))
	require.NoError(t, recurring.Create(ctx, &ledger.RecurringPayment{Provider: "ISP", Description: "fiber", Amount: testutils.D("35"), Currency: ledger.USD, NextDueDate: at(time.April, 5, 0), Active: true}))
	require.NoError(t, recurring.Create(ctx, &ledger.RecurringPayment{Provider: "Old", Description: "cancelled", Amount: testutils.D("10"), Currency: ledger.USD, NextDueDate: at(time.March, 5, 0), Active: false}))

	op := f.Operation(&ledger.Operation{FileCode: "F-1", SaleCurrency: ledger.USD, CostCurrency: ledger.ARS})
	operatorPayment := f.Payment(&ledger.Payment{
		OperationID: &op.ID, PayerType: ledger.PayerOperator, Direction: ledger.DirectionExpense,
		Amount: testutils.D("90000"), Currency: ledger.ARS, DateDue: at(time.March, 28, 0),
	})
	mirrors, err := uow.OperatorPaymentRepository()
	require.NoError(t, err)
	require.NoError(t, mirrors.Create(ctx, &ledger.OperatorPayment{
		OperationID: op.ID, OperatorID: uuid.New(), PaymentID: &operatorPayment.ID,
		Amount: testutils.D("90000"), Currency: ledger.ARS, DueDate: at(time.March, 28, 0), Status: ledger.StatusPending,
	}))
	f.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer, Direction: ledger.DirectionExpense,
		Amount: testutils.D("60"), Currency: ledger.USD, DateDue: at(time.March, 30, 0), Reference: "refund",
	})
	f.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer, Direction: ledger.DirectionIncome,
		Amount: testutils.D("1234"), Currency: ledger.USD, DateDue: at(time.March, 30, 0),
	})
	return m
}

func TestMonthlyPosition_March(t *testing.T) {
	m := seedMarch(t)

	pos, err := m.svc.MonthlyPosition(context.Background(), report.Query{Year: 2024, Month: 3})
	require.NoError(t, err)

	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "1500"}, pos.Sheet.Assets.Current, "assets current")
	assertAmounts(t, map[ledger.Currency]string{ledger.ARS: "200000"}, pos.Sheet.Assets.NonCurrent, "assets non-current")
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "1160", ledger.ARS: "90000"}, pos.Sheet.Liabilities.Current, "liabilities current")
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "700"}, pos.Sheet.Liabilities.CurrentPosted, "liabilities posted")
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "3000"}, pos.Sheet.Liabilities.NonCurrent, "liabilities non-current")

	require.Len(t, pos.Projected.Items, 3)
	sources := map[report.ProjectionSource]int{}
	for _, item := range pos.Projected.Items {
		sources[item.Source]++
	}
	assert.Equal(t, map[report.ProjectionSource]int{
		report.ProjectionRecurring:       1,
		report.ProjectionOperatorPayment: 1,
		report.ProjectionPayment:         1,
	}, sources)
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "460", ledger.ARS: "90000"}, pos.Projected.Totals, "projected")

	pnl := pos.PnL
	assert.Equal(t, 6, pnl.MovementCount)
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "500", ledger.ARS: "100000"}, pnl.Revenue, "revenue")
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "300"}, pnl.Cost, "cost")
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "130"}, pnl.Expense, "expense")
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "20"}, pnl.FXLoss, "fx loss")
	assertAmounts(t, nil, pnl.FXGain, "fx gain")
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "70", ledger.ARS: "100000"}, pnl.Operating, "operating")
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "50", ledger.ARS: "100000"}, pnl.Net, "net")

	require.NotNil(t, pnl.Blended)
	assert.True(t, testutils.D("1000").Equal(pnl.Blended.Rate))
	assert.True(t, testutils.D("600").Equal(pnl.Blended.Revenue), "blended revenue %s", pnl.Blended.Revenue)
	assert.True(t, testutils.D("150").Equal(pnl.Blended.Net), "blended net %s", pnl.Blended.Net)
}

func TestMonthlyPosition_AgencyFilter(t *testing.T) {
	svc, f, _ := newReport(t)
	mine, theirs := uuid.New(), uuid.New()
	f.Account("Shared cash", ledger.AccountTypeCash, ledger.CodeCash, ledger.USD, "10", nil)
	f.Account("My cash", ledger.AccountTypeCash, ledger.CodeCash, ledger.USD, "20", &mine)
	f.Account("Their cash", ledger.AccountTypeCash, ledger.CodeCash, ledger.USD, "40", &theirs)

	all, err := svc.MonthlyPosition(context.Background(), report.Query{Year: 2024, Month: 3})
	require.NoError(t, err)
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "70"}, all.Sheet.Assets.Current, "all agencies")

	filtered, err := svc.MonthlyPosition(context.Background(), report.Query{Year: 2024, Month: 3, AgencyID: &mine})
	require.NoError(t, err)
	assertAmounts(t, map[ledger.Currency]string{ledger.USD: "30"}, filtered.Sheet.Assets.Current, "my agency")
}

// The operating result equals the signed sum of the non-FX movements in the
// created-or-paid union.
func TestMonthlyPosition_Reconciles(t *testing.T) {
	m := seedMarch(t)
	ctx := context.Background()

	pos, err := m.svc.MonthlyPosition(ctx, report.Query{Year: 2024, Month: 3})
	require.NoError(t, err)

	charts, err := m.uow.ChartAccountRepository()
	require.NoError(t, err)
	var results []*ledger.FinancialAccount
	categoryOf := map[uuid.UUID]ledger.Category{}
	for _, a := range m.accounts {
		chart, err := charts.Get(ctx, a.ChartAccountID)
		require.NoError(t, err)
		if chart.Category.IsResult() {
			results = append(results, a)
			categoryOf[a.ID] = chart.Category
		}
	}
	start, cutoff := report.Period(2024, time.March)
	movements, err := m.svc.PeriodMovements(ctx, results, start, cutoff)
	require.NoError(t, err)

	seen := map[uuid.UUID]bool{}
	direct := map[ledger.Currency]decimal.Decimal{ledger.ARS: decimal.Zero, ledger.USD: decimal.Zero}
	for _, mv := range movements {
		require.False(t, seen[mv.ID], "duplicate movement %s", mv.ID)
		seen[mv.ID] = true
		if mv.Kind == ledger.KindFXGain || mv.Kind == ledger.KindFXLoss {
			continue
		}
		direct[mv.Currency] = direct[mv.Currency].Add(ledger.SignedDelta(categoryOf[mv.AccountID], mv.Kind, mv.Amount))
	}
	for c, want := range direct {
		assert.True(t, want.Equal(pos.PnL.Operating[c]), "%s: direct %s report %s", c, want, pos.PnL.Operating[c])
	}
}

func TestPosition_Rounded(t *testing.T) {
	pnl := report.ProfitAndLossOf([]*ledger.LedgerMovement{
		{ID: uuid.New(), AccountID: uuid.Nil, Kind: ledger.KindFXGain, Currency: ledger.USD, Amount: testutils.D("1.005")},
		{ID: uuid.New(), AccountID: uuid.Nil, Kind: ledger.KindFXGain, Currency: ledger.USD, Amount: testutils.D("1.005")},
	}, map[uuid.UUID]ledger.Category{})
	pos := &report.Position{PnL: pnl}

	assert.True(t, testutils.D("2.01").Equal(pos.PnL.FXGain[ledger.USD]))
	rounded := pos.Rounded()
	assert.True(t, testutils.D("2.01").Equal(rounded.PnL.FXGain[ledger.USD]))

	pos.PnL.FXGain[ledger.USD] = testutils.D("0.3333")
	rounded = pos.Rounded()
	assert.Equal(t, "0.33", rounded.PnL.FXGain[ledger.USD].String())
	assert.Equal(t, "0.3333", pos.PnL.FXGain[ledger.USD].String())
}
