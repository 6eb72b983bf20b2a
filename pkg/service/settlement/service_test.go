package settlement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	infraeventbus "github.com/travelagency/backoffice/infra/eventbus"
	"github.com/travelagency/backoffice/pkg/domain/events"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"github.com/travelagency/backoffice/pkg/service/balance"
	"github.com/travelagency/backoffice/pkg/service/exchange"
	"github.com/travelagency/backoffice/pkg/service/fx"
	"github.com/travelagency/backoffice/pkg/service/posting"
	"github.com/travelagency/backoffice/pkg/service/settlement"
	"github.com/travelagency/backoffice/pkg/testutils"
)

var (
	march15 = testutils.Date(2024, time.March, 15)
	actor   = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
)

type harness struct {
	uow repository.UnitOfWork
	fx  *testutils.Fixtures
	bus *infraeventbus.MemoryEventBus
	svc *settlement.Service
}

func newService(uow repository.UnitOfWork, bus *infraeventbus.MemoryEventBus) *settlement.Service {
	logger := testutils.DiscardLogger()
	rates := exchange.New(uow, logger)
	poster := posting.New(uow, logger)
	return settlement.New(settlement.Deps{
		Uow:       uow,
		Poster:    poster,
		Validator: balance.NewValidator(balance.NewCalculator(uow, logger), balance.DefaultTolerance, logger),
		FX:        fx.New(rates, poster, fx.DefaultTolerance, logger),
		Rates:     rates,
		Bus:       bus,
		Logger:    logger,
	}).WithClock(func() time.Time { return march15.Add(10 * time.Hour) })
}

func newHarness(t *testing.T) *harness {
	uow, _ := testutils.NewTestUoW(t)
	bus := infraeventbus.NewWithMemory(testutils.DiscardLogger())
	return &harness{
		uow: uow,
		fx:  testutils.NewFixtures(t, uow),
		bus: bus,
		svc: newService(uow, bus),
	}
}

func (h *harness) payment(t *testing.T, id uuid.UUID) *ledger.Payment {
	t.Helper()
	repo, err := h.uow.PaymentRepository()
	require.NoError(t, err)
	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (h *harness) balance(t *testing.T, accountID uuid.UUID) *balance.Balance {
	t.Helper()
	b, err := balance.NewCalculator(h.uow, testutils.DiscardLogger()).Balance(context.Background(), accountID, nil)
	require.NoError(t, err)
	return b
}

func (h *harness) leafAccount(t *testing.T, code string, cur ledger.Currency, agencyID *uuid.UUID) *ledger.FinancialAccount {
	t.Helper()
	a, err := posting.New(h.uow, testutils.DiscardLogger()).LeafAccount(context.Background(), code, cur, agencyID)
	require.NoError(t, err)
	return a
}

func settle(id uuid.UUID) settlement.Command {
	return settlement.Command{PaymentID: id, DatePaid: march15, Reference: "REC-1", ActingUser: actor}
}

func TestSettle_CustomerCollectionInARS(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fx.Rate(testutils.Date(2024, time.March, 1), "1250")
	bank := h.fx.Account("Bank ARS", ledger.AccountTypeBank, ledger.CodeBanks, ledger.ARS, "0", nil)
	op := h.fx.Operation(&ledger.Operation{
		FileCode:     "F-100",
		SaleAmount:   testutils.D("100000"),
		SaleCurrency: ledger.ARS,
		CostCurrency: ledger.ARS,
		ExchangeRate: testutils.DP("1250"),
	})
	p := h.fx.Payment(&ledger.Payment{
		OperationID: &op.ID,
		PayerType:   ledger.PayerCustomer,
		Direction:   ledger.DirectionIncome,
		Amount:      testutils.D("100000"),
		Currency:    ledger.ARS,
		AccountID:   &bank.ID,
	})

	res, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeSettled, res.Outcome)
	assert.Nil(t, res.FXMovementID)
	require.NotNil(t, res.CounterpartMovementID)

	stored := h.payment(t, p.ID)
	assert.Equal(t, ledger.StatusPaid, stored.Status)
	require.NotNil(t, stored.LedgerMovementID)
	assert.Equal(t, res.MovementID, *stored.LedgerMovementID)
	assert.Equal(t, bank.ID, *stored.AccountID)

	onBank := h.fx.Movements(bank.ID)
	require.Len(t, onBank, 1)
	m := onBank[0]
	assert.Equal(t, ledger.KindIncome, m.Kind)
	require.NotNil(t, m.ExchangeRate)
	assert.True(t, testutils.D("1250").Equal(*m.ExchangeRate))
	assert.True(t, testutils.D("80").Equal(m.BaseEquivalent), "base %s", m.BaseEquivalent)
	assert.True(t, testutils.D("100000").Equal(h.balance(t, bank.ID).Amount))

	ar := h.leafAccount(t, ledger.CodeAccountsReceivable, ledger.ARS, &op.AgencyID)
	arMovements := h.fx.Movements(ar.ID)
	require.Len(t, arMovements, 1)
	assert.Equal(t, ledger.KindExpense, arMovements[0].Kind)
	assert.True(t, testutils.D("-100000").Equal(h.balance(t, ar.ID).Amount))

	sales := h.leafAccount(t, ledger.CodeSalesIncome, ledger.ARS, &op.AgencyID)
	assert.Equal(t, ledger.AccountTypeResult, sales.Type)
	assert.Len(t, h.fx.Movements(sales.ID), 1)

	var names []string
	for _, f := range res.FollowUps {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"notify", "legacy_cash_movement"}, names)
}

func TestSettle_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("250"),
		Currency:  ledger.USD,
		AccountID: &bank.ID,
	})

	first, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	before := len(h.fx.AllMovements())

	second, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeReplayed, second.Outcome)
	assert.Equal(t, first.MovementID, second.MovementID)
	assert.Equal(t, first.SettlementMovementID, second.SettlementMovementID)
	assert.Empty(t, second.FollowUps)
	assert.Len(t, h.fx.AllMovements(), before)
	assert.True(t, testutils.D("250").Equal(h.balance(t, bank.ID).Amount))
}

func TestSettle_InsufficientFundsLeavesPaymentPending(t *testing.T) {
	h := newHarness(t)
	cash := h.fx.Account("Cash USD", ledger.AccountTypeCash, ledger.CodeCash, ledger.USD, "500", nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerOperator,
		Direction: ledger.DirectionExpense,
		Amount:    testutils.D("1000"),
		Currency:  ledger.USD,
		AccountID: &cash.ID,
	})

	_, err := h.svc.Settle(context.Background(), settle(p.ID))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	var insufficient *ledger.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, testutils.D("500").Equal(insufficient.Shortfall))

	stored := h.payment(t, p.ID)
	assert.Equal(t, ledger.StatusPending, stored.Status)
	assert.Nil(t, stored.DatePaid)
	assert.Empty(t, h.fx.AllMovements())
	assert.True(t, testutils.D("500").Equal(h.balance(t, cash.ID).Amount))
}

func TestSettle_OperatorPaymentReducesPayable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "5000", nil)
	operatorID := uuid.New()
	op := h.fx.Operation(&ledger.Operation{
		FileCode:     "F-200",
		OperatorID:   &operatorID,
		SaleCurrency: ledger.USD,
		OperatorCost: testutils.D("700"),
		CostCurrency: ledger.USD,
	})
	p := h.fx.Payment(&ledger.Payment{
		OperationID: &op.ID,
		PayerType:   ledger.PayerOperator,
		Direction:   ledger.DirectionExpense,
		Amount:      testutils.D("700"),
		Currency:    ledger.USD,
		AccountID:   &bank.ID,
		OperatorID:  &operatorID,
	})
	mirrors, err := h.uow.OperatorPaymentRepository()
	require.NoError(t, err)
	require.NoError(t, mirrors.Create(ctx, &ledger.OperatorPayment{
		OperationID: op.ID,
		OperatorID:  operatorID,
		PaymentID:   &p.ID,
		Amount:      testutils.D("700"),
		Currency:    ledger.USD,
		DueDate:     testutils.Date(2024, time.March, 1),
		Status:      ledger.StatusPending,
	}))

	res, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	ap := h.leafAccount(t, ledger.CodeAccountsPayable, ledger.USD, &op.AgencyID)
	apMovements := h.fx.Movements(ap.ID)
	require.Len(t, apMovements, 1)
	assert.Equal(t, ledger.KindIncome, apMovements[0].Kind)
	assert.True(t, testutils.D("-700").Equal(h.balance(t, ap.ID).Amount))
	assert.True(t, testutils.D("4300").Equal(h.balance(t, bank.ID).Amount))

	mirror, err := mirrors.GetByPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, mirror.Status)
	require.NotNil(t, mirror.LedgerMovementID)
	assert.Equal(t, res.MovementID, *mirror.LedgerMovementID)

	for _, f := range res.FollowUps {
		assert.NotEqual(t, "notify", f.Name())
	}
}

func TestSettle_DefaultSettlementAccount(t *testing.T) {
	h := newHarness(t)
	op := h.fx.Operation(&ledger.Operation{FileCode: "F-300", SaleCurrency: ledger.USD, CostCurrency: ledger.USD})
	p := h.fx.Payment(&ledger.Payment{
		OperationID: &op.ID,
		PayerType:   ledger.PayerCustomer,
		Direction:   ledger.DirectionIncome,
		Amount:      testutils.D("120"),
		Currency:    ledger.USD,
	})

	res, err := h.svc.Settle(context.Background(), settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, res.MovementID, res.SettlementMovementID)

	sales := h.leafAccount(t, ledger.CodeSalesIncome, ledger.USD, &op.AgencyID)
	require.Len(t, h.fx.Movements(sales.ID), 1)
	assert.Equal(t, sales.ID, *h.payment(t, p.ID).AccountID)

	replay, err := h.svc.Settle(context.Background(), settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeReplayed, replay.Outcome)
	assert.Len(t, h.fx.Movements(sales.ID), 1)
}

func TestSettle_PostsFXDifference(t *testing.T) {
	h := newHarness(t)
	h.fx.Rate(testutils.Date(2024, time.March, 1), "1250")
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)
	op := h.fx.Operation(&ledger.Operation{
		FileCode:     "F-400",
		SaleAmount:   testutils.D("100000"),
		SaleCurrency: ledger.ARS,
		CostCurrency: ledger.ARS,
		ExchangeRate: testutils.DP("1000"),
	})
	p := h.fx.Payment(&ledger.Payment{
		OperationID: &op.ID,
		PayerType:   ledger.PayerCustomer,
		Direction:   ledger.DirectionIncome,
		Amount:      testutils.D("80"),
		Currency:    ledger.USD,
		AccountID:   &bank.ID,
	})

	res, err := h.svc.Settle(context.Background(), settle(p.ID))
	require.NoError(t, err)
	require.NotNil(t, res.FXMovementID)

	loss := h.leafAccount(t, ledger.CodeFXLoss, ledger.USD, &op.AgencyID)
	movements := h.fx.Movements(loss.ID)
	require.Len(t, movements, 1)
	assert.Equal(t, ledger.KindFXLoss, movements[0].Kind)
	assert.True(t, testutils.D("20").Equal(movements[0].Amount))
	assert.True(t, march15.Add(10*time.Hour).Equal(movements[0].CreatedAt))
}

func TestSettle_UnresolvedRateIsFatalBeforePosting(t *testing.T) {
	h := newHarness(t)
	bank := h.fx.Account("Bank ARS", ledger.AccountTypeBank, ledger.CodeBanks, ledger.ARS, "0", nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("5000"),
		Currency:  ledger.ARS,
		AccountID: &bank.ID,
	})

	_, err := h.svc.Settle(context.Background(), settle(p.ID))
	require.ErrorIs(t, err, ledger.ErrUnresolvedExchangeRate)
	assert.Equal(t, ledger.StatusPending, h.payment(t, p.ID).Status)
	assert.Empty(t, h.fx.AllMovements())
}

func TestSettle_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	usd := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)

	_, err := h.svc.Settle(ctx, settlement.Command{DatePaid: march15})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = h.svc.Settle(ctx, settlement.Command{PaymentID: uuid.New()})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = h.svc.Settle(ctx, settle(uuid.New()))
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	mismatch := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("10"),
		Currency:  ledger.ARS,
		AccountID: &usd.ID,
	})
	_, err = h.svc.Settle(ctx, settle(mismatch.ID))
	assert.ErrorIs(t, err, ledger.ErrValidation)

	noDefault := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerOperator,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("10"),
		Currency:  ledger.USD,
	})
	_, err = h.svc.Settle(ctx, settle(noDefault.ID))
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Equal(t, ledger.StatusPending, h.payment(t, noDefault.ID).Status)
}

// failingMovements rejects movements on one account.
type failingMovements struct {
	repository.MovementRepository
	account uuid.UUID
}

func (f failingMovements) Create(ctx context.Context, m *ledger.LedgerMovement) error {
	if m.AccountID == f.account {
		return errors.New("disk full")
	}
	return f.MovementRepository.Create(ctx, m)
}

// failingPayments fails attaching result movements or releasing the
// settlement lease when the matching error is set.
type failingPayments struct {
	repository.PaymentRepository
	attachErr  error
	releaseErr error
}

func (f failingPayments) AttachMovement(ctx context.Context, id, movementID uuid.UUID) (bool, error) {
	if f.attachErr != nil {
		return false, f.attachErr
	}
	return f.PaymentRepository.AttachMovement(ctx, id, movementID)
}

func (f failingPayments) Release(ctx context.Context, id uuid.UUID) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	return f.PaymentRepository.Release(ctx, id)
}

type failingUoW struct {
	repository.UnitOfWork
	account    uuid.UUID
	attachErr  error
	releaseErr error
}

func (f failingUoW) MovementRepository() (repository.MovementRepository, error) {
	repo, err := f.UnitOfWork.MovementRepository()
	if err != nil {
		return nil, err
	}
	return failingMovements{MovementRepository: repo, account: f.account}, nil
}

func (f failingUoW) PaymentRepository() (repository.PaymentRepository, error) {
	repo, err := f.UnitOfWork.PaymentRepository()
	if err != nil {
		return nil, err
	}
	return failingPayments{PaymentRepository: repo, attachErr: f.attachErr, releaseErr: f.releaseErr}, nil
}

func TestSettle_PartialPostingThenCorrection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("300"),
		Currency:  ledger.USD,
		AccountID: &bank.ID,
	})

	broken := newService(failingUoW{UnitOfWork: h.uow, account: bank.ID}, h.bus)
	_, err := broken.Settle(ctx, settle(p.ID))
	require.ErrorIs(t, err, ledger.ErrPartialPosting)
	var partial *ledger.PartialPostingError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, bank.ID, partial.AccountID)

	stored := h.payment(t, p.ID)
	assert.Equal(t, ledger.StatusPaid, stored.Status)
	require.NotNil(t, stored.LedgerMovementID)
	assert.Empty(t, h.fx.Movements(bank.ID))

	res, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeCorrected, res.Outcome)
	assert.Equal(t, *stored.LedgerMovementID, res.MovementID)
	require.Len(t, h.fx.Movements(bank.ID), 1)
	assert.True(t, testutils.D("300").Equal(h.balance(t, bank.ID).Amount))
	for _, f := range res.FollowUps {
		assert.NotEqual(t, "notify", f.Name())
	}

	again, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeReplayed, again.Outcome)
	assert.Len(t, h.fx.Movements(bank.ID), 1)
}

func followUpNames(res *settlement.Result) []string {
	names := make([]string, 0, len(res.FollowUps))
	for _, f := range res.FollowUps {
		names = append(names, f.Name())
	}
	return names
}

func TestSettle_ResultFailureRecoversOnRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)
	sales := h.leafAccount(t, ledger.CodeSalesIncome, ledger.USD, nil)
	ar := h.leafAccount(t, ledger.CodeAccountsReceivable, ledger.USD, nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("250"),
		Currency:  ledger.USD,
		AccountID: &bank.ID,
	})

	broken := newService(failingUoW{UnitOfWork: h.uow, account: sales.ID}, h.bus)
	_, err := broken.Settle(ctx, settle(p.ID))
	require.ErrorContains(t, err, "result movement failed: disk full")
	assert.NotErrorIs(t, err, ledger.ErrPartialPosting)

	stored := h.payment(t, p.ID)
	assert.Equal(t, ledger.StatusPaid, stored.Status)
	assert.Nil(t, stored.LedgerMovementID)
	counterpart := h.fx.Movements(ar.ID)
	require.Len(t, counterpart, 1)
	assert.Empty(t, h.fx.Movements(sales.ID))

	res, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeRecovered, res.Outcome)
	require.NotNil(t, res.CounterpartMovementID)
	assert.Equal(t, counterpart[0].ID, *res.CounterpartMovementID)
	assert.Contains(t, followUpNames(res), "notify")

	stored = h.payment(t, p.ID)
	require.NotNil(t, stored.LedgerMovementID)
	assert.Equal(t, res.MovementID, *stored.LedgerMovementID)
	assert.Len(t, h.fx.Movements(ar.ID), 1)
	assert.Len(t, h.fx.Movements(sales.ID), 1)
	require.Len(t, h.fx.Movements(bank.ID), 1)
	assert.True(t, testutils.D("250").Equal(h.balance(t, bank.ID).Amount))

	again, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeReplayed, again.Outcome)
	assert.Equal(t, res.MovementID, again.MovementID)
	assert.Len(t, h.fx.AllMovements(), 3)
}

func TestSettle_UnreleasedLeaseWaitsUntilStale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)
	sales := h.leafAccount(t, ledger.CodeSalesIncome, ledger.USD, nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("40"),
		Currency:  ledger.USD,
		AccountID: &bank.ID,
	})

	crashed := newService(failingUoW{
		UnitOfWork: h.uow,
		account:    sales.ID,
		releaseErr: errors.New("connection lost"),
	}, h.bus)
	_, err := crashed.Settle(ctx, settle(p.ID))
	require.Error(t, err)

	for range 2 {
		_, err = h.svc.Settle(ctx, settle(p.ID))
		require.ErrorIs(t, err, ledger.ErrSettlementInProgress)
	}

	res, err := newService(h.uow, h.bus).WithStaleAfter(0).Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeRecovered, res.Outcome)
	assert.Len(t, h.fx.Movements(sales.ID), 1)
	assert.Len(t, h.fx.Movements(bank.ID), 1)
	assert.Equal(t, res.MovementID, *h.payment(t, p.ID).LedgerMovementID)
}

func TestSettle_AttachFailureReusesResultMovement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)
	sales := h.leafAccount(t, ledger.CodeSalesIncome, ledger.USD, nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("75"),
		Currency:  ledger.USD,
		AccountID: &bank.ID,
	})

	broken := newService(failingUoW{UnitOfWork: h.uow, attachErr: errors.New("timeout")}, h.bus)
	_, err := broken.Settle(ctx, settle(p.ID))
	require.Error(t, err)
	orphan := h.fx.Movements(sales.ID)
	require.Len(t, orphan, 1)
	assert.Nil(t, h.payment(t, p.ID).LedgerMovementID)
	assert.Empty(t, h.fx.Movements(bank.ID))

	res, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)
	assert.Equal(t, settlement.OutcomeRecovered, res.Outcome)
	assert.Equal(t, orphan[0].ID, res.MovementID)
	assert.Equal(t, orphan[0].ID, *h.payment(t, p.ID).LedgerMovementID)
	assert.Len(t, h.fx.Movements(sales.ID), 1)
	assert.Len(t, h.fx.Movements(bank.ID), 1)
}

func TestSettle_Concurrent(t *testing.T) {
	h := newHarness(t)
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("90"),
		Currency:  ledger.USD,
		AccountID: &bank.ID,
	})

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []settlement.Outcome
		errs     []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.Settle(context.Background(), settle(p.ID))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			outcomes = append(outcomes, res.Outcome)
		}()
	}
	wg.Wait()

	settled := 0
	for _, o := range outcomes {
		if o == settlement.OutcomeSettled {
			settled++
		} else {
			assert.Equal(t, settlement.OutcomeReplayed, o)
		}
	}
	assert.Equal(t, 1, settled)
	for _, err := range errs {
		assert.ErrorIs(t, err, ledger.ErrSettlementInProgress)
	}
	assert.Len(t, h.fx.Movements(bank.ID), 1)
	assert.True(t, testutils.D("90").Equal(h.balance(t, bank.ID).Amount))
}

func TestMatchSettlementMovement(t *testing.T) {
	opID := uuid.New()
	p := &ledger.Payment{ID: uuid.New(), OperationID: &opID, Amount: testutils.D("50"), Currency: ledger.USD}
	other := uuid.New()
	tagged := &ledger.LedgerMovement{ID: uuid.New(), PaymentID: &p.ID, Amount: testutils.D("50"), Currency: ledger.USD}
	legacy := &ledger.LedgerMovement{ID: uuid.New(), OperationID: &opID, Amount: testutils.D("50"), Currency: ledger.USD}
	foreign := &ledger.LedgerMovement{ID: uuid.New(), PaymentID: &other, OperationID: &opID, Amount: testutils.D("50"), Currency: ledger.USD}
	wrongAmount := &ledger.LedgerMovement{ID: uuid.New(), OperationID: &opID, Amount: testutils.D("51"), Currency: ledger.USD}

	assert.Same(t, tagged, settlement.MatchSettlementMovement([]*ledger.LedgerMovement{legacy, tagged}, p))
	assert.Same(t, legacy, settlement.MatchSettlementMovement([]*ledger.LedgerMovement{foreign, wrongAmount, legacy}, p))
	assert.Nil(t, settlement.MatchSettlementMovement([]*ledger.LedgerMovement{foreign, wrongAmount}, p))
}

func TestReducingKind(t *testing.T) {
	assert.Equal(t, ledger.KindExpense, settlement.ReducingKind(ledger.CategoryAsset))
	assert.Equal(t, ledger.KindIncome, settlement.ReducingKind(ledger.CategoryLiability))
}

type mockFollowUp struct {
	mock.Mock
}

func (m *mockFollowUp) Name() string { return m.Called().String(0) }

func (m *mockFollowUp) Run(ctx context.Context) error { return m.Called(ctx).Error(0) }

type panickingFollowUp struct{}

func (panickingFollowUp) Name() string { return "panics" }

func (panickingFollowUp) Run(context.Context) error { panic("boom") }

func TestRunFollowUps_IsolatesFailures(t *testing.T) {
	ok := new(mockFollowUp)
	ok.On("Name").Return("ok")
	ok.On("Run", mock.Anything).Return(nil).Once()
	failing := new(mockFollowUp)
	failing.On("Name").Return("failing")
	failing.On("Run", mock.Anything).Return(errors.New("smtp down")).Once()

	out := settlement.RunFollowUps(context.Background(), testutils.DiscardLogger(),
		[]settlement.FollowUp{failing, panickingFollowUp{}, ok})

	require.Len(t, out, 3)
	assert.EqualError(t, out[0].Err, "smtp down")
	assert.ErrorContains(t, out[1].Err, "panic")
	assert.NoError(t, out[2].Err)
	ok.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestFollowUps_NotifyAndLegacyRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.fx.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "0", nil)
	p := h.fx.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("75"),
		Currency:  ledger.USD,
		AccountID: &bank.ID,
	})
	res, err := h.svc.Settle(ctx, settle(p.ID))
	require.NoError(t, err)

	for _, o := range settlement.RunFollowUps(ctx, testutils.DiscardLogger(), res.FollowUps) {
		require.NoError(t, o.Err, o.Name)
	}
	for _, o := range settlement.RunFollowUps(ctx, testutils.DiscardLogger(), res.FollowUps) {
		require.NoError(t, o.Err, o.Name)
	}

	published := h.bus.Published()
	require.Len(t, published, 2)
	evt, ok := published[0].(*events.PaymentSettled)
	require.True(t, ok)
	assert.Equal(t, p.ID, evt.PaymentID)
	assert.Equal(t, res.MovementID, evt.MovementID)
	assert.Equal(t, "REC-1", evt.Reference)

	legacy, err := h.uow.LegacyCashMovementRepository()
	require.NoError(t, err)
	rows, err := legacy.ListByPayment(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, bank.ID, rows[0].AccountID)
	assert.True(t, testutils.D("75").Equal(rows[0].Amount))
}
