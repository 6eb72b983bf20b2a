// Package settlement marks scheduled payments PAID and posts every
// accounting consequence exactly once.
//
// The flow runs statement by statement against the store. The PENDING to
// PAID conditional update is the only concurrency guard: the caller that
// wins it posts, every other caller converges on the replay or correction
// branch. Movements already posted are never rolled back; a failed
// settlement-account movement is reported as a PartialPostingError and the
// next attempt posts just that movement.
//
// Winning the transition also takes a lease on the payment, stamped in its
// updated_at. An attempt that fails after the transition releases the lease.
// A later attempt that finds the payment incomplete must claim the lease,
// which it can once the lease is released or stale. It then reuses the
// movements already tagged with the payment and posts only the rest.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/events"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/eventbus"
	"github.com/travelagency/backoffice/pkg/repository"
	"github.com/travelagency/backoffice/pkg/service/balance"
	"github.com/travelagency/backoffice/pkg/service/exchange"
	"github.com/travelagency/backoffice/pkg/service/fx"
	"github.com/travelagency/backoffice/pkg/service/posting"
)

// Command asks for one payment to be settled.
type Command struct {
	PaymentID  uuid.UUID
	DatePaid   time.Time
	Reference  string
	ActingUser uuid.UUID
}

// Outcome says which branch a settlement took.
type Outcome string

const (
	// OutcomeSettled is a first, complete settlement.
	OutcomeSettled Outcome = "SETTLED"
	// OutcomeReplayed means everything was already posted; nothing was written.
	OutcomeReplayed Outcome = "REPLAYED"
	// OutcomeCorrected means only the missing settlement-account movement
	// was posted.
	OutcomeCorrected Outcome = "CORRECTED"
	// OutcomeRecovered means an attempt interrupted before the result
	// movement was attached has been completed.
	OutcomeRecovered Outcome = "RECOVERED"
)

// DefaultStaleAfter is how long an unfinished settlement holds its lease.
const DefaultStaleAfter = 2 * time.Minute

// Result is what Settle returns.
type Result struct {
	PaymentID uuid.UUID
	Outcome   Outcome
	// MovementID is the result-recognition movement.
	MovementID            uuid.UUID
	SettlementMovementID  uuid.UUID
	CounterpartMovementID *uuid.UUID
	FXMovementID          *uuid.UUID
	// Warnings collects non-fatal problems met after posting.
	Warnings  []string
	FollowUps []FollowUp
}

// Deps holds the collaborators of the Service.
type Deps struct {
	Uow       repository.UnitOfWork
	Poster    *posting.Poster
	Validator *balance.Validator
	FX        *fx.Engine
	Rates     exchange.Resolver
	Bus       eventbus.Bus
	Logger    *slog.Logger
}

// Service is the settlement orchestrator.
type Service struct {
	uow       repository.UnitOfWork
	poster    *posting.Poster
	validator *balance.Validator
	fx        *fx.Engine
	rates     exchange.Resolver
	bus       eventbus.Bus
	logger    *slog.Logger
	now       func() time.Time
	stale     time.Duration
}

// New creates a Service.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:       deps.Uow,
		poster:    deps.Poster,
		validator: deps.Validator,
		fx:        deps.FX,
		rates:     deps.Rates,
		bus:       deps.Bus,
		logger:    logger.With("service", "settlement"),
		now:       time.Now,
		stale:     DefaultStaleAfter,
	}
}

// WithClock replaces the clock used to stamp movements.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithStaleAfter sets how long an unfinished settlement keeps other attempts
// out before they may take it over. Zero lets them take over at once.
func (s *Service) WithStaleAfter(d time.Duration) *Service {
	if d < 0 {
		d = 0
	}
	s.stale = d
	return s
}

// plan is everything resolved before the first write.
type plan struct {
	payment     *ledger.Payment
	operation   *ledger.Operation
	agencyID    *uuid.UUID
	settlement  *ledger.FinancialAccount
	result      *ledger.FinancialAccount
	counterpart *ledger.FinancialAccount
	rate        *decimal.Decimal
	kind        ledger.MovementKind
}

// Settle settles cmd.PaymentID. See the package documentation for the
// branches it can take.
func (s *Service) Settle(ctx context.Context, cmd Command) (*Result, error) {
	logger := s.logger.With("payment_id", cmd.PaymentID, "acting_user", cmd.ActingUser)
	logger.Info("Settle started")

	if cmd.PaymentID == uuid.Nil {
		return nil, ledger.NewValidationError("payment_id", "is required")
	}
	if cmd.DatePaid.IsZero() {
		return nil, ledger.NewValidationError("date_paid", "is required")
	}

	payments, err := s.uow.PaymentRepository()
	if err != nil {
		return nil, err
	}
	payment, err := payments.Get(ctx, cmd.PaymentID)
	if err != nil {
		logger.Error("Settle failed: payment lookup", "error", err)
		return nil, err
	}
	if payment.Status == ledger.StatusPaid {
		return s.settled(ctx, logger, payment, cmd)
	}

	p, err := s.prepare(ctx, payment, cmd)
	if err != nil {
		logger.Error("Settle failed before posting; payment left pending", "error", err)
		return nil, err
	}

	won, err := payments.MarkPaid(ctx, payment.ID, cmd.DatePaid.UTC(), cmd.Reference, p.settlement.ID)
	if err != nil {
		logger.Error("Settle failed: mark paid", "error", err)
		return nil, err
	}
	if !won {
		logger.Info("Lost PENDING to PAID race, converging on settled payment")
		current, err := payments.Get(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		return s.settled(ctx, logger, current, cmd)
	}
	datePaid := cmd.DatePaid.UTC()
	payment.Status = ledger.StatusPaid
	payment.DatePaid = &datePaid
	payment.Reference = cmd.Reference
	payment.AccountID = &p.settlement.ID

	res, err := s.post(ctx, logger, p, cmd, OutcomeSettled, posted{})
	if err != nil {
		s.release(ctx, logger, payment.ID)
		return nil, err
	}
	return res, nil
}

// base resolves the operation and the settlement account of payment.
func (s *Service) base(ctx context.Context, payment *ledger.Payment) (*plan, error) {
	p := &plan{payment: payment, kind: payment.MovementKind()}

	if payment.OperationID != nil {
		operations, err := s.uow.OperationRepository()
		if err != nil {
			return nil, err
		}
		op, err := operations.Get(ctx, *payment.OperationID)
		if err != nil {
			return nil, err
		}
		p.operation = op
		p.agencyID = &op.AgencyID
	}

	settlement, err := s.settlementAccount(ctx, payment, p.agencyID)
	if err != nil {
		return nil, err
	}
	p.settlement = settlement
	if p.agencyID == nil {
		p.agencyID = settlement.AgencyID
	}
	return p, nil
}

// leaves resolves the result and counterpart accounts, creating them on
// first use.
func (s *Service) leaves(ctx context.Context, p *plan) error {
	var err error
	p.result, err = s.poster.LeafAccount(ctx, ledger.ResultLeafCode(p.payment), p.payment.Currency, p.agencyID)
	if err != nil {
		return err
	}
	if code := ledger.CounterpartLeafCode(p.payment); code != "" {
		p.counterpart, err = s.poster.LeafAccount(ctx, code, p.payment.Currency, p.agencyID)
		if err != nil {
			return err
		}
	}
	return nil
}

// prepare resolves accounts, rate and funds without writing any movement.
func (s *Service) prepare(ctx context.Context, payment *ledger.Payment, cmd Command) (*plan, error) {
	p, err := s.base(ctx, payment)
	if err != nil {
		return nil, err
	}

	if payment.Currency.RequiresConversion() {
		res, err := s.rates.Resolve(ctx, cmd.DatePaid)
		if err != nil {
			return nil, err
		}
		p.rate = res.RatePtr()
	}

	if err := s.validator.Check(ctx, p.settlement, p.kind, payment.Currency, payment.Amount); err != nil {
		return nil, err
	}
	if err := s.leaves(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// settlementAccount loads the account the payment names, or derives the
// default one from the chart taxonomy.
func (s *Service) settlementAccount(ctx context.Context, payment *ledger.Payment, agencyID *uuid.UUID) (*ledger.FinancialAccount, error) {
	var account *ledger.FinancialAccount
	if payment.AccountID != nil {
		accounts, err := s.uow.FinancialAccountRepository()
		if err != nil {
			return nil, err
		}
		if account, err = accounts.Get(ctx, *payment.AccountID); err != nil {
			return nil, err
		}
	} else {
		code := ledger.DefaultSettlementLeafCode(payment)
		if code == "" {
			return nil, ledger.NewValidationError("account_id",
				fmt.Sprintf("no default settlement account for %s %s payment", payment.PayerType, payment.Direction))
		}
		var err error
		if account, err = s.poster.LeafAccount(ctx, code, payment.Currency, agencyID); err != nil {
			return nil, err
		}
	}
	if !account.Active {
		return nil, ledger.NewValidationError("account_id", "settlement account "+account.ID.String()+" is inactive")
	}
	if account.Currency != payment.Currency {
		return nil, ledger.NewValidationError("account_id",
			fmt.Sprintf("settlement account is %s, payment is %s", account.Currency, payment.Currency))
	}
	return account, nil
}

// posted holds the movements an earlier attempt already wrote.
type posted struct {
	counterpart *ledger.LedgerMovement
	result      *ledger.LedgerMovement
	settlement  *ledger.LedgerMovement
}

// post writes the movements of a payment this call holds the lease on,
// skipping those in prior.
func (s *Service) post(ctx context.Context, logger *slog.Logger, p *plan, cmd Command, outcome Outcome, prior posted) (*Result, error) {
	payment := p.payment
	postedAt := s.now().UTC()
	res := &Result{PaymentID: payment.ID, Outcome: outcome}

	switch {
	case prior.counterpart != nil:
		res.CounterpartMovementID = &prior.counterpart.ID
	case p.counterpart != nil:
		m, err := s.poster.Post(ctx, s.entry(p, p.counterpart, s.reducingKind(ctx, p), cmd, postedAt, "settlement of receivable/payable"))
		if err != nil {
			logger.Error("Settle failed: counterpart movement", "error", err)
			return nil, fmt.Errorf("payment %s marked paid, counterpart movement failed: %w", payment.ID, err)
		}
		res.CounterpartMovementID = &m.ID
	}

	result := prior.result
	if result == nil {
		var err error
		result, err = s.poster.Post(ctx, s.entry(p, p.result, p.kind, cmd, postedAt, "result recognition"))
		if err != nil {
			logger.Error("Settle failed: result movement", "error", err)
			return nil, fmt.Errorf("payment %s marked paid, result movement failed: %w", payment.ID, err)
		}
	}
	res.MovementID = result.ID

	payments, err := s.uow.PaymentRepository()
	if err != nil {
		return nil, err
	}
	attached, err := payments.AttachMovement(ctx, payment.ID, result.ID)
	if err != nil {
		logger.Error("Settle failed: attach result movement", "error", err, "movement_id", result.ID)
		return nil, err
	}
	if !attached {
		logger.Warn("Result movement already attached to payment", "movement_id", result.ID)
	}
	payment.LedgerMovementID = &result.ID

	switch {
	case prior.settlement != nil:
		res.SettlementMovementID = prior.settlement.ID
	case p.settlement.ID == p.result.ID:
		res.SettlementMovementID = result.ID
	default:
		m, err := s.poster.Post(ctx, s.entry(p, p.settlement, p.kind, cmd, postedAt, ""))
		if err != nil {
			logger.Error("CRITICAL: settlement-account movement failed after result movement was posted",
				"account_id", p.settlement.ID, "movement_id", result.ID, "error", err)
			return nil, &ledger.PartialPostingError{
				PaymentID:        payment.ID,
				AccountID:        p.settlement.ID,
				ResultMovementID: result.ID,
				Err:              err,
			}
		}
		res.SettlementMovementID = m.ID
	}

	if err := s.markOperatorPayment(ctx, payment, result.ID); err != nil {
		logger.Error("Operator payment mirror not updated", "error", err)
		res.Warnings = append(res.Warnings, "operator payment: "+err.Error())
	}

	fxMovement, err := s.fx.Apply(ctx, fx.Input{
		Payment:   payment,
		Operation: p.operation,
		SettledAt: cmd.DatePaid,
		PostedAt:  postedAt,
		CreatedBy: cmd.ActingUser,
	})
	if err != nil {
		logger.Error("FX difference not posted", "error", err)
		res.Warnings = append(res.Warnings, "fx: "+err.Error())
	} else if fxMovement != nil {
		res.FXMovementID = &fxMovement.ID
	}

	res.FollowUps = s.followUps(payment, p.operation, p.settlement.ID, result.ID, cmd, true)
	logger.Info("Settle successful",
		"movement_id", res.MovementID,
		"settlement_movement_id", res.SettlementMovementID,
		"fx_movement_id", res.FXMovementID,
	)
	return res, nil
}

// settled handles a payment that is already PAID. A complete settlement is
// replayed without writes. Otherwise the caller must claim the lease and then
// either posts the missing settlement-account movement (correction) or
// finishes an attempt interrupted before its result movement was attached
// (recovery).
func (s *Service) settled(ctx context.Context, logger *slog.Logger, payment *ledger.Payment, cmd Command) (*Result, error) {
	if payment.DatePaid != nil {
		cmd.DatePaid = *payment.DatePaid
	}
	cmd.Reference = payment.Reference

	p, err := s.base(ctx, payment)
	if err != nil {
		return nil, err
	}
	movements, err := s.uow.MovementRepository()
	if err != nil {
		return nil, err
	}
	onAccount, err := movements.Find(ctx, repository.MovementFilter{AccountIDs: []uuid.UUID{p.settlement.ID}})
	if err != nil {
		return nil, err
	}
	existing := MatchSettlementMovement(onAccount, payment)

	if payment.LedgerMovementID != nil && existing != nil {
		resultID := *payment.LedgerMovementID
		if err := s.markOperatorPayment(ctx, payment, resultID); err != nil {
			logger.Error("Operator payment mirror not updated", "error", err)
		}
		logger.Info("Settle replayed, nothing to post", "movement_id", resultID, "settlement_movement_id", existing.ID)
		return &Result{
			PaymentID:            payment.ID,
			Outcome:              OutcomeReplayed,
			MovementID:           resultID,
			SettlementMovementID: existing.ID,
		}, nil
	}

	payments, err := s.uow.PaymentRepository()
	if err != nil {
		return nil, err
	}
	claimed, err := payments.ClaimStale(ctx, payment.ID, s.stale)
	if err != nil {
		logger.Error("Settle failed: claim unfinished settlement", "error", err)
		return nil, err
	}
	if !claimed {
		logger.Warn("Payment is PAID but another attempt still holds its settlement")
		return nil, fmt.Errorf("payment %s: %w", payment.ID, ledger.ErrSettlementInProgress)
	}

	var res *Result
	if payment.LedgerMovementID != nil {
		res, err = s.correct(ctx, logger, p, cmd, *payment.LedgerMovementID)
	} else {
		res, err = s.resume(ctx, logger, p, cmd, existing)
	}
	if err != nil {
		s.release(ctx, logger, payment.ID)
		return nil, err
	}
	return res, nil
}

// correct posts only the missing settlement-account movement.
func (s *Service) correct(ctx context.Context, logger *slog.Logger, p *plan, cmd Command, resultID uuid.UUID) (*Result, error) {
	payment, account := p.payment, p.settlement
	logger.Warn("Settlement-account movement missing, running correction", "account_id", account.ID)

	movements, err := s.uow.MovementRepository()
	if err != nil {
		return nil, err
	}
	resultMovement, err := movements.Get(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if payment.Currency.RequiresConversion() {
		p.rate = resultMovement.ExchangeRate
		if p.rate == nil {
			r, err := s.rates.Resolve(ctx, cmd.DatePaid)
			if err != nil {
				return nil, err
			}
			p.rate = r.RatePtr()
		}
	}

	corrective, err := s.poster.Post(ctx, s.entry(p, account, p.kind, cmd, s.now().UTC(), "correction: missing settlement-account movement"))
	if err != nil {
		logger.Error("CRITICAL: correction of settlement-account movement failed", "error", err)
		return nil, &ledger.PartialPostingError{
			PaymentID:        payment.ID,
			AccountID:        account.ID,
			ResultMovementID: resultID,
			Err:              err,
		}
	}

	res := &Result{
		PaymentID:            payment.ID,
		Outcome:              OutcomeCorrected,
		MovementID:           resultID,
		SettlementMovementID: corrective.ID,
	}
	if err := s.markOperatorPayment(ctx, payment, resultID); err != nil {
		logger.Error("Operator payment mirror not updated", "error", err)
		res.Warnings = append(res.Warnings, "operator payment: "+err.Error())
	}
	res.FollowUps = s.followUps(payment, p.operation, account.ID, resultID, cmd, false)
	logger.Info("Settle corrected", "movement_id", resultID, "settlement_movement_id", corrective.ID)
	return res, nil
}

// resume finishes an attempt that stopped before attaching its result
// movement, reusing whatever it had already posted.
func (s *Service) resume(ctx context.Context, logger *slog.Logger, p *plan, cmd Command, settled *ledger.LedgerMovement) (*Result, error) {
	if err := s.leaves(ctx, p); err != nil {
		return nil, err
	}
	prior := posted{settlement: settled}
	var err error
	if prior.result, err = s.tagged(ctx, p.result.ID, p.payment.ID); err != nil {
		return nil, err
	}
	if p.counterpart != nil {
		if prior.counterpart, err = s.tagged(ctx, p.counterpart.ID, p.payment.ID); err != nil {
			return nil, err
		}
	}
	logger.Warn("Recovering interrupted settlement",
		"result_posted", prior.result != nil,
		"counterpart_posted", prior.counterpart != nil,
	)

	if p.payment.Currency.RequiresConversion() {
		switch {
		case prior.result != nil && prior.result.ExchangeRate != nil:
			p.rate = prior.result.ExchangeRate
		case prior.counterpart != nil && prior.counterpart.ExchangeRate != nil:
			p.rate = prior.counterpart.ExchangeRate
		default:
			r, err := s.rates.Resolve(ctx, cmd.DatePaid)
			if err != nil {
				return nil, err
			}
			p.rate = r.RatePtr()
		}
	}
	return s.post(ctx, logger, p, cmd, OutcomeRecovered, prior)
}

// tagged returns the movement on account posted for paymentID, if any.
func (s *Service) tagged(ctx context.Context, accountID, paymentID uuid.UUID) (*ledger.LedgerMovement, error) {
	movements, err := s.uow.MovementRepository()
	if err != nil {
		return nil, err
	}
	found, err := movements.Find(ctx, repository.MovementFilter{
		AccountIDs: []uuid.UUID{accountID},
		PaymentIDs: []uuid.UUID{paymentID},
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// release gives up the lease after a failed attempt. Failing to release only
// means the next attempt waits for the lease to go stale.
func (s *Service) release(ctx context.Context, logger *slog.Logger, paymentID uuid.UUID) {
	payments, err := s.uow.PaymentRepository()
	if err == nil {
		err = payments.Release(ctx, paymentID)
	}
	if err != nil {
		logger.Warn("Settlement lease not released", "error", err)
	}
}

func (s *Service) entry(p *plan, account *ledger.FinancialAccount, kind ledger.MovementKind, cmd Command, at time.Time, notes string) posting.Entry {
	payID := p.payment.ID
	e := posting.Entry{
		Account:     account,
		Kind:        kind,
		Currency:    p.payment.Currency,
		Amount:      p.payment.Amount,
		Rate:        p.rate,
		OperationID: p.payment.OperationID,
		PaymentID:   &payID,
		Method:      p.payment.Method,
		OperatorID:  p.payment.OperatorID,
		Notes:       notes,
		CreatedBy:   cmd.ActingUser,
		CreatedAt:   at,
	}
	if p.operation != nil {
		e.SellerID = p.operation.SellerID
		if e.OperatorID == nil {
			e.OperatorID = p.operation.OperatorID
		}
	}
	return e
}

// reducingKind is the kind that lowers the counterpart balance under its
// chart category's sign rule.
func (s *Service) reducingKind(ctx context.Context, p *plan) ledger.MovementKind {
	category := ledger.CategoryAsset
	if p.payment.IsOperatorPayment() {
		category = ledger.CategoryLiability
	}
	if charts, err := s.uow.ChartAccountRepository(); err == nil {
		if chart, err := charts.Get(ctx, p.counterpart.ChartAccountID); err == nil {
			category = chart.Category
		}
	}
	return ReducingKind(category)
}

// ReducingKind is the movement kind that decreases a balance of category c.
func ReducingKind(c ledger.Category) ledger.MovementKind {
	if ledger.SignedDelta(c, ledger.KindIncome, decimal.NewFromInt(1)).IsNegative() {
		return ledger.KindIncome
	}
	return ledger.KindExpense
}

func (s *Service) markOperatorPayment(ctx context.Context, payment *ledger.Payment, movementID uuid.UUID) error {
	if !payment.IsOperatorPayment() {
		return nil
	}
	repo, err := s.uow.OperatorPaymentRepository()
	if err != nil {
		return err
	}
	op, err := repo.GetByPayment(ctx, payment.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	paidAt := s.now().UTC()
	if payment.DatePaid != nil {
		paidAt = *payment.DatePaid
	}
	return repo.MarkPaid(ctx, op.ID, paidAt, movementID)
}

func (s *Service) followUps(
	payment *ledger.Payment,
	operation *ledger.Operation,
	accountID, movementID uuid.UUID,
	cmd Command,
	notify bool,
) []FollowUp {
	datePaid := cmd.DatePaid.UTC()
	if payment.DatePaid != nil {
		datePaid = *payment.DatePaid
	}
	var tasks []FollowUp
	if notify && payment.Direction == ledger.DirectionIncome {
		tasks = append(tasks, &NotifyTask{
			Bus: s.bus,
			Event: &events.PaymentSettled{
				PaymentID:   payment.ID,
				OperationID: payment.OperationID,
				MovementID:  movementID,
				AccountID:   accountID,
				PayerType:   payment.PayerType,
				Direction:   payment.Direction,
				Amount:      payment.Amount,
				Currency:    payment.Currency,
				DatePaid:    datePaid,
				Reference:   payment.Reference,
				SettledBy:   cmd.ActingUser,
			},
		})
	}
	var opID *uuid.UUID
	if operation != nil {
		id := operation.ID
		opID = &id
	}
	tasks = append(tasks, &LegacyRecordTask{
		UoW: s.uow,
		Record: &ledger.LegacyCashMovement{
			PaymentID:    payment.ID,
			OperationID:  opID,
			AccountID:    accountID,
			Type:         payment.Direction,
			Amount:       payment.Amount,
			Currency:     payment.Currency,
			MovementDate: datePaid,
			CreatedBy:    cmd.ActingUser,
		},
	})
	return tasks
}

// MatchSettlementMovement finds the movement that settled payment among
// movements on its settlement account. Movements tagged with the payment id
// win; untagged legacy rows match on amount, currency and operation.
func MatchSettlementMovement(movements []*ledger.LedgerMovement, payment *ledger.Payment) *ledger.LedgerMovement {
	var legacy *ledger.LedgerMovement
	for _, m := range movements {
		if m.PaymentID != nil {
			if *m.PaymentID == payment.ID {
				return m
			}
			continue
		}
		if legacy == nil &&
			m.Currency == payment.Currency &&
			m.Amount.Equal(payment.Amount) &&
			sameOperation(m.OperationID, payment.OperationID) {
			legacy = m
		}
	}
	return legacy
}

func sameOperation(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
