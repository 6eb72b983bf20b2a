package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/travelagency/backoffice/pkg/domain/events"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/eventbus"
	"github.com/travelagency/backoffice/pkg/repository"
)

// FollowUp is a best-effort task returned by Settle. Its failure never
// undoes or fails the settlement.
type FollowUp interface {
	Name() string
	Run(ctx context.Context) error
}

// FollowUpOutcome reports how one task went.
type FollowUpOutcome struct {
	Name string
	Err  error
}

// RunFollowUps runs every task independently. Failures and panics are
// logged and reported, never propagated.
func RunFollowUps(ctx context.Context, logger *slog.Logger, tasks []FollowUp) []FollowUpOutcome {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]FollowUpOutcome, 0, len(tasks))
	for _, task := range tasks {
		err := runOne(ctx, task)
		if err != nil {
			logger.Warn("Settlement follow-up failed", "task", task.Name(), "error", err)
		} else {
			logger.Debug("Settlement follow-up done", "task", task.Name())
		}
		out = append(out, FollowUpOutcome{Name: task.Name(), Err: err})
	}
	return out
}

func runOne(ctx context.Context, task FollowUp) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Run(ctx)
}

// NotifyTask publishes a PaymentSettled event.
type NotifyTask struct {
	Bus   eventbus.Bus
	Event *events.PaymentSettled
}

func (t *NotifyTask) Name() string { return "notify" }

func (t *NotifyTask) Run(ctx context.Context) error {
	if t.Bus == nil {
		return errors.New("no event bus configured")
	}
	return t.Bus.Emit(ctx, t.Event)
}

// LegacyRecordTask writes the cash_movements row older reports read. It is
// skipped when the payment already has one.
type LegacyRecordTask struct {
	UoW    repository.UnitOfWork
	Record *ledger.LegacyCashMovement
}

func (t *LegacyRecordTask) Name() string { return "legacy_cash_movement" }

func (t *LegacyRecordTask) Run(ctx context.Context) error {
	repo, err := t.UoW.LegacyCashMovementRepository()
	if err != nil {
		return err
	}
	existing, err := repo.ListByPayment(ctx, t.Record.PaymentID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return repo.Create(ctx, t.Record)
}
