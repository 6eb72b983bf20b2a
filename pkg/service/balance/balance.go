// Package balance folds an account's movement history into its balance and
// guards settlement accounts against overdraft.
package balance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
)

// Balance is an account balance as of Cutoff, in the account's currency.
type Balance struct {
	AccountID   uuid.UUID
	Currency    ledger.Currency
	Category    ledger.Category
	Subcategory ledger.Subcategory
	Amount      decimal.Decimal
	Cutoff      time.Time
}

// Fold returns opening plus the signed delta of every movement created at or
// before cutoff. Movements are never modified; the result is a pure function
// of the history.
func Fold(opening decimal.Decimal, category ledger.Category, movements []*ledger.LedgerMovement, cutoff time.Time) decimal.Decimal {
	total := opening
	for _, m := range movements {
		if m.CreatedAt.After(cutoff) {
			continue
		}
		total = total.Add(ledger.SignedDelta(category, m.Kind, m.Amount))
	}
	return total
}

// Calculator computes balances from the store.
type Calculator struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
	now    func() time.Time
}

// NewCalculator creates a Calculator.
func NewCalculator(uow repository.UnitOfWork, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{uow: uow, logger: logger, now: time.Now}
}

// Balance computes the balance of accountID as of cutoff, or now when cutoff
// is nil.
func (c *Calculator) Balance(ctx context.Context, accountID uuid.UUID, cutoff *time.Time) (*Balance, error) {
	accounts, err := c.uow.FinancialAccountRepository()
	if err != nil {
		return nil, err
	}
	account, err := accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	at := c.now().UTC()
	if cutoff != nil {
		at = cutoff.UTC()
	}
	return c.BalanceOf(ctx, account, at)
}

// BalanceOf computes the balance of an already loaded account.
func (c *Calculator) BalanceOf(ctx context.Context, account *ledger.FinancialAccount, cutoff time.Time) (*Balance, error) {
	charts, err := c.uow.ChartAccountRepository()
	if err != nil {
		return nil, err
	}
	chart, err := charts.Get(ctx, account.ChartAccountID)
	if err != nil {
		return nil, err
	}
	return c.balanceWithChart(ctx, account, chart, cutoff)
}

// BalancesOf computes balances for many accounts with one chart scan and one
// movement scan.
func (c *Calculator) BalancesOf(ctx context.Context, accounts []*ledger.FinancialAccount, cutoff time.Time) (map[uuid.UUID]*Balance, error) {
	out := make(map[uuid.UUID]*Balance, len(accounts))
	if len(accounts) == 0 {
		return out, nil
	}
	charts, err := c.uow.ChartAccountRepository()
	if err != nil {
		return nil, err
	}
	chartList, err := charts.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*ledger.ChartAccount, len(chartList))
	for _, ch := range chartList {
		byID[ch.ID] = ch
	}

	ids := make([]uuid.UUID, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	movements, err := c.uow.MovementRepository()
	if err != nil {
		return nil, err
	}
	until := cutoff.UTC()
	list, err := movements.Find(ctx, repository.MovementFilter{AccountIDs: ids, CreatedUntil: &until})
	if err != nil {
		return nil, err
	}
	perAccount := make(map[uuid.UUID][]*ledger.LedgerMovement, len(accounts))
	for _, m := range list {
		perAccount[m.AccountID] = append(perAccount[m.AccountID], m)
	}

	for _, a := range accounts {
		chart, ok := byID[a.ChartAccountID]
		if !ok {
			return nil, ledger.NewNotFoundError("chart account", a.ChartAccountID)
		}
		out[a.ID] = &Balance{
			AccountID:   a.ID,
			Currency:    a.Currency,
			Category:    chart.Category,
			Subcategory: chart.Subcategory,
			Amount:      Fold(a.OpeningBalance, chart.Category, perAccount[a.ID], until),
			Cutoff:      until,
		}
	}
	return out, nil
}

func (c *Calculator) balanceWithChart(
	ctx context.Context,
	account *ledger.FinancialAccount,
	chart *ledger.ChartAccount,
	cutoff time.Time,
) (*Balance, error) {
	movements, err := c.uow.MovementRepository()
	if err != nil {
		return nil, err
	}
	until := cutoff.UTC()
	list, err := movements.Find(ctx, repository.MovementFilter{
		AccountIDs:   []uuid.UUID{account.ID},
		CreatedUntil: &until,
	})
	if err != nil {
		c.logger.Error("Balance failed: movement scan error", "account_id", account.ID, "error", err)
		return nil, err
	}
	return &Balance{
		AccountID:   account.ID,
		Currency:    account.Currency,
		Category:    chart.Category,
		Subcategory: chart.Subcategory,
		Amount:      Fold(account.OpeningBalance, chart.Category, list, until),
		Cutoff:      until,
	}, nil
}
