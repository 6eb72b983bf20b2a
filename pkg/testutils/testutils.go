// Package testutils builds throwaway stores and fixtures for tests.
package testutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	infrarepo "github.com/travelagency/backoffice/infra/repository"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestDB opens a private in-memory sqlite database, migrates it and seeds
// the default chart of accounts.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:backoffice_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infrarepo.Migrate(context.Background(), db, DiscardLogger()))
	return db
}

// NewTestUoW returns a unit of work over a fresh test database.
func NewTestUoW(t testing.TB) (repository.UnitOfWork, *gorm.DB) {
	t.Helper()
	db := NewTestDB(t)
	return infrarepo.NewUoW(db), db
}

// D parses a decimal literal, panicking on bad input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DP is D returning a pointer.
func DP(s string) *decimal.Decimal {
	d := D(s)
	return &d
}

// Date builds a UTC date.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Fixtures creates rows needed by service tests.
type Fixtures struct {
	T   testing.TB
	UoW repository.UnitOfWork
}

// NewFixtures binds fixture helpers to uow.
func NewFixtures(t testing.TB, uow repository.UnitOfWork) *Fixtures {
	return &Fixtures{T: t, UoW: uow}
}

// Leaf returns the seeded chart leaf for code.
func (f *Fixtures) Leaf(code string) *ledger.ChartAccount {
	f.T.Helper()
	repo, err := f.UoW.ChartAccountRepository()
	require.NoError(f.T, err)
	c, err := repo.GetByCode(context.Background(), code)
	require.NoError(f.T, err)
	return c
}

// Account creates a financial account on the chart leaf code.
func (f *Fixtures) Account(name string, typ ledger.AccountType, code string, cur ledger.Currency, opening string, agencyID *uuid.UUID) *ledger.FinancialAccount {
	f.T.Helper()
	repo, err := f.UoW.FinancialAccountRepository()
	require.NoError(f.T, err)
	a := &ledger.FinancialAccount{
		Name:           name,
		Type:           typ,
		Currency:       cur,
		ChartAccountID: f.Leaf(code).ID,
		AgencyID:       agencyID,
		OpeningBalance: D(opening),
		Active:         true,
		CreatedAt:      Date(2020, time.January, 1),
	}
	require.NoError(f.T, repo.Create(context.Background(), a))
	return a
}

// Operation creates a travel file.
func (f *Fixtures) Operation(op *ledger.Operation) *ledger.Operation {
	f.T.Helper()
	repo, err := f.UoW.OperationRepository()
	require.NoError(f.T, err)
	if op.AgencyID == uuid.Nil {
		op.AgencyID = uuid.New()
	}
	if op.BookedAt.IsZero() {
		op.BookedAt = Date(2024, time.January, 10)
	}
	require.NoError(f.T, repo.Create(context.Background(), op))
	return op
}

// Payment creates a pending payment.
func (f *Fixtures) Payment(p *ledger.Payment) *ledger.Payment {
	f.T.Helper()
	repo, err := f.UoW.PaymentRepository()
	require.NoError(f.T, err)
	if p.Status == "" {
		p.Status = ledger.StatusPending
	}
	if p.DateDue.IsZero() {
		p.DateDue = Date(2024, time.March, 1)
	}
	require.NoError(f.T, repo.Create(context.Background(), p))
	return p
}

// Rate records a rate effective on date.
func (f *Fixtures) Rate(date time.Time, rate string) *ledger.ExchangeRate {
	f.T.Helper()
	repo, err := f.UoW.ExchangeRateRepository()
	require.NoError(f.T, err)
	r := &ledger.ExchangeRate{EffectiveDate: date, Rate: D(rate), Source: "test"}
	require.NoError(f.T, repo.Create(context.Background(), r))
	return r
}

// Movement writes a movement directly, bypassing the poster.
func (f *Fixtures) Movement(m *ledger.LedgerMovement) *ledger.LedgerMovement {
	f.T.Helper()
	repo, err := f.UoW.MovementRepository()
	require.NoError(f.T, err)
	if m.BaseEquivalent.IsZero() {
		if base, err := ledger.BaseEquivalent(m.Currency, m.Amount, m.ExchangeRate); err == nil {
			m.BaseEquivalent = base
		}
	}
	require.NoError(f.T, repo.Create(context.Background(), m))
	return m
}

// Movements lists the movements on accountID.
func (f *Fixtures) Movements(accountID uuid.UUID) []*ledger.LedgerMovement {
	f.T.Helper()
	repo, err := f.UoW.MovementRepository()
	require.NoError(f.T, err)
	out, err := repo.Find(context.Background(), repository.MovementFilter{AccountIDs: []uuid.UUID{accountID}})
	require.NoError(f.T, err)
	return out
}

// AllMovements lists every movement in the store.
func (f *Fixtures) AllMovements() []*ledger.LedgerMovement {
	f.T.Helper()
	repo, err := f.UoW.MovementRepository()
	require.NoError(f.T, err)
	out, err := repo.Find(context.Background(), repository.MovementFilter{})
	require.NoError(f.T, err)
	return out
}

// MakeRequest runs an in-process request against app.
func MakeRequest(app *fiber.App, method, path, body, token string) *http.Response {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		panic(err)
	}
	return resp
}
