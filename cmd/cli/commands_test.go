package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	infraeventbus "github.com/travelagency/backoffice/infra/eventbus"
	"github.com/travelagency/backoffice/pkg/app"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/service/exchange"
	"github.com/travelagency/backoffice/pkg/testutils"
)

type cliHarness struct {
	app      *app.App
	fixtures *testutils.Fixtures
}

func newCLIHarness(t *testing.T) *cliHarness {
	uow, _ := testutils.NewTestUoW(t)
	a := app.New(&app.Deps{
		Uow:      uow,
		EventBus: infraeventbus.NewWithMemory(testutils.DiscardLogger()),
		Logger:   testutils.DiscardLogger(),
	}, &config.App{Auth: &config.Auth{Jwt: &config.Jwt{Secret: "cli-secret", Claim: "user_id"}}})
	return &cliHarness{app: a, fixtures: testutils.NewFixtures(t, uow)}
}

func (h *cliHarness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(func() (*app.App, error) { return h.app, nil })
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_SettleAndBalance(t *testing.T) {
	h := newCLIHarness(t)
	bank := h.fixtures.Account("Bank USD", ledger.AccountTypeBank, ledger.CodeBanks, ledger.USD, "10", nil)
	p := h.fixtures.Payment(&ledger.Payment{
		PayerType: ledger.PayerCustomer,
		Direction: ledger.DirectionIncome,
		Amount:    testutils.D("32.5"),
		Currency:  ledger.USD,
		AccountID: &bank.ID,
	})

	out, err := h.run(t, "settle", p.ID.String(), "--date", "2024-03-15", "--reference", "R-1")
	require.NoError(t, err)
	assert.Contains(t, out, "SETTLED")
	assert.Contains(t, out, "follow-up notify: ok")

	out, err = h.run(t, "settle", p.ID.String(), "--date", "2024-03-15")
	require.NoError(t, err)
	assert.Contains(t, out, "REPLAYED")

	out, err = h.run(t, "balance", bank.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "42.50 USD")
}

func TestCLI_Rates(t *testing.T) {
	h := newCLIHarness(t)
	out, err := h.run(t, "rates", "add", "2024-03-01", "1250", "--source", "bna")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded 1250 ARS/USD effective 2024-03-01")

	out, err = h.run(t, "rates", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-01  1250  bna")

	_, err = h.run(t, "rates", "add", "2024-03-01", "zero")
	require.Error(t, err)
	_, err = h.run(t, "rates", "add", "2024-03-01", "0")
	require.ErrorIs(t, err, ledger.ErrValidation)
}

type staticProvider struct{ quote exchange.Quote }

func (staticProvider) Name() string { return "static" }

func (p staticProvider) FetchQuote(context.Context) (exchange.Quote, error) { return p.quote, nil }

func TestCLI_RatesImport(t *testing.T) {
	h := newCLIHarness(t)
	_, err := h.run(t, "rates", "import")
	require.ErrorIs(t, err, app.ErrNoRateProvider)

	h.app.Deps.RateProvider = staticProvider{quote: exchange.Quote{
		Rate:          testutils.D("1310.25"),
		EffectiveDate: testutils.Date(2024, time.June, 3),
	}}
	out, err := h.run(t, "rates", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1310.25 ARS/USD effective 2024-06-03 from static")
}

func TestCLI_Position(t *testing.T) {
	h := newCLIHarness(t)
	h.fixtures.Rate(testutils.Date(2024, time.March, 1), "1000")
	out, err := h.run(t, "position", "--year", "2024", "--month", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Position 2024-03")
	assert.Contains(t, out, "[ARS]")
	assert.Contains(t, out, "Blended USD at 1000")

	_, err = h.run(t, "position", "--year", "2024", "--month", "0")
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCLI_Token(t *testing.T) {
	h := newCLIHarness(t)
	user := uuid.New()
	out, err := h.run(t, "token", user.String())
	require.NoError(t, err)

	parsed, err := jwt.Parse(string(bytes.TrimSpace([]byte(out))), func(*jwt.Token) (any, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.String(), claims["user_id"])
}

func TestCLI_LoaderErrorSurfaces(t *testing.T) {
	boom := errors.New("no database")
	root := newRootCommand(func() (*app.App, error) { return nil, boom })
	root.SetArgs([]string{"migrate"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.ErrorIs(t, root.Execute(), boom)
}

func TestCLI_BadArguments(t *testing.T) {
	h := newCLIHarness(t)
	_, err := h.run(t, "settle", "nope")
	require.Error(t, err)
	_, err = h.run(t, "balance")
	require.Error(t, err)
}
