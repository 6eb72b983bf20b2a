package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	reportsvc "github.com/travelagency/backoffice/pkg/service/report"
)

func usd(v string) reportsvc.Amounts {
	return reportsvc.Amounts{ledger.ARS: decimal.Zero, ledger.USD: decimal.RequireFromString(v)}
}

func TestToResponse_ChartAndLiabilities(t *testing.T) {
	pos := &reportsvc.Position{
		Year:   2024,
		Month:  time.March,
		Cutoff: time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC),
		Sheet: reportsvc.BalanceSheet{
			Liabilities: reportsvc.Section{
				Current:       usd("1160.004"),
				CurrentPosted: usd("700"),
				NonCurrent:    usd("0"),
			},
		},
		Projected: reportsvc.ProjectedLiabilities{Totals: usd("460.004")},
		Chart: []*ledger.ChartAccount{
			{Code: ledger.CodeBanks, Name: "Banks", Category: ledger.CategoryAsset},
			{Code: ledger.CodeSalesIncome, Name: "Sales", Category: ledger.CategoryIncome},
		},
	}

	out := ToResponse(pos)
	require.Len(t, out.Chart, 2)
	assert.Equal(t, "ASSET", out.Chart[0].Category)
	assert.Equal(t, "INCOME", out.Chart[1].Category)

	liabilities := out.BalanceSheet.Liabilities
	assert.Equal(t, "1160.00", liabilities.Current["USD"])
	assert.Equal(t, "700.00", liabilities.CurrentPosted["USD"])
	assert.Equal(t, "460.00", out.Projected.Totals["USD"])

	raw, err := json.Marshal(out.Chart[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"1.1.02","name":"Banks","category":"ASSET"}`, string(raw))
}
