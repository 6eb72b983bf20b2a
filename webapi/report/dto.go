package report

import (
	"github.com/google/uuid"
	reportsvc "github.com/travelagency/backoffice/pkg/service/report"
)

// Amounts renders per-currency figures with two decimals.
type Amounts map[string]string

// SectionResponse is one side of the balance sheet.
type SectionResponse struct {
	Current       Amounts `json:"current"`
	CurrentPosted Amounts `json:"current_posted"`
	NonCurrent    Amounts `json:"non_current"`
}

// BalanceSheetResponse holds balances at the cutoff. Current liabilities
// include projected liabilities; current_posted is the ledger part.
type BalanceSheetResponse struct {
	Assets      SectionResponse `json:"assets"`
	Liabilities SectionResponse `json:"liabilities"`
	Equity      Amounts         `json:"equity"`
}

// ProjectionResponse is one projected liability.
type ProjectionResponse struct {
	Source      string    `json:"source"`
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Currency    string    `json:"currency"`
	Amount      string    `json:"amount"`
	DueDate     string    `json:"due_date"`
}

// ProjectedResponse lists projected liabilities and their totals.
type ProjectedResponse struct {
	Items  []ProjectionResponse `json:"items"`
	Totals Amounts              `json:"totals"`
}

// BlendedResponse is the period result in USD at the month-end rate.
type BlendedResponse struct {
	Rate      string `json:"rate"`
	Revenue   string `json:"revenue"`
	Cost      string `json:"cost"`
	Expense   string `json:"expense"`
	FXGain    string `json:"fx_gain"`
	FXLoss    string `json:"fx_loss"`
	Operating string `json:"operating"`
	Net       string `json:"net"`
}

// ProfitAndLossResponse is the period result per currency.
type ProfitAndLossResponse struct {
	Revenue       Amounts          `json:"revenue"`
	Cost          Amounts          `json:"cost"`
	Expense       Amounts          `json:"expense"`
	FXGain        Amounts          `json:"fx_gain"`
	FXLoss        Amounts          `json:"fx_loss"`
	Operating     Amounts          `json:"operating"`
	Net           Amounts          `json:"net"`
	BlendedUSD    *BlendedResponse `json:"blended_usd,omitempty"`
	MovementCount int              `json:"movement_count"`
}

// ChartAccountResponse is one chart leaf of the report's chart listing.
type ChartAccountResponse struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
}

// PositionResponse is the monthly position report.
type PositionResponse struct {
	Year          int                    `json:"year"`
	Month         int                    `json:"month"`
	AgencyID      *uuid.UUID             `json:"agency_id,omitempty"`
	PeriodStart   string                 `json:"period_start"`
	Cutoff        string                 `json:"cutoff"`
	BalanceSheet  BalanceSheetResponse   `json:"balance_sheet"`
	Projected     ProjectedResponse      `json:"projected_liabilities"`
	ProfitAndLoss ProfitAndLossResponse  `json:"profit_and_loss"`
	Chart         []ChartAccountResponse `json:"chart"`
}

func amounts(a reportsvc.Amounts) Amounts {
	out := make(Amounts, len(a))
	for c, v := range a {
		out[string(c)] = v.StringFixed(2)
	}
	return out
}

func section(s reportsvc.Section) SectionResponse {
	return SectionResponse{
		Current:       amounts(s.Current),
		CurrentPosted: amounts(s.CurrentPosted),
		NonCurrent:    amounts(s.NonCurrent),
	}
}

// ToResponse rounds the position and converts it for the wire.
func ToResponse(p *reportsvc.Position) *PositionResponse {
	if p == nil {
		return nil
	}
	p = p.Rounded()
	out := &PositionResponse{
		Year:        p.Year,
		Month:       int(p.Month),
		AgencyID:    p.AgencyID,
		PeriodStart: p.PeriodStart.Format("2006-01-02"),
		Cutoff:      p.Cutoff.Format("2006-01-02T15:04:05.999999999Z07:00"),
		BalanceSheet: BalanceSheetResponse{
			Assets:      section(p.Sheet.Assets),
			Liabilities: section(p.Sheet.Liabilities),
			Equity:      amounts(p.Sheet.Equity),
		},
		Projected: ProjectedResponse{
			Items:  make([]ProjectionResponse, 0, len(p.Projected.Items)),
			Totals: amounts(p.Projected.Totals),
		},
		ProfitAndLoss: ProfitAndLossResponse{
			Revenue:       amounts(p.PnL.Revenue),
			Cost:          amounts(p.PnL.Cost),
			Expense:       amounts(p.PnL.Expense),
			FXGain:        amounts(p.PnL.FXGain),
			FXLoss:        amounts(p.PnL.FXLoss),
			Operating:     amounts(p.PnL.Operating),
			Net:           amounts(p.PnL.Net),
			MovementCount: p.PnL.MovementCount,
		},
		Chart: make([]ChartAccountResponse, 0, len(p.Chart)),
	}
	for _, item := range p.Projected.Items {
		out.Projected.Items = append(out.Projected.Items, ProjectionResponse{
			Source:      string(item.Source),
			ID:          item.ID,
			Description: item.Description,
			Currency:    string(item.Currency),
			Amount:      item.Amount.StringFixed(2),
			DueDate:     item.DueDate.Format("2006-01-02"),
		})
	}
	if b := p.PnL.Blended; b != nil {
		out.ProfitAndLoss.BlendedUSD = &BlendedResponse{
			Rate:      b.Rate.String(),
			Revenue:   b.Revenue.StringFixed(2),
			Cost:      b.Cost.StringFixed(2),
			Expense:   b.Expense.StringFixed(2),
			FXGain:    b.FXGain.StringFixed(2),
			FXLoss:    b.FXLoss.StringFixed(2),
			Operating: b.Operating.StringFixed(2),
			Net:       b.Net.StringFixed(2),
		}
	}
	for _, c := range p.Chart {
		out.Chart = append(out.Chart, ChartAccountResponse{
			Code:        c.Code,
			Name:        c.Name,
			Category:    c.Category.String(),
			Subcategory: string(c.Subcategory),
		})
	}
	return out
}
