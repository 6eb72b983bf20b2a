package exchange

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/middleware"
	exchangesvc "github.com/travelagency/backoffice/pkg/service/exchange"
	"github.com/travelagency/backoffice/webapi/common"
)

// RateService records and resolves ARS per USD rates.
type RateService interface {
	Record(ctx context.Context, effectiveDate time.Time, rate decimal.Decimal, source string) (*ledger.ExchangeRate, error)
	List(ctx context.Context) ([]*ledger.ExchangeRate, error)
	Resolve(ctx context.Context, date time.Time) (exchangesvc.Resolution, error)
}

// RecordRequest is the body of POST /exchange-rates.
type RecordRequest struct {
	EffectiveDate string `json:"effective_date" validate:"required,datetime=2006-01-02"`
	Rate          string `json:"rate" validate:"required,numeric"`
	Source        string `json:"source" validate:"max=64"`
}

// RateResponse is one rate of the series.
type RateResponse struct {
	ID            uuid.UUID `json:"id,omitempty"`
	EffectiveDate string    `json:"effective_date"`
	Rate          string    `json:"rate"`
	Source        string    `json:"source,omitempty"`
}

// ResolutionResponse is a resolved rate and how it was found.
type ResolutionResponse struct {
	Date          string `json:"date"`
	Rate          string `json:"rate"`
	EffectiveDate string `json:"effective_date"`
	Resolution    string `json:"resolution"`
}

func toRateResponse(r *ledger.ExchangeRate) RateResponse {
	return RateResponse{
		ID:            r.ID,
		EffectiveDate: r.EffectiveDate.Format(time.DateOnly),
		Rate:          r.Rate.String(),
		Source:        r.Source,
	}
}

// Routes registers the exchange rate endpoints.
//
// Routes:
//   - POST /exchange-rates           : Append a rate to the series.
//   - GET  /exchange-rates           : List the series.
//   - GET  /exchange-rates/effective : Resolve the rate effective on a date.
func Routes(app *fiber.App, svc RateService, cfg *config.Jwt) {
	app.Post("/exchange-rates", middleware.JwtProtected(cfg), RecordRate(svc))
	app.Get("/exchange-rates", middleware.JwtProtected(cfg), ListRates(svc))
	app.Get("/exchange-rates/effective", middleware.JwtProtected(cfg), EffectiveRate(svc))
}

// RecordRate returns a Fiber handler appending a rate.
// @Summary Record an exchange rate
// @Description Appends an ARS per USD rate effective from the given date. Rates are never edited; a later record for the same date wins.
// @Tags exchange-rates
// @Accept json
// @Produce json
// @Param request body RecordRequest true "Rate"
// @Success 201 {object} common.Response "Rate recorded"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Router /exchange-rates [post]
// @Security Bearer
func RecordRate(svc RateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[RecordRequest](c)
		if input == nil {
			return err // error response already written
		}
		date, err := time.Parse(time.DateOnly, input.EffectiveDate)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid effective_date", err, fiber.StatusBadRequest)
		}
		rate, err := decimal.NewFromString(input.Rate)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid rate", err, fiber.StatusBadRequest)
		}
		source := input.Source
		if source == "" {
			source = "api"
		}
		r, err := svc.Record(c.UserContext(), date, rate, source)
		if err != nil {
			log.Errorf("Failed to record exchange rate: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to record exchange rate", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Rate recorded", toRateResponse(r))
	}
}

// ListRates returns a Fiber handler listing the series.
// @Summary List exchange rates
// @Tags exchange-rates
// @Produce json
// @Success 200 {object} common.Response "Rates"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Router /exchange-rates [get]
// @Security Bearer
func ListRates(svc RateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rates, err := svc.List(c.UserContext())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list exchange rates", err)
		}
		out := make([]RateResponse, 0, len(rates))
		for _, r := range rates {
			out = append(out, toRateResponse(r))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Rates", out)
	}
}

// EffectiveRate returns a Fiber handler resolving the rate for a date.
// @Summary Effective exchange rate
// @Description Resolves the rate effective on date, or the latest recorded rate when none was effective yet.
// @Tags exchange-rates
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} common.Response "Resolved rate"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 422 {object} common.ProblemDetails "No exchange rate recorded"
// @Router /exchange-rates/effective [get]
// @Security Bearer
func EffectiveRate(svc RateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		date := time.Now().UTC()
		if raw := c.Query("date"); raw != "" {
			d, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				return common.ProblemDetailsJSON(c, "Invalid date", err, "date must be YYYY-MM-DD", fiber.StatusBadRequest)
			}
			date = d
		}
		res, err := svc.Resolve(c.UserContext(), date)
		if err != nil {
			return common.ProblemDetailsJSON(c, "No exchange rate", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Resolved rate", ResolutionResponse{
			Date:          date.Format(time.DateOnly),
			Rate:          res.Rate.String(),
			EffectiveDate: res.EffectiveDate.Format(time.DateOnly),
			Resolution:    string(res.Source),
		})
	}
}
