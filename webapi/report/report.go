package report

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/middleware"
	reportsvc "github.com/travelagency/backoffice/pkg/service/report"
	"github.com/travelagency/backoffice/webapi/common"
)

// PositionService computes the monthly position.
type PositionService interface {
	MonthlyPosition(ctx context.Context, q reportsvc.Query) (*reportsvc.Position, error)
}

// Routes registers the reporting endpoints.
//
// Routes:
//   - GET /reports/monthly-position : Balance sheet, projected liabilities and P&L for a month.
func Routes(app *fiber.App, svc PositionService, cfg *config.Jwt) {
	app.Get("/reports/monthly-position", middleware.JwtProtected(cfg), MonthlyPosition(svc))
}

// MonthlyPosition returns a Fiber handler for the monthly position report.
// @Summary Monthly position
// @Description Balance sheet at month end, projected liabilities due by then, and the period P&L per currency with a blended USD view.
// @Tags reports
// @Produce json
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Param agency_id query string false "Agency ID"
// @Success 200 {object} common.Response "Monthly position"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 500 {object} common.ProblemDetails "Internal server error"
// @Router /reports/monthly-position [get]
// @Security Bearer
func MonthlyPosition(svc PositionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		year, err := strconv.Atoi(c.Query("year"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid year", err, "year must be an integer", fiber.StatusBadRequest)
		}
		month, err := strconv.Atoi(c.Query("month"))
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid month", err, "month must be an integer", fiber.StatusBadRequest)
		}
		q := reportsvc.Query{Year: year, Month: month}
		if raw := c.Query("agency_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return common.ProblemDetailsJSON(c, "Invalid agency_id", err, "agency_id must be a valid UUID", fiber.StatusBadRequest)
			}
			q.AgencyID = &id
		}
		p, err := svc.MonthlyPosition(c.UserContext(), q)
		if err != nil {
			log.Errorf("Failed to build monthly position: %v", err)
			return common.ProblemDetailsJSON(c, "Failed to build monthly position", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Monthly position", ToResponse(p))
	}
}
