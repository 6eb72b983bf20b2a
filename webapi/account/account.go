package account

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/middleware"
	"github.com/travelagency/backoffice/pkg/service/balance"
	"github.com/travelagency/backoffice/webapi/common"
)

// BalanceService folds an account's movements into a balance.
type BalanceService interface {
	Balance(ctx context.Context, accountID uuid.UUID, cutoff *time.Time) (*balance.Balance, error)
}

// BalanceResponse is an account balance at a cutoff.
type BalanceResponse struct {
	AccountID   uuid.UUID `json:"account_id"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Balance     string    `json:"balance"`
	Cutoff      time.Time `json:"cutoff"`
}

// Routes registers the account endpoints.
//
// Routes:
//   - GET /accounts/:id/balance : Balance of a financial account, optionally as of ?at=.
func Routes(app *fiber.App, svc BalanceService, cfg *config.Jwt) {
	app.Get("/accounts/:id/balance", middleware.JwtProtected(cfg), GetBalance(svc))
}

// GetBalance returns a Fiber handler for an account balance.
// @Summary Account balance
// @Description Opening balance plus every movement created at or before the cutoff, signed by the account's chart category.
// @Tags accounts
// @Produce json
// @Param id path string true "Account ID"
// @Param at query string false "Cutoff (RFC 3339), defaults to now"
// @Success 200 {object} common.Response "Balance"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 404 {object} common.ProblemDetails "Account not found"
// @Router /accounts/{id}/balance [get]
// @Security Bearer
func GetBalance(svc BalanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok, err := common.ParseID(c, "id")
		if !ok {
			return err
		}
		var cutoff *time.Time
		if raw := c.Query("at"); raw != "" {
			at, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return common.ProblemDetailsJSON(c, "Invalid at", err, "at must be RFC 3339", fiber.StatusBadRequest)
			}
			cutoff = &at
		}
		b, err := svc.Balance(c.UserContext(), accountID, cutoff)
		if err != nil {
			log.Errorf("Failed to compute balance for %s: %v", accountID, err)
			return common.ProblemDetailsJSON(c, "Failed to compute balance", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balance", BalanceResponse{
			AccountID:   b.AccountID,
			Currency:    string(b.Currency),
			Category:    b.Category.String(),
			Subcategory: string(b.Subcategory),
			Balance:     b.Amount.StringFixed(2),
			Cutoff:      b.Cutoff,
		})
	}
}
