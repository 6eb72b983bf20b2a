package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/middleware"
	settlementsvc "github.com/travelagency/backoffice/pkg/service/settlement"
	"github.com/travelagency/backoffice/webapi/common"
)

// Settler settles a payment and runs its follow-ups.
type Settler interface {
	Settle(ctx context.Context, cmd settlementsvc.Command) (*settlementsvc.Result, []settlementsvc.FollowUpOutcome, error)
}

// Routes registers the settlement endpoint.
//
// Routes:
//   - POST /payments/:id/settle : Mark a pending payment PAID and post its movements.
func Routes(app *fiber.App, svc Settler, cfg *config.Jwt) {
	app.Post("/payments/:id/settle", middleware.JwtProtected(cfg), Settle(svc, cfg.Claim))
}

// Settle returns a Fiber handler settling the payment in the path.
// @Summary Settle a payment
// @Description Marks a pending payment PAID and posts the result, settlement-account, counterpart and FX movements. Settling a PAID payment again is a no-op or posts only the missing settlement-account movement.
// @Tags payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param request body SettleRequest true "Settlement details"
// @Success 200 {object} common.Response "Payment settled"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 404 {object} common.ProblemDetails "Payment, account or operation not found"
// @Failure 409 {object} common.ProblemDetails "Settlement already in progress"
// @Failure 422 {object} common.ProblemDetails "Insufficient funds or no exchange rate"
// @Failure 500 {object} common.ProblemDetails "Internal server error or partial posting"
// @Router /payments/{id}/settle [post]
// @Security Bearer
func Settle(svc Settler, claim string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actingUser, err := middleware.ActingUser(c, claim)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		paymentID, ok, err := common.ParseID(c, "id")
		if !ok {
			return err
		}
		input, err := common.BindAndValidate[SettleRequest](c)
		if input == nil {
			return err // error response already written
		}
		datePaid, err := time.Parse(time.DateOnly, input.DatePaid)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid date_paid", err, fiber.StatusBadRequest)
		}

		log.Infof("Settle handler: payment %s by %s", paymentID, actingUser)
		res, outcomes, err := svc.Settle(c.UserContext(), settlementsvc.Command{
			PaymentID:  paymentID,
			DatePaid:   datePaid,
			Reference:  input.Reference,
			ActingUser: actingUser,
		})
		if err != nil {
			if errors.Is(err, ledger.ErrPartialPosting) {
				log.Errorf("Settle handler: %v", err)
				return common.ProblemDetailsJSON(c, "Critical: partial posting", err)
			}
			log.Warnf("Settle handler: payment %s: %v", paymentID, err)
			return common.ProblemDetailsJSON(c, "Failed to settle payment", err)
		}
		msg := "Payment settled"
		switch res.Outcome {
		case settlementsvc.OutcomeReplayed:
			msg = "Payment already settled"
		case settlementsvc.OutcomeCorrected:
			msg = "Missing settlement movement posted"
		case settlementsvc.OutcomeRecovered:
			msg = "Interrupted settlement completed"
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, msg, ToResponse(res, outcomes))
	}
}
