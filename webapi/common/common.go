// Package common holds the response envelopes, error mapping and request
// binding shared by every route package.
package common

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"github.com/travelagency/backoffice/pkg/middleware"
)

var validate = validator.New()

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

// ErrorToStatusCode maps ledger errors to HTTP status codes.
func ErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.Is(err, middleware.ErrMissingActingUser):
		return fiber.StatusUnauthorized
	case errors.Is(err, ledger.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrUnresolvedExchangeRate):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrSettlementInProgress):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ProblemDetailsJSON writes err as problem details. Optional args: a string
// overrides the detail, an int overrides the status.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, args ...any) error {
	status := ErrorToStatusCode(err)
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Instance: c.OriginalURL(),
	}
	if err != nil {
		pd.Detail = err.Error()
		pd.Errors = errorFields(err)
	}
	for _, a := range args {
		switch v := a.(type) {
		case string:
			pd.Detail = v
		case int:
			status = v
		}
	}
	pd.Status = status
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// errorFields exposes the structured parts of the typed ledger errors.
func errorFields(err error) any {
	var (
		ve *ledger.ValidationError
		nf *ledger.NotFoundError
		fe *ledger.InsufficientFundsError
		ue *ledger.UnresolvedExchangeRateError
		pe *ledger.PartialPostingError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.Map{"field": ve.Field, "reason": ve.Reason}
	case errors.As(err, &nf):
		return fiber.Map{"entity": nf.Entity, "key": nf.Key}
	case errors.As(err, &fe):
		return fiber.Map{
			"account_id": fe.AccountID,
			"currency":   fe.Currency,
			"balance":    fe.Balance.String(),
			"requested":  fe.Requested.String(),
			"shortfall":  fe.Shortfall.String(),
		}
	case errors.As(err, &ue):
		return fiber.Map{"date": ue.Date.Format(time.DateOnly)}
	case errors.As(err, &pe):
		return fiber.Map{
			"payment_id":         pe.PaymentID,
			"account_id":         pe.AccountID,
			"result_movement_id": pe.ResultMovementID,
		}
	}
	return nil
}

// SuccessResponseJSON writes the standard success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// Returns a pointer to the struct (populated), or writes an error response and returns nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest)
	}
	return &input, nil
}

// ParseID reads a uuid path parameter, writing a 400 when it is malformed.
func ParseID(c *fiber.Ctx, param string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, false, ProblemDetailsJSON(c, "Invalid "+param, err, param+" must be a valid UUID", fiber.StatusBadRequest)
	}
	return id, true, nil
}
