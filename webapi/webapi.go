// Package webapi exposes the back-office accounting core over HTTP.
// It is organized into sub-packages per concern:
// - settlement: payment settlement
// - report: monthly position
// - account: account balances
// - exchange: exchange rate series
package webapi

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/travelagency/backoffice/pkg/app"
	"github.com/travelagency/backoffice/pkg/config"
	accountweb "github.com/travelagency/backoffice/webapi/account"
	"github.com/travelagency/backoffice/webapi/common"
	exchangeweb "github.com/travelagency/backoffice/webapi/exchange"
	reportweb "github.com/travelagency/backoffice/webapi/report"
	settlementweb "github.com/travelagency/backoffice/webapi/settlement"
)

// SetupApp builds the fiber app with rate limiting, panic recovery, request
// logging and every route registered.
func SetupApp(a *app.App) *fiber.App {
	cfg := a.Config
	if cfg == nil {
		cfg = &config.App{}
	}
	rl := cfg.RateLimit
	if rl == nil {
		rl = &config.RateLimit{MaxRequests: 100, Window: time.Minute}
	}
	jwtCfg := &config.Jwt{}
	if cfg.Auth != nil && cfg.Auth.Jwt != nil {
		jwtCfg = cfg.Auth.Jwt
	}

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return common.ProblemDetailsJSON(c, fe.Message, err, fe.Code)
			}
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	// Behind a proxy the client is the first X-Forwarded-For hop, then
	// X-Real-IP, then the socket address.
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        rl.MaxRequests,
		Expiration: rl.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
					return strings.TrimSpace(forwardedFor[:commaIndex])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Back-office accounting API is running")
	})

	settlementweb.Routes(fiberApp, a, jwtCfg)
	reportweb.Routes(fiberApp, a.ReportService, jwtCfg)
	accountweb.Routes(fiberApp, a.BalanceService, jwtCfg)
	exchangeweb.Routes(fiberApp, a.ExchangeService, jwtCfg)
	return fiberApp
}
