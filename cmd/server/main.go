package main

import (
	"fmt"
	"log/slog"

	log "github.com/charmbracelet/log"
	"github.com/travelagency/backoffice/infra/initializer"
	"github.com/travelagency/backoffice/pkg/app"
	"github.com/travelagency/backoffice/pkg/config"
	"github.com/travelagency/backoffice/webapi"
)

// @title Back-office Accounting API
// @version 1.0.0
// @description Payment settlement, balances, exchange rates and the monthly position of a travel agency.
// @host localhost:3000
// @BasePath /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description "Enter your Bearer token in the format: `Bearer {token}`"
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	fiberApp := webapi.SetupApp(app.New(deps, cfg))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Default().Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
		"event_bus", cfg.EventBus.Driver,
	)
	return fiberApp.Listen(addr)
}
