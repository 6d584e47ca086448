// Package providers contains dependency injection providers for the DocShelf client.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/docshelf/docshelf/internal/config"
	"github.com/docshelf/docshelf/internal/logger"
	"github.com/docshelf/docshelf/internal/validation"
)

// ProvideConfig provides the client configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig(do.MustInvoke[config.Overrides](i))
}

// LoggerHandle wraps the logger so its log file is closed on shutdown.
type LoggerHandle struct {
	*logger.Logger
}

// Shutdown implements do.Shutdownable.
func (h *LoggerHandle) Shutdown() error {
	return h.Close()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*LoggerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.Logger.Level == "debug",
		Environment: cfg.App.Environment,
		File:        cfg.Logger.File,
	})

	log.Debug("DocShelf client starting",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"api_url", cfg.API.BaseURL,
		"state_dir", cfg.Session.StateDir,
		"token_store", cfg.Session.TokenStore,
	)

	return &LoggerHandle{Logger: log}, nil
}

// ProvideValidator provides the shared input validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
