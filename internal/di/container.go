// Package di provides dependency injection configuration for the DocShelf client.
package di

import (
	"github.com/samber/do/v2"

	"github.com/docshelf/docshelf/internal/config"
	"github.com/docshelf/docshelf/internal/di/providers"
)

// NewContainer creates and configures the DI container with all providers.
// Command-line overrides are registered as a value so ProvideConfig can apply
// them.
func NewContainer(overrides config.Overrides) *do.RootScope {
	injector := do.New()
	do.ProvideValue(injector, overrides)

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Transport and session
	do.Provide(injector, providers.ProvideAPIClient)
	do.Provide(injector, providers.ProvideTokenStore)
	do.Provide(injector, providers.ProvideSessionManager)

	// Business services
	do.Provide(injector, providers.ProvideDashboardService)
	do.Provide(injector, providers.ProvideDocumentService)
	do.Provide(injector, providers.ProvideUploadService)

	return injector
}
