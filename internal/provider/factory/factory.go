package factory

import (
	"context"
	"fmt"
	"log/slog"

	"bucketdeck/internal/provider/registry"
	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"
)

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{
		logger: logger,
	}
}

// Select maps a service type to its registration. It has no side effects
func Select(service common.ServiceType) (registry.ProviderRegistration, error) {
	registration, exists := registry.GetRegistration(service)
	if !exists {
		return registry.ProviderRegistration{}, fmt.Errorf("%w: %q. Supported services are: %v",
			storage.ErrUnsupportedService, service, registry.GetSupportedProviders())
	}
	return registration, nil
}

// Open validates cfg and connects the backend for its service
func (f *Factory) Open(ctx context.Context, cfg storage.ClientConfig) (storage.Backend, error) {
	providerLogger := f.logger.With("provider", cfg.Service.String(), "bucket", cfg.Bucket)

	registration, err := Select(cfg.Service)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := registration.ConfigCheck(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrConfig, err)
	}

	// Dynamically initialize the provider using the registered initializer function
	backend, err := registration.Initializer(ctx, cfg, providerLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", cfg.Service, err)
	}

	providerLogger.Debug("Backend ready")
	return backend, nil
}
