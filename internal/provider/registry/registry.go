package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"
)

// Checks provider specific settings that the shared config validation cannot know about
type ProviderConfigCheck func(cfg storage.ClientConfig) error

// Defines the function signature for creating a backend for one bucket
type ProviderInitializer func(ctx context.Context, cfg storage.ClientConfig, logger *slog.Logger) (storage.Backend, error)

// Holds the necessary functions to check configuration and initialize a provider
type ProviderRegistration struct {
	ConfigCheck ProviderConfigCheck
	Initializer ProviderInitializer
}

var (
	// Stores the registrations, keyed by service type
	providerRegistry = make(map[common.ServiceType]ProviderRegistration)
	registryMu       sync.RWMutex
)

// Allows a provider implementation package to register itself during initialization (init()).
// One package may register several service types that share an SDK
func RegisterProvider(service common.ServiceType, registration ProviderRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := providerRegistry[service]; exists {
		panic(fmt.Sprintf("provider %s already registered", service))
	}

	if registration.ConfigCheck == nil {
		panic(fmt.Sprintf("provider %s registration missing ConfigCheck", service))
	}
	if registration.Initializer == nil {
		panic(fmt.Sprintf("provider %s registration missing Initializer", service))
	}

	providerRegistry[service] = registration
}

// Returns a sorted list of all registered service types
func GetSupportedProviders() []common.ServiceType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	providers := make([]common.ServiceType, 0, len(providerRegistry))
	for service := range providerRegistry {
		providers = append(providers, service)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// Checks if a service type has been registered
func IsSupported(service common.ServiceType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	_, exists := providerRegistry[service]
	return exists
}

// Retrieves the registration details for a service type
func GetRegistration(service common.ServiceType) (ProviderRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	registration, exists := providerRegistry[service]
	return registration, exists
}

// Removes a registration. Only tests need this
func Unregister(service common.ServiceType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(providerRegistry, service)
}
