package registry

import (
	"context"
	"log/slog"
	"testing"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	"github.com/stretchr/testify/assert"
)

func testRegistration() ProviderRegistration {
	return ProviderRegistration{
		ConfigCheck: func(storage.ClientConfig) error { return nil },
		Initializer: func(context.Context, storage.ClientConfig, *slog.Logger) (storage.Backend, error) { return nil, nil },
	}
}

func TestRegisterProvider(t *testing.T) {
	RegisterProvider(common.GCS, testRegistration())
	RegisterProvider(common.OSS, testRegistration())
	t.Cleanup(func() {
		Unregister(common.GCS)
		Unregister(common.OSS)
	})

	assert.True(t, IsSupported(common.GCS))
	assert.False(t, IsSupported(common.AzureBlob))
	assert.Equal(t, []common.ServiceType{common.GCS, common.OSS}, GetSupportedProviders())

	_, ok := GetRegistration(common.OSS)
	assert.True(t, ok)

	assert.Panics(t, func() { RegisterProvider(common.GCS, testRegistration()) })
	assert.Panics(t, func() { RegisterProvider(common.S3, ProviderRegistration{}) })
}
