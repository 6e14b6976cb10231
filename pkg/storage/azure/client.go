package azure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bucketdeck/internal/provider/registry"
	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

func init() {
	registry.RegisterProvider(common.AzureBlob, registry.ProviderRegistration{
		ConfigCheck: checkConfig,
		Initializer: initialize,
	})
}

// The access key id is the storage account name, which Azure limits to 3-24 lowercase alphanumerics
func checkConfig(cfg storage.ClientConfig) error {
	account := cfg.AccessKeyID
	if len(account) < 3 || len(account) > 24 {
		return fmt.Errorf("account name %q must be 3-24 characters", account)
	}
	for _, r := range account {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return fmt.Errorf("account name %q must be lowercase letters and digits", account)
		}
	}
	return nil
}

func initialize(_ context.Context, cfg storage.ClientConfig, logger *slog.Logger) (storage.Backend, error) {
	return NewAzureStorage(cfg, logger)
}

type AzureStorage struct {
	container *container.Client
	cfg       storage.ClientConfig
	logger    *slog.Logger
}

var _ storage.Backend = (*AzureStorage)(nil)

func NewAzureStorage(cfg storage.ClientConfig, logger *slog.Logger) (*AzureStorage, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrConfig, err)
	}

	containerURL := containerURL(cfg)
	client, err := container.NewClientWithSharedKeyCredential(containerURL, cred, &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: maxRetries(cfg.EffectiveRetryMaxAttempts())},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure container client: %w", err)
	}

	logger.Debug("Azure container client configured", "url", containerURL)

	return &AzureStorage{container: client, cfg: cfg, logger: logger}, nil
}

func containerURL(cfg storage.ClientConfig) string {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccessKeyID)
	}
	return strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
}

// maxRetries converts total attempts to azcore retries, where 0 selects the SDK default of 3
// and -1 disables retrying
func maxRetries(attempts int) int32 {
	if attempts <= 1 {
		return -1
	}
	return int32(attempts - 1)
}

func (a *AzureStorage) Service() common.ServiceType {
	return common.AzureBlob
}

func (a *AzureStorage) Close() error {
	return nil
}
