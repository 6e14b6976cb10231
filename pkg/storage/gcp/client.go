package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"bucketdeck/internal/provider/registry"
	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	gcpstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

func init() {
	registry.RegisterProvider(common.GCS, registry.ProviderRegistration{
		ConfigCheck: checkConfig,
		Initializer: initialize,
	})
}

// A credentials file, when given, must exist; otherwise application default credentials apply
func checkConfig(cfg storage.ClientConfig) error {
	if cfg.CredentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(cfg.CredentialsFile); err != nil {
		return fmt.Errorf("credentials file: %w", err)
	}
	return nil
}

// Initializes the GCS client from the connection config
func initialize(ctx context.Context, cfg storage.ClientConfig, logger *slog.Logger) (storage.Backend, error) {
	return NewGCPStorage(ctx, cfg, logger)
}

type GCPStorage struct {
	client *gcpstorage.Client
	// credOpts carry only authentication so they can be reused for the Monitoring API
	credOpts []option.ClientOption
	cfg      storage.ClientConfig
	logger   *slog.Logger
}

var _ storage.Backend = (*GCPStorage)(nil)

func NewGCPStorage(ctx context.Context, cfg storage.ClientConfig, logger *slog.Logger) (*GCPStorage, error) {
	credOpts := credentialOptions(cfg)
	opts := slices.Clone(credOpts)
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gcpstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP storage client: %w", err)
	}

	return &GCPStorage{
		client:   client,
		credOpts: credOpts,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func credentialOptions(cfg storage.ClientConfig) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

func (g *GCPStorage) Service() common.ServiceType {
	return common.GCS
}

func (g *GCPStorage) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// bucket applies the configured attempt count to every call made through the handle
func (g *GCPStorage) bucket() *gcpstorage.BucketHandle {
	return g.client.Bucket(g.cfg.Bucket).Retryer(gcpstorage.WithMaxAttempts(g.cfg.EffectiveRetryMaxAttempts()))
}
