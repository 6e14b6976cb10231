package minio

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"bucketdeck/internal/provider/registry"
	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

func init() {
	registry.RegisterProvider(common.S3Compatible, registry.ProviderRegistration{
		ConfigCheck: checkConfig,
		Initializer: initialize,
	})
}

// minio-go wants host[:port] plus a TLS flag rather than a URL
func checkConfig(cfg storage.ClientConfig) error {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return err
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("endpoint %q must not contain a path", cfg.Endpoint)
	}
	return nil
}

func initialize(_ context.Context, cfg storage.ClientConfig, logger *slog.Logger) (storage.Backend, error) {
	return NewMinioStorage(cfg, logger)
}

type MinioStorage struct {
	client *miniogo.Client
	cfg    storage.ClientConfig
	logger *slog.Logger
}

var _ storage.Backend = (*MinioStorage)(nil)

func NewMinioStorage(cfg storage.ClientConfig, logger *slog.Logger) (*MinioStorage, error) {
	opts, host, err := clientOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrConfig, err)
	}

	client, err := miniogo.New(host, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3-compatible client: %w", err)
	}

	logger.Debug("S3-compatible client configured", "host", host, "secure", opts.Secure, "region", opts.Region)

	return &MinioStorage{client: client, cfg: cfg, logger: logger}, nil
}

// clientOptions never lets the client discover the region; a GetBucketLocation round trip on
// every request breaks against most third-party endpoints
func clientOptions(cfg storage.ClientConfig) (*miniogo.Options, string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, "", err
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("endpoint %q has no host", cfg.Endpoint)
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	lookup := miniogo.BucketLookupPath
	if storage.UseVirtualHost(cfg) {
		lookup = miniogo.BucketLookupDNS
	}

	return &miniogo.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure:       u.Scheme == "https",
		Region:       region,
		BucketLookup: lookup,
		MaxRetries:   cfg.EffectiveRetryMaxAttempts(),
	}, u.Host, nil
}

func (m *MinioStorage) Service() common.ServiceType {
	return common.S3Compatible
}

func (m *MinioStorage) Close() error {
	return nil
}
