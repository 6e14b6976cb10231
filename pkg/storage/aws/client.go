package aws

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"bucketdeck/internal/provider/registry"
	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultRegion = "us-east-1"

func init() {
	// OSS speaks the S3 protocol closely enough to share this adapter
	for _, service := range []common.ServiceType{common.S3, common.OSS} {
		registry.RegisterProvider(service, registry.ProviderRegistration{
			ConfigCheck: checkConfig,
			Initializer: initialize,
		})
	}
}

func checkConfig(cfg storage.ClientConfig) error {
	if cfg.Service == common.OSS && cfg.AddressingStyle == storage.AddressingPath {
		return fmt.Errorf("oss only supports virtual-host addressing")
	}
	return nil
}

// Initializes the S3 client from the connection config
func initialize(ctx context.Context, cfg storage.ClientConfig, logger *slog.Logger) (storage.Backend, error) {
	return NewS3Storage(ctx, cfg, logger)
}

type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     storage.ClientConfig
	logger  *slog.Logger
}

var _ storage.Backend = (*S3Storage)(nil)

func NewS3Storage(ctx context.Context, cfg storage.ClientConfig, logger *slog.Logger) (*S3Storage, error) {
	region := resolveRegion(cfg)

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(cfg.EffectiveRetryMaxAttempts()),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
		)),
	}
	// Nothing outside AWS has an instance metadata service worth probing
	if cfg.Service != common.S3 || cfg.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithEC2IMDSClientEnableState(imds.ClientDisabled))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.Service != common.OSS && !storage.UseVirtualHost(cfg)
		// Third-party endpoints reject the newer default checksums
		o.RequestChecksumCalculation = awssdk.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = awssdk.ResponseChecksumValidationWhenRequired
	})

	logger.Debug("S3 client configured", "region", region, "endpoint", cfg.Endpoint, "path_style", cfg.Service != common.OSS && !storage.UseVirtualHost(cfg))

	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// resolveRegion never leaves the SDK to discover a region. OSS endpoints carry it in the host name
func resolveRegion(cfg storage.ClientConfig) string {
	if cfg.Region != "" {
		return cfg.Region
	}
	if cfg.Service == common.OSS && cfg.Endpoint != "" {
		if u, err := url.Parse(cfg.Endpoint); err == nil {
			host := u.Hostname()
			if label, _, ok := strings.Cut(host, "."); ok && strings.HasPrefix(label, "oss-") {
				return strings.TrimSuffix(strings.TrimPrefix(label, "oss-"), "-internal")
			}
		}
	}
	return defaultRegion
}

func (s *S3Storage) Service() common.ServiceType {
	return s.cfg.Service
}

func (s *S3Storage) Close() error {
	return nil
}

func (s *S3Storage) bucket() *string {
	return awssdk.String(s.cfg.Bucket)
}
