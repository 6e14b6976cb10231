package storage

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"bucketdeck/pkg/common"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultBufferSize is the transfer chunk size and the upload part size handed to the SDKs
	DefaultBufferSize = 8 << 20
	MinBufferSize     = 64 << 10

	DefaultTimeout          = 30 * time.Second
	DefaultRetryMaxAttempts = 1
	MaxRetryMaxAttempts     = 10
)

// Addressing styles for S3-like services
const (
	AddressingAuto    = "auto"
	AddressingPath    = "path"
	AddressingVirtual = "virtual"
)

// Endpoint domains that only serve virtual-host style requests
var virtualHostDomains = []string{
	"aliyuncs.com",
	"myqcloud.com",
	"amazonaws.com",
	"digitaloceanspaces.com",
	"volces.com",
	"ksyuncs.com",
}

var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// ClientConfig holds the connection parameters of one bucket. Build it with NewConfigBuilder
// and pass it by value; nothing mutates it after construction
type ClientConfig struct {
	Service         common.ServiceType `mapstructure:"service" yaml:"service" validate:"required,service"`
	Endpoint        string             `mapstructure:"endpoint" yaml:"endpoint,omitempty" validate:"omitempty,endpoint"`
	Region          string             `mapstructure:"region" yaml:"region,omitempty"`
	Bucket          string             `mapstructure:"bucket" yaml:"bucket" validate:"bucketname"`
	AccessKeyID     string             `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string             `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	SessionToken    string             `mapstructure:"session_token" yaml:"session_token,omitempty"`
	// CredentialsFile is a service account key for GCS
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id,omitempty"`
	// Private is a hint from the user; BucketInfo reports the real ACL state
	Private         bool   `mapstructure:"private" yaml:"private"`
	AddressingStyle string `mapstructure:"addressing_style" yaml:"addressing_style,omitempty" validate:"omitempty,oneof=auto path virtual"`

	Timeout                time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty" validate:"gte=0"`
	RetryMaxAttempts       int           `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts,omitempty" validate:"gte=0,lte=10"`
	BufferSize             int           `mapstructure:"buffer_size" yaml:"buffer_size,omitempty" validate:"omitempty,gte=65536"`
	MaxConcurrentTransfers int           `mapstructure:"max_concurrent_transfers" yaml:"max_concurrent_transfers,omitempty" validate:"gte=0"`
}

// EffectiveBufferSize returns the configured buffer size or the default
func (c ClientConfig) EffectiveBufferSize() int {
	if c.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return c.BufferSize
}

// EffectiveRetryMaxAttempts never returns less than one attempt
func (c ClientConfig) EffectiveRetryMaxAttempts() int {
	if c.RetryMaxAttempts < 1 {
		return 1
	}
	return c.RetryMaxAttempts
}

// Redacted returns a copy that is safe to print
func (c ClientConfig) Redacted() ClientConfig {
	if c.SecretAccessKey != "" {
		c.SecretAccessKey = "********"
	}
	if c.SessionToken != "" {
		c.SessionToken = "********"
	}
	return c
}

// Validate checks every field and reports all problems at once as ErrConfig
func (c ClientConfig) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describeFieldError(fe))
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrConfig, strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_for_service":
		return fmt.Sprintf("%s is required for service %s", field, fe.Param())
	case "bucketname":
		return fmt.Sprintf("bucket %q must be 3-63 characters of lowercase letters, digits and '-', and must not start or end with '-'", fe.Value())
	case "endpoint":
		return fmt.Sprintf("endpoint %q must be an absolute http or https URL", fe.Value())
	case "service":
		return fmt.Sprintf("service %q is not one of %v", fe.Value(), common.AllServiceTypes())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s fails %s=%s", field, fe.Tag(), fe.Param())
	}
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "bucketname", func(fl validator.FieldLevel) bool {
		return IsValidBucketName(fl.Field().String())
	})
	mustRegister(v, "endpoint", func(fl validator.FieldLevel) bool {
		return isHTTPURL(fl.Field().String())
	})
	mustRegister(v, "service", func(fl validator.FieldLevel) bool {
		for _, st := range common.AllServiceTypes() {
			if fl.Field().String() == string(st) {
				return true
			}
		}
		return false
	})
	v.RegisterStructValidation(validateServiceRequirements, ClientConfig{})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// Required fields differ per service
func validateServiceRequirements(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(ClientConfig)
	service := string(cfg.Service)

	require := func(value, field string) {
		if strings.TrimSpace(value) == "" {
			sl.ReportError(value, field, field, "required_for_service", service)
		}
	}

	switch cfg.Service {
	case common.S3:
		require(cfg.Region, "Region")
	case common.OSS, common.S3Compatible:
		require(cfg.Endpoint, "Endpoint")
	}

	if cfg.Service != common.GCS {
		require(cfg.AccessKeyID, "AccessKeyID")
		require(cfg.SecretAccessKey, "SecretAccessKey")
	}
}

// IsValidBucketName applies the common subset of S3, OSS, GCS and Azure container naming rules
func IsValidBucketName(name string) bool {
	return bucketNamePattern.MatchString(name)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// UseVirtualHost decides the addressing style for an S3-like endpoint.
// In auto mode only endpoints under a known vendor domain get virtual-host addressing
func UseVirtualHost(cfg ClientConfig) bool {
	switch cfg.AddressingStyle {
	case AddressingPath:
		return false
	case AddressingVirtual:
		return true
	}

	if cfg.Endpoint == "" {
		return cfg.Service == common.S3 || cfg.Service == common.OSS
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range virtualHostDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// ConfigBuilder assembles a ClientConfig. Build validates the result
type ConfigBuilder struct {
	cfg ClientConfig
}

func NewConfigBuilder(service common.ServiceType) *ConfigBuilder {
	return &ConfigBuilder{cfg: ClientConfig{
		Service:          service,
		AddressingStyle:  AddressingAuto,
		Timeout:          DefaultTimeout,
		RetryMaxAttempts: DefaultRetryMaxAttempts,
		BufferSize:       DefaultBufferSize,
	}}
}

// FromConfig starts a builder from an existing value, for example one decoded from a profile
func FromConfig(cfg ClientConfig) *ConfigBuilder {
	return &ConfigBuilder{cfg: cfg}
}

func (b *ConfigBuilder) Endpoint(endpoint string) *ConfigBuilder {
	b.cfg.Endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	return b
}

func (b *ConfigBuilder) Region(region string) *ConfigBuilder {
	b.cfg.Region = strings.TrimSpace(region)
	return b
}

func (b *ConfigBuilder) Bucket(bucket string) *ConfigBuilder {
	b.cfg.Bucket = strings.TrimSpace(bucket)
	return b
}

func (b *ConfigBuilder) Credentials(accessKeyID, secretAccessKey string) *ConfigBuilder {
	b.cfg.AccessKeyID = accessKeyID
	b.cfg.SecretAccessKey = secretAccessKey
	return b
}

func (b *ConfigBuilder) SessionToken(token string) *ConfigBuilder {
	b.cfg.SessionToken = token
	return b
}

func (b *ConfigBuilder) CredentialsFile(path string) *ConfigBuilder {
	b.cfg.CredentialsFile = path
	return b
}

func (b *ConfigBuilder) ProjectID(projectID string) *ConfigBuilder {
	b.cfg.ProjectID = projectID
	return b
}

func (b *ConfigBuilder) Private(private bool) *ConfigBuilder {
	b.cfg.Private = private
	return b
}

func (b *ConfigBuilder) AddressingStyle(style string) *ConfigBuilder {
	b.cfg.AddressingStyle = strings.ToLower(style)
	return b
}

func (b *ConfigBuilder) Timeout(timeout time.Duration) *ConfigBuilder {
	b.cfg.Timeout = timeout
	return b
}

func (b *ConfigBuilder) RetryMaxAttempts(attempts int) *ConfigBuilder {
	b.cfg.RetryMaxAttempts = attempts
	return b
}

func (b *ConfigBuilder) BufferSize(size int) *ConfigBuilder {
	b.cfg.BufferSize = size
	return b
}

func (b *ConfigBuilder) MaxConcurrentTransfers(n int) *ConfigBuilder {
	b.cfg.MaxConcurrentTransfers = n
	return b
}

func (b *ConfigBuilder) Build() (ClientConfig, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}
