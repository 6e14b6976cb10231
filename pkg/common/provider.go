package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedService is returned for any service name outside the closed set below
var ErrUnsupportedService = errors.New("unsupported service type")

// ServiceType identifies the storage service a connection talks to
type ServiceType string

const (
	S3           ServiceType = "s3"
	OSS          ServiceType = "oss"
	GCS          ServiceType = "gcs"
	AzureBlob    ServiceType = "azblob"
	S3Compatible ServiceType = "s3compatible"
)

var serviceAliases = map[string]ServiceType{
	"s3":            S3,
	"aws":           S3,
	"oss":           OSS,
	"aliyun":        OSS,
	"gcs":           GCS,
	"gcp":           GCS,
	"azblob":        AzureBlob,
	"azure":         AzureBlob,
	"s3compatible":  S3Compatible,
	"s3-compatible": S3Compatible,
	"minio":         S3Compatible,
}

// AllServiceTypes returns every service type in display order
func AllServiceTypes() []ServiceType {
	return []ServiceType{S3, OSS, GCS, AzureBlob, S3Compatible}
}

// ParseServiceType maps a user supplied name (or alias) to a ServiceType
func ParseServiceType(name string) (ServiceType, error) {
	st, ok := serviceAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedService, name)
	}
	return st, nil
}

func (s ServiceType) String() string {
	return string(s)
}

// DisplayName is the human readable provider name used in tables
func (s ServiceType) DisplayName() string {
	switch s {
	case S3:
		return "AWS S3"
	case OSS:
		return "Aliyun OSS"
	case GCS:
		return "Google Cloud Storage"
	case AzureBlob:
		return "Azure Blob"
	case S3Compatible:
		return "S3 Compatible"
	default:
		return string(s)
	}
}
