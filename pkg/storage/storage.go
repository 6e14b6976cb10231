package storage

import (
	"context"
	"io"
	"time"

	"bucketdeck/pkg/common"
)

// Backend is the uniform view of one bucket on one storage service.
// Implementations hold nothing but the SDK handle and are safe for concurrent use
type Backend interface {
	// Stat returns the metadata of a single object
	Stat(ctx context.Context, key string) (Metadata, error)
	// Read streams an object, or the part of it selected by rng when non-nil. The caller closes the reader
	Read(ctx context.Context, key string, rng *ByteRange) (io.ReadCloser, error)
	// Write stores exactly size bytes read from r under key
	Write(ctx context.Context, key string, r io.Reader, size int64, opts WriteOptions) error
	// List returns one delimiter-grouped page
	List(ctx context.Context, opts ListOptions) (ListingPage, error)
	Delete(ctx context.Context, key string) error
	// DeleteMany reports one result per key. The error is ErrPartialBatch when any key failed
	DeleteMany(ctx context.Context, keys []string) ([]DeleteResult, error)
	// Copy performs a server side copy within the bucket
	Copy(ctx context.Context, src, dst string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	BucketInfo(ctx context.Context) (BucketInfo, error)

	Service() common.ServiceType
	Close() error
}

// MaxPresignTTL is the longest lifetime any supported service signs for
const MaxPresignTTL = 7 * 24 * time.Hour
