package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"
)

type object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Backend keeps a bucket in memory with the same listing semantics as S3 (lexical order,
// delimiter grouping, start-after continuation tokens)
type Backend struct {
	mu      sync.RWMutex
	bucket  string
	service common.ServiceType
	private bool
	objects map[string]object
	now     func() time.Time
}

type Option func(*Backend)

// WithService changes the service type the backend reports
func WithService(service common.ServiceType) Option {
	return func(b *Backend) { b.service = service }
}

func WithPublicACL() Option {
	return func(b *Backend) { b.private = false }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func New(bucket string, opts ...Option) *Backend {
	b := &Backend{
		bucket:  bucket,
		service: common.S3Compatible,
		private: true,
		objects: make(map[string]object),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Put stores an object directly, for seeding fixtures
func (b *Backend) Put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: data, modified: b.now()}
}

// Keys returns every stored key in order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sortedKeys()
}

func (b *Backend) sortedKeys() []string {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *Backend) Service() common.ServiceType {
	return b.service
}

func (b *Backend) Close() error {
	return nil
}

func (b *Backend) Stat(ctx context.Context, key string) (storage.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return storage.Metadata{}, storage.NewOpError("stat", key, storage.ErrTransport, err)
	}

	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return storage.Metadata{}, storage.NewOpError("stat", key, storage.ErrNotFound, nil)
	}

	modified := obj.modified
	contentType := obj.contentType
	if contentType == "" {
		contentType = http.DetectContentType(obj.data)
	}
	return storage.Metadata{
		Key:          key,
		Size:         uint64(len(obj.data)),
		ContentType:  contentType,
		LastModified: &modified,
		ETag:         fmt.Sprintf("%x", md5.Sum(obj.data)),
	}, nil
}

func (b *Backend) Read(ctx context.Context, key string, rng *storage.ByteRange) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.NewOpError("read", key, storage.ErrTransport, err)
	}

	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, storage.NewOpError("read", key, storage.ErrNotFound, nil)
	}

	data := obj.data
	if rng != nil {
		size := uint64(len(data))
		start := min(rng.Offset, size)
		end := size
		if rng.Length > 0 {
			end = min(start+rng.Length, size)
		}
		data = data[start:end]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Backend) Write(ctx context.Context, key string, r io.Reader, size int64, opts storage.WriteOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.NewOpError("write", key, storage.ErrIO, err)
	}
	if err := ctx.Err(); err != nil {
		return storage.NewOpError("write", key, storage.ErrTransport, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return storage.NewOpError("write", key, storage.ErrIO, fmt.Errorf("short body: got %d of %d bytes", len(data), size))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: data, contentType: opts.ContentType, modified: b.now()}
	return nil
}

func (b *Backend) List(ctx context.Context, opts storage.ListOptions) (storage.ListingPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListingPage{}, storage.NewOpError("list", opts.Prefix, storage.ErrTransport, err)
	}

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = storage.DefaultPageSize
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var (
		objects  []storage.Object
		prefixes []string
		last     string
		count    int
		next     string
	)

	for _, key := range b.sortedKeys() {
		if !strings.HasPrefix(key, opts.Prefix) || key <= opts.ContinuationToken {
			continue
		}

		entry := key
		isPrefix := false
		if opts.Delimiter != "" {
			rest := key[len(opts.Prefix):]
			if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
				entry = opts.Prefix + rest[:idx+len(opts.Delimiter)]
				isPrefix = true
			}
		}
		// Keys under an already emitted (or already returned) prefix
		if isPrefix && (entry == last || entry <= opts.ContinuationToken) {
			continue
		}

		if count == maxKeys {
			next = last
			break
		}

		if isPrefix {
			prefixes = append(prefixes, entry)
		} else {
			obj := b.objects[key]
			modified := obj.modified
			objects = append(objects, storage.Object{
				Key:          key,
				Size:         uint64(len(obj.data)),
				LastModified: &modified,
				StorageClass: "STANDARD",
			})
		}
		last = entry
		count++
	}

	return storage.NewListingPage(opts, objects, prefixes, next), nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return storage.NewOpError("delete", key, storage.ErrTransport, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	// Deleting a missing key succeeds, as it does on S3
	delete(b.objects, key)
	return nil
}

func (b *Backend) DeleteMany(ctx context.Context, keys []string) ([]storage.DeleteResult, error) {
	results := make([]storage.DeleteResult, 0, len(keys))
	for _, key := range keys {
		results = append(results, storage.DeleteResult{Key: key, Err: b.Delete(ctx, key)})
	}
	return results, storage.BatchResult(results)
}

func (b *Backend) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return storage.NewOpError("copy", src, storage.ErrTransport, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[src]
	if !ok {
		return storage.NewOpError("copy", src, storage.ErrNotFound, nil)
	}
	obj.data = bytes.Clone(obj.data)
	obj.modified = b.now()
	b.objects[dst] = obj
	return nil
}

func (b *Backend) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 || ttl > storage.MaxPresignTTL {
		return "", storage.NewOpError("presign", key, storage.ErrPresign, fmt.Errorf("ttl %s out of range", ttl))
	}
	if _, err := b.Stat(ctx, key); err != nil {
		return "", err
	}

	u := url.URL{
		Scheme:   "memory",
		Host:     b.bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {fmt.Sprint(b.now().Add(ttl).Unix())}}.Encode(),
	}
	return u.String(), nil
}

func (b *Backend) BucketInfo(ctx context.Context) (storage.BucketInfo, error) {
	if err := ctx.Err(); err != nil {
		return storage.BucketInfo{}, storage.NewOpError("bucket info", b.bucket, storage.ErrTransport, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	var usage int64
	for _, obj := range b.objects {
		usage += int64(len(obj.data))
	}
	return storage.BucketInfo{
		Name:         b.bucket,
		Service:      b.service,
		Location:     "local",
		StorageClass: "STANDARD",
		UsageBytes:   usage,
		Private:      b.private,
	}, nil
}

var _ storage.Backend = (*Backend)(nil)
