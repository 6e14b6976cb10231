package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bucketdeck/pkg/storage"

	gcpstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

func (g *GCPStorage) Stat(ctx context.Context, key string) (storage.Metadata, error) {
	g.logger.Debug("Starting GCP DescribeObject operation", "bucket", g.cfg.Bucket, "object", key)

	attrs, err := g.bucket().Object(key).Attrs(ctx)
	if err != nil {
		return storage.Metadata{}, classify("stat", key, err)
	}

	obj := mapObjectAttributes(attrs)
	return storage.Metadata{
		Key:          key,
		Size:         obj.Size,
		ContentType:  attrs.ContentType,
		LastModified: obj.LastModified,
		ETag:         obj.ETag,
		StorageClass: obj.StorageClass,
	}, nil
}

func (g *GCPStorage) Read(ctx context.Context, key string, rng *storage.ByteRange) (io.ReadCloser, error) {
	offset, length := int64(0), int64(-1)
	if rng != nil {
		offset = int64(rng.Offset)
		if rng.Length > 0 {
			length = int64(rng.Length)
		}
	}

	r, err := g.bucket().Object(key).NewRangeReader(ctx, offset, length)
	if err != nil {
		return nil, classify("read", key, err)
	}
	return r, nil
}

// Write uploads in resumable chunks of the configured buffer size. A short or failed copy
// cancels the upload so no partial object is committed
func (g *GCPStorage) Write(ctx context.Context, key string, r io.Reader, size int64, opts storage.WriteOptions) error {
	g.logger.Debug("Starting GCP upload", "object", key, "size", size)

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.bucket().Object(key).NewWriter(wctx)
	w.ChunkSize = g.cfg.EffectiveBufferSize()
	w.ContentType = opts.ContentType

	n, err := io.Copy(w, r)
	if err == nil && n != size {
		err = fmt.Errorf("wrote %d of %d bytes", n, size)
	}
	if err != nil {
		cancel()
		_ = w.Close()
		return classify("write", key, err)
	}
	return classify("write", key, w.Close())
}

func (g *GCPStorage) List(ctx context.Context, opts storage.ListOptions) (storage.ListingPage, error) {
	g.logger.Debug("Starting GCP ListObjects operation (delimited)", "bucket", g.cfg.Bucket, "prefix", opts.Prefix)

	query := &gcpstorage.Query{
		Prefix:    opts.Prefix,
		Delimiter: opts.Delimiter,
	}
	pageSize := opts.MaxKeys
	if pageSize <= 0 {
		pageSize = storage.DefaultPageSize
	}

	// NewPager panics on a non-positive page size
	pager := iterator.NewPager(g.bucket().Objects(ctx, query), pageSize, opts.ContinuationToken)

	var items []*gcpstorage.ObjectAttrs
	next, err := pager.NextPage(&items)
	if err != nil {
		return storage.ListingPage{}, classify("list", opts.Prefix, err)
	}

	var (
		objects  []storage.Object
		prefixes []string
	)
	for _, attrs := range items {
		// If attrs.Prefix is set, it's a common prefix (directory)
		if attrs.Prefix != "" {
			prefixes = append(prefixes, attrs.Prefix)
			continue
		}
		objects = append(objects, mapObjectAttributes(attrs))
	}

	return storage.NewListingPage(opts, objects, prefixes, next), nil
}

// Delete treats a missing object as already deleted, as S3 does
func (g *GCPStorage) Delete(ctx context.Context, key string) error {
	err := g.bucket().Object(key).Delete(ctx)
	if errors.Is(err, gcpstorage.ErrObjectNotExist) {
		return nil
	}
	return classify("delete", key, err)
}

// GCS has no multi-object delete in the JSON API
func (g *GCPStorage) DeleteMany(ctx context.Context, keys []string) ([]storage.DeleteResult, error) {
	g.logger.Debug("Starting GCP batch delete", "count", len(keys))
	return storage.DeleteEach(ctx, keys, storage.DefaultDeleteConcurrency, g.Delete)
}

func (g *GCPStorage) Copy(ctx context.Context, src, dst string) error {
	bucket := g.bucket()
	_, err := bucket.Object(dst).CopierFrom(bucket.Object(src)).Run(ctx)
	return classify("copy", src, err)
}

func (g *GCPStorage) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	u, err := g.client.Bucket(g.cfg.Bucket).SignedURL(key, &gcpstorage.SignedURLOptions{
		Scheme:  gcpstorage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", storage.NewOpError("presign", key, storage.ErrPresign, err)
	}
	return u, nil
}
