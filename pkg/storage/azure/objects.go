package azure

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"bucketdeck/pkg/storage"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// Azure caps a list page at 5000 entries
const maxListResults = 5000

const copyPollInterval = 500 * time.Millisecond

func (a *AzureStorage) Stat(ctx context.Context, key string) (storage.Metadata, error) {
	props, err := a.container.NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		return storage.Metadata{}, classify("stat", key, err)
	}

	meta := storage.Metadata{
		Key:          key,
		Size:         uint64(max(deref(props.ContentLength), 0)),
		ContentType:  deref(props.ContentType),
		LastModified: props.LastModified,
		StorageClass: deref(props.AccessTier),
	}
	if props.ETag != nil {
		meta.ETag = strings.Trim(string(*props.ETag), `"`)
	}
	return meta, nil
}

func (a *AzureStorage) Read(ctx context.Context, key string, rng *storage.ByteRange) (io.ReadCloser, error) {
	opts := &blob.DownloadStreamOptions{}
	if rng != nil {
		// Count 0 reads to the end
		opts.Range = blob.HTTPRange{Offset: int64(rng.Offset), Count: int64(rng.Length)}
	}

	resp, err := a.container.NewBlobClient(key).DownloadStream(ctx, opts)
	if err != nil {
		return nil, classify("read", key, err)
	}
	return resp.Body, nil
}

func (a *AzureStorage) Write(ctx context.Context, key string, r io.Reader, size int64, opts storage.WriteOptions) error {
	a.logger.Debug("Starting Azure UploadStream operation", "key", key, "size", size)

	upload := &blockblob.UploadStreamOptions{
		BlockSize:   int64(a.cfg.EffectiveBufferSize()),
		Concurrency: 1,
	}
	if opts.ContentType != "" {
		upload.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(opts.ContentType)}
	}

	counter := &countingReader{r: r}
	_, err := a.container.NewBlockBlobClient(key).UploadStream(ctx, counter, upload)
	if err == nil && counter.n != size {
		err = fmt.Errorf("uploaded %d of %d bytes", counter.n, size)
	}
	return classify("write", key, err)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (a *AzureStorage) List(ctx context.Context, opts storage.ListOptions) (storage.ListingPage, error) {
	a.logger.Debug("Starting Azure ListBlobs operation", "prefix", opts.Prefix, "marker", opts.ContinuationToken)

	limit := opts.MaxKeys
	if limit <= 0 {
		limit = storage.DefaultPageSize
	}
	limit = min(limit, maxListResults)

	var marker *string
	if opts.ContinuationToken != "" {
		marker = to.Ptr(opts.ContinuationToken)
	}

	if opts.Delimiter == "" {
		return a.listFlat(ctx, opts, marker, int32(limit))
	}

	pager := a.container.NewListBlobsHierarchyPager(opts.Delimiter, &container.ListBlobsHierarchyOptions{
		Prefix:     to.Ptr(opts.Prefix),
		Marker:     marker,
		MaxResults: to.Ptr(int32(limit)),
	})
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return storage.ListingPage{}, classify("list", opts.Prefix, err)
	}

	var (
		objects  []storage.Object
		prefixes []string
	)
	if resp.Segment != nil {
		for _, item := range resp.Segment.BlobItems {
			objects = append(objects, mapBlobItem(item))
		}
		for _, p := range resp.Segment.BlobPrefixes {
			prefixes = append(prefixes, deref(p.Name))
		}
	}
	return storage.NewListingPage(opts, objects, prefixes, deref(resp.NextMarker)), nil
}

func (a *AzureStorage) listFlat(ctx context.Context, opts storage.ListOptions, marker *string, limit int32) (storage.ListingPage, error) {
	pager := a.container.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
		Prefix:     to.Ptr(opts.Prefix),
		Marker:     marker,
		MaxResults: to.Ptr(limit),
	})
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return storage.ListingPage{}, classify("list", opts.Prefix, err)
	}

	var objects []storage.Object
	if resp.Segment != nil {
		for _, item := range resp.Segment.BlobItems {
			objects = append(objects, mapBlobItem(item))
		}
	}
	return storage.NewListingPage(opts, objects, nil, deref(resp.NextMarker)), nil
}

// Delete treats a missing blob as already deleted, as S3 does
func (a *AzureStorage) Delete(ctx context.Context, key string) error {
	_, err := a.container.NewBlobClient(key).Delete(ctx, nil)
	if err != nil && kindOf(err) == storage.ErrNotFound {
		return nil
	}
	return classify("delete", key, err)
}

func (a *AzureStorage) DeleteMany(ctx context.Context, keys []string) ([]storage.DeleteResult, error) {
	a.logger.Debug("Starting Azure batch delete", "count", len(keys))
	return storage.DeleteEach(ctx, keys, storage.DefaultDeleteConcurrency, a.Delete)
}

// Copy starts a server side copy and waits for it to leave the pending state.
// Same-account sources are authorized by the shared key of the request
func (a *AzureStorage) Copy(ctx context.Context, src, dst string) error {
	a.logger.Debug("Starting Azure StartCopyFromURL operation", "src", src, "dst", dst)

	srcURL := a.container.NewBlobClient(src).URL()
	dstBlob := a.container.NewBlobClient(dst)

	resp, err := dstBlob.StartCopyFromURL(ctx, srcURL, nil)
	if err != nil {
		return classify("copy", src, err)
	}

	status := deref(resp.CopyStatus)
	ticker := time.NewTicker(copyPollInterval)
	defer ticker.Stop()

	for status == blob.CopyStatusTypePending {
		select {
		case <-ctx.Done():
			_, _ = dstBlob.AbortCopyFromURL(context.WithoutCancel(ctx), deref(resp.CopyID), nil)
			return classify("copy", src, ctx.Err())
		case <-ticker.C:
		}

		props, err := dstBlob.GetProperties(ctx, nil)
		if err != nil {
			return classify("copy", src, err)
		}
		status = deref(props.CopyStatus)
	}

	if status != blob.CopyStatusTypeSuccess {
		return classify("copy", src, fmt.Errorf("copy finished with status %q", status))
	}
	return nil
}

func (a *AzureStorage) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	u, err := a.container.NewBlobClient(key).GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(ttl), nil)
	if err != nil {
		return "", storage.NewOpError("presign", key, storage.ErrPresign, err)
	}
	return u, nil
}
