package aws

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"bucketdeck/pkg/common"
	"bucketdeck/pkg/storage"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DeleteObjects accepts at most this many keys per request
const maxDeleteBatch = 1000

func (s *S3Storage) Stat(ctx context.Context, key string) (storage.Metadata, error) {
	s.logger.Debug("Starting S3 HeadObject operation", "key", key)

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: s.bucket(),
		Key:    awssdk.String(key),
	})
	if err != nil {
		return storage.Metadata{}, classify("stat", key, err)
	}

	return storage.Metadata{
		Key:          key,
		Size:         uint64(max(awssdk.ToInt64(out.ContentLength), 0)),
		ContentType:  awssdk.ToString(out.ContentType),
		LastModified: out.LastModified,
		ETag:         strings.Trim(awssdk.ToString(out.ETag), `"`),
		StorageClass: string(out.StorageClass),
	}, nil
}

func (s *S3Storage) Read(ctx context.Context, key string, rng *storage.ByteRange) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: s.bucket(),
		Key:    awssdk.String(key),
	}
	if rng != nil {
		input.Range = awssdk.String(rng.HTTPHeader())
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, classify("read", key, err)
	}
	return out.Body, nil
}

// Write streams r without seeking, so the payload is sent unsigned and the length must be exact
func (s *S3Storage) Write(ctx context.Context, key string, r io.Reader, size int64, opts storage.WriteOptions) error {
	s.logger.Debug("Starting S3 PutObject operation", "key", key, "size", size)

	input := &s3.PutObjectInput{
		Bucket:        s.bucket(),
		Key:           awssdk.String(key),
		Body:          r,
		ContentLength: awssdk.Int64(size),
	}
	if opts.ContentType != "" {
		input.ContentType = awssdk.String(opts.ContentType)
	}

	_, err := s.client.PutObject(ctx, input, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	return classify("write", key, err)
}

func (s *S3Storage) List(ctx context.Context, opts storage.ListOptions) (storage.ListingPage, error) {
	s.logger.Debug("Starting S3 ListObjectsV2 operation (delimited)", "prefix", opts.Prefix, "token", opts.ContinuationToken)

	input := &s3.ListObjectsV2Input{
		Bucket:  s.bucket(),
		Prefix:  awssdk.String(opts.Prefix),
		MaxKeys: awssdk.Int32(int32(pageSize(opts.MaxKeys))),
	}
	if opts.Delimiter != "" {
		input.Delimiter = awssdk.String(opts.Delimiter)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = awssdk.String(opts.ContinuationToken)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return storage.ListingPage{}, classify("list", opts.Prefix, err)
	}

	objects := make([]storage.Object, 0, len(out.Contents))
	for _, obj := range out.Contents {
		objects = append(objects, mapObject(obj))
	}
	prefixes := make([]string, 0, len(out.CommonPrefixes))
	for _, p := range out.CommonPrefixes {
		prefixes = append(prefixes, awssdk.ToString(p.Prefix))
	}

	next := ""
	if awssdk.ToBool(out.IsTruncated) {
		next = awssdk.ToString(out.NextContinuationToken)
	}
	return storage.NewListingPage(opts, objects, prefixes, next), nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.bucket(),
		Key:    awssdk.String(key),
	})
	return classify("delete", key, err)
}

func (s *S3Storage) DeleteMany(ctx context.Context, keys []string) ([]storage.DeleteResult, error) {
	s.logger.Debug("Starting S3 DeleteObjects operation", "count", len(keys))

	// OSS wants a Content-MD5 on batch deletes that the SDK no longer sends
	if s.cfg.Service != common.S3 {
		return storage.DeleteEach(ctx, keys, storage.DefaultDeleteConcurrency, s.Delete)
	}

	results := make([]storage.DeleteResult, 0, len(keys))
	for start := 0; start < len(keys); start += maxDeleteBatch {
		batch := keys[start:min(start+maxDeleteBatch, len(keys))]
		results = append(results, s.deleteBatch(ctx, batch)...)
	}
	return results, storage.BatchResult(results)
}

func (s *S3Storage) deleteBatch(ctx context.Context, keys []string) []storage.DeleteResult {
	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: awssdk.String(key)})
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: s.bucket(),
		Delete: &types.Delete{Objects: ids, Quiet: awssdk.Bool(true)},
	})

	results := make([]storage.DeleteResult, len(keys))
	if err != nil {
		for i, key := range keys {
			results[i] = storage.DeleteResult{Key: key, Err: classify("delete", key, err)}
		}
		return results
	}

	failed := make(map[string]error, len(out.Errors))
	for _, e := range out.Errors {
		key := awssdk.ToString(e.Key)
		failed[key] = storage.NewOpError("delete", key, deleteErrorKind(awssdk.ToString(e.Code)),
			fmt.Errorf("%s: %s", awssdk.ToString(e.Code), awssdk.ToString(e.Message)))
	}
	for i, key := range keys {
		results[i] = storage.DeleteResult{Key: key, Err: failed[key]}
	}
	return results
}

func deleteErrorKind(code string) error {
	switch {
	case permissionCodes[code]:
		return storage.ErrPermission
	case notFoundCodes[code]:
		return storage.ErrNotFound
	default:
		return storage.ErrTransport
	}
}

func (s *S3Storage) Copy(ctx context.Context, src, dst string) error {
	s.logger.Debug("Starting S3 CopyObject operation", "src", src, "dst", dst)

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     s.bucket(),
		CopySource: awssdk.String(copySource(s.cfg.Bucket, src)),
		Key:        awssdk.String(dst),
	})
	return classify("copy", src, err)
}

// copySource escapes each path segment of the key but keeps the separators
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

func (s *S3Storage) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: s.bucket(),
		Key:    awssdk.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", storage.NewOpError("presign", key, storage.ErrPresign, err)
	}
	return req.URL, nil
}

func pageSize(maxKeys int) int {
	if maxKeys <= 0 {
		return storage.DefaultPageSize
	}
	return min(maxKeys, 1000)
}
