package minio

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"bucketdeck/pkg/storage"

	miniogo "github.com/minio/minio-go/v7"
)

func (m *MinioStorage) Stat(ctx context.Context, key string) (storage.Metadata, error) {
	info, err := m.client.StatObject(ctx, m.cfg.Bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return storage.Metadata{}, classify("stat", key, err)
	}
	obj := mapObjectInfo(info)
	return storage.Metadata{
		Key:          key,
		Size:         obj.Size,
		ContentType:  info.ContentType,
		LastModified: obj.LastModified,
		ETag:         obj.ETag,
		StorageClass: obj.StorageClass,
	}, nil
}

func (m *MinioStorage) Read(ctx context.Context, key string, rng *storage.ByteRange) (io.ReadCloser, error) {
	opts := miniogo.GetObjectOptions{}
	if rng != nil && (rng.Offset > 0 || rng.Length > 0) {
		// end 0 with start > 0 means "to the end"
		end := max(rng.End(), 0)
		if err := opts.SetRange(int64(rng.Offset), end); err != nil {
			return nil, classify("read", key, err)
		}
	}

	obj, err := m.client.GetObject(ctx, m.cfg.Bucket, key, opts)
	if err != nil {
		return nil, classify("read", key, err)
	}
	// GetObject is lazy; Stat sends the request so a missing key fails here and not on Read
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, classify("read", key, err)
	}
	return obj, nil
}

func (m *MinioStorage) Write(ctx context.Context, key string, r io.Reader, size int64, opts storage.WriteOptions) error {
	m.logger.Debug("Starting PutObject operation", "key", key, "size", size)

	_, err := m.client.PutObject(ctx, m.cfg.Bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: opts.ContentType,
		PartSize:    uint64(m.cfg.EffectiveBufferSize()),
	})
	return classify("write", key, err)
}

// List pages with the server's own continuation token. The streaming ListObjects iterator
// yields a page's objects before its prefixes, so it cannot be cut at an arbitrary item
func (m *MinioStorage) List(ctx context.Context, opts storage.ListOptions) (storage.ListingPage, error) {
	m.logger.Debug("Starting ListObjectsV2 operation (delimited)", "prefix", opts.Prefix, "token", opts.ContinuationToken)

	res, err := m.listV2(ctx, opts)
	if err != nil {
		return storage.ListingPage{}, classify("list", opts.Prefix, err)
	}

	objects := make([]storage.Object, 0, len(res.Contents))
	for _, info := range res.Contents {
		objects = append(objects, mapObjectInfo(info))
	}
	prefixes := make([]string, 0, len(res.CommonPrefixes))
	for _, cp := range res.CommonPrefixes {
		if cp.Prefix == opts.Prefix {
			continue
		}
		prefixes = append(prefixes, cp.Prefix)
	}

	next := ""
	if res.IsTruncated {
		next = res.NextContinuationToken
	}
	return storage.NewListingPage(opts, objects, prefixes, next), nil
}

type listReply struct {
	res miniogo.ListBucketV2Result
	err error
}

// listV2 sends one ListObjectsV2 request. Core takes no context, so a cancelled ctx is checked
// before sending and abandons the reply afterwards
func (m *MinioStorage) listV2(ctx context.Context, opts storage.ListOptions) (miniogo.ListBucketV2Result, error) {
	if err := ctx.Err(); err != nil {
		return miniogo.ListBucketV2Result{}, err
	}

	limit := opts.MaxKeys
	if limit <= 0 {
		limit = storage.DefaultPageSize
	}

	reply := make(chan listReply, 1)
	go func() {
		core := miniogo.Core{Client: m.client}
		res, err := core.ListObjectsV2(m.cfg.Bucket, opts.Prefix, "", opts.ContinuationToken, opts.Delimiter, limit)
		reply <- listReply{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return miniogo.ListBucketV2Result{}, ctx.Err()
	case r := <-reply:
		return r.res, r.err
	}
}

func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.cfg.Bucket, key, miniogo.RemoveObjectOptions{})
	return classify("delete", key, err)
}

func (m *MinioStorage) DeleteMany(ctx context.Context, keys []string) ([]storage.DeleteResult, error) {
	m.logger.Debug("Starting RemoveObjects operation", "count", len(keys))

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	objectsCh := make(chan miniogo.ObjectInfo)
	sentDone := make(chan struct{})
	sent := 0
	go func() {
		defer close(sentDone)
		defer close(objectsCh)
		for _, key := range keys {
			select {
			case objectsCh <- miniogo.ObjectInfo{Key: key}:
				sent++
			case <-feedCtx.Done():
				return
			}
		}
	}()

	failed := make(map[string]error)
	for rerr := range m.client.RemoveObjects(ctx, m.cfg.Bucket, objectsCh, miniogo.RemoveObjectsOptions{}) {
		failed[rerr.ObjectName] = classify("delete", rerr.ObjectName, rerr.Err)
	}
	stopFeed()
	<-sentDone

	results := make([]storage.DeleteResult, len(keys))
	for i, key := range keys {
		err := failed[key]
		// Keys never handed to the server were not deleted
		if err == nil && i >= sent {
			err = classify("delete", key, errNotSent(ctx))
		}
		results[i] = storage.DeleteResult{Key: key, Err: err}
	}
	return results, storage.BatchResult(results)
}

func errNotSent(ctx context.Context) error {
	if err := context.Cause(ctx); err != nil {
		return err
	}
	return errors.New("batch delete stopped before this key was sent")
}

func (m *MinioStorage) Copy(ctx context.Context, src, dst string) error {
	_, err := m.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: m.cfg.Bucket, Object: dst},
		miniogo.CopySrcOptions{Bucket: m.cfg.Bucket, Object: src},
	)
	return classify("copy", src, err)
}

func (m *MinioStorage) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.cfg.Bucket, key, ttl, nil)
	if err != nil {
		return "", storage.NewOpError("presign", key, storage.ErrPresign, err)
	}
	return u.String(), nil
}

func mapObjectInfo(info miniogo.ObjectInfo) storage.Object {
	obj := storage.Object{
		Key:          info.Key,
		Kind:         storage.KindFile,
		Size:         uint64(max(info.Size, 0)),
		ETag:         strings.Trim(info.ETag, `"`),
		StorageClass: info.StorageClass,
		Owner:        info.Owner.DisplayName,
	}
	if !info.LastModified.IsZero() {
		t := info.LastModified
		obj.LastModified = &t
	}
	return obj
}
